package nativerun

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// ReadOptions parses a retroarch core-options file (`key = "value"`
// lines). A missing file yields an empty map.
func ReadOptions(path string) (map[string]string, error) {
	opts := make(map[string]string)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return opts, nil
	}
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"`)
		if key != "" {
			opts[key] = val
		}
	}
	return opts, nil
}

// MergeOptions layers option maps with last-write-wins per key:
// persisted options on disk, then built-in system defaults, then
// caller overrides.
func MergeOptions(persisted, defaults, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(persisted)+len(defaults)+len(overrides))
	for k, v := range persisted {
		merged[k] = v
	}
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// WriteOptions persists options deterministically (sorted keys) via a
// temp file renamed into place, so retroarch never reads a half write.
func WriteOptions(path string, opts map[string]string) error {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s = \"%s\"\n", k, opts[k])
	}
	return writeFileAtomic(path, []byte(b.String()))
}

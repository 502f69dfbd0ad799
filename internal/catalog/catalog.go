// Package catalog lists the ROM library under the configured roms
// directory. Layout is one subdirectory per system ID, e.g.
// roms/snes/chrono.sfc.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"retrocade/internal/nativerun"
)

var ErrNotFound = errors.New("rom not found")

// Entry is one playable content file.
type Entry struct {
	System  string    `json:"system"`
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Scan lists every ROM for every supported system, sorted by system
// then name. A missing roms directory yields an empty library; the
// kiosk may boot before external storage mounts.
func Scan(romsDir string) ([]Entry, error) {
	var out []Entry
	for _, sys := range nativerun.Systems() {
		entries, err := ScanSystem(romsDir, sys.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

// ScanSystem lists the ROMs of one system, sorted by name.
func ScanSystem(romsDir, systemID string) ([]Entry, error) {
	sys, ok := nativerun.SystemByID(systemID)
	if !ok {
		return nil, fmt.Errorf("unknown system %q", systemID)
	}
	dir := filepath.Join(romsDir, sys.ID)
	dirents, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []Entry
	for _, de := range dirents {
		if de.IsDir() || !playable(sys, de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			System:  sys.ID,
			Name:    de.Name(),
			Path:    filepath.Join(dir, de.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Resolve maps a system ID and bare ROM name to an absolute content
// path, rejecting names that escape the system directory.
func Resolve(romsDir, systemID, name string) (string, error) {
	sys, ok := nativerun.SystemByID(systemID)
	if !ok {
		return "", fmt.Errorf("unknown system %q", systemID)
	}
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid rom name %q", name)
	}
	path := filepath.Join(romsDir, sys.ID, name)
	if _, err := os.Stat(path); err != nil {
		return "", ErrNotFound
	}
	return path, nil
}

func playable(sys nativerun.System, name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".zip" {
		return true
	}
	for _, want := range sys.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

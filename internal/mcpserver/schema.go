package mcpserver

import (
	"strings"

	"retrocade/internal/nativerun"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

func clampHistoryLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

// systemEnum renders the supported system ids for tool error messages.
func systemEnum() string {
	systems := nativerun.Systems()
	ids := make([]string, 0, len(systems))
	for _, sys := range systems {
		ids = append(ids, sys.ID)
	}
	return strings.Join(ids, "|")
}

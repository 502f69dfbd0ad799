package mcpserver

import (
	"errors"
	"fmt"

	"retrocade/internal/nativerun"
	"retrocade/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
)

func toolResult(data any) *mcp.CallToolResult {
	return mcp.NewToolResultStructuredOnly(data)
}

func toolError(code, message string) *mcp.CallToolResult {
	result := mcp.NewToolResultStructured(
		map[string]any{
			"error": map[string]any{
				"code":    code,
				"message": message,
			},
		},
		fmt.Sprintf("%s: %s", code, message),
	)
	result.IsError = true
	return result
}

func mapDomainError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return toolError("internal_error", "unknown error")
	case errors.Is(err, nativerun.ErrInvalidState):
		return toolError("invalid_state", err.Error())
	case errors.Is(err, nativerun.ErrContentNotFound):
		return toolError("rom_not_found", err.Error())
	case errors.Is(err, nativerun.ErrCoreNotFound):
		return toolError("core_not_found", err.Error())
	case errors.Is(err, nativerun.ErrExtractionFailed):
		return toolError("extraction_failed", err.Error())
	case errors.Is(err, nativerun.ErrKioskStopFailed):
		return toolError("kiosk_stop_failed", err.Error())
	case errors.Is(err, nativerun.ErrSpawnFailed):
		return toolError("spawn_failed", err.Error())
	case errors.Is(err, store.ErrNotFound):
		return toolError("not_found", err.Error())
	default:
		return toolError("internal_error", err.Error())
	}
}

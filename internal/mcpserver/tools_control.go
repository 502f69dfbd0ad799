package mcpserver

import (
	"context"

	"retrocade/internal/nativerun"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerControlTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"kiosk_status",
			mcp.WithDescription("Connected screens and controllers plus native playback state"),
		),
		s.handleKioskStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"launch_game",
			mcp.WithDescription("Launch a ROM from the library in the native emulator"),
			mcp.WithString("system", mcp.Required(), mcp.Description("System id, e.g. nes or snes")),
			mcp.WithString("rom", mcp.Required(), mcp.Description("ROM filename inside the system directory")),
		),
		s.handleLaunchGame,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"quit_game",
			mcp.WithDescription("Stop native playback and hand the display back to the kiosk UI"),
		),
		s.handleQuitGame,
	)
}

func (s *Server) handleKioskStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	screens, controllers := s.control.Counts()
	return toolResult(map[string]any{
		"screens":     screens,
		"controllers": controllers,
		"native":      s.control.NativeStatus(ctx),
	}), nil
}

func (s *Server) handleLaunchGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	system, err := request.RequireString("system")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	rom, err := request.RequireString("rom")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if _, ok := nativerun.SystemByID(system); !ok {
		return toolError("invalid_request", "system must be one of "+systemEnum()), nil
	}
	if err := s.control.LaunchNative(ctx, system, rom, nil); err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"ok": true, "native": s.control.NativeStatus(ctx)}), nil
}

func (s *Server) handleQuitGame(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.control.QuitNative(ctx); err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"ok": true, "native": s.control.NativeStatus(ctx)}), nil
}

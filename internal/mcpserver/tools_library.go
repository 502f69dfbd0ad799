package mcpserver

import (
	"context"

	"retrocade/internal/catalog"
	"retrocade/internal/nativerun"
	"retrocade/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerLibraryTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_systems",
			mcp.WithDescription("List supported systems with core availability and ROM counts"),
		),
		s.handleListSystems,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_roms",
			mcp.WithDescription("List playable ROMs in the library"),
			mcp.WithString("system", mcp.Description("Optional system id filter")),
		),
		s.handleListRoms,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"play_history",
			mcp.WithDescription("Recent native play sessions, newest first"),
			mcp.WithNumber("limit", mcp.Description("Page size, default 20, max 200")),
		),
		s.handlePlayHistory,
	)
}

func (s *Server) handleListSystems(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cores := s.control.NativeStatus(ctx).CoreAvailability
	systems := nativerun.Systems()
	out := make([]map[string]any, 0, len(systems))
	for _, sys := range systems {
		entries, err := catalog.ScanSystem(s.romsDir, sys.ID)
		if err != nil {
			return mapDomainError(err), nil
		}
		out = append(out, map[string]any{
			"id":             sys.ID,
			"name":           sys.Name,
			"core":           sys.Core,
			"extensions":     sys.Extensions,
			"rom_count":      len(entries),
			"core_available": cores[sys.ID],
		})
	}
	return toolResult(map[string]any{"systems": out}), nil
}

func (s *Server) handleListRoms(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	system := request.GetString("system", "")
	var (
		entries []catalog.Entry
		err     error
	)
	if system == "" {
		entries, err = catalog.Scan(s.romsDir)
	} else {
		if _, ok := nativerun.SystemByID(system); !ok {
			return toolError("invalid_request", "system must be one of "+systemEnum()), nil
		}
		entries, err = catalog.ScanSystem(s.romsDir, system)
	}
	if err != nil {
		return mapDomainError(err), nil
	}
	if entries == nil {
		entries = []catalog.Entry{}
	}
	return toolResult(map[string]any{"count": len(entries), "roms": entries}), nil
}

func (s *Server) handlePlayHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := clampHistoryLimit(request.GetInt("limit", defaultHistoryLimit))
	sessions, err := s.store.RecentSessions(ctx, limit)
	if err != nil {
		return mapDomainError(err), nil
	}
	if sessions == nil {
		sessions = []store.PlaySession{}
	}
	return toolResult(map[string]any{"count": len(sessions), "sessions": sessions}), nil
}

package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"retrocade/internal/catalog"
	"retrocade/internal/store"
	"retrocade/internal/ws"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server exposes kiosk control over MCP streamable HTTP so LLM agents
// can inspect the cabinet, browse the ROM library and drive native
// playback through the same path ws clients use.
type Server struct {
	store   *store.Store
	control *ws.Server
	romsDir string

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(st *store.Store, control *ws.Server, romsDir string) *Server {
	mcpSrv := server.NewMCPServer(
		"retrocade-kiosk",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		store:      st,
		control:    control,
		romsDir:    romsDir,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerControlTools()
	s.registerLibraryTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"library://{system}/roms",
			"system_rom_library",
			mcp.WithTemplateDescription("ROM library for one system"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			raw := request.Params.URI
			if !strings.HasPrefix(raw, "library://") || !strings.HasSuffix(raw, "/roms") {
				return nil, nil
			}
			system := strings.TrimSuffix(strings.TrimPrefix(raw, "library://"), "/roms")
			if system == "" {
				return nil, nil
			}
			entries, err := catalog.ScanSystem(s.romsDir, system)
			if err != nil {
				return nil, err
			}
			if entries == nil {
				entries = []catalog.Entry{}
			}
			payload, err := json.Marshal(map[string]any{
				"system": system,
				"roms":   entries,
			})
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      raw,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			}, nil
		},
	)
}

// Package httptransport wires the kiosk's HTTP surface: the websocket
// control endpoint, the read-only REST API, the admin native-session
// endpoints, SSE event streaming, Prometheus metrics and the optional
// MCP mount.
package httptransport

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"retrocade/internal/config"
	"retrocade/internal/eventfeed"
	"retrocade/internal/mcpserver"
	"retrocade/internal/metrics"
	"retrocade/internal/notify"
	"retrocade/internal/store"
	"retrocade/internal/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func NewRouter(st *store.Store, cfg config.AppConfig, control *ws.Server, feed *eventfeed.Buffer, m *metrics.Metrics, notifier *notify.Manager) *chi.Mux {
	publicHandlers := NewPublicHandlers(st, control, cfg.Native.RomsDir)
	adminHandlers := NewAdminHandlers(st, control)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	r.Method(http.MethodGet, "/metrics", m.Handler(func() {
		screens, controllers := control.Counts()
		m.SetScreens(screens)
		m.SetControllers(controllers)
		m.SetNativeState(control.NativeStatus(context.Background()).State.Code())
		if notifier != nil {
			m.SetNotifyQueueLen(notifier.QueueLen())
		}
	}))

	if cfg.Server.MCPEnabled {
		mcpSrv := mcpserver.New(st, control, cfg.Native.RomsDir)
		r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
		})
		r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", mcpSrv.Handler())
		r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", mcpSrv.Handler())
		r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", mcpSrv.Handler())
	}

	r.Get("/ws", control.HandleWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/systems", publicHandlers.Systems())
		r.Get("/roms", publicHandlers.Roms())
		r.Get("/native/status", publicHandlers.NativeStatus())
		r.Get("/presence", publicHandlers.Presence())
		r.Get("/history/sessions", publicHandlers.Sessions())
		r.Get("/history/pairings", publicHandlers.Pairings())
		r.Get("/events", eventfeed.Handler(feed))

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.Server.AdminAPIKey))
			r.Use(BodyCaptureMiddleware(4096))
			r.Post("/native/launch", adminHandlers.LaunchNative())
			r.Post("/native/quit", adminHandlers.QuitNative())
			r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		})
	})

	if info, err := os.Stat(cfg.Server.StaticDir); err == nil && info.IsDir() {
		r.Handle("/*", http.FileServer(http.Dir(cfg.Server.StaticDir)))
	} else {
		log.Warn().Str("path", cfg.Server.StaticDir).Msg("static directory not found; skipping catch-all static route")
	}
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 64)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}

package httptransport

import (
	"encoding/json"
	"net/http"

	"retrocade/internal/catalog"
	"retrocade/internal/nativerun"
	"retrocade/internal/presence"
	"retrocade/internal/store"
	"retrocade/internal/ws"
)

// PublicHandlers serves the read-only kiosk API: library listings,
// native status, presence and play history. Everything here is safe to
// expose to any device on the kiosk's network.
type PublicHandlers struct {
	store   *store.Store
	control *ws.Server
	romsDir string
}

func NewPublicHandlers(st *store.Store, control *ws.Server, romsDir string) *PublicHandlers {
	return &PublicHandlers{store: st, control: control, romsDir: romsDir}
}

func (h *PublicHandlers) Systems() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := h.control.NativeStatus(r.Context())
		systems := make([]map[string]any, 0, len(nativerun.Systems()))
		for _, sys := range nativerun.Systems() {
			entries, err := catalog.ScanSystem(h.romsDir, sys.ID)
			if err != nil {
				WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
				return
			}
			systems = append(systems, map[string]any{
				"id":             sys.ID,
				"name":           sys.Name,
				"core":           sys.Core,
				"extensions":     sys.Extensions,
				"rom_count":      len(entries),
				"core_available": status.CoreAvailability[sys.ID],
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"systems": systems})
	}
}

func (h *PublicHandlers) Roms() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		system := r.URL.Query().Get("system")
		var (
			entries []catalog.Entry
			err     error
		)
		if system == "" {
			entries, err = catalog.Scan(h.romsDir)
		} else {
			if _, ok := nativerun.SystemByID(system); !ok {
				WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
				return
			}
			entries, err = catalog.ScanSystem(h.romsDir, system)
		}
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if entries == nil {
			entries = []catalog.Entry{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"count": len(entries), "roms": entries})
	}
}

func (h *PublicHandlers) NativeStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(h.control.NativeStatus(r.Context()))
	}
}

func (h *PublicHandlers) Presence() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		devices := h.control.PresenceSnapshot()
		if devices == nil {
			devices = []presence.Device{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"count": len(devices), "devices": devices})
	}
}

func (h *PublicHandlers) Sessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := ParseLimit(r, 50, 200)
		items, err := h.store.RecentSessions(r.Context(), limit)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if items == nil {
			items = []store.PlaySession{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "limit": limit})
	}
}

func (h *PublicHandlers) Pairings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := ParseLimit(r, 50, 200)
		items, err := h.store.RecentPairings(r.Context(), limit)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		if items == nil {
			items = []store.Pairing{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items, "limit": limit})
	}
}

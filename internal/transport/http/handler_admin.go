package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"retrocade/internal/nativerun"
	"retrocade/internal/store"
	"retrocade/internal/ws"
)

// AdminHandlers serves health plus the mutating native-session
// endpoints. Launch and quit go through the control server so websocket
// clients see the same broadcasts regardless of who triggered the
// change.
type AdminHandlers struct {
	store   *store.Store
	control *ws.Server
}

func NewAdminHandlers(st *store.Store, control *ws.Server) *AdminHandlers {
	return &AdminHandlers{store: st, control: control}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "up"})
	}
}

func (h *AdminHandlers) LaunchNative() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		launchRequestTotal.Add(1)
		var body struct {
			System  string            `json:"system"`
			Rom     string            `json:"rom"`
			Options map[string]string `json:"options"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			launchRequestErrors.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.System == "" || body.Rom == "" {
			launchRequestErrors.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if _, ok := nativerun.SystemByID(body.System); !ok {
			launchRequestErrors.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if err := h.control.LaunchNative(r.Context(), body.System, body.Rom, body.Options); err != nil {
			launchRequestErrors.Add(1)
			writeNativeError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "native": h.control.NativeStatus(r.Context())})
	}
}

func (h *AdminHandlers) QuitNative() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quitRequestTotal.Add(1)
		if err := h.control.QuitNative(r.Context()); err != nil {
			quitRequestErrors.Add(1)
			writeNativeError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "native": h.control.NativeStatus(r.Context())})
	}
}

func writeNativeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, nativerun.ErrInvalidState):
		WriteHTTPError(w, http.StatusConflict, "invalid_state")
	case errors.Is(err, nativerun.ErrContentNotFound):
		WriteHTTPError(w, http.StatusNotFound, "rom_not_found")
	case errors.Is(err, nativerun.ErrCoreNotFound):
		WriteHTTPError(w, http.StatusInternalServerError, "core_not_found")
	case errors.Is(err, nativerun.ErrExtractionFailed):
		WriteHTTPError(w, http.StatusInternalServerError, "extraction_failed")
	case errors.Is(err, nativerun.ErrKioskStopFailed):
		WriteHTTPError(w, http.StatusInternalServerError, "kiosk_stop_failed")
	case errors.Is(err, nativerun.ErrSpawnFailed):
		WriteHTTPError(w, http.StatusInternalServerError, "spawn_failed")
	default:
		WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
	}
}

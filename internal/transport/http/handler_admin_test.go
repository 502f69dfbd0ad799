package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"retrocade/internal/config"
	"retrocade/internal/nativerun"
)

func postJSON(t *testing.T, router http.Handler, path, body string, hdr http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	if hdr != nil {
		req.Header = hdr.Clone()
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	fx, cleanup := newRouterFixture(t, nil)
	defer cleanup()

	var resp struct {
		OK bool   `json:"ok"`
		DB string `json:"db"`
	}
	if code := getJSON(t, fx.router, "/healthz", &resp); code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", code)
	}
	if !resp.OK || resp.DB != "up" {
		t.Fatalf("healthz = %+v, want ok/up", resp)
	}
}

func TestAdminAuthRequired(t *testing.T) {
	fx, cleanup := newRouterFixture(t, func(cfg *config.AppConfig) {
		cfg.Server.AdminAPIKey = "admin-key"
	})
	defer cleanup()

	unauth := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/api/native/launch", `{"system":"nes","rom":"smb.nes"}`},
		{http.MethodPost, "/api/native/quit", ""},
		{http.MethodGet, "/api/debug/vars", ""},
	}
	for _, tc := range unauth {
		req := httptest.NewRequest(tc.method, tc.path, bytes.NewBufferString(tc.body))
		w := httptest.NewRecorder()
		fx.router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("unauth %s %s status = %d, want 401", tc.method, tc.path, w.Code)
		}
	}

	// Read surface stays open even with an admin key set.
	if code := getJSON(t, fx.router, "/api/native/status", nil); code != http.StatusOK {
		t.Fatalf("native status = %d, want 200", code)
	}

	// Both header forms authenticate; quit while idle then fails on
	// state, not auth.
	keyed := http.Header{"X-Admin-Key": []string{"admin-key"}}
	if w := postJSON(t, fx.router, "/api/native/quit", "", keyed); w.Code != http.StatusConflict {
		t.Fatalf("X-Admin-Key quit status = %d, want 409", w.Code)
	}
	bearer := http.Header{"Authorization": []string{"Bearer admin-key"}}
	if w := postJSON(t, fx.router, "/api/native/quit", "", bearer); w.Code != http.StatusConflict {
		t.Fatalf("Bearer quit status = %d, want 409", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/debug/vars", nil)
	req.Header = keyed.Clone()
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("debug vars status = %d, want 200", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("native_launch_request_total")) {
		t.Fatalf("debug vars missing launch counter: %s", w.Body.String())
	}
}

func TestLaunchAndQuitFlow(t *testing.T) {
	fx, cleanup := newRouterFixture(t, nil)
	defer cleanup()
	romPath := writeRom(t, fx.romsDir, "nes", "smb.nes")

	w := postJSON(t, fx.router, "/api/native/launch", `{"system":"nes","rom":"smb.nes"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("launch status = %d, want 200 (body=%s)", w.Code, w.Body.String())
	}
	var launched struct {
		OK     bool `json:"ok"`
		Native struct {
			State string `json:"state"`
		} `json:"native"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &launched); err != nil {
		t.Fatalf("decode launch response: %v", err)
	}
	if !launched.OK || launched.Native.State != "running" {
		t.Fatalf("launch response = %+v, want ok/running", launched)
	}
	if fx.native.current() != nativerun.StateRunning {
		t.Fatalf("native state = %s, want running", fx.native.current())
	}

	sessions, err := fx.st.RecentSessions(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Rom != romPath {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}

	w = postJSON(t, fx.router, "/api/native/launch", `{"system":"nes","rom":"smb.nes"}`, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("second launch status = %d, want 409", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid_state") {
		t.Fatalf("second launch error = %s, want invalid_state", w.Body.String())
	}

	w = postJSON(t, fx.router, "/api/native/quit", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("quit status = %d, want 200 (body=%s)", w.Code, w.Body.String())
	}
	if fx.native.current() != nativerun.StateIdle {
		t.Fatalf("native state after quit = %s, want idle", fx.native.current())
	}

	w = postJSON(t, fx.router, "/api/native/quit", "", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("second quit status = %d, want 409", w.Code)
	}
}

func TestLaunchValidation(t *testing.T) {
	fx, cleanup := newRouterFixture(t, nil)
	defer cleanup()
	writeRom(t, fx.romsDir, "nes", "smb.nes")

	cases := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"malformed json", `{`, http.StatusBadRequest, "invalid_json"},
		{"missing fields", `{}`, http.StatusBadRequest, "invalid_request"},
		{"unknown system", `{"system":"atari","rom":"pitfall.bin"}`, http.StatusBadRequest, "invalid_request"},
		{"missing rom", `{"system":"nes","rom":"missing.nes"}`, http.StatusNotFound, "rom_not_found"},
	}
	for _, tc := range cases {
		w := postJSON(t, fx.router, "/api/native/launch", tc.body, nil)
		if w.Code != tc.wantCode {
			t.Fatalf("%s: status = %d, want %d (body=%s)", tc.name, w.Code, tc.wantCode, w.Body.String())
		}
		var resp struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: decode error body: %v", tc.name, err)
		}
		if resp.Error != tc.wantErr {
			t.Fatalf("%s: error = %q, want %q", tc.name, resp.Error, tc.wantErr)
		}
	}

	if fx.native.current() != nativerun.StateIdle {
		t.Fatalf("native state = %s, want idle after rejected launches", fx.native.current())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	fx, cleanup := newRouterFixture(t, nil)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"retrocade_screens_connected", "retrocade_controllers_connected", "retrocade_native_state"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %s", want)
		}
	}
}

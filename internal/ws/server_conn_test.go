package ws

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readType(t *testing.T, conn *websocket.Conn, want string) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read waiting for %q: %v", want, err)
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &base); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if base.Type == want {
			return raw
		}
	}
}

// awaitClosed reads until the server closes the connection. A read
// deadline firing instead means the connection was left open.
func awaitClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			t.Fatal("connection still open, want server-side close")
		}
		return
	}
}

func TestControllerReconnectDisplacesOldConnection(t *testing.T) {
	srv, cleanup := newTestServer(t, newFakeNative())
	defer cleanup()
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	defer ts.Close()

	screen := dialWS(t, ts)
	defer screen.Close()
	if err := screen.WriteMessage(websocket.TextMessage, []byte(`{"type":"register-screen","screenId":"screen-1"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	readType(t, screen, "registered")

	first := dialWS(t, ts)
	defer first.Close()
	if err := first.WriteMessage(websocket.TextMessage, []byte(`{"type":"register-controller","controllerId":"pad-1","screenId":"screen-1"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	readType(t, first, "registered")

	second := dialWS(t, ts)
	defer second.Close()
	if err := second.WriteMessage(websocket.TextMessage, []byte(`{"type":"register-controller","controllerId":"pad-1","screenId":"screen-1"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw := readType(t, second, "registered")
	var reg RegisteredMessage
	if err := json.Unmarshal(raw, &reg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if reg.PlayerNum == nil || *reg.PlayerNum != 0 {
		t.Fatalf("playerNum = %v, want the original slot 0", reg.PlayerNum)
	}

	awaitClosed(t, first)
}

func TestScreenReconnectDisplacesOldConnection(t *testing.T) {
	srv, cleanup := newTestServer(t, newFakeNative())
	defer cleanup()
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	defer ts.Close()

	first := dialWS(t, ts)
	defer first.Close()
	if err := first.WriteMessage(websocket.TextMessage, []byte(`{"type":"register-screen","screenId":"screen-1"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	readType(t, first, "registered")

	second := dialWS(t, ts)
	defer second.Close()
	if err := second.WriteMessage(websocket.TextMessage, []byte(`{"type":"register-screen","screenId":"screen-1"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	readType(t, second, "registered")

	awaitClosed(t, first)

	// New controllers land on the surviving connection.
	pad := dialWS(t, ts)
	defer pad.Close()
	if err := pad.WriteMessage(websocket.TextMessage, []byte(`{"type":"register-controller","controllerId":"pad-1","screenId":"screen-1"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	readType(t, pad, "registered")
	readType(t, second, "controller-connected")
}

package eventfeed

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type parsedSSE struct {
	ID    string
	Event string
	Data  string
}

func readEvent(rd *bufio.Reader) (parsedSSE, error) {
	ev := parsedSSE{}
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return ev, err
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return ev, nil
		}
		if strings.HasPrefix(line, "id: ") {
			ev.ID = strings.TrimPrefix(line, "id: ")
		}
		if strings.HasPrefix(line, "event: ") {
			ev.Event = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			ev.Data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func readEventWithTimeout(t *testing.T, rd *bufio.Reader, timeout time.Duration) parsedSSE {
	t.Helper()
	ch := make(chan parsedSSE, 1)
	errCh := make(chan error, 1)
	go func() {
		ev, err := readEvent(rd)
		if err != nil {
			errCh <- err
			return
		}
		ch <- ev
	}()
	select {
	case ev := <-ch:
		return ev
	case err := <-errCh:
		t.Fatalf("read event: %v", err)
	case <-time.After(timeout):
		t.Fatal("timeout waiting for sse event")
	}
	return parsedSSE{}
}

func TestHandlerReplayThenLive(t *testing.T) {
	buf := NewBuffer(10)
	buf.Append("screen-connected", map[string]any{"screenId": "s1"})
	buf.Append("controller-paired", map[string]any{"controllerId": "c1"})

	srv := httptest.NewServer(Handler(buf))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("Last-Event-ID", "1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open sse: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	rd := bufio.NewReader(resp.Body)
	replayed := readEventWithTimeout(t, rd, time.Second)
	if replayed.ID != "2" || replayed.Event != "controller-paired" {
		t.Fatalf("replay = %+v, want event 2", replayed)
	}

	buf.Append("native-launched", map[string]any{"system": "snes"})
	live := readEventWithTimeout(t, rd, time.Second)
	if live.ID != "3" || live.Event != "native-launched" {
		t.Fatalf("live = %+v, want event 3", live)
	}
}

func TestHandlerPing(t *testing.T) {
	prev := pingInterval
	pingInterval = 20 * time.Millisecond
	defer func() { pingInterval = prev }()

	buf := NewBuffer(10)
	srv := httptest.NewServer(Handler(buf))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("open sse: %v", err)
	}
	defer resp.Body.Close()

	rd := bufio.NewReader(resp.Body)
	ev := readEventWithTimeout(t, rd, time.Second)
	if ev.Event != "ping" {
		t.Fatalf("event = %+v, want ping", ev)
	}
}

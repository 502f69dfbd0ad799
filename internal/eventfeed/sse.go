package eventfeed

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

var pingInterval = 15 * time.Second

// WriteSSE emits one event in text/event-stream framing.
func WriteSSE(w http.ResponseWriter, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if ev.EventID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", ev.EventID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", ev.Kind); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}

// Handler streams the buffer over SSE with Last-Event-ID replay and a
// periodic ping so idle proxies keep the connection open.
func Handler(buf *Buffer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		for _, ev := range buf.ReplayAfter(r.Header.Get("Last-Event-ID")) {
			if err := WriteSSE(w, ev); err != nil {
				return
			}
		}
		flusher.Flush()

		ch := buf.Subscribe()
		defer buf.Unsubscribe(ch)
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if err := WriteSSE(w, ev); err != nil {
					return
				}
				flusher.Flush()
			case <-ticker.C:
				ping := Event{Kind: "ping", ServerTS: time.Now().UnixMilli()}
				if err := WriteSSE(w, ping); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

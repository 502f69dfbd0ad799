package platforms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFeishuAdapterPayloadAndHeader(t *testing.T) {
	var got map[string]any
	var headerSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerSig = r.Header.Get("X-Lark-Signature")
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	adapter := NewFeishuAdapter(NewHTTPClient(time.Second))
	err := adapter.Send(context.Background(), srv.URL, "sig-1", Message{
		Title:       "Game Launched",
		Description: "Now playing smb.nes (nes).",
		Fields:      []Field{{Name: "System", Value: "nes", Inline: true}},
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if headerSig != "sig-1" {
		t.Fatalf("unexpected signature header: %s", headerSig)
	}
	if got["msg_type"] != "interactive" {
		t.Fatalf("unexpected msg_type: %v", got["msg_type"])
	}
	card, ok := got["card"].(map[string]any)
	if !ok {
		t.Fatalf("unexpected card: %#v", got["card"])
	}
	elements, ok := card["elements"].([]any)
	if !ok || len(elements) != 2 {
		t.Fatalf("unexpected elements: %#v", card["elements"])
	}
}

func TestFeishuAdapterOmitsEmptySignature(t *testing.T) {
	sawHeader := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawHeader = r.Header["X-Lark-Signature"]
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	adapter := NewFeishuAdapter(NewHTTPClient(time.Second))
	if err := adapter.Send(context.Background(), srv.URL, "  ", Message{Title: "t"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if sawHeader {
		t.Fatal("blank secret must not set a signature header")
	}
}

package notify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"retrocade/internal/eventfeed"
	"retrocade/internal/metrics"
	"retrocade/internal/notify/platforms"
)

type fakeAdapter struct {
	mu        sync.Mutex
	calls     int
	failFirst int
	forceFail bool
	messages  []platforms.Message
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Send(_ context.Context, _ string, _ string, msg platforms.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.messages = append(f.messages, msg)
	if f.forceFail || f.calls <= f.failFirst {
		return errors.New("fail")
	}
	return nil
}

func (f *fakeAdapter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAdapter) Messages() []platforms.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]platforms.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

func TestManagerRetryThenSuccess(t *testing.T) {
	cfg := Config{
		Enabled:   true,
		Targets:   []Target{{Platform: "fake", Endpoint: "https://example.com", ScopeType: "all", Enabled: true}},
		Workers:   1,
		RetryMax:  2,
		RetryBase: 5 * time.Millisecond,
	}
	m := NewManager(cfg, metrics.New())
	fake := &fakeAdapter{failFirst: 1}
	m.adapters = map[string]platforms.Adapter{"fake": fake}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx, eventfeed.NewBuffer(0)); err != nil {
		t.Fatalf("start manager: %v", err)
	}
	ok := m.enqueue(pushJob{
		Target:    cfg.Targets[0],
		Event:     KioskEvent{Kind: "screen-connected", ScreenID: "screen-1"},
		Formatted: FormattedMessage{Title: "title", Description: "summary"},
	})
	if !ok {
		t.Fatal("expected enqueue success")
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if fake.Calls() >= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected at least 2 calls, got %d", fake.Calls())
}

func TestFeedEventsReachAdapter(t *testing.T) {
	cfg := Config{
		Enabled:   true,
		Targets:   []Target{{Platform: "fake", Endpoint: "https://example.com", ScopeType: "all", Enabled: true}},
		Workers:   1,
		RetryMax:  0,
		RetryBase: 5 * time.Millisecond,
	}
	m := NewManager(cfg, metrics.New())
	fake := &fakeAdapter{}
	m.adapters = map[string]platforms.Adapter{"fake": fake}

	feed := eventfeed.NewBuffer(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx, feed); err != nil {
		t.Fatalf("start manager: %v", err)
	}

	feed.Append("controller-paired", map[string]any{
		"controller_id": "pad-1",
		"screen_id":     "screen-1",
		"player_num":    0,
	})

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if fake.Calls() >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	msgs := fake.Messages()
	if len(msgs) == 0 {
		t.Fatal("expected a delivery from the feed event")
	}
	if msgs[0].Kind != "controller-paired" {
		t.Fatalf("kind = %q", msgs[0].Kind)
	}
	if msgs[0].DeliveryID == "" {
		t.Fatal("expected a delivery id")
	}
	if msgs[0].Payload["controller_id"] != "pad-1" {
		t.Fatalf("payload = %v", msgs[0].Payload)
	}
}

func TestScreenScopedTargetsSkipNativeEvents(t *testing.T) {
	cfg := Config{
		Enabled: true,
		Targets: []Target{
			{Platform: "fake", Endpoint: "https://scoped", ScopeType: "screen", ScopeValue: "screen-1", Enabled: true},
		},
		Workers:   1,
		RetryMax:  0,
		RetryBase: 5 * time.Millisecond,
	}
	m := NewManager(cfg, metrics.New())
	fake := &fakeAdapter{}
	m.adapters = map[string]platforms.Adapter{"fake": fake}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx, eventfeed.NewBuffer(0)); err != nil {
		t.Fatalf("start manager: %v", err)
	}

	m.handleEvent(eventfeed.Event{EventID: "1", Kind: "native-launched", ServerTS: time.Now().UnixMilli(), Data: map[string]any{"system": "nes", "rom": "/r/smb.nes"}})
	m.handleEvent(eventfeed.Event{EventID: "2", Kind: "controller-paired", ServerTS: time.Now().UnixMilli(), Data: map[string]any{"controller_id": "pad-1", "screen_id": "screen-1", "player_num": 0}})

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if fake.Calls() >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	msgs := fake.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected exactly the paired event, got %d deliveries", len(msgs))
	}
	if msgs[0].Kind != "controller-paired" {
		t.Fatalf("kind = %q", msgs[0].Kind)
	}
}

func TestConfigFileAutoReloadAppliesWithoutRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.json")
	if err := os.WriteFile(path, []byte("[]"), 0o600); err != nil {
		t.Fatalf("write initial targets: %v", err)
	}

	cfg := Config{
		Enabled:      true,
		ConfigPath:   path,
		ConfigReload: 20 * time.Millisecond,
		Targets:      nil,
		Workers:      1,
		RetryMax:     0,
		RetryBase:    5 * time.Millisecond,
	}
	m := NewManager(cfg, metrics.New())
	fake := &fakeAdapter{}
	m.adapters = map[string]platforms.Adapter{"fake": fake}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx, eventfeed.NewBuffer(0)); err != nil {
		t.Fatalf("start manager: %v", err)
	}

	event := eventfeed.Event{
		EventID:  "1",
		Kind:     "screen-connected",
		ServerTS: time.Now().UnixMilli(),
		Data:     map[string]any{"screen_id": "screen-1"},
	}

	m.handleEvent(event)
	time.Sleep(40 * time.Millisecond)
	if fake.Calls() != 0 {
		t.Fatalf("expected no calls before config reload, got %d", fake.Calls())
	}

	updated := `[{"platform":"fake","endpoint":"https://example.com","scope_type":"all","enabled":true}]`
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("write updated targets: %v", err)
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if len(m.currentTargets()) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(m.currentTargets()) != 1 {
		t.Fatal("expected reloaded targets in manager")
	}

	m.handleEvent(event)
	deadline = time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if fake.Calls() >= 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected at least 1 call after reload, got %d", fake.Calls())
}

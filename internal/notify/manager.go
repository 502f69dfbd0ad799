// Package notify fans kiosk lifecycle events out to configured
// webhook targets: chat platforms get formatted cards, generic
// endpoints get the raw event. Delivery is best-effort with bounded
// retries and a per-target circuit breaker.
package notify

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"retrocade/internal/eventfeed"
	"retrocade/internal/metrics"
	"retrocade/internal/notify/platforms"
)

type breakerState struct {
	consecutiveFailures int
	openUntil           time.Time
}

type Manager struct {
	cfg      Config
	router   Router
	adapters map[string]platforms.Adapter
	metrics  *metrics.Metrics

	dispatchCh chan pushJob
	retryQ     *retryQueue
	done       chan struct{}

	mu           sync.Mutex
	started      bool
	breakerByKey map[string]breakerState
}

func NewManager(cfg Config, m *metrics.Metrics) *Manager {
	client := platforms.NewHTTPClient(cfg.RequestTimeout)
	adapters := map[string]platforms.Adapter{
		"discord": platforms.NewDiscordAdapter(client),
		"feishu":  platforms.NewFeishuAdapter(client),
		"webhook": platforms.NewWebhookAdapter(client),
	}
	if cfg.DispatchBuffer <= 0 {
		cfg.DispatchBuffer = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.CircuitOpenDuration <= 0 {
		cfg.CircuitOpenDuration = 30 * time.Second
	}

	mgr := &Manager{
		cfg:          cfg,
		router:       Router{},
		adapters:     adapters,
		metrics:      m,
		dispatchCh:   make(chan pushJob, cfg.DispatchBuffer),
		done:         make(chan struct{}),
		breakerByKey: map[string]breakerState{},
	}
	mgr.retryQ = newRetryQueue(mgr.dispatchCh, mgr.done)
	return mgr
}

// Start subscribes to the feed and runs the delivery workers until ctx
// is cancelled. A disabled manager starts nothing.
func (m *Manager) Start(ctx context.Context, feed *eventfeed.Buffer) error {
	if !m.cfg.Enabled || feed == nil {
		return nil
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	for i := 0; i < m.cfg.Workers; i++ {
		go m.worker(ctx)
	}
	if m.cfg.ConfigPath != "" {
		go m.watchConfigLoop(ctx)
	}
	ch := feed.Subscribe()
	go m.consumeFeed(ctx, ch)
	go func() {
		<-ctx.Done()
		close(m.done)
		feed.Unsubscribe(ch)
	}()
	return nil
}

func (m *Manager) consumeFeed(ctx context.Context, ch chan eventfeed.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			m.handleEvent(ev)
		}
	}
}

func (m *Manager) handleEvent(fev eventfeed.Event) {
	if fev.Kind == "" {
		return
	}
	ev := normalizeEvent(fev)
	targets := m.router.MatchTargets(m.currentTargets(), ev)
	if len(targets) == 0 {
		return
	}
	formatted, ok := FormatMessage(ev)
	if !ok {
		return
	}

	for _, target := range targets {
		job := pushJob{DeliveryID: uuid.NewString(), Target: target, Event: ev, Formatted: formatted}
		if !m.enqueue(job) {
			m.metrics.IncNotifyDropped()
		}
	}
}

func (m *Manager) enqueue(job pushJob) bool {
	select {
	case <-m.done:
		return false
	case m.dispatchCh <- job:
		m.metrics.IncNotifyQueued()
		return true
	default:
		return false
	}
}

// QueueLen reports the current dispatch backlog, scraped into the
// queue depth gauge.
func (m *Manager) QueueLen() int {
	return len(m.dispatchCh)
}

func normalizeEvent(fev eventfeed.Event) KioskEvent {
	raw := fev.Data
	if raw == nil {
		raw = map[string]any{}
	}
	return KioskEvent{
		EventID:      fev.EventID,
		Kind:         fev.Kind,
		ServerTS:     fev.ServerTS,
		ScreenID:     stringField(raw, "screen_id"),
		ControllerID: stringField(raw, "controller_id"),
		PlayerNum:    intField(raw, "player_num"),
		System:       stringField(raw, "system"),
		Rom:          stringField(raw, "rom"),
		Core:         stringField(raw, "core"),
		ExitCode:     intField(raw, "code"),
		ExitSignal:   stringField(raw, "signal"),
		Raw:          raw,
	}
}

func (m *Manager) currentTargets() []Target {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Target, len(m.cfg.Targets))
	copy(out, m.cfg.Targets)
	return out
}

func (m *Manager) watchConfigLoop(ctx context.Context) {
	interval := m.cfg.ConfigReload
	if interval <= 0 {
		interval = time.Second
	}
	lastRaw := ""
	if raw, err := os.ReadFile(m.cfg.ConfigPath); err == nil {
		lastRaw = strings.TrimSpace(string(raw))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			raw, err := os.ReadFile(m.cfg.ConfigPath)
			if err != nil {
				log.Warn().Err(err).Str("path", m.cfg.ConfigPath).Msg("notify_config_read_failed")
				continue
			}
			nextRaw := strings.TrimSpace(string(raw))
			if nextRaw == lastRaw {
				continue
			}
			targets, err := parseTargetsJSON(nextRaw)
			if err != nil {
				log.Warn().Err(err).Str("path", m.cfg.ConfigPath).Msg("notify_config_parse_failed")
				continue
			}
			m.mu.Lock()
			m.cfg.Targets = targets
			m.mu.Unlock()
			lastRaw = nextRaw
			log.Info().Int("targets", len(targets)).Msg("notify_config_reloaded")
		}
	}
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return ""
}

func intField(m map[string]any, key string) *int {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	switch vv := v.(type) {
	case float64:
		x := int(vv)
		return &x
	case int:
		x := vv
		return &x
	case int64:
		x := int(vv)
		return &x
	}
	return nil
}

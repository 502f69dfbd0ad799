package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the kiosk control plane.
type Metrics struct {
	registry             *prometheus.Registry
	wsMessagesTotal      *prometheus.CounterVec
	registrationsTotal   *prometheus.CounterVec
	nativeLaunchesTotal  *prometheus.CounterVec
	presenceBroadcasts   prometheus.Counter
	notifyQueuedTotal    prometheus.Counter
	notifyDeliveredTotal prometheus.Counter
	notifyFailedTotal    prometheus.Counter
	notifyDroppedTotal   prometheus.Counter
	notifyRetriedTotal   prometheus.Counter
	notifyCircuitOpen    prometheus.Counter
	screensConnected     prometheus.Gauge
	controllersConnected prometheus.Gauge
	nativeState          prometheus.Gauge
	notifyQueueLen       prometheus.Gauge
}

// New creates and registers Prometheus metrics for the kiosk server.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	wsMessagesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retrocade_ws_messages_total",
		Help: "Total number of websocket messages routed, by message type",
	}, []string{"type"})
	registrationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retrocade_registrations_total",
		Help: "Total number of websocket client registrations, by role",
	}, []string{"role"})
	nativeLaunchesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retrocade_native_launches_total",
		Help: "Total number of native game launch attempts, by result",
	}, []string{"result"})
	presenceBroadcasts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retrocade_presence_broadcasts_total",
		Help: "Total number of presence snapshots broadcast to screens",
	})
	notifyQueuedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retrocade_notify_queued_total",
		Help: "Total number of notification jobs accepted onto the dispatch queue",
	})
	notifyDeliveredTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retrocade_notify_delivered_total",
		Help: "Total number of notifications delivered to a webhook target",
	})
	notifyFailedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retrocade_notify_failed_total",
		Help: "Total number of notification delivery attempts that failed",
	})
	notifyDroppedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retrocade_notify_dropped_total",
		Help: "Total number of notifications dropped after exhausting retries or on a full queue",
	})
	notifyRetriedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retrocade_notify_retried_total",
		Help: "Total number of notification delivery retries scheduled",
	})
	notifyCircuitOpen := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retrocade_notify_circuit_open_total",
		Help: "Total number of notification sends skipped because the target circuit was open",
	})
	screensConnected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "retrocade_screens_connected",
		Help: "Number of screen clients currently registered",
	})
	controllersConnected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "retrocade_controllers_connected",
		Help: "Number of controller clients currently registered",
	})
	nativeState := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "retrocade_native_state",
		Help: "Native runner state (0 idle, 1 launching, 2 running, 3 stopping)",
	})
	notifyQueueLen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "retrocade_notify_queue_len",
		Help: "Current depth of the notification dispatch queue",
	})

	registry.MustRegister(
		wsMessagesTotal,
		registrationsTotal,
		nativeLaunchesTotal,
		presenceBroadcasts,
		notifyQueuedTotal,
		notifyDeliveredTotal,
		notifyFailedTotal,
		notifyDroppedTotal,
		notifyRetriedTotal,
		notifyCircuitOpen,
		screensConnected,
		controllersConnected,
		nativeState,
		notifyQueueLen,
	)

	return &Metrics{
		registry:             registry,
		wsMessagesTotal:      wsMessagesTotal,
		registrationsTotal:   registrationsTotal,
		nativeLaunchesTotal:  nativeLaunchesTotal,
		presenceBroadcasts:   presenceBroadcasts,
		notifyQueuedTotal:    notifyQueuedTotal,
		notifyDeliveredTotal: notifyDeliveredTotal,
		notifyFailedTotal:    notifyFailedTotal,
		notifyDroppedTotal:   notifyDroppedTotal,
		notifyRetriedTotal:   notifyRetriedTotal,
		notifyCircuitOpen:    notifyCircuitOpen,
		screensConnected:     screensConnected,
		controllersConnected: controllersConnected,
		nativeState:          nativeState,
		notifyQueueLen:       notifyQueueLen,
	}
}

// IncWSMessage increments the routed message counter for one message type.
func (m *Metrics) IncWSMessage(msgType string) {
	m.wsMessagesTotal.WithLabelValues(msgType).Inc()
}

// IncRegistration increments the registration counter for a role.
func (m *Metrics) IncRegistration(role string) {
	m.registrationsTotal.WithLabelValues(role).Inc()
}

// IncNativeLaunch increments the launch attempt counter with result "ok" or "error".
func (m *Metrics) IncNativeLaunch(result string) {
	m.nativeLaunchesTotal.WithLabelValues(result).Inc()
}

// IncPresenceBroadcast increments the presence broadcast counter.
func (m *Metrics) IncPresenceBroadcast() {
	m.presenceBroadcasts.Inc()
}

// IncNotifyQueued increments the queued notification counter.
func (m *Metrics) IncNotifyQueued() {
	m.notifyQueuedTotal.Inc()
}

// IncNotifyDelivered increments the delivered notification counter.
func (m *Metrics) IncNotifyDelivered() {
	m.notifyDeliveredTotal.Inc()
}

// IncNotifyFailed increments the failed delivery attempt counter.
func (m *Metrics) IncNotifyFailed() {
	m.notifyFailedTotal.Inc()
}

// IncNotifyDropped increments the dropped notification counter.
func (m *Metrics) IncNotifyDropped() {
	m.notifyDroppedTotal.Inc()
}

// IncNotifyRetried increments the scheduled retry counter.
func (m *Metrics) IncNotifyRetried() {
	m.notifyRetriedTotal.Inc()
}

// IncNotifyCircuitOpen increments the circuit-open skip counter.
func (m *Metrics) IncNotifyCircuitOpen() {
	m.notifyCircuitOpen.Inc()
}

// SetScreens sets the connected screens gauge.
func (m *Metrics) SetScreens(n int) {
	m.screensConnected.Set(float64(n))
}

// SetControllers sets the connected controllers gauge.
func (m *Metrics) SetControllers(n int) {
	m.controllersConnected.Set(float64(n))
}

// SetNativeState sets the native state gauge.
func (m *Metrics) SetNativeState(code int) {
	m.nativeState.Set(float64(code))
}

// SetNotifyQueueLen sets the dispatch queue depth gauge.
func (m *Metrics) SetNotifyQueueLen(n int) {
	m.notifyQueueLen.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values
// (connected clients, native state).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

package httptransport

import "expvar"

// REST-surface counters, served raw at /api/debug/vars. The Prometheus
// registry in internal/metrics counts launches from every entry point;
// these count only the admin HTTP requests.
var (
	launchRequestTotal  = expvar.NewInt("native_launch_request_total")
	launchRequestErrors = expvar.NewInt("native_launch_request_errors_total")
	quitRequestTotal    = expvar.NewInt("native_quit_request_total")
	quitRequestErrors   = expvar.NewInt("native_quit_request_errors_total")
)

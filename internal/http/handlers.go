package http

import (
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady checks that the scripts and the environment file are in place.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	check := func(name, path string) {
		if path == "" {
			checks[name] = "not_configured"
			return
		}
		if _, err := os.Stat(path); err != nil {
			checks[name] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			return
		}
		checks[name] = "ok"
	}
	check("scripts", s.scriptDir)
	check("env_config", s.envConfig.Path())

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}
	if s.auditor.Enabled() {
		checks["audit"] = "ok"
	} else {
		checks["audit"] = "disabled"
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes the counters in Prometheus-like text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	calls, rejects := s.appMetrics.snapshot()
	retries := atomic.LoadInt64(&s.appMetrics.retries)
	uptime := time.Since(s.appMetrics.uptime)

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_server_errors_total Total number of 5xx answers\n")
	fmt.Fprintf(w, "# TYPE http_server_errors_total counter\n")
	fmt.Fprintf(w, "http_server_errors_total %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP http_response_time_microseconds Average response time\n")
	fmt.Fprintf(w, "# TYPE http_response_time_microseconds gauge\n")
	fmt.Fprintf(w, "http_response_time_microseconds %d\n\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP ivr_calls_total IVR operations by action\n")
	fmt.Fprintf(w, "# TYPE ivr_calls_total counter\n")
	for _, c := range calls {
		fmt.Fprintf(w, "ivr_calls_total{action=%q} %d\n", c.action, c.count)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP ivr_bad_requests_total IVR operations rejected for missing parameters\n")
	fmt.Fprintf(w, "# TYPE ivr_bad_requests_total counter\n")
	for _, c := range rejects {
		fmt.Fprintf(w, "ivr_bad_requests_total{action=%q} %d\n", c.action, c.count)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP ivr_period_retries_total Movement queries retried on the previous month\n")
	fmt.Fprintf(w, "# TYPE ivr_period_retries_total counter\n")
	fmt.Fprintf(w, "ivr_period_retries_total %d\n\n", retries)

	fmt.Fprintf(w, "# HELP upstream_failures_total Failed calls to the bank API\n")
	fmt.Fprintf(w, "# TYPE upstream_failures_total counter\n")
	fmt.Fprintf(w, "upstream_failures_total %d\n\n", s.upstream.Failures())

	fmt.Fprintf(w, "# HELP rate_limit_rejected_total Requests rejected by the rate limiter\n")
	fmt.Fprintf(w, "# TYPE rate_limit_rejected_total counter\n")
	fmt.Fprintf(w, "rate_limit_rejected_total %d\n\n", rateLimitMetrics.Rejected)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	envCache := s.envConfig.CacheStats()
	fmt.Fprintf(w, "# HELP env_config_cache_hits_total Environment file lookups served from cache\n")
	fmt.Fprintf(w, "# TYPE env_config_cache_hits_total counter\n")
	fmt.Fprintf(w, "env_config_cache_hits_total %d\n\n", envCache.Hits)

	fmt.Fprintf(w, "# HELP env_config_cache_misses_total Environment file lookups that read the file\n")
	fmt.Fprintf(w, "# TYPE env_config_cache_misses_total counter\n")
	fmt.Fprintf(w, "env_config_cache_misses_total %d\n\n", envCache.Misses)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", uptime.Seconds())
}

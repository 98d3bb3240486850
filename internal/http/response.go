package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"ivr/internal/log"
	"ivr/internal/middleware/trace"
	"ivr/internal/services"
	"ivr/internal/upstream"
)

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithComponent(log.ComponentHTTP).Error("Failed to encode response", log.FieldError, err)
	}
}

func writeReply(w http.ResponseWriter, reply *services.Reply) {
	writeJSON(w, reply.Status(), reply)
}

// finishCall logs, audits and counts one IVR operation.
func (s *Server) finishCall(ctx context.Context, action string, reply *services.Reply, start time.Time) {
	elapsed := time.Since(start)
	requestID := trace.GetRequestID(ctx)

	s.calls.LogCall(ctx, requestID, action, reply.Code.String(), reply.Count, elapsed.Milliseconds())
	s.appMetrics.recordCall(action, reply)
	s.auditor.Record(ctx, services.Call{
		Action:    action,
		RequestID: requestID,
		Reply:     reply,
		Duration:  elapsed,
	})
}

// serveCall runs an IVR operation and writes its reply. A panic inside the
// operation becomes an "Error inesperado" reply.
func (s *Server) serveCall(w http.ResponseWriter, r *http.Request, action string, op func(context.Context) *services.Reply) {
	start := time.Now()
	ctx := r.Context()

	reply := func() (reply *services.Reply) {
		defer func() {
			if rec := recover(); rec != nil {
				err := panicError{value: rec}
				log.FromContext(ctx).ErrorContext(ctx, "IVR operation panicked",
					log.FieldAction, action,
					log.FieldError, err)
				reply = services.Unexpected(err)
			}
		}()
		return op(ctx)
	}()

	writeReply(w, reply)
	s.finishCall(ctx, action, reply, start)
}

type panicError struct {
	value any
}

func (e panicError) Error() string {
	if err, ok := e.value.(error); ok {
		return err.Error()
	}
	if s, ok := e.value.(string); ok {
		return s
	}
	b, _ := json.Marshal(e.value)
	return string(b)
}

// countingPoster counts failed calls to the bank API.
type countingPoster struct {
	next     services.Poster
	failures int64
}

func (p *countingPoster) Post(ctx context.Context, endpoint, bearer string, payload any) (*upstream.Response, error) {
	resp, err := p.next.Post(ctx, endpoint, bearer, payload)
	if err != nil {
		atomic.AddInt64(&p.failures, 1)
	}
	return resp, err
}

func (p *countingPoster) Failures() int64 {
	return atomic.LoadInt64(&p.failures)
}

// appMetrics tracks IVR operations.
type appMetrics struct {
	uptime  time.Time
	retries int64

	mu      sync.Mutex
	calls   map[string]int64
	rejects map[string]int64
}

func newAppMetrics() *appMetrics {
	return &appMetrics{
		uptime:  time.Now(),
		calls:   make(map[string]int64),
		rejects: make(map[string]int64),
	}
}

func (m *appMetrics) recordCall(action string, reply *services.Reply) {
	if reply.Retried {
		atomic.AddInt64(&m.retries, 1)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[action]++
	if reply.Status() == http.StatusBadRequest {
		m.rejects[action]++
	}
}

type actionCount struct {
	action string
	count  int64
}

func (m *appMetrics) snapshot() (calls, rejects []actionCount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedCounts(m.calls), sortedCounts(m.rejects)
}

func sortedCounts(in map[string]int64) []actionCount {
	out := make([]actionCount, 0, len(in))
	for action, n := range in {
		out = append(out, actionCount{action: action, count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].action < out[j].action })
	return out
}

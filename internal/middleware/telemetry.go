package middleware

import (
	"bufio"
	"fmt"
	"math"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const latencyWindowSize = 200

type telemetryRecorder struct {
	response http.ResponseWriter
	status   int
	bytes    int
}

func (r *telemetryRecorder) Header() http.Header {
	return r.response.Header()
}

func (r *telemetryRecorder) WriteHeader(status int) {
	r.status = status
	r.response.WriteHeader(status)
}

func (r *telemetryRecorder) Write(data []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.response.Write(data)
	r.bytes += n
	return n, err
}

func (r *telemetryRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.response.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	if r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return hj.Hijack()
}

func (r *telemetryRecorder) Flush() {
	if f, ok := r.response.(http.Flusher); ok {
		f.Flush()
	}
}

// latencyAggregator keeps the most recent samples per route in a ring.
type latencyAggregator struct {
	mu     sync.Mutex
	size   int
	routes map[string]*ring
}

type ring struct {
	samples []int64
	next    int
}

func newLatencyAggregator(size int) *latencyAggregator {
	return &latencyAggregator{size: size, routes: make(map[string]*ring)}
}

// record adds a sample and returns the route's p50 and p95 over the window.
func (a *latencyAggregator) record(route string, ms int64) (int64, int64) {
	a.mu.Lock()
	rg, ok := a.routes[route]
	if !ok {
		rg = &ring{samples: make([]int64, 0, a.size)}
		a.routes[route] = rg
	}
	if len(rg.samples) < a.size {
		rg.samples = append(rg.samples, ms)
	} else {
		rg.samples[rg.next] = ms
		rg.next = (rg.next + 1) % a.size
	}
	sorted := append([]int64(nil), rg.samples...)
	a.mu.Unlock()

	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return percentile(sorted, 0.5), percentile(sorted, 0.95)
}

func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

// Telemetry logs one line per request with rolling latency percentiles for
// the matched route. Server errors log at warn level; health checks are not
// logged.
func Telemetry(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	latency := newLatencyAggregator(latencyWindowSize)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &telemetryRecorder{response: w}

			next.ServeHTTP(recorder, r)

			if r.URL.Path == "/health" {
				return
			}
			status := recorder.status
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start).Milliseconds()

			route := r.URL.Path
			fields := make([]zap.Field, 0, 12)
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if pattern := rc.RoutePattern(); pattern != "" {
					route = pattern
				}
				for i, key := range rc.URLParams.Keys {
					if key != "*" && i < len(rc.URLParams.Values) {
						fields = append(fields, zap.String(key, rc.URLParams.Values[i]))
					}
				}
			}
			p50, p95 := latency.record(r.Method+" "+route, elapsed)

			fields = append(fields,
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.String("requestId", readRequestID(r)),
				zap.Int("status", status),
				zap.Int("bytes", recorder.bytes),
				zap.Int64("duration_ms", elapsed),
				zap.Int64("p50_ms", p50),
				zap.Int64("p95_ms", p95),
			)
			if status >= 500 {
				logger.Warn("http_request", fields...)
				return
			}
			logger.Info("http_request", fields...)
		})
	}
}

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Check probes a single dependency and returns an error when it is unhealthy.
type Check func(ctx context.Context) error

// State is the reported health of a component.
type State string

const (
	StateUp   State = "up"
	StateDown State = "down"
)

// Report is the JSON body returned by the readiness endpoint.
type Report struct {
	Status    State                 `json:"status"`
	Timestamp time.Time             `json:"timestamp"`
	Checks    map[string]CheckState `json:"checks,omitempty"`
}

// CheckState is the outcome of one dependency probe.
type CheckState struct {
	Status    State  `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Registry holds named dependency checks and serves liveness and readiness.
type Registry struct {
	mu       sync.RWMutex
	checks   map[string]Check
	optional map[string]bool

	timeout time.Duration
}

func NewRegistry() *Registry {
	return &Registry{
		checks:   make(map[string]Check),
		optional: make(map[string]bool),
		timeout:  5 * time.Second,
	}
}

// Add registers a named dependency check. Later registrations with the same
// name replace earlier ones.
func (g *Registry) Add(name string, c Check) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks[name] = c
	delete(g.optional, name)
}

// AddOptional registers a check whose failure is reported but does not flip
// overall readiness to down.
func (g *Registry) AddOptional(name string, c Check) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks[name] = c
	g.optional[name] = true
}

// Liveness answers 200 whenever the process is able to serve requests.
func (g *Registry) Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeReport(w, http.StatusOK, Report{
			Status:    StateUp,
			Timestamp: time.Now().UTC(),
		})
	}
}

// Readiness probes every registered dependency concurrently and answers
// 503 when any of them fails.
func (g *Registry) Readiness() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), g.timeout)
		defer cancel()

		g.mu.RLock()
		checks := make(map[string]Check, len(g.checks))
		optional := make(map[string]bool, len(g.optional))
		for name, c := range g.checks {
			checks[name] = c
			optional[name] = g.optional[name]
		}
		g.mu.RUnlock()

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			results = make(map[string]CheckState, len(checks))
			overall = StateUp
		)
		for name, c := range checks {
			wg.Add(1)
			go func(name string, c Check) {
				defer wg.Done()
				start := time.Now()
				err := c(ctx)
				state := CheckState{Status: StateUp, LatencyMS: time.Since(start).Milliseconds()}
				if err != nil {
					state.Status = StateDown
					state.Error = err.Error()
				}
				mu.Lock()
				results[name] = state
				if err != nil && !optional[name] {
					overall = StateDown
				}
				mu.Unlock()
			}(name, c)
		}
		wg.Wait()

		status := http.StatusOK
		if overall == StateDown {
			status = http.StatusServiceUnavailable
		}
		writeReport(w, status, Report{
			Status:    overall,
			Timestamp: time.Now().UTC(),
			Checks:    results,
		})
	}
}

func writeReport(w http.ResponseWriter, status int, report Report) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(report)
}

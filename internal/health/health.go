// Package health serves songbot's liveness and readiness probes.
//
//   - /healthz reports that the process is up, along with the number of
//     guilds that currently have a voice session.
//   - /readyz returns 200 only when every registered [Checker] passes, which
//     in production means the Discord gateway is connected and at least one
//     resolver backend is accepting lookups.
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail").
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check. Check returns nil when the dependency
// is healthy.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

type result struct {
	Status   string            `json:"status"`
	Sessions *int              `json:"sessions,omitempty"`
	Checks   map[string]string `json:"checks,omitempty"`
}

// Option configures a [Handler].
type Option func(*Handler)

// WithSessionCount reports the value of count on /healthz.
func WithSessionCount(count func() int) Option {
	return func(h *Handler) { h.sessions = count }
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction time.
type Handler struct {
	checkers []Checker
	sessions func() int
}

// New creates a [Handler] that evaluates checkers on every /readyz request.
func New(checkers []Checker, opts ...Option) *Handler {
	h := &Handler{checkers: append([]Checker(nil), checkers...)}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Healthz always answers 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	res := result{Status: "ok"}
	if h.sessions != nil {
		n := h.sessions()
		res.Sessions = &n
	}
	writeJSON(w, http.StatusOK, res)
}

// Readyz runs all checkers concurrently, each under a [checkTimeout]
// deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(h.checkers))
		allOK  = true
	)

	var g errgroup.Group
	for _, c := range h.checkers {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[c.Name] = "fail: " + err.Error()
				allOK = false
			} else {
				checks[c.Name] = "ok"
			}
			return nil
		})
	}
	_ = g.Wait()

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// ErrGatewayDown is reported by [Gateway] while the bot is disconnected.
var ErrGatewayDown = errors.New("discord gateway not connected")

// Gateway returns a checker that passes while ready reports true.
func Gateway(ready func() bool) Checker {
	return Checker{
		Name: "discord",
		Check: func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !ready() {
				return ErrGatewayDown
			}
			return nil
		},
	}
}

// Resolvers returns a checker that fails when every resolver backend's
// circuit breaker is open. states maps backend names to breaker state names
// such as "closed", "open" and "half-open".
func Resolvers(states func() map[string]string) Checker {
	return Checker{
		Name: "resolvers",
		Check: func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			st := states()
			if len(st) == 0 {
				return errors.New("no resolver configured")
			}
			for _, s := range st {
				if s != "open" {
					return nil
				}
			}
			return fmt.Errorf("all %d resolver circuits open", len(st))
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}

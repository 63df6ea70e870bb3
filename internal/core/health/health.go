// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// Checker reports whether a dependency can serve traffic.
type Checker interface {
	Check(ctx context.Context) error
}

type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// ReadinessReporter is implemented by background consumers that know when
// they own partitions.
type ReadinessReporter interface {
	Readiness() (ready bool, partitions []int32)
}

// Reporter adapts a ReadinessReporter to a Checker.
func Reporter(rr ReadinessReporter) Checker {
	return CheckFunc(func(context.Context) error {
		if ok, _ := rr.Readiness(); !ok {
			return fmt.Errorf("no partitions assigned")
		}
		return nil
	})
}

const DefaultCheckTimeout = 2 * time.Second

// Readiness runs every check with a shared timeout and answers 503 when any
// of them fails.
func Readiness(timeout time.Duration, checks map[string]Checker) http.HandlerFunc {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks,omitempty"`
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		out := resp{Status: "ready", Checks: make(map[string]string, len(checks))}
		for name, c := range checks {
			if err := c.Check(ctx); err != nil {
				out.Status = "not_ready"
				out.Checks[name] = err.Error()
				continue
			}
			out.Checks[name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		if out.Status != "ready" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

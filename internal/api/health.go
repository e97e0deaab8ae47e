package api

import (
	"context"
	"net/http"
)

// Pinger covers the database pool's connectivity probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ModelChecker reports whether the language model backend is reachable
// and serving the configured model.
type ModelChecker interface {
	CheckHealth(ctx context.Context) bool
}

// health is a simple health check endpoint for Docker/Kubernetes probes.
// Returns 200 OK with {"status":"ok"}.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness checks the server's dependencies: the database must answer a
// ping and the model backend must pass its health check. Either failure
// returns 503 so load balancers stop routing traffic here.
func readiness(pool Pinger, model ModelChecker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"model":    "ok",
		}
		healthy := true

		if pool == nil {
			checks["database"] = "not configured"
			healthy = false
		} else if err := pool.Ping(r.Context()); err != nil {
			checks["database"] = "unreachable"
			healthy = false
		}

		if model == nil {
			checks["model"] = "not configured"
			healthy = false
		} else if !model.CheckHealth(r.Context()) {
			checks["model"] = "unreachable"
			healthy = false
		}

		status := http.StatusOK
		state := "ready"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "not ready"
		}
		writeJSON(w, status, map[string]any{
			"status": state,
			"checks": checks,
		})
	})
}

package api

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Efrain290493/gft/internal/redeban"
)

// Pinger reports reachability of the token store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SecretChecker reports reachability of the secret backend.
type SecretChecker interface {
	Check(ctx context.Context) error
}

// UpstreamChecker probes the upstream API health endpoint.
type UpstreamChecker interface {
	HealthCheck(ctx context.Context) redeban.HealthStatus
}

// RegisterHealthRoutes wires the composite health endpoint into the mux.
// Any nil dependency is reported as "skipped" rather than failing the check.
func RegisterHealthRoutes(mux *http.ServeMux, store Pinger, secretsBackend SecretChecker, upstream UpstreamChecker) {
	mux.Handle("/api/health", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleHealth(store, secretsBackend, upstream, w, r)
	}), "health"))
}

func handleHealth(store Pinger, secretsBackend SecretChecker, upstream UpstreamChecker, w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	checks := map[string]any{}
	healthy := true

	if store != nil {
		if err := store.Ping(ctx); err != nil {
			checks["token_store"] = map[string]any{"status": "unhealthy", "error": err.Error()}
			healthy = false
		} else {
			checks["token_store"] = map[string]any{"status": "healthy"}
		}
	} else {
		checks["token_store"] = map[string]any{"status": "skipped"}
	}

	if secretsBackend != nil {
		if err := secretsBackend.Check(ctx); err != nil {
			checks["secrets"] = map[string]any{"status": "unhealthy", "error": err.Error()}
			healthy = false
		} else {
			checks["secrets"] = map[string]any{"status": "healthy"}
		}
	} else {
		checks["secrets"] = map[string]any{"status": "skipped"}
	}

	if upstream != nil {
		hs := upstream.HealthCheck(ctx)
		entry := map[string]any{"status": hs.Status}
		if hs.StatusCode != 0 {
			entry["status_code"] = hs.StatusCode
		}
		if hs.Error != "" {
			entry["error"] = hs.Error
		}
		checks["upstream"] = entry
		if hs.Status != "healthy" {
			healthy = false
		}
	} else {
		checks["upstream"] = map[string]any{"status": "skipped"}
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":   status,
		"checks":   checks,
		"metadata": newMetadata(),
	})
}

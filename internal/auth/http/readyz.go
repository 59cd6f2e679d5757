package http

import (
	"net/http"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/cache"
	"github.com/clubdeck/clubdeck/internal/auth/store"
	"github.com/clubdeck/clubdeck/pkg/authclient"
	"github.com/clubdeck/clubdeck/pkg/httpx"
)

// ReadyzHandler is the readiness probe: it checks the relational store and
// the session cache and answers 503 when either is unreachable.
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	ca cache.SessionCache,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authclient.HealthChecks{
			Database: "ok",
			Cache:    "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if err := ca.Ping(r.Context()); err != nil {
			checks.Cache = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := authclient.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}

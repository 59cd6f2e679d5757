package http

import (
	"net/http"
	"time"

	"github.com/clubdeck/clubdeck/pkg/authclient"
	"github.com/clubdeck/clubdeck/pkg/httpx"
)

// LivezHandler is the liveness probe: it answers 200 whenever the process is
// up, with uptime and build version for operators.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := authclient.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		}
		httpx.WriteJSON(w, http.StatusOK, response)
	}
}

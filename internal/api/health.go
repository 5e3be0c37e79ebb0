// internal/api/health.go
// GET /health (spec.md §6.1), grounded on the teacher's cmd/api/main.go
// healthCheck handler.

package api

import (
	"net/http"
	"time"

	"github.com/kiekchat/realtime-core/internal/common/utils"
)

// HubStats is the minimal view health needs from the connection hub.
type HubStats interface {
	ConnectionCount() int
	OnlineUserCount() int
}

var startTime = time.Now()

func HealthCheck(hub HubStats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:        "healthy",
			Uptime:        time.Since(startTime).String(),
			WSConnections: hub.ConnectionCount(),
			OnlineUsers:   hub.OnlineUserCount(),
		}
		utils.SuccessResponse(w, http.StatusOK, resp)
	}
}

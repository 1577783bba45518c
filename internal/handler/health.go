package handler

import (
	"net/http"

	"github.com/slidewise/modelgate/internal/health"
)

// HealthHandler serves the aggregated dependency report. Unhealthy maps to
// 503 so load balancers can take the instance out of rotation; degraded still
// answers 200.
func HealthHandler(monitor *health.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := monitor.OverallHealth()

		status := http.StatusOK
		if report.Status == health.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}

		writeJSON(w, status, report)
	}
}

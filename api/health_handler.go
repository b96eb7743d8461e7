package api

import (
	"net/http"
)

// HealthHandler answers liveness probes
// @Summary Health check
// @Description Reports whether the server is up
// @Tags health
// @Produce json
// @Success 200 {object} StatusResponse
// @Router /health [get]
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

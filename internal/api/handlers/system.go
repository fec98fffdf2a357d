package handlers

import (
	"net/http"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/resilience"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/service"
)

// SystemHandler handles system-related HTTP requests
type SystemHandler struct {
	systemService *service.SystemService
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(systemService *service.SystemService) *SystemHandler {
	return &SystemHandler{
		systemService: systemService,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string   `json:"status"`
	Open   []string `json:"openCircuits,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Health reports whether every upstream is accepting calls.
// An open circuit degrades the service but does not make it unhealthy:
// other metals are still served, so the status code stays 200.
//
// Endpoint: GET /api/system/health
// Response: 200 OK with HealthResponse
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.systemService.CheckHealth(); err != nil {
		response := HealthResponse{
			Status: "degraded",
			Error:  err.Error(),
		}
		for _, snap := range h.systemService.Breakers() {
			if snap.State == resilience.StateOpen {
				response.Open = append(response.Open, string(snap.Source))
			}
		}
		respondJSON(w, http.StatusOK, response)
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// VersionInfoResponse represents the version check response.
type VersionInfoResponse struct {
	AppVersion string `json:"app_version"`
}

// Version handles GET requests to retrieve version information.
//
// Endpoint: GET /api/system/version
// Response: 200 OK with VersionInfoResponse
func (h *SystemHandler) Version(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, VersionInfoResponse{
		AppVersion: h.systemService.CheckVersion(),
	})
}

// Breakers handles GET requests for the circuit breaker state of every upstream.
//
// Endpoint: GET /api/system/breakers
// Response: 200 OK with array of BreakerSnapshot
func (h *SystemHandler) Breakers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.systemService.Breakers())
}

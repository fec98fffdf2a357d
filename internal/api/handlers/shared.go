package handlers

import (
	"net/http"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/api/response"
)

// respondJSON sends a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data any) {
	response.RespondJSON(w, status, data)
}

// wantTrend reports whether the trend query parameter asks for history.
// Accepts "true", "1" and "yes"; anything else means no trend.
func wantTrend(r *http.Request) bool {
	switch r.URL.Query().Get("trend") {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

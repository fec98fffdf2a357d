// Package middleware provides HTTP middleware for request validation and processing.
package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/api/response"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
)

// maxCityLength bounds the city path parameter; no Indian city name comes close.
const maxCityLength = 64

// ValidateMetal validates that the metal URL parameter names a supported metal.
// Returns 400 Bad Request if the metal is missing or unknown.
//
// Example usage in router:
//
//	r.Route("/{metal}", func(r chi.Router) {
//	    r.Use(middleware.ValidateMetal)
//	    r.Get("/", handler.Cities)
//	})
func ValidateMetal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "metal")
		if raw == "" {
			response.RespondError(w, http.StatusBadRequest, "metal is required", "")
			return
		}
		if _, err := model.ParseMetal(raw); err != nil {
			response.RespondError(w, http.StatusBadRequest, "unsupported metal", err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ValidateCity validates that the city URL parameter is present and of a sane length.
// Returns 400 Bad Request otherwise. Unknown cities are not rejected here:
// they resolve to the default city and are flagged in the response.
func ValidateCity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		city := strings.TrimSpace(chi.URLParam(r, "city"))

		if city == "" {
			response.RespondError(w, http.StatusBadRequest, "city is required", "")
			return
		}
		if len(city) > maxCityLength {
			response.RespondError(w, http.StatusBadRequest, "city name too long", "")
			return
		}

		next.ServeHTTP(w, r)
	})
}

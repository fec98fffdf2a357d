package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/api/response"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/apperrors"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/service"
)

// CityHandler handles HTTP requests for city list endpoints.
type CityHandler struct {
	priceService *service.PriceService
}

// NewCityHandler creates a new CityHandler with the provided service dependency.
func NewCityHandler(priceService *service.PriceService) *CityHandler {
	return &CityHandler{
		priceService: priceService,
	}
}

// Cities handles GET requests for the cities a metal is quoted in.
// The list is served from cache and falls back to a built-in list, so it
// does not fail when the upstream is down.
//
// Endpoint: GET /api/cities/{metal}
// Response: 200 OK with array of CityDescriptor
// Error: 400 Bad Request for an unsupported metal
func (h *CityHandler) Cities(w http.ResponseWriter, r *http.Request) {
	metal, err := model.ParseMetal(chi.URLParam(r, "metal"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "unsupported metal", err.Error())
		return
	}

	cities, err := h.priceService.Cities(r.Context(), metal)
	if err != nil {
		response.RespondFetchError(w, apperrors.ErrFailedToRetrieveCities.Error(), err)
		return
	}

	respondJSON(w, http.StatusOK, cities)
}

// Trending handles GET requests for the currently trending cities.
//
// Endpoint: GET /api/cities/trending
// Response: 200 OK with array of CityDescriptor
// Error: 5xx on upstream failure
func (h *CityHandler) Trending(w http.ResponseWriter, r *http.Request) {
	cities, err := h.priceService.TrendingCities(r.Context())
	if err != nil {
		response.RespondFetchError(w, apperrors.ErrFailedToRetrieveCities.Error(), err)
		return
	}

	respondJSON(w, http.StatusOK, cities)
}

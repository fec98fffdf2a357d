package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/api/response"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/apperrors"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/service"
)

// PriceHandler handles HTTP requests for price endpoints.
// It serves as the HTTP layer adapter, parsing requests and delegating
// business logic to the priceService.
type PriceHandler struct {
	priceService *service.PriceService
}

// NewPriceHandler creates a new PriceHandler with the provided service dependency.
func NewPriceHandler(priceService *service.PriceService) *PriceHandler {
	return &PriceHandler{
		priceService: priceService,
	}
}

// Prices handles GET requests for the current price of a metal in a city.
//
// Endpoint: GET /api/prices/{metal}/{city}?trend=true
// Response: 200 OK with GoldRates (gold) or MetalRates (other metals)
// Error: 400 Bad Request for an unsupported metal or empty city
// Error: 502 Bad Gateway, 503 Service Unavailable or 504 Gateway Timeout on upstream failure
func (h *PriceHandler) Prices(w http.ResponseWriter, r *http.Request) {
	metal, err := model.ParseMetal(chi.URLParam(r, "metal"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "unsupported metal", err.Error())
		return
	}

	rates, err := h.priceService.Prices(r.Context(), metal, chi.URLParam(r, "city"), wantTrend(r))
	if err != nil {
		response.RespondFetchError(w, apperrors.ErrFailedToRetrievePrices.Error(), err)
		return
	}

	respondJSON(w, http.StatusOK, rates)
}

// CityRates handles GET requests for every metal Groww quotes in a city.
//
// Endpoint: GET /api/prices/city/{city}
// Response: 200 OK with CityRates
// Error: 404 Not Found when the city has no rates, 5xx on upstream failure
func (h *PriceHandler) CityRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.priceService.CityRates(r.Context(), chi.URLParam(r, "city"))
	if err != nil {
		response.RespondFetchError(w, apperrors.ErrFailedToRetrievePrices.Error(), err)
		return
	}

	respondJSON(w, http.StatusOK, rates)
}

// Trend handles GET requests for the price history of a metal.
//
// Endpoint: GET /api/prices/{metal}/{city}/trend
// Response: 200 OK with MetalTrend
// Error: 400 Bad Request for an unsupported metal or empty city
// Error: 404 Not Found for metals without a history, 5xx on upstream failure
func (h *PriceHandler) Trend(w http.ResponseWriter, r *http.Request) {
	metal, err := model.ParseMetal(chi.URLParam(r, "metal"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "unsupported metal", err.Error())
		return
	}

	trend, err := h.priceService.Trend(r.Context(), metal, chi.URLParam(r, "city"))
	if err != nil {
		response.RespondFetchError(w, apperrors.ErrFailedToRetrieveTrend.Error(), err)
		return
	}

	respondJSON(w, http.StatusOK, trend)
}

// Hint handles GET requests for a compact best-effort price.
// A slow or failing upstream still answers 200 with available=false.
//
// Endpoint: GET /api/prices/{metal}/{city}/hint
// Response: 200 OK with Hint
// Error: 400 Bad Request for an unsupported metal or empty city
func (h *PriceHandler) Hint(w http.ResponseWriter, r *http.Request) {
	metal, err := model.ParseMetal(chi.URLParam(r, "metal"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "unsupported metal", err.Error())
		return
	}

	hint, err := h.priceService.PriceHint(r.Context(), metal, chi.URLParam(r, "city"))
	if err != nil {
		response.RespondFetchError(w, apperrors.ErrFailedToRetrieveHint.Error(), err)
		return
	}

	respondJSON(w, http.StatusOK, hint)
}

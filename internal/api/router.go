package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/api/handlers"
	custommiddleware "github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/api/middleware"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/api/response"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/config"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/service"
)

// NewRouter creates and configures the HTTP router
func NewRouter(systemService *service.SystemService, priceService *service.PriceService, cfg *config.Config, logger logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger(logger))
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.RespondError(w, http.StatusNotFound, "not found", "")
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(systemService)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
			r.Get("/breakers", systemHandler.Breakers)
		})

		r.Route("/prices", func(r chi.Router) {
			priceHandler := handlers.NewPriceHandler(priceService)
			r.With(custommiddleware.ValidateCity).Get("/city/{city}", priceHandler.CityRates)

			r.Route("/{metal}/{city}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateMetal)
				r.Use(custommiddleware.ValidateCity)
				r.Get("/", priceHandler.Prices)
				r.Get("/hint", priceHandler.Hint)
				r.Get("/trend", priceHandler.Trend)
			})
		})

		r.Route("/cities", func(r chi.Router) {
			cityHandler := handlers.NewCityHandler(priceService)
			r.Get("/trending", cityHandler.Trending)
			r.With(custommiddleware.ValidateMetal).Get("/{metal}", cityHandler.Cities)
		})
	})

	return r
}

package http

import (
	"context"
	"net/http"
	"time"

	"github.com/cass-tech/storefront/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthResponseDTO struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewRouter builds the storefront API. The returned handler is traced with
// otelhttp and answers CORS preflights for the configured origins.
func NewRouter(h *CheckoutHandler, httpCfg config.HTTPConfig, corsCfg config.CORSConfig, checks ...HealthCheck) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(MaxBodyMiddleware(httpCfg.MaxRequestBodySize))
	r.Use(AuthMiddleware)

	r.Get("/health", healthHandler(checks))

	r.Route("/api/v1/checkouts/{checkoutID}", func(r chi.Router) {
		r.Get("/", h.GetCheckout)
		r.Put("/email", h.UpdateEmail)
		r.Put("/billing-address", h.UpdateBillingAddress)
		r.Put("/shipping-address", h.UpdateShippingAddress)
		r.Put("/lines", h.UpdateLines)
		r.Post("/payment/{gatewayID}/initialize", h.InitializePayment)
		r.Post("/submit", h.Submit)
		r.Get("/return", h.Return)
		r.Get("/alerts", h.Alerts)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   corsCfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	})

	return otelhttp.NewHandler(c.Handler(r), "storefront",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func healthHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := HealthResponseDTO{Status: "ok"}
		status := http.StatusOK
		for _, c := range checks {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(checks))
			}
			if err := c.Check(ctx); err != nil {
				resp.Checks[c.Name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[c.Name] = "ok"
		}
		respondJSON(w, r, status, resp)
	}
}

package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Cart           *CartHandler
	Orders         *OrdersHandler
	Payments       *PaymentHandler
	Tokens         TokenParser
	Metrics        http.Handler
	RequestTimeout time.Duration
	Log            *slog.Logger
}

// NewRouter mounts the REST surface under /api plus /health and /metrics.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens, cfg.Log))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cfg.Cart.GetCart)
			r.Post("/add", cfg.Cart.AddItem)
			r.Put("/update", cfg.Cart.UpdateItem)
			r.Delete("/remove/{productId}", cfg.Cart.RemoveItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", cfg.Orders.CreateOrder)
			r.Get("/my-orders", cfg.Orders.ListMyOrders)
			r.Get("/{id}", cfg.Orders.GetOrder)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/admin/all", cfg.Orders.ListAllOrders)
				r.Put("/admin/{id}", cfg.Orders.UpdateOrder)
			})
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/create-order", cfg.Payments.CreateIntent)
			r.Post("/verify", cfg.Payments.Verify)
		})
	})

	return otelhttp.NewHandler(r, "storefront",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/health" }),
	)
}

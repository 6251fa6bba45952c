package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/PrasangJhawar/storefront/internal/auth"
	"github.com/PrasangJhawar/storefront/internal/metrics"
)

type RouterDeps struct {
	Tokens   *auth.TokenManager
	Metrics  *metrics.ServerMetrics
	Auth     *AuthHandler
	Products *ProductHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Orders   *OrdersHandler
}

func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(deps.Metrics.Middleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	requireAuth := AuthMiddleware(deps.Tokens)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", deps.Auth.Signup)
			r.Post("/signin", deps.Auth.Signin)
			r.Post("/refresh", deps.Auth.Refresh)
			r.Post("/forgot-password", deps.Auth.ForgotPassword)
			r.Post("/reset-password", deps.Auth.ResetPassword)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", deps.Products.ListProducts)
			r.Get("/{product_id}", deps.Products.GetProduct)

			// Catalog writes are admin only.
			r.Group(func(r chi.Router) {
				r.Use(requireAuth, RequireAdmin)
				r.Post("/", deps.Products.CreateProduct)
				r.Patch("/{product_id}", deps.Products.UpdateProduct)
				r.Delete("/{product_id}", deps.Products.DeleteProduct)
				r.Post("/{product_id}/stock", deps.Products.AdjustStock)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", deps.Cart.GetCart)
				r.Post("/items", deps.Cart.AddItem)
				r.Put("/items/{product_id}", deps.Cart.UpdateQuantity)
				r.Delete("/items/{product_id}", deps.Cart.RemoveItem)
			})

			r.Post("/checkout", deps.Checkout.Checkout)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", deps.Orders.ListOrders)
				r.Get("/{order_id}", deps.Orders.GetOrder)
			})
		})
	})

	return r
}

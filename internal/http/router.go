package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handlers groups everything the router mounts. Sandbox is nil when a real
// payment processor is configured.
type Handlers struct {
	Auth     *Auth
	Catalog  *CatalogHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Sandbox  *SandboxHandler
	Webhook  *WebhookHandler
	Orders   *OrdersHandler
	Admin    *AdminHandler
}

type RouterConfig struct {
	RequestTimeout time.Duration
	SecureCookies  bool
	Logger         logrus.FieldLogger
}

func NewRouter(h Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: cfg.Logger, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if h.Sandbox != nil {
		r.Get("/checkout/sandbox", h.Sandbox.Pay)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/stripe/webhook", h.Webhook.Handle)

		r.Group(func(r chi.Router) {
			r.Use(h.Auth.Authenticate)

			r.Get("/products", h.Catalog.List)
			r.Get("/products/{slug}", h.Catalog.Get)
			r.Get("/sitemap", h.Catalog.Sitemap)

			r.Group(func(r chi.Router) {
				r.Use(CartSession(cfg.SecureCookies))

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", h.Cart.GetCart)
					r.Delete("/", h.Cart.ClearCart)
					r.Post("/items", h.Cart.AddItem)
					r.Patch("/items/{productId}", h.Cart.UpdateQuantity)
					r.Delete("/items/{productId}", h.Cart.RemoveItem)
				})

				r.Post("/checkout", h.Checkout.Checkout)

				r.Get("/orders", h.Orders.GetBySession)
				r.Get("/orders/{id}", h.Orders.GetOrder)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(h.Auth.RequireAdmin)

				r.Get("/products", h.Admin.List)
				r.Post("/products", h.Admin.Create)
				r.Get("/products/{id}", h.Admin.Get)
				r.Patch("/products/{id}", h.Admin.Update)
				r.Delete("/products/{id}", h.Admin.Delete)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}

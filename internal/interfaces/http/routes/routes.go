// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/your-org/storefront-backend/internal/interfaces/http/handlers"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
)

// Handlers groups the endpoint handlers mounted under /api/v1
type Handlers struct {
	Cart    *handlers.CartHandler
	Order   *handlers.OrderHandler
	Payment *handlers.PaymentHandler
}

// SetupRoutes mounts every API route on rg
func SetupRoutes(rg *gin.RouterGroup, h Handlers, tokens middleware.TokenValidator) {
	SetupCartRoutes(rg, h.Cart, tokens)
	SetupOrderRoutes(rg, h.Order, h.Payment, tokens)
	SetupPaymentRoutes(rg, h.Payment)
	SetupAdminRoutes(rg, h.Order, tokens)
}

// SetupCartRoutes sets up cart related routes
func SetupCartRoutes(rg *gin.RouterGroup, h *handlers.CartHandler, tokens middleware.TokenValidator) {
	carts := rg.Group("/cart")
	carts.Use(middleware.AuthMiddleware(tokens))
	{
		carts.GET("", h.GetCart)
		carts.DELETE("", h.ClearCart)
		carts.GET("/count", h.CountItems)
		carts.POST("/merge", h.MergeCart)
		carts.POST("/items", h.AddItem)
		carts.PUT("/items/:product_id", h.SetItem)
		carts.DELETE("/items/:product_id", h.RemoveItem)
	}
}

// SetupOrderRoutes sets up order related routes
func SetupOrderRoutes(rg *gin.RouterGroup, h *handlers.OrderHandler, payments *handlers.PaymentHandler, tokens middleware.TokenValidator) {
	orders := rg.Group("/orders")
	{
		// Anonymous checkout and order lookups by id
		public := orders.Group("")
		public.Use(middleware.OptionalAuthMiddleware(tokens))
		{
			public.POST("/anonymous", h.CreateAnonymousOrder)
			public.GET("/:id", h.GetOrder)
			public.GET("/:id/history", h.GetHistory)
			public.POST("/:id/payment", payments.PayOrder)
		}

		protected := orders.Group("")
		protected.Use(middleware.AuthMiddleware(tokens))
		{
			protected.POST("", h.CreateOrder)
			protected.GET("", h.ListOrders)
		}
	}
}

// SetupPaymentRoutes sets up gateway callbacks and fundraising routes
func SetupPaymentRoutes(rg *gin.RouterGroup, h *handlers.PaymentHandler) {
	rg.POST("/payments/callback", h.Callback)

	campaigns := rg.Group("/campaigns")
	{
		campaigns.GET("/:id", h.GetCampaign)
		campaigns.POST("/:id/donations", h.Donate)
	}
}

// SetupAdminRoutes sets up admin related routes
func SetupAdminRoutes(rg *gin.RouterGroup, h *handlers.OrderHandler, tokens middleware.TokenValidator) {
	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokens))
	admin.Use(middleware.AdminMiddleware())
	{
		admin.POST("/orders/:id/status", h.AppendStatus)
	}
}

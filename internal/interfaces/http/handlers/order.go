// internal/interfaces/http/handlers/order.go
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
)

// OrderService creates and reads orders
type OrderService interface {
	CreateFromCart(ctx context.Context, userID uint, req order.CreateOrderRequest) (*order.Order, error)
	CreateAnonymous(ctx context.Context, req order.AnonymousOrderRequest) (*order.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error)
	ListForUser(ctx context.Context, userID uint, limit int) ([]order.Order, error)
	History(ctx context.Context, id uuid.UUID) ([]order.StatusHistory, error)
	AppendStatus(ctx context.Context, id uuid.UUID, status order.Status, comment string) error
}

// OrderHandler handles order endpoints
type OrderHandler struct {
	orders OrderService
	log    logrus.FieldLogger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders OrderService, log logrus.FieldLogger) *OrderHandler {
	return &OrderHandler{orders: orders, log: log}
}

type appendStatusRequest struct {
	Status  order.Status `json:"status" binding:"required"`
	Comment string       `json:"comment"`
}

// CreateOrder handles POST /orders, turning the caller's cart into an order
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req order.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	created, err := h.orders.CreateFromCart(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order created successfully",
		"data":    created,
	})
}

// CreateAnonymousOrder handles POST /orders/anonymous
func (h *OrderHandler) CreateAnonymousOrder(c *gin.Context) {
	var req order.AnonymousOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	created, err := h.orders.CreateAnonymous(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order created successfully",
		"data":    created,
	})
}

// GetOrder handles GET /orders/:id. Orders placed by a user are visible to
// that user and to admins; anonymous orders to anyone holding the id.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	o, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !canView(c, o) {
		c.JSON(http.StatusNotFound, gin.H{"error": order.ErrOrderNotFound.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order retrieved successfully",
		"data":    o,
	})
}

// ListOrders handles GET /orders?limit=20
func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	orders, err := h.orders.ListForUser(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Orders retrieved successfully",
		"data":    orders,
	})
}

// GetHistory handles GET /orders/:id/history
func (h *OrderHandler) GetHistory(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	o, err := h.orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if !canView(c, o) {
		c.JSON(http.StatusNotFound, gin.H{"error": order.ErrOrderNotFound.Error()})
		return
	}

	history, err := h.orders.History(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order history retrieved successfully",
		"data":    history,
	})
}

// AppendStatus handles POST /admin/orders/:id/status
func (h *OrderHandler) AppendStatus(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req appendStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.orders.AppendStatus(c.Request.Context(), id, req.Status, req.Comment); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order status updated successfully",
		"data":    gin.H{"order_id": id, "status": req.Status},
	})
}

func canView(c *gin.Context, o *order.Order) bool {
	if o.UserID == nil || middleware.IsAdminFromContext(c) {
		return true
	}
	userID, ok := middleware.GetUserIDFromContext(c)
	return ok && userID == *o.UserID
}

func orderIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return uuid.Nil, false
	}
	return id, true
}

// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/your-org/storefront-backend/internal/domain/cart"
)

// CartService is the cart façade as seen by HTTP
type CartService interface {
	GetCart(ctx context.Context, userID uint) ([]cart.Entry, error)
	UpsertItem(ctx context.Context, userID, productID uint, quantity int) error
	AddItem(ctx context.Context, userID, productID uint, delta int) (int, error)
	DeleteItem(ctx context.Context, userID, productID uint) error
	Clear(ctx context.Context, userID uint) error
	MergeLocalCart(ctx context.Context, userID uint, lines []cart.LineInput) error
	CountItems(ctx context.Context, userID uint, includeDuplicates bool) (int, error)
}

// CartHandler handles cart endpoints
type CartHandler struct {
	carts CartService
	log   logrus.FieldLogger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(carts CartService, log logrus.FieldLogger) *CartHandler {
	return &CartHandler{carts: carts, log: log}
}

type cartResponse struct {
	Items  []cart.Entry `json:"items"`
	Totals cart.Totals  `json:"totals"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type mergeCartRequest struct {
	Lines []cart.LineInput `json:"lines"`
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	entries, err := h.carts.GetCart(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart retrieved successfully",
		"data": cartResponse{
			Items:  entries,
			Totals: cart.CalculateTotals(entries),
		},
	})
}

// SetItem handles PUT /cart/items/:product_id
func (h *CartHandler) SetItem(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	productID, ok := productIDParam(c)
	if !ok {
		return
	}

	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.carts.UpsertItem(c.Request.Context(), userID, productID, req.Quantity); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart item updated successfully",
		"data":    gin.H{"product_id": productID, "quantity": req.Quantity},
	})
}

// AddItem handles POST /cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req cart.LineInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	quantity, err := h.carts.AddItem(c.Request.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item added to cart successfully",
		"data":    gin.H{"product_id": req.ProductID, "quantity": quantity},
	})
}

// RemoveItem handles DELETE /cart/items/:product_id
func (h *CartHandler) RemoveItem(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	productID, ok := productIDParam(c)
	if !ok {
		return
	}

	if err := h.carts.DeleteItem(c.Request.Context(), userID, productID); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart successfully"})
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.carts.Clear(c.Request.Context(), userID); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared successfully"})
}

// MergeCart handles POST /cart/merge, replacing the cart with a locally kept one
func (h *CartHandler) MergeCart(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req mergeCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.carts.MergeLocalCart(c.Request.Context(), userID, req.Lines); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart merged successfully"})
}

// CountItems handles GET /cart/count?include_duplicates=true
func (h *CartHandler) CountItems(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	includeDuplicates, _ := strconv.ParseBool(c.Query("include_duplicates"))

	count, err := h.carts.CountItems(c.Request.Context(), userID, includeDuplicates)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart count retrieved successfully",
		"data":    gin.H{"count": count},
	})
}

func productIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("product_id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return 0, false
	}
	return uint(id), true
}

// internal/interfaces/http/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/payment"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
	"github.com/your-org/storefront-backend/internal/pkg/validation"
)

type errorMapping struct {
	target error
	status int
}

var domainErrors = []errorMapping{
	{cart.ErrProductNotFound, http.StatusNotFound},
	{product.ErrProductNotFound, http.StatusNotFound},
	{order.ErrOrderNotFound, http.StatusNotFound},
	{payment.ErrTransactionNotFound, http.StatusNotFound},
	{payment.ErrCampaignNotFound, http.StatusNotFound},

	{cart.ErrCartFull, http.StatusConflict},
	{order.ErrEmptyOrder, http.StatusConflict},
	{order.ErrInvalidTransition, http.StatusConflict},
	{payment.ErrAmountMismatch, http.StatusConflict},
	{payment.ErrAlreadyPaid, http.StatusConflict},
	{payment.ErrCampaignFinished, http.StatusConflict},

	{order.ErrInvalidStatus, http.StatusBadRequest},
	{payment.ErrInvalidSignature, http.StatusForbidden},

	{order.ErrRetryable, http.StatusServiceUnavailable},
	{payment.ErrRetryable, http.StatusServiceUnavailable},
}

// respondError maps a service error onto a status code and body. Anything
// unrecognised is logged and reported as a generic 500.
func respondError(c *gin.Context, log logrus.FieldLogger, err error) {
	var ve *validation.Error
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Validation failed",
			"details": ve.Fields,
		})
		return
	}

	for _, m := range domainErrors {
		if errors.Is(err, m.target) {
			if m.status == http.StatusServiceUnavailable {
				c.Header("Retry-After", "1")
			}
			c.JSON(m.status, gin.H{"error": err.Error()})
			return
		}
	}

	log.WithError(err).WithFields(logrus.Fields{
		"request_id": middleware.GetRequestID(c),
		"path":       c.FullPath(),
	}).Error("Unhandled request error")

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request data",
		"details": err.Error(),
	})
}

func requireUser(c *gin.Context) (uint, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	}
	return userID, ok
}

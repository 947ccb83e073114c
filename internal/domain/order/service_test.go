package order

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/pkg/logger"
	"github.com/your-org/storefront-backend/internal/pkg/notify"
	"github.com/your-org/storefront-backend/internal/pkg/validation"
)

type nopInvalidator struct{}

func (nopInvalidator) InvalidateCache(context.Context, ...uint) {}

func validRequest() CreateOrderRequest {
	return CreateOrderRequest{
		Recipient: RecipientInput{
			FirstName:   "Olena",
			LastName:    "Shevchenko",
			PhoneNumber: "+380501234567",
		},
		PaymentMethod:     PaymentMethodCard,
		DeliveryCarrier:   "nova_poshta",
		DeliveryWarehouse: "Kyiv #12",
	}
}

// The service has no database: validation must fail before any query runs.
func newOfflineService() *Service {
	log := logger.Discard()
	return NewService(nil, nopInvalidator{}, notify.NewLogNotifier(log), config.DatabaseConfig{TxTimeout: time.Second}, log)
}

func TestCreateFromCart_RejectsInvalidRequest(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreateOrderRequest)
		field  string
	}{
		{name: "missing first name", mutate: func(r *CreateOrderRequest) { r.Recipient.FirstName = "" }, field: "recipient.first_name"},
		{name: "bad phone", mutate: func(r *CreateOrderRequest) { r.Recipient.PhoneNumber = "call me" }, field: "recipient.phone_number"},
		{name: "unknown payment method", mutate: func(r *CreateOrderRequest) { r.PaymentMethod = "barter" }, field: "payment_method"},
		{name: "no warehouse", mutate: func(r *CreateOrderRequest) { r.DeliveryWarehouse = "" }, field: "delivery_warehouse"},
	}

	svc := newOfflineService()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			_, err := svc.CreateFromCart(context.Background(), 1, req)

			var verr *validation.Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
		})
	}
}

func TestCreateAnonymous_RequiresLines(t *testing.T) {
	svc := newOfflineService()

	_, err := svc.CreateAnonymous(context.Background(), AnonymousOrderRequest{CreateOrderRequest: validRequest()})
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "lines", verr.Fields[0].Field)

	_, err = svc.CreateAnonymous(context.Background(), AnonymousOrderRequest{
		CreateOrderRequest: validRequest(),
		Lines:              []cart.LineInput{{ProductID: 1, Quantity: -1}},
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "lines[0].quantity", verr.Fields[0].Field)
}

func TestAppendStatus_RejectsUnknownStatus(t *testing.T) {
	err := newOfflineService().AppendStatus(context.Background(), uuid.New(), "lost", "")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestMergeLines(t *testing.T) {
	ids, quantities := mergeLines([]cart.LineInput{
		{ProductID: 7, Quantity: 1},
		{ProductID: 3, Quantity: 2},
		{ProductID: 7, Quantity: 4},
	})

	assert.Equal(t, pq.Int64Array{7, 3}, ids)
	assert.Equal(t, pq.Int64Array{5, 2}, quantities)
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusProcessing.CanTransitionTo(StatusPaid))
	assert.True(t, StatusPaid.CanTransitionTo(StatusShipped))
	assert.True(t, StatusShipped.CanTransitionTo(StatusCompleted))
	assert.False(t, StatusPaid.CanTransitionTo(StatusPaid))
	assert.False(t, StatusCompleted.CanTransitionTo(StatusCancelled))
	assert.False(t, StatusCancelled.CanTransitionTo(StatusProcessing))
	assert.False(t, Status("lost").Valid())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40P01"})))
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	assert.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRetryable(errors.New("boom")))
}

func TestOrderTotalAndID(t *testing.T) {
	o := &Order{Items: []Item{
		{Quantity: 2, Price: decimal.RequireFromString("10.25")},
		{Quantity: 1, Price: decimal.RequireFromString("5")},
	}}
	assert.Equal(t, "25.50", o.Total().StringFixed(2))

	require.NoError(t, o.BeforeCreate(nil))
	assert.NotEqual(t, uuid.Nil, o.ID)
}

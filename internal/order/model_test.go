package order_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/artisansalley/backend/internal/order"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from    order.Status
		to      order.Status
		allowed bool
	}{
		{order.StatusPending, order.StatusProcessing, true},
		{order.StatusPending, order.StatusShipped, true},
		{order.StatusPending, order.StatusCancelled, true},
		{order.StatusProcessing, order.StatusShipped, true},
		{order.StatusProcessing, order.StatusCancelled, true},
		{order.StatusShipped, order.StatusDelivered, true},
		{order.StatusShipped, order.StatusCancelled, false},
		{order.StatusDelivered, order.StatusCancelled, false},
		{order.StatusCancelled, order.StatusPending, false},
		{order.StatusDelivered, order.StatusPending, false},
		{order.StatusPending, order.StatusDelivered, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"_to_"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStatusCancellable(t *testing.T) {
	assert.True(t, order.StatusPending.Cancellable())
	assert.True(t, order.StatusProcessing.Cancellable())
	assert.False(t, order.StatusShipped.Cancellable())
	assert.False(t, order.StatusDelivered.Cancellable())
	assert.False(t, order.StatusCancelled.Cancellable())
}

func TestPaymentStatusTransitions(t *testing.T) {
	assert.True(t, order.PaymentPending.CanTransitionTo(order.PaymentPaid))
	assert.True(t, order.PaymentPending.CanTransitionTo(order.PaymentFailed))
	assert.True(t, order.PaymentFailed.CanTransitionTo(order.PaymentPending))
	assert.True(t, order.PaymentPaid.CanTransitionTo(order.PaymentRefunded))
	assert.False(t, order.PaymentPaid.CanTransitionTo(order.PaymentPending))
	assert.False(t, order.PaymentRefunded.CanTransitionTo(order.PaymentPaid))
}

func TestParseStatus(t *testing.T) {
	st, err := order.ParseStatus("PENDING")
	assert.NoError(t, err)
	assert.Equal(t, order.StatusPending, st)

	_, err = order.ParseStatus("pending")
	assert.Error(t, err)

	_, err = order.ParseStatus("BOGUS")
	assert.Error(t, err)
}

func TestParsePaymentStatus(t *testing.T) {
	ps, err := order.ParsePaymentStatus("PAID")
	assert.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, ps)

	_, err = order.ParsePaymentStatus("PAYED")
	assert.Error(t, err)
}

package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eco13rus/checkout-saga/internal/domain"
)

type mockPaymentLookup struct {
	mock.Mock
}

func (m *mockPaymentLookup) ProcessForLookup(ctx context.Context, principal domain.Principal, currency, gatewayTxnID string) (string, bool, error) {
	args := m.Called(ctx, principal, currency, gatewayTxnID)
	return args.String(0), args.Bool(1), args.Error(2)
}

type mockOrderLookup struct {
	mock.Mock
}

func (m *mockOrderLookup) GetByPaymentID(ctx context.Context, principal domain.Principal, paymentID string) (OrderProjection, bool, error) {
	args := m.Called(ctx, principal, paymentID)
	if args.Get(0) == nil {
		return OrderProjection{}, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(OrderProjection), args.Bool(1), args.Error(2)
}

func newTestResolver(payments *mockPaymentLookup, orders *mockOrderLookup) *Resolver {
	r := NewResolver(payments, orders)
	r.sleep = func(time.Duration) {} // без реальных задержек в тестах
	return r
}

func TestResolver_Resolve_PaymentNotFound(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	payments := new(mockPaymentLookup)
	orders := new(mockOrderLookup)

	payments.On("ProcessForLookup", ctx, principal, "INR", "gw-tx-1").Return("", false, nil)

	resolver := newTestResolver(payments, orders)
	_, err := resolver.Resolve(ctx, principal, "INR", "gw-tx-1")

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindEmptyCart))
	orders.AssertNotCalled(t, "GetByPaymentID")
}

func TestResolver_Resolve_OrderFoundOnFirstAttempt(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	payments := new(mockPaymentLookup)
	orders := new(mockOrderLookup)

	payments.On("ProcessForLookup", ctx, principal, "INR", "gw-tx-1").Return("pay-1", true, nil)
	orders.On("GetByPaymentID", ctx, principal, "pay-1").Return(OrderProjection{
		OrderID: "order-1", OrderNumber: "ORD-001", Total: domain.Money{Amount: 1000, Currency: "INR"},
	}, true, nil)

	resolver := newTestResolver(payments, orders)
	result, err := resolver.Resolve(ctx, principal, "INR", "gw-tx-1")

	require.NoError(t, err)
	assert.Equal(t, "order-1", result.OrderID)
	assert.Equal(t, "ORD-001", result.OrderNumber)
	assert.Equal(t, "pay-1", result.PaymentID)
	assert.Equal(t, domain.StatusPlaced, result.Status)
	orders.AssertNumberOfCalls(t, "GetByPaymentID", 1)
}

func TestResolver_Resolve_OrderFoundOnRetry(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	payments := new(mockPaymentLookup)
	orders := new(mockOrderLookup)

	payments.On("ProcessForLookup", ctx, principal, "INR", "gw-tx-1").Return("pay-1", true, nil)
	orders.On("GetByPaymentID", ctx, principal, "pay-1").Return(nil, false, nil).Twice()
	orders.On("GetByPaymentID", ctx, principal, "pay-1").Return(OrderProjection{
		OrderID: "order-1", OrderNumber: "ORD-001", Total: domain.Money{Amount: 500, Currency: "INR"},
	}, true, nil).Once()

	resolver := newTestResolver(payments, orders)
	result, err := resolver.Resolve(ctx, principal, "INR", "gw-tx-1")

	require.NoError(t, err)
	assert.Equal(t, "order-1", result.OrderID)
	orders.AssertNumberOfCalls(t, "GetByPaymentID", 3)
}

func TestResolver_Resolve_OrderNotFoundAfterRetries(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	payments := new(mockPaymentLookup)
	orders := new(mockOrderLookup)

	payments.On("ProcessForLookup", ctx, principal, "INR", "gw-tx-1").Return("pay-1", true, nil)
	orders.On("GetByPaymentID", ctx, principal, "pay-1").Return(nil, false, nil)

	resolver := newTestResolver(payments, orders)
	_, err := resolver.Resolve(ctx, principal, "INR", "gw-tx-1")

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindOrderNotFound))
	orders.AssertNumberOfCalls(t, "GetByPaymentID", len(retryDelays))
}

func TestResolver_Resolve_PaymentLookupError(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	payments := new(mockPaymentLookup)
	orders := new(mockOrderLookup)

	upstreamErr := errors.New("payment service unreachable")
	payments.On("ProcessForLookup", ctx, principal, "INR", "gw-tx-1").Return("", false, upstreamErr)

	resolver := newTestResolver(payments, orders)
	_, err := resolver.Resolve(ctx, principal, "INR", "gw-tx-1")

	require.Error(t, err)
	assert.Equal(t, upstreamErr, err)
}

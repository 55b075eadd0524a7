package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eco13rus/checkout-saga/internal/client"
	"github.com/eco13rus/checkout-saga/internal/domain"
	"github.com/eco13rus/checkout-saga/internal/pricing"
)

// =============================================================================
// Моки зависимостей Engine
// =============================================================================

type mockCartSource struct{ mock.Mock }

func (m *mockCartSource) GetCart(ctx context.Context, principal domain.Principal) (domain.CartSnapshot, error) {
	args := m.Called(ctx, principal)
	return args.Get(0).(domain.CartSnapshot), args.Error(1)
}

func (m *mockCartSource) ClearCart(ctx context.Context, principal domain.Principal) error {
	args := m.Called(ctx, principal)
	return args.Error(0)
}

type mockAddressGateway struct{ mock.Mock }

func (m *mockAddressGateway) GetAddress(ctx context.Context, principal domain.Principal, addressID string) (domain.Address, error) {
	args := m.Called(ctx, principal, addressID)
	return args.Get(0).(domain.Address), args.Error(1)
}

type mockStockLocator struct{ mock.Mock }

func (m *mockStockLocator) Pick(ctx context.Context, principal domain.Principal, sku string, requiredQty int32) (string, error) {
	args := m.Called(ctx, principal, sku, requiredQty)
	return args.String(0), args.Error(1)
}

type mockInventoryGateway struct{ mock.Mock }

func (m *mockInventoryGateway) Reserve(ctx context.Context, principal domain.Principal, tempOrderID string, items []client.ReserveItem) error {
	args := m.Called(ctx, principal, tempOrderID, items)
	return args.Error(0)
}

func (m *mockInventoryGateway) Release(ctx context.Context, principal domain.Principal, reservationID string) error {
	args := m.Called(ctx, principal, reservationID)
	return args.Error(0)
}

type mockPaymentGateway struct{ mock.Mock }

func (m *mockPaymentGateway) Process(ctx context.Context, principal domain.Principal, amount domain.Money, orderID, paymentMethodID, gatewayTxnID string) (string, error) {
	args := m.Called(ctx, principal, amount, orderID, paymentMethodID, gatewayTxnID)
	return args.String(0), args.Error(1)
}

func (m *mockPaymentGateway) Refund(ctx context.Context, principal domain.Principal, paymentID, reason string) error {
	args := m.Called(ctx, principal, paymentID, reason)
	return args.Error(0)
}

type mockOrderGateway struct{ mock.Mock }

func (m *mockOrderGateway) Create(ctx context.Context, principal domain.Principal, req client.CreateOrderRequest) (client.CreatedOrder, error) {
	args := m.Called(ctx, principal, req)
	return args.Get(0).(client.CreatedOrder), args.Error(1)
}

type mockEventPublisher struct{ mock.Mock }

func (m *mockEventPublisher) Emit(ctx context.Context, evt EventPayload) {
	m.Called(ctx, evt)
}

// =============================================================================
// Фикстуры
// =============================================================================

func testCart() domain.CartSnapshot {
	return domain.CartSnapshot{
		Items: []domain.CartItem{
			{ProductID: "p1", Name: "Widget", SKU: "SKU-1", Quantity: 2, UnitPrice: domain.Money{Amount: 500, Currency: "INR"}},
		},
		Subtotal: domain.Money{Amount: 1000, Currency: "INR"},
		Currency: "INR",
	}
}

func newTestEngine(cart *mockCartSource, addr *mockAddressGateway, locator *mockStockLocator, inv *mockInventoryGateway, pay *mockPaymentGateway, order *mockOrderGateway, events *mockEventPublisher, resolve func(ctx context.Context, principal domain.Principal, currency, gatewayTxnID string) (domain.CheckoutComplete, error)) *Engine {
	return NewEngine(cart, addr, locator, inv, pay, order, events, pricing.Config{StandardShippingMinor: 100}, resolve)
}

// validAddress строит мок AddressGateway, подтверждающий владение addr-1 —
// нужен каждому тесту, который проходит шаг 2 валидации.
func validAddress(ctx context.Context, principal domain.Principal) *mockAddressGateway {
	addr := new(mockAddressGateway)
	addr.On("GetAddress", ctx, principal, "addr-1").Return(domain.Address{ID: "addr-1"}, nil)
	return addr
}

func noopResolve(ctx context.Context, principal domain.Principal, currency, gatewayTxnID string) (domain.CheckoutComplete, error) {
	return domain.CheckoutComplete{}, errors.New("resolve should not be called")
}

// =============================================================================
// Happy path
// =============================================================================

func TestEngine_Complete_HappyPath(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1", Token: "tok"}
	cart := testCart()

	cartSrc := new(mockCartSource)
	locator := new(mockStockLocator)
	inv := new(mockInventoryGateway)
	pay := new(mockPaymentGateway)
	order := new(mockOrderGateway)
	events := new(mockEventPublisher)

	cartSrc.On("GetCart", ctx, principal).Return(cart, nil)
	locator.On("Pick", ctx, principal, "SKU-1", int32(2)).Return("loc-a", nil)
	inv.On("Reserve", ctx, principal, mock.AnythingOfType("string"), mock.Anything).Return(nil)
	pay.On("Process", ctx, principal, mock.AnythingOfType("domain.Money"), mock.AnythingOfType("string"), "pm-1", "").Return("pay-1", nil)
	order.On("Create", ctx, principal, mock.Anything).Return(client.CreatedOrder{OrderID: "order-1", OrderNumber: "ORD-001"}, nil)
	cartSrc.On("ClearCart", ctx, principal).Return(nil)
	events.On("Emit", ctx, mock.MatchedBy(func(p EventPayload) bool { return p.OrderID == "order-1" })).Return()

	engine := newTestEngine(cartSrc, validAddress(ctx, principal), locator, inv, pay, order, events, noopResolve)

	result, err := engine.Complete(ctx, principal, CompleteRequest{ShippingAddressID: "addr-1", PaymentMethodID: "pm-1"})

	require.NoError(t, err)
	assert.Equal(t, "order-1", result.OrderID)
	assert.Equal(t, "ORD-001", result.OrderNumber)
	assert.Equal(t, domain.StatusPlaced, result.Status)
	cartSrc.AssertExpectations(t)
	inv.AssertExpectations(t)
	pay.AssertExpectations(t)
	order.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestEngine_Complete_ClearCartFailureDegradesStatus(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	cart := testCart()

	cartSrc := new(mockCartSource)
	locator := new(mockStockLocator)
	inv := new(mockInventoryGateway)
	pay := new(mockPaymentGateway)
	order := new(mockOrderGateway)
	events := new(mockEventPublisher)

	cartSrc.On("GetCart", ctx, principal).Return(cart, nil)
	locator.On("Pick", ctx, principal, "SKU-1", int32(2)).Return("loc-a", nil)
	inv.On("Reserve", ctx, principal, mock.Anything, mock.Anything).Return(nil)
	pay.On("Process", ctx, principal, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("pay-1", nil)
	order.On("Create", ctx, principal, mock.Anything).Return(client.CreatedOrder{OrderID: "order-1", OrderNumber: "ORD-001"}, nil)
	cartSrc.On("ClearCart", ctx, principal).Return(errors.New("cart service timeout"))
	events.On("Emit", ctx, mock.Anything).Return()

	engine := newTestEngine(cartSrc, validAddress(ctx, principal), locator, inv, pay, order, events, noopResolve)
	result, err := engine.Complete(ctx, principal, CompleteRequest{ShippingAddressID: "addr-1"})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlacedWithBestEffortFault, result.Status)
}

// =============================================================================
// Валидация (шаг 2)
// =============================================================================

func TestEngine_Complete_EmptyCartWithoutGatewayTxnID(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}

	cartSrc := new(mockCartSource)
	cartSrc.On("GetCart", ctx, principal).Return(domain.CartSnapshot{}, nil)

	engine := newTestEngine(cartSrc, new(mockAddressGateway), new(mockStockLocator), new(mockInventoryGateway), new(mockPaymentGateway), new(mockOrderGateway), new(mockEventPublisher), noopResolve)

	_, err := engine.Complete(ctx, principal, CompleteRequest{ShippingAddressID: "addr-1"})

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindEmptyCart))
}

func TestEngine_Complete_MissingShippingAddress(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	cartSrc := new(mockCartSource)
	cartSrc.On("GetCart", ctx, principal).Return(testCart(), nil)

	engine := newTestEngine(cartSrc, new(mockAddressGateway), new(mockStockLocator), new(mockInventoryGateway), new(mockPaymentGateway), new(mockOrderGateway), new(mockEventPublisher), noopResolve)

	_, err := engine.Complete(ctx, principal, CompleteRequest{})

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindAddressRequired))
}

func TestEngine_Complete_AddressNotFoundStopsBeforeReservation(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	cartSrc := new(mockCartSource)
	cartSrc.On("GetCart", ctx, principal).Return(testCart(), nil)

	addr := new(mockAddressGateway)
	addr.On("GetAddress", ctx, principal, "gone-addr").Return(domain.Address{}, domain.NewAddressNotFound("gone-addr"))
	locator := new(mockStockLocator)

	engine := newTestEngine(cartSrc, addr, locator, new(mockInventoryGateway), new(mockPaymentGateway), new(mockOrderGateway), new(mockEventPublisher), noopResolve)

	_, err := engine.Complete(ctx, principal, CompleteRequest{ShippingAddressID: "gone-addr"})

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindAddressNotFound))
	locator.AssertNotCalled(t, "Pick")
}

func TestEngine_Complete_AddressForbidden(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	cartSrc := new(mockCartSource)
	cartSrc.On("GetCart", ctx, principal).Return(testCart(), nil)

	addr := new(mockAddressGateway)
	addr.On("GetAddress", ctx, principal, "other-users-addr").Return(domain.Address{}, domain.NewAddressForbidden("other-users-addr"))

	engine := newTestEngine(cartSrc, addr, new(mockStockLocator), new(mockInventoryGateway), new(mockPaymentGateway), new(mockOrderGateway), new(mockEventPublisher), noopResolve)

	_, err := engine.Complete(ctx, principal, CompleteRequest{ShippingAddressID: "other-users-addr"})

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindAddressForbidden))
}

// =============================================================================
// Idempotency short-circuit (шаг 1)
// =============================================================================

func TestEngine_Complete_IdempotencyShortCircuit(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	cartSrc := new(mockCartSource)
	cartSrc.On("GetCart", ctx, principal).Return(domain.CartSnapshot{}, nil)

	expected := domain.CheckoutComplete{OrderID: "order-existing", Status: domain.StatusPlaced}
	resolve := func(ctx context.Context, principal domain.Principal, currency, gatewayTxnID string) (domain.CheckoutComplete, error) {
		assert.Equal(t, "gw-tx-1", gatewayTxnID)
		return expected, nil
	}

	engine := newTestEngine(cartSrc, new(mockAddressGateway), new(mockStockLocator), new(mockInventoryGateway), new(mockPaymentGateway), new(mockOrderGateway), new(mockEventPublisher), resolve)

	result, err := engine.Complete(ctx, principal, CompleteRequest{PaymentGatewayTransactionID: "gw-tx-1"})

	require.NoError(t, err)
	assert.Equal(t, expected, result)
}

func TestEngine_Complete_NonEmptyCartSkipsShortCircuit(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	cart := testCart()

	cartSrc := new(mockCartSource)
	locator := new(mockStockLocator)
	inv := new(mockInventoryGateway)
	pay := new(mockPaymentGateway)
	order := new(mockOrderGateway)
	events := new(mockEventPublisher)

	cartSrc.On("GetCart", ctx, principal).Return(cart, nil)
	locator.On("Pick", ctx, principal, "SKU-1", int32(2)).Return("loc-a", nil)
	inv.On("Reserve", ctx, principal, mock.Anything, mock.Anything).Return(nil)
	pay.On("Process", ctx, principal, mock.Anything, mock.Anything, mock.Anything, "gw-tx-1").Return("pay-1", nil)
	order.On("Create", ctx, principal, mock.Anything).Return(client.CreatedOrder{OrderID: "order-1", OrderNumber: "ORD-001"}, nil)
	cartSrc.On("ClearCart", ctx, principal).Return(nil)
	events.On("Emit", ctx, mock.Anything).Return()

	// Непустая корзина — resolve не должен быть вызван, даже если transaction id присутствует.
	engine := newTestEngine(cartSrc, validAddress(ctx, principal), locator, inv, pay, order, events, noopResolve)

	_, err := engine.Complete(ctx, principal, CompleteRequest{ShippingAddressID: "addr-1", PaymentGatewayTransactionID: "gw-tx-1"})

	require.NoError(t, err)
}

// =============================================================================
// Компенсационный каскад (§4.5)
// =============================================================================

func TestEngine_Complete_InsufficientStock_NoCompensationNeeded(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	cart := testCart()

	cartSrc := new(mockCartSource)
	locator := new(mockStockLocator)
	inv := new(mockInventoryGateway)
	pay := new(mockPaymentGateway)
	order := new(mockOrderGateway)
	events := new(mockEventPublisher)

	cartSrc.On("GetCart", ctx, principal).Return(cart, nil)
	locator.On("Pick", ctx, principal, "SKU-1", int32(2)).Return("", domain.NewInsufficientStock("SKU-1"))

	engine := newTestEngine(cartSrc, validAddress(ctx, principal), locator, inv, pay, order, events, noopResolve)
	_, err := engine.Complete(ctx, principal, CompleteRequest{ShippingAddressID: "addr-1"})

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInsufficientStock))
	inv.AssertNotCalled(t, "Release")
	pay.AssertNotCalled(t, "Refund")
}

func TestEngine_Complete_PaymentFailure_ReleasesReservation(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	cart := testCart()

	cartSrc := new(mockCartSource)
	locator := new(mockStockLocator)
	inv := new(mockInventoryGateway)
	pay := new(mockPaymentGateway)
	order := new(mockOrderGateway)
	events := new(mockEventPublisher)

	cartSrc.On("GetCart", ctx, principal).Return(cart, nil)
	locator.On("Pick", ctx, principal, "SKU-1", int32(2)).Return("loc-a", nil)
	inv.On("Reserve", ctx, principal, mock.Anything, mock.Anything).Return(nil)
	pay.On("Process", ctx, principal, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", domain.NewPaymentDeclined(errors.New("card declined")))
	inv.On("Release", ctx, principal, mock.AnythingOfType("string")).Return(nil)

	engine := newTestEngine(cartSrc, validAddress(ctx, principal), locator, inv, pay, order, events, noopResolve)
	_, err := engine.Complete(ctx, principal, CompleteRequest{ShippingAddressID: "addr-1"})

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindPaymentDeclined))
	inv.AssertCalled(t, "Release", ctx, principal, mock.AnythingOfType("string"))
	pay.AssertNotCalled(t, "Refund")
	order.AssertNotCalled(t, "Create")
}

func TestEngine_Complete_OrderCreationFailure_RefundsAndReleases(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	cart := testCart()

	cartSrc := new(mockCartSource)
	locator := new(mockStockLocator)
	inv := new(mockInventoryGateway)
	pay := new(mockPaymentGateway)
	order := new(mockOrderGateway)
	events := new(mockEventPublisher)

	cartSrc.On("GetCart", ctx, principal).Return(cart, nil)
	locator.On("Pick", ctx, principal, "SKU-1", int32(2)).Return("loc-a", nil)
	inv.On("Reserve", ctx, principal, mock.Anything, mock.Anything).Return(nil)
	pay.On("Process", ctx, principal, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("pay-1", nil)
	order.On("Create", ctx, principal, mock.Anything).
		Return(client.CreatedOrder{}, domain.NewOrderCreationFailed(errors.New("order service 500")))
	pay.On("Refund", ctx, principal, "pay-1", mock.AnythingOfType("string")).Return(nil)
	inv.On("Release", ctx, principal, mock.AnythingOfType("string")).Return(nil)

	engine := newTestEngine(cartSrc, validAddress(ctx, principal), locator, inv, pay, order, events, noopResolve)
	_, err := engine.Complete(ctx, principal, CompleteRequest{ShippingAddressID: "addr-1"})

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindOrderCreationFailed))
	pay.AssertCalled(t, "Refund", ctx, principal, "pay-1", mock.AnythingOfType("string"))
	inv.AssertCalled(t, "Release", ctx, principal, mock.AnythingOfType("string"))

	var sagaErr *domain.SagaError
	require.True(t, errors.As(err, &sagaErr))
	assert.Equal(t, "pay-1", sagaErr.SupportReference, "support message must reference the payment id once payment succeeded but order creation failed")
}

func TestEngine_Complete_CompensationFailureStillReturnsOriginalError(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	cart := testCart()

	cartSrc := new(mockCartSource)
	locator := new(mockStockLocator)
	inv := new(mockInventoryGateway)
	pay := new(mockPaymentGateway)
	order := new(mockOrderGateway)
	events := new(mockEventPublisher)

	cartSrc.On("GetCart", ctx, principal).Return(cart, nil)
	locator.On("Pick", ctx, principal, "SKU-1", int32(2)).Return("loc-a", nil)
	inv.On("Reserve", ctx, principal, mock.Anything, mock.Anything).Return(nil)
	declineErr := domain.NewPaymentDeclined(errors.New("card declined"))
	pay.On("Process", ctx, principal, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", declineErr)
	inv.On("Release", ctx, principal, mock.AnythingOfType("string")).Return(errors.New("inventory service down"))

	engine := newTestEngine(cartSrc, validAddress(ctx, principal), locator, inv, pay, order, events, noopResolve)
	_, err := engine.Complete(ctx, principal, CompleteRequest{ShippingAddressID: "addr-1"})

	require.Error(t, err)
	assert.Equal(t, declineErr, err, "failed compensation must not mask the original saga error")
}

func TestEngine_Complete_UnexpectedErrorCarriesSupportReference(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	cart := testCart()

	cartSrc := new(mockCartSource)
	locator := new(mockStockLocator)
	inv := new(mockInventoryGateway)
	pay := new(mockPaymentGateway)
	order := new(mockOrderGateway)
	events := new(mockEventPublisher)

	cartSrc.On("GetCart", ctx, principal).Return(cart, nil)
	locator.On("Pick", ctx, principal, "SKU-1", int32(2)).Return("loc-a", nil)
	inv.On("Reserve", ctx, principal, mock.Anything, mock.Anything).Return(nil)
	pay.On("Process", ctx, principal, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("pay-1", nil)
	order.On("Create", ctx, principal, mock.Anything).
		Return(client.CreatedOrder{}, errors.New("unmapped transport failure"))
	pay.On("Refund", ctx, principal, "pay-1", mock.AnythingOfType("string")).Return(nil)
	inv.On("Release", ctx, principal, mock.AnythingOfType("string")).Return(nil)

	engine := newTestEngine(cartSrc, validAddress(ctx, principal), locator, inv, pay, order, events, noopResolve)
	_, err := engine.Complete(ctx, principal, CompleteRequest{ShippingAddressID: "addr-1"})

	require.Error(t, err)
	var sagaErr *domain.SagaError
	require.True(t, errors.As(err, &sagaErr))
	assert.Equal(t, domain.KindUnexpected, sagaErr.Kind)
	assert.Equal(t, "pay-1", sagaErr.SupportReference)
}

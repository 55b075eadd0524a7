// Package saga реализует прямой пайплайн и компенсационный каскад
// completeCheckout (C5) — ядро спецификации.
package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/eco13rus/checkout-saga/internal/client"
	"github.com/eco13rus/checkout-saga/internal/domain"
	"github.com/eco13rus/checkout-saga/internal/pricing"
	"github.com/eco13rus/checkout-saga/pkg/logger"
	"github.com/eco13rus/checkout-saga/pkg/metrics"
)

// CartSource получает снимок корзины и очищает её после оформления.
type CartSource interface {
	GetCart(ctx context.Context, principal domain.Principal) (domain.CartSnapshot, error)
	ClearCart(ctx context.Context, principal domain.Principal) error
}

// AddressGateway проверяет существование и принадлежность адреса доставки.
type AddressGateway interface {
	GetAddress(ctx context.Context, principal domain.Principal, addressID string) (domain.Address, error)
}

// StockLocator подбирает локацию склада под SKU.
type StockLocator interface {
	Pick(ctx context.Context, principal domain.Principal, sku string, requiredQty int32) (string, error)
}

// InventoryGateway резервирует и освобождает склад.
type InventoryGateway interface {
	Reserve(ctx context.Context, principal domain.Principal, tempOrderID string, items []client.ReserveItem) error
	Release(ctx context.Context, principal domain.Principal, reservationID string) error
}

// PaymentGateway списывает и возвращает средства.
type PaymentGateway interface {
	Process(ctx context.Context, principal domain.Principal, amount domain.Money, orderID, paymentMethodID, gatewayTxnID string) (string, error)
	Refund(ctx context.Context, principal domain.Principal, paymentID, reason string) error
}

// OrderGateway создаёт заказ.
type OrderGateway interface {
	Create(ctx context.Context, principal domain.Principal, req client.CreateOrderRequest) (client.CreatedOrder, error)
}

// EventPublisher публикует OrderCreated best-effort.
type EventPublisher interface {
	Emit(ctx context.Context, evt EventPayload)
}

// EventPayload — данные события OrderCreated, независимые от конкретного
// формата pkg/kafka producer-а (развязка саги от транспорта событий).
type EventPayload struct {
	OrderID  string
	UserID   string
	TenantID string
}

// CompleteRequest — вход completeCheckout.
type CompleteRequest struct {
	ShippingAddressID           string
	PaymentMethodID             string
	PaymentGatewayTransactionID string
}

// Engine оркестрирует прямой пайплайн и компенсации (C5).
type Engine struct {
	cart      CartSource
	address   AddressGateway
	locator   StockLocator
	inventory InventoryGateway
	payment   PaymentGateway
	order     OrderGateway
	events    EventPublisher
	pricing   pricing.Config
	resolve   func(ctx context.Context, principal domain.Principal, currency, gatewayTxnID string) (domain.CheckoutComplete, error)
}

// NewEngine создаёт Engine. resolveIdempotent — делегат к C6 (idempotency.Resolver.Resolve),
// внедряется функцией, чтобы избежать циклической зависимости пакетов saga↔idempotency.
func NewEngine(
	cart CartSource,
	address AddressGateway,
	locator StockLocator,
	inventory InventoryGateway,
	payment PaymentGateway,
	order OrderGateway,
	events EventPublisher,
	pricingCfg pricing.Config,
	resolveIdempotent func(ctx context.Context, principal domain.Principal, currency, gatewayTxnID string) (domain.CheckoutComplete, error),
) *Engine {
	return &Engine{
		cart:      cart,
		address:   address,
		locator:   locator,
		inventory: inventory,
		payment:   payment,
		order:     order,
		events:    events,
		pricing:   pricingCfg,
		resolve:   resolveIdempotent,
	}
}

// Complete выполняет completeCheckout (§4.5).
func (e *Engine) Complete(ctx context.Context, principal domain.Principal, req CompleteRequest) (domain.CheckoutComplete, error) {
	cart, err := e.cart.GetCart(ctx, principal)
	if err != nil {
		return domain.CheckoutComplete{}, err
	}

	// Шаг 1: idempotency short-circuit. Непустая корзина значит, что
	// пользователь активно оформляет заказ — short-circuit пропускается.
	if req.PaymentGatewayTransactionID != "" && cart.IsEmpty() {
		return e.resolve(ctx, principal, defaultCurrencyOrFallback(cart), req.PaymentGatewayTransactionID)
	}

	// Шаг 2: валидация.
	if cart.IsEmpty() {
		return domain.CheckoutComplete{}, domain.NewEmptyCart()
	}
	if req.ShippingAddressID == "" {
		return domain.CheckoutComplete{}, domain.NewAddressRequired()
	}
	// Address service — авторитетный источник существования и принадлежности
	// адреса (§7: AddressNotFound/AddressForbidden); до резервации склада,
	// компенсация ещё не нужна.
	if _, err := e.address.GetAddress(ctx, principal, req.ShippingAddressID); err != nil {
		return domain.CheckoutComplete{}, err
	}

	state := &domain.SagaState{}

	// Шаг 3: тарификация.
	priced, err := pricing.Calculate(e.pricing, cart)
	if err != nil {
		return domain.CheckoutComplete{}, e.compensate(ctx, principal, state, domain.NewUnexpected("ошибка расчёта стоимости", "", err))
	}

	// Шаг 4: резервация склада.
	tempOrderID := uuid.NewString()
	items := make([]client.ReserveItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		locationID, err := e.locator.Pick(ctx, principal, item.SKU, item.Quantity)
		if err != nil {
			return domain.CheckoutComplete{}, e.compensate(ctx, principal, state, err)
		}
		items = append(items, client.ReserveItem{SKU: item.SKU, LocationID: locationID, Quantity: item.Quantity})
	}
	if err := e.inventory.Reserve(ctx, principal, tempOrderID, items); err != nil {
		return domain.CheckoutComplete{}, e.compensate(ctx, principal, state, err)
	}
	// Контракт оркестратора: reservationId — это tempOrderId, который сам
	// оркестратор передал в inventory, независимо от последующего orderId
	// Order service (см. design notes §9 про разрыв cyclic dependency).
	state.MarkReserved(tempOrderID)
	logger.SagaStep("reserve_stock").Str("temp_order_id", tempOrderID).Int("items", len(items)).Msg("склад зарезервирован")

	// Шаг 5: оплата.
	paymentID, err := e.payment.Process(ctx, principal, priced.Total, tempOrderID, req.PaymentMethodID, req.PaymentGatewayTransactionID)
	if err != nil {
		return domain.CheckoutComplete{}, e.compensate(ctx, principal, state, err)
	}
	state.MarkPaid(paymentID)
	logger.SagaStep("process_payment").Str("payment_id", paymentID).Msg("платёж списан")

	// Шаг 6: создание заказа.
	created, err := e.order.Create(ctx, principal, buildOrderRequest(req.ShippingAddressID, paymentID, cart, priced))
	if err != nil {
		return domain.CheckoutComplete{}, e.compensate(ctx, principal, state, err)
	}
	state.MarkOrderCreated(created.OrderID, created.OrderNumber)
	logger.SagaStep("create_order").Str("order_id", created.OrderID).Str("order_number", created.OrderNumber).Msg("заказ создан")

	status := domain.StatusPlaced

	// Шаг 7: очистка корзины (best-effort).
	if err := e.cart.ClearCart(ctx, principal); err != nil {
		logger.Warn().Err(err).Str("order_id", created.OrderID).Msg("не удалось очистить корзину после оформления заказа")
		status = domain.StatusPlacedWithBestEffortFault
	}

	// Шаг 8: публикация события (best-effort).
	e.events.Emit(ctx, EventPayload{OrderID: created.OrderID, UserID: principal.UserID, TenantID: principal.TenantID})

	metrics.RecordSagaOutcome(status)

	// Шаг 9.
	return domain.CheckoutComplete{
		OrderID:     created.OrderID,
		OrderNumber: created.OrderNumber,
		PaymentID:   paymentID,
		Total:       priced.Total,
		Currency:    priced.Currency,
		Status:      status,
		CreatedAt:   time.Now(),
	}, nil
}

// compensate запускает каскад отката (§4.5) и возвращает исходную ошибку,
// переведённую в SagaError, если она ещё им не являлась.
func (e *Engine) compensate(ctx context.Context, principal domain.Principal, state *domain.SagaState, cause error) error {
	// I2: если заказ уже создан, он владеет резервацией и платежом — ни
	// release, ни refund не выполняются (этот путь фактически недостижим,
	// т.к. заказ создаётся последним шагом пайплайна, но проверка защищает
	// от будущих изменений порядка шагов).
	var compensationErrors *multierror.Error

	if !state.HasOrder() {
		if state.OwesRefund() {
			if err := e.payment.Refund(ctx, principal, state.PaymentID(), "saga compensation"); err != nil {
				compensationErrors = multierror.Append(compensationErrors, fmt.Errorf("refund payment %s: %w", state.PaymentID(), err))
				metrics.RecordCompensationAction("refund_payment", "failed")
			} else {
				metrics.RecordCompensationAction("refund_payment", "success")
			}
		}
		if state.OwesRelease() {
			if err := e.inventory.Release(ctx, principal, state.ReservationID()); err != nil {
				compensationErrors = multierror.Append(compensationErrors, fmt.Errorf("release reservation %s: %w", state.ReservationID(), err))
				metrics.RecordCompensationAction("release_reservation", "failed")
			} else {
				metrics.RecordCompensationAction("release_reservation", "success")
			}
		}
	}

	// Неудавшиеся компенсации не меняют классификацию ошибки, возвращаемой
	// клиенту (§7: сага уже провалилась по исходной причине), но объединяются
	// в одну запись лога, чтобы саппорт видел весь каскад, а не последнюю строку.
	if compensationErrors.ErrorOrNil() != nil {
		logger.Warn().Err(compensationErrors).Msg("часть компенсирующих действий саги не удалась")
	}

	metrics.RecordSagaOutcome("FAILED")

	result := classify(state, cause)

	// Платёж уже списан, а заказ так и не создан (сценарий "payment processed,
	// order creation failed") — саппорт должен получить payment id независимо
	// от того, что именно создало cause: собственный SagaError от Order
	// service (вербатим из classify) или непредвиденная ошибка.
	if sagaErr, ok := result.(*domain.SagaError); ok && sagaErr.SupportReference == "" && state.HasPayment() && !state.HasOrder() {
		sagaErr.SupportReference = state.PaymentID()
	}

	return result
}

// classify переводит бизнес-ошибки вербатим (§4.5 "Error translation") и
// оборачивает непредвиденные ошибки в UnexpectedError с сообщением,
// зависящим от прогресса саги (§7).
func classify(state *domain.SagaState, cause error) error {
	if _, ok := cause.(*domain.SagaError); ok {
		return cause
	}

	var message, supportRef string
	switch {
	case state.HasPayment() && state.HasOrder():
		message = fmt.Sprintf("Order created but completion had warnings. Order id %s.", state.OrderID())
		supportRef = state.OrderID()
	case state.HasPayment():
		message = fmt.Sprintf("Payment processed; order creation failed. Contact support with payment id %s.", state.PaymentID())
		supportRef = state.PaymentID()
	case state.HasReservation():
		message = "Inventory reserved but payment failed. Please try again."
		supportRef = state.ReservationID()
	default:
		message = "Unexpected error during checkout."
	}
	return domain.NewUnexpected(message, supportRef, cause)
}

func buildOrderRequest(addressID, paymentID string, cart domain.CartSnapshot, priced domain.PricingResult) client.CreateOrderRequest {
	items := make([]client.CartItemDTO, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, client.CartItemDTO{
			ProductID: item.ProductID,
			SKU:       item.SKU,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.Amount,
		})
	}

	return client.CreateOrderRequest{
		ShippingAddressID: addressID,
		PaymentID:         paymentID,
		Items:             items,
		Subtotal:          priced.Subtotal.Amount,
		DiscountAmount:    priced.Discount.Amount,
		TaxAmount:         priced.Tax.Amount,
		ShippingCost:      priced.Shipping.Amount,
		Total:             priced.Total.Amount,
		Currency:          priced.Currency,
	}
}

func defaultCurrencyOrFallback(cart domain.CartSnapshot) string {
	if cart.Currency != "" {
		return cart.Currency
	}
	return "INR"
}

// Package checkout — корень композиции, связывающий C1–C7 в публичный API
// сервиса, и реализует read-only хелперы C8 (initiateCheckout, cancelCheckout,
// validateAddress, calculateShipping).
package checkout

import (
	"context"
	"time"

	"github.com/eco13rus/checkout-saga/internal/client"
	"github.com/eco13rus/checkout-saga/internal/domain"
	"github.com/eco13rus/checkout-saga/internal/event"
	"github.com/eco13rus/checkout-saga/internal/idempotency"
	"github.com/eco13rus/checkout-saga/internal/pricing"
	"github.com/eco13rus/checkout-saga/internal/saga"
	"github.com/eco13rus/checkout-saga/internal/stock"
)

// Config — параметры бизнес-правил сервиса (§6 Configuration).
type Config struct {
	DefaultCurrency       string
	StandardShippingMinor int64
	ExpressMultiplier     float64
	AllowedRoles          []string
}

// Clients — совокупность downstream адаптеров (C1), внедряется композиционным
// корнем (cmd/checkout/main.go), где для каждого поднят свой httpclient.Client.
type Clients struct {
	Cart      *client.CartClient
	Address   *client.AddressClient
	Inventory *client.InventoryClient
	Payment   *client.PaymentClient
	Order     *client.OrderClient
}

// Service — публичный фасад саги оформления заказа для internal/handler.
type Service struct {
	clients Clients
	cfg     Config
	engine  *saga.Engine
}

// New собирает Service: стратегия поиска локаций (C4), idempotency resolver
// (C6), event emitter (C7) и saga engine (C5), связанные на базе одних и тех
// же клиентов C1.
func New(clients Clients, cfg Config, publisher event.Publisher) *Service {
	locator := stock.NewLocator(clients.Inventory)
	emitter := event.NewEmitter(publisher)

	resolver := idempotency.NewResolver(
		clients.Payment,
		orderLookupAdapter{clients.Order},
	)

	pricingCfg := pricing.Config{StandardShippingMinor: cfg.StandardShippingMinor}

	engine := saga.NewEngine(
		clients.Cart,
		clients.Address,
		locator,
		clients.Inventory,
		clients.Payment,
		clients.Order,
		emitterAdapter{emitter},
		pricingCfg,
		resolver.Resolve,
	)

	return &Service{clients: clients, cfg: cfg, engine: engine}
}

// Complete выполняет POST /complete (§6) — делегирует к C5.
func (s *Service) Complete(ctx context.Context, principal domain.Principal, req saga.CompleteRequest) (domain.CheckoutComplete, error) {
	return s.engine.Complete(ctx, principal, req)
}

// CheckoutSummary — ответ read-only initiateCheckout (C8).
type CheckoutSummary struct {
	Pricing           domain.PricingResult
	AvailabilityIssue string // пустая строка, если весь запрошенный объём доступен
}

// Initiate выполняет шаги 1–3 прямого пайплайна плюс probe доступности
// (read-only, не производит побочных эффектов, §4.8).
func (s *Service) Initiate(ctx context.Context, principal domain.Principal, shippingAddressID string) (CheckoutSummary, error) {
	cart, err := s.clients.Cart.GetCart(ctx, principal)
	if err != nil {
		return CheckoutSummary{}, err
	}
	if cart.IsEmpty() {
		return CheckoutSummary{}, domain.NewEmptyCart()
	}
	if shippingAddressID == "" {
		return CheckoutSummary{}, domain.NewAddressRequired()
	}
	if _, err := s.clients.Address.GetAddress(ctx, principal, shippingAddressID); err != nil {
		return CheckoutSummary{}, err
	}

	priced, err := pricing.Calculate(pricing.Config{StandardShippingMinor: s.cfg.StandardShippingMinor}, cart)
	if err != nil {
		return CheckoutSummary{}, domain.NewUnexpected("ошибка расчёта стоимости", "", err)
	}

	locator := stock.NewLocator(s.clients.Inventory)
	availabilityIssue := ""
	for _, item := range cart.Items {
		if _, err := locator.Pick(ctx, principal, item.SKU, item.Quantity); err != nil {
			availabilityIssue = err.Error()
			break
		}
	}

	return CheckoutSummary{Pricing: priced, AvailabilityIssue: availabilityIssue}, nil
}

// Cancel освобождает резервацию, если она указана; иначе no-op (§4.8).
func (s *Service) Cancel(ctx context.Context, principal domain.Principal, reservationID string) error {
	if reservationID == "" {
		return nil
	}
	return s.clients.Inventory.Release(ctx, principal, reservationID)
}

// AddressValidation — результат validateAddress (C8).
type AddressValidation struct {
	Valid  bool
	Reason string
}

// ValidateAddress проверяет, что street/city/country непусты (§4.8).
// Проверяются только строки, переданные вызывающей стороной; Address service не вызывается.
func (s *Service) ValidateAddress(street, city, country string) AddressValidation {
	if street != "" && city != "" && country != "" {
		return AddressValidation{Valid: true}
	}
	return AddressValidation{Valid: false, Reason: "street, city и country обязательны"}
}

// ShippingOption — один из двух фиксированных вариантов доставки (§4.8).
type ShippingOption struct {
	Method   string
	Days     int
	Cost     domain.Money
}

// CalculateShipping возвращает STANDARD (5 дней, $10) и EXPRESS (2 дня, 1.5×STANDARD).
func (s *Service) CalculateShipping(currency string) []ShippingOption {
	standard := domain.Money{Amount: s.cfg.StandardShippingMinor, Currency: currency}
	express := standard.MultiplyFloat(s.cfg.ExpressMultiplier)

	return []ShippingOption{
		{Method: "STANDARD", Days: 5, Cost: standard},
		{Method: "EXPRESS", Days: 2, Cost: express},
	}
}

// emitterAdapter переводит payload саги в формат event.Emitter, не связывая
// internal/saga с конкретным транспортом событий (pkg/kafka остаётся деталью
// реализации internal/event).
type emitterAdapter struct {
	emitter *event.Emitter
}

func (a emitterAdapter) Emit(ctx context.Context, payload saga.EventPayload) {
	a.emitter.Emit(ctx, event.OrderCreated{
		OrderID:   payload.OrderID,
		UserID:    payload.UserID,
		TenantID:  payload.TenantID,
		Timestamp: time.Now(),
	})
}

// orderLookupAdapter адаптирует client.OrderClient под idempotency.OrderLookup,
// отделяя форму ответа idempotency resolver-а от DTO внешнего клиента.
type orderLookupAdapter struct {
	order *client.OrderClient
}

func (a orderLookupAdapter) GetByPaymentID(ctx context.Context, principal domain.Principal, paymentID string) (idempotency.OrderProjection, bool, error) {
	projection, found, err := a.order.GetByPaymentID(ctx, principal, paymentID)
	if err != nil || !found {
		return idempotency.OrderProjection{}, found, err
	}
	return idempotency.OrderProjection{
		OrderID:     projection.OrderID,
		OrderNumber: projection.OrderNumber,
		Total:       projection.Total,
	}, true, nil
}

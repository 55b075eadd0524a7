package domain

import "time"

// Principal — (userId, tenantId), извлечённые из проверенного bearer-токена
// выше по стеку (pkg/jwt). Непрозрачные идентификаторы, передаются явно в
// каждый downstream-вызов — никогда не кешируются в сервис-scoped поле
// (см. SPEC_FULL.md / design notes: "global token cache is a bug").
type Principal struct {
	UserID   string
	TenantID string
	Role     string
	Token    string // bearer-токен, пробрасывается как есть во все downstream-вызовы
}

// CartItem — одна позиция корзины.
type CartItem struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	SKU        string `json:"sku"`
	Quantity   int32  `json:"quantity"`
	UnitPrice  Money  `json:"unitPrice"`
	TotalPrice Money  `json:"totalPrice"`
}

// CartSnapshot — снимок корзины, полученный заново в начале саги; никогда
// не переиспользуется между шагами, чтобы не устареть за время саги.
type CartSnapshot struct {
	Items          []CartItem `json:"items"`
	Subtotal       Money      `json:"subtotal"`
	DiscountAmount Money      `json:"discountAmount"`
	Currency       string     `json:"currency"`
}

// IsEmpty — корзина пуста, если в ней нет позиций.
func (c CartSnapshot) IsEmpty() bool {
	return len(c.Items) == 0
}

// Address — адрес доставки; авторитетный источник — Address service.
type Address struct {
	ID       string `json:"id"`
	Line1    string `json:"line1"`
	City     string `json:"city"`
	State    string `json:"state"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
}

// StockLocation — доступность товара в конкретной точке хранения.
type StockLocation struct {
	LocationID  string `json:"locationId"`
	AvailableQty int32  `json:"availableQty"`
}

// PricingResult — выход компонента Pricing (C3).
type PricingResult struct {
	Subtotal Money
	Discount Money
	Tax      Money
	Shipping Money
	Total    Money
	Currency string
}

// CheckoutComplete — успешный ответ completeCheckout (шаг 9 пайплайна C5)
// и ответ idempotency resolver (C6) в той же форме.
type CheckoutComplete struct {
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	PaymentID   string    `json:"paymentId"`
	Total       Money     `json:"total"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Терминальные статусы саги — только эти два успешны (§4.5).
const (
	StatusPlaced                   = "PLACED"
	StatusPlacedWithBestEffortFault = "PLACED_WITH_BEST_EFFORT_FAULTS"
)

// SagaState — эфемерный scratchpad одного вызова completeCheckout (C2).
// Каждое поле устанавливается ровно один раз при успехе соответствующего
// шага (I1: монотонный прогресс, поля никогда не возвращаются в nil).
type SagaState struct {
	reservationID string
	paymentID     string
	orderID       string
	orderNumber   string
}

// MarkReserved фиксирует успешную резервацию склада.
func (s *SagaState) MarkReserved(id string) {
	s.reservationID = id
}

// MarkPaid фиксирует успешный платёж.
func (s *SagaState) MarkPaid(id string) {
	s.paymentID = id
}

// MarkOrderCreated фиксирует успешное создание заказа.
func (s *SagaState) MarkOrderCreated(id, number string) {
	s.orderID = id
	s.orderNumber = number
}

func (s *SagaState) ReservationID() string { return s.reservationID }
func (s *SagaState) PaymentID() string     { return s.paymentID }
func (s *SagaState) OrderID() string       { return s.orderID }
func (s *SagaState) OrderNumber() string   { return s.orderNumber }

func (s *SagaState) HasReservation() bool { return s.reservationID != "" }
func (s *SagaState) HasPayment() bool     { return s.paymentID != "" }
func (s *SagaState) HasOrder() bool       { return s.orderID != "" }

// OwesRefund — I2: возврат платежа причитается только если заказ ещё не
// создан (если заказ создан, платёж принадлежит ему и возврат здесь запрещён).
func (s *SagaState) OwesRefund() bool {
	return s.HasPayment() && !s.HasOrder()
}

// OwesRelease — релиз резервации причитается, если она зафиксирована и
// заказ ещё не создан: если заказ создан, он владеет резервацией и
// компенсационный каскад (C5) её не трогает.
func (s *SagaState) OwesRelease() bool {
	return s.HasReservation() && !s.HasOrder()
}

package domain

import "fmt"

// Kind классифицирует доменную ошибку саги оформления заказа для перевода
// в HTTP статус и пользовательское сообщение (см. internal/handler/errors.go).
// Смысловые имена, не привязанные к транспорту — вместо унаследованного от
// источника единственного кода SKU_REQUIRED на все случаи жизни.
type Kind string

const (
	KindEmptyCart           Kind = "EMPTY_CART"
	KindAddressRequired     Kind = "ADDRESS_REQUIRED"
	KindAddressNotFound     Kind = "ADDRESS_NOT_FOUND"
	KindAddressForbidden    Kind = "ADDRESS_FORBIDDEN"
	KindInsufficientStock   Kind = "INSUFFICIENT_STOCK"
	KindPaymentDeclined     Kind = "PAYMENT_DECLINED"
	KindPaymentTimeout      Kind = "PAYMENT_TIMEOUT"
	KindOrderCreationFailed Kind = "ORDER_CREATION_FAILED"
	KindUpstreamContract    Kind = "UPSTREAM_CONTRACT_ERROR"
	KindAuthTokenMissing    Kind = "AUTH_TOKEN_MISSING"
	KindOrderNotFound       Kind = "ORDER_NOT_FOUND"
	KindUnexpected          Kind = "UNEXPECTED_ERROR"
)

// SagaError — ошибка саги оформления заказа с классификацией, достаточной
// для перевода в HTTP ответ и вспомогательными полями для support-сообщений.
type SagaError struct {
	Kind             Kind
	Message          string
	SKU              string // заполняется для KindInsufficientStock
	SupportReference string // reservation/payment/order id, на который ссылается message (KindUnexpected); payment id также для любого Kind, если платёж прошёл, а заказа нет
	Cause            error
}

func (e *SagaError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *SagaError) Unwrap() error {
	return e.Cause
}

// NewEmptyCart возвращается, когда корзина пуста и не может быть разрешена
// через idempotency resolver.
func NewEmptyCart() *SagaError {
	return &SagaError{Kind: KindEmptyCart, Message: "корзина пуста"}
}

func NewAddressRequired() *SagaError {
	return &SagaError{Kind: KindAddressRequired, Message: "не указан адрес доставки"}
}

func NewAddressNotFound(addressID string) *SagaError {
	return &SagaError{Kind: KindAddressNotFound, Message: fmt.Sprintf("адрес %s не найден", addressID)}
}

func NewAddressForbidden(addressID string) *SagaError {
	return &SagaError{Kind: KindAddressForbidden, Message: fmt.Sprintf("адрес %s не принадлежит пользователю", addressID)}
}

// NewInsufficientStock — sku указывается отдельно для использования и в
// сообщении, и как структурированное поле ответа.
func NewInsufficientStock(sku string) *SagaError {
	return &SagaError{
		Kind:    KindInsufficientStock,
		Message: fmt.Sprintf("недостаточно товара на складе: %s", sku),
		SKU:     sku,
	}
}

func NewPaymentDeclined(cause error) *SagaError {
	return &SagaError{Kind: KindPaymentDeclined, Message: "платёж отклонён", Cause: cause}
}

func NewPaymentTimeout(cause error) *SagaError {
	return &SagaError{
		Kind:    KindPaymentTimeout,
		Message: "превышено время ожидания ответа от платёжного сервиса, платёж может ещё обрабатываться",
		Cause:   cause,
	}
}

func NewOrderCreationFailed(cause error) *SagaError {
	return &SagaError{Kind: KindOrderCreationFailed, Message: "не удалось создать заказ", Cause: cause}
}

func NewUpstreamContractError(field string, cause error) *SagaError {
	return &SagaError{
		Kind:    KindUpstreamContract,
		Message: fmt.Sprintf("upstream-сервис нарушил контракт ответа: отсутствует поле %q", field),
		Cause:   cause,
	}
}

func NewAuthTokenMissing() *SagaError {
	return &SagaError{Kind: KindAuthTokenMissing, Message: "bearer-токен не передан во внутренний вызов"}
}

func NewOrderNotFound() *SagaError {
	return &SagaError{Kind: KindOrderNotFound, Message: "заказ не найден по идентификатору платежа"}
}

// NewUnexpected оборачивает непредвиденную ошибку. message подбирается
// вызывающей стороной (C5) в зависимости от того, как далеко продвинулась
// сага — см. §7 (reservation only / payment only / payment+order).
// supportRef — id (reservation/payment/order), упомянутый в message,
// вынесенный структурированным полем для support-агентов.
func NewUnexpected(message, supportRef string, cause error) *SagaError {
	return &SagaError{Kind: KindUnexpected, Message: message, SupportReference: supportRef, Cause: cause}
}

// IsKind — удобный предикат для тестов и обработчиков.
func IsKind(err error, kind Kind) bool {
	var sagaErr *SagaError
	if e, ok := err.(*SagaError); ok {
		sagaErr = e
	} else {
		return false
	}
	return sagaErr.Kind == kind
}

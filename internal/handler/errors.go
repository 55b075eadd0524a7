package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eco13rus/checkout-saga/internal/domain"
	"github.com/eco13rus/checkout-saga/pkg/logger"
)

// errorBody — тело ошибки; SupportReference дублирует структурированным
// полем идентификатор (reservation/payment/order), на который ссылается
// сообщение §7 UnexpectedError, либо payment id для любой ошибки после прошедшего
// платежа без созданного заказа — чтобы саппорт не парсил текст сообщения.
type errorBody struct {
	Error            string    `json:"error"`
	Message          string    `json:"message"`
	SupportReference string    `json:"support_reference,omitempty"`
	SKU              string    `json:"sku,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// HandleError переводит доменную ошибку саги (§7) в HTTP ответ.
func HandleError(c *gin.Context, err error) {
	if err == nil {
		logger.Error().Msg("HandleError вызван с nil ошибкой — баг в вызывающем коде")
		writeError(c, http.StatusInternalServerError, "internal_error", "внутренняя ошибка сервера", "")
		return
	}

	sagaErr, ok := err.(*domain.SagaError)
	if !ok {
		logger.FromContext(c.Request.Context()).Error().Err(err).Msg("непредвиденная ошибка без классификации")
		writeError(c, http.StatusInternalServerError, string(domain.KindUnexpected), "непредвиденная ошибка", "")
		return
	}

	httpStatus, errorCode := mapKind(sagaErr.Kind)
	if httpStatus >= 500 {
		logger.FromContext(c.Request.Context()).Error().Err(sagaErr).Str("kind", string(sagaErr.Kind)).Msg("ошибка саги")
	}

	c.JSON(httpStatus, errorBody{
		Error:            errorCode,
		Message:          sagaErr.Message,
		SupportReference: sagaErr.SupportReference,
		SKU:              sagaErr.SKU,
		Timestamp:        time.Now(),
	})
	c.Abort()
}

func writeError(c *gin.Context, httpStatus int, code, message, supportRef string) {
	c.JSON(httpStatus, errorBody{Error: code, Message: message, SupportReference: supportRef, Timestamp: time.Now()})
	c.Abort()
}

// mapKind — маппинг таксономии §7 в HTTP статус.
func mapKind(kind domain.Kind) (int, string) {
	switch kind {
	case domain.KindEmptyCart:
		return http.StatusBadRequest, "empty_cart"
	case domain.KindAddressRequired:
		return http.StatusBadRequest, "address_required"
	case domain.KindAddressNotFound:
		return http.StatusNotFound, "address_not_found"
	case domain.KindAddressForbidden:
		return http.StatusForbidden, "address_forbidden"
	case domain.KindInsufficientStock:
		return http.StatusConflict, "insufficient_stock"
	case domain.KindPaymentDeclined:
		return http.StatusPaymentRequired, "payment_declined"
	case domain.KindPaymentTimeout:
		return http.StatusGatewayTimeout, "payment_timeout"
	case domain.KindOrderCreationFailed:
		return http.StatusInternalServerError, "order_creation_failed"
	case domain.KindUpstreamContract:
		return http.StatusBadGateway, "upstream_contract_error"
	case domain.KindAuthTokenMissing:
		return http.StatusInternalServerError, "auth_token_missing"
	case domain.KindOrderNotFound:
		return http.StatusNotFound, "order_not_found"
	default:
		return http.StatusInternalServerError, "unexpected_error"
	}
}

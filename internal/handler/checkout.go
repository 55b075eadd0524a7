package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eco13rus/checkout-saga/internal/checkout"
	"github.com/eco13rus/checkout-saga/internal/domain"
	"github.com/eco13rus/checkout-saga/internal/middleware"
	"github.com/eco13rus/checkout-saga/internal/saga"
	"github.com/eco13rus/checkout-saga/pkg/logger"
)

// CheckoutHandler реализует HTTP поверхность §6: initiate, complete, cancel,
// address/validate, shipping/calculate.
type CheckoutHandler struct {
	service *checkout.Service
}

func NewCheckoutHandler(service *checkout.Service) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

// === DTO ===

// CheckoutRequest — тело initiate/complete (§3 CheckoutRequest).
type CheckoutRequest struct {
	ShippingAddressID           string `json:"shipping_address_id" binding:"required"`
	PaymentMethodID             string `json:"payment_method_id"`
	PaymentGatewayTransactionID string `json:"payment_gateway_transaction_id"`
	CartID                      string `json:"cart_id"`
}

// MoneyDTO — денежная сумма на wire.
type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// CheckoutSummaryResponse — ответ POST /initiate.
type CheckoutSummaryResponse struct {
	Subtotal          MoneyDTO `json:"subtotal"`
	Discount          MoneyDTO `json:"discount"`
	Tax               MoneyDTO `json:"tax"`
	Shipping          MoneyDTO `json:"shipping"`
	Total             MoneyDTO `json:"total"`
	Currency          string   `json:"currency"`
	AvailabilityIssue string   `json:"availability_issue,omitempty"`
}

// CheckoutCompleteResponse — ответ POST /complete (§4.5 шаг 9).
type CheckoutCompleteResponse struct {
	OrderID     string   `json:"order_id"`
	OrderNumber string   `json:"order_number"`
	PaymentID   string   `json:"payment_id"`
	Total       MoneyDTO `json:"total"`
	Currency    string   `json:"currency"`
	Status      string   `json:"status"`
	CreatedAt   string   `json:"created_at"`
}

// AddressValidationRequest — тело POST /address/validate.
type AddressValidationRequest struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// AddressValidationResponse — ответ POST /address/validate.
type AddressValidationResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// ShippingCalculationRequest — тело POST /shipping/calculate.
type ShippingCalculationRequest struct {
	Currency string `json:"currency" binding:"required"`
}

// ShippingOptionDTO — один вариант доставки.
type ShippingOptionDTO struct {
	Method string   `json:"method"`
	Days   int      `json:"days"`
	Cost   MoneyDTO `json:"cost"`
}

// ShippingCalculationResponse — ответ POST /shipping/calculate.
type ShippingCalculationResponse struct {
	Options []ShippingOptionDTO `json:"options"`
}

// === Handlers ===

// Initiate — POST /api/v1/checkout/initiate (§6: read-only, 200).
func (h *CheckoutHandler) Initiate(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "невалидные данные запроса", "")
		return
	}

	summary, err := h.service.Initiate(c.Request.Context(), principal, req.ShippingAddressID)
	if err != nil {
		HandleError(c, err)
		return
	}

	respond(c, http.StatusOK, toSummaryResponse(summary), "")
}

// Complete — POST /api/v1/checkout/complete (§6: saga, 201).
func (h *CheckoutHandler) Complete(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "невалидные данные запроса", "")
		return
	}

	result, err := h.service.Complete(c.Request.Context(), principal, saga.CompleteRequest{
		ShippingAddressID:           req.ShippingAddressID,
		PaymentMethodID:             req.PaymentMethodID,
		PaymentGatewayTransactionID: req.PaymentGatewayTransactionID,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	logger.FromContext(c.Request.Context()).Info().
		Str("order_id", result.OrderID).
		Str("status", result.Status).
		Msg("оформление заказа завершено")

	respond(c, http.StatusCreated, toCompleteResponse(result), "")
}

// Cancel — POST /api/v1/checkout/cancel?reservationId= (§6: 204).
func (h *CheckoutHandler) Cancel(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}

	reservationID := c.Query("reservationId")
	if err := h.service.Cancel(c.Request.Context(), principal, reservationID); err != nil {
		HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ValidateAddress — POST /api/v1/checkout/address/validate (§6: 200).
func (h *CheckoutHandler) ValidateAddress(c *gin.Context) {
	if _, ok := h.principal(c); !ok {
		return
	}

	var req AddressValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "невалидные данные запроса", "")
		return
	}

	result := h.service.ValidateAddress(req.Street, req.City, req.Country)
	respond(c, http.StatusOK, AddressValidationResponse{Valid: result.Valid, Reason: result.Reason}, "")
}

// CalculateShipping — POST /api/v1/checkout/shipping/calculate (§6: 200).
func (h *CheckoutHandler) CalculateShipping(c *gin.Context) {
	if _, ok := h.principal(c); !ok {
		return
	}

	var req ShippingCalculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "невалидные данные запроса", "")
		return
	}

	options := h.service.CalculateShipping(req.Currency)
	dto := make([]ShippingOptionDTO, 0, len(options))
	for _, o := range options {
		dto = append(dto, ShippingOptionDTO{
			Method: o.Method,
			Days:   o.Days,
			Cost:   MoneyDTO{Amount: o.Cost.Amount, Currency: o.Cost.Currency},
		})
	}

	respond(c, http.StatusOK, ShippingCalculationResponse{Options: dto}, "")
}

// principal извлекает Principal, установленный AuthMiddleware.
func (h *CheckoutHandler) principal(c *gin.Context) (domain.Principal, bool) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		writeError(c, http.StatusInternalServerError, string(domain.KindAuthTokenMissing), "bearer-токен не передан во внутренний вызов", "")
		return domain.Principal{}, false
	}
	return principal, true
}

func toSummaryResponse(s checkout.CheckoutSummary) CheckoutSummaryResponse {
	return CheckoutSummaryResponse{
		Subtotal:          MoneyDTO{Amount: s.Pricing.Subtotal.Amount, Currency: s.Pricing.Currency},
		Discount:          MoneyDTO{Amount: s.Pricing.Discount.Amount, Currency: s.Pricing.Currency},
		Tax:               MoneyDTO{Amount: s.Pricing.Tax.Amount, Currency: s.Pricing.Currency},
		Shipping:          MoneyDTO{Amount: s.Pricing.Shipping.Amount, Currency: s.Pricing.Currency},
		Total:             MoneyDTO{Amount: s.Pricing.Total.Amount, Currency: s.Pricing.Currency},
		Currency:          s.Pricing.Currency,
		AvailabilityIssue: s.AvailabilityIssue,
	}
}

func toCompleteResponse(r domain.CheckoutComplete) CheckoutCompleteResponse {
	return CheckoutCompleteResponse{
		OrderID:     r.OrderID,
		OrderNumber: r.OrderNumber,
		PaymentID:   r.PaymentID,
		Total:       MoneyDTO{Amount: r.Total.Amount, Currency: r.Currency},
		Currency:    r.Currency,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
	}
}

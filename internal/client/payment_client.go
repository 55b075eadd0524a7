package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eco13rus/checkout-saga/internal/domain"
	"github.com/eco13rus/checkout-saga/pkg/httpclient"
)

// PaymentClient обращается к Payment service (C1): списание средств,
// возврат, и — по контракту идемпотентности (§4.6, §9) — повторный вызов
// process с заглушкой суммы для поиска существующего платежа по
// paymentGatewayTransactionId.
type PaymentClient struct {
	http *httpclient.Client
}

func NewPaymentClient(c *httpclient.Client) *PaymentClient {
	return &PaymentClient{http: c}
}

type processPaymentRequest struct {
	Amount                      int64  `json:"amount"`
	Currency                    string `json:"currency"`
	OrderID                     string `json:"orderId"`
	PaymentMethodID             string `json:"paymentMethodId,omitempty"`
	PaymentGatewayTransactionID string `json:"paymentGatewayTransactionId,omitempty"`
}

type refundRequest struct {
	PaymentID string `json:"paymentId"`
	Reason    string `json:"reason"`
}

// Process выполняет платёж (POST /payment/process, §4.5 шаг 5).
// Идемпотентен по paymentGatewayTransactionId — downstream обязан вернуть
// существующий платёж повторно, а не создавать новый (§9).
func (c *PaymentClient) Process(ctx context.Context, principal domain.Principal, amount domain.Money, orderID, paymentMethodID, gatewayTxnID string) (string, error) {
	headers, err := authHeaders(principal)
	if err != nil {
		return "", err
	}

	body, err := encodeBody(processPaymentRequest{
		Amount:                      amount.Amount,
		Currency:                    amount.Currency,
		OrderID:                     orderID,
		PaymentMethodID:             paymentMethodID,
		PaymentGatewayTransactionID: gatewayTxnID,
	})
	if err != nil {
		return "", err
	}

	status, respBody, err := doCall(ctx, c.http, http.MethodPost, "/payment/process", body, headers)
	if err != nil {
		return "", domain.NewPaymentTimeout(err)
	}

	switch {
	case status == http.StatusPaymentRequired || status == http.StatusUnprocessableEntity:
		return "", domain.NewPaymentDeclined(fmt.Errorf("payment service статус %d", status))
	case status >= 500:
		return "", domain.NewPaymentDeclined(fmt.Errorf("payment service статус %d", status))
	case status >= 400:
		return "", domain.NewPaymentDeclined(fmt.Errorf("payment service статус %d", status))
	}

	fields, err := decodeEnvelope(respBody)
	if err != nil {
		return "", domain.NewUpstreamContractError("payment", err)
	}
	return requiredString(fields, "paymentId", "id", "payment_id", "paymentId")
}

// ProcessForLookup — заглушечный вызов process с нулевой суммой, используемый
// resolver-ом идемпотентности (C6) для поиска платежа по gatewayTxnID без
// повторного списания. Тот же эндпоинт, что и Process — по контракту §9.
func (c *PaymentClient) ProcessForLookup(ctx context.Context, principal domain.Principal, currency, gatewayTxnID string) (string, bool, error) {
	paymentID, err := c.Process(ctx, principal, domain.Money{Amount: 0, Currency: currency}, "", "", gatewayTxnID)
	if err != nil {
		if domain.IsKind(err, domain.KindPaymentDeclined) {
			return "", false, nil
		}
		return "", false, err
	}
	return paymentID, true, nil
}

// Refund возвращает ранее списанный платёж (POST /payment/refund).
// Вызывается best-effort из компенсационного каскада (C5), только если
// заказ ещё не создан (I2).
func (c *PaymentClient) Refund(ctx context.Context, principal domain.Principal, paymentID, reason string) error {
	headers, err := authHeaders(principal)
	if err != nil {
		return err
	}

	body, err := encodeBody(refundRequest{PaymentID: paymentID, Reason: reason})
	if err != nil {
		return err
	}

	status, _, err := doCall(ctx, c.http, http.MethodPost, "/payment/refund", body, headers)
	if err != nil {
		return err
	}
	if status >= 400 {
		return fmt.Errorf("payment service вернул статус %d при возврате платежа %s", status, paymentID)
	}
	return nil
}

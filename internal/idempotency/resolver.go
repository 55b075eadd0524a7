// Package idempotency разрешает повторные запросы завершения оформления
// заказа, несущие paymentGatewayTransactionId, без повторного запуска саги
// (C6). Срабатывает, когда клиент ретраит после сетевого сбоя, последовавшего
// за платежом, уже выполненным на стороне клиентского SDK шлюза.
package idempotency

import (
	"context"
	"time"

	"github.com/eco13rus/checkout-saga/internal/domain"
)

// PaymentLookup ищет существующий платёж по gatewayTxnId без повторного списания.
type PaymentLookup interface {
	ProcessForLookup(ctx context.Context, principal domain.Principal, currency, gatewayTxnID string) (paymentID string, found bool, err error)
}

// OrderLookup ищет заказ по идентификатору платежа.
type OrderLookup interface {
	GetByPaymentID(ctx context.Context, principal domain.Principal, paymentID string) (projection OrderProjection, found bool, err error)
}

// OrderProjection — минимальная проекция заказа, нужная для восстановления
// ответа саги без повторного выполнения побочных эффектов.
type OrderProjection struct {
	OrderID     string
	OrderNumber string
	Total       domain.Money
}

// retryDelays — задержки повторных попыток GET /order/by-payment/{id}
// (§4.6 шаг 4): покрывают окно, пока заказ ещё не виден из read-реплики.
var retryDelays = []time.Duration{0, 200 * time.Millisecond, 400 * time.Millisecond}

// Resolver восстанавливает успешный ответ саги по paymentGatewayTransactionId.
type Resolver struct {
	payments PaymentLookup
	orders   OrderLookup
	sleep    func(time.Duration)
}

func NewResolver(payments PaymentLookup, orders OrderLookup) *Resolver {
	return &Resolver{payments: payments, orders: orders, sleep: time.Sleep}
}

// Resolve выполняет алгоритм §4.6.
func (r *Resolver) Resolve(ctx context.Context, principal domain.Principal, currency, gatewayTxnID string) (domain.CheckoutComplete, error) {
	paymentID, found, err := r.payments.ProcessForLookup(ctx, principal, currency, gatewayTxnID)
	if err != nil {
		return domain.CheckoutComplete{}, err
	}
	if !found {
		return domain.CheckoutComplete{}, domain.NewEmptyCart()
	}

	var projection OrderProjection
	var orderFound bool
	for attempt, delay := range retryDelays {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return domain.CheckoutComplete{}, ctx.Err()
			default:
			}
			r.sleep(delay)
		}

		projection, orderFound, err = r.orders.GetByPaymentID(ctx, principal, paymentID)
		if err != nil {
			return domain.CheckoutComplete{}, err
		}
		if orderFound {
			break
		}
		_ = attempt
	}
	if !orderFound {
		return domain.CheckoutComplete{}, domain.NewOrderNotFound()
	}

	return domain.CheckoutComplete{
		OrderID:     projection.OrderID,
		OrderNumber: projection.OrderNumber,
		PaymentID:   paymentID,
		Total:       projection.Total,
		Currency:    projection.Total.Currency,
		Status:      domain.StatusPlaced,
		CreatedAt:   time.Now(),
	}, nil
}

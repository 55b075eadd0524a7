package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eco13rus/checkout-saga/internal/domain"
	"github.com/eco13rus/checkout-saga/pkg/httpclient"
)

// OrderClient обращается к Order service (C1): создание заказа и поиск уже
// созданного заказа по идентификатору платежа (используется C6 resolver-ом).
type OrderClient struct {
	http *httpclient.Client
}

func NewOrderClient(c *httpclient.Client) *OrderClient {
	return &OrderClient{http: c}
}

// CreateOrderRequest — тело запроса на создание заказа (§4.1).
type CreateOrderRequest struct {
	ShippingAddressID string        `json:"shippingAddressId"`
	PaymentID          string        `json:"paymentId"`
	Items              []CartItemDTO `json:"items"`
	Subtotal           int64         `json:"subtotal"`
	DiscountAmount     int64         `json:"discountAmount"`
	TaxAmount          int64         `json:"taxAmount"`
	ShippingCost       int64         `json:"shippingCost"`
	Total              int64         `json:"total"`
	Currency           string        `json:"currency"`
}

// CartItemDTO — позиция заказа в теле запроса к Order service.
type CartItemDTO struct {
	ProductID string `json:"productId"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Quantity  int32  `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

// CreatedOrder — идентификаторы, возвращённые Order service при создании.
type CreatedOrder struct {
	OrderID     string
	OrderNumber string
}

// Create создаёт заказ (POST /order, §4.5 шаг 6).
func (c *OrderClient) Create(ctx context.Context, principal domain.Principal, req CreateOrderRequest) (CreatedOrder, error) {
	headers, err := authHeaders(principal)
	if err != nil {
		return CreatedOrder{}, err
	}

	body, err := encodeBody(req)
	if err != nil {
		return CreatedOrder{}, err
	}

	status, respBody, err := doCall(ctx, c.http, http.MethodPost, "/order", body, headers)
	if err != nil {
		return CreatedOrder{}, domain.NewOrderCreationFailed(err)
	}
	if status >= 400 {
		return CreatedOrder{}, domain.NewOrderCreationFailed(fmt.Errorf("order service статус %d", status))
	}

	fields, err := decodeEnvelope(respBody)
	if err != nil {
		return CreatedOrder{}, domain.NewOrderCreationFailed(err)
	}

	orderID, err := requiredString(fields, "id", "id", "order_id", "orderId")
	if err != nil {
		return CreatedOrder{}, domain.NewOrderCreationFailed(err)
	}
	orderNumber, err := requiredString(fields, "orderNumber", "order_number", "orderNumber")
	if err != nil {
		return CreatedOrder{}, domain.NewOrderCreationFailed(err)
	}

	return CreatedOrder{OrderID: orderID, OrderNumber: orderNumber}, nil
}

// OrderProjection — проекция заказа, возвращаемая по идентификатору платежа
// (используется idempotency resolver-ом, C6, §4.6).
type OrderProjection struct {
	OrderID     string
	OrderNumber string
	Total       domain.Money
}

// GetByPaymentID ищет заказ по paymentId (GET /order/by-payment/{paymentId}).
// 404 не является ошибкой верхнего уровня — вызывающий resolver (C6)
// интерпретирует его как "заказ ещё не виден" и повторяет с задержкой.
func (c *OrderClient) GetByPaymentID(ctx context.Context, principal domain.Principal, paymentID string) (OrderProjection, bool, error) {
	headers, err := authHeaders(principal)
	if err != nil {
		return OrderProjection{}, false, err
	}

	status, body, err := doCall(ctx, c.http, http.MethodGet, "/order/by-payment/"+paymentID, nil, headers)
	if err != nil {
		return OrderProjection{}, false, err
	}
	if status == http.StatusNotFound {
		return OrderProjection{}, false, nil
	}
	if status >= 400 {
		return OrderProjection{}, false, domain.NewUpstreamContractError("order-by-payment", fmt.Errorf("order service статус %d", status))
	}

	fields, err := decodeEnvelope(body)
	if err != nil {
		return OrderProjection{}, false, domain.NewUpstreamContractError("order-by-payment", err)
	}

	orderID, err := requiredString(fields, "id", "id", "order_id", "orderId")
	if err != nil {
		return OrderProjection{}, false, err
	}
	// orderNumber отсутствующий здесь — не та же ошибка, что отсутствие id:
	// §4.6 шаг 5 требует явного UpstreamContractError, без подстановки заглушки.
	orderNumber, err := requiredString(fields, "orderNumber", "order_number", "orderNumber")
	if err != nil {
		return OrderProjection{}, false, err
	}
	currency, err := requiredString(fields, "currency", "currency")
	if err != nil {
		return OrderProjection{}, false, err
	}
	totalMinor, ok := fieldInt64(fields, "total", "totalAmount")
	if !ok {
		return OrderProjection{}, false, domain.NewUpstreamContractError("total", nil)
	}

	return OrderProjection{
		OrderID:     orderID,
		OrderNumber: orderNumber,
		Total:       domain.Money{Amount: totalMinor, Currency: currency},
	}, true, nil
}

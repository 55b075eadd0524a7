package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eco13rus/checkout-saga/internal/domain"
	"github.com/eco13rus/checkout-saga/pkg/httpclient"
)

// CartClient обращается к Cart service: получение снимка корзины и очистка
// после успешного оформления заказа (best-effort, C5 шаг 7).
type CartClient struct {
	http *httpclient.Client
}

func NewCartClient(c *httpclient.Client) *CartClient {
	return &CartClient{http: c}
}

// GetCart возвращает текущий снимок корзины принципала (GET /cart, §4.1).
func (c *CartClient) GetCart(ctx context.Context, principal domain.Principal) (domain.CartSnapshot, error) {
	headers, err := authHeaders(principal)
	if err != nil {
		return domain.CartSnapshot{}, err
	}

	status, body, err := doCall(ctx, c.http, http.MethodGet, "/cart", nil, headers)
	if err != nil {
		return domain.CartSnapshot{}, err
	}
	if status >= 400 {
		return domain.CartSnapshot{}, domain.NewUpstreamContractError("cart", fmt.Errorf("cart service вернул статус %d", status))
	}

	fields, err := decodeEnvelope(body)
	if err != nil {
		return domain.CartSnapshot{}, domain.NewUpstreamContractError("cart", err)
	}
	return parseCartSnapshot(fields)
}

// ClearCart очищает корзину (DELETE /cart). Вызывается best-effort — ошибки
// логируются на уровне саги, но никогда не заменяют первичный результат.
func (c *CartClient) ClearCart(ctx context.Context, principal domain.Principal) error {
	headers, err := authHeaders(principal)
	if err != nil {
		return err
	}

	status, _, err := doCall(ctx, c.http, http.MethodDelete, "/cart", nil, headers)
	if err != nil {
		return err
	}
	if status >= 400 {
		return fmt.Errorf("cart service вернул статус %d при очистке корзины", status)
	}
	return nil
}

func parseCartSnapshot(fields map[string]interface{}) (domain.CartSnapshot, error) {
	currency, err := requiredString(fields, "currency", "currency")
	if err != nil {
		return domain.CartSnapshot{}, err
	}

	subtotalMinor, ok := fieldInt64(fields, "subtotal", "subtotalAmount")
	if !ok {
		return domain.CartSnapshot{}, domain.NewUpstreamContractError("subtotal", nil)
	}
	discountMinor, _ := fieldInt64(fields, "discountAmount", "discount_amount", "discount")

	rawItems, ok := fieldAny(fields, "items")
	if !ok {
		return domain.CartSnapshot{}, domain.NewUpstreamContractError("items", nil)
	}
	itemList, ok := rawItems.([]interface{})
	if !ok {
		return domain.CartSnapshot{}, domain.NewUpstreamContractError("items", nil)
	}

	items := make([]domain.CartItem, 0, len(itemList))
	for _, raw := range itemList {
		itemFields, ok := raw.(map[string]interface{})
		if !ok {
			return domain.CartSnapshot{}, domain.NewUpstreamContractError("items[]", nil)
		}
		item, err := parseCartItem(itemFields, currency)
		if err != nil {
			return domain.CartSnapshot{}, err
		}
		items = append(items, item)
	}

	return domain.CartSnapshot{
		Items:          items,
		Subtotal:       domain.Money{Amount: subtotalMinor, Currency: currency},
		DiscountAmount: domain.Money{Amount: discountMinor, Currency: currency},
		Currency:       currency,
	}, nil
}

func parseCartItem(fields map[string]interface{}, currency string) (domain.CartItem, error) {
	productID, err := requiredString(fields, "productId", "productId", "product_id")
	if err != nil {
		return domain.CartItem{}, err
	}
	sku, err := requiredString(fields, "sku", "sku")
	if err != nil {
		return domain.CartItem{}, err
	}
	name, _ := fieldString(fields, "name")
	quantity, ok := fieldInt32(fields, "quantity", "qty")
	if !ok {
		return domain.CartItem{}, domain.NewUpstreamContractError("quantity", nil)
	}
	unitPriceMinor, ok := fieldInt64(fields, "unitPrice", "unit_price")
	if !ok {
		return domain.CartItem{}, domain.NewUpstreamContractError("unitPrice", nil)
	}
	totalPriceMinor, ok := fieldInt64(fields, "totalPrice", "total_price")
	if !ok {
		totalPriceMinor = unitPriceMinor * int64(quantity)
	}

	return domain.CartItem{
		ProductID:  productID,
		Name:       name,
		SKU:        sku,
		Quantity:   quantity,
		UnitPrice:  domain.Money{Amount: unitPriceMinor, Currency: currency},
		TotalPrice: domain.Money{Amount: totalPriceMinor, Currency: currency},
	}, nil
}

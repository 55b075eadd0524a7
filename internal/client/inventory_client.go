package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/eco13rus/checkout-saga/internal/domain"
	"github.com/eco13rus/checkout-saga/pkg/httpclient"
)

// InventoryClient обращается к Inventory service (C1): поиск остатков,
// резервация и релиз резервации склада.
type InventoryClient struct {
	http *httpclient.Client
}

func NewInventoryClient(c *httpclient.Client) *InventoryClient {
	return &InventoryClient{http: c}
}

// ReserveItem — одна позиция запроса на резервацию.
type ReserveItem struct {
	SKU        string `json:"sku"`
	LocationID string `json:"locationId"`
	Quantity   int32  `json:"quantity"`
}

type reserveRequest struct {
	OrderID string        `json:"orderId"`
	Items   []ReserveItem `json:"items"`
}

type releaseRequest struct {
	ReservationID string `json:"reservationId"`
}

// GetStockLocations запрашивает остатки по SKU (GET /inventory/stock/{sku}/locations, §4.1).
// Порядок элементов сохраняется как пришёл от сервиса — выбор локации (C4)
// не переупорядочивает список (§4.4).
func (c *InventoryClient) GetStockLocations(ctx context.Context, principal domain.Principal, sku string) ([]domain.StockLocation, error) {
	headers, err := authHeaders(principal)
	if err != nil {
		return nil, err
	}

	status, body, err := doCall(ctx, c.http, http.MethodGet, "/inventory/stock/"+sku+"/locations", nil, headers)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, domain.NewUpstreamContractError("stock-locations", fmt.Errorf("inventory service вернул статус %d", status))
	}

	fields, err := decodeEnvelopeList(body)
	if err != nil {
		return nil, domain.NewUpstreamContractError("stock-locations", err)
	}

	locations := make([]domain.StockLocation, 0, len(fields))
	for _, raw := range fields {
		locFields, ok := raw.(map[string]interface{})
		if !ok {
			return nil, domain.NewUpstreamContractError("stock-locations[]", nil)
		}
		locationID, err := requiredString(locFields, "locationId", "locationId", "location_id")
		if err != nil {
			return nil, err
		}
		qty, ok := fieldInt32(locFields, "availableQty", "available_qty", "availableQuantity")
		if !ok {
			return nil, domain.NewUpstreamContractError("availableQty", nil)
		}
		locations = append(locations, domain.StockLocation{LocationID: locationID, AvailableQty: qty})
	}
	return locations, nil
}

// Reserve резервирует склад под tempOrderId (POST /inventory/reserve, §4.5 шаг 4).
// Возвращает только ошибку: идентификатором резервации оркестратор считает сам
// tempOrderId (см. design notes §9 про разрыв cyclic dependency).
func (c *InventoryClient) Reserve(ctx context.Context, principal domain.Principal, tempOrderID string, items []ReserveItem) error {
	headers, err := authHeaders(principal)
	if err != nil {
		return err
	}

	body, err := encodeBody(reserveRequest{OrderID: tempOrderID, Items: items})
	if err != nil {
		return err
	}

	status, respBody, err := doCall(ctx, c.http, http.MethodPost, "/inventory/reserve", body, headers)
	if err != nil {
		return err
	}

	switch {
	case status == http.StatusConflict:
		return domain.NewInsufficientStock(firstSKU(items))
	case status >= 500:
		return domain.NewUpstreamContractError("inventory-reserve", fmt.Errorf("inventory service вернул статус %d", status))
	case status >= 400:
		return domain.NewInsufficientStock(firstSKU(items))
	}

	_ = respBody
	return nil
}

// Release освобождает ранее выполненную резервацию (POST /inventory/release).
// Вызывается best-effort из компенсационного каскада (C5) — ошибка
// логируется вызывающей стороной, но не подменяет первичную ошибку саги.
func (c *InventoryClient) Release(ctx context.Context, principal domain.Principal, reservationID string) error {
	headers, err := authHeaders(principal)
	if err != nil {
		return err
	}

	body, err := encodeBody(releaseRequest{ReservationID: reservationID})
	if err != nil {
		return err
	}

	status, _, err := doCall(ctx, c.http, http.MethodPost, "/inventory/release", body, headers)
	if err != nil {
		return err
	}
	if status >= 400 {
		return fmt.Errorf("inventory service вернул статус %d при релизе резервации %s", status, reservationID)
	}
	return nil
}

func firstSKU(items []ReserveItem) string {
	if len(items) == 0 {
		return ""
	}
	return items[0].SKU
}

// decodeEnvelopeList разбирает конверт, чьё поле data — JSON массив.
func decodeEnvelopeList(body []byte) ([]interface{}, error) {
	fields, err := decodeEnvelopeRaw(body)
	if err != nil {
		return nil, err
	}
	list, ok := fields.([]interface{})
	if !ok {
		return nil, fmt.Errorf("ожидался массив в поле data")
	}
	return list, nil
}

// Package stock выбирает локацию склада для резервации одной позиции
// корзины (C4). Рекомендация advisory — авторитетная проверка происходит
// на стороне Inventory service при вызове reserve (I4).
package stock

import (
	"context"

	"github.com/eco13rus/checkout-saga/internal/domain"
)

// Locations — источник остатков по SKU, реализуется internal/client.InventoryClient.
type Locations interface {
	GetStockLocations(ctx context.Context, principal domain.Principal, sku string) ([]domain.StockLocation, error)
}

// Locator подбирает складскую локацию для позиции заказа.
type Locator struct {
	locations Locations
}

func NewLocator(locations Locations) *Locator {
	return &Locator{locations: locations}
}

// Pick возвращает первую локацию в порядке, полученном от источника, где
// availableQty >= requiredQty (§4.4). Список не переупорядочивается —
// порядок задаёт сервер.
func (l *Locator) Pick(ctx context.Context, principal domain.Principal, sku string, requiredQty int32) (string, error) {
	locations, err := l.locations.GetStockLocations(ctx, principal, sku)
	if err != nil {
		return "", err
	}

	for _, loc := range locations {
		if loc.AvailableQty >= requiredQty {
			return loc.LocationID, nil
		}
	}
	return "", domain.NewInsufficientStock(sku)
}

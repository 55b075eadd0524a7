package stock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eco13rus/checkout-saga/internal/domain"
)

type mockLocations struct {
	mock.Mock
}

func (m *mockLocations) GetStockLocations(ctx context.Context, principal domain.Principal, sku string) ([]domain.StockLocation, error) {
	args := m.Called(ctx, principal, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StockLocation), args.Error(1)
}

func TestLocator_Pick_FirstLocationWithEnoughStock(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	locations := new(mockLocations)

	locations.On("GetStockLocations", ctx, principal, "SKU-1").Return([]domain.StockLocation{
		{LocationID: "loc-a", AvailableQty: 1},
		{LocationID: "loc-b", AvailableQty: 5},
	}, nil)

	locator := NewLocator(locations)
	locationID, err := locator.Pick(ctx, principal, "SKU-1", 3)

	require.NoError(t, err)
	assert.Equal(t, "loc-b", locationID)
}

func TestLocator_Pick_DoesNotReorderList(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	locations := new(mockLocations)

	locations.On("GetStockLocations", ctx, principal, "SKU-1").Return([]domain.StockLocation{
		{LocationID: "loc-a", AvailableQty: 10},
		{LocationID: "loc-b", AvailableQty: 10},
	}, nil)

	locator := NewLocator(locations)
	locationID, err := locator.Pick(ctx, principal, "SKU-1", 1)

	require.NoError(t, err)
	assert.Equal(t, "loc-a", locationID, "first location satisfying quantity must win, server order preserved")
}

func TestLocator_Pick_InsufficientStockAcrossAllLocations(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	locations := new(mockLocations)

	locations.On("GetStockLocations", ctx, principal, "SKU-1").Return([]domain.StockLocation{
		{LocationID: "loc-a", AvailableQty: 1},
	}, nil)

	locator := NewLocator(locations)
	_, err := locator.Pick(ctx, principal, "SKU-1", 5)

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInsufficientStock))
}

func TestLocator_Pick_PropagatesUpstreamError(t *testing.T) {
	ctx := context.Background()
	principal := domain.Principal{UserID: "u1"}
	locations := new(mockLocations)

	upstreamErr := errors.New("inventory service unreachable")
	locations.On("GetStockLocations", ctx, principal, "SKU-1").Return(nil, upstreamErr)

	locator := NewLocator(locations)
	_, err := locator.Pick(ctx, principal, "SKU-1", 1)

	require.Error(t, err)
	assert.Equal(t, upstreamErr, err)
}

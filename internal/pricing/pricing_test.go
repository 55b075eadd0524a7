package pricing

import (
	"testing"

	"github.com/eco13rus/checkout-saga/internal/domain"
)

func TestCalculate_HappyPath(t *testing.T) {
	cart := domain.CartSnapshot{
		Subtotal:       domain.Money{Amount: 10000, Currency: "INR"},
		DiscountAmount: domain.Money{Amount: 1000, Currency: "INR"},
		Currency:       "INR",
	}

	result, err := Calculate(Config{StandardShippingMinor: 1000}, cart)
	if err != nil {
		t.Fatalf("Calculate() error: %v", err)
	}

	if result.Tax.Amount != 0 {
		t.Fatalf("tax = %d, want 0 (reserved field)", result.Tax.Amount)
	}
	if result.Shipping.Amount != 1000 {
		t.Fatalf("shipping = %d, want 1000", result.Shipping.Amount)
	}

	want := int64(10000 - 1000 + 0 + 1000)
	if result.Total.Amount != want {
		t.Fatalf("total = %d, want %d", result.Total.Amount, want)
	}
}

func TestCalculate_RejectsDiscountExceedingSubtotal(t *testing.T) {
	cart := domain.CartSnapshot{
		Subtotal:       domain.Money{Amount: 500, Currency: "INR"},
		DiscountAmount: domain.Money{Amount: 1000, Currency: "INR"},
		Currency:       "INR",
	}

	if _, err := Calculate(Config{StandardShippingMinor: 1000}, cart); err == nil {
		t.Fatal("expected I3 violation error for discount > subtotal, got nil")
	}
}

func TestCalculate_ZeroDiscount(t *testing.T) {
	cart := domain.CartSnapshot{
		Subtotal: domain.Money{Amount: 5000, Currency: "USD"},
		Currency: "USD",
	}

	result, err := Calculate(Config{StandardShippingMinor: 500}, cart)
	if err != nil {
		t.Fatalf("Calculate() error: %v", err)
	}
	if result.Total.Amount != 5500 {
		t.Fatalf("total = %d, want 5500", result.Total.Amount)
	}
}

package domain

import (
	"errors"
	"testing"
)

func TestSagaError_ErrorIncludesCause(t *testing.T) {
	cause := errors.New("boom")
	err := NewPaymentDeclined(cause)

	if got := err.Error(); got == "" {
		t.Fatal("Error() returned empty string")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("Unwrap() chain broken, errors.Is(err, cause) = false")
	}
}

func TestSagaError_ErrorWithoutCause(t *testing.T) {
	err := NewEmptyCart()
	if err.Error() != "EMPTY_CART: корзина пуста" {
		t.Fatalf("unexpected Error() text: %q", err.Error())
	}
}

func TestNewInsufficientStock_SetsSKU(t *testing.T) {
	err := NewInsufficientStock("SKU-1")
	if err.SKU != "SKU-1" {
		t.Fatalf("SKU = %q, want SKU-1", err.SKU)
	}
	if err.Kind != KindInsufficientStock {
		t.Fatalf("Kind = %q, want %q", err.Kind, KindInsufficientStock)
	}
}

func TestNewUnexpected_SetsSupportReference(t *testing.T) {
	err := NewUnexpected("платёж обработан, заказ не создан", "pay-123", errors.New("order service down"))

	if err.SupportReference != "pay-123" {
		t.Fatalf("SupportReference = %q, want pay-123", err.SupportReference)
	}
	if err.Kind != KindUnexpected {
		t.Fatalf("Kind = %q, want %q", err.Kind, KindUnexpected)
	}
}

func TestIsKind(t *testing.T) {
	err := NewAddressNotFound("addr-1")

	if !IsKind(err, KindAddressNotFound) {
		t.Fatal("IsKind true case failed")
	}
	if IsKind(err, KindEmptyCart) {
		t.Fatal("IsKind false case failed")
	}
	if IsKind(errors.New("plain error"), KindEmptyCart) {
		t.Fatal("IsKind on non-SagaError should be false")
	}
}

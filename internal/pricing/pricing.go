// Package pricing вычисляет итоговую стоимость заказа из снимка корзины
// (C3). Детерминированно, без побочных эффектов — пригодно для переиспользования
// и в completeCheckout, и в read-only initiateCheckout (C8).
package pricing

import (
	"fmt"

	"github.com/eco13rus/checkout-saga/internal/domain"
)

// Config — параметры тарификации, переопределяемые конфигурацией сервиса.
// Фиксированные INR/$10 — намеренные заглушки источника (§9 open questions);
// вынесены в конфигурацию, чтобы их можно было заменить без смены кода.
type Config struct {
	// StandardShippingMinor — стоимость доставки STANDARD в минимальных
	// единицах валюты корзины (10.00 по умолчанию).
	StandardShippingMinor int64
}

// Calculate считает subtotal/discount/tax/shipping/total (§4.3).
// tax всегда 0 — зарезервированное поле; налоговый движок входит в Non-goals.
func Calculate(cfg Config, cart domain.CartSnapshot) (domain.PricingResult, error) {
	subtotal := cart.Subtotal
	discount := cart.DiscountAmount
	tax := domain.Money{Amount: 0, Currency: cart.Currency}
	shipping := domain.Money{Amount: cfg.StandardShippingMinor, Currency: cart.Currency}

	total := subtotal.Sub(discount).Add(tax).Add(shipping)

	result := domain.PricingResult{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Shipping: shipping,
		Total:    total,
		Currency: cart.Currency,
	}

	if err := validate(result); err != nil {
		return domain.PricingResult{}, err
	}
	return result, nil
}

// validate проверяет I3 (money conservation): discount <= subtotal,
// shipping >= 0, tax >= 0, total == subtotal - discount + tax + shipping.
func validate(r domain.PricingResult) error {
	if r.Discount.Amount > r.Subtotal.Amount {
		return fmt.Errorf("нарушение I3: discount (%d) превышает subtotal (%d)", r.Discount.Amount, r.Subtotal.Amount)
	}
	if r.Shipping.IsNegative() {
		return fmt.Errorf("нарушение I3: shipping отрицателен (%d)", r.Shipping.Amount)
	}
	if r.Tax.IsNegative() {
		return fmt.Errorf("нарушение I3: tax отрицателен (%d)", r.Tax.Amount)
	}
	expectedTotal := r.Subtotal.Amount - r.Discount.Amount + r.Tax.Amount + r.Shipping.Amount
	if r.Total.Amount != expectedTotal {
		return fmt.Errorf("нарушение I3: total (%d) != subtotal-discount+tax+shipping (%d)", r.Total.Amount, expectedTotal)
	}
	return nil
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/eco13rus/checkout-saga/internal/domain"
	"github.com/eco13rus/checkout-saga/pkg/circuitbreaker"
	"github.com/eco13rus/checkout-saga/pkg/httpclient"
)

// authHeaders формирует заголовки, обязательные для каждого downstream-вызова:
// Authorization и X-Tenant-Id. Токен пробрасывается явно из Principal —
// никогда не хранится в поле клиента (см. design notes §9).
func authHeaders(principal domain.Principal) (http.Header, error) {
	if principal.Token == "" {
		return nil, domain.NewAuthTokenMissing()
	}
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+principal.Token)
	h.Set("X-Tenant-Id", principal.TenantID)
	h.Set("Content-Type", "application/json")
	return h, nil
}

// encodeBody сериализует тело запроса в JSON.
func encodeBody(v interface{}) (io.Reader, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("сериализация тела запроса: %w", err)
	}
	return bytes.NewReader(b), nil
}

// doCall выполняет HTTP вызов и возвращает статус, прочитанное тело и ошибку
// транспортного уровня (таймаут, breaker open, сетевой сбой). Ошибки бизнес-
// уровня (4xx/5xx) НЕ возвращаются здесь — вызывающий код классифицирует их
// по статусу и телу ответа, т.к. классификация специфична для каждого
// downstream-эндпоинта (§7).
func doCall(ctx context.Context, c *httpclient.Client, method, path string, body io.Reader, headers http.Header) (int, []byte, error) {
	resp, err := c.Do(ctx, method, path, body, headers)
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return 0, nil, fmt.Errorf("%s недоступен: %w", c.Name(), err)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, nil, fmt.Errorf("%s: превышено время ожидания: %w", c.Name(), err)
		}
		return 0, nil, fmt.Errorf("%s: ошибка вызова: %w", c.Name(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%s: чтение тела ответа: %w", c.Name(), err)
	}
	return resp.StatusCode, data, nil
}

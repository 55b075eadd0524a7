// Package client содержит типизированные адаптеры к Cart, Address, Inventory,
// Payment и Order сервисам (C1). Каждый адаптер выполняет один HTTP вызов
// через pkg/httpclient и разбирает единый конверт { data, message, status }
// с терпимым к расхождениям парсингом полей (§4.1).
package client

import (
	"encoding/json"
	"fmt"

	"github.com/perimeterx/marshmallow"

	"github.com/eco13rus/checkout-saga/internal/domain"
)

// envelope — общий конверт ответа downstream-сервисов: { data, message, status, timestamp }.
type envelope struct {
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
}

// decodeEnvelopeRaw разбирает конверт и возвращает поле data как произвольное
// значение (объект или массив) — для эндпоинтов, где data является списком
// (например GET /inventory/stock/{sku}/locations).
func decodeEnvelopeRaw(body []byte) (interface{}, error) {
	var env envelope
	if _, err := marshmallow.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("разбор конверта ответа: %w", err)
	}
	var data interface{}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("разбор data конверта: %w", err)
		}
	}
	return data, nil
}

// decodeEnvelope разбирает конверт и возвращает поля data в виде карты,
// терпимой к неизвестным полям (marshmallow.Unmarshal возвращает все поля,
// не отражённые целевой структурой, отдельной картой — здесь это все поля,
// т.к. целевая структура пуста).
func decodeEnvelope(body []byte) (map[string]interface{}, error) {
	var env envelope
	if _, err := marshmallow.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("разбор конверта ответа: %w", err)
	}
	if len(env.Data) == 0 {
		return map[string]interface{}{}, nil
	}

	fields, err := marshmallow.Unmarshal(env.Data, &struct{}{})
	if err != nil {
		return nil, fmt.Errorf("разбор data конверта: %w", err)
	}
	return fields, nil
}

// fieldAny возвращает значение первого присутствующего алиаса поля.
func fieldAny(fields map[string]interface{}, aliases ...string) (interface{}, bool) {
	for _, alias := range aliases {
		if v, ok := fields[alias]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// fieldString возвращает строковое значение, принимая и число, и строку
// (§4.1: "Numeric fields accept number or string").
func fieldString(fields map[string]interface{}, aliases ...string) (string, bool) {
	v, ok := fieldAny(fields, aliases...)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return formatNumber(t), true
	default:
		return "", false
	}
}

// requiredString возвращает строковое поле или UpstreamContractError, если
// ни один из алиасов не присутствует (§4.1: "Missing required fields produce
// an UpstreamContractError").
func requiredString(fields map[string]interface{}, fieldName string, aliases ...string) (string, error) {
	v, ok := fieldString(fields, aliases...)
	if !ok || v == "" {
		return "", domain.NewUpstreamContractError(fieldName, nil)
	}
	return v, nil
}

// fieldInt32 извлекает целочисленное поле, принимая и число, и строку.
func fieldInt32(fields map[string]interface{}, aliases ...string) (int32, bool) {
	v, ok := fieldAny(fields, aliases...)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return int32(t), true
	case string:
		var n int32
		if _, err := fmt.Sscanf(t, "%d", &n); err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// fieldInt64 извлекает денежную величину в минимальных единицах валюты.
func fieldInt64(fields map[string]interface{}, aliases ...string) (int64, bool) {
	v, ok := fieldAny(fields, aliases...)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case string:
		var n int64
		if _, err := fmt.Sscanf(t, "%d", &n); err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

// Package httpclient собирает в одном месте весь resilience-стек для вызовов
// downstream HTTP сервисов саги: таймауты и повторы через retryablehttp,
// circuit breaker вокруг транспорта и проброс bearer/tenant заголовков.
// Один Client создаётся на один downstream (cart/address/inventory/payment/order).
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/eco13rus/checkout-saga/pkg/circuitbreaker"
	"github.com/eco13rus/checkout-saga/pkg/logger"
)

// Config описывает настройки одного downstream-клиента.
type Config struct {
	Name       string        // имя downstream для логов/метрик/breaker ("cart", "payment", ...)
	BaseURL    string        // базовый адрес сервиса
	Timeout    time.Duration // таймаут одной попытки HTTP запроса (каждый повтор получает свой таймаут)
	MaxRetries int           // максимум повторов для идемпотентных вызовов
}

// Client — resilient HTTP клиент для одного downstream сервиса.
type Client struct {
	name    string
	baseURL string
	retry   *retryablehttp.Client
	breaker *circuitbreaker.Breaker
}

// New создаёт Client с настройками по умолчанию для Circuit Breaker.
func New(cfg Config) *Client {
	return NewWithBreakerSettings(cfg, circuitbreaker.DefaultSettings())
}

// NewWithBreakerSettings создаёт Client с пользовательскими настройками breaker.
func NewWithBreakerSettings(cfg Config, breakerSettings circuitbreaker.Settings) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 1 * time.Second
	retryClient.HTTPClient.Timeout = cfg.Timeout
	retryClient.Logger = newLeveledLogger(cfg.Name)
	// Повторяем только безопасные для повторного исполнения ошибки (таймауты,
	// обрывы соединения, 5xx) — бизнес-ответы 4xx не должны повторяться.
	retryClient.CheckRetry = retryablehttp.DefaultRetryPolicy
	// После исчерпания повторов отдаём последний ответ как есть (в т.ч. 5xx),
	// чтобы breaker и вызывающий код классифицировали его по статусу и телу.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		name:    cfg.Name,
		baseURL: cfg.BaseURL,
		retry:   retryClient,
		breaker: circuitbreaker.NewWithSettings(cfg.Name, breakerSettings),
	}
}

// Name возвращает имя downstream, обслуживаемого этим клиентом.
func (c *Client) Name() string {
	return c.name
}

// Do выполняет HTTP запрос через retry + circuit breaker.
// path — относительный путь (добавляется к BaseURL).
// headers (включая bearer) передаются вызывающей стороной параметром и копируются в запрос.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, headers http.Header) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.name, err)
	}
	for k, values := range headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.retry.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	return resp, nil
}

// leveledLogger адаптирует pkg/logger под retryablehttp.LeveledLogger,
// тем же способом, которым ARM-software-golang-utils оборачивает logr.Logger.
type leveledLogger struct {
	downstream string
}

func newLeveledLogger(downstream string) retryablehttp.LeveledLogger {
	return &leveledLogger{downstream: downstream}
}

func (l *leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	logger.Error().Str("downstream", l.downstream).Fields(pairsToMap(keysAndValues)).Msg(msg)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Info().Str("downstream", l.downstream).Fields(pairsToMap(keysAndValues)).Msg(msg)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	logger.Debug().Str("downstream", l.downstream).Fields(pairsToMap(keysAndValues)).Msg(msg)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	logger.Warn().Str("downstream", l.downstream).Fields(pairsToMap(keysAndValues)).Msg(msg)
}

// pairsToMap преобразует чередующийся список key, value, key, value...
// (формат retryablehttp.LeveledLogger) в map для zerolog.Event.Fields.
func pairsToMap(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields[key] = kv[i+1]
	}
	return fields
}

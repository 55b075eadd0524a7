// Package circuitbreaker предоставляет Circuit Breaker для защиты от каскадных сбоев
// при вызовах downstream HTTP сервисов.
//
// Состояния Circuit Breaker:
//   - Closed: нормальная работа, запросы проходят
//   - Open: сервис недоступен, запросы отклоняются мгновенно (без ожидания timeout)
//   - Half-Open: пробный период, пропускаем часть запросов для проверки восстановления
//
// Использование:
//
//	cb := circuitbreaker.New("payment")
//	resp, err := cb.Execute(func() (*http.Response, error) { return httpClient.Do(req) })
package circuitbreaker

import (
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/eco13rus/checkout-saga/pkg/logger"
)

// Settings — настройки Circuit Breaker.
type Settings struct {
	MaxRequests  uint32        // Макс. запросов в Half-Open состоянии (по умолчанию 1)
	Interval     time.Duration // Интервал сброса счётчика в Closed (по умолчанию 60s)
	Timeout      time.Duration // Время в Open до перехода в Half-Open (по умолчанию 30s)
	FailureRatio float64       // Доля ошибок для перехода в Open (по умолчанию 0.5)
	MinRequests  uint32        // Мин. запросов для расчёта ratio (по умолчанию 5)
}

// DefaultSettings возвращает настройки по умолчанию.
func DefaultSettings() Settings {
	return Settings{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// ErrOpen возвращается вместо ошибки downstream-вызова, когда breaker открыт.
var ErrOpen = errors.New("circuit breaker open: downstream temporarily unavailable")

// Breaker — обёртка над gobreaker с логированием, одна на downstream-хост.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[*http.Response]
	name string
}

// New создаёт новый Circuit Breaker с настройками по умолчанию.
func New(name string) *Breaker {
	return NewWithSettings(name, DefaultSettings())
}

// NewWithSettings создаёт Circuit Breaker с пользовательскими настройками.
func NewWithSettings(name string, s Settings) *Breaker {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,

		// ReadyToTrip определяет когда открыть breaker: доля ошибок >= FailureRatio
		// при минимум MinRequests запросах.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= s.FailureRatio
		},

		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log := logger.With().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Logger()

			switch to {
			case gobreaker.StateOpen:
				log.Warn().Msg("circuit breaker open — downstream unavailable")
			case gobreaker.StateHalfOpen:
				log.Info().Msg("circuit breaker half-open — probing downstream")
			case gobreaker.StateClosed:
				log.Info().Msg("circuit breaker closed — downstream recovered")
			}
		},
	})

	return &Breaker{cb: cb, name: name}
}

// State возвращает текущее состояние breaker.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Name возвращает имя breaker.
func (b *Breaker) Name() string {
	return b.name
}

// Execute выполняет fn через Circuit Breaker. 5xx и ошибки транспорта считаются
// сбоями; 4xx — бизнес-ответ downstream сервиса и не влияет на состояние breaker.
func (b *Breaker) Execute(fn func() (*http.Response, error)) (*http.Response, error) {
	resp, err := b.cb.Execute(func() (*http.Response, error) {
		resp, err := fn()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, errServerError
		}
		return resp, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrOpen
	}
	if errors.Is(err, errServerError) {
		// Бизнес-уровень должен видеть реальный ответ (для парсинга тела ошибки),
		// breaker уже учёл сбой во внутреннем счётчике.
		return resp, nil
	}
	return resp, err
}

// errServerError — внутренний маркер "это инфраструктурный сбой", используемый
// только для классификации внутри Execute; никогда не возвращается наружу.
var errServerError = errors.New("downstream returned 5xx")

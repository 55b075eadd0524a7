// Package event публикует событие OrderCreated в шину сообщений (C7).
// Публикация best-effort: сбои логируются и поглощаются, никогда не влияют
// на терминальный статус саги (§4.7). Гарантированную доставку должен
// обеспечивать transactional outbox на стороне Order service, не этот компонент.
package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eco13rus/checkout-saga/pkg/kafka"
	"github.com/eco13rus/checkout-saga/pkg/logger"
)

// OrderCreated — payload события, публикуемого после успешного создания заказа.
type OrderCreated struct {
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	TenantID  string    `json:"tenant_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher — интерфейс продюсера, реализуется pkg/kafka.Producer.
type Publisher interface {
	Send(ctx context.Context, topic string, key []byte, value []byte) error
}

// Emitter публикует OrderCreated в топик order-created, ключ — orderId.
type Emitter struct {
	publisher Publisher
	topic     string
}

func NewEmitter(publisher Publisher) *Emitter {
	return &Emitter{publisher: publisher, topic: kafka.TopicOrderCreated}
}

// Emit публикует событие best-effort: ошибка логируется и проглатывается,
// вызывающий код (C5 шаг 8) не должен на неё реагировать.
func (e *Emitter) Emit(ctx context.Context, evt OrderCreated) {
	payload, err := json.Marshal(evt)
	if err != nil {
		logger.Warn().Err(err).Str("order_id", evt.OrderID).Msg("не удалось сериализовать событие OrderCreated")
		return
	}

	if err := e.publisher.Send(ctx, e.topic, []byte(evt.OrderID), payload); err != nil {
		logger.Warn().
			Err(err).
			Str("order_id", evt.OrderID).
			Str("topic", e.topic).
			Msg("best-effort публикация OrderCreated не удалась, сага продолжается")
	}
}

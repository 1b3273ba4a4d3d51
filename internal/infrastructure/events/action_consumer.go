package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/hilthontt/actionlog/internal/domain"
	"github.com/hilthontt/actionlog/internal/infrastructure/logging"
	"github.com/hilthontt/actionlog/internal/infrastructure/messaging"
)

type ActionHandler func(ctx context.Context, payload domain.ActionPayload) error

// ActionConsumer decodes action payloads read from the external topic.
type ActionConsumer struct {
	consumer messaging.Consumer
	logger   logging.Logger
	topic    string
}

func NewActionConsumer(consumer messaging.Consumer, logger logging.Logger, topic string) *ActionConsumer {
	return &ActionConsumer{
		consumer: consumer,
		logger:   logger,
		topic:    topic,
	}
}

func (c *ActionConsumer) Listen(ctx context.Context, handle ActionHandler) error {
	return c.consumer.Consume(ctx, c.topic, func(ctx context.Context, body []byte) error {
		payload, err := DecodePayload(body)
		if err != nil {
			c.logger.Error(logging.Fanout, logging.Consume, "failed to decode action payload", map[logging.ExtraKey]any{
				logging.Topic:        c.topic,
				logging.ErrorMessage: err.Error(),
			})
			return err
		}

		return handle(ctx, payload)
	})
}

// DecodePayload parses a published payload, keeping context numbers exact.
func DecodePayload(body []byte) (domain.ActionPayload, error) {
	var payload domain.ActionPayload

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return domain.ActionPayload{}, fmt.Errorf("decode action payload: %w", err)
	}
	return payload, nil
}

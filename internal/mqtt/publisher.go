package mqtt

import (
	"context"
	"encoding/json"

	"github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/events"
)

// Publisher is an events.EventConsumer that forwards events to MQTT.
type Publisher struct {
	client Client
	topic  string
	source string
}

// NewPublisher publishes events from source to <topic>/events.
func NewPublisher(client Client, cfg Config, source string) *Publisher {
	return &Publisher{client: client, topic: cfg.EventsTopic(), source: source}
}

// Name implements events.EventConsumer.
func (p *Publisher) Name() string { return "mqtt" }

// ProcessEvent publishes one event as JSON.
func (p *Publisher) ProcessEvent(ev events.Event) error {
	payload, err := json.Marshal(NewEventDTO(ev, p.source))
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryEventDispatch).
			Context("event_id", ev.ID).
			Build()
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return p.client.Publish(ctx, p.topic, string(payload))
}

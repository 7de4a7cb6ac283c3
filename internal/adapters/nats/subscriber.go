package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/bagfinder/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeImportCompleted delivers import completions published from now on.
// The consumer is ephemeral so every API instance sees every event.
func (s *Subscriber) SubscribeImportCompleted(ctx context.Context, handler func(ctx context.Context, summary *domain.ImportSummary) error) error {
	sub, err := s.js.Subscribe(SubjectImportCompleted, func(msg *nats.Msg) {
		var summary domain.ImportSummary
		if err := json.Unmarshal(msg.Data, &summary); err != nil {
			// Redelivery will not fix a bad payload.
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &summary); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}

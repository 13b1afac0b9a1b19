package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Publisher is a Kafka sink. Records are keyed by session ID so one session's
// trail stays ordered within a partition.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewPublisher connects to the brokers and makes sure the topic exists.
func NewPublisher(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 3, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure topic %s: %w", topic, resp.Err)
	}

	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// Append produces the event asynchronously. Delivery failures are logged,
// not surfaced: the audit trail must never stall a verification session.
func (p *Publisher) Append(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	rec := &kgo.Record{
		Key:   []byte(ev.SessionID.String()),
		Value: payload,
	}
	p.client.Produce(ctx, rec, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("audit publish failed",
				"topic", p.topic,
				"action", ev.Action,
				"error", err,
			)
		}
	})
	return nil
}

// Close flushes buffered records and tears the client down.
func (p *Publisher) Close(ctx context.Context) error {
	defer p.client.Close()
	return p.client.Flush(ctx)
}

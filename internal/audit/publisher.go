package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	publishBatchSize = 100
	publishInterval  = 5 * time.Second
)

// publishedEntry is the wire form of an outbox entry on the audit topic.
type publishedEntry struct {
	ID        string          `json:"id"`
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	Channel   string          `json:"channel,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Outcome   string          `json:"outcome"`
	Detail    string          `json:"detail,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Publisher drains the outbox to a Kafka topic. Entries stay in the outbox
// until the produce succeeds, so a broker outage delays the trail but never
// loses it.
type Publisher struct {
	store  Store
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewPublisher connects to the brokers and makes sure the topic exists.
func NewPublisher(ctx context.Context, store Store, brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}

	admin := kadm.NewClient(client)
	if _, err := admin.CreateTopic(ctx, 1, -1, nil, topic); err != nil {
		// Existing topic is fine; anything else surfaces at first produce.
		logger.DebugContext(ctx, "audit topic create skipped", "topic", topic, "error", err)
	}

	return &Publisher{store: store, client: client, topic: topic, logger: logger}, nil
}

// Run drains the outbox on a fixed interval until the context ends.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(publishInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.drainOnce(ctx); err != nil {
				p.logger.WarnContext(ctx, "audit outbox drain failed", "error", err)
			}
		}
	}
}

func (p *Publisher) drainOnce(ctx context.Context) error {
	entries, err := p.store.ListUnpublished(ctx, publishBatchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(entries))
	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		value, err := json.Marshal(publishedEntry{
			ID:        e.ID.String(),
			EventID:   e.EventID,
			EventType: e.EventType,
			Channel:   e.Channel,
			UserID:    e.UserID,
			Outcome:   e.Outcome,
			Detail:    e.Detail,
			Payload:   e.Payload,
			CreatedAt: e.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("encode audit entry %s: %w", e.ID, err)
		}
		records = append(records, &kgo.Record{
			Topic: p.topic,
			Key:   []byte(e.EventID),
			Value: value,
		})
		ids = append(ids, e.ID)
	}

	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit batch: %w", err)
	}
	return p.store.MarkPublished(ctx, ids, time.Now().UTC())
}

// Close flushes buffered records and releases the client.
func (p *Publisher) Close() {
	p.client.Close()
}

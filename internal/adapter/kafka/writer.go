// Package kafka publishes live charger status snapshots to Kafka.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/couchcryptid/ev-station-service/internal/config"
	"github.com/couchcryptid/ev-station-service/internal/domain"
	"github.com/couchcryptid/ev-station-service/internal/observability"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// StatusMessage is the value of one published message: the live chargers of a
// single station at the time of the snapshot.
type StatusMessage struct {
	StationID   string                 `json:"stationId"`
	Summary     string                 `json:"summary"`
	UsageRate   int                    `json:"usageRate"`
	Chargers    []domain.ChargerDetail `json:"chargers"`
	PublishedAt time.Time              `json:"publishedAt"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces one message per station for every live status snapshot.
type Publisher struct {
	writer  messageWriter
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured status topic.
func NewPublisher(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaStatusTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	metrics.PublisherEnabled.Set(1)
	return &Publisher{writer: w, clock: clockwork.NewRealClock(), metrics: metrics, logger: logger}
}

// PublishSnapshot writes the snapshot in a single WriteMessages call, keyed by
// station identifier so every station stays on one partition.
func (p *Publisher) PublishSnapshot(ctx context.Context, live domain.LiveStatus) error {
	if len(live) == 0 {
		return nil
	}
	msgs, err := snapshotMessages(live, p.clock.Now().UTC())
	if err != nil {
		p.metrics.PublishErrors.Inc()
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.metrics.PublishErrors.Inc()
		return fmt.Errorf("write status snapshot: %w", err)
	}
	p.metrics.SnapshotsPublished.Add(float64(len(msgs)))
	p.logger.Debug("status snapshot published", "stations", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	p.metrics.PublisherEnabled.Set(0)
	return p.writer.Close()
}

// snapshotMessages builds messages in station identifier order.
func snapshotMessages(live domain.LiveStatus, now time.Time) ([]kafkago.Message, error) {
	ids := make([]string, 0, len(live))
	for id := range live {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	msgs := make([]kafkago.Message, 0, len(ids))
	for _, id := range ids {
		msg, err := serializeToMessage(id, live, now)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// serializeToMessage marshals the live chargers of one station into a Kafka message.
func serializeToMessage(stationID string, live domain.LiveStatus, now time.Time) (kafkago.Message, error) {
	summary, _ := live.Summary(stationID)
	data, err := json.Marshal(StatusMessage{
		StationID:   stationID,
		Summary:     summary,
		UsageRate:   live.UsageRate(stationID),
		Chargers:    live[stationID],
		PublishedAt: now,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize station status: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(stationID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "summary", Value: []byte(summary)},
			{Key: "published_at", Value: []byte(now.Format(time.RFC3339))},
		},
	}, nil
}

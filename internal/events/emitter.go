// Package events emits publish lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"vfxpublish/internal/domain"
	"vfxpublish/internal/metrics"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

const EventVersionPublished = "version.published"

var tracer = otel.Tracer("vfxpublish/internal/events")

// MessageWriter is the subset of *kafka.Writer the emitter needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	RequiredAcks int
}

// NewWriter creates a Kafka writer for cfg.
func NewWriter(cfg Config) *kafka.Writer {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		AllowAutoTopicCreation: true,
	}
}

// VersionPublishedEvent announces a committed version and its root layer.
type VersionPublishedEvent struct {
	EventType     string    `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	ProjectName   string    `json:"project_name"`
	FolderID      string    `json:"folder_id"`
	ProductID     string    `json:"product_id"`
	ProductName   string    `json:"product_name"`
	VersionID     string    `json:"version_id"`
	Version       int       `json:"version"`
	RootPath      string    `json:"root_path"`
	Mirrored      string    `json:"mirrored,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type Emitter struct {
	writer MessageWriter
	topic  string
	logger *zap.Logger
	now    func() time.Time
}

func NewEmitter(writer MessageWriter, topic string, logger *zap.Logger) *Emitter {
	return &Emitter{
		writer: writer,
		topic:  topic,
		logger: logger,
		now:    time.Now,
	}
}

// VersionPublished emits a version.published event keyed by product id, so
// every version of one product lands on the same partition.
func (e *Emitter) VersionPublished(ctx context.Context, result *domain.PublishResult) error {
	ctx, span := tracer.Start(ctx, "events.Emitter.VersionPublished")
	defer span.End()

	event := &VersionPublishedEvent{
		EventType:     EventVersionPublished,
		SchemaVersion: SchemaVersion,
		ProjectName:   result.ProjectName,
		FolderID:      result.FolderID,
		ProductID:     result.ProductID,
		ProductName:   result.ProductName,
		VersionID:     result.VersionID,
		Version:       result.Version,
		RootPath:      result.RootPath,
		Mirrored:      result.Mirrored,
		Timestamp:     e.now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.EventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.ProductID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "project_name", Value: []byte(event.ProjectName)},
		},
	}

	if err := e.writer.WriteMessages(ctx, msg); err != nil {
		metrics.KafkaMessagesPublished.WithLabelValues(e.topic, "error").Inc()
		e.logger.Error("Failed to publish event",
			zap.String("event_type", event.EventType),
			zap.String("version_id", event.VersionID),
			zap.Error(err))
		return fmt.Errorf("failed to publish %s event: %w", event.EventType, err)
	}
	metrics.KafkaMessagesPublished.WithLabelValues(e.topic, "success").Inc()

	e.logger.Debug("Published event",
		zap.String("event_type", event.EventType),
		zap.String("version_id", event.VersionID))
	return nil
}

func (e *Emitter) Close() error {
	return e.writer.Close()
}

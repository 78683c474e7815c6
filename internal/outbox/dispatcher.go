package outbox

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter publishes records to a Kafka topic.
type MessageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

// SchemaRegistrar resolves the schema id for a subject.
type SchemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// DispatcherConfig tunes the polling loop.
type DispatcherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	BaseDelay    time.Duration
}

// Dispatcher drains the outbox and delivers events to Kafka. A nil registry
// frames payloads with schema id 0.
type Dispatcher struct {
	outbox           *Outbox
	producer         MessageWriter
	registry         SchemaRegistrar
	cfg              DispatcherConfig
	logger           *slog.Logger
	schemaIDCache    sync.Map
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(outbox *Outbox, producer MessageWriter, registry SchemaRegistrar, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		outbox:           outbox,
		producer:         producer,
		registry:         registry,
		cfg:              cfg,
		logger:           logger.With(slog.String("component", "outbox")),
		shutdownComplete: make(chan struct{}),
	}
}

// Start launches the polling loop. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if _, err := d.processBatch(ctx); err != nil && ctx.Err() == nil {
			d.logger.Warn("outbox delivery failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait waits until dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

// Flush delivers due messages until the outbox is empty, a batch fails, or
// ctx expires. Messages still waiting out a backoff make it return an error.
// Used on shutdown after the polling loop has stopped.
func (d *Dispatcher) Flush(ctx context.Context) error {
	for d.outbox.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := d.processBatch(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%d roster events still pending", d.outbox.Len())
		}
	}
	return nil
}

func (d *Dispatcher) processBatch(ctx context.Context) (int, error) {
	messages := d.outbox.Claim(d.cfg.BatchSize)
	if len(messages) == 0 {
		return 0, nil
	}
	start := time.Now()
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	if err := d.deliver(ctx, messages); err != nil {
		if ctx.Err() != nil {
			// Interrupted rather than failed: the batch goes back as it was.
			d.outbox.Requeue(messages)
			return 0, err
		}
		failedCounter.Add(float64(len(messages)))
		d.retryOrQuarantine(messages, err)
		return 0, err
	}

	for _, msg := range messages {
		deliveredCounter.WithLabelValues(msg.EventType).Inc()
	}
	return len(messages), nil
}

func (d *Dispatcher) deliver(ctx context.Context, messages []Message) error {
	batches := make(map[string][]kafka.Message)
	order := make([]string, 0, 1)

	for _, msg := range messages {
		schemaID, err := d.schemaID(ctx, msg)
		if err != nil {
			return err
		}

		record := kafka.Message{
			Key:   []byte(msg.PartitionKey),
			Value: encodeWireFormat(schemaID, msg.Payload),
			Time:  time.Now().UTC(),
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(msg.EventType)},
				{Key: "event_id", Value: []byte(msg.EventID)},
				{Key: "schema_subject", Value: []byte(msg.SchemaSubject)},
			},
		}

		if _, ok := batches[msg.Topic]; !ok {
			order = append(order, msg.Topic)
		}
		batches[msg.Topic] = append(batches[msg.Topic], record)
	}

	for _, topic := range order {
		if err := d.producer.WriteMessages(ctx, topic, batches[topic]...); err != nil {
			return fmt.Errorf("write %d messages to %s: %w", len(batches[topic]), topic, err)
		}
	}
	return nil
}

func (d *Dispatcher) schemaID(ctx context.Context, msg Message) (int, error) {
	if d.registry == nil {
		return 0, nil
	}
	schema, ok := schemaCatalog[msg.EventType]
	if !ok {
		return 0, fmt.Errorf("no schema metadata for event_type=%s", msg.EventType)
	}

	cacheKey := msg.SchemaSubject + "::" + msg.EventType
	if cached, found := d.schemaIDCache.Load(cacheKey); found {
		return cached.(int), nil
	}
	id, err := d.registry.EnsureSchema(ctx, msg.SchemaSubject, schema)
	if err != nil {
		return 0, err
	}
	d.schemaIDCache.Store(cacheKey, id)
	return id, nil
}

// retryOrQuarantine requeues failed messages with exponential backoff and
// drops those that have exhausted their attempts.
func (d *Dispatcher) retryOrQuarantine(messages []Message, cause error) {
	now := d.outbox.now()
	retry := make([]Message, 0, len(messages))
	for _, msg := range messages {
		msg.Attempts++
		if msg.Attempts >= d.cfg.MaxAttempts {
			quarantinedCounter.WithLabelValues(msg.EventType).Inc()
			d.logger.Error("roster event quarantined",
				slog.String("event_id", msg.EventID),
				slog.String("event_type", msg.EventType),
				slog.Int("attempts", msg.Attempts),
				slog.Any("error", cause))
			continue
		}
		msg.NextAttemptAt = now.Add(d.backoffDelay(msg.Attempts))
		retry = append(retry, msg)
	}
	d.outbox.Requeue(retry)
}

// backoffDelay calculates exponential backoff capped at one minute.
func (d *Dispatcher) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(1<<uint(attempt-1)) * d.cfg.BaseDelay
	if delay > time.Minute {
		delay = time.Minute
	}
	return delay
}

// encodeWireFormat applies Confluent framing for Schema Registry aware payloads.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}

// Package outbox buffers roster events in memory and delivers them to Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/mergington/internal/domain"
	"example.com/mergington/internal/events"
)

// Message is a queued roster event awaiting delivery.
type Message struct {
	EventID       string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
	Attempts      int
	NextAttemptAt time.Time
	EnqueuedAt    time.Time
}

// Outbox is a bounded FIFO of pending messages. When full, the oldest
// message is dropped to make room.
type Outbox struct {
	mu       sync.Mutex
	queue    []Message
	capacity int
	topic    string
	now      func() time.Time
	newID    func() string
}

// New constructs an Outbox routing every event to topic.
func New(topic string, capacity int) *Outbox {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Outbox{
		queue:    make([]Message, 0, capacity),
		capacity: capacity,
		topic:    topic,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// Publish implements domain.EventPublisher. It never blocks on Kafka.
func (o *Outbox) Publish(ctx context.Context, change domain.RosterChange) error {
	msg, err := o.buildMessage(change)
	if err != nil {
		return err
	}
	o.Enqueue(msg)
	return nil
}

func (o *Outbox) buildMessage(change domain.RosterChange) (Message, error) {
	eventID := o.newID()

	var (
		eventType string
		payload   interface{}
	)
	switch change.Kind {
	case domain.RosterSignedUp:
		eventType = events.TypeParticipantSignedUp
		payload = events.ParticipantSignedUp{
			EventID:          eventID,
			Activity:         change.Activity,
			Email:            change.Email,
			ParticipantCount: change.ParticipantCount,
			OccurredAt:       change.OccurredAt,
		}
	case domain.RosterUnregistered:
		eventType = events.TypeParticipantUnregistered
		payload = events.ParticipantUnregistered{
			EventID:          eventID,
			Activity:         change.Activity,
			Email:            change.Email,
			ParticipantCount: change.ParticipantCount,
			OccurredAt:       change.OccurredAt,
		}
	default:
		return Message{}, fmt.Errorf("unknown roster change kind: %s", change.Kind)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}

	return Message{
		EventID:       eventID,
		EventType:     eventType,
		Topic:         o.topic,
		SchemaSubject: schemaSubject(o.topic, eventType),
		PartitionKey:  change.Activity,
		Payload:       body,
		EnqueuedAt:    o.now(),
	}, nil
}

// Enqueue appends msg, evicting the oldest messages until it fits within
// capacity. A Requeue may have left the queue over capacity.
func (o *Outbox) Enqueue(msg Message) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for len(o.queue) >= o.capacity {
		dropped := o.queue[0]
		o.queue = o.queue[1:]
		droppedCounter.WithLabelValues(dropped.EventType).Inc()
	}
	o.queue = append(o.queue, msg)
	enqueuedCounter.WithLabelValues(msg.EventType).Inc()
	backlogGauge.Set(float64(len(o.queue)))
}

// Claim removes and returns up to n messages that are due for delivery,
// preserving queue order.
func (o *Outbox) Claim(n int) []Message {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	claimed := make([]Message, 0, n)
	kept := o.queue[:0]
	for _, msg := range o.queue {
		if len(claimed) < n && !msg.NextAttemptAt.After(now) {
			claimed = append(claimed, msg)
			continue
		}
		kept = append(kept, msg)
	}
	o.queue = kept
	backlogGauge.Set(float64(len(o.queue)))
	return claimed
}

// Requeue puts messages back at the front of the queue, ahead of newer ones.
// Capacity is not enforced here so a failed batch is never lost to eviction.
func (o *Outbox) Requeue(msgs []Message) {
	if len(msgs) == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	queue := make([]Message, 0, len(msgs)+len(o.queue))
	queue = append(queue, msgs...)
	queue = append(queue, o.queue...)
	o.queue = queue
	backlogGauge.Set(float64(len(o.queue)))
}

// Len returns the number of pending messages.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

func schemaSubject(topic, eventType string) string {
	return fmt.Sprintf("%s-%s", topic, eventType)
}

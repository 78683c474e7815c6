package consumer

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/mergington/internal/events"
)

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := []byte(`{"event_id":"evt-1","activity":"Chess Club","email":"newstudent@mergington.edu","participant_count":3,"occurred_at":"2024-09-06T15:30:00Z"}`)
	msg := rosterRecord(10, events.TypeParticipantSignedUp, 42, payload)

	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(testLogger(t)))

	err := processor.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, events.TypeParticipantSignedUp, handler.last.EventType)
	require.Equal(t, "evt-1", handler.last.EventID)
	require.Equal(t, "Chess Club", handler.last.Key)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, string(payload), string(handler.last.Payload))

	evt, err := handler.last.Roster()
	require.NoError(t, err)
	require.Equal(t, "newstudent@mergington.edu", evt.Email)
	require.Equal(t, 3, evt.ParticipantCount)
}

func TestProcessorRetriesHandlerBeforeCommit(t *testing.T) {
	first := rosterRecord(20, events.TypeParticipantUnregistered, 99, []byte(`{"event_id":"evt-2"}`))
	second := rosterRecord(21, events.TypeParticipantSignedUp, 99, []byte(`{"event_id":"evt-3"}`))

	reader := &stubReader{messages: []kafka.Message{first, second}, after: contextCanceled}
	handler := &stubHandler{err: errors.New("boom"), failures: 2}

	processor := NewProcessor(reader, handler, WithLogger(testLogger(t)), WithRetryDelay(time.Millisecond))

	err := processor.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, []int64{20, 20, 20, 21}, handler.offsets)
	require.Equal(t, []int64{20, 21}, reader.committed)
}

func TestProcessorStopsRetryingWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := rosterRecord(30, events.TypeParticipantSignedUp, 1, []byte(`{"event_id":"evt-4"}`))
	second := rosterRecord(31, events.TypeParticipantSignedUp, 1, []byte(`{"event_id":"evt-5"}`))

	reader := &stubReader{messages: []kafka.Message{first, second}}
	handler := &stubHandler{err: errors.New("database unavailable"), onCall: func(calls int) {
		if calls == 3 {
			cancel()
		}
	}}

	err := NewProcessor(reader, handler, WithLogger(testLogger(t))).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, []int64{30, 30, 30}, handler.offsets)
	require.Empty(t, reader.committed)
	require.Equal(t, 1, reader.index)
}

func TestProcessorCommitsMalformedRecords(t *testing.T) {
	short := kafka.Message{Topic: "activity_roster_events", Value: []byte{0, 1}}
	noHeader := rosterRecord(2, events.TypeParticipantSignedUp, 1, []byte(`{}`))
	noHeader.Headers = nil
	badJSON := rosterRecord(3, events.TypeParticipantSignedUp, 1, []byte(`{not json`))

	reader := &stubReader{messages: []kafka.Message{short, noHeader, badJSON}, after: contextCanceled}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(testLogger(t))).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, handler.calls)
	require.Equal(t, 3, reader.commitCalls)
}

func TestProcessorStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reader := &stubReader{}
	err := NewProcessor(reader, &stubHandler{}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, reader.index)
}

func TestProcessorRetriesFetchErrors(t *testing.T) {
	calls := 0
	reader := &stubReader{after: func() error {
		calls++
		if calls < 3 {
			return errors.New("broker not available")
		}
		return context.Canceled
	}}

	err := NewProcessor(reader, &stubHandler{}, WithLogger(testLogger(t)), WithRetryDelay(time.Millisecond)).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 3, calls)
}

func rosterRecord(offset int64, eventType string, schemaID uint32, payload []byte) kafka.Message {
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], schemaID)
	copy(value[5:], payload)

	return kafka.Message{
		Topic:     "activity_roster_events",
		Partition: 0,
		Offset:    offset,
		Key:       []byte("Chess Club"),
		Time:      time.Now().UTC(),
		Value:     value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "event_id", Value: []byte("evt-1")},
			{Key: "schema_subject", Value: []byte("activity_roster_events-" + eventType)},
		},
	}
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	committed   []int64
	after       func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.commitCalls++
	for _, msg := range msgs {
		r.committed = append(r.committed, msg.Offset)
	}
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

// stubHandler returns err for the first failures calls, or for every call
// when failures is zero.
type stubHandler struct {
	calls    int
	err      error
	failures int
	last     Message
	offsets  []int64
	onCall   func(calls int)
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	h.offsets = append(h.offsets, msg.Offset)
	if h.onCall != nil {
		h.onCall(h.calls)
	}
	if h.err != nil && (h.failures == 0 || h.calls <= h.failures) {
		return h.err
	}
	return nil
}

func testLogger(t *testing.T) *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{t}, nil))
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}

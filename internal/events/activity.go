// Package events defines roster event payloads shared by the API and the audit consumer.
package events

import "time"

// Event types carried in the event_type Kafka header.
const (
	TypeParticipantSignedUp     = "roster.participant_signed_up"
	TypeParticipantUnregistered = "roster.participant_unregistered"
)

// ParticipantSignedUp is emitted after a student joins an activity.
type ParticipantSignedUp struct {
	EventID          string    `json:"event_id"`
	Activity         string    `json:"activity"`
	Email            string    `json:"email"`
	ParticipantCount int       `json:"participant_count"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// ParticipantUnregistered is emitted after a student leaves an activity.
type ParticipantUnregistered struct {
	EventID          string    `json:"event_id"`
	Activity         string    `json:"activity"`
	Email            string    `json:"email"`
	ParticipantCount int       `json:"participant_count"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// RosterEvent is the union view used by consumers that handle both types.
type RosterEvent struct {
	EventID          string    `json:"event_id"`
	Activity         string    `json:"activity"`
	Email            string    `json:"email"`
	ParticipantCount int       `json:"participant_count"`
	OccurredAt       time.Time `json:"occurred_at"`
}

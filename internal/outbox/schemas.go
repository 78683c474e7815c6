package outbox

import "example.com/mergington/internal/events"

const participantSignedUpSchema = `{
  "type": "object",
  "title": "ParticipantSignedUp",
  "properties": {
    "event_id": {"type": "string"},
    "activity": {"type": "string"},
    "email": {"type": "string"},
    "participant_count": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["event_id", "activity", "email", "participant_count", "occurred_at"],
  "additionalProperties": false
}`

const participantUnregisteredSchema = `{
  "type": "object",
  "title": "ParticipantUnregistered",
  "properties": {
    "event_id": {"type": "string"},
    "activity": {"type": "string"},
    "email": {"type": "string"},
    "participant_count": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["event_id", "activity", "email", "participant_count", "occurred_at"],
  "additionalProperties": false
}`

var schemaCatalog = map[string]string{
	events.TypeParticipantSignedUp:     participantSignedUpSchema,
	events.TypeParticipantUnregistered: participantUnregisteredSchema,
}

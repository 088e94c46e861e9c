// Package outbox implements the transactional outbox for appointment
// notifications: storage writes a row in the same transaction as the booking
// change, and a background publisher drains rows into Kafka. A crash between
// commit and publish re-delivers; consumers dedupe on event_id.
package outbox

import "time"

const aggregateType = "appointment"

// Event is one notification-worthy appointment fact awaiting publication.
type Event struct {
	AggregateID string // appointment id, also the Kafka partition key
	EventType   string // fully qualified topic, see TopicFor
	Payload     []byte
}

// TopicFor maps a ledger event kind to its versioned topic name, e.g.
// "created" -> "booking.appointment.created.v1".
func TopicFor(kind string) string {
	return "booking.appointment." + kind + ".v1"
}

// Payload is the JSON body published for every appointment event.
type Payload struct {
	Kind           string    `json:"kind"`
	AppointmentID  string    `json:"appointment_id"`
	ProfessionalID string    `json:"professional_id"`
	ClientEmail    string    `json:"client_email,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

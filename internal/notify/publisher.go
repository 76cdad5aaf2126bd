// Package notify publishes approval notifications to NATS JetStream for
// consumption by the platform notification service.
package notify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Subject for training approval notification events.
const subject = "notifications.training.approval"

// Publisher publishes notification events to NATS JetStream.
//
// All publish operations are non-fatal: errors are logged but never
// propagated to the caller, so notification failures never interrupt
// approval state transitions. A nil connection disables publishing.
type Publisher struct {
	js  nats.JetStreamContext
	log zerolog.Logger
}

// Event is the JSON schema published to NATS.
type Event struct {
	EventID       string `json:"event_id"`
	RecipientID   string `json:"recipient_id"`
	Title         string `json:"title"`
	Message       string `json:"message"`
	ReferenceType string `json:"reference_type,omitempty"`
	ReferenceID   string `json:"reference_id,omitempty"`
	Category      string `json:"category"`
	Severity      string `json:"severity"`
}

// NewPublisher creates a publisher backed by the given NATS connection.
// conn may be nil, in which case Notify is a no-op. A connection whose
// JetStream context cannot be obtained also degrades to a no-op.
func NewPublisher(conn *nats.Conn, log zerolog.Logger) *Publisher {
	p := &Publisher{log: log}
	if conn == nil {
		return p
	}

	js, err := conn.JetStream()
	if err != nil {
		log.Warn().Err(err).Msg("notification: JetStream unavailable, publishing disabled")
		return p
	}
	p.js = js
	return p
}

// Notify publishes one notification event. Fire-and-forget.
func (p *Publisher) Notify(ctx context.Context, recipientID, title, message, referenceType, referenceID string) {
	if p.js == nil || recipientID == "" {
		return
	}

	event := &Event{
		EventID:       uuid.NewString(),
		RecipientID:   recipientID,
		Title:         title,
		Message:       message,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		Category:      "training_approval",
		Severity:      "info",
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("recipient_id", recipientID).Msg("notification: failed to marshal event")
		return
	}

	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("reference_id", referenceID).
			Msg("notification: failed to publish JetStream event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("recipient_id", recipientID).
		Str("reference_id", referenceID).
		Msg("notification: event published")
}

package outbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cakestore-backend/pkg/enums"
)

// EnvelopeVersion is the payload layout written by this build.
const EnvelopeVersion = 1

// PayloadEnvelope wraps every row in outbox_events. Consumers deduplicate on EventID since
// delivery is at least once.
type PayloadEnvelope struct {
	Version    int                   `json:"version"`
	EventID    string                `json:"event_id"`
	EventType  enums.OutboxEventType `json:"event_type,omitempty"`
	OccurredAt time.Time             `json:"occurred_at"`
	Source     string                `json:"source,omitempty"`
	Data       json.RawMessage       `json:"data"`
}

func newEnvelope(event DomainEvent, now time.Time) (PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("encode %s payload: %w", event.EventType, err)
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	version := event.Version
	if version == 0 {
		version = EnvelopeVersion
	}
	return PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		EventType:  event.EventType,
		OccurredAt: occurred.UTC(),
		Source:     event.Source,
		Data:       data,
	}, nil
}

// DecodeEnvelope parses a stored payload and rejects envelopes from a newer writer or with
// no data.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Version > EnvelopeVersion {
		return PayloadEnvelope{}, fmt.Errorf("unsupported envelope version %d", envelope.Version)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return PayloadEnvelope{}, fmt.Errorf("envelope %s has no data", envelope.EventID)
	}
	return envelope, nil
}

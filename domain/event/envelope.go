/*
Package event decodes the write side's event records.

A record is a JSON envelope whose "type" field selects the payload schema:

	{"aggregate_id":"<post id>","version":3,"type":"PostLikedEvent","payload":{...}}

Decoding failures are permanent: re-delivering the same bytes cannot fix them.
*/
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMalformedEvent marks records whose envelope or payload cannot be decoded.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUnknownEventType marks records with a discriminator this service does not project.
	ErrUnknownEventType = errors.New("unknown event type")
)

// IsPermanent reports whether err can never succeed on retry.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrMalformedEvent) || errors.Is(err, ErrUnknownEventType)
}

// Envelope is the transport form of one event.
type Envelope struct {
	AggregateID string          `json:"aggregate_id"`
	Version     int64           `json:"version"`
	Type        Type            `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	OccurredOn  time.Time       `json:"occurred_on,omitempty"`
}

// DecodeEnvelope parses a raw record value.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.AggregateID == "" {
		return Envelope{}, fmt.Errorf("%w: missing aggregate_id", ErrMalformedEvent)
	}
	if env.Version <= 0 {
		return Envelope{}, fmt.Errorf("%w: version must be positive, got %d", ErrMalformedEvent, env.Version)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	}
	return env, nil
}

// Encode is the inverse of DecodeEnvelope. The write side's format is the
// contract; this exists for tooling and tests.
func Encode(aggregateID string, version int64, e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		AggregateID: aggregateID,
		Version:     version,
		Type:        e.EventType(),
		Payload:     payload,
	})
}

// Decode selects the payload schema by the envelope's discriminator.
func (env Envelope) Decode() (Event, error) {
	factory, ok := registry[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}
	e := factory()
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("%w: %s has no payload", ErrMalformedEvent, env.Type)
	}
	if err := json.Unmarshal(env.Payload, e); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformedEvent, env.Type, err)
	}
	if err := e.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, env.Type, err)
	}
	return e, nil
}

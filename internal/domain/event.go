package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// RawEvent represents an unprocessed message from the request topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// OutputEvent is the serialized form destined for the result topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// Kind names the computation a request asks for.
type Kind string

const (
	KindDischarge   Kind = "discharge"
	KindRatingFit   Kind = "rating_fit"
	KindRatingApply Kind = "rating_apply"
	KindBaseflow    Kind = "baseflow"
)

// Request is the envelope of a computation request.
type Request struct {
	ID      string          `json:"id"`
	Kind    Kind            `json:"kind"`
	Station string          `json:"station,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Result is the envelope published for a completed request.
type Result struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Station     string    `json:"station,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
	Result      any       `json:"result"`
}

// ParseRequest decodes a request envelope. Requests without an id are
// keyed by the message key, or by a hash of the payload when the key is
// empty, so replays map to the same result key.
func ParseRequest(raw RawEvent) (Request, error) {
	var req Request
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return Request{}, fmt.Errorf("parse request: %w", err)
	}

	switch req.Kind {
	case KindDischarge, KindRatingFit, KindRatingApply, KindBaseflow:
	default:
		return Request{}, fmt.Errorf("parse request: %w: %q", ErrUnknownKind, req.Kind)
	}
	if len(req.Payload) == 0 {
		return Request{}, fmt.Errorf("parse request: %w: empty payload", ErrInvalidParameter)
	}

	if req.ID == "" {
		req.ID = string(raw.Key)
	}
	if req.ID == "" {
		req.ID = generateID(req.Kind, req.Station, req.Payload)
	}
	return req, nil
}

// generateID produces a deterministic id from the request's content.
func generateID(kind Kind, station string, payload []byte) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|", kind, station)
	h.Write(payload)
	return string(kind) + "-" + hex.EncodeToString(h.Sum(nil)[:8])
}

// DecodePayload unmarshals a request payload into v.
func DecodePayload(req Request, v any) error {
	if err := json.Unmarshal(req.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", req.Kind, err)
	}
	return nil
}

// SerializeResult marshals a result envelope into an output event keyed by
// request id.
func SerializeResult(res Result) (OutputEvent, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize result: %w", err)
	}
	return OutputEvent{
		Key:   []byte(res.ID),
		Value: data,
		Headers: map[string]string{
			"kind":         string(res.Kind),
			"processed_at": res.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}

package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"ccmart/internal/usecase"

	"github.com/google/uuid"
)

const (
	eventVersion = 1
	producerName = "ccmart-api"
)

// トピックに流すメッセージの外側
type Envelope struct {
	EventID      string          `json:"event_id"`      // uuid
	EventType    string          `json:"event_type"`    // order.placed など
	EventVersion int             `json:"event_version"` // 1
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	Payload      json.RawMessage `json:"payload"`
}

func NewEnvelope(e usecase.OrderEvent) (Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode payload: %w", err)
	}
	occurred := e.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return Envelope{
		EventID:      uuid.NewString(),
		EventType:    string(e.Type),
		EventVersion: eventVersion,
		OccurredAt:   occurred.UTC(),
		Producer:     producerName,
		Payload:      payload,
	}, nil
}

// 知らないバージョンはエラー
func DecodeOrderEvent(b []byte) (Envelope, usecase.OrderEvent, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, usecase.OrderEvent{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventVersion != eventVersion {
		return env, usecase.OrderEvent{}, fmt.Errorf("unsupported event version %d", env.EventVersion)
	}
	var e usecase.OrderEvent
	if err := json.Unmarshal(env.Payload, &e); err != nil {
		return env, usecase.OrderEvent{}, fmt.Errorf("decode payload: %w", err)
	}
	return env, e, nil
}

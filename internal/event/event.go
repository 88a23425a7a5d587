// README: Domain events emitted after ride and review changes, plus the publisher contract.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	TypeRideCreated       = "ride.created"
	TypeRideStatusChanged = "ride.status_changed"
	TypeReviewSubmitted   = "review.submitted"
)

type Event struct {
	ID          string          `json:"event_id"`
	Type        string          `json:"event_type"`
	AggregateID string          `json:"aggregate_id"`
	RequestID   string          `json:"request_id,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Data        json.RawMessage `json:"data"`
}

func New(eventType, aggregateID string, data any) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s data: %w", eventType, err)
	}
	return &Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		OccurredAt:  time.Now().UTC(),
		Data:        raw,
	}, nil
}

// Publisher delivers events. Callers treat failures as best-effort.
type Publisher interface {
	Publish(ctx context.Context, e *Event) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, *Event) error { return nil }

type RideStatusData struct {
	RideID    string `json:"ride_id"`
	Status    string `json:"status"`
	ActorType string `json:"actor_type"`
	ActorID   string `json:"actor_id"`
}

type RideCreatedData struct {
	RideID    string `json:"ride_id"`
	UserID    string `json:"user_id"`
	TariffID  string `json:"tariff_id"`
	TotalCost string `json:"total_cost"`
}

type ReviewSubmittedData struct {
	ReviewID string  `json:"review_id"`
	RideID   string  `json:"ride_id"`
	DriverID string  `json:"driver_id"`
	Rating   int     `json:"rating"`
	Average  float64 `json:"driver_rating"`
}

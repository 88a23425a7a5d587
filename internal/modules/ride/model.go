// README: Ride aggregate, status definitions and the transition table.
package ride

import (
	"time"

	"ridehail/internal/apperr"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/types"
)

type Status string

const (
	StatusNew       Status = "new"
	StatusAccepted  Status = "accepted"
	StatusOnWay     Status = "on_way"
	StatusCompleted Status = "completed"
)

type ActorType string

const (
	ActorPassenger ActorType = "passenger"
	ActorDriver    ActorType = "driver"
)

var (
	// ErrRideUnavailable covers a missing ride, a ride owned by someone else
	// and a ride in the wrong state alike.
	ErrRideUnavailable = apperr.New(apperr.KindNotFound, "ride not found or no longer available")
	ErrUnknownTariff   = apperr.Validation("tariff not found")
)

// AllowedTransitions represents the ride state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusNew:      {StatusAccepted},
	StatusAccepted: {StatusOnWay, StatusCompleted},
	StatusOnWay:    {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// sourcesOf lists every status with an edge into to, in a stable order.
func sourcesOf(to Status) []string {
	var out []string
	for _, from := range []Status{StatusNew, StatusAccepted, StatusOnWay, StatusCompleted} {
		if CanTransition(from, to) {
			out = append(out, string(from))
		}
	}
	return out
}

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusAccepted, StatusOnWay, StatusCompleted:
		return true
	}
	return false
}

type Ride struct {
	ID          types.ID
	UserID      types.ID
	DriverID    *types.ID
	TariffID    string
	Pickup      string
	Destination string
	// nil when the passenger gave no usable value
	DistanceKm  *pricing.Quantity
	DurationMin *pricing.Quantity
	Status      Status
	TotalCost   types.Money
	CreatedAt   time.Time
	CompletedAt *time.Time
}

type Car struct {
	Brand       string
	Model       string
	PlateNumber string
	Year        int
}

type ReviewSummary struct {
	Rating  int
	Comment *string
}

// PassengerRide is a ride as listed for its owner.
type PassengerRide struct {
	Ride
	TariffName string
	DriverName *string
	Car        *Car
	Review     *ReviewSummary
}

// DriverOrder is a ride as shown on a driver's order board.
type DriverOrder struct {
	Ride
	PassengerName string
	TariffName    string
}

type Event struct {
	ID        int64
	RideID    types.ID
	Status    Status
	ActorType ActorType
	ActorID   types.ID
	CreatedAt time.Time
}

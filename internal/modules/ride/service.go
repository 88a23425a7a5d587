// README: Ride service implements creation, guarded state transitions and ride reads.
package ride

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ridehail/internal/apperr"
	"ridehail/internal/event"
	"ridehail/internal/logger"
	"ridehail/internal/metrics"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/types"
	"ridehail/internal/validate"
)

type Pricing interface {
	GetTariff(ctx context.Context, id string) (pricing.Tariff, error)
}

type Service struct {
	store     *Store
	pricing   Pricing
	publisher event.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(store *Store, pricing Pricing, publisher event.Publisher, log *slog.Logger) *Service {
	if publisher == nil {
		publisher = event.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, pricing: pricing, publisher: publisher, logger: log, now: time.Now}
}

type CreateCommand struct {
	UserID      types.ID `json:"-" validate:"required"`
	TariffID    string   `json:"tariff_id" validate:"required"`
	Pickup      string   `json:"pickup_address" validate:"required,max=255"`
	Destination string   `json:"destination_address" validate:"required,max=255"`
	DistanceKm  pricing.Quantity
	DurationMin pricing.Quantity
}

type AcceptCommand struct {
	RideID   types.ID
	DriverID types.ID
}

type OnWayCommand struct {
	RideID   types.ID
	DriverID types.ID
}

type CompleteCommand struct {
	RideID   types.ID
	DriverID types.ID
}

// Viewer identifies who is reading a ride.
type Viewer struct {
	Type ActorType
	ID   types.ID
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Ride, error) {
	cmd.Pickup = strings.TrimSpace(cmd.Pickup)
	cmd.Destination = strings.TrimSpace(cmd.Destination)
	cmd.TariffID = strings.TrimSpace(cmd.TariffID)
	if err := validate.Struct(cmd); err != nil {
		return nil, err
	}

	tariff, err := s.pricing.GetTariff(ctx, cmd.TariffID)
	if errors.Is(err, pricing.ErrTariffNotFound) {
		return nil, ErrUnknownTariff
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	r := &Ride{
		ID:          types.ID(uuid.NewString()),
		UserID:      cmd.UserID,
		TariffID:    tariff.ID,
		Pickup:      cmd.Pickup,
		Destination: cmd.Destination,
		DistanceKm:  nonZero(cmd.DistanceKm),
		DurationMin: nonZero(cmd.DurationMin),
		Status:      StatusNew,
		TotalCost:   pricing.ComputeCost(tariff, cmd.DistanceKm, cmd.DurationMin),
		CreatedAt:   now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		s.log(ctx).Error("create ride failed", slog.String("error", err.Error()))
		return nil, apperr.Store(err)
	}

	s.recordTransition(ctx, r.ID, StatusNew, ActorPassenger, cmd.UserID)
	s.publish(ctx, event.TypeRideCreated, r.ID, event.RideCreatedData{
		RideID:    string(r.ID),
		UserID:    string(r.UserID),
		TariffID:  r.TariffID,
		TotalCost: r.TotalCost.Decimal(),
	})
	s.log(ctx).Info("ride created",
		slog.String("ride_id", string(r.ID)),
		slog.String("tariff_id", r.TariffID),
		slog.String("total_cost", r.TotalCost.Decimal()),
	)
	return r, nil
}

// Accept assigns the driver to a new ride. Of several concurrent accepts
// exactly one succeeds; the rest get ErrRideUnavailable.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) error {
	if cmd.RideID == "" || cmd.DriverID == "" {
		return ErrRideUnavailable
	}
	ok, err := s.store.Assign(ctx, cmd.RideID, cmd.DriverID, StatusAccepted, sourcesOf(StatusAccepted))
	return s.afterTransition(ctx, cmd.RideID, cmd.DriverID, StatusAccepted, ok, err)
}

func (s *Service) OnWay(ctx context.Context, cmd OnWayCommand) error {
	return s.advance(ctx, cmd.RideID, cmd.DriverID, StatusOnWay)
}

func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) error {
	return s.advance(ctx, cmd.RideID, cmd.DriverID, StatusCompleted)
}

func (s *Service) advance(ctx context.Context, rideID, driverID types.ID, to Status) error {
	if rideID == "" || driverID == "" {
		return ErrRideUnavailable
	}
	ok, err := s.store.Advance(ctx, rideID, driverID, to, sourcesOf(to))
	return s.afterTransition(ctx, rideID, driverID, to, ok, err)
}

func (s *Service) afterTransition(ctx context.Context, rideID, driverID types.ID, to Status, ok bool, err error) error {
	if err != nil {
		s.log(ctx).Error("ride transition failed",
			slog.String("ride_id", string(rideID)),
			slog.String("to", string(to)),
			slog.String("error", err.Error()),
		)
		return apperr.Store(err)
	}
	if !ok {
		metrics.RideTransitionsRejected.WithLabelValues(string(to)).Inc()
		s.log(ctx).Warn("ride transition rejected",
			slog.String("ride_id", string(rideID)),
			slog.String("driver_id", string(driverID)),
			slog.String("to", string(to)),
		)
		return ErrRideUnavailable
	}
	s.recordTransition(ctx, rideID, to, ActorDriver, driverID)
	s.publish(ctx, event.TypeRideStatusChanged, rideID, event.RideStatusData{
		RideID:    string(rideID),
		Status:    string(to),
		ActorType: string(ActorDriver),
		ActorID:   string(driverID),
	})
	s.log(ctx).Info("ride status changed",
		slog.String("ride_id", string(rideID)),
		slog.String("driver_id", string(driverID)),
		slog.String("status", string(to)),
	)
	return nil
}

// Get returns the ride if the viewer owns it or is its assigned driver.
func (s *Service) Get(ctx context.Context, rideID types.ID, viewer Viewer) (*Ride, error) {
	r, err := s.store.Get(ctx, rideID)
	if errors.Is(err, errNotFound) {
		return nil, ErrRideUnavailable
	}
	if err != nil {
		return nil, apperr.Store(err)
	}
	if !visibleTo(r, viewer) {
		return nil, ErrRideUnavailable
	}
	return r, nil
}

func visibleTo(r *Ride, v Viewer) bool {
	switch v.Type {
	case ActorPassenger:
		return v.ID != "" && r.UserID == v.ID
	case ActorDriver:
		return v.ID != "" && r.DriverID != nil && *r.DriverID == v.ID
	}
	return false
}

func (s *Service) ListForPassenger(ctx context.Context, userID types.ID) ([]PassengerRide, error) {
	rides, err := s.store.ListForPassenger(ctx, userID)
	if err != nil {
		return nil, apperr.Store(err)
	}
	return rides, nil
}

func (s *Service) ListForDriver(ctx context.Context, driverID types.ID) ([]DriverOrder, error) {
	orders, err := s.store.ListForDriver(ctx, driverID)
	if err != nil {
		return nil, apperr.Store(err)
	}
	return orders, nil
}

// recordTransition appends to the audit log. Failures are logged, not returned:
// the ride row is already committed.
func (s *Service) recordTransition(ctx context.Context, rideID types.ID, status Status, actor ActorType, actorID types.ID) {
	metrics.RideTransitions.WithLabelValues(string(status)).Inc()
	err := s.store.AppendEvent(ctx, &Event{
		RideID:    rideID,
		Status:    status,
		ActorType: actor,
		ActorID:   actorID,
		CreatedAt: s.now(),
	})
	if err != nil {
		s.log(ctx).Warn("append ride event failed",
			slog.String("ride_id", string(rideID)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, rideID types.ID, data any) {
	e, err := event.New(eventType, string(rideID), data)
	if err == nil {
		err = s.publisher.Publish(ctx, e)
	}
	if err != nil {
		metrics.EventPublishFailures.WithLabelValues(eventType).Inc()
		s.log(ctx).Warn("publish event failed",
			slog.String("event_type", eventType),
			slog.String("ride_id", string(rideID)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logger.FromContext(ctx, s.logger)
}

func nonZero(q pricing.Quantity) *pricing.Quantity {
	if q <= 0 {
		return nil
	}
	return &q
}

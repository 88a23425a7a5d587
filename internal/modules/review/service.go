// README: Review service validates submissions and keeps driver ratings in step with reviews.
package review

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
	"ridehail/internal/types"
	"ridehail/internal/validate"
)

type Service struct {
	store     *Store
	publisher event.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(store *Store, publisher event.Publisher, log *slog.Logger) *Service {
	if publisher == nil {
		publisher = event.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, publisher: publisher, logger: log, now: time.Now}
}

type SubmitCommand struct {
	RideID  types.ID `json:"-" validate:"required"`
	UserID  types.ID `json:"-" validate:"required"`
	Rating  int      `json:"rating" validate:"gte=1,lte=5"`
	Comment string   `json:"comment" validate:"max=1000"`
}

type Submitted struct {
	Review       Review
	DriverRating float64
}

func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (*Submitted, error) {
	cmd.Comment = strings.TrimSpace(cmd.Comment)
	if err := validate.Struct(cmd); err != nil {
		return nil, err
	}

	r := Review{
		ID:        types.ID(uuid.NewString()),
		RideID:    cmd.RideID,
		UserID:    cmd.UserID,
		Rating:    cmd.Rating,
		CreatedAt: s.now(),
	}
	if cmd.Comment != "" {
		c := cmd.Comment
		r.Comment = &c
	}

	log := logger.FromContext(ctx, s.logger)
	mean, err := s.store.Submit(ctx, &r)
	if errors.Is(err, ErrRideNotReviewable) || errors.Is(err, ErrAlreadyReviewed) {
		log.Warn("review rejected",
			slog.String("ride_id", string(cmd.RideID)),
			slog.String("reason", err.Error()),
		)
		return nil, err
	}
	if err != nil {
		log.Error("submit review failed",
			slog.String("ride_id", string(cmd.RideID)),
			slog.String("error", err.Error()),
		)
		return nil, apperr.Store(err)
	}

	metrics.ReviewsSubmitted.Inc()
	e, err := event.New(event.TypeReviewSubmitted, string(r.DriverID), event.ReviewSubmittedData{
		ReviewID: string(r.ID),
		RideID:   string(r.RideID),
		DriverID: string(r.DriverID),
		Rating:   r.Rating,
		Average:  mean,
	})
	if err == nil {
		err = s.publisher.Publish(ctx, e)
	}
	if err != nil {
		metrics.EventPublishFailures.WithLabelValues(event.TypeReviewSubmitted).Inc()
		log.Warn("publish event failed", slog.String("event_type", event.TypeReviewSubmitted), slog.String("error", err.Error()))
	}

	log.Info("review submitted",
		slog.String("ride_id", string(r.RideID)),
		slog.String("driver_id", string(r.DriverID)),
		slog.Int("rating", r.Rating),
		slog.Float64("driver_rating", mean),
	)
	return &Submitted{Review: r, DriverRating: mean}, nil
}

func (s *Service) ListForDriver(ctx context.Context, driverID types.ID) ([]Received, error) {
	out, err := s.store.ListForDriver(ctx, driverID)
	if err != nil {
		return nil, apperr.Store(err)
	}
	return out, nil
}

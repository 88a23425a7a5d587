// README: Pricing service exposes tariffs and fare quotes.
package pricing

import (
	"context"

	"ridehail/internal/apperr"
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) ListTariffs(ctx context.Context) ([]Tariff, error) {
	tariffs, err := s.store.List(ctx)
	if err != nil {
		return nil, apperr.Store(err)
	}
	return tariffs, nil
}

func (s *Service) GetTariff(ctx context.Context, id string) (Tariff, error) {
	if id == "" {
		return Tariff{}, ErrTariffNotFound
	}
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return Tariff{}, apperr.Store(err)
	}
	return t, nil
}

// Quote previews the fare a ride with these parameters would be charged.
func (s *Service) Quote(ctx context.Context, tariffID string, distanceKm, durationMin Quantity) (Quote, error) {
	t, err := s.GetTariff(ctx, tariffID)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Tariff:      t,
		DistanceKm:  distanceKm,
		DurationMin: durationMin,
		Total:       ComputeCost(t, distanceKm, durationMin),
	}, nil
}

func (s *Service) CountTariffs(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, apperr.Store(err)
	}
	return n, nil
}

// README: Tariff store backed by PostgreSQL. Prices are converted to minor units in SQL.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ridehail/internal/infra"
	"ridehail/internal/types"
)

type Store struct {
	db infra.DB
}

func NewStore(db infra.DB) *Store {
	return &Store{db: db}
}

const tariffColumns = `id, name,
       (base_price * 100)::BIGINT,
       (price_per_km * 100)::BIGINT,
       (price_per_minute * 100)::BIGINT`

func (s *Store) List(ctx context.Context) ([]Tariff, error) {
	rows, err := s.db.Query(ctx, `SELECT `+tariffColumns+` FROM tariffs ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("list tariffs: %w", err)
	}
	defer rows.Close()

	var out []Tariff
	for rows.Next() {
		t, err := scanTariff(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tariff: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (Tariff, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tariffColumns+` FROM tariffs WHERE id = $1`, id)
	t, err := scanTariff(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tariff{}, ErrTariffNotFound
	}
	if err != nil {
		return Tariff{}, fmt.Errorf("get tariff %s: %w", id, err)
	}
	return t, nil
}

// Count is used by the health check as a store round-trip.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM tariffs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count tariffs: %w", err)
	}
	return n, nil
}

func scanTariff(row pgx.Row) (Tariff, error) {
	var t Tariff
	if err := row.Scan(&t.ID, &t.Name, &t.BasePrice.Amount, &t.PerKm.Amount, &t.PerMinute.Amount); err != nil {
		return Tariff{}, err
	}
	t.BasePrice.Currency = types.DefaultCurrency
	t.PerKm.Currency = types.DefaultCurrency
	t.PerMinute.Currency = types.DefaultCurrency
	return t, nil
}

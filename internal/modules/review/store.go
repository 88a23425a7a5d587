// README: Review store backed by PostgreSQL. Submit runs insert and rating recompute in one transaction.
package review

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

// Submit stores r and recomputes the driver's mean rating. r.DriverID is
// filled from the ride. The new mean is returned. Nothing is written unless
// every step succeeds.
func (s *Store) Submit(ctx context.Context, r *Review) (float64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin review tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var driverID string
	err = tx.QueryRow(ctx, `
        SELECT driver_id FROM rides
        WHERE id = $1 AND user_id = $2 AND status = 'completed'`,
		string(r.RideID), string(r.UserID),
	).Scan(&driverID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrRideNotReviewable
	}
	if err != nil {
		return 0, fmt.Errorf("load ride: %w", err)
	}
	r.DriverID = types.ID(driverID)

	// Serializes rating recomputation per driver.
	var locked string
	if err := tx.QueryRow(ctx, `SELECT id FROM drivers WHERE id = $1 FOR UPDATE`, driverID).Scan(&locked); err != nil {
		return 0, fmt.Errorf("lock driver: %w", err)
	}

	var exists bool
	err = tx.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM reviews WHERE ride_id = $1 AND user_id = $2)`,
		string(r.RideID), string(r.UserID),
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("check existing review: %w", err)
	}
	if exists {
		return 0, ErrAlreadyReviewed
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO reviews (id, ride_id, user_id, driver_id, rating, comment, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(r.ID),
		string(r.RideID),
		string(r.UserID),
		driverID,
		r.Rating,
		r.Comment,
		r.CreatedAt,
	)
	if infra.IsUniqueViolation(err) {
		return 0, ErrAlreadyReviewed
	}
	if err != nil {
		return 0, fmt.Errorf("insert review: %w", err)
	}

	var mean float64
	err = tx.QueryRow(ctx, `
        UPDATE drivers SET rating = (
            SELECT ROUND(AVG(rating)::NUMERIC, 2) FROM reviews WHERE driver_id = $1
        )
        WHERE id = $1
        RETURNING rating::FLOAT8`,
		driverID,
	).Scan(&mean)
	if err != nil {
		return 0, fmt.Errorf("update driver rating: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit review: %w", err)
	}
	return mean, nil
}

func (s *Store) ListForDriver(ctx context.Context, driverID types.ID) ([]Received, error) {
	rows, err := s.db.Query(ctx, `
        SELECT rev.id, rev.ride_id, rev.rating, rev.comment, rev.created_at,
               u.full_name, r.created_at
        FROM reviews rev
        JOIN users u ON u.id = rev.user_id
        JOIN rides r ON r.id = rev.ride_id
        WHERE rev.driver_id = $1
        ORDER BY rev.created_at DESC, rev.id`,
		string(driverID),
	)
	if err != nil {
		return nil, fmt.Errorf("list driver reviews: %w", err)
	}
	defer rows.Close()

	var out []Received
	for rows.Next() {
		var (
			rv     Received
			id     string
			rideID string
			rating int32
		)
		if err := rows.Scan(&id, &rideID, &rating, &rv.Comment, &rv.CreatedAt, &rv.PassengerName, &rv.RideCreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		rv.ID = types.ID(id)
		rv.RideID = types.ID(rideID)
		rv.Rating = int(rating)
		out = append(out, rv)
	}
	return out, rows.Err()
}

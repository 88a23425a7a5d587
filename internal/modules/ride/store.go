// README: Ride store backed by PostgreSQL. Every transition is one conditional UPDATE.
package ride

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ridehail/internal/infra"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/types"
)

var errNotFound = errors.New("ride not found")

type Store struct {
	db infra.DB
}

func NewStore(db infra.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, r *Ride) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO rides (
            id, user_id, tariff_id, pickup_address, destination_address,
            distance_km, duration_min, status, total_cost, created_at
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6::BIGINT / 1000.0, $7::BIGINT / 1000.0, $8, $9::BIGINT / 100.0, $10
        )`,
		string(r.ID),
		string(r.UserID),
		r.TariffID,
		r.Pickup,
		r.Destination,
		quantityArg(r.DistanceKm),
		quantityArg(r.DurationMin),
		string(r.Status),
		r.TotalCost.Amount,
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}
	return nil
}

// Assign moves a driverless ride in one of the from statuses to `to` and
// records the driver. It reports whether exactly one row changed.
func (s *Store) Assign(ctx context.Context, id, driverID types.ID, to Status, from []string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE rides
        SET driver_id = $1,
            status = $2
        WHERE id = $3 AND driver_id IS NULL AND status = ANY($4)`,
		string(driverID),
		string(to),
		string(id),
		from,
	)
	if err != nil {
		return false, fmt.Errorf("assign ride: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Advance moves a ride held by driverID from one of the from statuses to `to`.
func (s *Store) Advance(ctx context.Context, id, driverID types.ID, to Status, from []string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE rides
        SET status = $1::TEXT,
            completed_at = CASE WHEN $1::TEXT = 'completed' THEN NOW() ELSE completed_at END
        WHERE id = $2 AND driver_id = $3 AND status = ANY($4)`,
		string(to),
		string(id),
		string(driverID),
		from,
	)
	if err != nil {
		return false, fmt.Errorf("advance ride: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO ride_events (ride_id, status, actor_type, actor_id, created_at)
        VALUES ($1, $2, $3, $4, $5)`,
		string(e.RideID),
		string(e.Status),
		string(e.ActorType),
		string(e.ActorID),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append ride event: %w", err)
	}
	return nil
}

const rideColumns = `r.id, r.user_id, r.driver_id, r.tariff_id, r.pickup_address, r.destination_address,
               (r.distance_km * 1000)::BIGINT, (r.duration_min * 1000)::BIGINT,
               r.status, (r.total_cost * 100)::BIGINT, r.created_at, r.completed_at`

func (s *Store) Get(ctx context.Context, id types.ID) (*Ride, error) {
	row := s.db.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides r WHERE r.id = $1`, string(id))
	r, err := scanRide(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ride: %w", err)
	}
	return r, nil
}

func (s *Store) ListForPassenger(ctx context.Context, userID types.ID) ([]PassengerRide, error) {
	rows, err := s.db.Query(ctx, `
        SELECT `+rideColumns+`,
               t.name,
               d.full_name,
               c.brand, c.model, c.plate_number, c.year,
               rev.rating, rev.comment
        FROM rides r
        JOIN tariffs t ON t.id = r.tariff_id
        LEFT JOIN drivers d ON d.id = r.driver_id
        LEFT JOIN cars c ON c.driver_id = r.driver_id
        LEFT JOIN reviews rev ON rev.ride_id = r.id AND rev.user_id = r.user_id
        WHERE r.user_id = $1
        ORDER BY r.created_at DESC, r.id`,
		string(userID),
	)
	if err != nil {
		return nil, fmt.Errorf("list passenger rides: %w", err)
	}
	defer rows.Close()

	var out []PassengerRide
	for rows.Next() {
		var (
			pr                 PassengerRide
			rr                 rideRow
			driverName         *string
			brand, model, plat *string
			year               *int32
			rating             *int32
			comment            *string
		)
		dest := append(rr.dest(), &pr.TariffName, &driverName, &brand, &model, &plat, &year, &rating, &comment)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan passenger ride: %w", err)
		}
		pr.Ride = rr.ride()
		pr.DriverName = driverName
		if brand != nil {
			pr.Car = &Car{Brand: *brand, Model: deref(model), PlateNumber: deref(plat)}
			if year != nil {
				pr.Car.Year = int(*year)
			}
		}
		if rating != nil {
			pr.Review = &ReviewSummary{Rating: int(*rating), Comment: comment}
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

// ListForDriver returns open rides plus the driver's own active ones, oldest first.
func (s *Store) ListForDriver(ctx context.Context, driverID types.ID) ([]DriverOrder, error) {
	rows, err := s.db.Query(ctx, `
        SELECT `+rideColumns+`,
               u.full_name,
               t.name
        FROM rides r
        JOIN users u ON u.id = r.user_id
        JOIN tariffs t ON t.id = r.tariff_id
        WHERE r.status = 'new'
           OR (r.driver_id = $1 AND r.status IN ('accepted', 'on_way'))
        ORDER BY r.created_at ASC, r.id`,
		string(driverID),
	)
	if err != nil {
		return nil, fmt.Errorf("list driver orders: %w", err)
	}
	defer rows.Close()

	var out []DriverOrder
	for rows.Next() {
		var (
			o  DriverOrder
			rr rideRow
		)
		dest := append(rr.dest(), &o.PassengerName, &o.TariffName)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan driver order: %w", err)
		}
		o.Ride = rr.ride()
		out = append(out, o)
	}
	return out, rows.Err()
}

// rideRow holds the nullable scan targets for rideColumns.
type rideRow struct {
	id, userID          string
	driverID            *string
	tariffID            string
	pickup, destination string
	distance, duration  *int64
	status              string
	totalCost           int64
	createdAt           time.Time
	completedAt         *time.Time
}

func (rr *rideRow) dest() []any {
	return []any{
		&rr.id, &rr.userID, &rr.driverID, &rr.tariffID, &rr.pickup, &rr.destination,
		&rr.distance, &rr.duration,
		&rr.status, &rr.totalCost, &rr.createdAt, &rr.completedAt,
	}
}

func (rr *rideRow) ride() Ride {
	r := Ride{
		ID:          types.ID(rr.id),
		UserID:      types.ID(rr.userID),
		TariffID:    rr.tariffID,
		Pickup:      rr.pickup,
		Destination: rr.destination,
		Status:      Status(rr.status),
		TotalCost:   types.Money{Amount: rr.totalCost, Currency: types.DefaultCurrency},
		CreatedAt:   rr.createdAt,
		CompletedAt: rr.completedAt,
		DistanceKm:  toQuantity(rr.distance),
		DurationMin: toQuantity(rr.duration),
	}
	if rr.driverID != nil {
		d := types.ID(*rr.driverID)
		r.DriverID = &d
	}
	return r
}

func scanRide(row pgx.Row) (*Ride, error) {
	var rr rideRow
	if err := row.Scan(rr.dest()...); err != nil {
		return nil, err
	}
	r := rr.ride()
	return &r, nil
}

func quantityArg(q *pricing.Quantity) *int64 {
	if q == nil {
		return nil
	}
	v := int64(*q)
	return &v
}

func toQuantity(v *int64) *pricing.Quantity {
	if v == nil {
		return nil
	}
	q := pricing.Quantity(*v)
	return &q
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

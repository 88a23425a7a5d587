// README: Account store backed by PostgreSQL (users, drivers, cars).
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ridehail/internal/infra"
	"ridehail/internal/types"
)

var errNotFound = errors.New("account not found")

type Store struct {
	db infra.DB
}

func NewStore(db infra.DB) *Store {
	return &Store{db: db}
}

func (s *Store) PassengerExists(ctx context.Context, email, phone string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 OR phone = $2)`,
		email, phone,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check passenger exists: %w", err)
	}
	return exists, nil
}

func (s *Store) CreatePassenger(ctx context.Context, p *Passenger) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO users (id, full_name, email, phone, password_hash, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		string(p.ID), p.FullName, p.Email, p.Phone, p.PasswordHash, p.CreatedAt,
	)
	if infra.IsUniqueViolation(err) {
		return ErrAlreadyRegistered
	}
	if err != nil {
		return fmt.Errorf("insert passenger: %w", err)
	}
	return nil
}

const passengerColumns = `id, full_name, email, phone, password_hash, created_at`

func (s *Store) PassengerByEmail(ctx context.Context, email string) (*Passenger, error) {
	return s.getPassenger(ctx, `SELECT `+passengerColumns+` FROM users WHERE email = $1`, email)
}

func (s *Store) PassengerByID(ctx context.Context, id types.ID) (*Passenger, error) {
	return s.getPassenger(ctx, `SELECT `+passengerColumns+` FROM users WHERE id = $1`, string(id))
}

func (s *Store) getPassenger(ctx context.Context, sql string, arg string) (*Passenger, error) {
	var (
		p  Passenger
		id string
	)
	err := s.db.QueryRow(ctx, sql, arg).Scan(&id, &p.FullName, &p.Email, &p.Phone, &p.PasswordHash, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get passenger: %w", err)
	}
	p.ID = types.ID(id)
	return &p, nil
}

// CreateDriver inserts the driver and its car in one transaction. The
// email/phone check runs inside the same transaction.
func (s *Store) CreateDriver(ctx context.Context, d *Driver, c *Car) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin driver tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	err = tx.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM drivers WHERE email = $1 OR phone = $2)`,
		d.Email, d.Phone,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check driver exists: %w", err)
	}
	if exists {
		return ErrAlreadyRegistered
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO drivers (id, full_name, email, phone, password_hash, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(d.ID), d.FullName, d.Email, d.Phone, d.PasswordHash, d.Status, d.CreatedAt,
	)
	if infra.IsUniqueViolation(err) {
		return ErrAlreadyRegistered
	}
	if err != nil {
		return fmt.Errorf("insert driver: %w", err)
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO cars (id, driver_id, brand, model, plate_number, year)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		string(c.ID), string(d.ID), c.Brand, c.Model, c.PlateNumber, c.Year,
	)
	if err != nil {
		return fmt.Errorf("insert car: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit driver: %w", err)
	}
	return nil
}

const driverColumns = `d.id, d.full_name, d.email, d.phone, d.password_hash, d.status, d.rating::FLOAT8, d.created_at`

func (s *Store) DriverByEmail(ctx context.Context, email string) (*Driver, error) {
	var (
		d  Driver
		id string
	)
	err := s.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers d WHERE d.email = $1`, email).
		Scan(&id, &d.FullName, &d.Email, &d.Phone, &d.PasswordHash, &d.Status, &d.Rating, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get driver: %w", err)
	}
	d.ID = types.ID(id)
	return &d, nil
}

func (s *Store) DriverProfile(ctx context.Context, id types.ID) (*DriverProfile, error) {
	var (
		p                         DriverProfile
		driverID                  string
		carID, brand, model, plat *string
		year                      *int32
	)
	err := s.db.QueryRow(ctx, `
        SELECT `+driverColumns+`,
               c.id, c.brand, c.model, c.plate_number, c.year
        FROM drivers d
        LEFT JOIN cars c ON c.driver_id = d.id
        WHERE d.id = $1`,
		string(id),
	).Scan(
		&driverID, &p.Driver.FullName, &p.Driver.Email, &p.Driver.Phone, &p.Driver.PasswordHash,
		&p.Driver.Status, &p.Driver.Rating, &p.Driver.CreatedAt,
		&carID, &brand, &model, &plat, &year,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get driver profile: %w", err)
	}
	p.Driver.ID = types.ID(driverID)
	if carID != nil {
		p.Car = &Car{
			ID:          types.ID(*carID),
			DriverID:    p.Driver.ID,
			Brand:       deref(brand),
			Model:       deref(model),
			PlateNumber: deref(plat),
		}
		if year != nil {
			p.Car.Year = int(*year)
		}
	}
	return &p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

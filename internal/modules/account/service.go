// README: Account service: registration, credential checks and profile reads for both roles.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"ridehail/internal/apperr"
	"ridehail/internal/logger"
	"ridehail/internal/metrics"
	"ridehail/internal/types"
	"ridehail/internal/validate"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

const minCarYear = 1950

// maxPasswordBytes is the bcrypt input limit; validator's max counts runes.
const maxPasswordBytes = 72

var errPasswordTooLong = apperr.Validation("password must be at most 72 bytes")

type Service struct {
	store    *Store
	logger   *slog.Logger
	hashCost int
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

func NewService(store *Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, logger: log, hashCost: bcryptCost, now: time.Now}
}

type RegisterPassengerCommand struct {
	FullName string `json:"full_name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Phone    string `json:"phone" validate:"required,min=7,max=20"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type CarInput struct {
	Brand       string `json:"brand" validate:"required,max=50"`
	Model       string `json:"model" validate:"required,max=50"`
	PlateNumber string `json:"plate_number" validate:"required,max=20"`
	Year        int    `json:"year" validate:"required"`
}

type RegisterDriverCommand struct {
	FullName string   `json:"full_name" validate:"required,max=100"`
	Email    string   `json:"email" validate:"required,email,max=254"`
	Phone    string   `json:"phone" validate:"required,min=7,max=20"`
	Password string   `json:"password" validate:"required,min=8,max=72"`
	Car      CarInput `json:"car"`
}

type LoginCommand struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Service) RegisterPassenger(ctx context.Context, cmd RegisterPassengerCommand) (*Passenger, error) {
	cmd.FullName = strings.TrimSpace(cmd.FullName)
	cmd.Email = normalizeEmail(cmd.Email)
	cmd.Phone = strings.TrimSpace(cmd.Phone)
	if err := validate.Struct(cmd); err != nil {
		return nil, err
	}
	if len(cmd.Password) > maxPasswordBytes {
		return nil, errPasswordTooLong
	}

	exists, err := s.store.PassengerExists(ctx, cmd.Email, cmd.Phone)
	if err != nil {
		return nil, apperr.Store(err)
	}
	if exists {
		return nil, ErrAlreadyRegistered
	}

	hash, err := s.hashPassword(cmd.Password)
	if err != nil {
		return nil, err
	}
	p := &Passenger{
		ID:           types.ID(uuid.NewString()),
		FullName:     cmd.FullName,
		Email:        cmd.Email,
		Phone:        cmd.Phone,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreatePassenger(ctx, p); err != nil {
		if errors.Is(err, ErrAlreadyRegistered) {
			return nil, err
		}
		return nil, apperr.Store(err)
	}

	metrics.Registrations.WithLabelValues("passenger").Inc()
	s.log(ctx).Info("passenger registered", slog.String("user_id", string(p.ID)))
	return p, nil
}

func (s *Service) RegisterDriver(ctx context.Context, cmd RegisterDriverCommand) (*DriverProfile, error) {
	cmd.FullName = strings.TrimSpace(cmd.FullName)
	cmd.Email = normalizeEmail(cmd.Email)
	cmd.Phone = strings.TrimSpace(cmd.Phone)
	cmd.Car.Brand = strings.TrimSpace(cmd.Car.Brand)
	cmd.Car.Model = strings.TrimSpace(cmd.Car.Model)
	cmd.Car.PlateNumber = strings.ToUpper(strings.TrimSpace(cmd.Car.PlateNumber))
	if err := validate.Struct(cmd); err != nil {
		return nil, err
	}
	if len(cmd.Password) > maxPasswordBytes {
		return nil, errPasswordTooLong
	}
	if maxYear := s.now().Year() + 1; cmd.Car.Year < minCarYear || cmd.Car.Year > maxYear {
		return nil, apperr.Validation(fmt.Sprintf("year must be between %d and %d", minCarYear, maxYear))
	}

	hash, err := s.hashPassword(cmd.Password)
	if err != nil {
		return nil, err
	}
	d := Driver{
		ID:           types.ID(uuid.NewString()),
		FullName:     cmd.FullName,
		Email:        cmd.Email,
		Phone:        cmd.Phone,
		PasswordHash: string(hash),
		Status:       DriverStatusActive,
		CreatedAt:    s.now().UTC(),
	}
	c := Car{
		ID:          types.ID(uuid.NewString()),
		DriverID:    d.ID,
		Brand:       cmd.Car.Brand,
		Model:       cmd.Car.Model,
		PlateNumber: cmd.Car.PlateNumber,
		Year:        cmd.Car.Year,
	}
	if err := s.store.CreateDriver(ctx, &d, &c); err != nil {
		if errors.Is(err, ErrAlreadyRegistered) {
			return nil, err
		}
		s.log(ctx).Error("register driver failed", slog.String("error", err.Error()))
		return nil, apperr.Store(err)
	}

	metrics.Registrations.WithLabelValues("driver").Inc()
	s.log(ctx).Info("driver registered", slog.String("driver_id", string(d.ID)))
	return &DriverProfile{Driver: d, Car: &c}, nil
}

func (s *Service) AuthenticatePassenger(ctx context.Context, cmd LoginCommand) (*Passenger, error) {
	cmd.Email = normalizeEmail(cmd.Email)
	if err := validate.Struct(cmd); err != nil {
		return nil, err
	}
	p, err := s.store.PassengerByEmail(ctx, cmd.Email)
	if errors.Is(err, errNotFound) {
		s.burnCompare(cmd.Password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Store(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(cmd.Password)) != nil {
		s.log(ctx).Warn("passenger login rejected", slog.String("user_id", string(p.ID)))
		return nil, ErrInvalidCredentials
	}
	return p, nil
}

func (s *Service) AuthenticateDriver(ctx context.Context, cmd LoginCommand) (*Driver, error) {
	cmd.Email = normalizeEmail(cmd.Email)
	if err := validate.Struct(cmd); err != nil {
		return nil, err
	}
	d, err := s.store.DriverByEmail(ctx, cmd.Email)
	if errors.Is(err, errNotFound) {
		s.burnCompare(cmd.Password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Store(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(d.PasswordHash), []byte(cmd.Password)) != nil {
		s.log(ctx).Warn("driver login rejected", slog.String("driver_id", string(d.ID)))
		return nil, ErrInvalidCredentials
	}
	return d, nil
}

func (s *Service) Profile(ctx context.Context, userID types.ID) (*Passenger, error) {
	p, err := s.store.PassengerByID(ctx, userID)
	if errors.Is(err, errNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, apperr.Store(err)
	}
	return p, nil
}

func (s *Service) DriverDashboard(ctx context.Context, driverID types.ID) (*DriverProfile, error) {
	p, err := s.store.DriverProfile(ctx, driverID)
	if errors.Is(err, errNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, apperr.Store(err)
	}
	return p, nil
}

func (s *Service) hashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, errPasswordTooLong
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// burnCompare spends the same bcrypt work on unknown emails as on known ones.
func (s *Service) burnCompare(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("ridehail-placeholder"), s.hashCost)
	})
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logger.FromContext(ctx, s.logger)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

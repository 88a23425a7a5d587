// README: Passenger, driver and car records plus registration/login errors.
package account

import (
	"time"

	"ridehail/internal/apperr"
	"ridehail/internal/types"
)

var (
	ErrAlreadyRegistered  = apperr.New(apperr.KindConflict, "email or phone already registered")
	ErrInvalidCredentials = apperr.New(apperr.KindUnauthorized, "invalid email or password")
	ErrAccountNotFound    = apperr.New(apperr.KindNotFound, "account not found")
)

const DriverStatusActive = "active"

type Passenger struct {
	ID           types.ID
	FullName     string
	Email        string
	Phone        string
	PasswordHash string
	CreatedAt    time.Time
}

type Driver struct {
	ID           types.ID
	FullName     string
	Email        string
	Phone        string
	PasswordHash string
	Status       string
	// nil until the first review
	Rating    *float64
	CreatedAt time.Time
}

type Car struct {
	ID          types.ID
	DriverID    types.ID
	Brand       string
	Model       string
	PlateNumber string
	Year        int
}

// DriverProfile is the driver dashboard: the driver with their car.
type DriverProfile struct {
	Driver Driver
	Car    *Car
}

// README: Response shapes and request helpers shared by handlers.
package handlers

import (
	"bytes"
	"encoding/json"
	"time"

	"ridehail/internal/modules/account"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/modules/review"
	"ridehail/internal/modules/ride"
	"ridehail/internal/modules/session"
	"ridehail/internal/types"
)

// looseQuantity accepts a JSON number, a numeric string ("5", "5km") or
// nothing at all. Unusable values decode to zero rather than failing.
type looseQuantity pricing.Quantity

func (q *looseQuantity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*q = looseQuantity(pricing.QuantityFromFloat(f))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*q = looseQuantity(pricing.ParseQuantity(s))
		return nil
	}
	*q = 0
	return nil
}

type moneyResponse struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func toMoney(m types.Money) moneyResponse {
	return moneyResponse{Amount: m.Decimal(), Currency: m.Currency}
}

func quantityPtr(q *pricing.Quantity) *float64 {
	if q == nil {
		return nil
	}
	f := q.Float64()
	return &f
}

type passengerResponse struct {
	ID        types.ID  `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

func toPassenger(p *account.Passenger) passengerResponse {
	return passengerResponse{ID: p.ID, FullName: p.FullName, Email: p.Email, Phone: p.Phone, CreatedAt: p.CreatedAt}
}

type carResponse struct {
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	PlateNumber string `json:"plate_number"`
	Year        int    `json:"year,omitempty"`
}

type driverResponse struct {
	ID        types.ID     `json:"id"`
	FullName  string       `json:"full_name"`
	Email     string       `json:"email"`
	Phone     string       `json:"phone"`
	Status    string       `json:"status"`
	Rating    *float64     `json:"rating"`
	CreatedAt time.Time    `json:"created_at"`
	Car       *carResponse `json:"car,omitempty"`
}

func toDriver(d *account.Driver, car *account.Car) driverResponse {
	out := driverResponse{
		ID:        d.ID,
		FullName:  d.FullName,
		Email:     d.Email,
		Phone:     d.Phone,
		Status:    d.Status,
		Rating:    d.Rating,
		CreatedAt: d.CreatedAt,
	}
	if car != nil {
		out.Car = &carResponse{Brand: car.Brand, Model: car.Model, PlateNumber: car.PlateNumber, Year: car.Year}
	}
	return out
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func toToken(t session.Token) tokenResponse {
	return tokenResponse{Token: t.Value, ExpiresAt: t.ExpiresAt}
}

type tariffResponse struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	BasePrice moneyResponse `json:"base_price"`
	PerKm     moneyResponse `json:"price_per_km"`
	PerMinute moneyResponse `json:"price_per_minute"`
}

func toTariff(t pricing.Tariff) tariffResponse {
	return tariffResponse{
		ID:        t.ID,
		Name:      t.Name,
		BasePrice: toMoney(t.BasePrice),
		PerKm:     toMoney(t.PerKm),
		PerMinute: toMoney(t.PerMinute),
	}
}

type rideResponse struct {
	ID          types.ID      `json:"id"`
	UserID      types.ID      `json:"user_id"`
	DriverID    *types.ID     `json:"driver_id"`
	TariffID    string        `json:"tariff_id"`
	Pickup      string        `json:"pickup_address"`
	Destination string        `json:"destination_address"`
	DistanceKm  *float64      `json:"distance_km"`
	DurationMin *float64      `json:"duration_min"`
	Status      ride.Status   `json:"status"`
	TotalCost   moneyResponse `json:"total_cost"`
	CreatedAt   time.Time     `json:"created_at"`
	CompletedAt *time.Time    `json:"completed_at"`
}

func toRide(r ride.Ride) rideResponse {
	return rideResponse{
		ID:          r.ID,
		UserID:      r.UserID,
		DriverID:    r.DriverID,
		TariffID:    r.TariffID,
		Pickup:      r.Pickup,
		Destination: r.Destination,
		DistanceKm:  quantityPtr(r.DistanceKm),
		DurationMin: quantityPtr(r.DurationMin),
		Status:      r.Status,
		TotalCost:   toMoney(r.TotalCost),
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
	}
}

type reviewSummaryResponse struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment"`
}

type passengerRideResponse struct {
	rideResponse
	TariffName string                 `json:"tariff_name"`
	DriverName *string                `json:"driver_name"`
	Car        *carResponse           `json:"car"`
	Review     *reviewSummaryResponse `json:"review"`
}

func toPassengerRide(r ride.PassengerRide) passengerRideResponse {
	out := passengerRideResponse{
		rideResponse: toRide(r.Ride),
		TariffName:   r.TariffName,
		DriverName:   r.DriverName,
	}
	if r.Car != nil {
		out.Car = &carResponse{Brand: r.Car.Brand, Model: r.Car.Model, PlateNumber: r.Car.PlateNumber, Year: r.Car.Year}
	}
	if r.Review != nil {
		out.Review = &reviewSummaryResponse{Rating: r.Review.Rating, Comment: r.Review.Comment}
	}
	return out
}

type driverOrderResponse struct {
	rideResponse
	PassengerName string `json:"passenger_name"`
	TariffName    string `json:"tariff_name"`
}

type reviewResponse struct {
	ID        types.ID  `json:"id"`
	RideID    types.ID  `json:"ride_id"`
	DriverID  types.ID  `json:"driver_id"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type receivedReviewResponse struct {
	ID            types.ID  `json:"id"`
	RideID        types.ID  `json:"ride_id"`
	Rating        int       `json:"rating"`
	Comment       *string   `json:"comment"`
	CreatedAt     time.Time `json:"created_at"`
	PassengerName string    `json:"passenger_name"`
	RideCreatedAt time.Time `json:"ride_created_at"`
}

func toReceived(r review.Received) receivedReviewResponse {
	return receivedReviewResponse{
		ID:            r.ID,
		RideID:        r.RideID,
		Rating:        r.Rating,
		Comment:       r.Comment,
		CreatedAt:     r.CreatedAt,
		PassengerName: r.PassengerName,
		RideCreatedAt: r.RideCreatedAt,
	}
}

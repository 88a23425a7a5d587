// README: Passenger ride handlers (list, create, detail, review).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridehail/internal/http/middleware"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/modules/review"
	"ridehail/internal/modules/ride"
	"ridehail/internal/modules/session"
	"ridehail/internal/types"
)

type RideHandler struct {
	rides   *ride.Service
	reviews *review.Service
}

func NewRideHandler(rides *ride.Service, reviews *review.Service) *RideHandler {
	return &RideHandler{rides: rides, reviews: reviews}
}

type createRideReq struct {
	TariffID    string        `json:"tariff_id"`
	Pickup      string        `json:"pickup_address"`
	Destination string        `json:"destination_address"`
	DistanceKm  looseQuantity `json:"distance_km"`
	DurationMin looseQuantity `json:"duration_min"`
}

func (h *RideHandler) Create(c *gin.Context) {
	var req createRideReq
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.rides.Create(c.Request.Context(), ride.CreateCommand{
		UserID:      middleware.CallerPrincipal(c).ID,
		TariffID:    req.TariffID,
		Pickup:      req.Pickup,
		Destination: req.Destination,
		DistanceKm:  pricing.Quantity(req.DistanceKm),
		DurationMin: pricing.Quantity(req.DurationMin),
	})
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toRide(*r))
}

func (h *RideHandler) List(c *gin.Context) {
	rides, err := h.rides.ListForPassenger(c.Request.Context(), middleware.CallerPrincipal(c).ID)
	if err != nil {
		writeAppError(c, err)
		return
	}
	out := make([]passengerRideResponse, 0, len(rides))
	for _, r := range rides {
		out = append(out, toPassengerRide(r))
	}
	writeJSON(c, http.StatusOK, gin.H{"rides": out})
}

// Get shows a ride to its passenger or its assigned driver.
func (h *RideHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusNotFound, ride.ErrRideUnavailable.Message)
		return
	}
	p := middleware.CallerPrincipal(c)
	viewer := ride.Viewer{Type: ride.ActorPassenger, ID: p.ID}
	if p.Kind == session.KindDriver {
		viewer.Type = ride.ActorDriver
	}
	r, err := h.rides.Get(c.Request.Context(), types.ID(id), viewer)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRide(*r))
}

type submitReviewReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *RideHandler) Review(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusNotFound, review.ErrRideNotReviewable.Message)
		return
	}
	var req submitReviewReq
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.reviews.Submit(c.Request.Context(), review.SubmitCommand{
		RideID:  types.ID(id),
		UserID:  middleware.CallerPrincipal(c).ID,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{
		"review": reviewResponse{
			ID:        res.Review.ID,
			RideID:    res.Review.RideID,
			DriverID:  res.Review.DriverID,
			Rating:    res.Review.Rating,
			Comment:   res.Review.Comment,
			CreatedAt: res.Review.CreatedAt,
		},
		"driver_rating": res.DriverRating,
	})
}

// README: Driver handlers for the order board, transitions and received reviews.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridehail/internal/http/middleware"
	"ridehail/internal/modules/review"
	"ridehail/internal/modules/ride"
	"ridehail/internal/types"
)

type DriverHandler struct {
	rides   *ride.Service
	reviews *review.Service
}

func NewDriverHandler(rides *ride.Service, reviews *review.Service) *DriverHandler {
	return &DriverHandler{rides: rides, reviews: reviews}
}

// Orders lists rides waiting for a driver plus the caller's active ones.
func (h *DriverHandler) Orders(c *gin.Context) {
	orders, err := h.rides.ListForDriver(c.Request.Context(), middleware.CallerPrincipal(c).ID)
	if err != nil {
		writeAppError(c, err)
		return
	}
	out := make([]driverOrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, driverOrderResponse{
			rideResponse:  toRide(o.Ride),
			PassengerName: o.PassengerName,
			TariffName:    o.TariffName,
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": out})
}

func (h *DriverHandler) Accept(c *gin.Context) {
	h.transition(c, ride.StatusAccepted, func(id, driverID types.ID) error {
		return h.rides.Accept(c.Request.Context(), ride.AcceptCommand{RideID: id, DriverID: driverID})
	})
}

func (h *DriverHandler) OnWay(c *gin.Context) {
	h.transition(c, ride.StatusOnWay, func(id, driverID types.ID) error {
		return h.rides.OnWay(c.Request.Context(), ride.OnWayCommand{RideID: id, DriverID: driverID})
	})
}

func (h *DriverHandler) Complete(c *gin.Context) {
	h.transition(c, ride.StatusCompleted, func(id, driverID types.ID) error {
		return h.rides.Complete(c.Request.Context(), ride.CompleteCommand{RideID: id, DriverID: driverID})
	})
}

func (h *DriverHandler) transition(c *gin.Context, to ride.Status, run func(id, driverID types.ID) error) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusNotFound, ride.ErrRideUnavailable.Message)
		return
	}
	if err := run(types.ID(id), middleware.CallerPrincipal(c).ID); err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ride_id": id, "status": to})
}

func (h *DriverHandler) Reviews(c *gin.Context) {
	received, err := h.reviews.ListForDriver(c.Request.Context(), middleware.CallerPrincipal(c).ID)
	if err != nil {
		writeAppError(c, err)
		return
	}
	out := make([]receivedReviewResponse, 0, len(received))
	for _, r := range received {
		out = append(out, toReceived(r))
	}
	writeJSON(c, http.StatusOK, gin.H{"reviews": out})
}

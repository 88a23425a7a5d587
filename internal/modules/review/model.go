// README: Review entity and the errors returned when a review cannot be stored.
package review

import (
	"time"

	"ridehail/internal/apperr"
	"ridehail/internal/types"
)

var (
	// ErrRideNotReviewable covers a missing ride, someone else's ride and a
	// ride that is not completed yet.
	ErrRideNotReviewable = apperr.New(apperr.KindNotFound, "ride cannot be reviewed")
	ErrAlreadyReviewed   = apperr.New(apperr.KindConflict, "ride already reviewed")
)

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID        types.ID
	RideID    types.ID
	UserID    types.ID
	DriverID  types.ID
	Rating    int
	Comment   *string
	CreatedAt time.Time
}

// Received is a review as listed for the driver it was written about.
type Received struct {
	ID            types.ID
	RideID        types.ID
	Rating        int
	Comment       *string
	CreatedAt     time.Time
	PassengerName string
	RideCreatedAt time.Time
}

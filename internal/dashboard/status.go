package dashboard

import (
	"errors"
	"fmt"

	"github.com/odyssey-erp/scm-dashboard/internal/api"
)

// ErrIllegalTransition is returned when a booking cannot move to the requested status.
var ErrIllegalTransition = errors.New("illegal status transition")

var transitions = map[api.BookingStatus][]api.BookingStatus{
	api.StatusPending:    {api.StatusConfirmed, api.StatusCancelled},
	api.StatusConfirmed:  {api.StatusInProgress, api.StatusCancelled},
	api.StatusInProgress: {api.StatusDelivered, api.StatusCancelled},
	api.StatusDelivered:  nil,
	api.StatusCancelled:  nil,
}

// IsTerminal reports whether no further status change is offered.
func IsTerminal(status api.BookingStatus) bool {
	return status == api.StatusDelivered || status == api.StatusCancelled
}

// NextStatuses lists the statuses a booking may move to. Statuses the dashboard does
// not recognise may still be cancelled; the server has the final word on them.
func NextStatuses(status api.BookingStatus) []api.BookingStatus {
	if IsTerminal(status) {
		return nil
	}
	next, ok := transitions[status]
	if !ok {
		return []api.BookingStatus{api.StatusCancelled}
	}
	out := make([]api.BookingStatus, len(next))
	copy(out, next)
	return out
}

// CheckTransition validates a move between two statuses.
func CheckTransition(from, to api.BookingStatus) error {
	for _, candidate := range NextStatuses(from) {
		if candidate == to {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move booking from %s to %s", ErrIllegalTransition, StatusLabel(from), StatusLabel(to))
}

// Package service implements the booking and cancellation flows on top
// of the repository layer. Services own transaction boundaries and all
// business validation; repositories only guard individual writes.
package service

import (
    "errors"

    "github.com/dinebook/table-reservation/internal/repository"
)

// Validation failures surfaced to callers as machine-readable codes.
var (
    ErrAlreadyCancelled          = errors.New("reservation already cancelled")
    ErrNotCancellable            = errors.New("reservation not cancellable in its current status")
    ErrReservationInPast         = errors.New("reservation time already passed")
    ErrPendingCancellationExists = errors.New("a cancellation request is already pending")
    ErrPartySizeInvalid          = errors.New("party size must be positive")
    ErrTableTooSmall             = errors.New("selected tables cannot seat the party")
    ErrTableConflict             = errors.New("table occupied in the requested window")
    ErrNoActiveHolds             = errors.New("no active holds to confirm")
    ErrRestaurantInactive        = errors.New("restaurant not accepting bookings")
)

// CodeOf maps an error from the booking or cancellation flows to the
// stable machine code carried in the {success, code, message} response
// envelope. Clients and tests match on these codes, never on message
// wording.
func CodeOf(err error) string {
    switch {
    case err == nil:
        return "OK"
    case errors.Is(err, ErrAlreadyCancelled):
        return "ALREADY_CANCELLED"
    case errors.Is(err, ErrNotCancellable):
        return "NOT_CANCELLABLE"
    case errors.Is(err, ErrReservationInPast):
        return "RESERVATION_IN_PAST"
    case errors.Is(err, ErrPendingCancellationExists):
        return "CANCELLATION_PENDING"
    case errors.Is(err, ErrPartySizeInvalid):
        return "PARTY_SIZE_INVALID"
    case errors.Is(err, ErrTableTooSmall):
        return "TABLE_TOO_SMALL"
    case errors.Is(err, ErrTableConflict):
        return "TABLE_CONFLICT"
    case errors.Is(err, ErrNoActiveHolds):
        return "NO_ACTIVE_HOLDS"
    case errors.Is(err, ErrRestaurantInactive):
        return "RESTAURANT_INACTIVE"
    case errors.Is(err, repository.ErrCapacityExceeded):
        return "CAPACITY_EXCEEDED"
    case errors.Is(err, repository.ErrSlotUnavailable):
        return "SLOT_UNAVAILABLE"
    case errors.Is(err, repository.ErrSlotNotHeld):
        return "SLOT_NOT_HELD"
    case errors.Is(err, repository.ErrStatusConflict):
        return "STATUS_CONFLICT"
    case errors.Is(err, repository.ErrForbidden):
        return "FORBIDDEN"
    case errors.Is(err, repository.ErrNotFound):
        return "NOT_FOUND"
    default:
        return "INTERNAL"
    }
}

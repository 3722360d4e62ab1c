// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// services and handlers to distinguish between different failure
// scenarios without parsing SQL errors. Most of them map directly to
// a zero-rows-affected result of a conditional update, which is the
// only concurrency guard the storage layer relies on.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrCapacityExceeded is returned when a conditional seat increment on
// a capacity record affects zero rows: the party no longer fits, the
// day is disabled, or the record does not exist.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrReleaseUnderflow is returned when a conditional seat decrement
// affects zero rows. It means the seats were already released or were
// never properly reserved; callers surface it for investigation rather
// than crashing the cancellation flow.
var ErrReleaseUnderflow = errors.New("capacity release underflow")

// ErrSlotUnavailable is returned when a hold is attempted on a slot
// that is reserved, blocked, under maintenance or held by someone else
// with an unexpired hold.
var ErrSlotUnavailable = errors.New("slot unavailable")

// ErrSlotNotHeld is returned when confirming a slot that is not
// currently HELD by the expected hold record.
var ErrSlotNotHeld = errors.New("slot not held")

// ErrStatusConflict is returned when a guarded status update finds the
// row no longer in the expected prior status, i.e. a concurrent writer
// got there first. The surrounding transaction must roll back.
var ErrStatusConflict = errors.New("status conflict")

// ErrNotFound is returned for lookups of rows that do not exist where
// sql.ErrNoRows would leak storage details to the service layer.
var ErrNotFound = errors.New("not found")

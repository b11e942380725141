// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// marketplace service and HTTP handlers to distinguish between different
// failure scenarios without inspecting driver-specific errors.
package repository

import "errors"

// ErrLoadNotFound is returned when a load does not exist or is not
// visible to the calling actor. Handlers should translate this into an
// HTTP 404 response.
var ErrLoadNotFound = errors.New("load not found")

// ErrLoadNotAvailable is returned when a claim attempt loses the race
// for a load: the row exists but its status is no longer AVAILABLE (or
// it has expired) at the moment the claim commits. Handlers surface a
// generic "no longer available" message for this case.
var ErrLoadNotAvailable = errors.New("load not available")

// ErrBookingNotFound is returned when a booking does not exist, belongs
// to a different actor, or is not in the status the transition expects.
// Broker-facing operations intentionally collapse all three cases into
// this single error so a caller cannot probe for bookings it does not own.
var ErrBookingNotFound = errors.New("booking not found")

// ErrDuplicateBooking is returned when a driver already has a live
// booking against the same load.
var ErrDuplicateBooking = errors.New("duplicate booking")

// ErrInvalidState is returned when a status precondition fails at commit
// time for a transition the caller is otherwise authorized to perform,
// e.g. marking a booking picked up twice. Handlers should translate this
// into an HTTP 409 response.
var ErrInvalidState = errors.New("invalid state")

// ErrConflict is returned when an operation cannot proceed because of
// dependent records, such as cancelling a load that still has a live
// booking. Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrStoreUnavailable wraps transient infrastructure failures that
// survived the bounded retry policy. Handlers should translate this into
// an HTTP 503 response; callers may retry.
var ErrStoreUnavailable = errors.New("store unavailable")

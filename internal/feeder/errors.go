package feeder

import (
	"errors"

	"fish-feeder-backend/internal/queue"
	"fish-feeder-backend/internal/store"
)

// Rejections. They are expected outcomes, not failures, and are never logged as errors.
var (
	ErrFastingDay        = errors.New("today is a fasting day")
	ErrDeviceOffline     = errors.New("feeder device is offline")
	ErrAlreadyFeeding    = errors.New("feeder is already dispensing")
	ErrCooldownActive    = errors.New("cooldown has not elapsed")
	ErrReservationsExist = errors.New("reservations are pending")
	ErrQueueFull         = queue.ErrFull
	ErrInvalidSchedule   = queue.ErrInvalidSchedule
	ErrNotFound          = errors.New("no reservation for this identity")
	ErrMissingIdentity   = errors.New("a device id or contact address is required")
)

// Reason codes as they appear on the wire.
const (
	ReasonFastingDay        = "fasting_day"
	ReasonDeviceOffline     = "device_offline"
	ReasonAlreadyFeeding    = "already_feeding"
	ReasonCooldownActive    = "cooldown_active"
	ReasonReservationsExist = "reservations_exist"
	ReasonQueueFull         = "queue_full"
	ReasonInvalidSchedule   = "invalid_schedule"
	ReasonNotFound          = "not_found"
	ReasonMissingIdentity   = "missing_identity"
	ReasonNoFeedNeeded      = "no_feed_needed"
	ReasonTimeout           = "timeout"
	ReasonInternal          = "internal_error"
)

var reasons = []struct {
	err  error
	code string
}{
	{ErrFastingDay, ReasonFastingDay},
	{ErrDeviceOffline, ReasonDeviceOffline},
	{ErrAlreadyFeeding, ReasonAlreadyFeeding},
	{ErrCooldownActive, ReasonCooldownActive},
	{ErrReservationsExist, ReasonReservationsExist},
	{ErrQueueFull, ReasonQueueFull},
	{ErrInvalidSchedule, ReasonInvalidSchedule},
	{ErrNotFound, ReasonNotFound},
	{ErrMissingIdentity, ReasonMissingIdentity},
}

// Reason returns the wire code for err. Errors that are not rejections map
// to ReasonTimeout or ReasonInternal.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	if errors.Is(err, store.ErrTimeout) {
		return ReasonTimeout
	}
	return ReasonInternal
}

// IsRejection reports whether err is one of the named rejections.
func IsRejection(err error) bool {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return true
		}
	}
	return false
}

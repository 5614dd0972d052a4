package timer

import (
	"context"
	"time"
)

// Handle identifies one registration inside a Facility. The zero Handle is never issued.
type Handle uint64

// Payload travels with a registration and is handed back when it fires.
type Payload struct {
	AlarmID   int64
	Label     string
	FireAt    time.Time
	Token     string // unique per registration
	Transient bool   // snooze re-arm, not derived from the stored schedule
}

// Facility is an exact-time wake-up primitive.
// Fired payloads are delivered at least once, with no ordering guarantee across alarms.
type Facility interface {
	// Register arms a wake-up at the given instant. Errors carry the alarm.ErrSchedulingDenied
	// or alarm.ErrSchedulingUnavailable codes.
	Register(ctx context.Context, at time.Time, p Payload) (Handle, error)
	// Cancel disarms a registration. Cancelling a fired or unknown handle succeeds.
	Cancel(ctx context.Context, h Handle) error
	// Fired delivers payloads of registrations whose instant has come.
	Fired() <-chan Payload
}

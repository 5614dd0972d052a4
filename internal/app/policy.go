// internal/app/policy.go
package app

import (
	"time"

	"alarm_clock_bot/internal/domain/alarm"
)

// ResponseKind is the user's answer to a firing alarm.
type ResponseKind string

const (
	ResponseSnooze  ResponseKind = "SNOOZE"
	ResponseDismiss ResponseKind = "DISMISS"
)

// DecisionKind is the outcome of the snooze/dismiss policy.
type DecisionKind string

const (
	DecisionNoOp            DecisionKind = "NO_OP"
	DecisionArmTransient    DecisionKind = "ARM_TRANSIENT"
	DecisionFinalizeOneTime DecisionKind = "FINALIZE_ONE_TIME"
)

// Decision tells the dispatcher what to do after a response.
type Decision struct {
	Kind DecisionKind
	At   time.Time // only set for DecisionArmTransient
}

// Decide maps (alarm, response) to the next state. It has no side effects.
func Decide(a *alarm.Alarm, kind ResponseKind, now time.Time) Decision {
	if !a.Enabled {
		// Disabled or already finalized; a late response changes nothing.
		return Decision{Kind: DecisionNoOp}
	}
	switch kind {
	case ResponseSnooze:
		if !a.SnoozeEnabled || a.SnoozeMinutes <= 0 {
			return Decision{Kind: DecisionNoOp}
		}
		return Decision{Kind: DecisionArmTransient, At: now.Add(a.SnoozeDuration())}
	case ResponseDismiss:
		if a.HasRepeat() {
			// The next regular occurrence was armed when this one fired.
			return Decision{Kind: DecisionNoOp}
		}
		return Decision{Kind: DecisionFinalizeOneTime}
	}
	return Decision{Kind: DecisionNoOp}
}

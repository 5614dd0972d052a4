// internal/domain/alert/notifier.go
package alert

import "context"

// Action is a response affordance offered on a firing alarm.
type Action string

const (
	ActionSnooze  Action = "snooze"
	ActionDismiss Action = "dismiss"
)

// DefaultText is shown when an alarm has no label.
const DefaultText = "Time to wake up!"

// Alert is what the user sees when an alarm fires.
type Alert struct {
	AlarmID int64
	Label   string
	Time    string // "HH:MM" of the alarm
	Actions []Action
	// Notice explains a scheduling problem the user should know about, e.g. that the next
	// occurrence of a repeating alarm could not be armed.
	Notice string
}

// Text returns the label, or DefaultText for unlabeled alarms.
func (a Alert) Text() string {
	if a.Label == "" {
		return DefaultText
	}
	return a.Label
}

// Notifier presents firing alarms to the user. Responses come back through the
// snooze and dismiss handlers of the engine.
type Notifier interface {
	Present(ctx context.Context, a Alert) error
}

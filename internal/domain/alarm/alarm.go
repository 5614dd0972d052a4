// internal/domain/alarm/alarm.go
package alarm

import (
	"fmt"
	"strings"
	"time"
)

// DefaultSnoozeMinutes is used when an alarm is created without an explicit snooze duration.
const DefaultSnoozeMinutes = 10

// DefaultSound is the sound reference carried by alarms that never picked one.
const DefaultSound = "default"

// RepeatMask is the set of weekdays an alarm recurs on. Bit 0 is Monday, bit 6 is Sunday.
// The empty mask means the alarm fires once.
type RepeatMask uint8

const (
	Monday RepeatMask = 1 << iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

const (
	Weekdays RepeatMask = Monday | Tuesday | Wednesday | Thursday | Friday
	Weekends RepeatMask = Saturday | Sunday
	EveryDay RepeatMask = Weekdays | Weekends
)

// dayOrder lists the mask bits in display order.
var dayOrder = []struct {
	bit  RepeatMask
	day  time.Weekday
	name string
}{
	{Monday, time.Monday, "Mon"},
	{Tuesday, time.Tuesday, "Tue"},
	{Wednesday, time.Wednesday, "Wed"},
	{Thursday, time.Thursday, "Thu"},
	{Friday, time.Friday, "Fri"},
	{Saturday, time.Saturday, "Sat"},
	{Sunday, time.Sunday, "Sun"},
}

// MaskOf returns the mask bit for a weekday.
func MaskOf(d time.Weekday) RepeatMask {
	for _, o := range dayOrder {
		if o.day == d {
			return o.bit
		}
	}
	return 0
}

// Days builds a mask from weekdays.
func Days(days ...time.Weekday) RepeatMask {
	var m RepeatMask
	for _, d := range days {
		m |= MaskOf(d)
	}
	return m
}

// Has reports whether the mask contains the weekday.
func (m RepeatMask) Has(d time.Weekday) bool {
	return m&MaskOf(d) != 0
}

// Empty reports whether the mask describes a one-time alarm.
func (m RepeatMask) Empty() bool {
	return m&EveryDay == 0
}

// String renders the mask the way the alarm list shows it, e.g. "Mon, Wed, Fri" or "Once".
func (m RepeatMask) String() string {
	var days []string
	for _, o := range dayOrder {
		if m&o.bit != 0 {
			days = append(days, o.name)
		}
	}
	if len(days) == 0 {
		return "Once"
	}
	return strings.Join(days, ", ")
}

// Alarm is a wall-clock alarm as stored by the repository.
type Alarm struct {
	ID            int64
	Hour          int
	Minute        int
	Label         string
	Enabled       bool
	Repeat        RepeatMask
	Vibrate       bool
	SoundURI      string
	SnoozeEnabled bool
	SnoozeMinutes int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOneTime returns an enabled alarm that fires once.
func NewOneTime(hour, minute int, label string) *Alarm {
	return &Alarm{
		Hour:          hour,
		Minute:        minute,
		Label:         label,
		Enabled:       true,
		Vibrate:       true,
		SoundURI:      DefaultSound,
		SnoozeEnabled: true,
		SnoozeMinutes: DefaultSnoozeMinutes,
	}
}

// NewWeekday returns an enabled alarm repeating Monday through Friday.
func NewWeekday(hour, minute int, label string) *Alarm {
	a := NewOneTime(hour, minute, label)
	a.Repeat = Weekdays
	return a
}

// NewWeekend returns an enabled alarm repeating on Saturday and Sunday.
func NewWeekend(hour, minute int, label string) *Alarm {
	a := NewOneTime(hour, minute, label)
	a.Repeat = Weekends
	return a
}

// HasRepeat reports whether the alarm recurs on at least one weekday.
func (a *Alarm) HasRepeat() bool {
	return !a.Repeat.Empty()
}

// RepeatsOn reports whether the alarm recurs on the given weekday.
func (a *Alarm) RepeatsOn(d time.Weekday) bool {
	return a.Repeat.Has(d)
}

// TimeString formats the time of day as "HH:MM".
func (a *Alarm) TimeString() string {
	return fmt.Sprintf("%02d:%02d", a.Hour, a.Minute)
}

// SnoozeDuration is the configured snooze delay.
func (a *Alarm) SnoozeDuration() time.Duration {
	return time.Duration(a.SnoozeMinutes) * time.Minute
}

// Validate checks the invariants the store and the scheduler rely on.
func (a *Alarm) Validate() error {
	switch {
	case a.Hour < 0 || a.Hour > 23:
		return Errorf(ErrInvalid, "hour must be between 0 and 23, got %d", a.Hour)
	case a.Minute < 0 || a.Minute > 59:
		return Errorf(ErrInvalid, "minute must be between 0 and 59, got %d", a.Minute)
	case a.Repeat&^EveryDay != 0:
		return Errorf(ErrInvalid, "repeat mask has unknown bits: %#x", uint8(a.Repeat))
	case a.SnoozeEnabled && a.SnoozeMinutes <= 0:
		return Errorf(ErrInvalid, "snooze duration must be positive, got %d", a.SnoozeMinutes)
	}
	return nil
}

package alarm_test

import (
	"errors"
	"testing"
	"time"

	"alarm_clock_bot/internal/domain/alarm"
)

func TestRepeatMaskString(t *testing.T) {
	tests := []struct {
		mask alarm.RepeatMask
		want string
	}{
		{0, "Once"},
		{alarm.Monday | alarm.Wednesday | alarm.Friday, "Mon, Wed, Fri"},
		{alarm.Weekends, "Sat, Sun"},
		{alarm.Days(time.Sunday, time.Monday), "Mon, Sun"},
	}
	for _, tt := range tests {
		if got := tt.mask.String(); got != tt.want {
			t.Errorf("wrong string for %#x\ngot:  %s\nwant: %s", uint8(tt.mask), got, tt.want)
		}
	}
}

func TestFactories(t *testing.T) {
	if a := alarm.NewOneTime(6, 5, "gym"); a.HasRepeat() || !a.Enabled || a.SnoozeMinutes != alarm.DefaultSnoozeMinutes {
		t.Errorf("unexpected one-time alarm: %+v", a)
	}
	a := alarm.NewWeekday(6, 5, "")
	if !a.RepeatsOn(time.Friday) || a.RepeatsOn(time.Saturday) {
		t.Errorf("weekday alarm repeats on %s", a.Repeat)
	}
	if got, want := a.TimeString(), "06:05"; got != want {
		t.Errorf("wrong time string\ngot:  %s\nwant: %s", got, want)
	}
	if w := alarm.NewWeekend(9, 0, ""); !w.RepeatsOn(time.Sunday) || w.RepeatsOn(time.Monday) {
		t.Errorf("weekend alarm repeats on %s", w.Repeat)
	}
}

func TestAlarmValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(a *alarm.Alarm)
	}{
		{"hour too large", func(a *alarm.Alarm) { a.Hour = 24 }},
		{"negative minute", func(a *alarm.Alarm) { a.Minute = -1 }},
		{"unknown mask bits", func(a *alarm.Alarm) { a.Repeat = 0x80 }},
		{"zero snooze", func(a *alarm.Alarm) { a.SnoozeMinutes = 0 }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			a := alarm.NewOneTime(7, 0, "")
			tt.modify(a)
			if err := a.Validate(); err == nil {
				t.Error("expected error")
			} else if got, want := alarm.ErrorCode(err), alarm.ErrInvalid; got != want {
				t.Errorf("wrong error code\ngot:  %s\nwant: %s", got, want)
			}
		})
	}

	a := alarm.NewOneTime(7, 0, "")
	a.SnoozeEnabled = false
	a.SnoozeMinutes = 0
	if err := a.Validate(); err != nil {
		t.Errorf("snooze duration is irrelevant when snooze is off: %v", err)
	}
}

func TestErrorCode(t *testing.T) {
	if got := alarm.ErrorCode(nil); got != "" {
		t.Errorf("expected empty code for nil, got %s", got)
	}
	err := alarm.Errorf(alarm.ErrSchedulingDenied, "no permission")
	if !alarm.IsSchedulingError(err) {
		t.Error("expected scheduling error")
	}
	if got, want := alarm.ErrorDescription(err), "no permission"; got != want {
		t.Errorf("wrong description\ngot:  %s\nwant: %s", got, want)
	}
	if got, want := alarm.ErrorCode(errPlain), alarm.ErrInternal; got != want {
		t.Errorf("wrong code for plain error\ngot:  %s\nwant: %s", got, want)
	}

	wrapped := alarm.Errorf(alarm.ErrStoreUnavailable, "list alarms: %w", errPlain)
	if !errors.Is(wrapped, errPlain) {
		t.Error("wrapped cause not reachable")
	}
	if got, want := wrapped.Error(), "alarm store_unavailable: list alarms: boom"; got != want {
		t.Errorf("\ngot:  %s\nwant: %s", got, want)
	}
}

type plainError struct{}

func (plainError) Error() string { return "boom" }

var errPlain error = plainError{}

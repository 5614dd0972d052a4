package app

import (
	"testing"
	"time"

	"alarm_clock_bot/internal/domain/alarm"
)

func TestDecide(t *testing.T) {
	now := tue0800
	snoozeOff := alarm.NewWeekday(7, 0, "")
	snoozeOff.SnoozeEnabled = false
	zeroSnooze := alarm.NewOneTime(7, 0, "")
	zeroSnooze.SnoozeMinutes = 0
	disabled := alarm.NewOneTime(7, 0, "")
	disabled.Enabled = false
	custom := alarm.NewOneTime(7, 0, "")
	custom.SnoozeMinutes = 3

	tests := []struct {
		name string
		a    *alarm.Alarm
		kind ResponseKind
		want Decision
	}{
		{"snooze repeating", alarm.NewWeekday(7, 0, ""), ResponseSnooze, Decision{Kind: DecisionArmTransient, At: now.Add(10 * time.Minute)}},
		{"snooze one-time", alarm.NewOneTime(7, 0, ""), ResponseSnooze, Decision{Kind: DecisionArmTransient, At: now.Add(10 * time.Minute)}},
		{"snooze custom length", custom, ResponseSnooze, Decision{Kind: DecisionArmTransient, At: now.Add(3 * time.Minute)}},
		{"snooze turned off", snoozeOff, ResponseSnooze, Decision{Kind: DecisionNoOp}},
		{"snooze zero minutes", zeroSnooze, ResponseSnooze, Decision{Kind: DecisionNoOp}},
		{"dismiss repeating", alarm.NewWeekend(7, 0, ""), ResponseDismiss, Decision{Kind: DecisionNoOp}},
		{"dismiss one-time", alarm.NewOneTime(7, 0, ""), ResponseDismiss, Decision{Kind: DecisionFinalizeOneTime}},
		{"dismiss disabled", disabled, ResponseDismiss, Decision{Kind: DecisionNoOp}},
		{"snooze disabled", disabled, ResponseSnooze, Decision{Kind: DecisionNoOp}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.a, tt.kind, now)
			if got.Kind != tt.want.Kind || !got.At.Equal(tt.want.At) {
				t.Errorf("\ngot:  %+v\nwant: %+v", got, tt.want)
			}
		})
	}
}

package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"alarm_clock_bot/internal/domain/alarm"
)

// alarmArgs is the parsed form of "HH:MM [days] [label...]".
type alarmArgs struct {
	Hour, Minute int
	Repeat       alarm.RepeatMask
	HasRepeat    bool // a days token was given, "once" included
	Label        string
}

func parseAlarmArgs(args []string) (alarmArgs, error) {
	if len(args) == 0 {
		return alarmArgs{}, alarm.Errorf(alarm.ErrInvalid, "missing time")
	}
	var out alarmArgs
	var err error
	if out.Hour, out.Minute, err = alarm.ParseTimeOfDay(args[0]); err != nil {
		return alarmArgs{}, err
	}
	rest := args[1:]
	if len(rest) > 0 && alarm.LooksLikeRepeatMask(rest[0]) {
		if out.Repeat, err = alarm.ParseRepeatMask(rest[0]); err != nil {
			return alarmArgs{}, err
		}
		out.HasRepeat = true
		rest = rest[1:]
	}
	out.Label = strings.Join(rest, " ")
	return out, nil
}

// applyEdit copies the edited fields onto a. Days and label are kept when omitted.
func applyEdit(a *alarm.Alarm, args alarmArgs) {
	a.Hour, a.Minute = args.Hour, args.Minute
	if args.HasRepeat {
		a.Repeat = args.Repeat
	}
	if args.Label != "" {
		a.Label = args.Label
	}
}

// parseSnoozeArg accepts a positive number of minutes or "off".
func parseSnoozeArg(s string) (enabled bool, minutes int, err error) {
	if strings.EqualFold(s, "off") {
		return false, 0, nil
	}
	minutes, err = strconv.Atoi(s)
	if err != nil || minutes <= 0 {
		return false, 0, alarm.Errorf(alarm.ErrInvalid, "snooze must be a positive number of minutes or 'off', got %q", s)
	}
	return true, minutes, nil
}

func formatAlarm(a *alarm.Alarm) string {
	status := "off"
	if a.Enabled {
		status = "on"
	}
	snooze := "no snooze"
	if a.SnoozeEnabled && a.SnoozeMinutes > 0 {
		snooze = fmt.Sprintf("snooze %dm", a.SnoozeMinutes)
	}
	line := fmt.Sprintf("#%d %s [%s] %s, %s", a.ID, a.TimeString(), status, a.Repeat, snooze)
	if a.Label != "" {
		line += " · " + a.Label
	}
	return line
}

func formatAlarmList(alarms []*alarm.Alarm) string {
	if len(alarms) == 0 {
		return "No alarms yet. Add one with /add HH:MM [days] [label]."
	}
	var b strings.Builder
	b.WriteString("Your alarms:\n")
	for _, a := range alarms {
		b.WriteString(formatAlarm(a))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// errorText turns an application error into a reply for the owner.
func errorText(err error) string {
	switch alarm.ErrorCode(err) {
	case alarm.ErrInvalid:
		return "Invalid input: " + alarm.ErrorDescription(err)
	case alarm.ErrNotAuthorized:
		return "You are not allowed to manage alarms."
	case alarm.ErrUnknownAlarm:
		return "No such alarm. Use /list to see your alarms."
	case alarm.ErrStoreUnavailable:
		return "Alarms are temporarily unavailable, please try again."
	case alarm.ErrSchedulingDenied, alarm.ErrSchedulingUnavailable:
		return "The alarm was saved but could not be scheduled, so it is off: " + alarm.ErrorDescription(err)
	}
	return "Something went wrong."
}

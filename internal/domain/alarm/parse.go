// internal/domain/alarm/parse.go
package alarm

import (
	"strconv"
	"strings"
)

var dayNames = map[string]RepeatMask{
	"mon": Monday, "monday": Monday,
	"tue": Tuesday, "tuesday": Tuesday,
	"wed": Wednesday, "wednesday": Wednesday,
	"thu": Thursday, "thursday": Thursday,
	"fri": Friday, "friday": Friday,
	"sat": Saturday, "saturday": Saturday,
	"sun": Sunday, "sunday": Sunday,
}

// ParseTimeOfDay parses "H:MM" or "HH:MM" in 24-hour format.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(ms) != 2 {
		return 0, 0, Errorf(ErrInvalid, "time must look like HH:MM, got %q", s)
	}
	if hour, err = strconv.Atoi(hs); err != nil || hour < 0 || hour > 23 {
		return 0, 0, Errorf(ErrInvalid, "invalid hour in %q", s)
	}
	if minute, err = strconv.Atoi(ms); err != nil || minute < 0 || minute > 59 {
		return 0, 0, Errorf(ErrInvalid, "invalid minute in %q", s)
	}
	return hour, minute, nil
}

// ParseRepeatMask accepts a comma separated list of day names ("mon,wed,fri") or one of the
// keywords once, daily, weekdays, weekends.
func ParseRepeatMask(s string) (RepeatMask, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "once":
		return 0, nil
	case "daily", "everyday":
		return EveryDay, nil
	case "weekdays":
		return Weekdays, nil
	case "weekends":
		return Weekends, nil
	}
	var m RepeatMask
	for _, part := range strings.Split(s, ",") {
		bit, ok := dayNames[strings.TrimSpace(part)]
		if !ok {
			return 0, Errorf(ErrInvalid, "unknown day %q", part)
		}
		m |= bit
	}
	return m, nil
}

// LooksLikeRepeatMask reports whether s parses as a repeat mask. Command handlers use it to
// tell an optional days argument apart from the first word of a label.
func LooksLikeRepeatMask(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	_, err := ParseRepeatMask(s)
	return err == nil
}

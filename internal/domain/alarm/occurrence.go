// internal/domain/alarm/occurrence.go
package alarm

import "time"

// NextFireInstant returns the first instant strictly after ref at which the alarm must fire.
// The alarm's time of day is interpreted in ref's location.
//
// One-time alarms resolve to today if still ahead, otherwise tomorrow. Repeating alarms scan
// forward from today, inclusive, for the first weekday in the mask whose instant is after ref.
func NextFireInstant(a *Alarm, ref time.Time) (time.Time, error) {
	if !a.Enabled {
		return time.Time{}, Errorf(ErrInvalid, "alarm %d is disabled", a.ID)
	}
	y, mo, d := ref.Date()

	if a.Repeat.Empty() {
		at := time.Date(y, mo, d, a.Hour, a.Minute, 0, 0, ref.Location())
		if !at.After(ref) {
			at = time.Date(y, mo, d+1, a.Hour, a.Minute, 0, 0, ref.Location())
		}
		return at, nil
	}

	// Eight candidates: today may be in the mask but already past, and the same weekday
	// a week later is then the answer.
	for i := 0; i <= 7; i++ {
		at := time.Date(y, mo, d+i, a.Hour, a.Minute, 0, 0, ref.Location())
		if a.Repeat.Has(at.Weekday()) && at.After(ref) {
			return at, nil
		}
	}
	return time.Time{}, Errorf(ErrInternal, "no occurrence found for alarm %d with mask %s", a.ID, a.Repeat)
}

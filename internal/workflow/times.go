package workflow

import (
	"fmt"
	"strings"
	"time"
)

// NormalizeTimeInput sanitizes a free-typed HH:MM value. Characters outside
// [0-9:] are dropped, a ":" is auto-appended once two digits are typed (only
// while the value is growing, so deleting works), and length caps at 5.
func NormalizeTimeInput(prev, next string) string {
	var b strings.Builder
	for _, r := range next {
		if (r >= '0' && r <= '9') || r == ':' {
			b.WriteRune(r)
		}
	}
	v := b.String()
	if len(v) == 2 && !strings.Contains(v, ":") && len(v) > len(prev) {
		v += ":"
	}
	if len(v) > 5 {
		v = v[:5]
	}
	return v
}

// Duration renders the span between two HH:MM times. It returns "" when
// either time is missing, unparsable, or the end precedes the start.
// Formats: "45min" under an hour, "2h" on the hour, "1h30" otherwise.
func Duration(start, end string) string {
	sm, ok := parseClock(start)
	if !ok {
		return ""
	}
	em, ok := parseClock(end)
	if !ok {
		return ""
	}
	diff := em - sm
	if diff < 0 {
		return ""
	}
	h, m := diff/60, diff%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dmin", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh%02d", h, m)
	}
}

func parseClock(v string) (int, bool) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// ClockStamp formats a wall clock as a zero-padded HH:MM input value.
func ClockStamp(now time.Time) string {
	return now.Format("15:04")
}

// InboxStamp renders a message timestamp for the inbox list: the clock time
// for today, "Hier" for yesterday, the weekday inside a week, and a short
// date beyond that.
func InboxStamp(createdAt string, now time.Time) string {
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		if t, err = time.Parse("2006-01-02T15:04:05", createdAt); err != nil {
			return createdAt
		}
	}
	t = t.In(now.Location())
	day := func(v time.Time) time.Time {
		return time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, v.Location())
	}
	days := int(day(now).Sub(day(t)).Hours() / 24)
	switch {
	case days <= 0:
		return t.Format("15:04")
	case days == 1:
		return "Hier"
	case days < 7:
		return frenchDays[t.Weekday()]
	default:
		return fmt.Sprintf("%d %s", t.Day(), frenchMonths[t.Month()-1])
	}
}

// Package schedule computes meeting times in the business timezone. Every
// function is pure: callers pass "now" and the location explicitly.
package schedule

import (
	"fmt"
	"regexp"
	"time"
	_ "time/tzdata"
)

const (
	slotLayout    = "02.01.06, 15:04"
	firstCutoff   = 11
	secondCutoff  = 16
	bomHour       = 16
	bomSundayHour = 15
	bomMinute     = 30
)

// Slot is one candidate BOM meeting time offered to a lead.
type Slot struct {
	Label string // "Today", "Tomorrow", "Day after tomorrow" or empty
	At    time.Time
}

// String renders the slot the way it is shown to the lead and cached,
// e.g. "Today, 03.03.25, 16:30 IST".
func (s Slot) String() string {
	body := s.At.Format(slotLayout) + " " + s.At.Format("MST")
	if s.Label == "" {
		return body
	}
	return s.Label + ", " + body
}

// NextCandidateSlots returns the two BOM slots to offer at now.
// Before 11:00 local the offer is today/tomorrow, before 16:00 it is
// tomorrow/day after, later it is the two days after tomorrow.
func NextCandidateSlots(now time.Time, loc *time.Location) [2]Slot {
	local := now.In(loc)
	switch h := local.Hour(); {
	case h < firstCutoff:
		return [2]Slot{bomSlot(local, 0, "Today"), bomSlot(local, 1, "Tomorrow")}
	case h < secondCutoff:
		return [2]Slot{bomSlot(local, 1, "Tomorrow"), bomSlot(local, 2, "Day after tomorrow")}
	default:
		return [2]Slot{bomSlot(local, 2, "Day after tomorrow"), bomSlot(local, 3, "")}
	}
}

func bomSlot(local time.Time, days int, label string) Slot {
	day := time.Date(local.Year(), local.Month(), local.Day()+days, 0, 0, 0, 0, local.Location())
	return Slot{Label: label, At: BOMTime(day)}
}

// BOMTime is the BOM wall-clock time on the day of t: 16:30, or 15:30 on Sunday.
func BOMTime(t time.Time) time.Time {
	hour := bomHour
	if t.Weekday() == time.Sunday {
		hour = bomSundayHour
	}
	return time.Date(t.Year(), t.Month(), t.Day(), hour, bomMinute, 0, 0, t.Location())
}

// NextWeekdayOccurrence returns the first weekday/hour:minute strictly after
// now, in loc. On the target weekday before the target time that is today.
func NextWeekdayOccurrence(now time.Time, loc *time.Location, weekday time.Weekday, hour, minute int) time.Time {
	local := now.In(loc)
	days := (int(weekday) - int(local.Weekday()) + 7) % 7
	next := time.Date(local.Year(), local.Month(), local.Day()+days, hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+days+7, hour, minute, 0, 0, loc)
	}
	return next
}

// NextBIT is the next Sunday 17:30.
func NextBIT(now time.Time, loc *time.Location) time.Time {
	return NextWeekdayOccurrence(now, loc, time.Sunday, 17, 30)
}

// NextWG is the next Monday 17:30.
func NextWG(now time.Time, loc *time.Location) time.Time {
	return NextWeekdayOccurrence(now, loc, time.Monday, 17, 30)
}

// NextPT is the next Tuesday 17:30.
func NextPT(now time.Time, loc *time.Location) time.Time {
	return NextWeekdayOccurrence(now, loc, time.Tuesday, 17, 30)
}

// FormatWeekday renders a fixed-cadence meeting, e.g. "Sunday, 09.03.25, 17:30 IST".
func FormatWeekday(t time.Time) string {
	return t.Format("Monday") + ", " + t.Format(slotLayout) + " " + t.Format("MST")
}

var slotPattern = regexp.MustCompile(`\d{2}\.\d{2}\.\d{2}, \d{2}:\d{2}`)

// ParseSlot extracts the date and time from a rendered slot or weekday
// string and returns the equivalent UTC instant.
func ParseSlot(s string, loc *time.Location) (time.Time, error) {
	m := slotPattern.FindString(s)
	if m == "" {
		return time.Time{}, fmt.Errorf("no date in slot %q", s)
	}
	t, err := time.ParseInLocation(slotLayout, m, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse slot %q: %w", s, err)
	}
	return t.UTC(), nil
}

// DayBounds returns the UTC bounds [start, end) of the business-local day
// offset days from now.
func DayBounds(now time.Time, loc *time.Location, offset int) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day()+offset, 0, 0, 0, 0, loc)
	end := time.Date(local.Year(), local.Month(), local.Day()+offset+1, 0, 0, 0, 0, loc)
	return start.UTC(), end.UTC()
}

// IsToday reports whether t falls on now's business-local day.
func IsToday(t, now time.Time, loc *time.Location) bool {
	start, end := DayBounds(now, loc, 0)
	return !t.Before(start) && t.Before(end)
}

// DayKey is the business-local calendar day of now as YYYY-MM-DD.
func DayKey(now time.Time, loc *time.Location) string {
	return now.In(loc).Format("2006-01-02")
}

// ClockLabel renders the local time of t with the zone, e.g. "17:30 IST".
func ClockLabel(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04 MST")
}

// FormatLocal renders t in loc as "04.03.25, 16:30 IST".
func FormatLocal(t time.Time, loc *time.Location) string {
	local := t.In(loc)
	return local.Format(slotLayout) + " " + local.Format("MST")
}

package businessflow

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultWindowOffset is the fixed UTC offset send windows are expressed in (UTC+05:30)
	DefaultWindowOffset = 330 * time.Minute
	// DefaultIntervalMinutes replaces a zero interval
	DefaultIntervalMinutes = 5
)

// Clock is a time of day without a date
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" (a single-digit hour is accepted)
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[1]) != 2 || parts[0] == "" || len(parts[0]) > 2 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}

	return Clock{Hour: hour, Minute: minute}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) minuteOfDay() int {
	return c.Hour*60 + c.Minute
}

// SendWindow is the daily interval [Start, End) during which emails may go out.
// End at or before Start means the window runs past midnight.
type SendWindow struct {
	Start Clock
	End   Clock
}

// ParseSendWindow parses both ends of a window
func ParseSendWindow(start, end string) (SendWindow, error) {
	s, err := ParseClock(start)
	if err != nil {
		return SendWindow{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return SendWindow{}, err
	}
	return SendWindow{Start: s, End: e}, nil
}

// CrossesMidnight reports whether the window wraps into the next calendar day
func (w SendWindow) CrossesMidnight() bool {
	return w.End.minuteOfDay() <= w.Start.minuteOfDay()
}

// Contains reports whether the minute of day lies inside the window
func (w SendWindow) Contains(minuteOfDay int) bool {
	start, end := w.Start.minuteOfDay(), w.End.minuteOfDay()
	if w.CrossesMidnight() {
		return minuteOfDay >= start || minuteOfDay < end
	}
	return minuteOfDay >= start && minuteOfDay < end
}

// ContainsTime reports whether t, read as wall clock time, lies inside the window
func (w SendWindow) ContainsTime(t time.Time) bool {
	return w.Contains(t.Hour()*60 + t.Minute())
}

func (w SendWindow) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// SendTimeCalculator spreads sends over a daily window in a fixed-offset zone
type SendTimeCalculator struct {
	zone *time.Location
}

// NewSendTimeCalculator creates a calculator for windows expressed at the given UTC offset
func NewSendTimeCalculator(offset time.Duration) *SendTimeCalculator {
	return &SendTimeCalculator{zone: fixedZone(offset)}
}

func fixedZone(offset time.Duration) *time.Location {
	sign := "+"
	abs := offset
	if offset < 0 {
		sign = "-"
		abs = -offset
	}
	name := fmt.Sprintf("UTC%s%02d:%02d", sign, int(abs.Hours()), int(abs.Minutes())%60)
	return time.FixedZone(name, int(offset.Seconds()))
}

// Zone returns the location windows are evaluated in
func (c *SendTimeCalculator) Zone() *time.Location {
	return c.zone
}

// ComputeSendTimes returns count UTC instants, one interval apart, each inside the window.
// A cursor outside the window jumps to the next window start.
func (c *SendTimeCalculator) ComputeSendTimes(count int, window SendWindow, intervalMinutes int, now time.Time) []time.Time {
	if count <= 0 {
		return []time.Time{}
	}
	if intervalMinutes <= 0 {
		intervalMinutes = DefaultIntervalMinutes
	}
	step := time.Duration(intervalMinutes) * time.Minute

	cursor := now.In(c.zone)
	if !window.ContainsTime(cursor) {
		cursor = c.nextWindowStart(window, cursor)
	}

	times := make([]time.Time, 0, count)
	times = append(times, cursor.UTC())
	for i := 1; i < count; i++ {
		cursor = cursor.Add(step)
		if !window.ContainsTime(cursor) {
			cursor = c.nextWindowStart(window, cursor)
		}
		times = append(times, cursor.UTC())
	}

	return times
}

// nextWindowStart is today's window start when still ahead of the cursor, otherwise tomorrow's
func (c *SendTimeCalculator) nextWindowStart(window SendWindow, cursor time.Time) time.Time {
	next := time.Date(cursor.Year(), cursor.Month(), cursor.Day(), window.Start.Hour, window.Start.Minute, 0, 0, c.zone)
	if !next.After(cursor) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

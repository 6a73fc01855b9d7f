package utils

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar date format used for every stored and exchanged date.
const DateLayout = "2006-01-02"

// MaxNights bounds the length of a single stay.
const MaxNights = 365

// ErrInvalidDate is wrapped by every date parsing and range error.
var ErrInvalidDate = errors.New("invalid date")

// IsDateError reports whether err comes from a malformed date or range.
func IsDateError(err error) bool {
	return errors.Is(err, ErrInvalidDate)
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidDate, s, err)
	}
	return t, nil
}

// FormatDate formats the calendar date of t, ignoring its clock time.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// AddDays shifts a calendar date by n days.
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, n)), nil
}

// Nights returns every night of the half-open stay [checkIn, checkOut).
// Stays longer than MaxNights are rejected.
func Nights(checkIn, checkOut string) ([]string, error) {
	from, err := ParseDate(checkIn)
	if err != nil {
		return nil, err
	}
	to, err := ParseDate(checkOut)
	if err != nil {
		return nil, err
	}
	if !to.After(from) {
		return nil, fmt.Errorf("%w: check-out %s must be after check-in %s", ErrInvalidDate, checkOut, checkIn)
	}
	if to.After(from.AddDate(0, 0, MaxNights)) {
		return nil, fmt.Errorf("%w: stay %s to %s exceeds %d nights", ErrInvalidDate, checkIn, checkOut, MaxNights)
	}
	var nights []string
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		nights = append(nights, FormatDate(d))
	}
	return nights, nil
}

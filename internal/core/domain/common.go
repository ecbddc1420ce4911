package domain

import "time"

// Timestamps holds creation and last-modification times of a persisted record.
type Timestamps struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DateLayout is the calendar date format used on the wire and in storage keys.
const DateLayout = "2006-01-02"

// NormalizeDate returns midnight UTC of the calendar date t falls on in its own location.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return NormalizeDate(t), nil
}

// Today is the current calendar date in UTC.
func Today() time.Time {
	return NormalizeDate(time.Now().UTC())
}

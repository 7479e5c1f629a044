package crops

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the wire format of Entry.Date.
const DateLayout = "2006-01-02"

// ErrInvalidEntry is returned when a crop entry fails validation.
var ErrInvalidEntry = errors.New("invalid crop entry")

var validate = validator.New()

// Entry is one planted crop and its target harvest date.
type Entry struct {
	Text string `json:"text" validate:"required"`
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

// ID identifies an entry in the dismissed-notification set.
func (e Entry) ID() string {
	return e.Text + "_" + e.Date
}

// Normalize trims the entry and validates it.
func Normalize(e Entry) (Entry, error) {
	e.Text = strings.TrimSpace(e.Text)
	e.Date = strings.TrimSpace(e.Date)
	if err := validate.Struct(e); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return e, nil
}

// ParseDate reads an entry date. Plain dates are midnight UTC; full RFC3339
// timestamps are accepted for records written by other clients.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid crop date %q", s)
	}
	return t, nil
}

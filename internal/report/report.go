// Package report holds the station report model and the normalization rules
// shared by every handler and store backend.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// InputDateLayout is the textual pattern stations submit, YYYY/MM/DD,HH:MM:SS.
	// Month, day and hour may be written with a single digit.
	InputDateLayout = "2006/1/2,15:04:05"

	// DateLayout is the ISO-8601 form stored as the sort key.
	DateLayout = "2006-01-02T15:04:05"

	// DayLayout is the calendar-day form used by report counts.
	DayLayout = "2006-01-02"

	// MaxSignificantDigits is the precision of a DynamoDB number.
	MaxSignificantDigits = 38
)

// ErrInvalidDate is returned when a submitted date does not match InputDateLayout.
var ErrInvalidDate = errors.New("invalid report date")

// Report is one battery/panel voltage sample of a station.
// Battery and Panel keep the decimal literal that was submitted so that
// stores can persist the exact value.
type Report struct {
	Station string
	Date    string
	Battery json.Number
	Panel   json.Number
}

// BatteryFloat returns the battery reading as a float64.
func (r Report) BatteryFloat() float64 {
	return toFloat(r.Battery)
}

// PanelFloat returns the panel reading as a float64.
func (r Report) PanelFloat() float64 {
	return toFloat(r.Panel)
}

// Day returns the calendar day of the report date, without time component.
func (r Report) Day() (string, error) {
	return DayOf(r.Date)
}

func toFloat(n json.Number) float64 {
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	return f
}

// DecodeStation percent-decodes and trims a station identifier, keeping its
// case. A string that is not valid percent-encoding is only trimmed.
func DecodeStation(station string) string {
	decoded, err := url.PathUnescape(station)
	if err != nil {
		decoded = station
	}
	return strings.TrimSpace(decoded)
}

// NormalizeStation returns the stored key of a station identifier: decoded
// and lower-cased.
func NormalizeStation(station string) string {
	return strings.ToLower(DecodeStation(station))
}

// ParseInputDate converts a YYYY/MM/DD,HH:MM:SS string into the stored ISO-8601 form.
func ParseInputDate(value string) (string, error) {
	t, err := time.Parse(InputDateLayout, strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("%w %q: %w", ErrInvalidDate, value, err)
	}
	return t.Format(DateLayout), nil
}

// DayOf truncates an ISO-8601 report date to its YYYY-MM-DD day.
// Dates carrying fractional seconds or a zone offset are accepted too.
func DayOf(date string) (string, error) {
	for _, layout := range []string{DateLayout, "2006-01-02T15:04:05.999999999", time.RFC3339Nano, DayLayout} {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Format(DayLayout), nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrInvalidDate, date)
}

// ValidDecimal reports whether n is a finite JSON number literal with at
// most MaxSignificantDigits significant digits.
func ValidDecimal(n json.Number) bool {
	if n == "" || (n[0] != '-' && (n[0] < '0' || n[0] > '9')) {
		return false
	}
	if !json.Valid([]byte(n)) {
		return false
	}
	if significantDigits(n) > MaxSignificantDigits {
		return false
	}
	_, err := n.Float64()
	return err == nil
}

// significantDigits counts the mantissa digits of a valid JSON number,
// leading and trailing zeros excluded.
func significantDigits(n json.Number) int {
	mantissa := strings.TrimPrefix(string(n), "-")
	if i := strings.IndexAny(mantissa, "eE"); i >= 0 {
		mantissa = mantissa[:i]
	}
	digits := strings.Replace(mantissa, ".", "", 1)
	return len(strings.Trim(digits, "0"))
}

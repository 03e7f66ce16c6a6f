package store

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidCursor is returned when a continuation token cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is the primary key of the last item of a page. Date is empty for
// cursors over the last-report table.
type Cursor struct {
	Station string `json:"station"`
	Date    string `json:"date,omitempty"`
}

// Encode returns the opaque token handed to clients.
func (c Cursor) Encode() string {
	raw, _ := json.Marshal(c) //nolint:errchkjson // two string fields cannot fail
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a token produced by Cursor.Encode.
func DecodeCursor(token string) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}

	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}

	if c.Station == "" {
		return nil, fmt.Errorf("%w: missing station", ErrInvalidCursor)
	}

	return &c, nil
}

// DecodeReportCursor parses a token over the reports table, which must carry
// the date sort key as well as the station.
func DecodeReportCursor(token string) (*Cursor, error) {
	c, err := DecodeCursor(token)
	if err != nil {
		return nil, err
	}
	if c.Date == "" {
		return nil, fmt.Errorf("%w: missing date", ErrInvalidCursor)
	}
	return c, nil
}

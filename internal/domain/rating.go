package domain

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Rating is an external rating such as the IMDb score.
//
// OMDb reports ratings as strings ("7.8", "N/A") and exports written by older
// versions of the app kept that format, so decoding accepts both numbers and
// numeric strings. "N/A" and empty strings decode to null.
type Rating float64

// UnmarshalJSON implements json.Unmarshaler.
func (r *Rating) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, ok, err := ParseRating(s)
		if err != nil {
			return err
		}
		if ok {
			*r = v
		}
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid rating %s: %w", data, err)
	}
	*r = Rating(f)
	return nil
}

// ParseRating parses an OMDb style rating string. ok is false for "N/A" and blanks.
func ParseRating(s string) (Rating, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "N/A") {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid rating %q: %w", s, err)
	}
	return Rating(f), true, nil
}

// RatingPtr is a convenience for building records in code and tests.
func RatingPtr(f float64) *Rating {
	r := Rating(f)
	return &r
}

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Measure is a nullable numeric reading. The monitoring CSVs use "*" or
// an empty cell for a missing value and the dashboard forms submit
// numbers as strings, so all of those decode.
type Measure struct {
	Value float64
	Valid bool
}

func Some(v float64) Measure { return Measure{Value: v, Valid: true} }

// ParseMeasure converts a CSV cell. "*" and "" are null.
func ParseMeasure(s string) (Measure, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return Measure{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Measure{}, fmt.Errorf("not a number: %q", s)
	}
	return Some(v), nil
}

// Ptr returns nil for a null measure, for use as a query argument.
func (m Measure) Ptr() *float64 {
	if !m.Valid {
		return nil
	}
	v := m.Value
	return &v
}

func MeasureFromPtr(p *float64) Measure {
	if p == nil {
		return Measure{}
	}
	return Some(*p)
}

// Cell renders the measure the way the source CSVs do.
func (m Measure) Cell() string {
	if !m.Valid {
		return "*"
	}
	return strconv.FormatFloat(m.Value, 'f', -1, 64)
}

func (m Measure) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

func (m *Measure) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Measure{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseMeasure(s)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Some(v)
	return nil
}

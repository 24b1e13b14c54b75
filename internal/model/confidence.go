// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Confidence is the backend's certainty about a detected emotion.
//
// The backend is loose about the type: it sends a number, a percentage string
// such as "85.5%", a label such as "High Risk", or null. Numeric forms land in
// Value with Numeric set; anything else is kept verbatim in Label.
type Confidence struct {
	Value   float64
	Numeric bool
	Label   string
}

// NumericConfidence builds a numeric confidence.
func NumericConfidence(v float64) Confidence {
	return Confidence{Value: v, Numeric: true}
}

// ParseConfidence interprets a textual confidence.
func ParseConfidence(s string) Confidence {
	s = strings.TrimSpace(s)
	if s == "" {
		return Confidence{}
	}
	trimmed := strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return NumericConfidence(v)
	}
	return Confidence{Label: s}
}

// IsZero reports whether no confidence was supplied.
func (c Confidence) IsZero() bool {
	return !c.Numeric && c.Label == ""
}

// Ptr returns the numeric value for nullable storage columns.
func (c Confidence) Ptr() *float64 {
	if !c.Numeric {
		return nil
	}
	v := c.Value
	return &v
}

// String formats the confidence for display.
func (c Confidence) String() string {
	switch {
	case c.Numeric:
		return strconv.FormatFloat(c.Value, 'f', -1, 64)
	default:
		return c.Label
	}
}

// Percent formats a numeric confidence as a percentage ("85.5%").
// Labels are returned unchanged.
func (c Confidence) Percent() string {
	if c.Numeric {
		return c.String() + "%"
	}
	return c.Label
}

// UnmarshalJSON accepts numbers, strings and null.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Confidence{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("confidence: %w", err)
		}
		*c = ParseConfidence(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("confidence: %w", err)
	}
	*c = NumericConfidence(v)
	return nil
}

// MarshalJSON writes numbers as numbers, labels as strings and empty as null.
func (c Confidence) MarshalJSON() ([]byte, error) {
	switch {
	case c.Numeric:
		return json.Marshal(c.Value)
	case c.Label != "":
		return json.Marshal(c.Label)
	default:
		return []byte("null"), nil
	}
}

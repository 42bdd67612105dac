package domain

import (
	"bytes"
	"encoding/json"
	"math"
)

// Movie is one record of a TMDb list payload. Every field is optional and
// decoded leniently: a value of the wrong JSON type is treated as absent.
type Movie struct {
	ID          int64  `json:"id,omitempty"`
	Title       string `json:"title,omitempty"`
	Name        string `json:"name,omitempty"`
	VoteAverage Score  `json:"vote_average"`
	PosterPath  string `json:"poster_path,omitempty"`
}

// UnmarshalJSON decodes a movie object field by field so a single malformed
// field never discards the rest of the record.
func (m *Movie) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*m = Movie{
		ID:         int64Field(fields["id"]),
		Title:      stringField(fields["title"]),
		Name:       stringField(fields["name"]),
		PosterPath: stringField(fields["poster_path"]),
	}
	if raw, ok := fields["vote_average"]; ok {
		_ = m.VoteAverage.UnmarshalJSON(raw)
	}
	return nil
}

// Score is a numeric rating that may be missing or malformed upstream.
type Score struct {
	Value float64
	Valid bool
}

// NewScore returns a valid score.
func NewScore(v float64) Score {
	return Score{Value: v, Valid: true}
}

// Finite reports whether the score holds a usable number.
func (s Score) Finite() bool {
	return s.Valid && !math.IsNaN(s.Value) && !math.IsInf(s.Value, 0)
}

// UnmarshalJSON accepts JSON numbers; anything else yields an invalid score.
func (s *Score) UnmarshalJSON(data []byte) error {
	*s = Score{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || !isNumberStart(data[0]) {
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	*s = NewScore(v)
	return nil
}

// MarshalJSON writes null for invalid scores.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Finite() {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

func isNumberStart(b byte) bool {
	return b == '-' || (b >= '0' && b <= '9')
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func int64Field(raw json.RawMessage) int64 {
	var s Score
	_ = s.UnmarshalJSON(raw)
	if !s.Finite() {
		return 0
	}
	return int64(s.Value)
}

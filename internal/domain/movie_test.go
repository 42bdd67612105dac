package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovieUnmarshal_Lenient(t *testing.T) {
	var m Movie
	err := json.Unmarshal([]byte(`{"id":"abc","title":7,"name":"Fallback","vote_average":"8.1","poster_path":null}`), &m)
	require.NoError(t, err)

	assert.Equal(t, int64(0), m.ID)
	assert.Equal(t, "", m.Title)
	assert.Equal(t, "Fallback", m.Name)
	assert.False(t, m.VoteAverage.Valid)
	assert.Equal(t, "", m.PosterPath)
}

func TestMovieUnmarshal_WellFormed(t *testing.T) {
	var m Movie
	err := json.Unmarshal([]byte(`{"id":27205,"title":"Inception","vote_average":8.369,"poster_path":"/x.jpg"}`), &m)
	require.NoError(t, err)

	assert.Equal(t, int64(27205), m.ID)
	assert.Equal(t, "Inception", m.Title)
	assert.True(t, m.VoteAverage.Finite())
	assert.InDelta(t, 8.369, m.VoteAverage.Value, 1e-9)
	assert.Equal(t, "/x.jpg", m.PosterPath)
}

func TestMovieUnmarshal_NotAnObject(t *testing.T) {
	var m Movie
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &m))
}

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		score  Score
		finite bool
	}{
		{"zero value", Score{}, false},
		{"valid", NewScore(7.5), true},
		{"zero rating", NewScore(0), true},
		{"nan", NewScore(math.NaN()), false},
		{"inf", NewScore(math.Inf(1)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.finite, tt.score.Finite())
		})
	}
}

func TestScoreJSON(t *testing.T) {
	var s Score
	require.NoError(t, json.Unmarshal([]byte(`null`), &s))
	assert.False(t, s.Valid)

	out, err := json.Marshal(NewScore(6.5))
	require.NoError(t, err)
	assert.Equal(t, "6.5", string(out))

	out, err = json.Marshal(Score{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

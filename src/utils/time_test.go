package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	t.Run("rfc3339", func(t *testing.T) {
		ts, err := ParseTimestamp("2024-03-15T09:30:00Z")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC), ts)
	})

	t.Run("space separated datetime", func(t *testing.T) {
		ts, err := ParseTimestamp("2024-03-15 09:30:00")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC), ts)
	})

	t.Run("bare date", func(t *testing.T) {
		ts, err := ParseTimestamp("2024-03-15")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), ts)
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := ParseTimestamp("15/03/2024")
		assert.Error(t, err)
	})
}

func TestParseDate(t *testing.T) {
	ts, err := ParseDate("2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), ts)

	_, err = ParseDate("2024-03-15T09:30:00Z")
	assert.Error(t, err)
}

func TestGetMinTime(t *testing.T) {
	earlier := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, earlier, GetMinTime(earlier, later))
	assert.Equal(t, earlier, GetMinTime(later, earlier))
	assert.Equal(t, earlier, GetMinTime(earlier, earlier))
}

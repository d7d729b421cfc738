package database

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamps(t *testing.T) {
	t.Run("round trips in UTC", func(t *testing.T) {
		in := time.Date(2024, 3, 9, 14, 5, 6, 7000, time.FixedZone("BRT", -3*3600))

		out, err := ParseTimestamp(FormatTimestamp(in))

		require.NoError(t, err)
		assert.True(t, in.Equal(out))
		assert.Equal(t, time.UTC, out.Location())
	})

	t.Run("formatted values sort chronologically", func(t *testing.T) {
		earlier := time.Date(2024, 1, 1, 0, 0, 0, 900000000, time.UTC)
		later := time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC)

		assert.Less(t, FormatTimestamp(earlier), FormatTimestamp(later))
	})

	t.Run("accepts RFC 3339", func(t *testing.T) {
		out, err := ParseTimestamp("2024-01-15T10:00:00Z")

		require.NoError(t, err)
		assert.Equal(t, 10, out.Hour())
	})

	t.Run("null values", func(t *testing.T) {
		assert.False(t, NullTimestamp(nil).Valid)

		parsed, err := ParseNullTimestamp(sql.NullString{})
		require.NoError(t, err)
		assert.Nil(t, parsed)

		now := time.Now()
		parsed, err = ParseNullTimestamp(NullTimestamp(&now))
		require.NoError(t, err)
		require.NotNil(t, parsed)
		assert.True(t, now.Equal(*parsed))
	})
}

package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayBoundsAreUTC(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	// 2024-03-02 01:30 WIB is still 2024-03-01 in UTC.
	at := time.Date(2024, 3, 2, 1, 30, 0, 0, jakarta)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), DayStart(at))
	assert.Equal(t, time.Date(2024, 3, 1, 23, 59, 59, int(999*time.Millisecond), time.UTC), DayEnd(at))
}

func TestParse(t *testing.T) {
	r, err := Parse("2024-03-01", "2024-03-31")
	require.NoError(t, err)
	assert.True(t, r.Contains(time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, r.Contains(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))

	_, err = Parse("2024-03-31", "2024-03-01")
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = Parse("2024/03/01", "")
	assert.Error(t, err)

	open, err := Parse("", "")
	require.NoError(t, err)
	assert.True(t, open.Contains(time.Now()))
}

func TestWorkDate(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	at := time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC) // 01:30 on the 2nd in WIB

	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), WorkDate(at, jakarta))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), WorkDate(at, time.UTC))
}

package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	got, ok := ParseDate("2024-10-10")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC), got)

	_, ok = ParseDate("10/10/2024")
	assert.False(t, ok)
}

func TestFormatDateRoundTrip(t *testing.T) {
	d := time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)
	got, ok := ParseDate(FormatDate(d))
	require.True(t, ok)
	assert.True(t, got.Equal(d))
}

func TestNextBusinessDaySkipsWeekend(t *testing.T) {
	friday := time.Date(2024, 10, 11, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Monday, NextBusinessDay(friday).Weekday())
}

func TestBusinessDaysAfter(t *testing.T) {
	start := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC) // Thursday
	days := BusinessDaysAfter(start, 5)
	require.Len(t, days, 5)
	for _, d := range days {
		assert.True(t, IsBusinessDay(d), "expected weekday, got %v", d.Weekday())
		assert.True(t, d.After(start))
	}
	// Thursday -> Fri, Mon, Tue, Wed, Thu
	assert.Equal(t, time.Friday, days[0].Weekday())
	assert.Equal(t, time.Monday, days[1].Weekday())
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 212.35, Round2(212.345001))
	assert.Equal(t, 0.723, Round3(0.72349))
}

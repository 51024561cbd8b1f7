package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 30, 15, 0, time.UTC)

	tests := []struct {
		spec string
		next time.Time
		str  string
	}{
		{"@every 1h", base.Add(time.Hour), "@every 1h0m0s"},
		{"@hourly", base.Add(time.Hour), "@every 1h0m0s"},
		{"@daily", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), "0 0 * * *"},
		{"0 3 * * *", time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC), "0 3 * * *"},
		{"*/15 * * * *", time.Date(2026, 3, 1, 9, 45, 0, 0, time.UTC), "*/15 * * * *"},
		{"30 2 * * 1-5", time.Date(2026, 3, 2, 2, 30, 0, 0, time.UTC), "30 2 * * 1-5"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			s, err := ParseSchedule(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.next, s.Next(base))
			assert.Equal(t, tt.str, s.String())
		})
	}
}

func TestParseScheduleErrors(t *testing.T) {
	for _, spec := range []string{
		"@every",
		"@every -5m",
		"@every soon",
		"* * * *",
		"60 * * * *",
		"5-2 * * * *",
		"*/0 * * * *",
		"a * * * *",
	} {
		_, err := ParseSchedule(spec)
		assert.Error(t, err, spec)
	}
}

func TestCronListWithRanges(t *testing.T) {
	ce, err := ParseCronExpression("0,30 8-9 * * *")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 30}, ce.minutes)
	assert.Equal(t, []int{8, 9}, ce.hours)
}

func TestCronNextImpossibleDate(t *testing.T) {
	ce := MustParseCronExpression("0 0 31 2 *")
	assert.True(t, ce.Next(time.Now()).IsZero())
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePeriod_Weekly(t *testing.T) {
	loc := time.FixedZone("PST", -8*3600)

	tests := []struct {
		name      string
		now       time.Time
		wantStart time.Time
	}{
		{
			"midweek",
			time.Date(2026, 9, 3, 15, 4, 5, 0, loc), // Thursday
			time.Date(2026, 8, 31, 0, 0, 0, 0, loc), // Monday
		},
		{
			"monday morning",
			time.Date(2026, 8, 31, 0, 0, 0, 0, loc),
			time.Date(2026, 8, 31, 0, 0, 0, 0, loc),
		},
		{
			"sunday night",
			time.Date(2026, 9, 6, 23, 59, 59, 0, loc),
			time.Date(2026, 8, 31, 0, 0, 0, 0, loc),
		},
		{
			"week spanning month boundary",
			time.Date(2026, 10, 1, 9, 0, 0, 0, loc),  // Thursday Oct 1
			time.Date(2026, 9, 28, 0, 0, 0, 0, loc),  // Monday Sep 28
		},
		{
			"week spanning year boundary",
			time.Date(2027, 1, 2, 12, 0, 0, 0, loc),   // Saturday Jan 2
			time.Date(2026, 12, 28, 0, 0, 0, 0, loc),  // Monday Dec 28
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ComputePeriod(tt.now, PeriodWeekly)
			assert.True(t, p.Start.Equal(tt.wantStart), "start = %v, want %v", p.Start, tt.wantStart)
			assert.Equal(t, time.Monday, p.Start.Weekday())
			h, m, s := p.Start.Clock()
			assert.Zero(t, h+m+s, "start must be midnight")
			assert.Equal(t, 7*24*time.Hour, p.End.Sub(p.Start))
			assert.True(t, p.Contains(tt.now))
		})
	}
}

func TestComputePeriod_Monthly(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		wantEnd time.Time
	}{
		{
			"31 day month",
			time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC),
			time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			"30 day month",
			time.Date(2026, 9, 30, 23, 59, 59, 0, time.UTC),
			time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			"february non leap",
			time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC),
			time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			"february leap year",
			time.Date(2028, 2, 29, 6, 0, 0, 0, time.UTC),
			time.Date(2028, 3, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			"december rolls into next year",
			time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC),
			time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ComputePeriod(tt.now, PeriodMonthly)
			assert.Equal(t, 1, p.Start.Day())
			assert.Equal(t, tt.now.Month(), p.Start.Month())
			assert.True(t, p.End.Equal(tt.wantEnd), "end = %v, want %v", p.End, tt.wantEnd)
			assert.True(t, p.Contains(tt.now))
		})
	}
}

func TestComputePeriod_Deterministic(t *testing.T) {
	now := time.Date(2026, 9, 1, 8, 30, 0, 0, time.UTC)
	for _, kind := range []PeriodKind{PeriodWeekly, PeriodMonthly} {
		a := ComputePeriod(now, kind)
		b := ComputePeriod(now, kind)
		require.True(t, a.Start.Equal(b.Start) && a.End.Equal(b.End),
			"%s period must be deterministic", kind)
	}
}

func TestPeriod_Contains_HalfOpen(t *testing.T) {
	p := ComputePeriod(time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC), PeriodMonthly)

	assert.True(t, p.Contains(p.Start), "start is inclusive")
	assert.False(t, p.Contains(p.End), "end is exclusive")
	assert.True(t, p.Contains(p.End.Add(-time.Nanosecond)))

	// The instant at a boundary belongs to exactly one period.
	next := ComputePeriod(p.End, PeriodMonthly)
	assert.True(t, next.Contains(p.End))
	assert.True(t, next.Start.Equal(p.End), "periods must tile without gaps")
}

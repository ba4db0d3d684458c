package testsession

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemainingNeverNegative(t *testing.T) {
	end := baseNow.Add(65 * time.Second)

	first := Remaining(end, baseNow)
	assert.InDelta(t, 65, first.Seconds(), 1)

	prev := first
	for step := time.Duration(0); step <= 70*time.Second; step += 250 * time.Millisecond {
		r := Remaining(end, baseNow.Add(step))
		assert.LessOrEqual(t, r, prev)
		assert.GreaterOrEqual(t, r, time.Duration(0))
		prev = r
	}
	assert.Equal(t, time.Duration(0), prev)
}

func TestCountdownText(t *testing.T) {
	tests := []struct {
		left time.Duration
		want string
	}{
		{65 * time.Second, "01:05"},
		{59*time.Minute + 59*time.Second, "59:59"},
		{time.Hour, "01:00:00"},
		{2*time.Hour + 3*time.Minute + 4*time.Second, "02:03:04"},
		{0, "00:00"},
	}
	for _, tt := range tests {
		c := NewCountdown(baseNow.Add(tt.left), time.Hour, baseNow)
		assert.Equal(t, tt.want, c.Text())
	}
}

func TestCountdownBands(t *testing.T) {
	band := func(left time.Duration) Band {
		return NewCountdown(baseNow.Add(left), time.Hour, baseNow).Band()
	}
	assert.Equal(t, BandGreen, band(16*time.Minute))
	assert.Equal(t, BandOrange, band(15*time.Minute))
	assert.Equal(t, BandOrange, band(5*time.Minute+time.Second))
	assert.Equal(t, BandRed, band(5*time.Minute))
	assert.Equal(t, BandRed, band(0))
}

func TestCountdownProgressAndFlags(t *testing.T) {
	c := NewCountdown(baseNow.Add(30*time.Minute), time.Hour, baseNow)
	assert.InDelta(t, 0.5, c.Progress(), 0.001)
	assert.False(t, c.Warning())

	c = NewCountdown(baseNow.Add(4*time.Minute), time.Hour, baseNow)
	assert.True(t, c.Warning())
	assert.False(t, c.Expired())

	c = NewCountdown(baseNow.Add(-time.Minute), time.Hour, baseNow)
	assert.True(t, c.Expired())
	assert.False(t, c.Warning())
	assert.Equal(t, 0.0, c.Progress())

	c = NewCountdown(baseNow.Add(2*time.Hour), time.Hour, baseNow)
	assert.Equal(t, 1.0, c.Progress())
}

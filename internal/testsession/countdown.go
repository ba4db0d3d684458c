package testsession

import (
	"fmt"
	"time"
)

// Band is the urgency colour of a countdown
type Band int

const (
	BandGreen Band = iota
	BandOrange
	BandRed
)

func (b Band) String() string {
	switch b {
	case BandRed:
		return "red"
	case BandOrange:
		return "orange"
	default:
		return "green"
	}
}

// Band thresholds
const (
	RedThreshold    = 5 * time.Minute
	OrangeThreshold = 15 * time.Minute
)

// Remaining is max(0, end-now) truncated to whole seconds
func Remaining(end, now time.Time) time.Duration {
	d := end.Sub(now)
	if d <= 0 {
		return 0
	}
	return d.Truncate(time.Second)
}

// Countdown is the display form of the time left in a session
type Countdown struct {
	Remaining time.Duration
	Total     time.Duration
}

// NewCountdown computes the countdown of a session ending at end
func NewCountdown(end time.Time, total time.Duration, now time.Time) Countdown {
	if total <= 0 {
		total = time.Hour
	}
	return Countdown{Remaining: Remaining(end, now), Total: total}
}

// Text renders MM:SS, or HH:MM:SS from one hour up
func (c Countdown) Text() string {
	secs := int(c.Remaining / time.Second)
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// Band returns the urgency colour
func (c Countdown) Band() Band {
	switch {
	case c.Remaining <= RedThreshold:
		return BandRed
	case c.Remaining <= OrangeThreshold:
		return BandOrange
	default:
		return BandGreen
	}
}

// Progress is the fraction of the session still left, in [0, 1]
func (c Countdown) Progress() float64 {
	p := float64(c.Remaining) / float64(c.Total)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Warning is set during the last five minutes
func (c Countdown) Warning() bool {
	return c.Remaining > 0 && c.Remaining <= RedThreshold
}

// Expired is set once no time is left
func (c Countdown) Expired() bool {
	return c.Remaining == 0
}

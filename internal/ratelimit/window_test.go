package ratelimit

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestWindowCapsBurst(t *testing.T) {
	clk := clock.NewMock()
	w := NewWindow(20, time.Second, clk)

	accepted := 0
	for i := 0; i < 25; i++ {
		if w.Allow() {
			accepted++
		}
	}
	assert.Equal(t, 20, accepted)
	assert.Equal(t, 20, w.Len())
}

func TestWindowSlides(t *testing.T) {
	clk := clock.NewMock()
	w := NewWindow(2, time.Second, clk)

	assert.True(t, w.Allow())
	clk.Add(500 * time.Millisecond)
	assert.True(t, w.Allow())
	assert.False(t, w.Allow())

	// the first attempt is exactly one interval old and no longer counts
	clk.Add(500 * time.Millisecond)
	assert.True(t, w.Allow())
	assert.False(t, w.Allow())

	clk.Add(2 * time.Second)
	assert.True(t, w.Allow())
	assert.True(t, w.Allow())
}

func TestWindowNeverExceedsLimitInAnyInterval(t *testing.T) {
	clk := clock.NewMock()
	w := NewWindow(15, time.Second, clk)

	var accepted []time.Time
	for i := 0; i < 400; i++ {
		if w.Allow() {
			accepted = append(accepted, clk.Now())
		}
		clk.Add(time.Duration(7+i%29) * time.Millisecond)
	}

	for i := range accepted {
		inWindow := 0
		for j := i; j < len(accepted) && accepted[j].Sub(accepted[i]) < time.Second; j++ {
			inWindow++
		}
		assert.LessOrEqual(t, inWindow, 15)
	}
}

func TestWindowResetAndSetLimit(t *testing.T) {
	clk := clock.NewMock()
	w := NewWindow(1, time.Second, clk)
	assert.True(t, w.Allow())
	assert.False(t, w.Allow())

	w.Reset()
	assert.True(t, w.Allow())

	w.SetLimit(3)
	assert.Equal(t, 3, w.Limit())
	assert.True(t, w.Allow())
	assert.True(t, w.Allow())
	assert.False(t, w.Allow())
}

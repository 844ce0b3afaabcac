package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClock(t *testing.T) {
	t.Parallel()

	c := RealClock{}
	before := time.Now()
	now := c.Now()
	assert.False(t, now.Before(before))
	assert.GreaterOrEqual(t, c.Since(before), time.Duration(0))

	tk := c.NewTicker(time.Millisecond)
	defer tk.Stop()
	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker did not fire")
	}
}

func TestMockClockNowSetAdvance(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, c.Since(start))

	later := start.Add(time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestMockTickerFiresWhenDue(t *testing.T) {
	t.Parallel()

	c := NewMockClock(time.Unix(0, 0))
	tk := c.NewTicker(100 * time.Millisecond)

	c.Advance(50 * time.Millisecond)
	select {
	case <-tk.C():
		t.Fatal("ticked early")
	default:
	}

	c.Advance(50 * time.Millisecond)
	select {
	case got := <-tk.C():
		assert.Equal(t, time.Unix(0, 0).Add(100*time.Millisecond), got)
	default:
		t.Fatal("did not tick when due")
	}
}

func TestMockTickerDropsUnreadTicksAndStops(t *testing.T) {
	t.Parallel()

	c := NewMockClock(time.Unix(0, 0))
	tk := c.NewTicker(time.Second)
	c.Advance(time.Second)
	c.Advance(time.Second)
	require.Len(t, tk.C(), 1)
	<-tk.C()

	tk.Stop()
	c.Advance(time.Second)
	assert.Empty(t, tk.C())
}

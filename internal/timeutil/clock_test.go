package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	after := time.Now()
	if got.Before(before) || got.After(after) {
		t.Errorf("Now() = %v, outside [%v, %v]", got, before, after)
	}
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	if !c.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", c.Now(), start)
	}

	c.Advance(90 * time.Minute)
	want := start.Add(90 * time.Minute)
	if !c.Now().Equal(want) {
		t.Errorf("after Advance, Now() = %v, want %v", c.Now(), want)
	}

	if got := c.Since(start); got != 90*time.Minute {
		t.Errorf("Since(start) = %v, want 90m", got)
	}

	c.Set(start)
	if !c.Now().Equal(start) {
		t.Errorf("after Set, Now() = %v, want %v", c.Now(), start)
	}
}

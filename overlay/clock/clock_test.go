package clock

import (
	"testing"
	"time"
)

func TestNewUsesSystemClock(t *testing.T) {
	c := New()
	before := time.Now()
	got := c.Now()
	after := time.Now()
	if got.Before(before) || got.After(after) {
		t.Fatalf("Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestSetNowFuncOverridesSource(t *testing.T) {
	c := New()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.SetNowFunc(func() time.Time { return fixed })

	if got := c.Now(); !got.Equal(fixed) {
		t.Fatalf("Now() = %v, want %v", got, fixed)
	}

	advanced := fixed.Add(time.Minute)
	c.SetNowFunc(func() time.Time { return advanced })
	if got := c.Now(); !got.Equal(advanced) {
		t.Fatalf("Now() = %v, want %v", got, advanced)
	}
}

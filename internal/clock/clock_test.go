package clock

import (
	"testing"
	"time"
)

func TestFake_FiresInDeadlineThenSchedulingOrder(t *testing.T) {
	c := NewFake()
	var got []string
	c.AfterFunc(2*time.Second, func() { got = append(got, "b") })
	c.AfterFunc(time.Second, func() { got = append(got, "a") })
	c.AfterFunc(2*time.Second, func() { got = append(got, "c") })

	c.Advance(1500 * time.Millisecond)
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected only a after 1.5s, got %v", got)
	}
	c.Advance(time.Second)
	if len(got) != 3 || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected order: %v", got)
	}
	if c.Now() != 2500*time.Millisecond {
		t.Fatalf("unexpected now: %s", c.Now())
	}
}

func TestFake_StopPreventsFiring(t *testing.T) {
	c := NewFake()
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })
	if !tm.Stop() {
		t.Fatalf("expected first stop to report true")
	}
	if tm.Stop() {
		t.Fatalf("expected second stop to report false")
	}
	c.Advance(time.Minute)
	if fired {
		t.Fatalf("stopped timer fired")
	}
	if c.Pending() != 0 {
		t.Fatalf("expected no pending timers, got %d", c.Pending())
	}
}

func TestFake_ZeroDelayNeedsAdvance(t *testing.T) {
	c := NewFake()
	fired := false
	c.AfterFunc(0, func() { fired = true })
	if fired {
		t.Fatalf("timer fired before Advance")
	}
	c.Advance(0)
	if !fired {
		t.Fatalf("expected zero-delay timer to fire on Advance(0)")
	}
}

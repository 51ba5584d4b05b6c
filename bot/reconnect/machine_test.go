package reconnect

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeClock captures scheduled timers so tests fire them by hand.
type fakeClock struct {
	mu    sync.Mutex
	calls []*fakeTimer
}

type fakeTimer struct {
	delay     time.Duration
	fn        func()
	cancelled bool
}

func (c *fakeClock) after(d time.Duration, fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{delay: d, fn: fn}
	c.calls = append(c.calls, timer)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		timer.cancelled = true
	}
}

func (c *fakeClock) scheduled() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeTimer(nil), c.calls...)
}

// fire runs the i-th scheduled timer unless it was cancelled.
func (c *fakeClock) fire(t *testing.T, i int) {
	t.Helper()
	c.mu.Lock()
	if i >= len(c.calls) {
		c.mu.Unlock()
		t.Fatalf("No timer %d scheduled, have %d", i, len(c.calls))
	}
	timer := c.calls[i]
	c.mu.Unlock()
	if timer.cancelled {
		return
	}
	timer.fn()
}

type attemptScript struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (s *attemptScript) attempt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) {
		return s.errs[i]
	}
	return nil
}

func (s *attemptScript) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newMachine(clock *fakeClock, script *attemptScript, onFailure func(error)) *Machine {
	return New(Config{
		ConnectionID: "conn-1",
		Logger:       zerolog.Nop(),
		Attempt:      script.attempt,
		OnFailure:    onFailure,
		After:        clock.after,
	})
}

func TestKickSuppressesRetry(t *testing.T) {
	clock := &fakeClock{}
	script := &attemptScript{}
	m := newMachine(clock, script, nil)

	m.HandleDisconnect(true, true, true)

	if len(clock.scheduled()) != 0 {
		t.Error("Expected no timers after a kick")
	}
	if m.State() != StateDisconnected {
		t.Errorf("Expected disconnected state, got %v", m.State())
	}
	if script.count() != 0 {
		t.Error("Expected no dial attempts after a kick")
	}
}

func TestAlwaysOnlineSchedule(t *testing.T) {
	t.Run("two attempts then dormant", func(t *testing.T) {
		clock := &fakeClock{}
		script := &attemptScript{errs: []error{errors.New("down"), errors.New("still down")}}
		var failures []error
		var mu sync.Mutex
		m := newMachine(clock, script, func(err error) {
			mu.Lock()
			failures = append(failures, err)
			mu.Unlock()
		})

		m.HandleDisconnect(false, true, false)

		timers := clock.scheduled()
		if len(timers) != 1 || timers[0].delay != 3*time.Second {
			t.Fatalf("Expected first attempt at 3s, got %+v", timers)
		}

		clock.fire(t, 0)
		timers = clock.scheduled()
		if len(timers) != 2 || timers[1].delay != 10*time.Second {
			t.Fatalf("Expected second attempt at 10s, got %d timers", len(timers))
		}

		clock.fire(t, 1)
		if len(clock.scheduled()) != 2 {
			t.Error("Expected no third attempt")
		}
		if m.State() != StateDisconnected {
			t.Errorf("Expected dormant disconnected state, got %v", m.State())
		}
		if script.count() != 2 {
			t.Errorf("Expected exactly 2 attempts, got %d", script.count())
		}

		deadline := time.Now().Add(time.Second)
		for {
			mu.Lock()
			n := len(failures)
			mu.Unlock()
			if n == 1 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("Timed out waiting for failure report")
			}
			time.Sleep(2 * time.Millisecond)
		}
	})

	t.Run("success stops the schedule", func(t *testing.T) {
		clock := &fakeClock{}
		script := &attemptScript{}
		m := newMachine(clock, script, nil)

		m.HandleDisconnect(false, true, false)
		clock.fire(t, 0)

		if m.State() != StateConnected {
			t.Errorf("Expected connected state, got %v", m.State())
		}
		if len(clock.scheduled()) != 1 {
			t.Error("Expected no further timers after success")
		}
	})

	t.Run("schedule restarts at 3s after a later disconnect", func(t *testing.T) {
		clock := &fakeClock{}
		script := &attemptScript{}
		m := newMachine(clock, script, nil)

		m.HandleDisconnect(false, true, false)
		clock.fire(t, 0)
		m.HandleDisconnect(false, true, false)

		timers := clock.scheduled()
		if timers[len(timers)-1].delay != 3*time.Second {
			t.Errorf("Expected fresh schedule to start at 3s, got %v", timers[len(timers)-1].delay)
		}
	})
}

func TestManualReconnect(t *testing.T) {
	t.Run("single attempt after 5s", func(t *testing.T) {
		clock := &fakeClock{}
		script := &attemptScript{errs: []error{errors.New("down")}}
		var mu sync.Mutex
		var failures int
		m := newMachine(clock, script, func(error) {
			mu.Lock()
			failures++
			mu.Unlock()
		})

		m.HandleDisconnect(false, false, true)

		timers := clock.scheduled()
		if len(timers) != 1 || timers[0].delay != 5*time.Second {
			t.Fatalf("Expected one attempt at 5s, got %+v", timers)
		}

		clock.fire(t, 0)
		if len(clock.scheduled()) != 1 {
			t.Error("Expected no retry after a failed manual attempt")
		}
		if m.State() != StateDisconnected {
			t.Errorf("Expected disconnected state, got %v", m.State())
		}

		deadline := time.Now().Add(time.Second)
		for {
			mu.Lock()
			n := failures
			mu.Unlock()
			if n == 1 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("Timed out waiting for failure report")
			}
			time.Sleep(2 * time.Millisecond)
		}
	})

	t.Run("success connects", func(t *testing.T) {
		clock := &fakeClock{}
		script := &attemptScript{}
		m := newMachine(clock, script, nil)

		m.HandleDisconnect(false, false, true)
		clock.fire(t, 0)

		if m.State() != StateConnected {
			t.Errorf("Expected connected state, got %v", m.State())
		}
	})
}

func TestNoPolicyMeansNoRetry(t *testing.T) {
	clock := &fakeClock{}
	script := &attemptScript{}
	m := newMachine(clock, script, nil)

	m.HandleDisconnect(false, false, false)

	if len(clock.scheduled()) != 0 {
		t.Error("Expected no timers without a reconnect policy")
	}
	if m.State() != StateDisconnected {
		t.Errorf("Expected disconnected state, got %v", m.State())
	}
}

func TestTerminateCancelsPending(t *testing.T) {
	clock := &fakeClock{}
	script := &attemptScript{}
	m := newMachine(clock, script, nil)

	m.HandleDisconnect(false, true, false)
	m.Terminate()
	clock.fire(t, 0)

	if script.count() != 0 {
		t.Error("Expected no attempt after terminate")
	}
	if m.State() != StateTerminated {
		t.Errorf("Expected terminated state, got %v", m.State())
	}

	// Further disconnects on a terminated machine are ignored.
	m.HandleDisconnect(false, true, false)
	if len(clock.scheduled()) != 1 {
		t.Error("Expected no new timers after terminate")
	}
}

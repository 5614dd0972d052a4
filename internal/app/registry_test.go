package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"alarm_clock_bot/internal/domain/alarm"
)

func newTestRegistry(f *fakeFacility, timeout time.Duration) (*Registry, *alarm.Alarm) {
	a := alarm.NewWeekday(7, 30, "")
	a.ID = 1
	return NewRegistry(f, timeout, nullEntry()), a
}

func TestRegistryHoldsOneRegistrationPerAlarm(t *testing.T) {
	f := newFakeFacility()
	r, a := newTestRegistry(f, time.Second)
	ctx := context.Background()

	first, err := r.Arm(ctx, a, tue0800)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Arm(ctx, a, tue0800)
	if err != nil {
		t.Fatal(err)
	}
	if first.Token == second.Token || first.Handle == second.Handle {
		t.Error("expected a fresh registration")
	}
	if !first.FireAt.Equal(second.FireAt) {
		t.Errorf("arming twice moved the instant: %v -> %v", first.FireAt, second.FireAt)
	}
	if f.activeCount() != 1 || r.Len() != 1 {
		t.Errorf("got %d active, %d entries", f.activeCount(), r.Len())
	}
	if len(f.cancelled) != 1 || f.cancelled[0] != first.Handle {
		t.Errorf("first registration not cancelled: %v", f.cancelled)
	}
}

func TestRegistryConcurrentArm(t *testing.T) {
	f := newFakeFacility()
	r, a := newTestRegistry(f, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Arm(context.Background(), a, tue0800)
		}()
	}
	wg.Wait()
	if f.activeCount() != 1 || r.Len() != 1 {
		t.Errorf("got %d active, %d entries", f.activeCount(), r.Len())
	}
}

func TestRegistryDisarm(t *testing.T) {
	f := newFakeFacility()
	r, a := newTestRegistry(f, time.Second)
	ctx := context.Background()

	if err := r.Disarm(ctx, a.ID); err != nil {
		t.Fatalf("disarming an unknown id: %v", err)
	}
	if _, err := r.Arm(ctx, a, tue0800); err != nil {
		t.Fatal(err)
	}
	if err := r.Disarm(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Lookup(a.ID); ok || f.activeCount() != 0 {
		t.Error("registration survived disarm")
	}
}

func TestRegistryErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want any
	}{
		{"denied", alarm.Errorf(alarm.ErrSchedulingDenied, "exact alarms not permitted"), alarm.ErrSchedulingDenied},
		{"unavailable", alarm.Errorf(alarm.ErrSchedulingUnavailable, "down"), alarm.ErrSchedulingUnavailable},
		{"foreign", errors.New("boom"), alarm.ErrSchedulingUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFacility()
			r, a := newTestRegistry(f, time.Second)
			f.failNext(a.ID, tt.err)

			_, err := r.Arm(context.Background(), a, tue0800)
			if got := alarm.ErrorCode(err); got != tt.want {
				t.Errorf("got: %q, want: %q", got, tt.want)
			}
			if r.Len() != 0 {
				t.Error("failed registration recorded")
			}
		})
	}
}

func TestRegistryTimeoutCancelsLateRegistration(t *testing.T) {
	f := newFakeFacility()
	f.delay = 100 * time.Millisecond
	r, a := newTestRegistry(f, 10*time.Millisecond)

	_, err := r.Arm(context.Background(), a, tue0800)
	if got, want := alarm.ErrorCode(err), alarm.ErrSchedulingUnavailable; got != want {
		t.Fatalf("got: %q, want: %q", got, want)
	}
	if r.Len() != 0 {
		t.Error("timed out registration recorded")
	}

	// Wait for the late registration to land and be cancelled.
	deadline := time.Now().Add(2 * time.Second)
	for f.cancelledCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if f.cancelledCount() != 1 || f.activeCount() != 0 {
		t.Error("late registration left armed")
	}
}

func TestSlotRelease(t *testing.T) {
	f := newFakeFacility()
	r, a := newTestRegistry(f, time.Second)
	e, err := r.Arm(context.Background(), a, tue0800)
	if err != nil {
		t.Fatal(err)
	}

	_ = r.Locked(a.ID, func(s *Slot) error {
		if s.Release("someone-else") {
			t.Error("released with a foreign token")
		}
		if !s.Release(e.Token) {
			t.Error("release with the current token failed")
		}
		return nil
	})
	if _, ok := r.Lookup(a.ID); ok {
		t.Error("entry survived release")
	}
}

func TestKeyedMutexCleansUp(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock(1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		k.Lock(1)()
	}()
	select {
	case <-done:
		t.Fatal("second lock acquired while held")
	case <-time.After(20 * time.Millisecond):
	}
	// Other ids are not blocked.
	k.Lock(2)()
	unlock()
	<-done

	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.locks) != 0 {
		t.Errorf("expected no lingering locks, got %d", len(k.locks))
	}
}

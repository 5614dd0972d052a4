// internal/app/registry.go
package app

import (
	"context"
	"sync"
	"time"

	"alarm_clock_bot/internal/domain/alarm"
	"alarm_clock_bot/internal/domain/timer"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultRegisterTimeout bounds every call into the timer facility.
const DefaultRegisterTimeout = 5 * time.Second

// Entry is the registration currently armed for one alarm.
type Entry struct {
	FireAt    time.Time
	Handle    timer.Handle
	Token     string
	Transient bool
}

// Registry keeps the facility's armed wake-ups consistent with the enabled alarms.
// It holds at most one registration per alarm id. The id -> entry map lives only in memory
// and is rebuilt by recovery on every start.
type Registry struct {
	facility timer.Facility
	timeout  time.Duration
	logger   *logrus.Entry
	locks    *keyedMutex

	mu      sync.Mutex
	entries map[int64]Entry
}

func NewRegistry(facility timer.Facility, timeout time.Duration, logger *logrus.Entry) *Registry {
	if timeout <= 0 {
		timeout = DefaultRegisterTimeout
	}
	return &Registry{
		facility: facility,
		timeout:  timeout,
		logger:   logger.WithField("component", "registry"),
		locks:    newKeyedMutex(),
		entries:  make(map[int64]Entry),
	}
}

// Slot is the registry view of a single alarm id, valid only inside Locked.
type Slot struct {
	r  *Registry
	id int64
}

// Locked runs fn while holding the per-id lock.
func (r *Registry) Locked(id int64, fn func(s *Slot) error) error {
	unlock := r.locks.Lock(id)
	defer unlock()
	return fn(&Slot{r: r, id: id})
}

// Arm computes the next occurrence after ref and registers it, replacing any existing registration.
func (r *Registry) Arm(ctx context.Context, a *alarm.Alarm, ref time.Time) (Entry, error) {
	var e Entry
	err := r.Locked(a.ID, func(s *Slot) (err error) {
		e, err = s.Arm(ctx, a, ref)
		return err
	})
	return e, err
}

// Rearm is Disarm followed by Arm under one lock.
func (r *Registry) Rearm(ctx context.Context, a *alarm.Alarm, ref time.Time) (Entry, error) {
	var e Entry
	err := r.Locked(a.ID, func(s *Slot) (err error) {
		if err = s.Disarm(ctx); err != nil {
			return err
		}
		e, err = s.Arm(ctx, a, ref)
		return err
	})
	return e, err
}

// Disarm cancels the registration for id. Unknown ids are a no-op.
func (r *Registry) Disarm(ctx context.Context, id int64) error {
	return r.Locked(id, func(s *Slot) error {
		return s.Disarm(ctx)
	})
}

// Lookup returns the registration held for id.
func (r *Registry) Lookup(id int64) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return e, ok
}

// Len returns the number of armed alarms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Entry returns the registration held for the slot's id.
func (s *Slot) Entry() (Entry, bool) {
	return s.r.Lookup(s.id)
}

// Arm registers the next regular occurrence of a after ref.
func (s *Slot) Arm(ctx context.Context, a *alarm.Alarm, ref time.Time) (Entry, error) {
	at, err := alarm.NextFireInstant(a, ref)
	if err != nil {
		return Entry{}, err
	}
	return s.ArmAt(ctx, a, at, false)
}

// ArmAt registers a wake-up for a at an explicit instant, replacing any existing registration.
func (s *Slot) ArmAt(ctx context.Context, a *alarm.Alarm, at time.Time, transient bool) (Entry, error) {
	if err := s.Disarm(ctx); err != nil {
		return Entry{}, err
	}
	p := timer.Payload{
		AlarmID:   a.ID,
		Label:     a.Label,
		FireAt:    at,
		Token:     uuid.NewString(),
		Transient: transient,
	}
	h, err := s.r.register(ctx, at, p)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{FireAt: at, Handle: h, Token: p.Token, Transient: transient}
	s.r.mu.Lock()
	s.r.entries[s.id] = e
	s.r.mu.Unlock()

	s.r.logger.WithFields(logrus.Fields{
		"alarm_id":  a.ID,
		"fire_at":   at.Format(time.RFC3339),
		"transient": transient,
	}).Debug("Alarm armed")
	return e, nil
}

// Disarm cancels the current registration, if any.
func (s *Slot) Disarm(ctx context.Context) error {
	e, ok := s.Entry()
	if !ok {
		return nil
	}
	if err := s.r.cancel(ctx, e.Handle); err != nil {
		return err
	}
	s.forget()
	s.r.logger.WithField("alarm_id", s.id).Debug("Alarm disarmed")
	return nil
}

// Release drops the entry after its registration fired. It reports false if token no longer
// matches the registration held for the id.
func (s *Slot) Release(token string) bool {
	e, ok := s.Entry()
	if !ok || e.Token != token {
		return false
	}
	s.forget()
	return true
}

func (s *Slot) forget() {
	s.r.mu.Lock()
	delete(s.r.entries, s.id)
	s.r.mu.Unlock()
}

type registerResult struct {
	h   timer.Handle
	err error
}

// register calls the facility with a bounded wait. A registration that completes after the
// deadline is cancelled so it cannot fire behind the registry's back.
func (r *Registry) register(ctx context.Context, at time.Time, p timer.Payload) (timer.Handle, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan registerResult, 1)
	go func() {
		h, err := r.facility.Register(ctx, at, p)
		done <- registerResult{h, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return 0, schedulingError(res.err, "register alarm %d", p.AlarmID)
		}
		return res.h, nil
	case <-ctx.Done():
		go func() {
			if res := <-done; res.err == nil {
				_ = r.facility.Cancel(context.Background(), res.h)
			}
		}()
		return 0, alarm.Errorf(alarm.ErrSchedulingUnavailable, "register alarm %d: %v", p.AlarmID, ctx.Err())
	}
}

func (r *Registry) cancel(ctx context.Context, h timer.Handle) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.facility.Cancel(ctx, h) }()

	select {
	case err := <-done:
		if err != nil {
			return schedulingError(err, "cancel registration %d", h)
		}
		return nil
	case <-ctx.Done():
		return alarm.Errorf(alarm.ErrSchedulingUnavailable, "cancel registration %d: %v", h, ctx.Err())
	}
}

// schedulingError keeps facility error codes and maps anything else to ErrSchedulingUnavailable.
func schedulingError(err error, format string, args ...any) error {
	if alarm.IsSchedulingError(err) {
		return err
	}
	args = append(args, err)
	return alarm.Errorf(alarm.ErrSchedulingUnavailable, format+": %v", args...)
}

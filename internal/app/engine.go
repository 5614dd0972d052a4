// internal/app/engine.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"alarm_clock_bot/internal/domain/alarm"
	"alarm_clock_bot/internal/domain/alert"
	"alarm_clock_bot/internal/domain/timer"
	idb "alarm_clock_bot/internal/infra/database" // For ErrAlarmNotFound

	"github.com/sirupsen/logrus"
)

// DefaultRecoveryConcurrency bounds the fan-out of recovery and reconciliation.
const DefaultRecoveryConcurrency = 4

// AlarmStore is the part of the repository the engine reads and writes.
type AlarmStore interface {
	GetByID(ctx context.Context, id int64) (*alarm.Alarm, error)
	ListEnabled(ctx context.Context) ([]*alarm.Alarm, error)
	SetEnabled(ctx context.Context, id int64, enabled bool) error
}

// Engine reacts to alarm mutations, timer fires and user responses, keeping the registry
// consistent with the store. It accepts no work until RecoverAll has completed.
type Engine struct {
	// Now returns the current instant. Replaced in tests.
	Now func() time.Time

	store       AlarmStore
	registry    *Registry
	notifier    alert.Notifier
	logger      *logrus.Entry
	location    *time.Location
	concurrency int

	recovering atomic.Bool
	ready      chan struct{}

	// One-time alarms that fired and wait for a response. Reconciliation must not re-arm them.
	awaitingMu sync.Mutex
	awaiting   map[int64]struct{}

	wg sync.WaitGroup
}

func NewEngine(
	store AlarmStore,
	registry *Registry,
	notifier alert.Notifier,
	logger *logrus.Entry,
	location *time.Location,
	concurrency int,
) *Engine {
	if location == nil {
		location = time.Local
	}
	if concurrency <= 0 {
		concurrency = DefaultRecoveryConcurrency
	}
	return &Engine{
		Now:         time.Now,
		store:       store,
		registry:    registry,
		notifier:    notifier,
		logger:      logger.WithField("component", "engine"),
		location:    location,
		concurrency: concurrency,
		ready:       make(chan struct{}),
		awaiting:    make(map[int64]struct{}),
	}
}

func (e *Engine) now() time.Time {
	return e.Now().In(e.location)
}

func (e *Engine) waitReady(ctx context.Context) error {
	select {
	case <-e.ready:
		return nil
	case <-ctx.Done():
		return alarm.Errorf(alarm.ErrSchedulingUnavailable, "engine not ready: %v", ctx.Err())
	}
}

// Ready is closed once recovery has completed.
func (e *Engine) Ready() <-chan struct{} {
	return e.ready
}

// Registry exposes the schedule registry, mostly for inspection.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// OnAlarmCreatedOrEnabled arms the next occurrence of a freshly created or enabled alarm.
func (e *Engine) OnAlarmCreatedOrEnabled(ctx context.Context, a *alarm.Alarm) (Entry, error) {
	if err := e.waitReady(ctx); err != nil {
		return Entry{}, err
	}
	if !a.Enabled {
		return Entry{}, alarm.Errorf(alarm.ErrInvalid, "alarm %d is not enabled", a.ID)
	}
	e.clearAwaiting(a.ID)
	entry, err := e.registry.Arm(ctx, a, e.now())
	if err != nil {
		e.logger.WithError(err).WithField("alarm_id", a.ID).Error("Failed to arm alarm")
		return Entry{}, err
	}
	return entry, nil
}

// OnAlarmUpdated re-arms an enabled alarm after its time or repeat days changed, or
// disarms it if the update left it disabled.
func (e *Engine) OnAlarmUpdated(ctx context.Context, a *alarm.Alarm) (Entry, error) {
	if err := e.waitReady(ctx); err != nil {
		return Entry{}, err
	}
	e.clearAwaiting(a.ID)
	if !a.Enabled {
		return Entry{}, e.registry.Disarm(ctx, a.ID)
	}
	entry, err := e.registry.Rearm(ctx, a, e.now())
	if err != nil {
		e.logger.WithError(err).WithField("alarm_id", a.ID).Error("Failed to re-arm updated alarm")
		return Entry{}, err
	}
	return entry, nil
}

// OnAlarmDisabledOrDeleted cancels any wake-up for the alarm.
func (e *Engine) OnAlarmDisabledOrDeleted(ctx context.Context, id int64) error {
	if err := e.waitReady(ctx); err != nil {
		return err
	}
	e.clearAwaiting(id)
	if err := e.registry.Disarm(ctx, id); err != nil {
		e.logger.WithError(err).WithField("alarm_id", id).Error("Failed to disarm alarm")
		return err
	}
	return nil
}

// OnNativeFire handles a wake-up delivered by the timer facility. Repeating alarms get their
// next occurrence armed before the user is alerted, since the user may never respond.
func (e *Engine) OnNativeFire(ctx context.Context, p timer.Payload) error {
	if err := e.waitReady(ctx); err != nil {
		return err
	}
	logCtx := e.logger.WithFields(logrus.Fields{
		"alarm_id":  p.AlarmID,
		"fire_at":   p.FireAt.Format(time.RFC3339),
		"transient": p.Transient,
	})

	var (
		toPresent *alert.Alert
		result    error
	)
	_ = e.registry.Locked(p.AlarmID, func(s *Slot) error {
		if entry, ok := s.Entry(); !ok || entry.Token != p.Token {
			logCtx.Info("Ignoring duplicate or superseded wake-up")
			return nil
		}

		a, err := e.store.GetByID(ctx, p.AlarmID)
		if err != nil {
			s.Release(p.Token)
			if errors.Is(err, idb.ErrAlarmNotFound) {
				logCtx.Warn("Wake-up for an alarm that no longer exists")
				return nil
			}
			logCtx.WithError(err).Error("Could not load fired alarm")
			// The user is still owed the alert. Reconciliation re-arms once the store is back.
			toPresent = &alert.Alert{
				AlarmID: p.AlarmID,
				Label:   p.Label,
				Time:    p.FireAt.In(e.location).Format("15:04"),
				Actions: []alert.Action{alert.ActionDismiss},
				Notice:  "Alarm details could not be loaded; the next occurrence will be scheduled once storage is reachable.",
			}
			result = alarm.Errorf(alarm.ErrStoreUnavailable, "get alarm %d: %v", p.AlarmID, err)
			return nil
		}
		if !a.Enabled {
			s.Release(p.Token)
			logCtx.Info("Wake-up for a disabled alarm, dropping")
			return nil
		}

		al := newAlert(a)
		if a.HasRepeat() {
			ref := e.now()
			if p.FireAt.After(ref) {
				ref = p.FireAt
			}
			if err := e.rearmWithRetry(ctx, s, a, ref, logCtx); err != nil {
				al.Notice = fmt.Sprintf("The next occurrence could not be scheduled: %s. Re-enable the alarm to retry.", alarm.ErrorDescription(err))
				result = err
			}
		} else {
			// Marked before release so Reconcile never sees it unarmed and not awaiting.
			e.markAwaiting(a.ID)
			s.Release(p.Token)
		}
		toPresent = &al
		return nil
	})

	if toPresent != nil {
		if err := e.notifier.Present(ctx, *toPresent); err != nil {
			logCtx.WithError(err).Error("Failed to present alarm")
		} else {
			logCtx.Info("Alarm presented")
		}
	}
	return result
}

func (e *Engine) rearmWithRetry(ctx context.Context, s *Slot, a *alarm.Alarm, ref time.Time, logCtx *logrus.Entry) error {
	entry, err := s.Arm(ctx, a, ref)
	if err != nil {
		logCtx.WithError(err).Warn("Re-arm of repeating alarm failed, retrying")
		entry, err = s.Arm(ctx, a, ref)
	}
	if err != nil {
		logCtx.WithError(err).Error("Re-arm of repeating alarm failed; next occurrence is not scheduled")
		return err
	}
	logCtx.WithField("next_fire_at", entry.FireAt.Format(time.RFC3339)).Info("Next occurrence armed")
	return nil
}

// OnSnoozeResponse arms a one-shot wake-up snoozeDuration from now. The stored schedule is
// not touched; the transient registration replaces any regular one for the id.
func (e *Engine) OnSnoozeResponse(ctx context.Context, id int64) (Decision, error) {
	return e.respond(ctx, id, ResponseSnooze)
}

// OnDismissResponse finalizes a one-time alarm. Repeating alarms already have their next
// occurrence armed.
func (e *Engine) OnDismissResponse(ctx context.Context, id int64) (Decision, error) {
	return e.respond(ctx, id, ResponseDismiss)
}

func (e *Engine) respond(ctx context.Context, id int64, kind ResponseKind) (Decision, error) {
	if err := e.waitReady(ctx); err != nil {
		return Decision{}, err
	}
	logCtx := e.logger.WithFields(logrus.Fields{"alarm_id": id, "response": kind})

	var d Decision
	err := e.registry.Locked(id, func(s *Slot) error {
		a, err := e.store.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, idb.ErrAlarmNotFound) {
				return alarm.Errorf(alarm.ErrUnknownAlarm, "alarm %d not found", id)
			}
			return alarm.Errorf(alarm.ErrStoreUnavailable, "get alarm %d: %v", id, err)
		}

		now := e.now()
		d = Decide(a, kind, now)
		switch d.Kind {
		case DecisionArmTransient:
			if _, err := s.ArmAt(ctx, a, d.At, true); err != nil {
				return err
			}
			e.clearAwaiting(id)
			logCtx.WithField("fire_at", d.At.Format(time.RFC3339)).Info("Alarm snoozed")

		case DecisionFinalizeOneTime:
			if err := e.store.SetEnabled(ctx, id, false); err != nil {
				return alarm.Errorf(alarm.ErrStoreUnavailable, "disable alarm %d: %v", id, err)
			}
			e.clearAwaiting(id)
			if err := s.Disarm(ctx); err != nil {
				return err
			}
			logCtx.Info("One-time alarm dismissed and disabled")

		case DecisionNoOp:
			// A dismiss while a snooze is pending puts the regular schedule back.
			if entry, ok := s.Entry(); ok && entry.Transient && kind == ResponseDismiss && a.Enabled && a.HasRepeat() {
				if _, err := s.Arm(ctx, a, now); err != nil {
					return err
				}
				logCtx.Info("Pending snooze replaced by the regular schedule")
				return nil
			}
			logCtx.Debug("Response needs no scheduling change")
		}
		return nil
	})
	if err != nil {
		if alarm.ErrorCode(err) == alarm.ErrUnknownAlarm {
			logCtx.WithError(err).Warn("Response for unknown alarm ignored")
		} else {
			logCtx.WithError(err).Error("Failed to handle response")
		}
		return Decision{}, err
	}
	return d, nil
}

// Run dispatches fired payloads until ctx is done or the channel is closed, then waits for
// in-flight handlers.
func (e *Engine) Run(ctx context.Context, fired <-chan timer.Payload) {
	defer e.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-fired:
			if !ok {
				return
			}
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				if err := e.OnNativeFire(ctx, p); err != nil {
					e.logger.WithError(err).WithField("alarm_id", p.AlarmID).Error("Error handling wake-up")
				}
			}()
		}
	}
}

func (e *Engine) markAwaiting(id int64) {
	e.awaitingMu.Lock()
	e.awaiting[id] = struct{}{}
	e.awaitingMu.Unlock()
}

func (e *Engine) clearAwaiting(id int64) {
	e.awaitingMu.Lock()
	delete(e.awaiting, id)
	e.awaitingMu.Unlock()
}

func (e *Engine) isAwaiting(id int64) bool {
	e.awaitingMu.Lock()
	defer e.awaitingMu.Unlock()
	_, ok := e.awaiting[id]
	return ok
}

func newAlert(a *alarm.Alarm) alert.Alert {
	actions := []alert.Action{alert.ActionDismiss}
	if a.SnoozeEnabled && a.SnoozeMinutes > 0 {
		actions = []alert.Action{alert.ActionSnooze, alert.ActionDismiss}
	}
	return alert.Alert{
		AlarmID: a.ID,
		Label:   a.Label,
		Time:    a.TimeString(),
		Actions: actions,
	}
}

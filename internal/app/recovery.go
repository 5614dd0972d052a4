// internal/app/recovery.go
package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"alarm_clock_bot/internal/domain/alarm"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// AlarmFailure records one alarm that could not be armed.
type AlarmFailure struct {
	AlarmID int64
	Err     error
}

// RecoveryReport is the aggregate result of re-arming a batch of alarms.
type RecoveryReport struct {
	Armed    []int64
	Skipped  []int64 // fired one-time alarms still waiting for a response
	Failures []AlarmFailure
}

// Err returns the per-alarm failures as one error, or nil if every alarm was armed.
func (r RecoveryReport) Err() error {
	var result *multierror.Error
	for _, f := range r.Failures {
		result = multierror.Append(result, fmt.Errorf("alarm %d: %w", f.AlarmID, f.Err))
	}
	return result.ErrorOrNil()
}

// RecoverAll arms every enabled alarm in the store. It runs once per process, before any
// other engine operation is accepted. Individual failures are collected, not fatal.
func (e *Engine) RecoverAll(ctx context.Context) (RecoveryReport, error) {
	if !e.recovering.CompareAndSwap(false, true) {
		return RecoveryReport{}, alarm.Errorf(alarm.ErrInvalid, "recovery already ran")
	}

	alarms, err := e.store.ListEnabled(ctx)
	if err != nil {
		// Allow the caller to try again.
		e.recovering.Store(false)
		e.logger.WithError(err).Error("Recovery could not list enabled alarms")
		return RecoveryReport{}, alarm.Errorf(alarm.ErrStoreUnavailable, "list enabled alarms: %v", err)
	}
	e.logger.WithField("alarms_count", len(alarms)).Info("Recovering alarm schedule")

	report := e.armAll(ctx, alarms)
	close(e.ready)

	logCtx := e.logger.WithField("armed", len(report.Armed)).WithField("failed", len(report.Failures))
	if err := report.Err(); err != nil {
		logCtx.WithError(err).Error("Recovery finished with failures")
	} else {
		logCtx.Info("Recovery finished")
	}
	return report, nil
}

// Reconcile arms enabled alarms that have no registration, e.g. after an earlier
// SchedulingDenied. Fired one-time alarms awaiting a response are left alone.
func (e *Engine) Reconcile(ctx context.Context) (RecoveryReport, error) {
	if err := e.waitReady(ctx); err != nil {
		return RecoveryReport{}, err
	}
	alarms, err := e.store.ListEnabled(ctx)
	if err != nil {
		return RecoveryReport{}, alarm.Errorf(alarm.ErrStoreUnavailable, "list enabled alarms: %v", err)
	}

	var missing []*alarm.Alarm
	var skipped []int64
	for _, a := range alarms {
		if _, ok := e.registry.Lookup(a.ID); ok {
			continue
		}
		if e.isAwaiting(a.ID) {
			skipped = append(skipped, a.ID)
			continue
		}
		missing = append(missing, a)
	}
	if len(missing) == 0 {
		return RecoveryReport{Skipped: skipped}, nil
	}

	e.logger.WithField("alarms_count", len(missing)).Warn("Arming alarms without a registration")
	report := e.armAll(ctx, missing)
	report.Skipped = append(report.Skipped, skipped...)
	sort.Slice(report.Skipped, func(i, j int) bool { return report.Skipped[i] < report.Skipped[j] })
	return report, nil
}

// armAll arms alarms with bounded fan-out and waits for every one of them.
func (e *Engine) armAll(ctx context.Context, alarms []*alarm.Alarm) RecoveryReport {
	var (
		mu     sync.Mutex
		report RecoveryReport
		g      errgroup.Group
	)
	g.SetLimit(e.concurrency)

	for _, a := range alarms {
		a := a
		g.Go(func() error {
			skipped := false
			err := e.registry.Locked(a.ID, func(s *Slot) error {
				if _, ok := s.Entry(); ok {
					// Armed concurrently by a user action.
					return nil
				}
				if e.isAwaiting(a.ID) {
					skipped = true
					return nil
				}
				_, err := s.Arm(ctx, a, e.now())
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			if skipped {
				report.Skipped = append(report.Skipped, a.ID)
				return nil
			}
			if err != nil {
				report.Failures = append(report.Failures, AlarmFailure{AlarmID: a.ID, Err: err})
				return nil
			}
			report.Armed = append(report.Armed, a.ID)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Armed, func(i, j int) bool { return report.Armed[i] < report.Armed[j] })
	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].AlarmID < report.Failures[j].AlarmID })
	return report
}

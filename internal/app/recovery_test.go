package app

import (
	"context"
	"errors"
	"testing"

	"alarm_clock_bot/internal/domain/alarm"
)

func TestRecoverAllArmsEnabledAlarms(t *testing.T) {
	alarms := []*alarm.Alarm{
		alarm.NewWeekday(7, 30, ""),
		alarm.NewWeekend(9, 0, ""),
		alarm.NewOneTime(22, 15, ""),
		alarm.NewOneTime(6, 0, "off"),
		alarm.NewWeekday(5, 0, "off"),
	}
	alarms[3].Enabled = false
	alarms[4].Enabled = false

	env := newUnrecoveredEnv(alarms...)
	report, err := env.engine.RecoverAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Armed) != 3 || len(report.Failures) != 0 || report.Err() != nil {
		t.Errorf("unexpected report %+v", report)
	}
	for i, id := range []int64{alarms[0].ID, alarms[1].ID, alarms[2].ID} {
		if report.Armed[i] != id {
			t.Errorf("armed[%d]: got: %d, want: %d", i, report.Armed[i], id)
		}
	}
	if n := env.engine.Registry().Len(); n != 3 {
		t.Errorf("got: %d entries, want: 3", n)
	}
	select {
	case <-env.engine.Ready():
	default:
		t.Error("engine not ready after recovery")
	}

	// Weekend alarm on a Tuesday lands on Saturday.
	if e := env.entry(t, alarms[1].ID); !e.FireAt.Equal(at(18, 9, 0)) {
		t.Errorf("got: %v, want Saturday 09:00", e.FireAt)
	}
}

func TestRecoverAllPartialFailure(t *testing.T) {
	ok, bad := alarm.NewWeekday(7, 30, ""), alarm.NewOneTime(9, 0, "")
	env := newUnrecoveredEnv(ok, bad)
	env.facility.failNext(bad.ID, alarm.Errorf(alarm.ErrSchedulingDenied, "limit reached"))

	report, err := env.engine.RecoverAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Armed) != 1 || report.Armed[0] != ok.ID {
		t.Errorf("unexpected armed list %v", report.Armed)
	}
	if len(report.Failures) != 1 || report.Failures[0].AlarmID != bad.ID ||
		alarm.ErrorCode(report.Failures[0].Err) != alarm.ErrSchedulingDenied {
		t.Errorf("unexpected failures %+v", report.Failures)
	}
	if report.Err() == nil {
		t.Error("expected aggregate error")
	}
	// The engine is ready even though one alarm failed.
	select {
	case <-env.engine.Ready():
	default:
		t.Error("engine not ready")
	}
}

func TestRecoverAllRunsOnce(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.RecoverAll(context.Background()); alarm.ErrorCode(err) != alarm.ErrInvalid {
		t.Errorf("expected invalid error, got %v", err)
	}
}

func TestRecoverAllListFailureCanBeRetried(t *testing.T) {
	a := alarm.NewWeekday(7, 30, "")
	env := newUnrecoveredEnv(a)
	env.store.listErr = errors.New("connection refused")

	if _, err := env.engine.RecoverAll(context.Background()); alarm.ErrorCode(err) != alarm.ErrStoreUnavailable {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	select {
	case <-env.engine.Ready():
		t.Fatal("engine ready after failed recovery")
	default:
	}

	env.store.listErr = nil
	report, err := env.engine.RecoverAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Armed) != 1 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestReconcileArmsMissingOnly(t *testing.T) {
	armed, missing := alarm.NewWeekday(7, 30, ""), alarm.NewWeekend(8, 0, "")
	env := newUnrecoveredEnv(armed, missing)
	env.facility.failNext(missing.ID, alarm.Errorf(alarm.ErrSchedulingUnavailable, "timeout"))
	if _, err := env.engine.RecoverAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := env.entry(t, armed.ID)

	report, err := env.engine.Reconcile(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Armed) != 1 || report.Armed[0] != missing.ID {
		t.Errorf("unexpected report %+v", report)
	}
	if after := env.entry(t, armed.ID); after != before {
		t.Error("reconcile replaced an existing registration")
	}

	// Nothing left to do.
	report, err = env.engine.Reconcile(context.Background())
	if err != nil || len(report.Armed) != 0 {
		t.Errorf("got: %+v %v", report, err)
	}
}

func TestArmAllSkipsAlarmAwaitingResponse(t *testing.T) {
	a := alarm.NewOneTime(7, 30, "")
	env := newTestEnv(t, a)
	ctx := context.Background()
	if err := env.engine.Registry().Disarm(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	// The alarm fired and was released after the reconcile pass listed it as missing.
	env.engine.markAwaiting(a.ID)

	report := env.engine.armAll(ctx, []*alarm.Alarm{a})
	if len(report.Armed) != 0 || len(report.Skipped) != 1 || report.Skipped[0] != a.ID {
		t.Errorf("unexpected report %+v", report)
	}
	if _, ok := env.engine.Registry().Lookup(a.ID); ok || env.facility.activeCount() != 0 {
		t.Error("alarm awaiting a response was armed again")
	}
}

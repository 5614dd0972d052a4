package app

import (
	"context"
	"errors"

	"alarm_clock_bot/internal/domain/alarm"
	idb "alarm_clock_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// Scheduler is the engine surface consumed by store mutations.
type Scheduler interface {
	OnAlarmCreatedOrEnabled(ctx context.Context, a *alarm.Alarm) (Entry, error)
	OnAlarmUpdated(ctx context.Context, a *alarm.Alarm) (Entry, error)
	OnAlarmDisabledOrDeleted(ctx context.Context, id int64) error
}

// AlarmService applies user edits to the store and keeps the schedule in step before returning.
// Only the owner may manage alarms.
type AlarmService struct {
	alarmRepo       alarm.Repository
	scheduler       Scheduler
	ownerTelegramID int64
	logger          *logrus.Entry
}

func NewAlarmService(ar alarm.Repository, sch Scheduler, ownerID int64, logger *logrus.Entry) *AlarmService {
	return &AlarmService{
		alarmRepo:       ar,
		scheduler:       sch,
		ownerTelegramID: ownerID,
		logger:          logger.WithField("component", "alarm_service"),
	}
}

func (s *AlarmService) authorize(performingUserID int64) error {
	if performingUserID != s.ownerTelegramID {
		return alarm.Errorf(alarm.ErrNotAuthorized, "user %d may not manage alarms", performingUserID)
	}
	return nil
}

// CreateAlarm stores a new alarm and arms it. If arming fails the stored alarm is left
// disabled and the scheduling error is returned with it.
func (s *AlarmService) CreateAlarm(ctx context.Context, performingUserID int64, a *alarm.Alarm) (*alarm.Alarm, error) {
	if err := s.authorize(performingUserID); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := s.alarmRepo.Create(ctx, a); err != nil {
		return nil, storeError(err, "create alarm")
	}
	logCtx := s.logger.WithField("alarm_id", a.ID)
	logCtx.Info("Alarm created")

	if !a.Enabled {
		return a, nil
	}
	if _, err := s.scheduler.OnAlarmCreatedOrEnabled(ctx, a); err != nil {
		return s.revertEnabled(ctx, a, err)
	}
	return a, nil
}

// UpdateAlarm stores the edited alarm and re-arms or disarms it to match.
func (s *AlarmService) UpdateAlarm(ctx context.Context, performingUserID int64, a *alarm.Alarm) (*alarm.Alarm, error) {
	if err := s.authorize(performingUserID); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := s.alarmRepo.Update(ctx, a); err != nil {
		return nil, storeError(err, "update alarm")
	}
	if _, err := s.scheduler.OnAlarmUpdated(ctx, a); err != nil {
		if a.Enabled && alarm.IsSchedulingError(err) {
			return s.revertEnabled(ctx, a, err)
		}
		return a, err
	}
	s.logger.WithField("alarm_id", a.ID).Info("Alarm updated")
	return a, nil
}

// SetEnabled toggles an alarm. Enabling arms it; disabling cancels its wake-up.
func (s *AlarmService) SetEnabled(ctx context.Context, performingUserID int64, id int64, enabled bool) (*alarm.Alarm, error) {
	if err := s.authorize(performingUserID); err != nil {
		return nil, err
	}
	a, err := s.alarmRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "get alarm")
	}
	if err := s.alarmRepo.SetEnabled(ctx, id, enabled); err != nil {
		return nil, storeError(err, "set enabled")
	}
	a.Enabled = enabled
	logCtx := s.logger.WithFields(logrus.Fields{"alarm_id": id, "enabled": enabled})

	if !enabled {
		if err := s.scheduler.OnAlarmDisabledOrDeleted(ctx, id); err != nil {
			return a, err
		}
		logCtx.Info("Alarm disabled")
		return a, nil
	}
	if _, err := s.scheduler.OnAlarmCreatedOrEnabled(ctx, a); err != nil {
		return s.revertEnabled(ctx, a, err)
	}
	logCtx.Info("Alarm enabled")
	return a, nil
}

// DeleteAlarm cancels the wake-up and removes the alarm.
func (s *AlarmService) DeleteAlarm(ctx context.Context, performingUserID int64, id int64) (*alarm.Alarm, error) {
	if err := s.authorize(performingUserID); err != nil {
		return nil, err
	}
	a, err := s.alarmRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "get alarm")
	}
	if err := s.scheduler.OnAlarmDisabledOrDeleted(ctx, id); err != nil {
		return nil, err
	}
	if err := s.alarmRepo.Delete(ctx, id); err != nil {
		return nil, storeError(err, "delete alarm")
	}
	s.logger.WithField("alarm_id", id).Info("Alarm deleted")
	return a, nil
}

// GetAlarm returns one alarm.
func (s *AlarmService) GetAlarm(ctx context.Context, performingUserID int64, id int64) (*alarm.Alarm, error) {
	if err := s.authorize(performingUserID); err != nil {
		return nil, err
	}
	a, err := s.alarmRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "get alarm")
	}
	return a, nil
}

// ListAlarms returns every alarm ordered by time of day.
func (s *AlarmService) ListAlarms(ctx context.Context, performingUserID int64) ([]*alarm.Alarm, error) {
	if err := s.authorize(performingUserID); err != nil {
		return nil, err
	}
	alarms, err := s.alarmRepo.ListAll(ctx)
	if err != nil {
		return nil, storeError(err, "list alarms")
	}
	return alarms, nil
}

// revertEnabled turns the stored flag back off after a scheduling failure so the store never
// claims an alarm is enabled while nothing is armed. The scheduling error is always returned.
func (s *AlarmService) revertEnabled(ctx context.Context, a *alarm.Alarm, schedErr error) (*alarm.Alarm, error) {
	logCtx := s.logger.WithError(schedErr).WithField("alarm_id", a.ID)
	if err := s.alarmRepo.SetEnabled(ctx, a.ID, false); err != nil {
		logCtx.WithField("revert_error", err.Error()).Error("Scheduling failed and the alarm could not be reverted to disabled")
		return a, schedErr
	}
	a.Enabled = false
	logCtx.Warn("Scheduling failed, alarm left disabled")
	return a, schedErr
}

func storeError(err error, op string) error {
	if errors.Is(err, idb.ErrAlarmNotFound) {
		return alarm.Errorf(alarm.ErrUnknownAlarm, "%s: %v", op, err)
	}
	if alarm.ErrorCode(err) == alarm.ErrInvalid {
		return err
	}
	return alarm.Errorf(alarm.ErrStoreUnavailable, "%s: %v", op, err)
}

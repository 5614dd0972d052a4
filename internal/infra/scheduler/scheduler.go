package scheduler

import (
	"context"
	"fmt"
	"time"

	"alarm_clock_bot/internal/app" // For RecoveryReport

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Reconciler re-arms enabled alarms that lost their wake-up.
type Reconciler interface {
	Reconcile(ctx context.Context) (app.RecoveryReport, error)
}

// AlarmScheduler runs the periodic maintenance jobs of the alarm engine.
type AlarmScheduler struct {
	cronEngine        *cron.Cron
	reconciler        Reconciler
	logger            *logrus.Entry
	cronSpecReconcile string // e.g., "*/15 * * * *" (every 15 minutes)
	jobTimeout        time.Duration
}

func NewAlarmScheduler(
	reconciler Reconciler,
	logger *logrus.Entry,
	location *time.Location,
	cronSpecReconcile string,
) *AlarmScheduler {
	if location == nil {
		location = time.Local
	}
	logger = logger.WithField("component", "alarm_scheduler")
	return &AlarmScheduler{
		cronEngine:        cron.New(cron.WithLocation(location), cron.WithLogger(NewCronLogger(logger))),
		reconciler:        reconciler,
		logger:            logger,
		cronSpecReconcile: cronSpecReconcile,
		jobTimeout:        1 * time.Minute,
	}
}

func (s *AlarmScheduler) Start() error {
	s.logger.Info("Starting alarm scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpecReconcile, s.reconcile)
	if err != nil {
		return fmt.Errorf("could not add reconcile cron job %q: %w", s.cronSpecReconcile, err)
	}

	s.cronEngine.Start()
	s.logger.WithField("spec", s.cronSpecReconcile).Info("Alarm scheduler started with jobs.")
	return nil
}

func (s *AlarmScheduler) reconcile() {
	s.logger.Debug("Cron job triggered for alarm reconciliation.")
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	report, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Error during alarm reconciliation")
		return
	}
	logCtx := s.logger.WithFields(logrus.Fields{
		"armed":   len(report.Armed),
		"skipped": len(report.Skipped),
		"failed":  len(report.Failures),
	})
	if err := report.Err(); err != nil {
		logCtx.WithError(err).Warn("Alarm reconciliation finished with failures")
	} else if len(report.Armed) > 0 {
		logCtx.Info("Alarm reconciliation re-armed alarms")
	}
}

func (s *AlarmScheduler) Stop() {
	s.logger.Info("Stopping alarm scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Alarm scheduler gracefully stopped.")
}

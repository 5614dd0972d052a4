package scheduler

import (
	"context"
	"sync"
	"time"

	"alarm_clock_bot/internal/domain/alarm"
	"alarm_clock_bot/internal/domain/timer"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const firedBuffer = 16

// onceSchedule fires a single time at an exact instant. The first call to Next returns the
// instant even if it already passed, so a registration that reaches the cron loop late still
// runs at once. Next is only called from the cron run loop.
type onceSchedule struct {
	at   time.Time
	used bool
}

func (s *onceSchedule) Next(time.Time) time.Time {
	if s.used {
		return time.Time{}
	}
	s.used = true
	return s.at
}

// CronTimer is a timer.Facility on top of a robfig/cron engine. Every registration is a
// one-shot cron entry removed after it fires.
type CronTimer struct {
	cron   *cron.Cron
	logger *logrus.Entry
	now    func() time.Time

	mu      sync.Mutex
	running bool
	stopped bool
	next    timer.Handle
	entries map[timer.Handle]cron.EntryID

	fired chan timer.Payload
	stop  chan struct{}
}

var _ timer.Facility = (*CronTimer)(nil)

func NewCronTimer(location *time.Location, logger *logrus.Entry) *CronTimer {
	if location == nil {
		location = time.Local
	}
	logger = logger.WithField("component", "cron_timer")
	cl := NewCronLogger(logger)
	return &CronTimer{
		cron: cron.New(
			cron.WithLocation(location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		logger:  logger,
		now:     time.Now,
		entries: make(map[timer.Handle]cron.EntryID),
		fired:   make(chan timer.Payload, firedBuffer),
		stop:    make(chan struct{}),
	}
}

// Start begins delivering wake-ups. Registrations are refused until then.
// A stopped timer cannot be restarted.
func (t *CronTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running || t.stopped {
		return
	}
	t.cron.Start()
	t.running = true
	t.logger.Info("Timer facility started")
}

// Stop halts the cron engine and waits for running deliveries.
func (t *CronTimer) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.stopped = true
	close(t.stop)
	t.mu.Unlock()

	ctx := t.cron.Stop()
	<-ctx.Done()
	t.logger.Info("Timer facility stopped")
}

func (t *CronTimer) Register(ctx context.Context, at time.Time, p timer.Payload) (timer.Handle, error) {
	if err := ctx.Err(); err != nil {
		return 0, alarm.Errorf(alarm.ErrSchedulingUnavailable, "register alarm %d: %v", p.AlarmID, err)
	}
	if at.IsZero() || !at.After(t.now()) {
		return 0, alarm.Errorf(alarm.ErrSchedulingDenied, "alarm %d: instant %s is not in the future", p.AlarmID, at.Format(time.RFC3339))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return 0, alarm.Errorf(alarm.ErrSchedulingUnavailable, "register alarm %d: timer facility is not running", p.AlarmID)
	}

	t.next++
	h := t.next
	t.entries[h] = t.cron.Schedule(&onceSchedule{at: at}, cron.FuncJob(func() {
		t.deliver(h, p)
	}))
	return h, nil
}

func (t *CronTimer) Cancel(_ context.Context, h timer.Handle) error {
	t.mu.Lock()
	id, ok := t.entries[h]
	delete(t.entries, h)
	t.mu.Unlock()
	if ok {
		t.cron.Remove(id)
	}
	return nil
}

func (t *CronTimer) Fired() <-chan timer.Payload {
	return t.fired
}

// Pending returns the number of registrations that have not fired or been cancelled.
func (t *CronTimer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *CronTimer) deliver(h timer.Handle, p timer.Payload) {
	t.mu.Lock()
	id, ok := t.entries[h]
	delete(t.entries, h)
	t.mu.Unlock()
	if !ok {
		// Cancelled while the job was being started.
		return
	}
	t.cron.Remove(id)

	select {
	case t.fired <- p:
		t.logger.WithFields(logrus.Fields{"alarm_id": p.AlarmID, "handle": h}).Debug("Wake-up delivered")
	case <-t.stop:
		t.logger.WithField("alarm_id", p.AlarmID).Warn("Wake-up dropped, timer facility stopping")
	}
}

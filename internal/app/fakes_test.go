package app

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"alarm_clock_bot/internal/domain/alarm"
	"alarm_clock_bot/internal/domain/alert"
	"alarm_clock_bot/internal/domain/timer"
	idb "alarm_clock_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// Tuesday 2024-05-14 08:00 UTC.
var tue0800 = time.Date(2024, 5, 14, 8, 0, 0, 0, time.UTC)

func nullEntry() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

// fakeFacility records registrations. Failures are queued per alarm id.
type fakeFacility struct {
	mu        sync.Mutex
	next      timer.Handle
	active    map[timer.Handle]timer.Payload
	cancelled []timer.Handle
	fail      map[int64][]error
	delay     time.Duration
	calls     int
}

func newFakeFacility() *fakeFacility {
	return &fakeFacility{
		active: make(map[timer.Handle]timer.Payload),
		fail:   make(map[int64][]error),
	}
}

func (f *fakeFacility) failNext(id int64, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[id] = append(f.fail[id], errs...)
}

func (f *fakeFacility) Register(_ context.Context, at time.Time, p timer.Payload) (timer.Handle, error) {
	f.mu.Lock()
	f.calls++
	if q := f.fail[p.AlarmID]; len(q) > 0 {
		f.fail[p.AlarmID] = q[1:]
		f.mu.Unlock()
		return 0, q[0]
	}
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.active[f.next] = p
	return f.next, nil
}

func (f *fakeFacility) Cancel(_ context.Context, h timer.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.active[h]; ok {
		delete(f.active, h)
		f.cancelled = append(f.cancelled, h)
	}
	return nil
}

func (f *fakeFacility) Fired() <-chan timer.Payload { return nil }

func (f *fakeFacility) activeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.active)
}

func (f *fakeFacility) cancelledCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cancelled)
}

// take removes and returns the single active registration of id, as if it fired.
func (f *fakeFacility) take(t *testing.T, id int64) timer.Payload {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var found []timer.Handle
	for h, p := range f.active {
		if p.AlarmID == id {
			found = append(found, h)
		}
	}
	if len(found) != 1 {
		t.Fatalf("alarm %d: expected one active registration, got %d", id, len(found))
	}
	p := f.active[found[0]]
	delete(f.active, found[0])
	return p
}

// fakeStore is an in-memory alarm.Repository.
type fakeStore struct {
	mu      sync.Mutex
	alarms  map[int64]*alarm.Alarm
	nextID  int64
	getErr  error
	listErr error
	setErr  error
}

var _ alarm.Repository = (*fakeStore)(nil)

func newFakeStore(alarms ...*alarm.Alarm) *fakeStore {
	s := &fakeStore{alarms: make(map[int64]*alarm.Alarm)}
	for _, a := range alarms {
		_ = s.Create(context.Background(), a)
	}
	return s
}

func (s *fakeStore) Create(_ context.Context, a *alarm.Alarm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	a.ID = s.nextID
	a.CreatedAt, a.UpdatedAt = tue0800, tue0800
	c := *a
	s.alarms[a.ID] = &c
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, id int64) (*alarm.Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	a, ok := s.alarms[id]
	if !ok {
		return nil, idb.ErrAlarmNotFound
	}
	c := *a
	return &c, nil
}

func (s *fakeStore) Update(_ context.Context, a *alarm.Alarm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alarms[a.ID]; !ok {
		return idb.ErrAlarmNotFound
	}
	c := *a
	s.alarms[a.ID] = &c
	return nil
}

func (s *fakeStore) SetEnabled(_ context.Context, id int64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	a, ok := s.alarms[id]
	if !ok {
		return idb.ErrAlarmNotFound
	}
	a.Enabled = enabled
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alarms[id]; !ok {
		return idb.ErrAlarmNotFound
	}
	delete(s.alarms, id)
	return nil
}

func (s *fakeStore) list(onlyEnabled bool) []*alarm.Alarm {
	var out []*alarm.Alarm
	for _, a := range s.alarms {
		if onlyEnabled && !a.Enabled {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *fakeStore) ListAll(context.Context) ([]*alarm.Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.list(false), nil
}

func (s *fakeStore) ListEnabled(context.Context) ([]*alarm.Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.list(true), nil
}

func (s *fakeStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alarms), nil
}

func (s *fakeStore) stored(t *testing.T, id int64) *alarm.Alarm {
	t.Helper()
	a, err := s.GetByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []alert.Alert
}

func (n *fakeNotifier) Present(_ context.Context, a alert.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return nil
}

func (n *fakeNotifier) presented() []alert.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]alert.Alert(nil), n.alerts...)
}

// testEnv is an engine over fakes with a settable clock.
type testEnv struct {
	engine   *Engine
	store    *fakeStore
	facility *fakeFacility
	notifier *fakeNotifier

	mu  sync.Mutex
	now time.Time
}

func newTestEnv(t *testing.T, alarms ...*alarm.Alarm) *testEnv {
	t.Helper()
	env := newUnrecoveredEnv(alarms...)
	if _, err := env.engine.RecoverAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	return env
}

func newUnrecoveredEnv(alarms ...*alarm.Alarm) *testEnv {
	env := &testEnv{
		store:    newFakeStore(alarms...),
		facility: newFakeFacility(),
		notifier: &fakeNotifier{},
		now:      tue0800,
	}
	registry := NewRegistry(env.facility, time.Second, nullEntry())
	env.engine = NewEngine(env.store, registry, env.notifier, nullEntry(), time.UTC, 2)
	env.engine.Now = env.clock
	return env
}

func (env *testEnv) clock() time.Time {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.now
}

func (env *testEnv) setNow(t time.Time) {
	env.mu.Lock()
	env.now = t
	env.mu.Unlock()
}

func (env *testEnv) entry(t *testing.T, id int64) Entry {
	t.Helper()
	e, ok := env.engine.Registry().Lookup(id)
	if !ok {
		t.Fatalf("alarm %d has no registration", id)
	}
	return e
}

package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/evn/cleanops/internal/models"
	"go.uber.org/zap"
)

type fakeCamera struct {
	mu       sync.Mutex
	fail     error
	hold     chan struct{}
	seq      int
	live     map[StreamHandle]bool
	released []StreamHandle
}

func newFakeCamera() *fakeCamera {
	return &fakeCamera{live: make(map[StreamHandle]bool)}
}

// Hold задерживает следующие захваты, пока канал не закрыт.
func (f *fakeCamera) Hold() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hold = make(chan struct{})
	return f.hold
}

func (f *fakeCamera) Acquire(ctx context.Context) (StreamHandle, error) {
	f.mu.Lock()
	hold := f.hold
	f.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return "", f.fail
	}
	f.seq++
	h := StreamHandle(fmt.Sprintf("stream-%d", f.seq))
	f.live[h] = true
	return h, nil
}

func (f *fakeCamera) Release(h StreamHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.live, h)
	f.released = append(f.released, h)
	return nil
}

func (f *fakeCamera) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

func (f *fakeCamera) Released() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.released)
}

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{c: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) Tickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

func (c *fakeClock) Ticker(i int) *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickers[i]
}

type fakeTicker struct {
	c       chan time.Time
	stopped atomic.Bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }
func (t *fakeTicker) Stop()               { t.stopped.Store(true) }
func (t *fakeTicker) Stopped() bool       { return t.stopped.Load() }

// Tick доставляет один тик; false, если его никто не принял.
func (t *fakeTicker) Tick() bool {
	select {
	case t.c <- time.Now():
		return true
	case <-time.After(time.Second):
		return false
	}
}

type recordingPresenter struct {
	mu            sync.Mutex
	notifications []Notification
	summaries     []models.CleaningSummary
	states        int
}

func (p *recordingPresenter) Notify(n Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = append(p.notifications, n)
}

func (p *recordingPresenter) ShowCleaningSummary(s models.CleaningSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summaries = append(p.summaries, s)
}

func (p *recordingPresenter) StateChanged(Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states++
}

func (p *recordingPresenter) Notifications() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Notification(nil), p.notifications...)
}

func (p *recordingPresenter) LastNotification() Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.notifications) == 0 {
		return Notification{}
	}
	return p.notifications[len(p.notifications)-1]
}

func (p *recordingPresenter) Summaries() []models.CleaningSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.CleaningSummary(nil), p.summaries...)
}

type recordingStore struct {
	mu        sync.Mutex
	shifts    []models.Shift
	cleanings []models.Cleaning
}

func (s *recordingStore) PersistShift(ctx context.Context, sh models.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shifts = append(s.shifts, sh)
	return nil
}

func (s *recordingStore) PersistCleaning(ctx context.Context, c models.Cleaning) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanings = append(s.cleanings, c)
	return nil
}

func (s *recordingStore) Shifts() []models.Shift {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Shift(nil), s.shifts...)
}

func (s *recordingStore) Cleanings() []models.Cleaning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Cleaning(nil), s.cleanings...)
}

// blockingStore не отвечает, пока release не закрыт.
type blockingStore struct {
	recordingStore
	release chan struct{}
}

func (s *blockingStore) PersistShift(ctx context.Context, sh models.Shift) error {
	<-s.release
	return s.recordingStore.PersistShift(ctx, sh)
}

func (s *blockingStore) PersistCleaning(ctx context.Context, c models.Cleaning) error {
	<-s.release
	return s.recordingStore.PersistCleaning(ctx, c)
}

type stubLoader struct {
	shift    *models.Shift
	cleaning *models.Cleaning
	err      error
}

func (l stubLoader) LoadOpen(ctx context.Context, userID int) (*models.Shift, *models.Cleaning, error) {
	return l.shift, l.cleaning, l.err
}

type harness struct {
	ctrl      *Controller
	clock     *fakeClock
	camera    *fakeCamera
	presenter *recordingPresenter
	store     *recordingStore
	cancel    context.CancelFunc
}

func newHarness(t *testing.T, configure ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		clock:     newFakeClock(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)),
		camera:    newFakeCamera(),
		presenter: &recordingPresenter{},
		store:     &recordingStore{},
	}
	opts := Options{
		UserID:    7,
		UserName:  "anna",
		Clock:     h.clock,
		Camera:    h.camera,
		Presenter: h.presenter,
		Store:     h.store,
		Logger:    zap.NewNop(),
	}
	for _, fn := range configure {
		fn(&opts)
	}
	h.ctrl = NewController(opts)
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go h.ctrl.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.ctrl.Done()
	})
	return h
}

func code(t *testing.T, areaID, areaName string, kind PayloadKind) string {
	t.Helper()
	raw, err := EncodePayload(areaID, areaName, kind, time.Now())
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return raw
}

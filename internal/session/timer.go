package session

import "time"

// Clock - источник времени и тикеров. В тестах подменяется.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type systemClock struct{}

// SystemClock работает на time.Now и time.Ticker.
var SystemClock Clock = systemClock{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (t *systemTicker) C() <-chan time.Time { return t.t.C }
func (t *systemTicker) Stop()               { t.t.Stop() }

// Pausable - смена или уборка, к которой привязан таймер.
type Pausable interface {
	Accruing() bool
}

// AccrualTimer раз в интервал увеличивает счётчик секунд, пока цель
// активна и не на паузе. Тики доставляются через post в цикл событий
// контроллера и применяются там по одному.
//
// Attach, Detach и сами тики должны вызываться из одного цикла.
type AccrualTimer struct {
	clock    Clock
	interval time.Duration
	post     func(func()) bool

	gen  uint64
	stop chan struct{}
	ref  Pausable
	bump func()
}

func NewAccrualTimer(clock Clock, interval time.Duration, post func(func()) bool) *AccrualTimer {
	if interval <= 0 {
		interval = time.Second
	}
	return &AccrualTimer{clock: clock, interval: interval, post: post}
}

// Attach запускает новый тикер. Предыдущий останавливается.
func (t *AccrualTimer) Attach(ref Pausable, bump func()) {
	t.Detach()
	if ref == nil || !ref.Accruing() {
		return
	}

	t.gen++
	gen := t.gen
	stop := make(chan struct{})
	t.stop, t.ref, t.bump = stop, ref, bump

	ticker := t.clock.NewTicker(t.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
				if !t.post(func() { t.tick(gen) }) {
					return
				}
			}
		}
	}()
}

// Detach останавливает тикер; тики, уже стоящие в очереди, будут отброшены.
func (t *AccrualTimer) Detach() {
	if t.stop == nil {
		return
	}
	close(t.stop)
	t.stop, t.ref, t.bump = nil, nil, nil
}

func (t *AccrualTimer) Running() bool {
	return t.stop != nil
}

func (t *AccrualTimer) tick(gen uint64) {
	if t.stop == nil || gen != t.gen {
		return
	}
	if !t.ref.Accruing() {
		return
	}
	t.bump()
}

package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/evn/cleanops/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options - зависимости контроллера одного сотрудника.
type Options struct {
	UserID         int
	UserName       string
	Clock          Clock
	TickInterval   time.Duration
	PersistTimeout time.Duration
	Camera         CameraDevice
	Presenter      Presenter
	Store          Store
	Loader         Loader
	Logger         *zap.Logger
}

// Snapshot - состояние контроллера для слоя представления.
type Snapshot struct {
	UserID          int                  `json:"user_id"`
	Shift           *models.Shift        `json:"shift"`
	Cleaning        *models.Cleaning     `json:"cleaning"`
	Scanner         ScannerState         `json:"scanner"`
	Confirmation    *ConfirmationRequest `json:"confirmation,omitempty"`
	ShiftHistory    []models.Shift       `json:"shift_history"`
	CleaningHistory []models.Cleaning    `json:"cleaning_history"`
	ActiveStreams   int                  `json:"active_streams"`
}

// Controller управляет жизненным циклом смены и вложенных уборок одного
// сотрудника. Все операции, сканы, тики таймеров и подтверждения
// выполняются в одном цикле событий (Run) строго по очереди.
type Controller struct {
	userID         int
	userName       string
	clock          Clock
	persistTimeout time.Duration
	presenter      Presenter
	store          Store
	loader         Loader
	logger         *zap.Logger

	cameras       *CameraManager
	scanner       *Scanner
	gate          *ConfirmationGate
	router        *ScanRouter
	shiftTimer    *AccrualTimer
	cleaningTimer *AccrualTimer

	shift           *models.Shift
	cleaning        *models.Cleaning
	shiftHistory    []models.Shift
	cleaningHistory []models.Cleaning

	events   chan func()
	done     chan struct{}
	persistQ *persistQueue
}

func NewController(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Presenter == nil {
		opts.Presenter = nopPresenter{}
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 5 * time.Second
	}

	logger := opts.Logger.With(zap.Int("user_id", opts.UserID))
	c := &Controller{
		userID:         opts.UserID,
		userName:       opts.UserName,
		clock:          opts.Clock,
		persistTimeout: opts.PersistTimeout,
		presenter:      opts.Presenter,
		store:          opts.Store,
		loader:         opts.Loader,
		logger:         logger,
		gate:           NewConfirmationGate(),
		events:         make(chan func()),
		done:           make(chan struct{}),
		persistQ:       newPersistQueue(),
	}
	c.cameras = NewCameraManager(opts.Camera, logger)
	c.scanner = NewScanner(c.cameras, logger)
	c.router = NewScanRouter(c.scanner, c.complete, logger)
	c.shiftTimer = NewAccrualTimer(opts.Clock, opts.TickInterval, c.post)
	c.cleaningTimer = NewAccrualTimer(opts.Clock, opts.TickInterval, c.post)
	return c
}

// Run крутит цикл событий до отмены ctx. Перед первым событием
// поднимается незавершённая смена из хранилища. При выходе сканер
// закрывается, камера освобождается, таймеры останавливаются.
func (c *Controller) Run(ctx context.Context) {
	persistDone := make(chan struct{})
	go c.persistLoop(persistDone)

	c.restore(ctx)
	c.logger.Debug("session controller started")
	defer func() {
		c.teardown()
		close(c.done)
		c.persistQ.close()
		<-persistDone
		c.logger.Debug("session controller stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-c.events:
			fn()
		}
	}
}

// Done закрывается после остановки цикла.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// restore поднимает открытые смену и уборку сотрудника, чтобы после
// перезапуска сервиса не открыть вторую смену.
func (c *Controller) restore(ctx context.Context) {
	if c.loader == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.persistTimeout)
	defer cancel()

	shift, cleaning, err := c.loader.LoadOpen(ctx, c.userID)
	if err != nil {
		c.logger.Error("failed to restore open shift", zap.Error(err))
		return
	}
	if !shift.IsOpen() {
		return
	}
	c.shift = shift
	c.attachShiftTimer()
	if cleaning.IsOpen() && cleaning.ShiftID == shift.ID {
		if cleaning.Notes == nil {
			cleaning.Notes = []string{}
		}
		if cleaning.Images == nil {
			cleaning.Images = []string{}
		}
		c.cleaning = cleaning
		c.attachCleaningTimer()
	}
	c.logger.Info("open shift restored",
		zap.String("shift_id", shift.ID),
		zap.Bool("cleaning", c.cleaning != nil),
	)
}

func (c *Controller) StartShift(ctx context.Context) error {
	return c.request(ctx, ShiftStart)
}

func (c *Controller) EndShift(ctx context.Context, withScan bool) error {
	return c.request(ctx, ShiftEnd.WithScan(withScan))
}

func (c *Controller) StartCleaning(ctx context.Context) error {
	return c.request(ctx, CleaningStart)
}

func (c *Controller) EndCleaning(ctx context.Context, withScan bool) error {
	return c.request(ctx, CleaningEnd.WithScan(withScan))
}

// Scan передаёт сырую строку QR-кода в роутер. Возвращает false, если
// скан был отброшен.
func (c *Controller) Scan(raw string) (bool, error) {
	var handled bool
	err := c.do(func() {
		handled = c.router.Dispatch(raw)
		if handled {
			c.publishState()
		}
	})
	return handled, err
}

// CloseScanner отменяет ожидание скана без выполнения перехода.
func (c *Controller) CloseScanner() error {
	return c.do(func() {
		c.scanner.Close()
		c.publishState()
	})
}

// Confirm выполняет ожидающее действие. Непустой id должен совпадать
// с текущим запросом.
func (c *Controller) Confirm(id string) error {
	var result error
	err := c.do(func() {
		req, ok := c.gate.Pending()
		if !ok || (id != "" && id != req.ID) {
			result = c.reject(ErrNothingToConfirm)
			return
		}
		c.gate.Confirm()
		c.publishState()
	})
	if err != nil {
		return err
	}
	return result
}

func (c *Controller) Cancel(id string) error {
	var result error
	err := c.do(func() {
		req, ok := c.gate.Pending()
		if !ok || (id != "" && id != req.ID) {
			result = c.reject(ErrNothingToConfirm)
			return
		}
		c.gate.Cancel()
		c.publishState()
	})
	if err != nil {
		return err
	}
	return result
}

func (c *Controller) PauseShift() error {
	return c.run(func() error {
		if !c.shift.IsOpen() {
			return c.reject(ErrNoActiveShift)
		}
		if c.shift.Paused {
			return c.reject(ErrAlreadyPaused)
		}
		c.shift.Paused = true
		c.shiftTimer.Detach()
		c.persistShift(*c.shift)
		c.publishState()
		return nil
	})
}

func (c *Controller) ResumeShift() error {
	return c.run(func() error {
		if !c.shift.IsOpen() {
			return c.reject(ErrNoActiveShift)
		}
		if !c.shift.Paused {
			return c.reject(ErrNotPaused)
		}
		c.shift.Paused = false
		c.attachShiftTimer()
		c.persistShift(*c.shift)
		c.publishState()
		return nil
	})
}

func (c *Controller) PauseCleaning() error {
	return c.run(func() error {
		if !c.cleaning.IsOpen() {
			return c.reject(ErrNoActiveCleaning)
		}
		if c.cleaning.Paused {
			return c.reject(ErrAlreadyPaused)
		}
		c.cleaning.Paused = true
		c.cleaningTimer.Detach()
		c.persistCleaning(*c.cleaning)
		c.publishState()
		return nil
	})
}

func (c *Controller) ResumeCleaning() error {
	return c.run(func() error {
		if !c.cleaning.IsOpen() {
			return c.reject(ErrNoActiveCleaning)
		}
		if !c.cleaning.Paused {
			return c.reject(ErrNotPaused)
		}
		c.cleaning.Paused = false
		c.attachCleaningTimer()
		c.persistCleaning(*c.cleaning)
		c.publishState()
		return nil
	})
}

func (c *Controller) AddCleaningNote(note string) error {
	note = strings.TrimSpace(note)
	return c.run(func() error {
		if !c.cleaning.IsOpen() {
			return c.reject(ErrNoActiveCleaning)
		}
		if note == "" {
			return c.reject(ErrEmptyNote)
		}
		c.cleaning.Notes = append(c.cleaning.Notes, note)
		c.persistCleaning(*c.cleaning)
		c.publishState()
		return nil
	})
}

func (c *Controller) AttachCleaningImage(ref string) error {
	return c.run(func() error {
		if !c.cleaning.IsOpen() {
			return c.reject(ErrNoActiveCleaning)
		}
		c.cleaning.Images = append(c.cleaning.Images, ref)
		c.persistCleaning(*c.cleaning)
		c.publishState()
		return nil
	})
}

// ForceEnd закрывает открытую уборку и смену без скана и подтверждения.
// Используется администратором.
func (c *Controller) ForceEnd() (*models.Shift, error) {
	var closed *models.Shift
	err := c.run(func() error {
		if !c.shift.IsOpen() {
			return ErrNoActiveShift
		}
		c.scanner.Close()
		c.gate.Cancel()
		if c.cleaning.IsOpen() {
			c.finish(CleaningEnd, QRPayload{})
		}
		c.finish(ShiftEnd, QRPayload{})
		last := c.shiftHistory[len(c.shiftHistory)-1].Clone()
		closed = &last
		c.notify(Notification{
			Severity: SeverityWarning,
			Title:    "Shift closed by administrator",
			Body:     "Your shift was ended by an administrator",
		})
		c.publishState()
		return nil
	})
	return closed, err
}

func (c *Controller) State() (Snapshot, error) {
	var snap Snapshot
	err := c.do(func() { snap = c.snapshot() })
	return snap, err
}

// request проверяет переход и открывает сканер или окно подтверждения.
// Камера захватывается вне цикла событий: пока клиент отвечает, цикл
// продолжает обслуживать тики, State и CloseScanner.
func (c *Controller) request(ctx context.Context, t Transition) error {
	var (
		attempt uint64
		acquire bool
	)
	acqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := c.run(func() error {
		if err := c.validate(t); err != nil {
			return c.reject(err)
		}
		if !t.RequiresScan {
			c.askConfirmation(t)
			return nil
		}
		attempt, acquire = c.scanner.Begin(t.Purpose())
		if acquire {
			c.scanner.Awaiting(cancel)
		}
		c.publishState()
		return nil
	})
	if err != nil || !acquire {
		return err
	}

	h, acqErr := c.scanner.AcquireCamera(acqCtx)
	err = c.do(func() {
		if acqErr != nil {
			c.cameraFailed(attempt, acqErr)
			return
		}
		if c.scanner.Acquired(attempt, h) {
			c.publishState()
		}
	})
	if err != nil && acqErr == nil {
		c.cameras.Discard(h)
	}
	return err
}

// cameraFailed переводит переход, ради которого открывали сканер,
// в окно подтверждения.
func (c *Controller) cameraFailed(attempt uint64, err error) {
	purpose, ok := c.scanner.Abort(attempt)
	if !ok {
		return
	}
	t, ok := TransitionFor(purpose)
	if !ok {
		c.publishState()
		return
	}
	c.logger.Warn("scanner unavailable, falling back to confirmation",
		zap.String("transition", t.String()),
		zap.Error(err),
	)
	if verr := c.validate(t); verr != nil {
		c.publishState()
		return
	}
	c.notify(Notification{
		Severity: SeverityWarning,
		Title:    "Camera unavailable",
		Body:     "Scanning is unavailable, confirm to continue without a QR code",
	})
	c.askConfirmation(t)
}

// askConfirmation запоминает смену или уборку, для которой открыто окно.
// Если к моменту подтверждения цель сменилась, действие не выполняется.
func (c *Controller) askConfirmation(t Transition) {
	title, description := t.confirmation()
	subject := c.subjectID(t.Target)
	c.gate.Request(title, description, func() {
		if c.subjectID(t.Target) != subject {
			c.logger.Info("stale confirmation dropped",
				zap.String("transition", t.String()),
				zap.String("subject", subject),
			)
			c.notify(warningFor(ErrConfirmationExpired))
			return
		}
		if err := c.complete(t, DecodePayload("")); err != nil {
			c.logger.Info("confirmed transition rejected",
				zap.String("transition", t.String()),
				zap.Error(err),
			)
		}
	})
	c.publishState()
}

func (c *Controller) subjectID(target Target) string {
	switch target {
	case TargetShift:
		if c.shift != nil {
			return c.shift.ID
		}
	case TargetCleaning:
		if c.cleaning != nil {
			return c.cleaning.ID
		}
	}
	return ""
}

func (c *Controller) validate(t Transition) *UserActionError {
	switch {
	case t.Target == TargetShift && t.Kind == KindStart:
		if c.shift.IsOpen() {
			return ErrAlreadyActive
		}
	case t.Target == TargetShift && t.Kind == KindEnd:
		if !c.shift.IsOpen() {
			return ErrNoActiveShift
		}
		if c.cleaning.IsOpen() {
			return ErrCleaningInProgress
		}
	case t.Target == TargetCleaning && t.Kind == KindStart:
		if !c.shift.IsOpen() {
			return ErrNoActiveShift
		}
		if c.cleaning.IsOpen() {
			return ErrCleaningAlreadyActive
		}
	case t.Target == TargetCleaning && t.Kind == KindEnd:
		if !c.cleaning.IsOpen() {
			return ErrNoActiveCleaning
		}
	}
	return nil
}

// complete завершает переход после скана или подтверждения. Состояние
// проверяется повторно: пока ждали скан, оно могло измениться.
func (c *Controller) complete(t Transition, payload QRPayload) error {
	if err := c.validate(t); err != nil {
		return c.reject(err)
	}
	c.finish(t, payload)
	c.publishState()
	return nil
}

// finish применяет переход. Ожидающее подтверждение снимается: оно
// относилось к состоянию, которого больше нет.
func (c *Controller) finish(t Transition, payload QRPayload) {
	now := c.clock.Now()
	c.gate.Cancel()

	switch {
	case t.Target == TargetShift && t.Kind == KindStart:
		c.shift = &models.Shift{
			ID:        uuid.NewString(),
			UserID:    c.userID,
			AreaID:    payload.AreaID,
			AreaName:  payload.AreaName,
			StartedAt: now,
		}
		c.attachShiftTimer()
		c.persistShift(*c.shift)
		c.logger.Info("shift started",
			zap.String("shift_id", c.shift.ID),
			zap.String("area_id", payload.AreaID),
			zap.Bool("scanned", payload.Valid),
		)
		c.notify(Notification{
			Severity: SeveritySuccess,
			Title:    "Shift started",
			Body:     fmt.Sprintf("Shift started at %s", payload.AreaName),
		})

	case t.Target == TargetShift && t.Kind == KindEnd:
		c.shiftTimer.Detach()
		shift := c.shift
		shift.Close(now)
		c.shift = nil
		c.shiftHistory = append(c.shiftHistory, shift.Clone())
		c.persistShift(*shift)
		c.logger.Info("shift ended",
			zap.String("shift_id", shift.ID),
			zap.Int("worked_duration", shift.DurationSeconds),
			zap.Int("cleanings", shift.CleaningCount),
		)
		c.notify(Notification{
			Severity: SeveritySuccess,
			Title:    "Shift ended",
			Body:     "Worked time: " + models.FormatDuration(shift.DurationSeconds),
		})

	case t.Target == TargetCleaning && t.Kind == KindStart:
		c.cleaning = &models.Cleaning{
			ID:        uuid.NewString(),
			ShiftID:   c.shift.ID,
			UserID:    c.userID,
			AreaID:    payload.AreaID,
			AreaName:  payload.AreaName,
			StartedAt: now,
			Notes:     []string{},
			Images:    []string{},
		}
		c.attachCleaningTimer()
		c.persistCleaning(c.cleaning.Clone())
		c.logger.Info("cleaning started",
			zap.String("cleaning_id", c.cleaning.ID),
			zap.String("area_id", payload.AreaID),
		)
		c.notify(Notification{
			Severity: SeveritySuccess,
			Title:    "Cleaning started",
			Body:     "Cleaning " + payload.AreaName,
		})

	case t.Target == TargetCleaning && t.Kind == KindEnd:
		c.cleaningTimer.Detach()
		cleaning := c.cleaning
		cleaning.Close(now)
		c.cleaning = nil
		summary := cleaning.Summary()
		c.cleaningHistory = append(c.cleaningHistory, cleaning.Clone())
		if c.shift.IsOpen() {
			c.shift.CleaningCount++
			c.persistShift(*c.shift)
		}
		c.persistCleaning(cleaning.Clone())
		c.logger.Info("cleaning ended",
			zap.String("cleaning_id", cleaning.ID),
			zap.Int("duration", cleaning.DurationSeconds),
		)
		c.presenter.ShowCleaningSummary(summary)
		c.notify(Notification{
			Severity: SeveritySuccess,
			Title:    "Cleaning finished",
			Body:     fmt.Sprintf("%s cleaned in %s", summary.AreaName, summary.Duration),
		})
	}
}

func (c *Controller) attachShiftTimer() {
	shift := c.shift
	c.shiftTimer.Attach(shift, func() {
		shift.ElapsedSeconds++
		c.publishState()
	})
}

func (c *Controller) attachCleaningTimer() {
	cleaning := c.cleaning
	c.cleaningTimer.Attach(cleaning, func() {
		cleaning.ElapsedSeconds++
		c.publishState()
	})
}

func (c *Controller) reject(err *UserActionError) error {
	c.notify(warningFor(err))
	return err
}

func (c *Controller) notify(n Notification) {
	c.presenter.Notify(n)
}

func (c *Controller) publishState() {
	c.presenter.StateChanged(c.snapshot())
}

func (c *Controller) snapshot() Snapshot {
	snap := Snapshot{
		UserID:          c.userID,
		Scanner:         c.scanner.State(),
		ShiftHistory:    make([]models.Shift, 0, len(c.shiftHistory)),
		CleaningHistory: make([]models.Cleaning, 0, len(c.cleaningHistory)),
		ActiveStreams:   c.cameras.ActiveStreams(),
	}
	if c.shift != nil {
		s := c.shift.Clone()
		snap.Shift = &s
	}
	if c.cleaning != nil {
		cl := c.cleaning.Clone()
		snap.Cleaning = &cl
	}
	if req, ok := c.gate.Pending(); ok {
		snap.Confirmation = &req
	}
	for _, s := range c.shiftHistory {
		snap.ShiftHistory = append(snap.ShiftHistory, s.Clone())
	}
	for _, cl := range c.cleaningHistory {
		snap.CleaningHistory = append(snap.CleaningHistory, cl.Clone())
	}
	return snap
}

func (c *Controller) teardown() {
	c.scanner.Close()
	c.cameras.StopAllStreams()
	c.shiftTimer.Detach()
	c.cleaningTimer.Detach()
	c.gate.Cancel()
}

// do выполняет fn в цикле событий и ждёт завершения.
func (c *Controller) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case c.events <- func() {
		defer close(finished)
		fn()
	}:
	case <-c.done:
		return ErrControllerStopped
	}
	<-finished
	return nil
}

func (c *Controller) run(fn func() error) error {
	var result error
	if err := c.do(func() { result = fn() }); err != nil {
		return err
	}
	return result
}

// post ставит fn в очередь цикла, не дожидаясь выполнения.
func (c *Controller) post(fn func()) bool {
	select {
	case c.events <- fn:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) persistShift(s models.Shift) {
	if c.store == nil {
		return
	}
	s = s.Clone()
	c.persistQ.push(func(ctx context.Context) {
		if err := c.store.PersistShift(ctx, s); err != nil {
			c.logger.Error("failed to persist shift",
				zap.String("shift_id", s.ID),
				zap.Error(err),
			)
		}
	})
}

func (c *Controller) persistCleaning(cl models.Cleaning) {
	if c.store == nil {
		return
	}
	cl = cl.Clone()
	c.persistQ.push(func(ctx context.Context) {
		if err := c.store.PersistCleaning(ctx, cl); err != nil {
			c.logger.Error("failed to persist cleaning",
				zap.String("cleaning_id", cl.ID),
				zap.Error(err),
			)
		}
	})
}

// persistLoop пишет в хранилище по порядку, чтобы обновление смены не
// обогнало её создание.
func (c *Controller) persistLoop(done chan<- struct{}) {
	defer close(done)
	for {
		job, ok := c.persistQ.pop()
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.persistTimeout)
		job(ctx)
		cancel()
	}
}

// persistQueue - неограниченная FIFO-очередь записей. push никогда не
// блокирует цикл событий, даже если хранилище отвечает медленно.
type persistQueue struct {
	mu     sync.Mutex
	jobs   []func(ctx context.Context)
	closed bool
	wake   chan struct{}
}

func newPersistQueue() *persistQueue {
	return &persistQueue{wake: make(chan struct{}, 1)}
}

func (q *persistQueue) push(job func(ctx context.Context)) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	q.signal()
}

// pop ждёт следующую запись. После close отдаёт остаток очереди,
// затем возвращает false.
func (q *persistQueue) pop() (func(ctx context.Context), bool) {
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs[0] = nil
			q.jobs = q.jobs[1:]
			q.mu.Unlock()
			return job, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}
		<-q.wake
	}
}

func (q *persistQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *persistQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

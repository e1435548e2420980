package session

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Purpose - действие, ради которого сейчас открыт сканер.
type Purpose string

const (
	PurposeStartShift    Purpose = "startShift"
	PurposeEndShift      Purpose = "endShift"
	PurposeStartCleaning Purpose = "startCleaning"
	PurposeEndCleaning   Purpose = "endCleaning"
)

type ScannerState struct {
	Open      bool    `json:"open"`
	Acquiring bool    `json:"acquiring,omitempty"`
	Purpose   Purpose `json:"purpose,omitempty"`
}

// ScanTicket - право обработать ровно один скан в текущей сессии сканера.
type ScanTicket struct {
	Purpose Purpose
	token   string
}

// Scanner - состояние экрана сканирования. Камера захвачена тогда и
// только тогда, когда сканер открыт и захват завершён. Пока камера
// захватывается (Acquiring), сканы не принимаются.
//
// Все методы, кроме AcquireCamera, вызываются из цикла контроллера.
type Scanner struct {
	cameras *CameraManager
	logger  *zap.Logger

	open    bool
	ready   bool
	attempt uint64
	purpose Purpose
	token   string
	claimed bool
	cancel  context.CancelFunc
}

func NewScanner(cameras *CameraManager, logger *zap.Logger) *Scanner {
	return &Scanner{cameras: cameras, logger: logger}
}

// Begin открывает сканер для purpose. Если сканер уже открыт, цель
// заменяется (последняя запись побеждает) и выдаётся новый токен.
// acquire=true значит, что камеру нужно захватить вне цикла через
// AcquireCamera и сообщить результат в Acquired или Abort с тем же attempt.
func (s *Scanner) Begin(purpose Purpose) (attempt uint64, acquire bool) {
	if !s.open {
		s.cameras.StopAllStreams()
		s.open = true
		s.ready = false
		s.attempt++
		acquire = true
	} else if s.purpose != purpose {
		s.logger.Info("scanner purpose replaced",
			zap.String("from", string(s.purpose)),
			zap.String("to", string(purpose)),
		)
	}
	s.purpose = purpose
	s.token = uuid.NewString()
	s.claimed = false
	return s.attempt, acquire
}

// Awaiting запоминает отмену текущего захвата: Close прервёт ожидание.
func (s *Scanner) Awaiting(cancel context.CancelFunc) {
	s.cancel = cancel
}

// AcquireCamera ждёт устройство. Безопасно вызывать вне цикла.
func (s *Scanner) AcquireCamera(ctx context.Context) (StreamHandle, error) {
	return s.cameras.Open(ctx)
}

// Acquired принимает захваченный поток. Если попытка устарела (сканер
// закрыли или переоткрыли), поток сразу освобождается и возвращается false.
func (s *Scanner) Acquired(attempt uint64, h StreamHandle) bool {
	if !s.open || s.ready || attempt != s.attempt {
		s.logger.Debug("late camera stream released", zap.String("stream", string(h)))
		s.cameras.Discard(h)
		return false
	}
	s.cameras.Adopt(h)
	s.ready = true
	s.cancel = nil
	return true
}

// Abort закрывает сканер после неудачного захвата. Возвращает цель,
// ради которой он был открыт, если попытка ещё актуальна.
func (s *Scanner) Abort(attempt uint64) (Purpose, bool) {
	if !s.open || s.ready || attempt != s.attempt {
		return "", false
	}
	purpose := s.purpose
	s.Close()
	return purpose, true
}

// Close переводит сканер в Closed из любого состояния и всегда
// освобождает камеру. Токен становится недействительным, поэтому
// запоздавшие сканы отбрасываются.
func (s *Scanner) Close() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.open = false
	s.ready = false
	s.purpose = ""
	s.token = ""
	s.claimed = false
	s.cameras.StopAllStreams()
}

// Claim синхронно занимает токен текущей сессии.
func (s *Scanner) Claim() (ScanTicket, bool) {
	if !s.open || !s.ready || s.claimed {
		return ScanTicket{}, false
	}
	s.claimed = true
	return ScanTicket{Purpose: s.purpose, token: s.token}, true
}

// Finish завершает сессию, которой принадлежит билет.
func (s *Scanner) Finish(t ScanTicket) bool {
	if !s.open || t.token == "" || t.token != s.token {
		return false
	}
	s.Close()
	return true
}

func (s *Scanner) State() ScannerState {
	return ScannerState{Open: s.open, Acquiring: s.open && !s.ready, Purpose: s.purpose}
}

package session

import "go.uber.org/zap"

// ScanRouter направляет скан в завершение перехода по цели сканера.
// Повторные события одного физического скана отбрасываются: токен
// сканера занимается синхронно при первом событии.
type ScanRouter struct {
	scanner  *Scanner
	complete func(t Transition, payload QRPayload) error
	logger   *zap.Logger
}

func NewScanRouter(scanner *Scanner, complete func(Transition, QRPayload) error, logger *zap.Logger) *ScanRouter {
	return &ScanRouter{scanner: scanner, complete: complete, logger: logger}
}

// Dispatch возвращает false, если скан отброшен.
func (r *ScanRouter) Dispatch(raw string) bool {
	ticket, ok := r.scanner.Claim()
	if !ok {
		r.logger.Debug("scan dropped: scanner closed or already processing")
		return false
	}
	defer r.scanner.Finish(ticket)

	payload := DecodePayload(raw)
	t, ok := TransitionFor(ticket.Purpose)
	if !ok {
		r.logger.Warn("scan for unknown purpose", zap.String("purpose", string(ticket.Purpose)))
		return false
	}

	if !payload.Valid {
		r.logger.Info("unrecognised QR payload, using fallback area",
			zap.String("area_id", payload.AreaID),
			zap.String("purpose", string(ticket.Purpose)),
		)
	}

	if err := r.complete(t, payload); err != nil {
		r.logger.Info("scan completion rejected",
			zap.String("transition", t.String()),
			zap.Error(err),
		)
	}
	return true
}

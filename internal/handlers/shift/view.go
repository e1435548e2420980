package shift

import "github.com/evn/cleanops/internal/session"

const (
	ViewCleanings = "/dashboard?tab=cleanings"
	ViewShift     = "/dashboard?tab=shift"
	ViewHistory   = "/dashboard?tab=history"
)

// NextView - вкладка, которую клиент должен открыть после перехода.
func NextView(s session.Snapshot) string {
	switch {
	case s.Cleaning.IsOpen():
		return ViewCleanings
	case s.Shift.IsOpen():
		return ViewShift
	default:
		return ViewHistory
	}
}

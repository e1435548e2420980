package session

import "errors"

// UserActionError - ошибка действия пользователя. Всегда восстановима:
// показывается как предупреждение, состояние не меняется.
type UserActionError struct {
	Code    string `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (e *UserActionError) Error() string {
	return e.Message
}

var (
	ErrAlreadyActive = &UserActionError{
		Code:    "already_active",
		Title:   "Shift already active",
		Message: "A shift is already in progress",
	}
	ErrNoActiveShift = &UserActionError{
		Code:    "no_active_shift",
		Title:   "No active shift",
		Message: "Start a shift first",
	}
	ErrCleaningInProgress = &UserActionError{
		Code:    "cleaning_in_progress",
		Title:   "Cleaning in progress",
		Message: "End the current cleaning before ending the shift",
	}
	ErrCleaningAlreadyActive = &UserActionError{
		Code:    "cleaning_already_active",
		Title:   "Cleaning already active",
		Message: "A cleaning is already in progress",
	}
	ErrNoActiveCleaning = &UserActionError{
		Code:    "no_active_cleaning",
		Title:   "No active cleaning",
		Message: "There is no cleaning in progress",
	}
	ErrNothingToConfirm = &UserActionError{
		Code:    "nothing_to_confirm",
		Title:   "Nothing to confirm",
		Message: "There is no pending action to confirm",
	}
	ErrConfirmationExpired = &UserActionError{
		Code:    "confirmation_expired",
		Title:   "Confirmation expired",
		Message: "The session changed since this action was requested",
	}
	ErrAlreadyPaused = &UserActionError{
		Code:    "already_paused",
		Title:   "Already paused",
		Message: "The timer is already paused",
	}
	ErrNotPaused = &UserActionError{
		Code:    "not_paused",
		Title:   "Not paused",
		Message: "The timer is not paused",
	}
	ErrEmptyNote = &UserActionError{
		Code:    "empty_note",
		Title:   "Empty note",
		Message: "Note text is required",
	}
)

// ErrControllerStopped возвращается после остановки цикла событий.
var ErrControllerStopped = errors.New("session controller stopped")

// AsUserActionError извлекает UserActionError из цепочки ошибок.
func AsUserActionError(err error) (*UserActionError, bool) {
	var uae *UserActionError
	if errors.As(err, &uae) {
		return uae, true
	}
	return nil, false
}

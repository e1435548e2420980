package session

import (
	"context"

	"github.com/evn/cleanops/internal/models"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification - короткое сообщение для всплывающего уведомления.
type Notification struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
}

func warningFor(err *UserActionError) Notification {
	return Notification{Severity: SeverityWarning, Title: err.Title, Body: err.Message}
}

// Presenter - слой представления. Ядро только отдаёт ему данные.
type Presenter interface {
	Notify(n Notification)
	ShowCleaningSummary(s models.CleaningSummary)
	StateChanged(s Snapshot)
}

// Store - внешнее хранилище смен и уборок. Вызывается без ожидания результата.
type Store interface {
	PersistShift(ctx context.Context, s models.Shift) error
	PersistCleaning(ctx context.Context, c models.Cleaning) error
}

// Loader читает незавершённые смену и уборку сотрудника. nil без ошибки
// значит, что открытой записи нет.
type Loader interface {
	LoadOpen(ctx context.Context, userID int) (*models.Shift, *models.Cleaning, error)
}

type nopPresenter struct{}

func (nopPresenter) Notify(Notification)                        {}
func (nopPresenter) ShowCleaningSummary(models.CleaningSummary) {}
func (nopPresenter) StateChanged(Snapshot)                      {}

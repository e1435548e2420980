package realtime

import (
	"github.com/evn/cleanops/internal/models"
	"github.com/evn/cleanops/internal/session"
)

// UserPresenter доставляет уведомления и состояние контроллера во все
// вкладки сотрудника.
type UserPresenter struct {
	hub    *Hub
	userID int
}

func (h *Hub) Presenter(userID int) *UserPresenter {
	return &UserPresenter{hub: h, userID: userID}
}

func (p *UserPresenter) Notify(n session.Notification) {
	p.hub.SendToUser(p.userID, MsgNotification, n)
}

func (p *UserPresenter) ShowCleaningSummary(s models.CleaningSummary) {
	p.hub.SendToUser(p.userID, MsgCleaningSummary, s)
}

func (p *UserPresenter) StateChanged(s session.Snapshot) {
	p.hub.SendToUser(p.userID, MsgState, s)
}

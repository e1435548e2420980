package session

import "github.com/google/uuid"

// ConfirmationRequest - видимая часть запроса на подтверждение.
type ConfirmationRequest struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type pendingConfirmation struct {
	request ConfirmationRequest
	action  func()
}

// ConfirmationGate хранит не более одного ожидающего действия.
// Действие выполняется максимум один раз и только через Confirm.
type ConfirmationGate struct {
	pending *pendingConfirmation
}

func NewConfirmationGate() *ConfirmationGate {
	return &ConfirmationGate{}
}

// Request заменяет любой неподтверждённый предыдущий запрос.
func (g *ConfirmationGate) Request(title, description string, action func()) ConfirmationRequest {
	req := ConfirmationRequest{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
	}
	g.pending = &pendingConfirmation{request: req, action: action}
	return req
}

func (g *ConfirmationGate) Confirm() bool {
	p := g.pending
	if p == nil {
		return false
	}
	g.pending = nil
	if p.action != nil {
		p.action()
	}
	return true
}

func (g *ConfirmationGate) Cancel() bool {
	if g.pending == nil {
		return false
	}
	g.pending = nil
	return true
}

func (g *ConfirmationGate) Pending() (ConfirmationRequest, bool) {
	if g.pending == nil {
		return ConfirmationRequest{}, false
	}
	return g.pending.request, true
}

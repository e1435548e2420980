// models/shift.go
package models

import "time"

// Shift - непрерывный рабочий период сотрудника.
type Shift struct {
	ID              string     `json:"id"`
	UserID          int        `json:"user_id"`
	AreaID          string     `json:"area_id"`
	AreaName        string     `json:"area_name"`
	StartedAt       time.Time  `json:"start_time"`
	EndedAt         *time.Time `json:"end_time,omitempty"`
	ElapsedSeconds  int        `json:"elapsed_seconds"`
	DurationSeconds int        `json:"worked_duration"`
	Paused          bool       `json:"paused"`
	CleaningCount   int        `json:"cleaning_count"`
}

// IsOpen - смена ещё не завершена.
func (s *Shift) IsOpen() bool {
	return s != nil && s.EndedAt == nil
}

// Accruing - таймер должен начислять секунды.
func (s *Shift) Accruing() bool {
	return s.IsOpen() && !s.Paused
}

// Close фиксирует время окончания и итоговую длительность по меткам времени.
func (s *Shift) Close(at time.Time) {
	s.EndedAt = &at
	s.DurationSeconds = elapsedBetween(s.StartedAt, at)
	s.Paused = false
}

// Clone возвращает независимую копию.
func (s Shift) Clone() Shift {
	if s.EndedAt != nil {
		end := *s.EndedAt
		s.EndedAt = &end
	}
	return s
}

// ActiveShift - запись о текущей смене для админской панели.
type ActiveShift struct {
	ShiftID       string    `json:"shift_id"`
	UserID        int       `json:"user_id"`
	Username      string    `json:"username"`
	AreaName      string    `json:"area_name"`
	StartTime     time.Time `json:"start_time"`
	Paused        bool      `json:"paused"`
	CleaningCount int       `json:"cleaning_count"`
	CleaningArea  string    `json:"cleaning_area,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EndedShift - завершённая смена с именем сотрудника.
type EndedShift struct {
	ID              string    `json:"id"`
	UserID          int       `json:"user_id"`
	Username        string    `json:"username"`
	AreaName        string    `json:"area_name"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds int       `json:"worked_duration"`
	WorkedTime      string    `json:"worked_time"`
	CleaningCount   int       `json:"cleaning_count"`
}

func elapsedBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from) / time.Second)
}

// models/cleaning.go
package models

import "time"

// Cleaning - уборка одной зоны внутри смены.
type Cleaning struct {
	ID              string     `json:"id"`
	ShiftID         string     `json:"shift_id"`
	UserID          int        `json:"user_id"`
	AreaID          string     `json:"area_id"`
	AreaName        string     `json:"area_name"`
	StartedAt       time.Time  `json:"start_time"`
	EndedAt         *time.Time `json:"end_time,omitempty"`
	ElapsedSeconds  int        `json:"elapsed_seconds"`
	DurationSeconds int        `json:"duration"`
	Paused          bool       `json:"paused"`
	Notes           []string   `json:"notes"`
	Images          []string   `json:"images"`
}

func (c *Cleaning) IsOpen() bool {
	return c != nil && c.EndedAt == nil
}

func (c *Cleaning) Accruing() bool {
	return c.IsOpen() && !c.Paused
}

func (c *Cleaning) Close(at time.Time) {
	c.EndedAt = &at
	c.DurationSeconds = elapsedBetween(c.StartedAt, at)
	c.Paused = false
}

// Clone копирует уборку вместе со срезами заметок и фото.
func (c Cleaning) Clone() Cleaning {
	if c.EndedAt != nil {
		end := *c.EndedAt
		c.EndedAt = &end
	}
	c.Notes = append([]string(nil), c.Notes...)
	c.Images = append([]string(nil), c.Images...)
	return c
}

// Summary строит итоговую карточку завершённой уборки.
func (c *Cleaning) Summary() CleaningSummary {
	s := CleaningSummary{
		CleaningID:      c.ID,
		AreaID:          c.AreaID,
		AreaName:        c.AreaName,
		StartedAt:       c.StartedAt,
		DurationSeconds: c.DurationSeconds,
		Duration:        FormatDuration(c.DurationSeconds),
		Notes:           append([]string{}, c.Notes...),
		Images:          append([]string{}, c.Images...),
	}
	if c.EndedAt != nil {
		s.EndedAt = *c.EndedAt
	}
	return s
}

// CleaningSummary отдаётся слою представления при завершении уборки.
type CleaningSummary struct {
	CleaningID      string    `json:"cleaning_id"`
	AreaID          string    `json:"area_id"`
	AreaName        string    `json:"area_name"`
	StartedAt       time.Time `json:"start_time"`
	EndedAt         time.Time `json:"end_time"`
	Duration        string    `json:"duration"`
	DurationSeconds int       `json:"duration_seconds"`
	Notes           []string  `json:"notes"`
	Images          []string  `json:"images"`
}

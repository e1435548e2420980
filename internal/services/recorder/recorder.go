package recorder

import (
	"context"
	"fmt"

	"github.com/evn/cleanops/internal/models"
	"go.uber.org/zap"
)

type ShiftSaver interface {
	SaveShift(ctx context.Context, s models.Shift) error
	SaveCleaning(ctx context.Context, c models.Cleaning) error
}

type ActivityTracker interface {
	MarkActive(ctx context.Context, shift models.ActiveShift) error
	MarkEnded(ctx context.Context, userID int) error
	SetCleaning(ctx context.Context, userID int, areaName string) error
}

// Recorder сохраняет смены и уборки сотрудника: сначала в PostgreSQL,
// затем обновляет оперативный список активных смен в Redis.
type Recorder struct {
	repo     ShiftSaver
	activity ActivityTracker
	user     models.User
	logger   *zap.Logger
	onChange func()
}

func New(repo ShiftSaver, activity ActivityTracker, user models.User, logger *zap.Logger) *Recorder {
	return &Recorder{
		repo:     repo,
		activity: activity,
		user:     user,
		logger:   logger.With(zap.Int("user_id", user.ID)),
	}
}

// OnChange задаёт колбэк, вызываемый после каждого изменения активности.
func (r *Recorder) OnChange(fn func()) *Recorder {
	r.onChange = fn
	return r
}

func (r *Recorder) PersistShift(ctx context.Context, s models.Shift) error {
	if err := r.repo.SaveShift(ctx, s); err != nil {
		return err
	}

	var err error
	if s.IsOpen() {
		err = r.activity.MarkActive(ctx, models.ActiveShift{
			ShiftID:       s.ID,
			UserID:        s.UserID,
			Username:      r.user.Username,
			AreaName:      s.AreaName,
			StartTime:     s.StartedAt,
			Paused:        s.Paused,
			CleaningCount: s.CleaningCount,
		})
	} else {
		err = r.activity.MarkEnded(ctx, s.UserID)
	}
	if err != nil {
		return fmt.Errorf("update activity for shift %s: %w", s.ID, err)
	}
	r.changed()
	return nil
}

func (r *Recorder) PersistCleaning(ctx context.Context, c models.Cleaning) error {
	if err := r.repo.SaveCleaning(ctx, c); err != nil {
		return err
	}

	area := ""
	if c.IsOpen() {
		area = c.AreaName
	}
	if err := r.activity.SetCleaning(ctx, c.UserID, area); err != nil {
		r.logger.Warn("failed to update cleaning activity",
			zap.String("cleaning_id", c.ID),
			zap.Error(err),
		)
		return nil
	}
	r.changed()
	return nil
}

func (r *Recorder) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}

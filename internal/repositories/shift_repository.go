// repositories/shift_repository.go

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/evn/cleanops/internal/models"
	"github.com/lib/pq"
)

var ErrNoOpenShift = errors.New("no open shift")

type ShiftRepository struct {
	db *sql.DB
}

func NewShiftRepository(db *sql.DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

// SaveShift вставляет смену или обновляет её изменяемые поля.
func (r *ShiftRepository) SaveShift(ctx context.Context, s models.Shift) error {
	query := `
		INSERT INTO shifts (id, user_id, area_id, area_name, started_at, ended_at,
			elapsed_seconds, duration_seconds, paused, cleaning_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (id) DO UPDATE SET
			ended_at = EXCLUDED.ended_at,
			elapsed_seconds = EXCLUDED.elapsed_seconds,
			duration_seconds = EXCLUDED.duration_seconds,
			paused = EXCLUDED.paused,
			cleaning_count = EXCLUDED.cleaning_count,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.UserID,
		s.AreaID,
		s.AreaName,
		s.StartedAt,
		s.EndedAt,
		s.ElapsedSeconds,
		s.DurationSeconds,
		s.Paused,
		s.CleaningCount,
	)
	if err != nil {
		return fmt.Errorf("save shift %s: %w", s.ID, err)
	}
	return nil
}

func (r *ShiftRepository) SaveCleaning(ctx context.Context, c models.Cleaning) error {
	query := `
		INSERT INTO cleanings (id, shift_id, user_id, area_id, area_name, started_at, ended_at,
			elapsed_seconds, duration_seconds, paused, notes, images, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (id) DO UPDATE SET
			ended_at = EXCLUDED.ended_at,
			elapsed_seconds = EXCLUDED.elapsed_seconds,
			duration_seconds = EXCLUDED.duration_seconds,
			paused = EXCLUDED.paused,
			notes = EXCLUDED.notes,
			images = EXCLUDED.images,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		c.ShiftID,
		c.UserID,
		c.AreaID,
		c.AreaName,
		c.StartedAt,
		c.EndedAt,
		c.ElapsedSeconds,
		c.DurationSeconds,
		c.Paused,
		pq.Array(nonNil(c.Notes)),
		pq.Array(nonNil(c.Images)),
	)
	if err != nil {
		return fmt.Errorf("save cleaning %s: %w", c.ID, err)
	}
	return nil
}

// ListShiftsByUser возвращает последние смены сотрудника, новые первыми.
func (r *ShiftRepository) ListShiftsByUser(ctx context.Context, userID, limit int) ([]models.Shift, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, area_id, area_name, started_at, ended_at,
			elapsed_seconds, duration_seconds, paused, cleaning_count
		FROM shifts
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.Shift{}
	for rows.Next() {
		var s models.Shift
		var ended sql.NullTime
		if err := rows.Scan(&s.ID, &s.UserID, &s.AreaID, &s.AreaName, &s.StartedAt, &ended,
			&s.ElapsedSeconds, &s.DurationSeconds, &s.Paused, &s.CleaningCount); err != nil {
			return nil, err
		}
		if ended.Valid {
			s.EndedAt = &ended.Time
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// ListCleaningsByShift возвращает уборки смены. Чужие смены не видны.
func (r *ShiftRepository) ListCleaningsByShift(ctx context.Context, userID int, shiftID string) ([]models.Cleaning, error) {
	query := `
		SELECT id, shift_id, user_id, area_id, area_name, started_at, ended_at,
			elapsed_seconds, duration_seconds, paused, notes, images
		FROM cleanings
		WHERE shift_id = $1 AND user_id = $2
		ORDER BY started_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, shiftID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.Cleaning{}
	for rows.Next() {
		var c models.Cleaning
		var ended sql.NullTime
		if err := rows.Scan(&c.ID, &c.ShiftID, &c.UserID, &c.AreaID, &c.AreaName, &c.StartedAt, &ended,
			&c.ElapsedSeconds, &c.DurationSeconds, &c.Paused,
			pq.Array(&c.Notes), pq.Array(&c.Images)); err != nil {
			return nil, err
		}
		if ended.Valid {
			c.EndedAt = &ended.Time
		}
		c.Notes = nonNil(c.Notes)
		c.Images = nonNil(c.Images)
		result = append(result, c)
	}
	return result, rows.Err()
}

// ListEndedShifts возвращает смены, завершённые в интервале [from, to).
func (r *ShiftRepository) ListEndedShifts(ctx context.Context, from, to time.Time) ([]models.EndedShift, error) {
	query := `
		SELECT s.id, s.user_id, u.username, s.area_name, s.started_at, s.ended_at,
			s.duration_seconds, s.cleaning_count
		FROM shifts s
		JOIN users u ON s.user_id = u.id
		WHERE s.ended_at >= $1 AND s.ended_at < $2
		ORDER BY s.ended_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.EndedShift{}
	for rows.Next() {
		var e models.EndedShift
		if err := rows.Scan(&e.ID, &e.UserID, &e.Username, &e.AreaName, &e.StartTime, &e.EndTime,
			&e.DurationSeconds, &e.CleaningCount); err != nil {
			return nil, err
		}
		e.WorkedTime = models.FormatDuration(e.DurationSeconds)
		result = append(result, e)
	}
	return result, rows.Err()
}

// LoadOpen возвращает незавершённую смену сотрудника и её открытую уборку.
// Если открытой смены нет, оба значения nil.
func (r *ShiftRepository) LoadOpen(ctx context.Context, userID int) (*models.Shift, *models.Cleaning, error) {
	var s models.Shift
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, area_id, area_name, started_at,
			elapsed_seconds, paused, cleaning_count
		FROM shifts
		WHERE user_id = $1 AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`, userID).Scan(&s.ID, &s.UserID, &s.AreaID, &s.AreaName, &s.StartedAt,
		&s.ElapsedSeconds, &s.Paused, &s.CleaningCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load open shift: %w", err)
	}

	var c models.Cleaning
	err = r.db.QueryRowContext(ctx, `
		SELECT id, shift_id, user_id, area_id, area_name, started_at,
			elapsed_seconds, paused, notes, images
		FROM cleanings
		WHERE shift_id = $1 AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`, s.ID).Scan(&c.ID, &c.ShiftID, &c.UserID, &c.AreaID, &c.AreaName, &c.StartedAt,
		&c.ElapsedSeconds, &c.Paused, pq.Array(&c.Notes), pq.Array(&c.Images))
	if errors.Is(err, sql.ErrNoRows) {
		return &s, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load open cleaning: %w", err)
	}
	c.Notes = nonNil(c.Notes)
	c.Images = nonNil(c.Images)
	return &s, &c, nil
}

// CloseOpenShift закрывает в базе открытую смену сотрудника и её уборки.
// Используется, когда у сотрудника нет живого контроллера.
func (r *ShiftRepository) CloseOpenShift(ctx context.Context, userID int, at time.Time) (*models.Shift, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE cleanings
		SET ended_at = $2,
			duration_seconds = GREATEST(0, EXTRACT(EPOCH FROM ($2 - started_at))::int),
			paused = FALSE,
			updated_at = NOW()
		WHERE user_id = $1 AND ended_at IS NULL
	`, userID, at)
	if err != nil {
		return nil, fmt.Errorf("close open cleanings: %w", err)
	}

	var s models.Shift
	err = tx.QueryRowContext(ctx, `
		UPDATE shifts
		SET ended_at = $2,
			duration_seconds = GREATEST(0, EXTRACT(EPOCH FROM ($2 - started_at))::int),
			paused = FALSE,
			updated_at = NOW()
		WHERE user_id = $1 AND ended_at IS NULL
		RETURNING id, user_id, area_id, area_name, started_at, duration_seconds, cleaning_count
	`, userID, at).Scan(&s.ID, &s.UserID, &s.AreaID, &s.AreaName, &s.StartedAt, &s.DurationSeconds, &s.CleaningCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoOpenShift
	}
	if err != nil {
		return nil, fmt.Errorf("close open shift: %w", err)
	}
	s.EndedAt = &at

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &s, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

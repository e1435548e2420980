// services/activity/store.go
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/evn/cleanops/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	activeSetKey    = "active_shifts"
	activeKeyPrefix = "active_shift:"
)

// Store - оперативный список открытых смен для админской панели.
// Каждая смена лежит в отдельном ключе с TTL, множество active_shifts
// служит индексом; ключи, у которых истёк TTL, вычищаются при чтении.
type Store struct {
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 16 * time.Hour
	}
	return &Store{redis: client, ttl: ttl, now: time.Now}
}

func activeKey(userID int) string {
	return activeKeyPrefix + strconv.Itoa(userID)
}

// MarkActive записывает или обновляет открытую смену.
func (s *Store) MarkActive(ctx context.Context, shift models.ActiveShift) error {
	shift.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(shift)
	if err != nil {
		return err
	}

	member := strconv.Itoa(shift.UserID)
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, activeKey(shift.UserID), data, s.ttl)
	pipe.SAdd(ctx, activeSetKey, member)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark shift active: %w", err)
	}
	return nil
}

// SetCleaning обновляет зону текущей уборки; пустая строка - уборки нет.
func (s *Store) SetCleaning(ctx context.Context, userID int, areaName string) error {
	shift, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if shift == nil {
		return nil
	}
	shift.CleaningArea = areaName
	return s.MarkActive(ctx, *shift)
}

func (s *Store) MarkEnded(ctx context.Context, userID int) error {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, activeKey(userID))
	pipe.SRem(ctx, activeSetKey, strconv.Itoa(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark shift ended: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID int) (*models.ActiveShift, error) {
	data, err := s.redis.Get(ctx, activeKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var shift models.ActiveShift
	if err := json.Unmarshal(data, &shift); err != nil {
		return nil, fmt.Errorf("decode active shift %d: %w", userID, err)
	}
	return &shift, nil
}

// List возвращает открытые смены, самые ранние первыми.
func (s *Store) List(ctx context.Context) ([]models.ActiveShift, error) {
	members, err := s.redis.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return nil, err
	}

	result := []models.ActiveShift{}
	var stale []interface{}
	for _, member := range members {
		userID, err := strconv.Atoi(member)
		if err != nil {
			stale = append(stale, member)
			continue
		}
		shift, err := s.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if shift == nil {
			stale = append(stale, member)
			continue
		}
		result = append(result, *shift)
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, activeSetKey, stale...).Err(); err != nil {
			return nil, err
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, nil
}

// Prune убирает из индекса смены, чьи ключи истекли. Возвращает число
// удалённых записей.
func (s *Store) Prune(ctx context.Context) (int, error) {
	members, err := s.redis.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, member := range members {
		userID, convErr := strconv.Atoi(member)
		if convErr == nil {
			n, err := s.redis.Exists(ctx, activeKey(userID)).Result()
			if err != nil {
				return removed, err
			}
			if n > 0 {
				continue
			}
		}
		if err := s.redis.SRem(ctx, activeSetKey, member).Err(); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

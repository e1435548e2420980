package activity

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/evn/cleanops/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, time.Hour), mr
}

func TestMarkActiveAndList(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.MarkActive(ctx, models.ActiveShift{ShiftID: "b", UserID: 2, Username: "oleg", StartTime: base.Add(time.Hour)}))
	require.NoError(t, s.MarkActive(ctx, models.ActiveShift{ShiftID: "a", UserID: 1, Username: "anna", StartTime: base}))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "anna", list[0].Username)
	assert.Equal(t, "oleg", list[1].Username)
	assert.False(t, list[0].UpdatedAt.IsZero())
}

func TestSetCleaning(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetCleaning(ctx, 1, "Lobby"), "no active shift is not an error")

	require.NoError(t, s.MarkActive(ctx, models.ActiveShift{ShiftID: "a", UserID: 1}))
	require.NoError(t, s.SetCleaning(ctx, 1, "Lobby"))

	got, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Lobby", got.CleaningArea)

	require.NoError(t, s.SetCleaning(ctx, 1, ""))
	got, err = s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got.CleaningArea)
}

func TestMarkEnded(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.MarkActive(ctx, models.ActiveShift{ShiftID: "a", UserID: 1}))
	require.NoError(t, s.MarkEnded(ctx, 1))

	assert.False(t, mr.Exists("active_shift:1"))
	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListDropsExpired(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.MarkActive(ctx, models.ActiveShift{ShiftID: "a", UserID: 1}))
	mr.FastForward(2 * time.Hour)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.False(t, mr.Exists(activeSetKey))
}

func TestPrune(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.MarkActive(ctx, models.ActiveShift{ShiftID: "a", UserID: 1}))
	require.NoError(t, s.MarkActive(ctx, models.ActiveShift{ShiftID: "b", UserID: 2}))
	mr.SetTTL("active_shift:1", time.Minute)
	mr.FastForward(2 * time.Minute)
	_, err := mr.SAdd(activeSetKey, "garbage")
	require.NoError(t, err)

	removed, err := s.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].UserID)
}

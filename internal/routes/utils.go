package routes

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/evn/cleanops/internal/services/activity"
	"go.uber.org/zap"
)

func EnsureUploadDirs(root string) error {
	dirs := []string{
		filepath.Join(root, "cleanings"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// ActivitySweepLoop периодически убирает из Redis истёкшие активные смены
// и, если что-то удалено, рассылает админам свежий список.
func ActivitySweepLoop(ctx context.Context, store *activity.Store, interval time.Duration, publish func(), logger *zap.Logger) {
	logger.Info("activity sweep started", zap.Duration("interval", interval))
	sweep := func() {
		count, err := store.Prune(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("activity sweep failed", zap.Error(err))
			}
			return
		}
		if count > 0 {
			logger.Info("activity sweep removed expired shifts", zap.Int("count", count))
			publish()
		}
	}

	sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

package session

import (
	"context"
	"sync"

	"github.com/evn/cleanops/internal/models"
	"go.uber.org/zap"
)

// OptionsFunc собирает зависимости контроллера для конкретного сотрудника.
type OptionsFunc func(user models.User) Options

// Registry хранит по одному контроллеру на сотрудника. Контроллеры
// создаются при первом обращении и живут до Shutdown.
type Registry struct {
	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	controllers map[int]*Controller
	build       OptionsFunc
	logger      *zap.Logger
}

func NewRegistry(ctx context.Context, build OptionsFunc, logger *zap.Logger) *Registry {
	ctx, cancel := context.WithCancel(ctx)
	return &Registry{
		ctx:         ctx,
		cancel:      cancel,
		controllers: make(map[int]*Controller),
		build:       build,
		logger:      logger,
	}
}

// Get возвращает контроллер сотрудника, запуская его при необходимости.
func (r *Registry) Get(user models.User) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx.Err() != nil {
		return nil, ErrControllerStopped
	}
	if c, ok := r.controllers[user.ID]; ok {
		return c, nil
	}

	opts := r.build(user)
	opts.UserID = user.ID
	if opts.UserName == "" {
		opts.UserName = user.Username
	}
	c := NewController(opts)
	r.controllers[user.ID] = c

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		c.Run(r.ctx)
	}()

	r.logger.Info("session controller created", zap.Int("user_id", user.ID))
	return c, nil
}

// Lookup не создаёт контроллер.
func (r *Registry) Lookup(userID int) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controllers[userID]
	return c, ok
}

// Shutdown останавливает все контроллеры и ждёт освобождения ресурсов.
func (r *Registry) Shutdown() {
	r.cancel()
	r.wg.Wait()
	r.logger.Info("session controllers stopped")
}

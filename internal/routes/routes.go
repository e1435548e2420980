package routes

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/evn/cleanops/config"
	adminHandlers "github.com/evn/cleanops/internal/handlers/admin"
	authHandlers "github.com/evn/cleanops/internal/handlers/auth"
	shiftHandlers "github.com/evn/cleanops/internal/handlers/shift"
	wsHandlers "github.com/evn/cleanops/internal/handlers/ws"
	"github.com/evn/cleanops/internal/middleware"
	"github.com/evn/cleanops/internal/models"
	"github.com/evn/cleanops/internal/pkg/response"
	"github.com/evn/cleanops/internal/repositories"
	"github.com/evn/cleanops/internal/services/activity"
	authService "github.com/evn/cleanops/internal/services/auth"
	"github.com/evn/cleanops/internal/services/realtime"
	"github.com/evn/cleanops/internal/services/recorder"
	"github.com/evn/cleanops/internal/session"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App - собранное приложение: маршрутизатор и фоновые компоненты,
// которыми управляет main.
type App struct {
	Router   *chi.Mux
	Hub      *realtime.Hub
	Registry *session.Registry
	Activity *activity.Store
	// PublishActivity рассылает админам текущий список активных смен.
	PublishActivity func()
}

// Setup инициализирует зависимости и возвращает настроенное приложение.
// Контроллеры сессий живут, пока не отменён ctx или не вызван Registry.Shutdown.
func Setup(ctx context.Context, cfg *config.Config, database *sql.DB, redisClient *redis.Client, logger *zap.Logger) *App {
	jwtAuth := jwtauth.New("HS256", []byte(cfg.JwtSecret), nil)
	jwtService := authService.NewJWTService(cfg.JwtSecret, redisClient)

	userRepo := repositories.NewUserRepository(database)
	shiftRepo := repositories.NewShiftRepository(database)
	activityStore := activity.NewStore(redisClient, cfg.ActiveShiftTTL)
	hub := realtime.NewHub(logger.Named("realtime"))

	publishActivity := func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.PersistTimeout)
		defer cancel()
		shifts, err := activityStore.List(ctx)
		if err != nil {
			logger.Warn("failed to load activity", zap.Error(err))
			return
		}
		hub.BroadcastAdmins(realtime.MsgActivity, shifts)
	}

	sessionLogger := logger.Named("session")
	registry := session.NewRegistry(ctx, func(u models.User) session.Options {
		return session.Options{
			UserName:       u.Username,
			Clock:          session.SystemClock,
			TickInterval:   cfg.TickInterval,
			PersistTimeout: cfg.PersistTimeout,
			Camera:         hub.Camera(u.ID, cfg.CameraTimeout),
			Presenter:      hub.Presenter(u.ID),
			Store:          recorder.New(shiftRepo, activityStore, u, logger).OnChange(publishActivity),
			Loader:         shiftRepo,
			Logger:         sessionLogger,
		}
	}, sessionLogger)

	authHandler := authHandlers.NewAuthHandler(userRepo, jwtService, logger)
	shiftHandler := shiftHandlers.NewHandler(registry, shiftRepo, cfg.UploadDir, logger)
	adminHandler := adminHandlers.NewHandler(userRepo, shiftRepo, activityStore, registry, logger).
		OnActivityChange(publishActivity)
	wsHandler := wsHandlers.NewHandler(hub, registry, logger)

	router := chi.NewRouter()

	// Используем chiMiddleware для Logger и Recoverer
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	// браузерный WebSocket не умеет заголовки, поэтому токен принимается и из ?jwt=
	router.Use(jwtauth.Verify(jwtAuth, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie, jwtauth.TokenFromQuery))
	router.Use(middleware.AddUserToContext())

	// Публичные маршруты
	router.Post("/api/auth/login", authHandler.LoginHandler)
	router.Post("/api/auth/refresh", authHandler.RefreshTokenHandler)
	router.Handle("/uploads/*", http.StripPrefix("/uploads", http.FileServer(http.Dir(cfg.UploadDir))))
	router.Get("/health", healthHandler(database, redisClient))

	router.Group(func(r chi.Router) {
		r.Use(jwtauth.Authenticator(jwtAuth))
		r.Use(middleware.RequireUser)

		r.Get("/ws", wsHandler.ServeWS)
		r.Get("/api/profile", authHandler.GetProfile)
		r.Post("/api/logout", authHandler.LogoutHandler)

		r.Get("/api/session", shiftHandler.State)
		r.Post("/api/shift/start", shiftHandler.StartShift)
		r.Post("/api/shift/end", shiftHandler.EndShift)
		r.Post("/api/shift/pause", shiftHandler.PauseShift)
		r.Post("/api/shift/resume", shiftHandler.ResumeShift)
		r.Post("/api/cleaning/start", shiftHandler.StartCleaning)
		r.Post("/api/cleaning/end", shiftHandler.EndCleaning)
		r.Post("/api/cleaning/pause", shiftHandler.PauseCleaning)
		r.Post("/api/cleaning/resume", shiftHandler.ResumeCleaning)
		r.Post("/api/cleaning/notes", shiftHandler.AddNote)
		r.Post("/api/cleaning/images", shiftHandler.UploadImage)
		r.Post("/api/scan", shiftHandler.Scan)
		r.Post("/api/scanner/close", shiftHandler.CloseScanner)
		r.Post("/api/confirmation/confirm", shiftHandler.Confirm)
		r.Post("/api/confirmation/cancel", shiftHandler.Cancel)
		r.Post("/api/qr/simulate", shiftHandler.SimulateQR)
		r.Get("/api/shifts", shiftHandler.ListShifts)
		r.Get("/api/shifts/{id}/cleanings", shiftHandler.ListCleanings)

		// Admin-only
		r.Group(func(ar chi.Router) {
			ar.Use(middleware.AdminOnly)
			ar.Get("/api/admin/active-shifts", adminHandler.ActiveShifts)
			ar.Get("/api/admin/online-users", wsHandler.OnlineUsers)
			ar.Get("/api/admin/ended-shifts", adminHandler.EndedShifts)
			ar.Get("/api/admin/shifts/export", adminHandler.ExportShifts)
			ar.Post("/api/admin/users/{userID}/end-shift", adminHandler.ForceEndShift)
			ar.Get("/api/admin/users", adminHandler.ListUsers)
			ar.Post("/api/admin/users", adminHandler.CreateUser)
			ar.Patch("/api/admin/users/{userID}/role", adminHandler.UpdateUserRole)
			ar.Patch("/api/admin/users/{userID}/status", adminHandler.UpdateUserStatus)
			ar.Delete("/api/admin/users/{userID}", adminHandler.DeleteUser)
		})
	})

	return &App{
		Router:          router,
		Hub:             hub,
		Registry:        registry,
		Activity:        activityStore,
		PublishActivity: publishActivity,
	}
}

func healthHandler(database *sql.DB, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "ok", "database": "ok", "redis": "ok"}
		code := http.StatusOK
		if err := database.PingContext(ctx); err != nil {
			status["database"] = err.Error()
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			status["redis"] = err.Error()
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
		response.RespondWithJSON(w, code, status)
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/classmark/attendance/internal/access"
	"github.com/classmark/attendance/internal/account"
	"github.com/classmark/attendance/internal/attendance"
	"github.com/classmark/attendance/internal/database"
	"github.com/classmark/attendance/internal/http/handlers"
	mw "github.com/classmark/attendance/internal/http/middleware"
	"github.com/classmark/attendance/internal/mailer"
	"github.com/classmark/attendance/internal/repo"
	"github.com/classmark/attendance/internal/store"
	"github.com/classmark/attendance/pkg/config"
	"github.com/classmark/attendance/pkg/events"
	"github.com/classmark/attendance/pkg/logger"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Document store, backend chosen once at startup
	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open document store", "error", err, "backend", cfg.Storage.Backend)
		os.Exit(1)
	}
	defer st.Close()
	logger.Info("Document store ready", "backend", cfg.Storage.Backend)

	// Event bus
	var bus events.Publisher = events.NopPublisher{}
	if cfg.NATS.Enabled {
		natsBus, err := events.NewNATSEventBus(cfg.NATS.URL)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsBus.Close()
		bus = natsBus
	}

	// Repositories
	userRepo := repo.NewUserRepository(st.Collection("users"))
	studentRepo := repo.NewStudentRepository(st.Collection("students"))
	attendanceRepo := repo.NewAttendanceRepository(st.Collection("attendance"))
	sessionRepo := repo.NewSessionRepository(st.Collection("attendance_sessions"))
	linkRepo := repo.NewLinkRepository(st.Collection("attendance_links"))

	// Services
	accountSvc := account.NewService(userRepo, buildMailer(cfg), bus, cfg)
	attendanceSvc := attendance.NewService(attendanceRepo, studentRepo, bus)
	accessSvc := access.NewService(sessionRepo, linkRepo, studentRepo, bus, cfg)

	if err := accountSvc.BootstrapAdmin(ctx); err != nil {
		logger.Error("Failed to bootstrap admin account", "error", err)
		os.Exit(1)
	}

	// Background expiry sweep
	sweeper := access.NewSweeper(sessionRepo, linkRepo, cfg.Access.SweepInterval)
	go sweeper.Run(ctx)

	// Rate limiting (optional, fails open)
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Error("Invalid Redis URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}
	loginLimiter := mw.NewRateLimiter(redisClient, mw.RateLimitConfig{
		Requests: 20,
		Window:   time.Minute,
		KeyFunc:  mw.IPKeyFunc,
	})
	markLimiter := mw.NewRateLimiter(redisClient, mw.RateLimitConfig{
		Requests: 60,
		Window:   time.Minute,
		KeyFunc:  mw.IPKeyFunc,
	})

	// Handlers
	authn := mw.NewAuthenticator(accountSvc, cfg.Auth.JWTSecret)
	authHandler := handlers.NewAuthHandler(accountSvc, cfg)
	accessHandler := handlers.NewAccessHandler(accessSvc, attendanceSvc, cfg)
	attendanceHandler := handlers.NewAttendanceHandler(attendanceSvc, studentRepo)

	// Router
	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", func(r chi.Router) {
		r.With(loginLimiter.Middleware()).Mount("/", authHandler.PublicRoutes())
		r.Group(func(r chi.Router) {
			r.Use(authn.RequireAuth)
			r.Mount("/account", authHandler.AuthedRoutes())
		})
	})

	// Anonymous marking via session or personal link tokens
	r.With(markLimiter.Middleware()).Mount("/attend", accessHandler.PublicRoutes())

	// Teacher/admin surface
	r.Group(func(r chi.Router) {
		r.Use(authn.RequireAuth)
		r.Mount("/access", accessHandler.ManageRoutes())
		r.Mount("/", attendanceHandler.Routes())
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting attendance API", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

// openStore selects and opens the configured backend. The postgres backend
// also applies migrations on startup.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "file":
		return store.OpenFile(cfg.Storage.DataDir)
	default:
		if err := database.Migrate(cfg.Storage.DatabaseURL); err != nil {
			return nil, err
		}
		return store.OpenPostgres(ctx, cfg.Storage.DatabaseURL)
	}
}

func buildMailer(cfg *config.Config) mailer.Service {
	switch {
	case cfg.Email.DevMode:
		return mailer.NewDevMailer()
	case cfg.Email.MailerSendKey != "":
		return mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.SMTPFrom)
	default:
		return mailer.NewSMTPMailer(cfg.Email.SMTPHost, cfg.Email.SMTPPort,
			cfg.Email.SMTPFrom, cfg.Email.SMTPUser, cfg.Email.SMTPPass, cfg.Email.SMTPUseTLS)
	}
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/koinonia-app/koinonia/internal/app"
	"github.com/koinonia-app/koinonia/internal/auth"
	"github.com/koinonia-app/koinonia/internal/events"
	"github.com/koinonia-app/koinonia/internal/gallery"
	"github.com/koinonia-app/koinonia/internal/groups"
	"github.com/koinonia-app/koinonia/internal/identity"
	"github.com/koinonia-app/koinonia/internal/members"
	"github.com/koinonia-app/koinonia/internal/notifications"
	"github.com/koinonia-app/koinonia/internal/observability"
	"github.com/koinonia-app/koinonia/internal/platform/cache"
	"github.com/koinonia-app/koinonia/internal/platform/db"
	"github.com/koinonia-app/koinonia/internal/posts"
	"github.com/koinonia-app/koinonia/internal/roles"
	"github.com/koinonia-app/koinonia/internal/shared"
	"github.com/koinonia-app/koinonia/internal/timers"
	"github.com/koinonia-app/koinonia/internal/view"
	"github.com/koinonia-app/koinonia/jobs"
	"github.com/koinonia-app/koinonia/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "koinonia_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("create jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	mailer := auth.MailerFunc(func(ctx context.Context, to, subject, body string) error {
		_, err := jobsClient.EnqueueSendEmail(ctx, jobs.SendEmailPayload{To: to, Subject: subject, Body: body})
		return err
	})

	guard := identity.NewGuard(identity.NewGateway(identity.NewPGRoleSource(dbpool)), logger)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, mailer)
	authHandler := auth.NewHandler(logger, authService, sessionManager, cfg.BaseURL)

	membersRepo := members.NewRepository(dbpool)
	membersService := members.NewService(membersRepo)
	membersHandler := members.NewHandler(logger, membersService, guard)

	rolesRepo := roles.NewRepository(dbpool)
	rolesService := roles.NewService(rolesRepo)
	rolesHandler := roles.NewHandler(logger, rolesService, guard)

	eventsRepo := events.NewRepository(dbpool)
	eventsService := events.NewService(eventsRepo)
	eventsHandler := events.NewHandler(logger, eventsService, guard)

	groupsRepo := groups.NewRepository(dbpool)
	groupsService := groups.NewService(groupsRepo)
	groupsHandler := groups.NewHandler(logger, groupsService, guard)

	galleryRepo := gallery.NewRepository(dbpool)
	galleryService := gallery.NewService(galleryRepo)
	galleryHandler := gallery.NewHandler(logger, galleryService, guard)

	timersRepo := timers.NewRepository(dbpool)
	timersService := timers.NewService(timersRepo)
	timersHandler := timers.NewHandler(logger, timersService, guard)

	postsRepo := posts.NewRepository(dbpool)
	postsService := posts.NewService(postsRepo)
	postsHandler := posts.NewHandler(logger, postsService, guard)

	notificationsRepo := notifications.NewRepository(dbpool)
	notificationsService := notifications.NewService(notificationsRepo)
	notificationsHandler := notifications.NewHandler(logger, notificationsService, guard)

	metrics := observability.NewMetrics()

	reportClient := report.NewClient(cfg.GotenbergURL)
	reportHandler := report.NewHandler(reportClient, eventsService, membersService, guard, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		Templates:            templates,
		SessionManager:       sessionManager,
		CSRFManager:          csrfManager,
		AuthHandler:          authHandler,
		MembersHandler:       membersHandler,
		RolesHandler:         rolesHandler,
		EventsHandler:        eventsHandler,
		GroupsHandler:        groupsHandler,
		GalleryHandler:       galleryHandler,
		TimersHandler:        timersHandler,
		PostsHandler:         postsHandler,
		NotificationsHandler: notificationsHandler,
		ReportHandler:        reportHandler,
		JobHandler:           jobHandler,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

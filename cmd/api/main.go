package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/fieldops/field-service/internal/api/http"
	"github.com/fieldops/field-service/internal/api/http/handlers"
	"github.com/fieldops/field-service/internal/auth"
	"github.com/fieldops/field-service/internal/config"
	"github.com/fieldops/field-service/internal/events"
	"github.com/fieldops/field-service/internal/observability"
	"github.com/fieldops/field-service/internal/persistence"
	"github.com/fieldops/field-service/internal/repository"
	"github.com/fieldops/field-service/internal/service"
	"github.com/fieldops/field-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	customerRepo := repository.NewCustomerRepository(pool)
	machineRepo := repository.NewMachineRepository(pool)
	historyRepo := repository.NewServiceHistoryRepository(pool)
	workTimeRepo := repository.NewWorkTimeRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	clock := service.RealClock()

	directory := service.NewDirectoryService(customerRepo, machineRepo)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		UserRepo:    userRepo,
		HistoryRepo: historyRepo,
		Directory:   directory,
		Dispatcher:  dispatcher,
		Clock:       clock,
		Logger:      logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  ticketRepo,
		UserRepo:    userRepo,
		MachineRepo: machineRepo,
		Dispatcher:  dispatcher,
		Clock:       clock,
		Logger:      logger,
	})
	workTimeService := service.NewWorkTimeService(service.WorkTimeDependencies{
		UserRepo:   userRepo,
		RecordRepo: workTimeRepo,
		Dispatcher: dispatcher,
		Attendance: cfg.Attendance,
		Clock:      clock,
		Logger:     logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:   userRepo,
		Tokens:     tokens,
		BcryptCost: cfg.Auth.BcryptCost,
		Logger:     logger,
	})
	authMiddleware := auth.NewAuthMiddleware(tokens, userRepo)

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	scheduler := worker.NewAutoCheckoutScheduler(worker.SchedulerDependencies{
		UserRepo:   userRepo,
		WorkTime:   workTimeService,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Redis:      redis.Client,
		Clock:      clock,
		Interval:   cfg.Attendance.SweepInterval(),
		Logger:     logger,
	})
	go scheduler.Run(ctx)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, assignmentService),
		Attendance:     handlers.NewAttendanceHandler(workTimeService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

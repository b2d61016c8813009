package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"loan-origination-api/config"
	"loan-origination-api/controllers"
	"loan-origination-api/middleware"
	"loan-origination-api/migrations"
	"loan-origination-api/routes"
	"loan-origination-api/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		charmlog.Fatal("load config", "err", err)
	}

	logCfg := cfg.Log
	if logCfg.File == "" && cfg.IsProduction() {
		logCfg.File = config.DefaultLogFilePath()
	}
	logger, logWriter, closeLog, err := config.NewLogger(logCfg, "loan-api")
	if err != nil {
		charmlog.Fatal("init logging", "err", err)
	}
	defer closeLog()

	if cfg.AutoMigrate {
		sqlDB, err := config.OpenSQL(cfg.Database)
		if err != nil {
			logger.Fatal("open database for migrations", "err", err)
		}
		if err := migrations.Up(sqlDB, cfg.Database.Driver); err != nil {
			logger.Fatal("apply migrations", "err", err)
		}
		logger.Info("migrations applied", "driver", cfg.Database.Driver)
	}

	db, err := config.OpenDB(cfg, logger)
	if err != nil {
		logger.Fatal("connect database", "err", err)
	}

	strategy, err := services.ParseAssignmentStrategy(cfg.AssignmentStrategy)
	if err != nil {
		logger.Fatal("invalid ASSIGNMENT_STRATEGY", "err", err)
	}

	txm := services.NewTxManager(db)
	ledger := services.NewAssignmentLedger(strategy, logger.WithPrefix("ledger"))
	recorder := services.NewAuditTrailRecorder()

	var notifier *services.AssignmentNotifier
	mailer := config.NewMailer(cfg.SMTP)
	if mailer.Configured() && len(cfg.SMTP.NotifyTo) > 0 {
		notifier = services.NewAssignmentNotifier(mailer, cfg.SMTP.NotifyTo, logger.WithPrefix("notify"))
	} else {
		logger.Info("assignment mail notifications disabled")
	}

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = logWriter
	gin.DefaultErrorWriter = logWriter

	router := gin.New()
	router.Use(middleware.RequestLogger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))

	routes.SetupRoutes(router, routes.Deps{
		LoanApplications: controllers.NewLoanApplicationController(txm, ledger, recorder, notifier, logger),
		JWTSecret:        []byte(cfg.JWTSecret),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.ServerPort, "environment", cfg.Environment, "assignment_strategy", ledger.Strategy())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "err", err)
	}
	if err := notifier.Wait(shutdownCtx); err != nil {
		logger.Warn("pending assignment notifications dropped", "err", err)
	}

	if sqlDB, err := txm.DB().DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("server stopped")
}

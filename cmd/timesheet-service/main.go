package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nurpe/staffing-timesheets/internal/auth"
	"github.com/nurpe/staffing-timesheets/internal/backend"
	"github.com/nurpe/staffing-timesheets/internal/config"
	"github.com/nurpe/staffing-timesheets/internal/db"
	"github.com/nurpe/staffing-timesheets/internal/excel"
	httphandler "github.com/nurpe/staffing-timesheets/internal/http"
	"github.com/nurpe/staffing-timesheets/internal/http/middleware"
	"github.com/nurpe/staffing-timesheets/internal/logger"
	"github.com/nurpe/staffing-timesheets/internal/repository"
	"github.com/nurpe/staffing-timesheets/internal/service"
)

const (
	reapInterval    = time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	writeLogRepo := repository.NewWriteLogRepository(database)
	backendClient := backend.NewClient(backend.Config{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    cfg.Backend.Timeout,
		MaxRetries: cfg.Backend.MaxRetries,
	}, log)

	timesheetService := service.NewTimesheetService(
		func(token string) service.Backend { return backendClient.WithToken(token) },
		writeLogRepo,
		excel.NewGenerator(),
		cfg.Timesheets,
		log,
	)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(timesheetService, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, cfg.HTTP.AllowedOrigins, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go timesheetService.RunReaper(ctx, reapInterval)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", addr).Msg("starting timesheet service")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}

	timesheetService.Shutdown()
	if sqlDB, err := database.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("close database failed")
		}
	}
	log.Info().Msg("timesheet service stopped")
}

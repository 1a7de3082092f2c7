package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/polarmet/antartida-weather/internal/aemet"
	"github.com/polarmet/antartida-weather/internal/antartida"
	httpapi "github.com/polarmet/antartida-weather/internal/api/http"
	"github.com/polarmet/antartida-weather/internal/config"
	"github.com/polarmet/antartida-weather/internal/scheduler"
	"github.com/polarmet/antartida-weather/internal/store"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound AEMET calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// SQLite cache of measurements, fetch windows, and the station catalog.
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open measurement store: %v", err)
	}
	defer db.Close()

	client := aemet.NewClient(httpClient, cfg.AEMETAPIKey)

	// Core service orchestrating cache-first retrieval and aggregation.
	service := antartida.NewService(antartida.Config{
		GabrielStationID: cfg.GabrielStationID,
		JuanStationID:    cfg.JuanStationID,
		CacheFreshness:   cfg.CacheFreshness,
	}, db, client)

	// Optional cache warmer for the trailing window.
	sched := scheduler.New(service, cfg.WarmInterval, cfg.WarmWindow)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "antartida-weather",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "antartida-weather",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service)

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}

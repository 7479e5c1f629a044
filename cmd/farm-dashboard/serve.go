package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	httpapi "github.com/i474232898/farm-dashboard/internal/api/http"
	"github.com/i474232898/farm-dashboard/internal/config"
	"github.com/i474232898/farm-dashboard/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP API",
	RunE:  serve,
}

func serve(cmd *cobra.Command, argv []string) error {
	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := klog.Background().WithName("farm-dashboard")
	ctx = klog.NewContext(ctx, log)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	comp, err := wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer comp.Close()

	// Scheduler for per-session crop pollers and the idle sweeper.
	sched := scheduler.New(cfg.SchedulerJobTimeout)
	sched.Start(ctx)
	defer sched.Stop()

	manager := comp.newManager(sched)
	if err := manager.StartSweeper(); err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:               "farm-dashboard",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(httpapi.RequestLogger(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "farm-dashboard",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpapi.RegisterRoutes(app, httpapi.API{
		Sessions:      manager,
		Notifications: comp.notify,
		Forecasts:     comp.forecasts,
		Languages:     comp.languages,
	})

	go func() {
		log.Info("listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error(err, "fiber server stopped")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error(err, "error during shutdown")
	}
	manager.CloseAll(klog.NewContext(shutdownCtx, log))
	return nil
}

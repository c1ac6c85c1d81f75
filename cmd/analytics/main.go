// The analytics collector consumes the task_events exchange and serves
// the HTTP sink the API server forwards snapshots to, plus a couple of
// aggregate views.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/lmittmann/tint"

	"github.com/iliyamo/task-tracker/internal/analytics"
	"github.com/iliyamo/task-tracker/internal/config"
	"github.com/iliyamo/task-tracker/internal/database"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	var logger *slog.Logger
	if cfg.Env == "dev" {
		logger = slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug, TimeFormat: time.Kitchen}))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	slog.SetDefault(logger)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := database.EnsureAnalyticsSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("schema bootstrap failed: %v", err)
	}
	cancel()

	repo := analytics.NewRepo(db)
	go analytics.StartConsumer(cfg.RabbitURL, repo, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: []string{cfg.CORSOrigin}}))
	analytics.NewHandler(repo, logger).Register(e)

	addr := ":" + cfg.AnalyticsPort
	logger.Info("analytics collector listening", "addr", addr)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

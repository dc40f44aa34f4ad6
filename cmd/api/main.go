package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LJTian/NewsRadar/internal/api"
	"github.com/LJTian/NewsRadar/internal/app"
	"github.com/LJTian/NewsRadar/internal/config"
	"github.com/LJTian/NewsRadar/internal/logger"
	"github.com/LJTian/NewsRadar/internal/scheduler"
	"github.com/LJTian/NewsRadar/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr, lg.Named("storage"))
	if err != nil {
		lg.Fatal("init store failed", zap.Error(err))
	}

	crawler, err := app.NewCrawler(cfg, lg)
	if err != nil {
		lg.Fatal("init crawler failed", zap.Error(err))
	}

	s, err := scheduler.New(cfg.CronSpec, crawler, cfg.Sources, lg.Named("scheduler"), store)
	if err != nil {
		lg.Fatal("init scheduler failed", zap.Error(err))
	}
	s.Start()
	defer s.Stop()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	api.NewServer(store, lg.Named("api")).RegisterRoutes(r)

	srv := &http.Server{Addr: ":" + cfg.AppPort, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		lg.Info("starting api server", zap.String("addr", srv.Addr), zap.String("cron", cfg.CronSpec))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatal("server exit", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("server shutdown", zap.Error(err))
	}
}

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

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/studentdocs/profile-service/internal/config"
	"github.com/studentdocs/profile-service/internal/server"
	"github.com/studentdocs/profile-service/pkg/logger"
)

func main() {
	// LOG_LEVEL env: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if cfg.LogLevel != "" {
		logger.Init(cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		// keep serving /health so the misconfiguration is visible on /ready
		logger.Warnf("incomplete configuration: %v", err)
	}
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components := server.Build(ctx, cfg, server.Options{})
	defer func() { _ = components.Close() }()
	r := server.NewEngine(components, server.Options{})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	logger.Infof("config summary: storage=%s table=%s profile_base=%s rate_limit=%v redis=%v",
		cfg.Storage.Backend, cfg.Baserow.TableID, cfg.Profile.BaseURL, cfg.RateLimit.Enabled, components.Redis != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("starting profile service on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}

// Package server assembles the clients and HTTP engine shared by the
// service binaries.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/studentdocs/profile-service/handlers"
	"github.com/studentdocs/profile-service/internal/config"
	"github.com/studentdocs/profile-service/internal/provisioning"
	"github.com/studentdocs/profile-service/internal/records"
	"github.com/studentdocs/profile-service/internal/render"
	"github.com/studentdocs/profile-service/internal/storage"
	"github.com/studentdocs/profile-service/pkg/logger"
	"github.com/studentdocs/profile-service/pkg/metrics"
	"github.com/studentdocs/profile-service/pkg/middleware"
)

var registerMetricsOnce sync.Once

// Options overrides collaborators that are otherwise built from config.
type Options struct {
	Provisioner storage.Provisioner
	HTTPClient  *http.Client
	Redis       *redis.Client
	Registerer  prometheus.Registerer
	Gatherer    prometheus.Gatherer
}

// Components are the long-lived clients built once at startup and shared,
// read-only, by every request.
type Components struct {
	Config       *config.Config
	Records      *records.Client
	Renderer     *render.Renderer
	Provisioner  storage.Provisioner
	Orchestrator *provisioning.Orchestrator
	Redis        *redis.Client

	storageErr error
	closers    []io.Closer
}

// Build constructs the components. A storage backend that cannot be built is
// replaced by storage.Unavailable so the render path keeps working; the
// failure is reported by Ready.
func Build(ctx context.Context, cfg *config.Config, opts Options) *Components {
	c := &Components{Config: cfg}

	c.Records = records.NewClient(cfg.Baserow.APIURL, cfg.Baserow.Token, opts.HTTPClient)
	c.Renderer = render.New(render.Options{
		TemplateFile: cfg.Render.TemplateFile,
		DisplayField: cfg.Fields.DisplayName,
		HTTPClient:   opts.HTTPClient,
	})

	c.Provisioner = opts.Provisioner
	if c.Provisioner == nil {
		p, closer, err := NewProvisioner(ctx, cfg.Storage)
		if err != nil {
			logger.Warnf("storage backend %q unavailable: %v", cfg.Storage.Backend, err)
			c.storageErr = err
			p = storage.Unavailable{Err: err}
		}
		if closer != nil {
			c.closers = append(c.closers, closer)
		}
		c.Provisioner = p
	}

	c.Orchestrator = provisioning.NewOrchestrator(c.Provisioner, c.Records, provisioning.Config{
		ParentFolderID: cfg.Storage.ParentFolderID,
		ProfileBaseURL: cfg.Profile.BaseURL,
		Fields: provisioning.Fields{
			DisplayName: cfg.Fields.DisplayName,
			FolderLink:  cfg.Fields.FolderLink,
			ProfileLink: cfg.Fields.ProfileLink,
		},
	})

	c.Redis = opts.Redis
	if c.Redis == nil && cfg.RateLimit.Enabled && cfg.RateLimit.UseRedis && cfg.Redis.Host != "" {
		rc := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rc.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s), using in-memory rate limiter: %v", cfg.Redis.Host, cfg.Redis.Port, err)
			_ = rc.Close()
		} else {
			logger.Infof("connected to Redis for rate limiting: %s:%s", cfg.Redis.Host, cfg.Redis.Port)
			c.Redis = rc
			c.closers = append(c.closers, rc)
		}
	}

	return c
}

// NewProvisioner builds the storage backend selected by cfg.Backend. The
// returned closer may be nil.
func NewProvisioner(ctx context.Context, cfg config.StorageConfig) (storage.Provisioner, io.Closer, error) {
	switch cfg.Backend {
	case storage.BackendDrive, "":
		d, err := storage.NewDriveStorage(ctx, cfg.Drive)
		if err != nil {
			return nil, nil, err
		}
		return d, nil, nil
	case storage.BackendMinIO:
		mc := cfg.MinIO
		m, err := storage.NewMinIOStorage(&mc)
		if err != nil {
			return nil, nil, err
		}
		return m, nil, nil
	case storage.BackendGCS:
		g, err := storage.NewGCSStorage(ctx, cfg.GCS)
		if err != nil {
			return nil, nil, err
		}
		return g, g, nil
	}
	return nil, nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
}

// Ready reports per-dependency readiness for /ready.
func (c *Components) Ready() map[string]bool {
	deps := map[string]bool{
		"config":  c.Config.Validate() == nil,
		"storage": c.storageErr == nil,
	}
	if c.Config.RateLimit.Enabled && c.Config.RateLimit.UseRedis {
		deps["redis"] = c.Redis != nil
	}
	return deps
}

// Close releases clients that hold connections.
func (c *Components) Close() error {
	var first error
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewEngine builds the gin engine serving every route of the service.
func NewEngine(c *Components, opts Options) *gin.Engine {
	reg, gatherer := opts.Registerer, opts.Gatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
		registerMetricsOnce.Do(func() { metrics.RegisterCollectors(reg) })
	} else {
		metrics.RegisterCollectors(reg)
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(middleware.RequestID(), gin.Logger(), gin.Recovery())

	var limit []gin.HandlerFunc
	if rl := c.Config.RateLimit; rl.Enabled {
		if rl.UseRedis && c.Redis != nil {
			win := time.Duration(rl.WindowSeconds) * time.Second
			limit = append(limit, middleware.RedisRateLimitMiddleware(c.Redis, rl.RPS, rl.Burst, win))
		} else {
			limit = append(limit, middleware.RateLimitMiddleware(rl.RPS, rl.Burst))
		}
	}

	handlers.RegisterHealth(r, c.Ready)
	handlers.RegisterSwagger(r)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	handlers.NewProfileHandler(c.Records, c.Renderer, c.Config.Baserow.TableID).Register(r, limit...)
	// webhook deliveries are not rate limited
	handlers.NewWebhookHandler(c.Orchestrator, c.Config.Webhook.StatusCodes).Register(r)

	return r
}

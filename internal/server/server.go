package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/railzwaylabs/plexsource/internal/bootstrap"
	"github.com/railzwaylabs/plexsource/internal/config"
	flowdomain "github.com/railzwaylabs/plexsource/internal/flow/domain"
	flowservice "github.com/railzwaylabs/plexsource/internal/flow/service"
	"github.com/railzwaylabs/plexsource/internal/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// FlowCache drops cached flow catalogs.
type FlowCache interface {
	Invalidate(ctx context.Context, designations ...flowdomain.Designation)
}

type Params struct {
	fx.In

	Config   config.Config
	Log      *zap.Logger
	Sessions *session.Manager
	Flows    *flowservice.Loader

	SchemaGate bootstrap.SchemaGate `optional:"true"`
	Redis      *redis.Client        `optional:"true"`
}

type Server struct {
	cfg      config.Config
	log      *zap.Logger
	sessions *session.Manager
	flows    FlowCache
	checks   []ReadinessCheck
	engine   *gin.Engine
}

func New(p Params) *Server {
	var checks []ReadinessCheck
	if p.SchemaGate != nil {
		checks = append(checks, ReadinessCheck{ID: "schema_gate", Check: p.SchemaGate.MustBeActive})
	}
	if p.Redis != nil {
		checks = append(checks, ReadinessCheck{ID: "redis", Check: func(ctx context.Context) error {
			return p.Redis.Ping(ctx).Err()
		}})
	}
	return NewServer(p.Config, p.Log, p.Sessions, p.Flows, checks...)
}

func NewServer(cfg config.Config, log *zap.Logger, sessions *session.Manager, flows FlowCache, checks ...ReadinessCheck) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		cfg:      cfg,
		log:      log.Named("server"),
		sessions: sessions,
		flows:    flows,
		checks:   checks,
	}
	s.engine = s.router()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	if len(s.cfg.Server.TrustedProxies) > 0 {
		if err := r.SetTrustedProxies(s.cfg.Server.TrustedProxies); err != nil {
			s.log.Warn("invalid trusted proxies", zap.Error(err))
		}
	}

	r.GET("/healthz", s.Health)
	r.GET("/ready", s.GetReadiness)
	if s.cfg.Server.EnableMetrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api/v1", s.APIKeyRequired())
	api.POST("/sessions", s.CreateSession)
	api.GET("/sessions/:id", s.GetSession)
	api.PATCH("/sessions/:id", s.EditSession)
	api.DELETE("/sessions/:id", s.DeleteSession)
	api.POST("/sessions/:id/authorize", s.Authorize)
	api.POST("/sessions/:id/authorize/close", s.CloseAuthorizationWindow)
	api.POST("/sessions/:id/resources/reload", s.ReloadResources)
	api.POST("/sessions/:id/flows/reload", s.ReloadFlows)
	api.POST("/sessions/:id/submit", s.Submit)
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.Last().Error()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.log.Warn("request failed", fields...)
			return
		}
		s.log.Debug("request", fields...)
	}
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Run registers the HTTP listener on the fx lifecycle.
func Run(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

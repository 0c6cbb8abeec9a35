package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/Relay/internal/adapters/signal"
	"github.com/dkeye/Relay/internal/app/orch"
	"github.com/dkeye/Relay/internal/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Debug {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	if origins := cfg.Origins(); len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOriginFunc: cfg.OriginAllowed,
			AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:    []string{"Authorization", "Content-Type"},
			MaxAge:          12 * time.Hour,
		}))
		log.Info().Str("module", "adapters.http").Strs("origins", origins).Msg("cors enabled")
	}

	if cfg.ServeClient {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
		log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("serving client assets")
	}

	cp := &controlPlane{orch: o}
	r.GET("/health", cp.handleHealth)

	ctrl := signal.NewSignalWSController(o, cfg)
	r.GET("/socket", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})

	api := r.Group("/", ControlPlaneAuth(cfg.APISecret))
	api.POST("/emit", cp.handleEmit)
	api.POST("/join", cp.handleJoin)
	api.POST("/leave", cp.handleLeave)

	log.Info().Str("module", "adapters.http").Bool("control_plane_auth", cfg.AuthEnabled()).Msg("router setup")
	return r
}

package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/OmerS16/stagehop-backend/handlers"
	"github.com/OmerS16/stagehop-backend/internal/config"
	"github.com/OmerS16/stagehop-backend/internal/deploy"
	"github.com/OmerS16/stagehop-backend/internal/store"
	"github.com/OmerS16/stagehop-backend/socket"
)

func main() {
	var (
		configPath string
		logLevel   string
	)

	pflag.StringVarP(&configPath, "config", "c", "", "path to stagehop.yaml")
	pflag.StringVarP(&logLevel, "log-level", "L", "", "level to log at. refer to https://godoc.org/go.uber.org/zap/zapcore#Level for options")
	pflag.Parse()

	log := logger(logLevel)
	defer log.Sync() // nolint:errcheck

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal("unable to load configuration", zap.Error(err))
	}

	s, err := store.New(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal("unable to open database", zap.Error(err))
	}
	defer s.Close()

	// ctx for setup
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Init(ctx); err != nil {
		log.Fatal("unable to initialize database", zap.Error(err))
	}

	// the deploy webhook only comes up when the deploy target is fully
	// configured; the events API works either way
	var deployer handlers.Deployer
	if err := cfg.Validate(); err != nil {
		log.Warn("deploy webhook disabled", zap.Error(err))
	} else {
		signer, err := cfg.Signer()
		if err != nil {
			log.Fatal("unable to load deploy key", zap.Error(err))
		}

		deployer, err = deploy.New(cfg.Target(), signer,
			deploy.WithTimeout(cfg.SSHTimeout),
			deploy.WithStatusLines(cfg.StatusLines),
			deploy.WithOutput(socket.Writer(cfg.RemoteHost)),
			deploy.WithLogger(log),
		)
		if err != nil {
			log.Fatal("unable to build deployer", zap.Error(err))
		}
	}

	h := &handlers.Handlers{
		Store:    s,
		Deployer: deployer,
		Log:      log,
	}

	router := echo.New()
	router.HideBanner = true
	router.Pre(middleware.RemoveTrailingSlash())
	router.Use(middleware.CORS())
	router.Use(middleware.Recover())

	router.GET("/ping", h.Ping)
	router.GET("/events/today", h.TodayEvents)
	router.GET("/events", h.Events)
	router.GET("/venues", h.Venues)

	// websocket/ui
	router.GET("/ws", socket.ServeWS)

	api := router.Group("/api/v1")
	api.POST("/deploy", h.Deploy)
	api.GET("/deployments", h.Deployments)

	log.Info("starting server", zap.String("addr", cfg.ListenAddr))

	err = router.StartServer(&http.Server{
		Addr:           cfg.ListenAddr,
		MaxHeaderBytes: 1024 * 10,
	})
	switch {
	case errors.Is(err, http.ErrServerClosed):
	case err != nil:
		log.Fatal("failed to start http server", zap.Error(err))
	}
}

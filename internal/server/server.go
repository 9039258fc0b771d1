package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ccmart/internal/config"
	"ccmart/internal/handler"
	"ccmart/internal/middleware"
	"ccmart/internal/validator"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// /api 配下に登録するもの
type RouteRegistrar interface {
	RegisterRoutes(api *echo.Group, guards handler.Guards)
}

type Server struct {
	e   *echo.Echo
	cfg config.Config
	log *zap.Logger
}

func New(cfg config.Config, log *zap.Logger, guards handler.Guards, public *handler.ProductHandler, registrars ...RouteRegistrar) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.New()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{cfg.FEURL},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAuthorization,
			"Idempotency-Key",
		},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api")
	if public != nil {
		public.RegisterRoutes(api)
	}
	for _, r := range registrars {
		r.RegisterRoutes(api, guards)
	}

	return &Server{e: e, cfg: cfg, log: log}
}

// テスト用
func (s *Server) Handler() http.Handler { return s.e }

// ctxが終わったらgraceful shutdown
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.Port
	if addr != "" && addr[0] != ':' {
		addr = ":" + addr
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server started", zap.String("addr", addr))
		if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("http server shutting down")
	return s.e.Shutdown(shutdownCtx)
}

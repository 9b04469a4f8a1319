// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/tejzpr/dermtrack/internal/auth"
	"github.com/tejzpr/dermtrack/internal/config"
	"github.com/tejzpr/dermtrack/internal/metrics"
	"github.com/tejzpr/dermtrack/internal/tracker"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HTTPOptions configures an HTTPServer
type HTTPOptions struct {
	Server    config.ServerConfig
	Auth      echo.MiddlewareFunc      // guards /api/v1
	LocalAuth *auth.LocalAuthenticator // enables POST /auth/local when set
	DB        *gorm.DB                 // required with LocalAuth
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// HTTPServer serves the REST API
type HTTPServer struct {
	echo      *echo.Echo
	tracker   *tracker.Service
	localAuth *auth.LocalAuthenticator
	db        *gorm.DB
	logger    *zap.Logger
	config    config.ServerConfig
}

// NewHTTPServer creates the REST server
func NewHTTPServer(svc *tracker.Service, opts HTTPOptions) (*HTTPServer, error) {
	if svc == nil {
		return nil, fmt.Errorf("tracker service is required")
	}
	if opts.Auth == nil {
		return nil, fmt.Errorf("auth middleware is required")
	}
	if opts.LocalAuth != nil && opts.DB == nil {
		return nil, fmt.Errorf("local auth requires a database")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s := &HTTPServer{
		echo:      e,
		tracker:   svc,
		localAuth: opts.LocalAuth,
		db:        opts.DB,
		logger:    logger,
		config:    opts.Server,
	}
	s.registerRoutes(opts.Auth, opts.Metrics)

	return s, nil
}

func (s *HTTPServer) registerRoutes(authMW echo.MiddlewareFunc, m *metrics.Metrics) {
	s.echo.GET("/health", s.handleHealth)
	if m != nil {
		s.echo.GET("/metrics", echo.WrapHandler(m.Handler()))
	}
	if s.localAuth != nil {
		s.echo.POST("/auth/local", s.handleLocalAuth)
	}

	v1 := s.echo.Group("/api/v1", authMW)
	v1.GET("/sections", s.handleListSections)
	v1.POST("/sections", s.handleCreateSection)
	v1.GET("/sections/:id", s.handleGetSection)
	v1.PATCH("/sections/:id", s.handleUpdateSection)
	v1.DELETE("/sections/:id", s.handleDeleteSection)
	v1.GET("/sections/:id/observations", s.handleSectionHistory)
	v1.POST("/sections/:id/observations", s.handleAppendObservation)
	v1.GET("/sections/:id/baseline", s.handleBaseline)
	v1.GET("/sections/:id/report", s.handleReport)
	v1.GET("/observations", s.handleGeneralHistory)
	v1.POST("/observations", s.handleAppendGeneral)
}

// Echo exposes the router
func (s *HTTPServer) Echo() *echo.Echo {
	return s.echo
}

// Start listens on the configured address, with TLS when enabled
func (s *HTTPServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr), zap.Bool("tls", s.config.TLS.Enabled))
	var err error
	if s.config.TLS.Enabled {
		err = s.echo.StartTLS(addr, s.config.TLS.CertFile, s.config.TLS.KeyFile)
	} else {
		err = s.echo.Start(addr)
	}
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

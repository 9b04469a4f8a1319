// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"

	"github.com/tejzpr/dermtrack/internal/auth"
	"github.com/tejzpr/dermtrack/internal/config"
	"github.com/tejzpr/dermtrack/internal/database"
	"github.com/tejzpr/dermtrack/internal/logging"
	"github.com/tejzpr/dermtrack/internal/metrics"
	"github.com/tejzpr/dermtrack/internal/narrative"
	"github.com/tejzpr/dermtrack/internal/store"
	"github.com/tejzpr/dermtrack/internal/tracker"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// app holds the dependencies every command needs
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *gorm.DB
	metrics *metrics.Metrics
	tokens  *auth.TokenManager
	tracker *tracker.Service
}

func newApp(cfg *config.Config) (*app, error) {
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.Open(&database.Config{
		Type:        cfg.Database.Type,
		SQLitePath:  cfg.Database.SQLitePath,
		PostgresDSN: cfg.Database.PostgresDSN,
		LogLevel:    logger.Silent, // gorm must not write to stdout in stdio mode
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	log.Info("database ready", zap.String("type", cfg.Database.Type))

	gen, err := narrative.NewGeneratorFromConfig(cfg.Narrative)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to create narrative generator: %w", err)
	}
	if gen != nil {
		log.Info("narratives enabled",
			zap.String("provider", cfg.Narrative.Provider),
			zap.String("model", cfg.Narrative.Model))
	}

	m := metrics.New()
	svc := tracker.New(store.New(db), tracker.Options{
		TrendTolerance:    cfg.Progress.TrendTolerance,
		FeatureDimensions: cfg.Progress.FeatureDimensions,
		Generator:         gen,
		Metrics:           m,
		Logger:            log,
	})

	return &app{
		cfg:     cfg,
		logger:  log,
		db:      db,
		metrics: m,
		tokens:  auth.NewTokenManager(db, cfg.Security.TokenTTL),
		tracker: svc,
	}, nil
}

func (a *app) localAuthenticator(useAccessingUser bool) *auth.LocalAuthenticator {
	if useAccessingUser {
		return auth.NewLocalAuthenticatorWithAccessingUser(a.tokens)
	}
	return auth.NewLocalAuthenticator(a.tokens)
}

func (a *app) Close() {
	if err := database.Close(a.db); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	_ = logging.Sync(a.logger)
}

// bootstrap loads configuration and builds the app
func bootstrap(port int) (*app, error) {
	cfg, err := loadConfig(port)
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}

// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tejzpr/dermtrack/internal/auth"
	"github.com/tejzpr/dermtrack/internal/server"
	"github.com/tejzpr/dermtrack/pkg/scheduler"
	"go.uber.org/zap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST API",
	Long: `Serve the REST API under /api/v1. Requests need a bearer token; POST
/auth/local issues one for the system user running the server.

Examples:
  dermtrack serve --port 9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Server port")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(servePort)
	if err != nil {
		return err
	}
	defer a.Close()

	localAuth := a.localAuthenticator(false)
	if username, err := localAuth.GetLocalUsername(); err == nil {
		a.logger.Info("local authentication initialized", zap.String("system_user", username))
	}

	httpServer, err := server.NewHTTPServer(a.tracker, server.HTTPOptions{
		Server:    a.cfg.Server,
		Auth:      auth.NewMiddleware(a.tokens).RequireAuth(),
		LocalAuth: localAuth,
		DB:        a.db,
		Metrics:   a.metrics,
		Logger:    a.logger.Named("http"),
	})
	if err != nil {
		return err
	}

	if minutes := a.cfg.Scheduler.NarrativeBackfillMinutes; minutes > 0 && a.tracker.NarrativesEnabled() {
		sched := scheduler.NewScheduler(a.tracker, minutes, a.logger.Named("scheduler"))
		sched.Start()
		defer sched.Stop()
		a.logger.Info("narrative backfill scheduler started", zap.Int("interval_minutes", minutes))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

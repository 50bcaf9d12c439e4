package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/holdings-cli/internal/api"
	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/runner"
)

const shutdownTimeout = 15 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the holdings API server and scheduler",
	Long:  "Serves the REST API for 13F runs and stored holdings. When f13.schedule_enabled is set, also runs the quarterly sync on f13.schedule.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		r := newRunner(cfg)
		defer r.Close()

		if cfg.F13.ScheduleEnabled {
			sched, err := newScheduler(ctx, cfg.F13.Schedule, r)
			if err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()
			zap.L().Info("13F schedule enabled", zap.String("schedule", cfg.F13.Schedule))
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.NewServer(cfg.Server, r, st).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// scheduledRunner is the part of runner.Runner the scheduler needs.
type scheduledRunner interface {
	RunSync(ctx context.Context, req runner.Request) (*model.Run, error)
}

// newScheduler registers the recurring sync job. A tick that fires while a
// run is active is dropped.
func newScheduler(ctx context.Context, spec string, r scheduledRunner) (*cron.Cron, error) {
	c := cron.New()
	err := c.AddFunc(spec, func() {
		scheduledSync(ctx, r)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "serve: invalid f13.schedule %q", spec)
	}
	return c, nil
}

func scheduledSync(ctx context.Context, r scheduledRunner) {
	log := zap.L().With(zap.String("trigger", runner.TriggerSchedule))
	run, err := r.RunSync(ctx, runner.Request{Trigger: runner.TriggerSchedule})
	switch {
	case errors.Is(err, runner.ErrRunInProgress):
		log.Info("scheduled 13F sync skipped: run in progress")
	case err != nil:
		log.Error("scheduled 13F sync failed", zap.Error(err))
	default:
		log.Info("scheduled 13F sync finished", zap.String("run_id", run.ID), zap.String("status", string(run.Status)))
	}
}

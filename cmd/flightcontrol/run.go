package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"

	"go.viam.com/flightcontrol/config"
	"go.viam.com/flightcontrol/flight"
	"go.viam.com/flightcontrol/logging"
	"go.viam.com/flightcontrol/telemetry"
)

// runCommand flies the demo script in real time until ctx is done or the --duration elapses.
func runCommand(ctx context.Context, c *cli.Context, cfg *config.Config, logger logging.Logger) error {
	if d := c.Duration(flagDuration); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	reg := prometheus.NewRegistry()
	metrics, err := telemetry.NewMetricsSink(reg)
	if err != nil {
		return err
	}
	latest := telemetry.NewLatest()
	telemetryLogger := logger.Sublogger("telemetry")
	emitter, err := telemetry.NewEmitter(cfg.TelemetryHz, telemetryLogger, metrics, latest, telemetry.NewLogSink(telemetryLogger))
	if err != nil {
		return err
	}
	v, err := newVehicle(ctx, cfg, clock.New(), emitter, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           newMux(reg, latest, v.loop),
		ReadHeaderTimeout: 5 * time.Second,
	}
	v.loop.Start()
	workers := goutils.NewBackgroundStoppableWorkers(
		func(ctx context.Context) {
			logger.Infow("serving telemetry", "address", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("telemetry server failed", "error", err)
			}
		},
		func(ctx context.Context) {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warnw("telemetry server shutdown", "error", err)
			}
		},
	)
	if path := c.String(flagConfig); path != "" {
		level := baseLevel(c)
		workers.Add(func(ctx context.Context) {
			err := config.Watch(ctx, path, logger.Sublogger("config"), func(next *config.Config) {
				if err := v.loop.SetGains(ctx, next.Flight().PID); err != nil {
					logger.Warnw("not applying new gains", "error", err)
				}
				if err := logging.ApplyLevels(logger, level, next.Log); err != nil {
					logger.Warnw("not applying some log levels", "error", err)
				}
			})
			if err != nil {
				logger.Errorw("config watcher stopped", "error", err)
			}
		})
	}

	<-ctx.Done()
	workers.Stop()
	stats := v.loop.Stats()
	logger.Infow("flight finished", "mode", v.ctrl.Mode(), "cycles", stats.Cycles,
		"overruns", stats.Overruns, "p99", stats.P99)
	return v.loop.Close(context.Background())
}

// newMux serves Prometheus metrics, the latest status, loop timing and the rearm action.
func newMux(reg *prometheus.Registry, latest *telemetry.Latest, loop *flight.Loop) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/status", latest)
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(loop.Stats()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	mux.HandleFunc("/rearm", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "use POST", http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := loop.Rearm(ctx); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

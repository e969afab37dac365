package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lexiqai/meeting-summarizer/internal/apperrors"
	"github.com/lexiqai/meeting-summarizer/internal/observability"
	"github.com/lexiqai/meeting-summarizer/internal/watcher"
)

func newWatchCommand(opts *options) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Summarize every recording dropped into a directory",
		Long: `Watch a directory and summarize each new recording, one at a time.
Failed recordings are logged and skipped.

When METRICS_ENABLED is set, /metrics, /health and /ready are served on
METRICS_ADDR.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}

			var authErr error
			handle := func(ctx context.Context, path string) error {
				err := a.process(ctx, path)
				if apperrors.IsKind(err, apperrors.KindAuthentication) {
					// Every later recording would fail the same way
					authErr = err
					cancel()
				}
				return err
			}

			w, err := watcher.New(args[0], debounce, handle, observability.WithComponent("watcher"))
			if err != nil {
				return err
			}
			defer w.Stop()

			if a.cfg.MetricsEnabled {
				server := a.metricsServer()
				go func() {
					a.logger.Info().Str("addr", server.Addr).Msg("Metrics server listening")
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error().Err(err).Msg("Metrics server failed")
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := server.Shutdown(shutdownCtx); err != nil {
						a.logger.Error().Err(err).Msg("Metrics server shutdown failed")
					}
				}()
			}

			err = w.Start(ctx)
			if authErr != nil {
				return authErr
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "How long a new file must be unchanged before it is processed")
	return cmd
}

func (a *app) metricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", observability.HealthCheckHandler(serviceName, version))
	mux.HandleFunc("/ready", observability.ReadinessHandler(serviceName, version, map[string]observability.HealthCheckFunc{
		"ffmpeg": func(ctx context.Context) (bool, error) {
			if _, err := exec.LookPath(a.cfg.FFmpegPath); err != nil {
				return false, fmt.Errorf("ffmpeg not found: %w", err)
			}
			return true, nil
		},
		"output_dir": func(ctx context.Context) (bool, error) {
			return a.cfg.OutputDir != "", nil
		},
	}))

	return &http.Server{
		Addr:         a.cfg.MetricsAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

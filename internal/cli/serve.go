package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"spilld/internal/config"
	"spilld/internal/device"
	"spilld/internal/httpapi"
	"spilld/internal/lifecycle"
	"spilld/internal/spill"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP admin API over a simulated device",
		Example: "  spilld serve --spill --device-capacity 1073741824 --spill-device-limit 536870912",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts, lookupEnv)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, cmd.ErrOrStderr())
		},
	}
}

// newService wires a simulated device, the manager lifecycle and the HTTP
// service from cfg.
func newService(cfg config.Config, logger zerolog.Logger) (*httpapi.ManagerService, *lifecycle.Global) {
	dev := device.NewSimulated(device.SimulatedConfig{CapacityBytes: cfg.DeviceCapacity})
	mlog := logger.With().Str("component", "spill").Logger()
	events := httpapi.NewEventLog(0)
	g := lifecycle.New(
		lifecycle.WithBaseConfig(cfg),
		// the environment was already folded into cfg
		lifecycle.WithLookupEnv(func(string) (string, bool) { return "", false }),
		lifecycle.WithManagerConfig(spill.ManagerConfig{
			Allocator: dev,
			Logger:    &mlog,
			Publisher: spill.MultiPublisher{httpapi.MetricsPublisher{}, events},
		}),
	)
	svc := httpapi.NewManagerService(g, dev).WithEvents(events).WithMaxAllocation(cfg.MaxAllocation)
	return svc, g
}

func serve(ctx context.Context, cfg config.Config, logOut io.Writer) error {
	logger := newLogger(logOut, cfg.LogLevel, cfg.LogJSON)
	httpapi.SetLogger(logger)
	httpapi.SetRequestLogLevel(cfg.LogLevel)
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins,
		[]string{"GET", "POST", "DELETE", "OPTIONS"}, []string{"Content-Type", "X-Log-Level"})
	httpapi.SetRateLimit(cfg.RateLimit, cfg.RateBurst)

	svc, g := newService(cfg, logger)
	defer svc.Close()
	if err := prometheus.Register(httpapi.NewStatusCollector(svc)); err != nil {
		logger.Warn().Err(err).Msg("status collector not registered")
	}
	opts, err := g.Options()
	if err != nil {
		return err
	}
	if !opts.Enabled {
		logger.Warn().Msg("spilling is disabled; buffer endpoints will return 503")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Bool("spill", opts.Enabled).Bool("spill_on_demand", opts.SpillOnDemand).
			Int64("device_capacity", cfg.DeviceCapacity).Msg("spilld listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	// Graceful shutdown (Ctrl+C / SIGTERM)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
		return err
	}
	logger.Info().Msg("spilld stopped")
	return nil
}

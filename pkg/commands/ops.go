package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/sofiapulse/pulse/pkg/configuration"
	"github.com/sofiapulse/pulse/pkg/metrics"
)

// newOpsCmd serves the operational endpoints: Prometheus metrics and a
// health check. The engine itself stays batch; this process only observes.
func newOpsCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "ops",
		Short:         "Serve the metrics and health endpoints",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := configuration.Use()
			logger := conf.Logger()

			r := mux.NewRouter()
			metrics.NewPrometheusController(conf.Prometheus.Path).Register(r)

			srv := &http.Server{
				Addr:         fmt.Sprintf(":%d", conf.OpsPort),
				Handler:      r,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			logger.Infof("ops server listening on %s", srv.Addr)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("ops server stopped")
			return nil
		},
	}
}

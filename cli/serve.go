package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"telemetry-peak-analyzer/analytics"
	"telemetry-peak-analyzer/config"
	"telemetry-peak-analyzer/handlers"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the baseline, the latest peaks and on-demand analyses over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", config.DefaultServeAddr, "listen address")
	a.bind(cmd.Flags(), map[string]string{config.KeyServeAddr: "addr"})
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger, cleanup, err := a.setup()
	if err != nil {
		return err
	}
	defer cleanup()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	run := func(ctx context.Context, start, end time.Time, threshold int) (*analytics.RunResult, error) {
		analyzer, err := newAnalyzer(cfg, logger, start, end)
		if err != nil {
			return nil, err
		}
		if threshold == 0 {
			threshold = cfg.Threshold
		}
		return analytics.Run(ctx, analyzer, st, threshold)
	}

	srv := &http.Server{
		Addr:           cfg.Serve.Addr,
		Handler:        handlers.NewRouter(handlers.NewPeakHandler(st, run, logger)),
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   10 * time.Minute,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	ln, err := net.Listen("tcp", cfg.Serve.Addr)
	if err != nil {
		return err
	}
	return serveUntilDone(ctx, srv, ln, logger)
}

// serveUntilDone serves on ln until ctx is cancelled, then shuts srv down
// gracefully.
func serveUntilDone(ctx context.Context, srv *http.Server, ln net.Listener, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Server exited")
	return nil
}

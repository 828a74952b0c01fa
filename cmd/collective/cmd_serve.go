package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collective/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	serveAddr      string
	serveAutostart bool
)

// serveCmd runs the HTTP boundary until interrupted
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the colony over HTTP and WebSocket",
	Long: `Boots the kernel from config, restores saved state and serves the JSON API,
the /api/stream snapshot WebSocket and Prometheus metrics on /metrics.

On SIGINT or SIGTERM the kernel is stopped and its state saved.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveAutostart, "autostart", false, "Start the tick loop immediately")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	col, err := openColony(ctx, cfg)
	if err != nil {
		return err
	}

	srvCfg := cfg.Server
	if serveAddr != "" {
		srvCfg.Addr = serveAddr
	}
	srv := server.New(col.kernel, srvCfg, nil)

	if serveAutostart {
		col.kernel.Init()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", zap.String("addr", srvCfg.Addr))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("Collective serving", zap.String("addr", srvCfg.Addr), zap.Bool("autostart", serveAutostart))
	serveErr := g.Wait()

	closeErr := col.close(context.Background(), true)
	if serveErr != nil {
		return serveErr
	}
	return closeErr
}

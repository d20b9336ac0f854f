package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/motiondeck/internal/demos"
	apperrors "github.com/conneroisu/motiondeck/internal/errors"
	"github.com/conneroisu/motiondeck/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the deck server",
	Long: `Start the deck server. The shell page renders the requested group,
redirecting to its canonical id, and a WebSocket pushes catalog reloads
and demo state to the browser.

Examples:
  motiondeck serve                          # Serve the built-in manifest
  motiondeck serve -p 3000                  # Serve on another port
  motiondeck serve --manifest deck.yml -w   # Reload the catalog when deck.yml changes`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().BoolP("watch", "w", false, "Reload the catalog when the manifest changes")
	serveCmd.Flags().Bool("strict", false, "Treat undocumented components as fatal")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("catalog.watch", serveCmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("catalog.strict", serveCmd.Flags().Lookup("strict"))
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(os.Stderr)
	if err != nil {
		return err
	}

	srv, err := server.New(a.cfg, server.Deps{
		Catalog: a.catalog,
		Units:   demos.Lookup,
		Logger:  a.logger,
		Metrics: a.metrics,
		Faults:  apperrors.NewFaultLog(100),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Starting motiondeck at http://%s (%s)\n", a.cfg.Addr(), a.cfg.Variant())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		_ = a.Close(context.Background())
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error(shutdownCtx, err, "Error during server shutdown")
	}
	if err := a.Close(shutdownCtx); err != nil {
		a.logger.Error(shutdownCtx, err, "Error flushing traces")
	}
	return <-errCh
}

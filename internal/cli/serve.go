// internal/cli/serve.go
package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"codeharvest/internal/api"
	"codeharvest/internal/jobs"
	"codeharvest/internal/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API.",
	Long: `Serve exposes the collection over HTTP: search, file CRUD, tags,
statistics, export, sync and background crawl jobs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr == "" {
			serveAddr = cfg.HTTPAddr
		}
		policy, err := store.ParseConflictPolicy(cfg.ConflictPolicy)
		if err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		router := api.NewRouter(st, metadataStore(), newCrawler(), jobs.NewRegistry(logger), policy, logger)

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		server := &http.Server{
			Addr:              serveAddr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("HTTP server listening", "addr", serveAddr)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
				return
			}
			errCh <- nil
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

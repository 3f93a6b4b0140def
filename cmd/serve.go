package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/square-images/internal/handlers"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port string
	flags := &pipelineFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start an HTTP server that runs downloads on request",
		Long: `Starts a small JSON API on the specified port.

POST /api/runs starts a download run in the background and returns its id.
GET /api/runs lists runs and GET /api/runs/{id} returns one run with its log
lines and progress. DELETE /api/runs/{id} forgets a finished run. The token in the request body overrides the server's
default token.`,
		Example: `  # Start server on default port 8888
  square-images serve

  # Start server on custom port, writing JPEG files
  square-images serve --port 3000 --format jpeg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := flags.build(opts)
			if err != nil {
				return err
			}
			handler := handlers.New(p, flags.resolveToken())

			mux := http.NewServeMux()
			mux.HandleFunc("/api/runs", handler.HandleRuns)
			mux.HandleFunc("/api/runs/", handler.HandleRunDetail)
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				slog.Info("square-images API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")

	return cmd
}

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"pdf-chat/internal/session"
	"pdf-chat/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web UI",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides server.addr")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, closeStores, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStores()

	sessions := session.NewManager(pipeline, cfg.Server.SessionTTL)
	server, err := web.NewServer(cfg, sessions)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return err
	}

	swept := make(chan struct{})
	go func() {
		sessions.Run(ctx)
		close(swept)
	}()
	defer func() {
		stop()
		<-swept
	}()

	srv := &http.Server{
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serveHTTP(ctx, srv, ln, sessions, cfg.Server.ShutdownTimeout)
}

// serveHTTP serves on ln until ctx is done or the server fails. Sessions are
// closed only after in-flight requests have drained.
func serveHTTP(ctx context.Context, srv *http.Server, ln net.Listener, sessions *session.Manager, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("Starting server")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var err error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
	case err = <-errCh:
	}

	sessions.Close(context.Background())
	log.Info().Msg("Server exited")
	return err
}

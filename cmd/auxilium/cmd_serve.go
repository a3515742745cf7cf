package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/selkane/auxilium/internal/adapters/http"
	"github.com/selkane/auxilium/internal/domain"
	"github.com/selkane/auxilium/internal/observability"
)

func init() {
	serveCmd.Flags().String("session", "", "resume this session id")
	serveCmd.Flags().String("language", "auto", "initial answer language")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve one conversation session over HTTP",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionID, _ := cmd.Flags().GetString("session")
	lang, _ := cmd.Flags().GetString("language")

	sess, err := openSession(ctx, cfg, domain.SessionID(sessionID), domain.ParseLanguage(lang))
	if err != nil {
		return err
	}
	defer sess.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpadapter.NewServer(sess.svc, sess.ingestor, sess.player),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		observability.Logger().Info("auxilium api listening", "port", cfg.Port)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	observability.Logger().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

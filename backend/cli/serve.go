package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PhilHem/log-sentinel/backend/alerts"
	"github.com/PhilHem/log-sentinel/backend/analysis"
	"github.com/PhilHem/log-sentinel/backend/config"
	"github.com/PhilHem/log-sentinel/backend/database"
	"github.com/PhilHem/log-sentinel/backend/handlers"
	"github.com/PhilHem/log-sentinel/backend/ingest"
	"github.com/PhilHem/log-sentinel/backend/logger"
	"github.com/PhilHem/log-sentinel/backend/middleware"
	"github.com/PhilHem/log-sentinel/backend/parser"
	"github.com/PhilHem/log-sentinel/backend/stats"
	"github.com/PhilHem/log-sentinel/backend/store"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(cfgFile); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return serve(config.C)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// buildHandler wires every component onto db and returns the root handler.
// Background loops started here stop when ctx is done.
func buildHandler(ctx context.Context, cfg config.Config, db *gorm.DB) (http.Handler, error) {
	sess, err := handlers.NewSessionStore(cfg.Session.Secret, cfg.Session.Timeout, cfg.TLS.Enabled)
	if err != nil {
		return nil, err
	}

	st := store.New(db)
	client := analysis.NewClient(analysis.ClientOptions{
		URL:         cfg.Analysis.URL,
		MaxAttempts: cfg.Analysis.MaxAttempts,
		RetryDelay:  cfg.Analysis.RetryDelay,
		Timeout:     cfg.Analysis.Timeout,
	})
	api, err := handlers.New(handlers.Deps{
		DB:       db,
		Sessions: sess,
		Store:    st,
		Ingest: ingest.New(st, ingest.Options{
			UploadDir: cfg.UploadDir,
			MaxSize:   cfg.Upload.MaxSize,
			Parser: parser.Options{
				MaxLineSize: cfg.Parser.MaxLineSize,
				BatchSize:   cfg.Parser.BatchSize,
			},
		}),
		Analysis:  analysis.NewService(st, client, alerts.New(st, alerts.Options{Dedupe: cfg.Analysis.DedupeAlerts}), cfg.Analysis.MaxRecords),
		Stats:     stats.New(st),
		MaxUpload: cfg.Upload.MaxSize,
	})
	if err != nil {
		return nil, err
	}

	// 10 auth attempts per minute per client
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	authLimiter.TrustProxy = cfg.TrustProxy
	go authLimiter.Run(ctx)

	csrf := middleware.NewCSRFProtection(cfg.Session.Secret, cfg.TLS.Enabled)
	var h http.Handler = api.Routes(authLimiter)
	h = csrf.Protect(h)
	h = middleware.SecurityHeaders(h)
	h = middleware.RequestID(h)
	return h, nil
}

func serve(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(logger.NewDBHandler(db, os.Stdout, slog.LevelInfo)))
	go logger.CleanupOldEvents(ctx, db, cfg.Logs.Retention, cfg.Logs.CleanupInterval)

	handler, err := buildHandler(ctx, cfg, db)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "source", "main", "listen", cfg.Listen, "tls", cfg.TLS.Enabled, "analysis_url", cfg.Analysis.URL)
		if cfg.TLS.Enabled {
			errCh <- srv.ListenAndServeTLS(cfg.TLS.Cert, cfg.TLS.Key)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("server shutting down", "source", "main")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

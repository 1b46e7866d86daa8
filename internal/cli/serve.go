package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/KeaPin/kami/internal/api"
	"github.com/KeaPin/kami/internal/app/redeem"
	"github.com/KeaPin/kami/internal/infra/auth"
	"github.com/KeaPin/kami/internal/infra/observability"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kami HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		// Ephemeral secret: admin tokens stop working on restart.
		secret = randomSecret()
		log.Warn("no jwt_secret configured, using an ephemeral secret; set KAMI_JWT_SECRET for stable sessions")
	}

	metrics := observability.New()
	authSvc := auth.New(db, auth.Config{
		Secret:          secret,
		TokenTTL:        time.Duration(cfg.Auth.TokenTTLHours) * time.Hour,
		DefaultUsername: cfg.Auth.AdminUsername,
		DefaultPassword: cfg.Auth.AdminPassword,
	})
	engine := redeem.NewEngine(db, db, metrics)
	issuer := redeem.NewIssuer(db, metrics)
	server := api.NewServer(db, engine, issuer, authSvc, metrics, cfg.Limits.VerifyPerMinute)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Addr()).Info("kami API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func randomSecret() string {
	buf := make([]byte, 32)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

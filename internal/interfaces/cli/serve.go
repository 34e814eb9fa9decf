package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	"github.com/jhoicas/hkd-sync/internal/domain"
	httpRouter "github.com/jhoicas/hkd-sync/internal/interfaces/http"
)

// NewServeCommand crea el comando serve.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "API HTTP local, orquestador de sincronización y monitor de conectividad",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *RootOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.Config

	a.Log.Info().
		Str("env", cfg.App.Env).
		Str("remote", cfg.Remote.Backend).
		Str("db", cfg.Local.Path).
		Msg("iniciando terminal")

	go a.Monitor.Run(ctx, a.Tree.Ping, cfg.Remote.ProbeInterval, cfg.Remote.Timeout)
	go a.Sync.Run(ctx)

	// Sesión persistida de una ejecución anterior: se refresca la copia local.
	if sess, err := a.Resolver.Current(ctx); err == nil {
		a.Sync.PullInBackground(ctx, sess.BusinessUnitID)
	} else if !errors.Is(err, domain.ErrUnauthorized) && !errors.Is(err, domain.ErrSessionExpired) {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ReadTimeout:           time.Second * 10,
		WriteTimeout:          time.Minute,
		IdleTimeout:           time.Second * 60,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	if cfg.HTTP.DocsPath != "" {
		cleanup, err := httpRouter.Docs(app, cfg.HTTP.DocsPath)
		if err != nil {
			return err
		}
		defer cleanup()
	}
	httpRouter.Router(app, httpRouter.RouterDeps{
		Resolver:   a.Resolver,
		CatalogUC:  a.Catalog,
		UnitUC:     a.Units,
		Sync:       a.Sync,
		SessionTTL: cfg.Auth.SessionTTL,
	})

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info().Str("addr", cfg.HTTP.Addr()).Msg("servidor HTTP escuchando")
		errCh <- app.Listen(cfg.HTTP.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.Log.Info().Msg("apagando servidor")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

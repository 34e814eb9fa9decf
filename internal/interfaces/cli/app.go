package cli

import (
	"context"
	"errors"
	"fmt"

	appauth "github.com/jhoicas/hkd-sync/internal/application/auth"
	appsync "github.com/jhoicas/hkd-sync/internal/application/sync"
	"github.com/jhoicas/hkd-sync/internal/application/usecase"
	"github.com/jhoicas/hkd-sync/internal/domain"
	"github.com/jhoicas/hkd-sync/internal/infrastructure/firebase"
	"github.com/jhoicas/hkd-sync/internal/infrastructure/notify"
	"github.com/jhoicas/hkd-sync/internal/infrastructure/postgres"
	"github.com/jhoicas/hkd-sync/internal/infrastructure/redis"
	"github.com/jhoicas/hkd-sync/internal/infrastructure/remote"
	"github.com/jhoicas/hkd-sync/internal/infrastructure/sqlite"
	"github.com/jhoicas/hkd-sync/pkg/config"
	"github.com/jhoicas/hkd-sync/pkg/logger"
	"github.com/jhoicas/hkd-sync/pkg/phone"
)

// App contenedor con todas las piezas cableadas para un proceso del terminal.
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Tree     remote.Tree
	Monitor  *remote.Monitor
	Remote   *remote.Client
	Sync     *appsync.Orchestrator
	Resolver *appauth.Resolver
	Catalog  *usecase.CatalogUseCase
	Units    *usecase.UnitUseCase

	closers []func()
}

// Build abre el almacén local, conecta el backend remoto configurado y arma
// orquestador, resolver y casos de uso. Sin conexión remota el arranque no falla:
// el monitor empieza desconectado.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	db, err := sqlite.Open(ctx, cfg.Local.Path)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = db.Close() })

	tree, closeTree, err := openTree(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeTree)
	a.Tree = tree

	pctx, cancel := context.WithTimeout(ctx, cfg.Remote.Timeout)
	pingErr := tree.Ping(pctx)
	cancel()
	if pingErr != nil {
		log.Warn().Err(pingErr).Str("backend", cfg.Remote.Backend).Msg("remoto no disponible al arrancar, se trabaja sin conexión")
	}

	phones := phone.NewNormalizer(cfg.Auth.PhoneRegion)
	a.Monitor = remote.NewMonitor(pingErr == nil, log)
	a.Remote = remote.NewClient(tree, a.Monitor, phones, cfg.Remote.Timeout, log)

	store := sqlite.NewEntityStore(db)
	queue := sqlite.NewMutationQueue(db)

	a.Sync = appsync.New(store, queue, a.Remote, notify.New(cfg.Notify.Sink, log), appsync.Config{
		BatchSize:     cfg.Sync.BatchSize,
		MaxAttempts:   cfg.Sync.MaxAttempts,
		BaseBackoff:   cfg.Sync.BaseBackoff,
		MaxBackoff:    cfg.Sync.MaxBackoff,
		RemoteTimeout: cfg.Remote.Timeout,
		TickInterval:  cfg.Sync.TickInterval,
	}, log)

	current := appauth.NewSessionContext()
	a.Resolver = appauth.NewResolver(store, queue, a.Remote, sqlite.NewSessionStore(db), a.Sync, current, phones, appauth.Config{
		AdminIdentifier: cfg.Auth.AdminIdentifier,
		AdminSecret:     cfg.Auth.AdminSecret,
		SessionTTL:      cfg.Auth.SessionTTL,
		SigningKey:      cfg.Auth.SigningKey,
		Issuer:          cfg.Auth.Issuer,
	}, log)
	a.Catalog = usecase.NewCatalogUseCase(store, queue, a.Sync, current, nil)
	a.Units = usecase.NewUnitUseCase(store, queue, a.Sync, current, phones, nil)
	return a, nil
}

// openTree crea el backend remoto elegido en REMOTE_BACKEND y su función de cierre.
func openTree(ctx context.Context, cfg *config.Config, log *logger.Logger) (remote.Tree, func(), error) {
	switch cfg.Remote.Backend {
	case config.RemoteMemory:
		return remote.NewMemoryTree(), func() {}, nil
	case config.RemoteFirebase:
		t, err := firebase.NewTree(ctx, cfg.Remote.FirebaseURL, cfg.Remote.FirebaseCredentials)
		if err != nil {
			return nil, nil, err
		}
		return t, func() {}, nil
	case config.RemotePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		t := postgres.NewNodeTree(pool, pool)
		if err := t.Migrate(ctx); err != nil {
			if !errors.Is(err, domain.ErrRemoteUnavailable) {
				pool.Close()
				return nil, nil, err
			}
			// La tabla se crea en el próximo arranque con conexión.
			log.Warn().Err(err).Msg("migración remota pendiente")
		}
		return t, pool.Close, nil
	case config.RemoteRedis:
		rdb := redis.NewClient(cfg.Redis)
		return redis.NewTree(rdb, cfg.Redis.Prefix), func() { _ = rdb.Close() }, nil
	}
	return nil, nil, fmt.Errorf("backend remoto desconocido %q", cfg.Remote.Backend)
}

// Close espera las tareas en segundo plano y libera recursos en orden inverso.
func (a *App) Close() {
	if a.Sync != nil {
		a.Sync.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Package auth resuelve credenciales a una sesión: primero el almacén local,
// luego el remoto, y al entrar por remoto dispara el pull de la unidad.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/hkd-sync/internal/application/ports"
	"github.com/jhoicas/hkd-sync/internal/domain"
	"github.com/jhoicas/hkd-sync/internal/domain/entity"
	"github.com/jhoicas/hkd-sync/internal/domain/repository"
	"github.com/jhoicas/hkd-sync/pkg/jwt"
	"github.com/jhoicas/hkd-sync/pkg/logger"
	"github.com/jhoicas/hkd-sync/pkg/phone"
)

// Config parámetros de login y sesión.
type Config struct {
	AdminIdentifier string
	AdminSecret     string
	SessionTTL      time.Duration
	SigningKey      string
	Issuer          string
	Clock           func() time.Time
}

// Syncer lo que el resolver necesita del orquestador.
type Syncer interface {
	PullInBackground(ctx context.Context, unitID string)
	RequestDrain(ctx context.Context, unitID string)
}

// Resolver implementa login, sesión vigente, logout y cambio de secreto.
// Los secretos se comparan en claro: limitación conocida, no una frontera de seguridad.
type Resolver struct {
	store    repository.EntityStore
	queue    repository.MutationQueue
	remote   ports.RemoteStore
	sessions repository.SessionStore
	syncer   Syncer
	current  *SessionContext
	phones   phone.Normalizer
	cfg      Config
	log      *logger.Logger
}

// NewResolver construye el resolver.
func NewResolver(
	store repository.EntityStore,
	queue repository.MutationQueue,
	remote ports.RemoteStore,
	sessions repository.SessionStore,
	syncer Syncer,
	current *SessionContext,
	phones phone.Normalizer,
	cfg Config,
	log *logger.Logger,
) *Resolver {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{
		store:    store,
		queue:    queue,
		remote:   remote,
		sessions: sessions,
		syncer:   syncer,
		current:  current,
		phones:   phones,
		cfg:      cfg,
		log:      log.Component("auth"),
	}
}

// SessionContext devuelve el contexto de sesión compartido.
func (r *Resolver) SessionContext() *SessionContext { return r.current }

// Login resuelve (identifier, secret) a una sesión:
//  1. admin reservado: asegura la unidad admin local (bootstrap);
//  2. unidad local con el mismo teléfono normalizado y secreto: sin llamar al remoto;
//  3. búsqueda remota; si coincide se guarda la info local y se lanza el pull en segundo plano.
//
// ErrRemoteUnavailable solo si el identificador no existe localmente y el remoto no responde.
func (r *Resolver) Login(ctx context.Context, identifier, secret string) (entity.Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return entity.Session{}, domain.ErrInvalidCredential
	}

	if identifier == r.cfg.AdminIdentifier && secret == r.cfg.AdminSecret {
		unit, err := r.ensureAdmin(ctx)
		if err != nil {
			return entity.Session{}, err
		}
		return r.startSession(ctx, unit)
	}

	unit, knownLocally, err := r.findLocal(ctx, identifier, secret)
	if err != nil {
		return entity.Session{}, err
	}
	if unit != nil {
		r.log.Info().Str("unit_id", unit.ID).Msg("login local")
		return r.startSession(ctx, *unit)
	}

	found, err := r.remote.FindUnitByCredential(ctx, identifier, secret)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return entity.Session{}, domain.ErrInvalidCredential
	case errors.Is(err, domain.ErrRemoteUnavailable):
		if knownLocally {
			return entity.Session{}, domain.ErrInvalidCredential
		}
		return entity.Session{}, fmt.Errorf("login: %w", err)
	case err != nil:
		return entity.Session{}, fmt.Errorf("login: %w", err)
	}

	doc, err := entity.NewDocument(found, true)
	if err != nil {
		return entity.Session{}, fmt.Errorf("login: %w", err)
	}
	if err := r.store.Put(ctx, doc); err != nil {
		return entity.Session{}, fmt.Errorf("login: %w", err)
	}
	sess, err := r.startSession(ctx, found)
	if err != nil {
		return entity.Session{}, err
	}
	r.log.Info().Str("unit_id", found.ID).Msg("login remoto, pull en segundo plano")
	r.syncer.PullInBackground(ctx, found.ID)
	return sess, nil
}

// findLocal recorre las unidades locales. known indica si algún teléfono coincidió.
func (r *Resolver) findLocal(ctx context.Context, identifier, secret string) (unit *entity.BusinessUnit, known bool, err error) {
	want := r.phones.Normalize(identifier)
	filter := repository.Filter{Match: func(d entity.Document) bool {
		u, err := entity.Decode[entity.BusinessUnit](d)
		return err == nil && r.phones.Normalize(u.Phone) == want
	}}
	for doc, err := range r.store.Query(ctx, entity.CollectionUnits, filter) {
		if err != nil {
			return nil, known, fmt.Errorf("login: %w", err)
		}
		u, err := entity.Decode[entity.BusinessUnit](doc)
		if err != nil {
			continue
		}
		known = true
		if u.Secret == secret {
			return &u, true, nil
		}
	}
	return nil, known, nil
}

func (r *Resolver) ensureAdmin(ctx context.Context) (entity.BusinessUnit, error) {
	id := r.cfg.AdminIdentifier
	doc, err := r.store.Get(ctx, entity.CollectionUnits, id)
	if err == nil {
		if u, derr := entity.Decode[entity.BusinessUnit](doc); derr == nil && u.Role == entity.RoleAdmin {
			return u, nil
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return entity.BusinessUnit{}, fmt.Errorf("admin bootstrap: %w", err)
	}

	admin := entity.BusinessUnit{
		ID:          id,
		Phone:       id,
		Name:        "Administrador",
		Role:        entity.RoleAdmin,
		Secret:      r.cfg.AdminSecret,
		LastUpdated: r.cfg.Clock().UTC(),
	}
	doc, err = entity.NewDocument(admin, true)
	if err != nil {
		return entity.BusinessUnit{}, fmt.Errorf("admin bootstrap: %w", err)
	}
	if err := r.store.Put(ctx, doc); err != nil {
		return entity.BusinessUnit{}, fmt.Errorf("admin bootstrap: %w", err)
	}
	r.log.Info().Str("unit_id", id).Msg("unidad admin creada")
	return admin, nil
}

func (r *Resolver) startSession(ctx context.Context, u entity.BusinessUnit) (entity.Session, error) {
	sess := entity.Session{
		UserID:         u.ID,
		BusinessUnitID: u.ID,
		Role:           u.Role,
		LoginTimestamp: r.cfg.Clock().UTC(),
	}
	token, err := jwt.Generate(r.cfg.SigningKey, r.cfg.Issuer, sess.UserID, sess.BusinessUnitID, sess.Role, sess.LoginTimestamp, r.cfg.SessionTTL)
	if err != nil {
		return entity.Session{}, fmt.Errorf("session token: %w", err)
	}
	sess.Token = token
	if err := r.sessions.Save(ctx, token); err != nil {
		return entity.Session{}, fmt.Errorf("save session: %w", err)
	}
	r.current.Set(sess)
	return sess, nil
}

// Current carga y valida la sesión persistida. Vencida (now - login >= TTL) se borra
// y devuelve ErrSessionExpired; sin sesión devuelve ErrUnauthorized.
func (r *Resolver) Current(ctx context.Context) (entity.Session, error) {
	token, err := r.sessions.Load(ctx)
	if err != nil {
		return entity.Session{}, fmt.Errorf("load session: %w", err)
	}
	if token == "" {
		r.current.Clear()
		return entity.Session{}, domain.ErrUnauthorized
	}

	now := r.cfg.Clock()
	claims, err := jwt.Parse(r.cfg.SigningKey, token, now)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return entity.Session{}, r.expire(ctx)
		}
		r.log.Warn().Err(err).Msg("sesión persistida inválida, se descarta")
		if cerr := r.clear(ctx); cerr != nil {
			return entity.Session{}, cerr
		}
		return entity.Session{}, domain.ErrUnauthorized
	}

	sess := entity.Session{
		UserID:         claims.UserID,
		BusinessUnitID: claims.BusinessUnitID,
		Role:           claims.Role,
		LoginTimestamp: claims.LoginTime(),
		Token:          token,
	}
	if sess.ExpiredAt(now, r.cfg.SessionTTL) {
		return entity.Session{}, r.expire(ctx)
	}
	r.current.Set(sess)
	return sess, nil
}

func (r *Resolver) expire(ctx context.Context) error {
	if err := r.clear(ctx); err != nil {
		return err
	}
	return domain.ErrSessionExpired
}

func (r *Resolver) clear(ctx context.Context) error {
	r.current.Clear()
	if err := r.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Logout borra la sesión persistida y la del proceso. Idempotente.
func (r *Resolver) Logout(ctx context.Context) error {
	return r.clear(ctx)
}

// ChangeSecret actualiza el secreto de la unidad localmente (sin sincronizar)
// y encola la escritura de su info. Un operador solo puede cambiar el de su unidad.
func (r *Resolver) ChangeSecret(ctx context.Context, unitID, newSecret string) error {
	if strings.TrimSpace(newSecret) == "" {
		return fmt.Errorf("%w: secreto vacío", domain.ErrInvalidInput)
	}
	sess, err := r.Current(ctx)
	if err != nil {
		return err
	}
	if sess.Role != entity.RoleAdmin && sess.BusinessUnitID != unitID {
		return domain.ErrForbidden
	}

	doc, err := r.store.Get(ctx, entity.CollectionUnits, unitID)
	if err != nil {
		return fmt.Errorf("change secret: %w", err)
	}
	unit, err := entity.Decode[entity.BusinessUnit](doc)
	if err != nil {
		return fmt.Errorf("change secret: %w", err)
	}
	unit.ID = unitID
	unit.Secret = newSecret
	unit.LastUpdated = r.cfg.Clock().UTC()

	doc, err = entity.NewDocument(unit, false)
	if err != nil {
		return fmt.Errorf("change secret: %w", err)
	}
	if err := r.store.Put(ctx, doc); err != nil {
		return fmt.Errorf("change secret: %w", err)
	}
	if _, err := r.queue.Enqueue(ctx, entity.SyncQueueEntry{
		BusinessUnitID: unitID,
		Collection:     entity.CollectionUnits,
		EntityID:       unitID,
		Op:             entity.OpPut,
		Payload:        doc.Data,
		Version:        doc.UpdatedAt,
	}); err != nil {
		return fmt.Errorf("change secret: %w", err)
	}
	r.log.Info().Str("unit_id", unitID).Msg("secreto actualizado, info encolada")
	r.syncer.RequestDrain(ctx, unitID)
	return nil
}

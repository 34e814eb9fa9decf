package usecase

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/hkd-sync/internal/application/auth"
	"github.com/jhoicas/hkd-sync/internal/application/dto"
	"github.com/jhoicas/hkd-sync/internal/domain"
	"github.com/jhoicas/hkd-sync/internal/domain/entity"
	"github.com/jhoicas/hkd-sync/internal/domain/repository"
	"github.com/jhoicas/hkd-sync/pkg/phone"
)

// UnitUseCase registro y consulta de unidades de negocio.
type UnitUseCase struct {
	w       writer
	session *auth.SessionContext
	phones  phone.Normalizer
}

// NewUnitUseCase construye el caso de uso. now nil usa time.Now.
func NewUnitUseCase(
	store repository.EntityStore,
	queue repository.MutationQueue,
	syncer Syncer,
	session *auth.SessionContext,
	phones phone.Normalizer,
	now func() time.Time,
) *UnitUseCase {
	if now == nil {
		now = time.Now
	}
	return &UnitUseCase{
		w:       writer{store: store, queue: queue, syncer: syncer, now: now},
		session: session,
		phones:  phones,
	}
}

// Register crea una unidad operadora (solo admin). El teléfono se guarda en E.164 y debe
// ser único entre los operadores conocidos localmente. La info se encola hacia el remoto.
func (uc *UnitUseCase) Register(ctx context.Context, in dto.RegisterUnitRequest) (*dto.UnitResponse, error) {
	if err := uc.requireAdmin(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || strings.TrimSpace(in.Secret) == "" {
		return nil, domain.ErrInvalidInput
	}
	if !uc.phones.Valid(in.Phone) {
		return nil, fmt.Errorf("%w: teléfono %q inválido", domain.ErrInvalidInput, in.Phone)
	}
	normalized := uc.phones.Normalize(in.Phone)

	taken, err := collect(ctx, uc.w.store, entity.CollectionUnits, "", func(d entity.Document) bool {
		u, err := entity.Decode[entity.BusinessUnit](d)
		return err == nil && u.IsOperator() && uc.phones.Normalize(u.Phone) == normalized
	})
	if err != nil {
		return nil, err
	}
	if len(taken) > 0 {
		return nil, domain.ErrDuplicate
	}

	u := entity.BusinessUnit{
		ID:          uuid.New().String(),
		Phone:       normalized,
		Name:        name,
		Address:     strings.TrimSpace(in.Address),
		Role:        entity.RoleOperator,
		Secret:      in.Secret,
		LastUpdated: uc.w.now().UTC(),
	}
	doc, err := uc.w.put(ctx, u)
	if err != nil {
		return nil, err
	}
	resp := toUnitResponse(u, doc.Synced)
	return &resp, nil
}

// List devuelve todas las unidades locales al admin y solo la propia a un operador.
func (uc *UnitUseCase) List(ctx context.Context) (*dto.UnitListResponse, error) {
	sess, ok := uc.session.Get()
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	owner := ""
	if sess.Role != entity.RoleAdmin {
		owner = sess.BusinessUnitID
	}
	docs, err := collect(ctx, uc.w.store, entity.CollectionUnits, owner, nil)
	if err != nil {
		return nil, err
	}
	items := make([]dto.UnitResponse, 0, len(docs))
	for _, d := range docs {
		u, err := entity.Decode[entity.BusinessUnit](d)
		if err != nil {
			return nil, err
		}
		items = append(items, toUnitResponse(u, d.Synced))
	}
	slices.SortFunc(items, func(a, b dto.UnitResponse) int { return strings.Compare(a.Name, b.Name) })
	return &dto.UnitListResponse{Items: items}, nil
}

// Get obtiene una unidad visible para la sesión.
func (uc *UnitUseCase) Get(ctx context.Context, id string) (*dto.UnitResponse, error) {
	id, err := uc.session.Unit(id)
	if err != nil {
		return nil, err
	}
	doc, err := uc.w.store.Get(ctx, entity.CollectionUnits, id)
	if err != nil {
		return nil, err
	}
	u, err := entity.Decode[entity.BusinessUnit](doc)
	if err != nil {
		return nil, err
	}
	resp := toUnitResponse(u, doc.Synced)
	return &resp, nil
}

func (uc *UnitUseCase) requireAdmin() error {
	sess, ok := uc.session.Get()
	if !ok {
		return domain.ErrUnauthorized
	}
	if sess.Role != entity.RoleAdmin {
		return domain.ErrForbidden
	}
	return nil
}

func toUnitResponse(u entity.BusinessUnit, synced bool) dto.UnitResponse {
	return dto.UnitResponse{
		ID:          u.ID,
		Phone:       u.Phone,
		Name:        u.Name,
		Address:     u.Address,
		Role:        u.Role,
		Synced:      synced,
		LastUpdated: u.LastUpdated,
	}
}

package usecase

import (
	"cmp"
	"context"
	"errors"
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
	"github.com/jhoicas/hkd-sync/pkg/textsearch"
)

// CatalogUseCase productos, categorías y facturas de la unidad de la sesión.
// Las lecturas salen solo del almacén local; las escrituras se encolan hacia el remoto.
type CatalogUseCase struct {
	w       writer
	session *auth.SessionContext
}

// NewCatalogUseCase construye el caso de uso. now nil usa time.Now.
func NewCatalogUseCase(
	store repository.EntityStore,
	queue repository.MutationQueue,
	syncer Syncer,
	session *auth.SessionContext,
	now func() time.Time,
) *CatalogUseCase {
	if now == nil {
		now = time.Now
	}
	return &CatalogUseCase{
		w:       writer{store: store, queue: queue, syncer: syncer, now: now},
		session: session,
	}
}

// unit resuelve la unidad de la sesión y espera a que su pull termine.
func (uc *CatalogUseCase) unit(ctx context.Context, requested string) (string, error) {
	unitID, err := uc.session.Unit(requested)
	if err != nil {
		return "", err
	}
	if err := uc.w.ready(ctx, unitID); err != nil {
		return "", err
	}
	return unitID, nil
}

// ─── Productos ──────────────────────────────────────────────────────────────

// ListProducts lista los productos ordenados por nombre; page.Query filtra sin tildes ni mayúsculas.
func (uc *CatalogUseCase) ListProducts(ctx context.Context, page dto.PageRequest) (*dto.ProductListResponse, error) {
	unitID, err := uc.unit(ctx, page.UnitID)
	if err != nil {
		return nil, err
	}
	page.Normalize()

	var match func(entity.Document) bool
	if q := strings.TrimSpace(page.Query); q != "" {
		match = func(d entity.Document) bool {
			p, err := entity.Decode[entity.Product](d)
			return err == nil && textsearch.Contains(p.Name, q)
		}
	}
	docs, err := collect(ctx, uc.w.store, entity.CollectionProducts, unitID, match)
	if err != nil {
		return nil, err
	}

	items := make([]dto.ProductResponse, 0, len(docs))
	for _, d := range docs {
		p, err := entity.Decode[entity.Product](d)
		if err != nil {
			return nil, err
		}
		items = append(items, toProductResponse(p, d.Synced))
	}
	slices.SortFunc(items, func(a, b dto.ProductResponse) int {
		return cmp.Or(strings.Compare(textsearch.Fold(a.Name), textsearch.Fold(b.Name)), strings.Compare(a.ID, b.ID))
	})

	from, to := page.Window(len(items))
	return &dto.ProductListResponse{
		Items: items[from:to],
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: len(items)},
	}, nil
}

// GetProduct obtiene un producto de la unidad.
func (uc *CatalogUseCase) GetProduct(ctx context.Context, unitID, id string) (*dto.ProductResponse, error) {
	unitID, err := uc.unit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	doc, err := uc.w.owned(ctx, entity.CollectionProducts, unitID, id)
	if err != nil {
		return nil, err
	}
	p, err := entity.Decode[entity.Product](doc)
	if err != nil {
		return nil, err
	}
	resp := toProductResponse(p, doc.Synced)
	return &resp, nil
}

// SaveProduct crea (id vacío) o reemplaza un producto.
func (uc *CatalogUseCase) SaveProduct(ctx context.Context, unitID, id string, in dto.SaveProductRequest) (*dto.ProductResponse, error) {
	unitID, err := uc.unit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" || in.Price.IsNegative() {
		return nil, domain.ErrInvalidInput
	}
	if err := uc.w.requireUnit(ctx, unitID); err != nil {
		return nil, err
	}
	if in.CategoryID != "" {
		if _, err := uc.w.owned(ctx, entity.CollectionCategories, unitID, in.CategoryID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: categoría %s inexistente", domain.ErrInvalidInput, in.CategoryID)
			}
			return nil, err
		}
	}
	if id == "" {
		id = uuid.New().String()
	} else if err := uc.checkOwnership(ctx, entity.CollectionProducts, unitID, id); err != nil {
		return nil, err
	}

	p := entity.Product{
		ID:             id,
		BusinessUnitID: unitID,
		CategoryID:     in.CategoryID,
		Name:           name,
		Price:          in.Price,
		Unit:           strings.TrimSpace(in.Unit),
		UpdatedAt:      uc.w.now().UTC(),
	}
	doc, err := uc.w.put(ctx, p)
	if err != nil {
		return nil, err
	}
	resp := toProductResponse(p, doc.Synced)
	return &resp, nil
}

// DeleteProduct borra el producto localmente y encola el borrado remoto.
func (uc *CatalogUseCase) DeleteProduct(ctx context.Context, unitID, id string) error {
	unitID, err := uc.unit(ctx, unitID)
	if err != nil {
		return err
	}
	return uc.w.delete(ctx, entity.CollectionProducts, unitID, id)
}

// checkOwnership impide reutilizar el id de un documento de otra unidad.
func (uc *CatalogUseCase) checkOwnership(ctx context.Context, c entity.Collection, unitID, id string) error {
	doc, err := uc.w.store.Get(ctx, c, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	case doc.BusinessUnitID != unitID:
		return domain.ErrForbidden
	}
	return nil
}

// ─── Categorías ─────────────────────────────────────────────────────────────

// ListCategories lista las categorías de la unidad por nombre.
func (uc *CatalogUseCase) ListCategories(ctx context.Context, unitID string) (*dto.CategoryListResponse, error) {
	unitID, err := uc.unit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	docs, err := collect(ctx, uc.w.store, entity.CollectionCategories, unitID, nil)
	if err != nil {
		return nil, err
	}
	items := make([]dto.CategoryResponse, 0, len(docs))
	for _, d := range docs {
		c, err := entity.Decode[entity.Category](d)
		if err != nil {
			return nil, err
		}
		items = append(items, toCategoryResponse(c, d.Synced))
	}
	slices.SortFunc(items, func(a, b dto.CategoryResponse) int {
		return cmp.Or(strings.Compare(textsearch.Fold(a.Name), textsearch.Fold(b.Name)), strings.Compare(a.ID, b.ID))
	})
	return &dto.CategoryListResponse{Items: items}, nil
}

// SaveCategory crea (id vacío) o renombra una categoría.
func (uc *CatalogUseCase) SaveCategory(ctx context.Context, unitID, id string, in dto.SaveCategoryRequest) (*dto.CategoryResponse, error) {
	unitID, err := uc.unit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := uc.w.requireUnit(ctx, unitID); err != nil {
		return nil, err
	}
	if id == "" {
		id = uuid.New().String()
	} else if err := uc.checkOwnership(ctx, entity.CollectionCategories, unitID, id); err != nil {
		return nil, err
	}

	c := entity.Category{ID: id, BusinessUnitID: unitID, Name: name, UpdatedAt: uc.w.now().UTC()}
	doc, err := uc.w.put(ctx, c)
	if err != nil {
		return nil, err
	}
	resp := toCategoryResponse(c, doc.Synced)
	return &resp, nil
}

// DeleteCategory borra la categoría. Los productos que la referencian la conservan como dato histórico.
func (uc *CatalogUseCase) DeleteCategory(ctx context.Context, unitID, id string) error {
	unitID, err := uc.unit(ctx, unitID)
	if err != nil {
		return err
	}
	return uc.w.delete(ctx, entity.CollectionCategories, unitID, id)
}

func toProductResponse(p entity.Product, synced bool) dto.ProductResponse {
	return dto.ProductResponse{
		ID:             p.ID,
		BusinessUnitID: p.BusinessUnitID,
		CategoryID:     p.CategoryID,
		Name:           p.Name,
		Price:          p.Price,
		Unit:           p.Unit,
		Synced:         synced,
		UpdatedAt:      p.UpdatedAt,
	}
}

func toCategoryResponse(c entity.Category, synced bool) dto.CategoryResponse {
	return dto.CategoryResponse{
		ID:             c.ID,
		BusinessUnitID: c.BusinessUnitID,
		Name:           c.Name,
		Synced:         synced,
		UpdatedAt:      c.UpdatedAt,
	}
}

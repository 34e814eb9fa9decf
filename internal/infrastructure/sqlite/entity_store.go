package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/jhoicas/hkd-sync/internal/domain"
	"github.com/jhoicas/hkd-sync/internal/domain/entity"
	"github.com/jhoicas/hkd-sync/internal/domain/repository"
)

// queryPageSize filas leídas por página en Query; la conexión no se retiene entre páginas.
const queryPageSize = 200

var collectionTables = map[entity.Collection]string{
	entity.CollectionUnits:      "business_units",
	entity.CollectionProducts:   "products",
	entity.CollectionCategories: "categories",
	entity.CollectionInvoices:   "invoices",
}

func tableFor(c entity.Collection) (string, error) {
	t, ok := collectionTables[c]
	if !ok {
		return "", fmt.Errorf("%w: colección desconocida %q", domain.ErrInvalidInput, c)
	}
	return t, nil
}

// EntityStore implementación del puerto EntityStore sobre SQLite.
type EntityStore struct {
	db *DB
}

var _ repository.EntityStore = (*EntityStore)(nil)

// NewEntityStore construye el almacén de entidades.
func NewEntityStore(db *DB) *EntityStore {
	return &EntityStore{db: db}
}

func (s *EntityStore) Get(ctx context.Context, c entity.Collection, id string) (entity.Document, error) {
	table, err := tableFor(c)
	if err != nil {
		return entity.Document{}, err
	}
	row := s.db.db.QueryRowContext(ctx,
		"SELECT id, business_unit_id, data, synced, updated_at FROM "+table+" WHERE id = ?", id)
	d, err := scanDocument(row, c)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Document{}, domain.ErrNotFound
	}
	if err != nil {
		return entity.Document{}, fmt.Errorf("get %s %s: %w", c, id, err)
	}
	return d, nil
}

// Put inserta o sobrescribe todos los campos del documento (upsert por id).
func (s *EntityStore) Put(ctx context.Context, doc entity.Document) error {
	table, err := tableFor(doc.Collection)
	if err != nil {
		return err
	}
	if doc.ID == "" || doc.BusinessUnitID == "" || len(doc.Data) == 0 {
		return fmt.Errorf("%w: documento %s incompleto", domain.ErrInvalidInput, doc.Collection)
	}
	_, err = s.db.db.ExecContext(ctx, `
		INSERT INTO `+table+` (id, business_unit_id, data, synced, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			business_unit_id = excluded.business_unit_id,
			data             = excluded.data,
			synced           = excluded.synced,
			updated_at       = excluded.updated_at`,
		doc.ID, doc.BusinessUnitID, string(doc.Data), doc.Synced, toNanos(doc.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put %s %s: %w", doc.Collection, doc.ID, err)
	}
	return nil
}

// Refresh upsert condicionado: no toca filas con synced = 0.
func (s *EntityStore) Refresh(ctx context.Context, doc entity.Document) (bool, error) {
	table, err := tableFor(doc.Collection)
	if err != nil {
		return false, err
	}
	if doc.ID == "" || doc.BusinessUnitID == "" || len(doc.Data) == 0 {
		return false, fmt.Errorf("%w: documento %s incompleto", domain.ErrInvalidInput, doc.Collection)
	}
	res, err := s.db.db.ExecContext(ctx, `
		INSERT INTO `+table+` (id, business_unit_id, data, synced, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			business_unit_id = excluded.business_unit_id,
			data             = excluded.data,
			synced           = 1,
			updated_at       = excluded.updated_at
		WHERE `+table+`.synced = 1`,
		doc.ID, doc.BusinessUnitID, string(doc.Data), toNanos(doc.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("refresh %s %s: %w", doc.Collection, doc.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("refresh %s %s: %w", doc.Collection, doc.ID, err)
	}
	return n > 0, nil
}

func (s *EntityStore) Delete(ctx context.Context, c entity.Collection, id string) error {
	table, err := tableFor(c)
	if err != nil {
		return err
	}
	if _, err := s.db.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete %s %s: %w", c, id, err)
	}
	return nil
}

func (s *EntityStore) MarkSynced(ctx context.Context, c entity.Collection, id string, version time.Time) (bool, error) {
	table, err := tableFor(c)
	if err != nil {
		return false, err
	}
	res, err := s.db.db.ExecContext(ctx,
		"UPDATE "+table+" SET synced = 1 WHERE id = ? AND updated_at = ?", id, toNanos(version))
	if err != nil {
		return false, fmt.Errorf("mark synced %s %s: %w", c, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark synced %s %s: %w", c, id, err)
	}
	return n > 0, nil
}

// Query recorre la colección en orden de id, por páginas. Cada recorrido vuelve a consultar.
func (s *EntityStore) Query(ctx context.Context, c entity.Collection, f repository.Filter) iter.Seq2[entity.Document, error] {
	return func(yield func(entity.Document, error) bool) {
		table, err := tableFor(c)
		if err != nil {
			yield(entity.Document{}, err)
			return
		}
		after := ""
		for {
			page, err := s.page(ctx, table, c, f, after)
			if err != nil {
				yield(entity.Document{}, fmt.Errorf("query %s: %w", c, err))
				return
			}
			for _, d := range page {
				if f.Match != nil && !f.Match(d) {
					continue
				}
				if !yield(d, nil) {
					return
				}
			}
			if len(page) < queryPageSize {
				return
			}
			after = page[len(page)-1].ID
		}
	}
}

func (s *EntityStore) page(ctx context.Context, table string, c entity.Collection, f repository.Filter, after string) ([]entity.Document, error) {
	where := []string{"id > ?"}
	args := []any{after}
	if f.BusinessUnitID != "" {
		where = append(where, "business_unit_id = ?")
		args = append(args, f.BusinessUnitID)
	}
	if f.Synced != nil {
		where = append(where, "synced = ?")
		args = append(args, *f.Synced)
	}
	args = append(args, queryPageSize)

	rows, err := s.db.db.QueryContext(ctx,
		"SELECT id, business_unit_id, data, synced, updated_at FROM "+table+
			" WHERE "+strings.Join(where, " AND ")+" ORDER BY id LIMIT ?", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.Document
	for rows.Next() {
		d, err := scanDocument(rows, c)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(r scanner, c entity.Collection) (entity.Document, error) {
	var (
		d       entity.Document
		data    string
		updated int64
	)
	if err := r.Scan(&d.ID, &d.BusinessUnitID, &data, &d.Synced, &updated); err != nil {
		return entity.Document{}, err
	}
	d.Collection = c
	d.Data = []byte(data)
	d.UpdatedAt = fromNanos(updated)
	return d, nil
}

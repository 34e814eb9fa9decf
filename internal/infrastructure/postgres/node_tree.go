package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/hkd-sync/internal/domain"
	"github.com/jhoicas/hkd-sync/internal/infrastructure/remote"
)

// Querier abstrae pool o transacción.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pinger lo implementa *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

const nodesSchema = `
CREATE TABLE IF NOT EXISTS remote_nodes (
    path       TEXT PRIMARY KEY,
    value      JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NodeTree implementación de remote.Tree sobre la tabla remote_nodes: una fila por hoja.
type NodeTree struct {
	q Querier
	p Pinger
}

var _ remote.Tree = (*NodeTree)(nil)

// NewNodeTree construye el árbol. q suele ser el mismo pool que p.
func NewNodeTree(q Querier, p Pinger) *NodeTree {
	return &NodeTree{q: q, p: p}
}

// Migrate crea la tabla si no existe.
func (t *NodeTree) Migrate(ctx context.Context) error {
	if _, err := t.q.Exec(ctx, nodesSchema); err != nil {
		return classify("migrate remote_nodes", err)
	}
	return nil
}

func (t *NodeTree) Get(ctx context.Context, path string) (json.RawMessage, error) {
	var raw []byte
	err := t.q.QueryRow(ctx, `SELECT value FROM remote_nodes WHERE path = $1`, path).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, classify("get node "+path, err)
	}
	return raw, nil
}

func (t *NodeTree) List(ctx context.Context, prefix string) ([]remote.Node, error) {
	prefix = strings.Trim(prefix, "/")
	pattern := "%"
	if prefix != "" {
		pattern = escapeLike(prefix) + "/%"
	}
	rows, err := t.q.Query(ctx, `
		SELECT path, value FROM remote_nodes
		WHERE path = $2 OR path LIKE $1 ESCAPE '\'
		ORDER BY path COLLATE "C"`, pattern, prefix)
	if err != nil {
		return nil, classify("list nodes "+prefix, err)
	}
	defer rows.Close()

	var out []remote.Node
	for rows.Next() {
		var (
			n   remote.Node
			raw []byte
		)
		if err := rows.Scan(&n.Path, &raw); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		n.Value = raw
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list nodes "+prefix, err)
	}
	return out, nil
}

// Set hace upsert de la hoja; con value nil la elimina.
func (t *NodeTree) Set(ctx context.Context, path string, value json.RawMessage) error {
	if value == nil {
		if _, err := t.q.Exec(ctx, `DELETE FROM remote_nodes WHERE path = $1`, path); err != nil {
			return classify("delete node "+path, err)
		}
		return nil
	}
	_, err := t.q.Exec(ctx, `
		INSERT INTO remote_nodes (path, value, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		path, string(value))
	if err != nil {
		return classify("set node "+path, err)
	}
	return nil
}

func (t *NodeTree) Ping(ctx context.Context) error {
	if err := t.p.Ping(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// classify separa caídas de conexión (ErrRemoteUnavailable) de errores del servidor.
func classify(op string, err error) error {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || remote.IsTransportError(err) {
		return remote.Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

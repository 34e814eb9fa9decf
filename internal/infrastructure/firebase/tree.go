// Package firebase backend del árbol remoto sobre Firebase Realtime Database.
package firebase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"

	"github.com/jhoicas/hkd-sync/internal/domain"
	"github.com/jhoicas/hkd-sync/internal/domain/entity"
	"github.com/jhoicas/hkd-sync/internal/infrastructure/remote"
)

// Tree árbol remoto sobre una Realtime Database. Las rutas del dominio se usan tal cual como refs.
type Tree struct {
	client *db.Client
}

var _ remote.Tree = (*Tree)(nil)

// NewTree inicializa la app de Firebase y el cliente de la base.
// credentials acepta ruta a archivo, JSON en línea o JSON en base64; vacío usa ADC.
func NewTree(ctx context.Context, databaseURL, credentials string) (*Tree, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: databaseURL}, credentialOptions(credentials)...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase database: %w", err)
	}
	return &Tree{client: client}, nil
}

func credentialOptions(cred string) []option.ClientOption {
	cred = strings.TrimSpace(cred)
	if cred == "" {
		return nil
	}
	if strings.HasPrefix(cred, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cred))}
	}
	if decoded, err := base64.StdEncoding.DecodeString(cred); err == nil && strings.HasPrefix(strings.TrimSpace(string(decoded)), "{") {
		return []option.ClientOption{option.WithCredentialsJSON(decoded)}
	}
	return []option.ClientOption{option.WithCredentialsFile(cred)}
}

func (t *Tree) Get(ctx context.Context, path string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := t.client.NewRef(path).Get(ctx, &raw); err != nil {
		return nil, classify("firebase get "+path, err)
	}
	if isNull(raw) {
		return nil, domain.ErrNotFound
	}
	return raw, nil
}

// List lee el subárbol de prefix en una sola petición y lo aplana en hojas de entidad.
func (t *Tree) List(ctx context.Context, prefix string) ([]remote.Node, error) {
	prefix = strings.Trim(prefix, "/")
	var raw json.RawMessage
	if err := t.client.NewRef(prefix).Get(ctx, &raw); err != nil {
		return nil, classify("firebase list "+prefix, err)
	}
	var out []remote.Node
	if !isNull(raw) {
		flatten(prefix, raw, &out)
	}
	remote.SortNodes(out)
	return out, nil
}

func (t *Tree) Set(ctx context.Context, path string, value json.RawMessage) error {
	ref := t.client.NewRef(path)
	if value == nil {
		if err := ref.Delete(ctx); err != nil {
			return classify("firebase delete "+path, err)
		}
		return nil
	}
	if err := ref.Set(ctx, value); err != nil {
		return classify("firebase set "+path, err)
	}
	return nil
}

// Ping consulta la primera clave de units, lo mínimo que prueba lectura autenticada.
func (t *Tree) Ping(ctx context.Context) error {
	var m map[string]json.RawMessage
	if err := t.client.NewRef("units").OrderByKey().LimitToFirst(1).Get(ctx, &m); err != nil {
		return classify("firebase ping", err)
	}
	return nil
}

// flatten recorre el JSON anidado hasta las hojas de entidad; lo que no encaja en
// el esquema units/{id}/... se ignora.
func flatten(path string, raw json.RawMessage, out *[]remote.Node) {
	if entity.IsLeafPath(path) {
		*out = append(*out, remote.Node{Path: path, Value: raw})
		return
	}
	var children map[string]json.RawMessage
	if err := json.Unmarshal(raw, &children); err != nil {
		return
	}
	for k, v := range children {
		if isNull(v) {
			continue
		}
		child := k
		if path != "" {
			child = path + "/" + k
		}
		flatten(child, v, out)
	}
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

func classify(op string, err error) error {
	if remote.IsTransportError(err) {
		return remote.Unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

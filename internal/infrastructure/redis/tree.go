// Package redis backend del árbol remoto sobre Redis: una clave JSON por hoja
// y un sorted set lexicográfico con todas las rutas para recorrer subárboles en orden.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/hkd-sync/internal/domain"
	"github.com/jhoicas/hkd-sync/internal/infrastructure/remote"
	"github.com/jhoicas/hkd-sync/pkg/config"
)

// Tree implementación de remote.Tree sobre Redis.
type Tree struct {
	rdb    goredis.UniversalClient
	prefix string
}

var _ remote.Tree = (*Tree)(nil)

// NewClient crea el cliente Redis; la conexión se establece de forma perezosa.
func NewClient(cfg config.RedisConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 4,
	})
}

// NewTree construye el árbol con las claves bajo prefix.
func NewTree(rdb goredis.UniversalClient, prefix string) *Tree {
	if prefix == "" {
		prefix = "hkd"
	}
	return &Tree{rdb: rdb, prefix: prefix}
}

func (t *Tree) nodeKey(path string) string { return t.prefix + ":node:" + path }
func (t *Tree) indexKey() string           { return t.prefix + ":paths" }

func (t *Tree) Get(ctx context.Context, path string) (json.RawMessage, error) {
	raw, err := t.rdb.Get(ctx, t.nodeKey(path)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, classify("redis get "+path, err)
	}
	return raw, nil
}

func (t *Tree) List(ctx context.Context, prefix string) ([]remote.Node, error) {
	prefix = strings.Trim(prefix, "/")
	by := &goredis.ZRangeBy{Min: "-", Max: "+"}
	if prefix != "" {
		by = &goredis.ZRangeBy{Min: "[" + prefix, Max: "[" + prefix + "/\xff"}
	}
	all, err := t.rdb.ZRangeByLex(ctx, t.indexKey(), by).Result()
	if err != nil {
		return nil, classify("redis list "+prefix, err)
	}
	// El rango incluye hermanos como units/u1-b, que ordenan antes de "/".
	paths := all[:0]
	for _, p := range all {
		if remote.UnderPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil, nil
	}

	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = t.nodeKey(p)
	}
	values, err := t.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, classify("redis mget "+prefix, err)
	}

	out := make([]remote.Node, 0, len(paths))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // índice con una hoja ya borrada
		}
		out = append(out, remote.Node{Path: paths[i], Value: json.RawMessage(s)})
	}
	return out, nil
}

// Set escribe valor e índice en una transacción MULTI/EXEC.
func (t *Tree) Set(ctx context.Context, path string, value json.RawMessage) error {
	_, err := t.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if value == nil {
			pipe.Del(ctx, t.nodeKey(path))
			pipe.ZRem(ctx, t.indexKey(), path)
			return nil
		}
		pipe.Set(ctx, t.nodeKey(path), []byte(value), 0)
		pipe.ZAdd(ctx, t.indexKey(), goredis.Z{Score: 0, Member: path})
		return nil
	})
	if err != nil {
		return classify("redis set "+path, err)
	}
	return nil
}

func (t *Tree) Ping(ctx context.Context) error {
	if err := t.rdb.Ping(ctx).Err(); err != nil {
		return classify("redis ping", err)
	}
	return nil
}

// classify: una respuesta de error del servidor (redis.Error) es un rechazo;
// cualquier otra cosa es un fallo de conexión.
func classify(op string, err error) error {
	var replyErr goredis.Error
	if errors.As(err, &replyErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return remote.Unavailable(op, err)
}

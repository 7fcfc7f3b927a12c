package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"dice-drop-bot/internal/common/config"
	dd "dice-drop-bot/internal/domain/dice"
	redisp "dice-drop-bot/internal/platform/redis"
)

// Backend is a dice.Store with lifecycle hooks.
type Backend interface {
	dd.Store
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the backend selected by name.
func Open(ctx context.Context, cfg *config.Config, backend string) (Backend, error) {
	switch backend {
	case config.BackendFile:
		return NewFileStore(cfg.Store.Path), nil
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendSQLite:
		return OpenSQLite(ctx, cfg.Store.SQLitePath)
	case config.BackendRedis:
		client, err := redisp.Open(ctx, redisp.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis: %w", err)
		}
		return NewRedisStore(client, cfg.Store.Key), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// Encode marshals the document; indent selects the human-readable file layout.
func Encode(doc *dd.Document, indent bool) ([]byte, error) {
	if indent {
		return json.MarshalIndent(doc, "", "    ")
	}
	return json.Marshal(doc)
}

// Decode unmarshals and normalizes a document.
func Decode(data []byte) (*dd.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	doc := &dd.Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	doc.Normalize()
	return doc, nil
}

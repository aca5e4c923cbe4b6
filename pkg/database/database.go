// Package database provides the durable key-value backends of the flow store.
package database

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"indiflow/internal/config"
	"indiflow/internal/storage"
)

// Store is a KV backend that holds resources until closed.
type Store interface {
	storage.KV
	io.Closer
}

type memoryStore struct {
	*storage.MemoryKV
}

func (memoryStore) Close() error { return nil }

// Open returns the backend selected by cfg.Database.Driver.
func Open(cfg *config.Config, log *zap.Logger) (Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch cfg.Database.Driver {
	case "memory":
		return memoryStore{storage.NewMemoryKV()}, nil
	case "sqlite":
		kv, err := OpenSQLite(cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("database opened", zap.String("driver", "sqlite"), zap.String("path", cfg.Database.SQLitePath))
		return kv, nil
	case "mysql":
		return OpenMySQL(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

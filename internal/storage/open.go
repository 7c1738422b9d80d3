package storage

import (
	"clarity/internal/providers"
	"clarity/internal/structures"
	"context"
	"time"
)

// NewStorageProvider opens the configured backend. A backend that cannot be
// opened degrades to Unavailable instead of failing startup: the daemon still
// serves from the network, only without a durable cache.
func NewStorageProvider(conf *structures.Config, logger providers.Logger) (*KVS, func()) {
	var backend Backend
	switch conf.Storage.Driver {
	case "bolt":
		b, err := OpenBolt(conf.Storage.FilePath, conf.Storage.TablePrefix, DefaultIndexes)
		if err != nil {
			logger.Errorf(providers.TypeCache, "Unable to open bolt store %s: %s", conf.Storage.FilePath, err)
			backend = &Unavailable{Reason: "bolt: " + err.Error()}
			break
		}
		logger.Infof(providers.TypeCache, "Opened bolt store %s", conf.Storage.FilePath)
		backend = b
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b, err := OpenPostgres(ctx, conf.Storage.PostgresURL, conf.Storage.TablePrefix, DefaultIndexes)
		if err != nil {
			logger.Errorf(providers.TypeCache, "Unable to open postgres store: %s", err)
			backend = &Unavailable{Reason: "postgres: " + err.Error()}
			break
		}
		logger.Infof(providers.TypeCache, "Opened postgres store")
		backend = b
	default:
		logger.Warnf(providers.TypeCache, "Storage driver %q: running without a durable cache", conf.Storage.Driver)
		backend = &Unavailable{Reason: "storage disabled"}
	}

	kvs := NewKVS(backend)
	return kvs, func() {
		if err := kvs.Close(); err != nil {
			logger.Errorf(providers.TypeCache, "Error closing store: %s", err)
		}
	}
}

package persistence

import (
	"clarity/internal/localdb"
	"clarity/internal/persistence/interfaces"
	"clarity/internal/providers"
	"clarity/internal/query"
	"clarity/internal/structures"
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// StateKey is the generic cache key holding the saved query state.
const StateKey = "query-client-state"

const defaultStateTTL = 24 * time.Hour

// SnapshotManager saves the query client's state into the generic cache and,
// when a file path is configured, mirrors it to disk.
type SnapshotManager struct {
	queries    *query.Client
	db         *localdb.LocalDB
	compressor interfaces.CompressorInterface
	logger     providers.Logger
	metrics    providers.MetricsProviderInterface
	filePath   string
	ttl        time.Duration
}

func NewSnapshotManager(
	conf *structures.Config,
	queries *query.Client,
	db *localdb.LocalDB,
	compressor interfaces.CompressorInterface,
	logger providers.Logger,
	metrics providers.MetricsProviderInterface,
) *SnapshotManager {
	ttl := conf.Persistence.StateTTL
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &SnapshotManager{
		queries:    queries,
		db:         db,
		compressor: compressor,
		logger:     logger,
		metrics:    metrics,
		filePath:   conf.Persistence.FilePath,
		ttl:        ttl,
	}
}

func (m *SnapshotManager) Save(ctx context.Context) error {
	start := time.Now()
	defer func() { m.metrics.ObservePersistenceDuration(time.Since(start)) }()

	blob, err := m.queries.Dehydrate()
	if err != nil {
		return fmt.Errorf("dehydrate: %w", err)
	}
	data, err := m.compressor.Compress(blob)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}

	var errs []error
	if m.db.Available() {
		if err := m.db.SetCached(ctx, StateKey, data, m.ttl); err != nil {
			errs = append(errs, fmt.Errorf("store state: %w", err))
		}
	}
	if m.filePath != "" {
		if err := writeFileAtomic(m.filePath, data); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", m.filePath, err))
		}
	}
	return errors.Join(errs...)
}

// Load hydrates the query client from the saved state and returns how many
// entries were restored. Missing state is not an error.
func (m *SnapshotManager) Load(ctx context.Context) (int, error) {
	var data []byte
	found := false
	if m.db.Available() {
		ok, err := m.db.GetCachedInto(ctx, StateKey, &data)
		if err != nil {
			m.logger.Warnf(providers.TypeApp, "Unable to read saved query state: %s", err)
		}
		found = ok
	}
	if !found && m.filePath != "" {
		raw, err := os.ReadFile(m.filePath)
		if err != nil && !os.IsNotExist(err) {
			return 0, err
		}
		data = raw
	}
	if len(data) == 0 {
		return 0, nil
	}

	blob, err := m.compressor.Decompress(data)
	if err != nil {
		return 0, fmt.Errorf("decompress: %w", err)
	}
	return m.queries.Hydrate(blob, m.ttl)
}

func writeFileAtomic(fileName string, data []byte) error {
	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}
	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}
	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}
	return os.Rename(tmpFile, fileName)
}

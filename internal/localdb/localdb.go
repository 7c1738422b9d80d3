// Package localdb holds the cache-aside accessors: one load/save pair per entity
// over the key-value store. Accessors never judge freshness; callers compare
// LastUpdated against their TTL with models.IsFresh.
package localdb

import (
	"clarity/internal/models"
	"clarity/internal/providers"
	"clarity/internal/storage"
	"context"
	"fmt"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

type LocalDB struct {
	kvs    *storage.KVS
	hot    providers.CacheProviderInterface
	logger providers.Logger
	now    func() time.Time
}

func NewLocalDB(kvs *storage.KVS, hot providers.CacheProviderInterface, logger providers.Logger) *LocalDB {
	return &LocalDB{
		kvs:    kvs,
		hot:    hot,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the time source used to stamp LastUpdated and expire entries.
func (db *LocalDB) SetClock(now func() time.Time) {
	db.now = now
}

func (db *LocalDB) Now() time.Time {
	return db.now()
}

// Available reports whether the durable store is usable.
func (db *LocalDB) Available() bool {
	return db.kvs.Available()
}

func statsKey(timeRange models.TimeRange, institutionID string) string {
	return string(timeRange) + ":" + institutionID
}

func chartKey(metric models.Metric, year int, institutionID string) string {
	return string(metric) + ":" + strconv.Itoa(year) + ":" + institutionID
}

func decode[T any](raw []byte) (*T, error) {
	if raw == nil {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("corrupt record: %w", err)
	}
	return &out, nil
}

// LoadInstitution returns the stored snapshot of institution id, or nil.
func (db *LocalDB) LoadInstitution(ctx context.Context, id string) (*models.InstitutionSnapshot, error) {
	recs, err := db.kvs.GetAllByIndex(ctx, storage.TableInstitutions, storage.IndexByExternalID, id)
	if err != nil {
		return nil, err
	}
	return latestInstitution(recs)
}

// LoadLatestInstitution returns the most recently written institution, which is
// the logged-in admin's one.
func (db *LocalDB) LoadLatestInstitution(ctx context.Context) (*models.InstitutionSnapshot, error) {
	recs, err := db.kvs.GetAll(ctx, storage.TableInstitutions)
	if err != nil {
		return nil, err
	}
	return latestInstitution(recs)
}

func latestInstitution(recs []storage.Record) (*models.InstitutionSnapshot, error) {
	var best *models.InstitutionSnapshot
	for _, rec := range recs {
		snap, err := decode[models.InstitutionSnapshot](rec.Value)
		if err != nil {
			return nil, err
		}
		if best == nil || snap.LastUpdated >= best.LastUpdated {
			best = snap
		}
	}
	return best, nil
}

// SaveInstitution finds the record by external id and overwrites it, inserting
// only when none exists.
func (db *LocalDB) SaveInstitution(ctx context.Context, snap models.InstitutionSnapshot) (*models.InstitutionSnapshot, error) {
	if snap.ID == "" {
		return nil, fmt.Errorf("institution id required")
	}
	snap.LastUpdated = models.NowMs(db.now())

	err := db.kvs.Update(ctx, func(tx storage.Tx) error {
		existing, err := tx.ByIndex(storage.TableInstitutions, storage.IndexByExternalID, snap.ID)
		if err != nil {
			return err
		}

		var key string
		for i, rec := range existing {
			if i == 0 {
				key = rec.Key
				continue
			}
			if err := tx.Delete(storage.TableInstitutions, rec.Key); err != nil {
				return err
			}
		}
		if key == "" {
			id, err := tx.NextID(storage.TableInstitutions)
			if err != nil {
				return err
			}
			key = storage.FormatKey(id)
		}
		snap.LocalID, _ = strconv.ParseUint(key, 10, 64)

		raw, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		_, err = tx.Put(storage.TableInstitutions, key, raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// DropInstitution deletes the stored snapshot of institution id so the next
// read goes to the network.
func (db *LocalDB) DropInstitution(ctx context.Context, id string) (int, error) {
	return db.dropByIndex(ctx, storage.TableInstitutions, storage.IndexByExternalID, id)
}

func (db *LocalDB) LoadStats(ctx context.Context, timeRange models.TimeRange, institutionID string) (*models.DashboardStatsSnapshot, error) {
	raw, err := db.kvs.Get(ctx, storage.TableStats, statsKey(timeRange, institutionID))
	if err != nil {
		return nil, err
	}
	return decode[models.DashboardStatsSnapshot](raw)
}

func (db *LocalDB) SaveStats(ctx context.Context, snap models.DashboardStatsSnapshot) (*models.DashboardStatsSnapshot, error) {
	snap.LastUpdated = models.NowMs(db.now())
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	if _, err := db.kvs.Put(ctx, storage.TableStats, statsKey(snap.TimeRange, snap.InstitutionID), raw); err != nil {
		return nil, err
	}
	return &snap, nil
}

// DropStats deletes every stored stats snapshot of institutionID, whatever
// its range, and returns how many were removed.
func (db *LocalDB) DropStats(ctx context.Context, institutionID string) (int, error) {
	return db.dropByIndex(ctx, storage.TableStats, storage.IndexByInstitution, institutionID)
}

func (db *LocalDB) dropByIndex(ctx context.Context, table storage.Table, index, value string) (int, error) {
	removed := 0
	err := db.kvs.Update(ctx, func(tx storage.Tx) error {
		recs, err := tx.ByIndex(table, index, value)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if err := tx.Delete(table, rec.Key); err != nil {
				return err
			}
		}
		removed = len(recs)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (db *LocalDB) LoadChart(ctx context.Context, metric models.Metric, year int, institutionID string) (*models.ChartSeriesSnapshot, error) {
	raw, err := db.kvs.Get(ctx, storage.TableCharts, chartKey(metric, year, institutionID))
	if err != nil {
		return nil, err
	}
	return decode[models.ChartSeriesSnapshot](raw)
}

func (db *LocalDB) SaveChart(ctx context.Context, snap models.ChartSeriesSnapshot) (*models.ChartSeriesSnapshot, error) {
	snap.LastUpdated = models.NowMs(db.now())
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	if _, err := db.kvs.Put(ctx, storage.TableCharts, chartKey(snap.Metric, snap.Year, snap.InstitutionID), raw); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ClearAll wipes every table and the hot tier (logout, manual refresh).
func (db *LocalDB) ClearAll(ctx context.Context) error {
	db.hot.Clear()
	return db.kvs.Update(ctx, func(tx storage.Tx) error {
		for _, t := range storage.Tables {
			if err := tx.ClearTable(t); err != nil {
				return err
			}
		}
		return nil
	})
}

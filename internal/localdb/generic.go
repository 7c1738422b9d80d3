package localdb

import (
	"clarity/internal/models"
	"clarity/internal/providers"
	"clarity/internal/storage"
	"context"
	"math"
	"time"

	json "github.com/goccy/go-json"
)

const hotPrefix = "cache:"

// GetCached returns the entry stored under key, or nil when absent or expired.
// Expired entries are deleted on the way out.
func (db *LocalDB) GetCached(ctx context.Context, key string) (*models.GenericCacheEntry, error) {
	nowMs := models.NowMs(db.now())

	if raw, ok := db.hot.Get(hotPrefix + key); ok {
		if entry, err := decode[models.GenericCacheEntry](raw); err == nil && !entry.Expired(nowMs) {
			return entry, nil
		}
		db.hot.Del(hotPrefix + key)
	}

	raw, err := db.kvs.Get(ctx, storage.TableCache, key)
	if err != nil || raw == nil {
		return nil, err
	}
	entry, err := decode[models.GenericCacheEntry](raw)
	if err != nil {
		return nil, err
	}
	if entry.Expired(nowMs) {
		if err := db.kvs.Delete(ctx, storage.TableCache, key); err != nil {
			db.logger.Warnf(providers.TypeCache, "Unable to drop expired cache entry %s: %s", key, err)
		}
		return nil, nil
	}
	db.hot.Set(hotPrefix+key, raw, remaining(entry, nowMs))
	return entry, nil
}

// GetCachedInto decodes the payload of key into out and reports whether it was found.
func (db *LocalDB) GetCachedInto(ctx context.Context, key string, out any) (bool, error) {
	entry, err := db.GetCached(ctx, key)
	if err != nil || entry == nil {
		return false, err
	}
	if err := json.Unmarshal(entry.Payload, out); err != nil {
		return false, err
	}
	return true, nil
}

// SetCached replaces the entry under key in a single write.
func (db *LocalDB) SetCached(ctx context.Context, key string, payload any, ttl time.Duration) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	now := db.now()
	entry := models.GenericCacheEntry{
		Key:       key,
		Payload:   body,
		WrittenAt: models.NowMs(now),
		ExpiresAt: models.NowMs(now.Add(ttl)),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	db.hot.Del(hotPrefix + key)
	if _, err := db.kvs.Put(ctx, storage.TableCache, key, raw); err != nil {
		return err
	}
	db.hot.Set(hotPrefix+key, raw, ttl)
	return nil
}

func (db *LocalDB) DeleteCached(ctx context.Context, key string) error {
	db.hot.Del(hotPrefix + key)
	return db.kvs.Delete(ctx, storage.TableCache, key)
}

// SweepExpired deletes every generic entry past its expiry and returns how many were removed.
func (db *LocalDB) SweepExpired(ctx context.Context) (int, error) {
	nowMs := models.NowMs(db.now())
	removed := 0
	err := db.kvs.Update(ctx, func(tx storage.Tx) error {
		recs, err := tx.All(storage.TableCache)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			entry, err := decode[models.GenericCacheEntry](rec.Value)
			if err == nil && !entry.Expired(nowMs) {
				continue
			}
			if err := tx.Delete(storage.TableCache, rec.Key); err != nil {
				return err
			}
			db.hot.Del(hotPrefix + rec.Key)
			removed++
		}
		return nil
	})
	return removed, err
}

// remaining is how long entry stays valid after nowMs.
func remaining(entry *models.GenericCacheEntry, nowMs int64) time.Duration {
	if entry.ExpiresAt == 0 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(entry.ExpiresAt-nowMs) * time.Millisecond
}

package localdb

import (
	"clarity/internal/storage"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type couponPayload struct {
	Code     string `json:"code"`
	Discount int    `json:"discount"`
}

func TestLocalDB_CachedRoundTrip(t *testing.T) {
	db, _, hot := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetCached(ctx, "coupon:SAVE10", couponPayload{Code: "SAVE10", Discount: 10}, 10*time.Minute))
	assert.Contains(t, hot.Data, "cache:coupon:SAVE10")

	var out couponPayload
	found, err := db.GetCachedInto(ctx, "coupon:SAVE10", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 10, out.Discount)
}

func TestLocalDB_CachedReplacesSameKey(t *testing.T) {
	db, _, _ := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetCached(ctx, "k", couponPayload{Discount: 1}, time.Minute))
	require.NoError(t, db.SetCached(ctx, "k", couponPayload{Discount: 2}, time.Minute))

	var out couponPayload
	found, err := db.GetCachedInto(ctx, "k", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, out.Discount)

	recs, err := db.kvs.GetAll(ctx, storage.TableCache)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestLocalDB_GetCachedLazySweep(t *testing.T) {
	db, clock, hot := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetCached(ctx, "k", couponPayload{Discount: 1}, time.Minute))
	clock.Advance(2 * time.Minute)

	entry, err := db.GetCached(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.NotContains(t, hot.Data, "cache:k")

	raw, err := db.kvs.Get(ctx, storage.TableCache, "k")
	require.NoError(t, err)
	assert.Nil(t, raw, "expired entry must be deleted on read")
}

func TestLocalDB_GetCachedFallsBackToStore(t *testing.T) {
	db, _, hot := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetCached(ctx, "k", couponPayload{Discount: 3}, time.Minute))
	hot.Clear()

	entry, err := db.GetCached(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Contains(t, hot.Data, "cache:k", "store hit repopulates the hot tier")
}

func TestLocalDB_DeleteCached(t *testing.T) {
	db, _, hot := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetCached(ctx, "k", couponPayload{}, time.Minute))
	require.NoError(t, db.DeleteCached(ctx, "k"))
	require.NoError(t, db.DeleteCached(ctx, "k"))

	entry, err := db.GetCached(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.Empty(t, hot.Data)
}

func TestLocalDB_SweepExpired(t *testing.T) {
	db, clock, _ := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetCached(ctx, "short", couponPayload{}, time.Minute))
	require.NoError(t, db.SetCached(ctx, "long", couponPayload{}, time.Hour))
	clock.Advance(5 * time.Minute)

	removed, err := db.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	entry, err := db.GetCached(ctx, "long")
	require.NoError(t, err)
	assert.NotNil(t, entry)
}

package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only when CLARITY_TEST_POSTGRES_URL points at a scratch database.
func newPgKVS(t *testing.T) *KVS {
	t.Helper()
	url := os.Getenv("CLARITY_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("CLARITY_TEST_POSTGRES_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	prefix := fmt.Sprintf("t%d_", time.Now().UnixNano())
	b, err := OpenPostgres(ctx, url, prefix, DefaultIndexes)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = b.pool.Exec(context.Background(), "drop table if exists "+b.table)
		_, _ = b.pool.Exec(context.Background(), "drop sequence if exists "+b.sequence)
		_ = b.Close()
	})
	return NewKVS(b)
}

func TestPostgres_PutGetAndIndex(t *testing.T) {
	kvs := newPgKVS(t)
	ctx := context.Background()

	_, err := kvs.Put(ctx, TableInstitutions, "", []byte(`{"id":"ext-1","name":"Acme"}`))
	require.NoError(t, err)
	_, err = kvs.Put(ctx, TableInstitutions, "", []byte(`{"id":"ext-2","name":"Beta"}`))
	require.NoError(t, err)

	recs, err := kvs.GetAllByIndex(ctx, TableInstitutions, IndexByExternalID, "ext-2")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.JSONEq(t, `{"id":"ext-2","name":"Beta"}`, string(recs[0].Value))

	v, err := kvs.Get(ctx, TableInstitutions, recs[0].Key)
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestPostgres_UpdateRollsBackOnError(t *testing.T) {
	kvs := newPgKVS(t)
	ctx := context.Background()

	err := kvs.Update(ctx, func(tx Tx) error {
		if _, err := tx.Put(TableCache, "k", []byte(`{"key":"k"}`)); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	v, err := kvs.Get(ctx, TableCache, "k")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestPostgres_ClearTable(t *testing.T) {
	kvs := newPgKVS(t)
	ctx := context.Background()

	_, err := kvs.Put(ctx, TableCache, "a", []byte(`{}`))
	require.NoError(t, err)
	require.NoError(t, kvs.ClearTable(ctx, TableCache))

	all, err := kvs.GetAll(ctx, TableCache)
	require.NoError(t, err)
	assert.Empty(t, all)
}

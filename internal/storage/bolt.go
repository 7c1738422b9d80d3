package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const indexSep = "\x00"

type BoltBackend struct {
	db      *bolt.DB
	prefix  string
	indexes Indexes
}

func OpenBolt(path, prefix string, indexes Indexes) (*BoltBackend, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	b := &BoltBackend{db: db, prefix: prefix, indexes: indexes}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, t := range Tables {
			if _, e := tx.CreateBucketIfNotExists(b.dataBucket(t)); e != nil {
				return e
			}
			if _, e := tx.CreateBucketIfNotExists(b.indexBucket(t)); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *BoltBackend) dataBucket(t Table) []byte {
	return []byte(b.prefix + string(t))
}

func (b *BoltBackend) indexBucket(t Table) []byte {
	return []byte(b.prefix + string(t) + "__idx")
}

func (b *BoltBackend) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.View(func(tx *bolt.Tx) error {
		return fn(&boltTx{tx: tx, backend: b})
	})
}

func (b *BoltBackend) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return fn(&boltTx{tx: tx, backend: b})
	})
}

func (b *BoltBackend) Close() error { return b.db.Close() }

type boltTx struct {
	tx      *bolt.Tx
	backend *BoltBackend
}

func (t *boltTx) buckets(table Table) (*bolt.Bucket, *bolt.Bucket, error) {
	if !knownTable(table) {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return t.tx.Bucket(t.backend.dataBucket(table)), t.tx.Bucket(t.backend.indexBucket(table)), nil
}

func indexEntry(index, value, key string) []byte {
	return []byte(index + indexSep + value + indexSep + key)
}

func (t *boltTx) Get(table Table, key string) ([]byte, error) {
	data, _, err := t.buckets(table)
	if err != nil {
		return nil, err
	}
	v := data.Get([]byte(key))
	if v == nil {
		return nil, nil
	}
	return bytes.Clone(v), nil
}

func (t *boltTx) NextID(table Table) (uint64, error) {
	data, _, err := t.buckets(table)
	if err != nil {
		return 0, err
	}
	return data.NextSequence()
}

func (t *boltTx) Put(table Table, key string, value []byte) (string, error) {
	data, idx, err := t.buckets(table)
	if err != nil {
		return "", err
	}
	if key == "" {
		id, err := data.NextSequence()
		if err != nil {
			return "", err
		}
		key = FormatKey(id)
	}
	if old := data.Get([]byte(key)); old != nil {
		if err := t.unindex(table, idx, key, old); err != nil {
			return "", err
		}
	}
	if err := data.Put([]byte(key), value); err != nil {
		return "", err
	}
	for name, field := range t.backend.indexes[table] {
		if v, ok := indexValue(value, field); ok {
			if err := idx.Put(indexEntry(name, v, key), nil); err != nil {
				return "", err
			}
		}
	}
	return key, nil
}

func (t *boltTx) unindex(table Table, idx *bolt.Bucket, key string, value []byte) error {
	for name, field := range t.backend.indexes[table] {
		if v, ok := indexValue(value, field); ok {
			if err := idx.Delete(indexEntry(name, v, key)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *boltTx) Delete(table Table, key string) error {
	data, idx, err := t.buckets(table)
	if err != nil {
		return err
	}
	old := data.Get([]byte(key))
	if old == nil {
		return nil
	}
	if err := t.unindex(table, idx, key, old); err != nil {
		return err
	}
	return data.Delete([]byte(key))
}

func (t *boltTx) ClearTable(table Table) error {
	if !knownTable(table) {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	for _, name := range [][]byte{t.backend.dataBucket(table), t.backend.indexBucket(table)} {
		if err := t.tx.DeleteBucket(name); err != nil {
			return err
		}
		if _, err := t.tx.CreateBucket(name); err != nil {
			return err
		}
	}
	return nil
}

func (t *boltTx) All(table Table) ([]Record, error) {
	data, _, err := t.buckets(table)
	if err != nil {
		return nil, err
	}
	var out []Record
	err = data.ForEach(func(k, v []byte) error {
		out = append(out, Record{Key: string(k), Value: bytes.Clone(v)})
		return nil
	})
	return out, err
}

func (t *boltTx) ByIndex(table Table, index, value string) ([]Record, error) {
	data, idx, err := t.buckets(table)
	if err != nil {
		return nil, err
	}
	if _, ok := t.backend.indexes[table][index]; !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownIndex, table, index)
	}
	prefix := []byte(index + indexSep + value + indexSep)
	var out []Record
	c := idx.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		key := k[len(prefix):]
		if v := data.Get(key); v != nil {
			out = append(out, Record{Key: string(key), Value: bytes.Clone(v)})
		}
	}
	return out, nil
}

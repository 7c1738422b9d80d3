package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgBackend keeps every table in one jsonb key/value relation, so index lookups
// are plain `value->>field` filters.
type PgBackend struct {
	pool     *pgxpool.Pool
	table    string
	sequence string
	indexes  Indexes
}

func OpenPostgres(ctx context.Context, url, prefix string, indexes Indexes) (*PgBackend, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	b := &PgBackend{
		pool:     pool,
		table:    pgx.Identifier{prefix + "kv_records"}.Sanitize(),
		sequence: prefix + "kv_seq",
		indexes:  indexes,
	}
	if err := b.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

func (b *PgBackend) init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`create table if not exists %s (
			tbl text not null,
			key text not null,
			value jsonb not null,
			updated_at timestamptz not null default now(),
			primary key (tbl, key)
		)`, b.table),
		fmt.Sprintf(`create sequence if not exists %s`, pgx.Identifier{b.sequence}.Sanitize()),
	}
	for _, q := range stmts {
		if _, err := b.pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (b *PgBackend) View(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, b.pool, pgx.TxOptions{AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		return fn(&pgTx{ctx: ctx, tx: tx, backend: b})
	})
}

func (b *PgBackend) Update(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, b.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&pgTx{ctx: ctx, tx: tx, backend: b})
	})
}

func (b *PgBackend) Close() error {
	b.pool.Close()
	return nil
}

type pgTx struct {
	ctx     context.Context
	tx      pgx.Tx
	backend *PgBackend
}

func (t *pgTx) check(table Table) error {
	if !knownTable(table) {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return nil
}

func (t *pgTx) Get(table Table, key string) ([]byte, error) {
	if err := t.check(table); err != nil {
		return nil, err
	}
	var value []byte
	q := fmt.Sprintf(`select value from %s where tbl = $1 and key = $2`, t.backend.table)
	err := t.tx.QueryRow(t.ctx, q, string(table), key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return value, err
}

func (t *pgTx) NextID(table Table) (uint64, error) {
	if err := t.check(table); err != nil {
		return 0, err
	}
	var id int64
	err := t.tx.QueryRow(t.ctx, `select nextval($1::text::regclass)`, t.backend.sequence).Scan(&id)
	return uint64(id), err
}

func (t *pgTx) Put(table Table, key string, value []byte) (string, error) {
	if err := t.check(table); err != nil {
		return "", err
	}
	if key == "" {
		id, err := t.NextID(table)
		if err != nil {
			return "", err
		}
		key = FormatKey(id)
	}
	q := fmt.Sprintf(`insert into %s (tbl, key, value) values ($1, $2, $3)
		on conflict (tbl, key) do update set value = excluded.value, updated_at = now()`, t.backend.table)
	if _, err := t.tx.Exec(t.ctx, q, string(table), key, value); err != nil {
		return "", err
	}
	return key, nil
}

func (t *pgTx) Delete(table Table, key string) error {
	if err := t.check(table); err != nil {
		return err
	}
	q := fmt.Sprintf(`delete from %s where tbl = $1 and key = $2`, t.backend.table)
	_, err := t.tx.Exec(t.ctx, q, string(table), key)
	return err
}

func (t *pgTx) ClearTable(table Table) error {
	if err := t.check(table); err != nil {
		return err
	}
	q := fmt.Sprintf(`delete from %s where tbl = $1`, t.backend.table)
	_, err := t.tx.Exec(t.ctx, q, string(table))
	return err
}

func (t *pgTx) collect(q string, args ...any) ([]Record, error) {
	rows, err := t.tx.Query(t.ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Key, &r.Value); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *pgTx) All(table Table) ([]Record, error) {
	if err := t.check(table); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`select key, value from %s where tbl = $1 order by key`, t.backend.table)
	return t.collect(q, string(table))
}

func (t *pgTx) ByIndex(table Table, index, value string) ([]Record, error) {
	if err := t.check(table); err != nil {
		return nil, err
	}
	field, ok := t.backend.indexes[table][index]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownIndex, table, index)
	}
	q := fmt.Sprintf(`select key, value from %s where tbl = $1 and value->>$2 = $3`, t.backend.table)
	return t.collect(q, string(table), field, value)
}

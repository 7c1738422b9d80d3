package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
)

type Table string

const (
	TableInstitutions Table = "institutions"
	TableStats        Table = "dashboard_stats"
	TableStudents     Table = "students"
	TableCharts       Table = "chart_data"
	TableCache        Table = "cache"
)

var Tables = []Table{TableInstitutions, TableStats, TableStudents, TableCharts, TableCache}

// Indexes maps a table to its secondary indexes: index name -> top-level JSON field.
type Indexes map[Table]map[string]string

const (
	IndexByExternalID  = "byExternalId"
	IndexByInstitution = "byInstitution"
)

var DefaultIndexes = Indexes{
	TableInstitutions: {IndexByExternalID: "id"},
	TableStats:        {IndexByInstitution: "institutionId"},
	TableStudents:     {IndexByInstitution: "institutionId"},
	TableCharts:       {IndexByInstitution: "institutionId"},
}

var (
	ErrUnavailable  = errors.New("storage unavailable")
	ErrUnknownTable = errors.New("unknown table")
	ErrUnknownIndex = errors.New("unknown index")
)

type Record struct {
	Key   string
	Value []byte
}

// Tx is a set of operations running inside one storage transaction.
type Tx interface {
	// Get returns nil, nil when the key is absent.
	Get(table Table, key string) ([]byte, error)
	// Put upserts value; an empty key is replaced by the next sequence id, which is returned.
	Put(table Table, key string, value []byte) (string, error)
	NextID(table Table) (uint64, error)
	Delete(table Table, key string) error
	ClearTable(table Table) error
	All(table Table) ([]Record, error)
	ByIndex(table Table, index, value string) ([]Record, error)
}

type Backend interface {
	View(ctx context.Context, fn func(tx Tx) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// FormatKey renders a sequence id so lexical key order matches insertion order.
func FormatKey(id uint64) string {
	return fmt.Sprintf("%020d", id)
}

func knownTable(table Table) bool {
	for _, t := range Tables {
		if t == table {
			return true
		}
	}
	return false
}

// indexValue extracts the top-level field of a JSON object as the string stored in an index.
func indexValue(value []byte, field string) (string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(value, &obj); err != nil {
		return "", false
	}
	raw, ok := obj[field]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	if raw[0] == '"' {
		s, err := strconv.Unquote(string(raw))
		if err != nil {
			return "", false
		}
		return s, true
	}
	return string(raw), true
}

// KVS is the namespaced store every accessor goes through.
type KVS struct {
	backend Backend
}

func NewKVS(backend Backend) *KVS {
	return &KVS{backend: backend}
}

// Available reports whether the backend can serve requests at all.
func (s *KVS) Available() bool {
	_, down := s.backend.(*Unavailable)
	return !down
}

func (s *KVS) Get(ctx context.Context, table Table, key string) ([]byte, error) {
	var out []byte
	err := s.backend.View(ctx, func(tx Tx) error {
		v, err := tx.Get(table, key)
		out = v
		return err
	})
	return out, err
}

func (s *KVS) Put(ctx context.Context, table Table, key string, value []byte) (string, error) {
	var assigned string
	err := s.backend.Update(ctx, func(tx Tx) error {
		k, err := tx.Put(table, key, value)
		assigned = k
		return err
	})
	return assigned, err
}

func (s *KVS) GetAllByIndex(ctx context.Context, table Table, index, value string) ([]Record, error) {
	var out []Record
	err := s.backend.View(ctx, func(tx Tx) error {
		recs, err := tx.ByIndex(table, index, value)
		out = recs
		return err
	})
	return out, err
}

func (s *KVS) GetAll(ctx context.Context, table Table) ([]Record, error) {
	var out []Record
	err := s.backend.View(ctx, func(tx Tx) error {
		recs, err := tx.All(table)
		out = recs
		return err
	})
	return out, err
}

func (s *KVS) Delete(ctx context.Context, table Table, key string) error {
	return s.backend.Update(ctx, func(tx Tx) error {
		return tx.Delete(table, key)
	})
}

func (s *KVS) ClearTable(ctx context.Context, table Table) error {
	return s.backend.Update(ctx, func(tx Tx) error {
		return tx.ClearTable(table)
	})
}

func (s *KVS) View(ctx context.Context, fn func(tx Tx) error) error {
	return s.backend.View(ctx, fn)
}

// Update runs fn in a single atomic write transaction; if fn fails nothing is applied.
func (s *KVS) Update(ctx context.Context, fn func(tx Tx) error) error {
	return s.backend.Update(ctx, fn)
}

func (s *KVS) Close() error {
	return s.backend.Close()
}

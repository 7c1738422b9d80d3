// Package pagination pages through the enquiry list while keeping the
// persisted recent-leads cache trimmed to its cap.
package pagination

import (
	"clarity/internal/models"
	"clarity/internal/providers"
	"context"
	"errors"
	"sync"

	"go.uber.org/atomic"
)

type State string

const (
	StateIdle      State = "idle"
	StateFetching  State = "fetching"
	StateHasMore   State = "hasMore"
	StateExhausted State = "exhausted"
	StateError     State = "error"
)

var ErrFetchInProgress = errors.New("page fetch already in progress")

// PageFetcher returns one page of leads. total is -1 when unknown.
type PageFetcher interface {
	FetchPage(ctx context.Context, offset, limit int) (items []models.LeadRecord, total int, err error)
}

type PageFetcherFunc func(ctx context.Context, offset, limit int) ([]models.LeadRecord, int, error)

func (f PageFetcherFunc) FetchPage(ctx context.Context, offset, limit int) ([]models.LeadRecord, int, error) {
	return f(ctx, offset, limit)
}

// RecentStore is the persisted recent-leads cache.
type RecentStore interface {
	ReplaceRecentWithTopN(ctx context.Context, records []models.LeadRecord, n int) ([]models.LeadRecord, error)
	PrependAndTrim(ctx context.Context, records []models.LeadRecord, n int) ([]models.LeadRecord, error)
}

type Snapshot struct {
	State  State               `json:"state"`
	Items  []models.LeadRecord `json:"items"`
	Offset int                 `json:"offset"`
	Error  string              `json:"error,omitempty"`
}

type Manager struct {
	mu          sync.Mutex
	fetcher     PageFetcher
	store       RecentStore
	logger      providers.Logger
	pageSize    int
	recentLimit int

	state  State
	items  []models.LeadRecord
	seen   map[string]int
	offset int
	err    error
	epoch  uint64

	fetches atomic.Int64
}

func NewManager(fetcher PageFetcher, store RecentStore, logger providers.Logger, pageSize, recentLimit int) *Manager {
	return &Manager{
		fetcher:     fetcher,
		store:       store,
		logger:      logger,
		pageSize:    max(pageSize, 1),
		recentLimit: max(recentLimit, 1),
		state:       StateIdle,
		seen:        make(map[string]int),
	}
}

// Fetches returns how many page requests were issued.
func (m *Manager) Fetches() int64 {
	return m.fetches.Load()
}

// LoadMore fetches the next page. From exhausted it returns at once without a
// network call; while a fetch runs it returns ErrFetchInProgress.
func (m *Manager) LoadMore(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	switch m.state {
	case StateFetching:
		m.mu.Unlock()
		return m.Snapshot(), ErrFetchInProgress
	case StateExhausted:
		defer m.mu.Unlock()
		return m.snapshot(), nil
	}
	m.state = StateFetching
	offset, epoch := m.offset, m.epoch
	m.mu.Unlock()

	m.fetches.Inc()
	items, total, err := m.fetcher.FetchPage(ctx, offset, m.pageSize)

	if err == nil && offset == 0 {
		if _, serr := m.store.ReplaceRecentWithTopN(ctx, items, m.recentLimit); serr != nil {
			m.logger.Warnf(providers.TypeCache, "Unable to persist first lead page: %s", serr)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return m.snapshot(), nil
	}
	if err != nil {
		m.state = StateError
		m.err = err
		return m.snapshot(), err
	}

	m.err = nil
	for _, lead := range items {
		m.add(lead)
	}
	m.offset += len(items)

	if len(items) < m.pageSize || (total >= 0 && m.offset >= total) {
		m.state = StateExhausted
	} else {
		m.state = StateHasMore
	}
	return m.snapshot(), nil
}

// add appends lead, or replaces the copy already listed under its LeadID.
// Caller holds m.mu.
func (m *Manager) add(lead models.LeadRecord) bool {
	if lead.LeadID != "" {
		if i, dup := m.seen[lead.LeadID]; dup {
			m.items[i] = lead
			return false
		}
		m.seen[lead.LeadID] = len(m.items)
	}
	m.items = append(m.items, lead)
	return true
}

// ApplyNewLeads records leads pushed by the backend: the recent cache is
// merged and trimmed, and the loaded list gets them on top. The offset moves
// by the number of leads not already listed so the next page does not repeat
// records that shifted down.
func (m *Manager) ApplyNewLeads(ctx context.Context, leads []models.LeadRecord) (Snapshot, error) {
	_, err := m.store.PrependAndTrim(ctx, leads, m.recentLimit)
	if err != nil {
		m.logger.Warnf(providers.TypeCache, "Unable to merge new leads into recent cache: %s", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateIdle {
		return m.snapshot(), err
	}

	fresh := 0
	for _, lead := range leads {
		if m.add(lead) {
			fresh++
		}
	}
	if fresh > 0 {
		models.SortLeadsDesc(m.items)
		m.reindex()
		m.offset += fresh
	}
	return m.snapshot(), err
}

// reindex rebuilds the LeadID positions. Caller holds m.mu.
func (m *Manager) reindex() {
	clear(m.seen)
	for i, lead := range m.items {
		if lead.LeadID != "" {
			m.seen[lead.LeadID] = i
		}
	}
}

// Reset drops the loaded list and returns to idle. A fetch in flight is discarded.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch++
	m.state = StateIdle
	m.items = nil
	m.offset = 0
	m.err = nil
	clear(m.seen)
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *Manager) snapshot() Snapshot {
	s := Snapshot{
		State:  m.state,
		Items:  append([]models.LeadRecord{}, m.items...),
		Offset: m.offset,
	}
	if m.err != nil {
		s.Error = m.err.Error()
	}
	return s
}

package services

import (
	"clarity/internal/api"
	"clarity/internal/localdb"
	"clarity/internal/models"
	"clarity/internal/pagination"
	"clarity/internal/providers"
	"clarity/internal/query"
	"clarity/internal/structures"
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

const CouponTTL = 10 * time.Minute

type DashboardServiceInterface interface {
	Institution(ctx context.Context) query.State[models.InstitutionSnapshot]
	DashboardStats(ctx context.Context, timeRange models.TimeRange) query.State[models.DashboardStatsSnapshot]
	ChartSeries(ctx context.Context, metric models.Metric, year int) query.State[models.ChartSeriesSnapshot]
	RecentLeads(ctx context.Context) query.State[[]models.LeadRecord]
	Programs(ctx context.Context) query.State[[]models.Program]
	LookupCoupon(ctx context.Context, code string) models.Result[models.Coupon]
	CreateProgram(ctx context.Context, input models.ProgramInput) models.Result[models.Program]
	UpdateProgram(ctx context.Context, id string, input models.ProgramInput) models.Result[models.Program]
	DeleteProgram(ctx context.Context, id string) models.Result[bool]
	MarkNotificationRead(ctx context.Context, id string) models.Result[bool]
	LeadPages(ctx context.Context) (*pagination.Manager, error)
	ApplyNewLead(ctx context.Context, lead models.LeadRecord) error
	VerifyPayment(ctx context.Context, orderID string) models.PaymentVerification
	ClearAllCaches(ctx context.Context) error
	Watch(ctx context.Context, req WatchRequest, emit func(QueryView) error) error
}

// Query key roots. Mutations invalidate by these prefixes.
var (
	KeyInstitution   = query.NewKey("institution")
	KeyDashboard     = query.NewKey("dashboard")
	KeyStats         = query.NewKey("dashboard", "stats")
	KeyCharts        = query.NewKey("dashboard", "charts")
	KeyLeads         = query.NewKey("leads")
	KeyPrograms      = query.NewKey("programs")
	KeyNotifications = query.NewKey("notifications")
)

type DashboardService struct {
	conf     *structures.Config
	db       *localdb.LocalDB
	client   api.ClientInterface
	queries  *query.Client
	verifier *api.PaymentVerifier
	logger   providers.Logger
	metrics  providers.MetricsProviderInterface

	mu    sync.Mutex
	pages map[string]*pagination.Manager
}

func NewDashboardService(
	conf *structures.Config,
	db *localdb.LocalDB,
	client api.ClientInterface,
	queries *query.Client,
	verifier *api.PaymentVerifier,
	logger providers.Logger,
	metrics providers.MetricsProviderInterface,
) DashboardServiceInterface {
	return newDashboardService(conf, db, client, queries, verifier, logger, metrics)
}

func newDashboardService(
	conf *structures.Config,
	db *localdb.LocalDB,
	client api.ClientInterface,
	queries *query.Client,
	verifier *api.PaymentVerifier,
	logger providers.Logger,
	metrics providers.MetricsProviderInterface,
) *DashboardService {
	return &DashboardService{
		conf:     conf,
		db:       db,
		client:   client,
		queries:  queries,
		verifier: verifier,
		logger:   logger,
		metrics:  metrics,
		pages:    make(map[string]*pagination.Manager),
	}
}

func statsKey(timeRange models.TimeRange, institutionID string) query.Key {
	return append(append(query.Key{}, KeyStats...), string(timeRange), institutionID)
}

func chartKey(metric models.Metric, year int, institutionID string) query.Key {
	return append(append(query.Key{}, KeyCharts...), string(metric), strconv.Itoa(year), institutionID)
}

func recentLeadsKey(institutionID string) query.Key {
	return query.NewKey(KeyLeads[0], "recent", institutionID)
}

func programsKey(institutionID string) query.Key {
	return query.NewKey(KeyPrograms[0], institutionID)
}

func (s *DashboardService) institutionOptions() query.Options {
	return s.queries.Options(s.conf.Query.InstitutionTTL, 0)
}

func (s *DashboardService) statsOptions() query.Options {
	return s.queries.Options(s.conf.Query.StatsTTL, s.conf.Query.StatsRefresh)
}

func (s *DashboardService) leadsOptions() query.Options {
	return s.queries.Options(s.conf.Query.StudentsTTL, s.conf.Query.StudentsRefresh)
}

func (s *DashboardService) chartOptions() query.Options {
	return s.queries.Options(s.conf.Query.ChartsTTL, s.conf.Query.ChartsRefresh)
}

func (s *DashboardService) programOptions() query.Options {
	return s.queries.Options(s.conf.Query.ProgramsTTL, 0)
}

// cacheAside serves a snapshot from the store while it is fresh, unless the
// query was invalidated or is on its refetch interval; otherwise it fetches,
// writes through and returns the fetched value. Store failures count as misses.
func cacheAside[T any](
	ctx context.Context,
	s *DashboardService,
	name string,
	meta query.FetchMeta,
	ttl time.Duration,
	load func() (*T, int64, error),
	fetch func() (T, error),
	save func(T) (*T, error),
) (T, error) {
	if !meta.SkipStore() {
		cached, lastUpdated, err := load()
		switch {
		case err != nil:
			s.logger.Warnf(providers.TypeCache, "Load %s from store: %s", name, err)
		case cached != nil && models.IsFresh(lastUpdated, ttl, s.db.Now()):
			s.metrics.IncCacheHits("store")
			meta.ServedFrom(time.UnixMilli(lastUpdated))
			return *cached, nil
		}
	}
	s.metrics.IncCacheMisses("store")

	data, err := fetch()
	if err != nil {
		return data, err
	}
	saved, err := save(data)
	if err != nil {
		s.logger.Warnf(providers.TypeCache, "Save %s to store: %s", name, err)
		return data, nil
	}
	return *saved, nil
}

func (s *DashboardService) loadInstitution(ctx context.Context, meta query.FetchMeta) (models.InstitutionSnapshot, error) {
	return cacheAside(ctx, s, "institution", meta, s.conf.Query.InstitutionTTL,
		func() (*models.InstitutionSnapshot, int64, error) {
			var (
				snap *models.InstitutionSnapshot
				err  error
			)
			// Revalidation reads the institution already shown, not whichever was saved last.
			if known, ok := query.GetQueryData[models.InstitutionSnapshot](s.queries, KeyInstitution); ok && known.ID != "" {
				snap, err = s.db.LoadInstitution(ctx, known.ID)
			} else {
				snap, err = s.db.LoadLatestInstitution(ctx)
			}
			if snap == nil {
				return nil, 0, err
			}
			return snap, snap.LastUpdated, err
		},
		func() (models.InstitutionSnapshot, error) {
			r := s.client.GetInstitution(ctx)
			return r.Data, api.ResultError(r)
		},
		func(snap models.InstitutionSnapshot) (*models.InstitutionSnapshot, error) {
			return s.db.SaveInstitution(ctx, snap)
		},
	)
}

func (s *DashboardService) Institution(ctx context.Context) query.State[models.InstitutionSnapshot] {
	return query.Fetch(ctx, s.queries, KeyInstitution, s.institutionOptions(), s.loadInstitution)
}

// institutionID resolves the logged-in institution every other query is scoped to.
func (s *DashboardService) institutionID(ctx context.Context) (string, error) {
	st := s.Institution(ctx)
	if !st.HasData {
		if st.Err != nil {
			return "", st.Err
		}
		return "", &api.FetchError{Message: "institution unavailable"}
	}
	return st.Data.ID, nil
}

func (s *DashboardService) statsLoader(timeRange models.TimeRange, institutionID string) query.FetchFunc[models.DashboardStatsSnapshot] {
	return func(ctx context.Context, meta query.FetchMeta) (models.DashboardStatsSnapshot, error) {
		return cacheAside(ctx, s, "stats", meta, s.conf.Query.StatsTTL,
			func() (*models.DashboardStatsSnapshot, int64, error) {
				snap, err := s.db.LoadStats(ctx, timeRange, institutionID)
				if snap == nil {
					return nil, 0, err
				}
				return snap, snap.LastUpdated, err
			},
			func() (models.DashboardStatsSnapshot, error) {
				r := s.client.GetDashboardStats(ctx, timeRange, institutionID)
				return r.Data, api.ResultError(r)
			},
			func(snap models.DashboardStatsSnapshot) (*models.DashboardStatsSnapshot, error) {
				return s.db.SaveStats(ctx, snap)
			},
		)
	}
}

func (s *DashboardService) DashboardStats(ctx context.Context, timeRange models.TimeRange) query.State[models.DashboardStatsSnapshot] {
	inst, err := s.institutionID(ctx)
	if err != nil {
		return query.State[models.DashboardStatsSnapshot]{Err: err}
	}
	return query.Fetch(ctx, s.queries, statsKey(timeRange, inst), s.statsOptions(), s.statsLoader(timeRange, inst))
}

func (s *DashboardService) chartLoader(metric models.Metric, year int, institutionID string) query.FetchFunc[models.ChartSeriesSnapshot] {
	return func(ctx context.Context, meta query.FetchMeta) (models.ChartSeriesSnapshot, error) {
		return cacheAside(ctx, s, "chart", meta, s.conf.Query.ChartsTTL,
			func() (*models.ChartSeriesSnapshot, int64, error) {
				snap, err := s.db.LoadChart(ctx, metric, year, institutionID)
				if snap == nil {
					return nil, 0, err
				}
				return snap, snap.LastUpdated, err
			},
			func() (models.ChartSeriesSnapshot, error) {
				r := s.client.GetSeries(ctx, metric, year)
				return models.ChartSeriesSnapshot{
					Metric:        metric,
					Year:          year,
					Series:        r.Data,
					InstitutionID: institutionID,
				}, api.ResultError(r)
			},
			func(snap models.ChartSeriesSnapshot) (*models.ChartSeriesSnapshot, error) {
				return s.db.SaveChart(ctx, snap)
			},
		)
	}
}

func (s *DashboardService) ChartSeries(ctx context.Context, metric models.Metric, year int) query.State[models.ChartSeriesSnapshot] {
	inst, err := s.institutionID(ctx)
	if err != nil {
		return query.State[models.ChartSeriesSnapshot]{Err: err}
	}
	return query.Fetch(ctx, s.queries, chartKey(metric, year, inst), s.chartOptions(), s.chartLoader(metric, year, inst))
}

func (s *DashboardService) recentLeadsLoader(institutionID string) query.FetchFunc[[]models.LeadRecord] {
	limit := s.conf.Leads.RecentLimit
	return func(ctx context.Context, meta query.FetchMeta) ([]models.LeadRecord, error) {
		return cacheAside(ctx, s, "recent leads", meta, s.conf.Query.StudentsTTL,
			func() (*[]models.LeadRecord, int64, error) {
				leads, err := s.db.LoadRecentLeads(ctx, institutionID)
				if len(leads) == 0 {
					return nil, 0, err
				}
				return &leads, localdb.LatestLeadsUpdate(leads), err
			},
			func() ([]models.LeadRecord, error) {
				r := s.client.GetEnquiries(ctx, 0, limit)
				if !r.Success {
					return nil, api.ResultError(r)
				}
				return scopeLeads(r.Data.Items, institutionID), nil
			},
			func(leads []models.LeadRecord) (*[]models.LeadRecord, error) {
				stored, err := s.db.ReplaceRecentWithTopN(ctx, leads, limit)
				if err != nil {
					return nil, err
				}
				return &stored, nil
			},
		)
	}
}

func scopeLeads(leads []models.LeadRecord, institutionID string) []models.LeadRecord {
	for i := range leads {
		if leads[i].InstitutionID == "" {
			leads[i].InstitutionID = institutionID
		}
	}
	return leads
}

func (s *DashboardService) RecentLeads(ctx context.Context) query.State[[]models.LeadRecord] {
	inst, err := s.institutionID(ctx)
	if err != nil {
		return query.State[[]models.LeadRecord]{Err: err}
	}
	return query.Fetch(ctx, s.queries, recentLeadsKey(inst), s.leadsOptions(), s.recentLeadsLoader(inst))
}

func (s *DashboardService) programsLoader(institutionID string) query.FetchFunc[[]models.Program] {
	cacheKey := "programs:" + institutionID
	return func(ctx context.Context, meta query.FetchMeta) ([]models.Program, error) {
		if !meta.SkipStore() {
			var cached []models.Program
			entry, err := s.db.GetCached(ctx, cacheKey)
			if err == nil && entry != nil {
				err = json.Unmarshal(entry.Payload, &cached)
			}
			switch {
			case err != nil:
				s.logger.Warnf(providers.TypeCache, "Load programs from store: %s", err)
			case entry != nil:
				s.metrics.IncCacheHits("store")
				meta.ServedFrom(time.UnixMilli(entry.WrittenAt))
				return cached, nil
			}
		}
		s.metrics.IncCacheMisses("store")

		r := s.client.ListPrograms(ctx)
		if !r.Success {
			return nil, api.ResultError(r)
		}
		if err := s.db.SetCached(ctx, cacheKey, r.Data, s.conf.Query.ProgramsTTL); err != nil {
			s.logger.Warnf(providers.TypeCache, "Save programs to store: %s", err)
		}
		return r.Data, nil
	}
}

func (s *DashboardService) Programs(ctx context.Context) query.State[[]models.Program] {
	inst, err := s.institutionID(ctx)
	if err != nil {
		return query.State[[]models.Program]{Err: err}
	}
	return query.Fetch(ctx, s.queries, programsKey(inst), s.programOptions(), s.programsLoader(inst))
}

// LookupCoupon is an ad-hoc cached lookup outside the query layer. Only valid
// coupons are cached.
func (s *DashboardService) LookupCoupon(ctx context.Context, code string) models.Result[models.Coupon] {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return models.Fail[models.Coupon](400, "coupon code required")
	}
	cacheKey := "coupon:" + code

	var cached models.Coupon
	if found, err := s.db.GetCachedInto(ctx, cacheKey, &cached); err != nil {
		s.logger.Warnf(providers.TypeCache, "Load coupon from store: %s", err)
	} else if found {
		s.metrics.IncCacheHits("store")
		return models.Ok(cached, 200)
	}
	s.metrics.IncCacheMisses("store")

	r := s.client.LookupCoupon(ctx, code)
	if r.Success && r.Data.Valid {
		if err := s.db.SetCached(ctx, cacheKey, r.Data, CouponTTL); err != nil {
			s.logger.Warnf(providers.TypeCache, "Save coupon to store: %s", err)
		}
	}
	return r
}

func (s *DashboardService) CreateProgram(ctx context.Context, input models.ProgramInput) models.Result[models.Program] {
	r := s.client.CreateProgram(ctx, input)
	if r.Success {
		s.invalidatePrograms(ctx)
	}
	return r
}

func (s *DashboardService) UpdateProgram(ctx context.Context, id string, input models.ProgramInput) models.Result[models.Program] {
	r := s.client.UpdateProgram(ctx, id, input)
	if r.Success {
		s.invalidatePrograms(ctx)
	}
	return r
}

func (s *DashboardService) DeleteProgram(ctx context.Context, id string) models.Result[bool] {
	r := s.client.DeleteProgram(ctx, id)
	if r.Success {
		s.invalidatePrograms(ctx)
	}
	return r
}

// invalidatePrograms drops the stored program list too, so a reader that is
// not subscribed cannot be served the pre-mutation list from the store.
func (s *DashboardService) invalidatePrograms(ctx context.Context) {
	if inst, err := s.institutionID(ctx); err == nil {
		if err := s.db.DeleteCached(ctx, "programs:"+inst); err != nil {
			s.logger.Warnf(providers.TypeCache, "Drop stored programs: %s", err)
		}
	}
	s.queries.Invalidate(KeyPrograms)
}

func (s *DashboardService) MarkNotificationRead(ctx context.Context, id string) models.Result[bool] {
	r := s.client.MarkNotificationRead(ctx, id)
	if r.Success {
		s.queries.Invalidate(KeyNotifications)
	}
	return r
}

// VerifyPayment polls the order; a settled subscription changes the
// institution's plan, so its stored snapshot is dropped and its query
// invalidated.
func (s *DashboardService) VerifyPayment(ctx context.Context, orderID string) models.PaymentVerification {
	res := s.verifier.Verify(ctx, orderID)
	if res.State == models.PaymentActive {
		if inst, err := s.institutionID(ctx); err == nil {
			if _, err := s.db.DropInstitution(ctx, inst); err != nil {
				s.logger.Warnf(providers.TypeCache, "Drop stored institution: %s", err)
			}
		}
		s.queries.Invalidate(KeyInstitution)
	}
	return res
}

// ClearAllCaches wipes the store, the query layer and every pagination
// manager (logout or manual refresh).
func (s *DashboardService) ClearAllCaches(ctx context.Context) error {
	s.queries.Clear()
	s.mu.Lock()
	for _, m := range s.pages {
		m.Reset()
	}
	s.mu.Unlock()
	if err := s.db.ClearAll(ctx); err != nil {
		s.logger.Errorf(providers.TypeCache, "Clear store: %s", err)
		return err
	}
	s.logger.Infof(providers.TypeCache, "All caches cleared")
	return nil
}

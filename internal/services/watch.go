package services

import (
	"clarity/internal/models"
	"clarity/internal/query"
	"context"
	"errors"
	"fmt"
)

var ErrUnknownQuery = errors.New("unknown query")

// QueryView is the wire form of a query state.
type QueryView struct {
	Data       any    `json:"data"`
	IsLoading  bool   `json:"isLoading"`
	IsFetching bool   `json:"isFetching"`
	IsStale    bool   `json:"isStale"`
	Error      string `json:"error,omitempty"`
	UpdatedAt  int64  `json:"updatedAt,omitempty"`
}

func View[T any](st query.State[T]) QueryView {
	v := QueryView{
		IsLoading:  st.IsLoading,
		IsFetching: st.IsFetching,
		IsStale:    st.IsStale,
	}
	if st.HasData {
		v.Data = st.Data
		v.UpdatedAt = st.UpdatedAt.UnixMilli()
	}
	if st.Err != nil {
		v.Error = st.Err.Error()
	}
	return v
}

// WatchRequest names a query and its parameters.
type WatchRequest struct {
	Query     string
	TimeRange models.TimeRange
	Metric    models.Metric
	Year      int
}

// Watch subscribes to one query and calls emit for its current state and
// every change until ctx is done or emit fails.
func (s *DashboardService) Watch(ctx context.Context, req WatchRequest, emit func(QueryView) error) error {
	if req.Query == "institution" {
		return watch(ctx, query.Subscribe(s.queries, KeyInstitution, s.institutionOptions(), s.loadInstitution), emit)
	}

	inst, err := s.institutionID(ctx)
	if err != nil {
		return err
	}

	switch req.Query {
	case "stats":
		return watch(ctx, query.Subscribe(s.queries, statsKey(req.TimeRange, inst), s.statsOptions(), s.statsLoader(req.TimeRange, inst)), emit)
	case "charts":
		return watch(ctx, query.Subscribe(s.queries, chartKey(req.Metric, req.Year, inst), s.chartOptions(), s.chartLoader(req.Metric, req.Year, inst)), emit)
	case "leads":
		return watch(ctx, query.Subscribe(s.queries, recentLeadsKey(inst), s.leadsOptions(), s.recentLeadsLoader(inst)), emit)
	case "programs":
		return watch(ctx, query.Subscribe(s.queries, programsKey(inst), s.programOptions(), s.programsLoader(inst)), emit)
	}
	return fmt.Errorf("%w %q", ErrUnknownQuery, req.Query)
}

func watch[T any](ctx context.Context, sub *query.Subscription[T], emit func(QueryView) error) error {
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := emit(View(st)); err != nil {
				return err
			}
		}
	}
}

package services

import (
	"clarity/internal/api"
	"clarity/internal/models"
	"clarity/internal/pagination"
	"clarity/internal/providers"
	"clarity/internal/query"
	"context"
)

// enquiryPages adapts the enquiry fetcher to pagination.PageFetcher.
type enquiryPages struct {
	client        api.ClientInterface
	institutionID string
}

func (p *enquiryPages) FetchPage(ctx context.Context, offset, limit int) ([]models.LeadRecord, int, error) {
	r := p.client.GetEnquiries(ctx, offset, limit)
	if !r.Success {
		return nil, 0, api.ResultError(r)
	}
	return scopeLeads(r.Data.Items, p.institutionID), r.Data.Total, nil
}

// LeadPages returns the pagination manager of the current institution.
func (s *DashboardService) LeadPages(ctx context.Context) (*pagination.Manager, error) {
	inst, err := s.institutionID(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.pages[inst]
	if !ok {
		m = pagination.NewManager(
			&enquiryPages{client: s.client, institutionID: inst},
			s.db,
			s.logger,
			s.conf.Leads.PageSize,
			s.conf.Leads.RecentLimit,
		)
		s.pages[inst] = m
	}
	return m, nil
}

// ApplyNewLead handles a lead pushed by the backend: the recent cache is
// merged and trimmed, the recent-leads query gets the stored list and the
// stats, whose lead count moved, are invalidated.
func (s *DashboardService) ApplyNewLead(ctx context.Context, lead models.LeadRecord) error {
	pages, err := s.LeadPages(ctx)
	if err != nil {
		return err
	}
	inst, _ := s.institutionID(ctx)
	if lead.InstitutionID == "" {
		lead.InstitutionID = inst
	}

	if _, err := pages.ApplyNewLeads(ctx, []models.LeadRecord{lead}); err != nil {
		return err
	}

	recent, err := s.db.LoadRecentLeads(ctx, inst)
	if err != nil {
		s.logger.Warnf(providers.TypeCache, "Reload recent leads: %s", err)
		s.queries.Invalidate(recentLeadsKey(inst))
	} else {
		query.SetQueryData(s.queries, recentLeadsKey(inst), recent)
	}
	if inst != "" {
		if _, err := s.db.DropStats(ctx, inst); err != nil {
			s.logger.Warnf(providers.TypeCache, "Drop stored stats: %s", err)
		}
	}
	s.queries.Invalidate(KeyStats)
	return nil
}

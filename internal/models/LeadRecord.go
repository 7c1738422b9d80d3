package models

import "sort"

// LeadRecord is one enquiry/contact event, shown as a "student" in the dashboard.
type LeadRecord struct {
	LocalID          uint64   `json:"localId,omitempty"`
	Date             string   `json:"date"`
	Name             string   `json:"name"`
	LeadID           string   `json:"leadId"`
	Status           string   `json:"status"`
	ProgramInterests []string `json:"programInterests"`
	Email            string   `json:"email,omitempty"`
	Phone            string   `json:"phone,omitempty"`
	TimestampMs      int64    `json:"timestampMs"`
	InstitutionID    string   `json:"institutionId"`
	LastUpdated      int64    `json:"lastUpdated"`
}

// SortLeadsDesc orders leads newest first. Ties on timestamp fall back to LeadID
// so the order is deterministic.
func SortLeadsDesc(leads []LeadRecord) {
	sort.SliceStable(leads, func(i, j int) bool {
		if leads[i].TimestampMs != leads[j].TimestampMs {
			return leads[i].TimestampMs > leads[j].TimestampMs
		}
		return leads[i].LeadID > leads[j].LeadID
	})
}

// MergeLeads combines incoming with existing, keeps one copy per LeadID (incoming wins),
// sorts newest first and truncates to n. n <= 0 means no cap.
func MergeLeads(existing, incoming []LeadRecord, n int) []LeadRecord {
	merged := make([]LeadRecord, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing)+len(incoming))

	for _, group := range [][]LeadRecord{incoming, existing} {
		for _, lead := range group {
			if lead.LeadID != "" {
				if _, dup := seen[lead.LeadID]; dup {
					continue
				}
				seen[lead.LeadID] = struct{}{}
			}
			merged = append(merged, lead)
		}
	}

	SortLeadsDesc(merged)
	if n > 0 && len(merged) > n {
		merged = merged[:n]
	}
	return merged
}

// TopLeads returns the n most recent leads of records.
func TopLeads(records []LeadRecord, n int) []LeadRecord {
	return MergeLeads(nil, records, n)
}

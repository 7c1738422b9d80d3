package api

import (
	"clarity/internal/models"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// LeadDateLayout is how a lead's display date is rendered.
const LeadDateLayout = "02 Jan 2006"

// EnquiryPage is one page of leads. Total is -1 when the backend does not report it.
type EnquiryPage struct {
	Items []models.LeadRecord `json:"items"`
	Total int                 `json:"total"`
}

// AdaptLead normalizes one enquiry object. The same adapter serves the list
// endpoint and realtime events.
func AdaptLead(obj map[string]any, institutionID string) models.LeadRecord {
	ts := pickTimestamp(obj, "createdAt", "timestamp", "submittedAt", "date")
	lead := models.LeadRecord{
		LeadID:           pickString(obj, "_id", "id", "enquiryId", "leadId"),
		Name:             pickString(obj, "studentName", "name", "student.name", "fullName", "user.name"),
		Status:           pickString(obj, "status", "enquiryStatus"),
		ProgramInterests: pickStrings(obj, "programInterests", "programs", "programName", "program.programName", "program"),
		Email:            pickString(obj, "email", "student.email", "user.email"),
		Phone:            pickString(obj, "phone", "phoneNumber", "student.phone", "user.phone"),
		TimestampMs:      ts,
		InstitutionID:    pickString(obj, "institutionId", "institution._id", "institution"),
	}
	if lead.InstitutionID == "" {
		lead.InstitutionID = institutionID
	}
	if lead.Status == "" {
		lead.Status = "New"
	}
	if lead.ProgramInterests == nil {
		lead.ProgramInterests = []string{}
	}
	if ts > 0 {
		lead.Date = time.UnixMilli(ts).UTC().Format(LeadDateLayout)
	} else {
		lead.Date = pickString(obj, "date")
	}
	return lead
}

// AdaptLeads reads a list of enquiries from a bare array, or from an object
// holding it under items, enquiries, leads or data.
func AdaptLeads(raw json.RawMessage, institutionID string) (EnquiryPage, error) {
	page := EnquiryPage{Total: -1}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return page, err
	}

	var items []any
	switch t := v.(type) {
	case nil:
		return page, nil
	case []any:
		items = t
	case map[string]any:
		found := false
		for _, field := range []string{"items", "enquiries", "leads", "data"} {
			if list, ok := t[field].([]any); ok {
				items, found = list, true
				break
			}
		}
		if !found {
			return page, fmt.Errorf("enquiry payload has no list")
		}
		if total, ok := pickNumber(t, "total", "totalCount", "count"); ok {
			page.Total = int(total)
		}
	default:
		return page, fmt.Errorf("unexpected enquiry payload %T", v)
	}

	page.Items = make([]models.LeadRecord, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		page.Items = append(page.Items, AdaptLead(obj, institutionID))
	}
	return page, nil
}

func (c *Client) GetEnquiries(ctx context.Context, offset, limit int) models.Result[EnquiryPage] {
	return fetch(ctx, c, request{
		method:   http.MethodGet,
		path:     "/v1/enquiries",
		query:    url.Values{"offset": {strconv.Itoa(offset)}, "limit": {strconv.Itoa(limit)}},
		endpoint: "enquiries",
	}, func(raw json.RawMessage) (EnquiryPage, error) {
		return AdaptLeads(raw, "")
	})
}

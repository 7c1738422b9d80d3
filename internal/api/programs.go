package api

import (
	"clarity/internal/models"
	"context"
	"fmt"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"
)

func AdaptProgram(obj map[string]any) models.Program {
	p := models.Program{
		ID:              pickString(obj, "_id", "id", "programId"),
		Name:            pickString(obj, "programName", "name", "title"),
		InstitutionName: pickString(obj, "institution.name", "branch.branchName", "institutionName", "branchName"),
		Status:          pickString(obj, "status"),
		Duration:        pickString(obj, "duration", "courseDuration"),
		CreatedAt:       pickTimestamp(obj, "createdAt"),
	}
	if fee, ok := pickNumber(obj, "fee", "fees", "price", "priceOfCourse"); ok {
		p.Fee = fee
	}
	return p
}

func adaptProgram(raw json.RawMessage) (models.Program, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return models.Program{}, err
	}
	if nested, ok := obj["program"].(map[string]any); ok {
		obj = nested
	}
	p := AdaptProgram(obj)
	if p.ID == "" {
		return p, fmt.Errorf("program payload has no id")
	}
	return p, nil
}

func adaptPrograms(raw json.RawMessage) ([]models.Program, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}

	var items []any
	switch t := v.(type) {
	case nil:
		return []models.Program{}, nil
	case []any:
		items = t
	case map[string]any:
		for _, field := range []string{"programs", "items", "courses", "data"} {
			if list, ok := t[field].([]any); ok {
				items = list
				break
			}
		}
		if items == nil {
			return nil, fmt.Errorf("program payload has no list")
		}
	default:
		return nil, fmt.Errorf("unexpected program payload %T", v)
	}

	out := make([]models.Program, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, AdaptProgram(obj))
		}
	}
	return out, nil
}

func acknowledged(json.RawMessage) (bool, error) {
	return true, nil
}

func (c *Client) ListPrograms(ctx context.Context) models.Result[[]models.Program] {
	return fetch(ctx, c, request{
		method:   http.MethodGet,
		path:     "/v1/programs",
		endpoint: "programs",
	}, adaptPrograms)
}

func (c *Client) CreateProgram(ctx context.Context, input models.ProgramInput) models.Result[models.Program] {
	return fetch(ctx, c, request{
		method:   http.MethodPost,
		path:     "/v1/programs",
		body:     input,
		endpoint: "programs_create",
	}, adaptProgram)
}

func (c *Client) UpdateProgram(ctx context.Context, id string, input models.ProgramInput) models.Result[models.Program] {
	return fetch(ctx, c, request{
		method:   http.MethodPut,
		path:     "/v1/programs/" + url.PathEscape(id),
		body:     input,
		endpoint: "programs_update",
	}, adaptProgram)
}

func (c *Client) DeleteProgram(ctx context.Context, id string) models.Result[bool] {
	return fetch(ctx, c, request{
		method:   http.MethodDelete,
		path:     "/v1/programs/" + url.PathEscape(id),
		endpoint: "programs_delete",
	}, acknowledged)
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) models.Result[bool] {
	return fetch(ctx, c, request{
		method:   http.MethodPut,
		path:     "/v1/notifications/" + url.PathEscape(id) + "/read",
		endpoint: "notifications_read",
	}, acknowledged)
}

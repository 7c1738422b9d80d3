package api

import (
	"clarity/internal/models"
	"context"
	"fmt"
	"net/http"

	json "github.com/goccy/go-json"
)

// AdaptInstitution reads the institution payload, accepting the variants the
// backend has shipped:
//
//	name: institution.name → branch.branchName → instituteName → name
//	id:   _id → id → institutionId
func AdaptInstitution(raw json.RawMessage) (models.InstitutionSnapshot, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return models.InstitutionSnapshot{}, err
	}
	if nested, ok := obj["institution"].(map[string]any); ok && pickString(obj, "_id", "id", "institutionId") == "" {
		if pickString(nested, "_id", "id") != "" {
			obj = mergeInto(obj, nested)
		}
	}

	snap := models.InstitutionSnapshot{
		ID:      pickString(obj, "_id", "id", "institutionId"),
		Name:    pickString(obj, "institution.name", "branch.branchName", "instituteName", "name"),
		AdminID: pickString(obj, "adminId", "admin._id", "admin.id", "owner"),
	}
	if snap.ID == "" {
		return snap, fmt.Errorf("institution payload has no id")
	}
	return snap, nil
}

// mergeInto copies fields of nested into a copy of obj without overwriting.
func mergeInto(obj, nested object) object {
	out := make(object, len(obj)+len(nested))
	for k, v := range nested {
		out[k] = v
	}
	for k, v := range obj {
		out[k] = v
	}
	return out
}

func (c *Client) GetInstitution(ctx context.Context) models.Result[models.InstitutionSnapshot] {
	return fetch(ctx, c, request{
		method:   http.MethodGet,
		path:     "/v1/institutions/me",
		endpoint: "institution",
	}, AdaptInstitution)
}

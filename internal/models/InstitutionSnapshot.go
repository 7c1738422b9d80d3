package models

type InstitutionSnapshot struct {
	LocalID     uint64 `json:"localId,omitempty"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	AdminID     string `json:"adminId,omitempty"`
	LastUpdated int64  `json:"lastUpdated"`
}

package models

type Program struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	InstitutionName string  `json:"institutionName,omitempty"`
	Status          string  `json:"status,omitempty"`
	Duration        string  `json:"duration,omitempty"`
	Fee             float64 `json:"fee,omitempty"`
	CreatedAt       int64   `json:"createdAt,omitempty"`
}

// ProgramInput is the body of create/update program mutations.
type ProgramInput struct {
	Name     string  `json:"programName"`
	Duration string  `json:"duration,omitempty"`
	Fee      float64 `json:"fee,omitempty"`
	Status   string  `json:"status,omitempty"`
}

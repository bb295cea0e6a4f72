// Package registry tracks versioned model artifacts: a binary blob per
// (name, version) plus searchable metadata. It shares the relational
// substrate with the content store but is an independent write path.
package registry

import "time"

// Artifact is one registered model version.
type Artifact struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Description string            `json:"description,omitempty"`
	UseCase     string            `json:"use_case,omitempty"`
	ModelType   string            `json:"model_type,omitempty"`
	Framework   string            `json:"framework,omitempty"`
	FilePath    string            `json:"file_path,omitempty"`
	FileSize    int64             `json:"file_size,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedBy   string            `json:"created_by,omitempty"`
	Active      bool              `json:"active"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// RegisterRequest describes a new artifact. Name and Version are
// required; FilePath optionally names a binary to copy into the blob
// store.
type RegisterRequest struct {
	Name        string
	Version     string
	FilePath    string
	Description string
	UseCase     string
	ModelType   string
	Framework   string
	Tags        []string
	Metrics     map[string]float64
	Metadata    map[string]string
	CreatedBy   string
}

// UpdateRequest carries the mutable artifact fields. Nil pointers and
// nil maps/slices leave the stored value unchanged; name, version, and
// file path are immutable after registration.
type UpdateRequest struct {
	Description *string
	UseCase     *string
	Tags        []string
	Metrics     map[string]float64
	Metadata    map[string]string
}

// SearchQuery filters the artifact listing. Zero values are ignored.
// Inactive artifacts are excluded unless IncludeInactive is set.
type SearchQuery struct {
	Query           string
	UseCase         string
	ModelType       string
	Framework       string
	Tags            []string
	IncludeInactive bool
	Limit           int
}

// DefaultSearchLimit bounds searches that do not set a limit.
const DefaultSearchLimit = 50

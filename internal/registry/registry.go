package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pulseerrors "github.com/UncleTupelo/pulse/internal/errors"
)

const artifactSchema = `
CREATE TABLE IF NOT EXISTS artifacts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	version     TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	use_case    TEXT NOT NULL DEFAULT '',
	model_type  TEXT NOT NULL DEFAULT '',
	framework   TEXT NOT NULL DEFAULT '',
	file_path   TEXT NOT NULL DEFAULT '',
	file_size   INTEGER NOT NULL DEFAULT 0,
	tags        TEXT NOT NULL DEFAULT '[]',
	metrics     TEXT NOT NULL DEFAULT '{}',
	metadata    TEXT NOT NULL DEFAULT '{}',
	created_by  TEXT NOT NULL DEFAULT '',
	is_active   INTEGER NOT NULL DEFAULT 1,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL,
	UNIQUE(name, version)
);

CREATE INDEX IF NOT EXISTS idx_artifacts_name ON artifacts(name);
CREATE INDEX IF NOT EXISTS idx_artifacts_updated ON artifacts(updated_at);
`

const artifactColumns = `id, name, version, description, use_case, model_type, framework,
	file_path, file_size, tags, metrics, metadata, created_by, is_active, created_at, updated_at`

// Registry manages versioned model artifacts over a shared SQLite
// handle and a blob store for the binaries.
type Registry struct {
	db     *sql.DB
	blobs  BlobStore
	logger *slog.Logger
}

// NewRegistry creates the artifacts table if needed. The database
// handle is shared with the metadata store; blobs may be nil for a
// metadata-only registry.
func NewRegistry(db *sql.DB, blobs BlobStore, logger *slog.Logger) (*Registry, error) {
	if db == nil {
		return nil, pulseerrors.Internal("database handle is required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.Exec(artifactSchema); err != nil {
		return nil, fmt.Errorf("create artifact schema: %w", err)
	}
	return &Registry{db: db, blobs: blobs, logger: logger}, nil
}

// Register inserts the metadata row and then stores the artifact binary
// when a file is given. The row insert claims the unique (name, version)
// slot first, so a duplicate registration is rejected before any file is
// copied and can never touch an earlier registration's stored blob. A
// failed copy removes the row again, so a rejected registration leaves
// no partial write.
func (r *Registry) Register(ctx context.Context, req RegisterRequest) (*Artifact, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, pulseerrors.Validation("artifact name is required")
	}
	if strings.TrimSpace(req.Version) == "" {
		return nil, pulseerrors.Validation("artifact version is required")
	}
	if req.FilePath != "" && r.blobs == nil {
		return nil, pulseerrors.Validation("no blob store configured, cannot store artifact file")
	}

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO artifacts (name, version, description, use_case, model_type, framework,
			file_path, file_size, tags, metrics, metadata, created_by, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, '', 0, ?, ?, ?, ?, 1, ?, ?)`,
		req.Name, req.Version, req.Description, req.UseCase, req.ModelType, req.Framework,
		jsonOr(req.Tags, "[]"), jsonOr(req.Metrics, "{}"), jsonOr(req.Metadata, "{}"),
		req.CreatedBy, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, pulseerrors.DuplicateVersion(req.Name, req.Version)
		}
		return nil, fmt.Errorf("insert artifact: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("artifact insert id: %w", err)
	}

	if req.FilePath != "" {
		storedPath, storedSize, err := r.blobs.Store(req.FilePath, req.Name, req.Version)
		if err != nil {
			r.removeRow(ctx, id)
			return nil, err
		}
		if _, err := r.db.ExecContext(ctx,
			`UPDATE artifacts SET file_path = ?, file_size = ? WHERE id = ?`,
			storedPath, storedSize, id); err != nil {
			if cleanupErr := r.blobs.Delete(storedPath); cleanupErr != nil {
				r.logger.Warn("failed to remove artifact file after failed registration",
					slog.String("path", storedPath),
					slog.String("error", cleanupErr.Error()))
			}
			r.removeRow(ctx, id)
			return nil, fmt.Errorf("record artifact file: %w", err)
		}
	}
	r.logger.Info("artifact registered",
		slog.String("name", req.Name),
		slog.String("version", req.Version),
		slog.Int64("id", id))
	return r.Get(ctx, id)
}

// removeRow best-effort deletes an artifact row during registration
// rollback.
func (r *Registry) removeRow(ctx context.Context, id int64) {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, id); err != nil {
		r.logger.Warn("failed to remove artifact row after failed registration",
			slog.Int64("id", id),
			slog.String("error", err.Error()))
	}
}

// Get returns an artifact by ID regardless of its active flag.
func (r *Registry) Get(ctx context.Context, id int64) (*Artifact, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`, id)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pulseerrors.NotFound("artifact", fmt.Sprintf("%d", id))
	}
	return a, err
}

// GetByNameVersion returns an artifact by its unique key.
func (r *Registry) GetByNameVersion(ctx context.Context, name, version string) (*Artifact, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE name = ? AND version = ?`, name, version)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pulseerrors.NotFound("artifact", name+"@"+version)
	}
	return a, err
}

// Update mutates the mutable fields only. Name, version, and the stored
// file are never touched.
func (r *Registry) Update(ctx context.Context, id int64, req UpdateRequest) (*Artifact, error) {
	var sets []string
	var args []any

	if req.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *req.Description)
	}
	if req.UseCase != nil {
		sets = append(sets, "use_case = ?")
		args = append(args, *req.UseCase)
	}
	if req.Tags != nil {
		sets = append(sets, "tags = ?")
		args = append(args, jsonOr(req.Tags, "[]"))
	}
	if req.Metrics != nil {
		sets = append(sets, "metrics = ?")
		args = append(args, jsonOr(req.Metrics, "{}"))
	}
	if req.Metadata != nil {
		sets = append(sets, "metadata = ?")
		args = append(args, jsonOr(req.Metadata, "{}"))
	}
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().UnixMilli(), id)

	result, err := r.db.ExecContext(ctx,
		"UPDATE artifacts SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("update artifact: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, pulseerrors.NotFound("artifact", fmt.Sprintf("%d", id))
	}
	return r.Get(ctx, id)
}

// Deactivate soft-deletes: the artifact disappears from default
// listings but stays retrievable by ID.
func (r *Registry) Deactivate(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE artifacts SET is_active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("deactivate artifact: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return pulseerrors.NotFound("artifact", fmt.Sprintf("%d", id))
	}
	return nil
}

// Delete permanently removes the row and the stored binary. This is
// irreversible and must be requested explicitly.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	a, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete artifact: %w", err)
	}
	if a.FilePath != "" && r.blobs != nil {
		if err := r.blobs.Delete(a.FilePath); err != nil {
			r.logger.Warn("failed to remove artifact file",
				slog.String("path", a.FilePath),
				slog.String("error", err.Error()))
		}
	}
	r.logger.Info("artifact deleted",
		slog.String("name", a.Name),
		slog.String("version", a.Version),
		slog.Int64("id", id))
	return nil
}

// Search filters artifacts and returns the page plus the total match
// count ignoring the limit. Results are ordered by update time, newest
// first, with ID as the deterministic tie-break.
func (r *Registry) Search(ctx context.Context, q SearchQuery) ([]*Artifact, int, error) {
	var conds []string
	var args []any

	if !q.IncludeInactive {
		conds = append(conds, "is_active = 1")
	}
	if q.Query != "" {
		conds = append(conds, "(name LIKE ? OR description LIKE ? OR use_case LIKE ?)")
		term := "%" + q.Query + "%"
		args = append(args, term, term, term)
	}
	if q.UseCase != "" {
		conds = append(conds, "use_case = ?")
		args = append(args, q.UseCase)
	}
	if q.ModelType != "" {
		conds = append(conds, "model_type = ?")
		args = append(args, q.ModelType)
	}
	if q.Framework != "" {
		conds = append(conds, "framework = ?")
		args = append(args, q.Framework)
	}
	for _, tag := range q.Tags {
		// Tags are stored as a JSON array; match the quoted element.
		conds = append(conds, "tags LIKE ?")
		args = append(args, `%"`+tag+`"%`)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM artifacts"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count artifacts: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	listArgs := append(append([]any{}, args...), limit)
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+artifactColumns+" FROM artifacts"+where+
			" ORDER BY updated_at DESC, id DESC LIMIT ?", listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("search artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, 0, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, total, rows.Err()
}

// List returns active artifacts ordered by update time.
func (r *Registry) List(ctx context.Context, limit int) ([]*Artifact, int, error) {
	return r.Search(ctx, SearchQuery{Limit: limit})
}

// RetrieveFile reads the stored binary for an artifact.
func (r *Registry) RetrieveFile(ctx context.Context, id int64) ([]byte, error) {
	a, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.FilePath == "" {
		return nil, pulseerrors.NotFound("artifact file", fmt.Sprintf("%d", id))
	}
	if r.blobs == nil {
		return nil, pulseerrors.Internal("no blob store configured", nil)
	}
	return r.blobs.Retrieve(a.FilePath)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*Artifact, error) {
	var a Artifact
	var tagsJSON, metricsJSON, metadataJSON string
	var active int
	var createdMs, updatedMs int64

	err := row.Scan(&a.ID, &a.Name, &a.Version, &a.Description, &a.UseCase,
		&a.ModelType, &a.Framework, &a.FilePath, &a.FileSize,
		&tagsJSON, &metricsJSON, &metadataJSON,
		&a.CreatedBy, &active, &createdMs, &updatedMs)
	if err != nil {
		return nil, err
	}

	a.Active = active != 0
	a.CreatedAt = time.UnixMilli(createdMs).UTC()
	a.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	if err := json.Unmarshal([]byte(tagsJSON), &a.Tags); err != nil {
		a.Tags = nil
	}
	if err := json.Unmarshal([]byte(metricsJSON), &a.Metrics); err != nil {
		a.Metrics = nil
	}
	if err := json.Unmarshal([]byte(metadataJSON), &a.Metadata); err != nil {
		a.Metadata = nil
	}
	return &a, nil
}

func jsonOr(v any, empty string) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return empty
	}
	return string(data)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	pulseerrors "github.com/UncleTupelo/pulse/internal/errors"
)

// SQLiteStore implements MetadataStore on modernc.org/sqlite (no CGO).
type SQLiteStore struct {
	db *sql.DB
}

var _ MetadataStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS source_items (
	id            TEXT PRIMARY KEY,
	path          TEXT NOT NULL UNIQUE,
	title         TEXT NOT NULL,
	file_type     TEXT NOT NULL,
	category      TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	status        TEXT NOT NULL,
	status_note   TEXT NOT NULL DEFAULT '',
	importance    INTEGER NOT NULL DEFAULT 0,
	metadata      TEXT NOT NULL DEFAULT '{}',
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS content_units (
	id          TEXT PRIMARY KEY,
	item_id     TEXT NOT NULL REFERENCES source_items(id) ON DELETE CASCADE,
	ordinal     INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	text        TEXT NOT NULL,
	attrs       TEXT NOT NULL DEFAULT '{}',
	importance  INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL,
	UNIQUE(item_id, ordinal)
);

CREATE TABLE IF NOT EXISTS item_tags (
	item_id  TEXT NOT NULL REFERENCES source_items(id) ON DELETE CASCADE,
	tag      TEXT NOT NULL,
	UNIQUE(item_id, tag)
);

CREATE TABLE IF NOT EXISTS unit_embeddings (
	unit_id  TEXT PRIMARY KEY REFERENCES content_units(id) ON DELETE CASCADE,
	model    TEXT NOT NULL,
	dims     INTEGER NOT NULL,
	vector   BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS store_state (
	key    TEXT PRIMARY KEY,
	value  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_units_item ON content_units(item_id);
CREATE INDEX IF NOT EXISTS idx_units_kind ON content_units(kind);
CREATE INDEX IF NOT EXISTS idx_tags_tag ON item_tags(tag);
CREATE INDEX IF NOT EXISTS idx_items_file_type ON source_items(file_type);
CREATE INDEX IF NOT EXISTS idx_items_created ON source_items(created_at);
`

// OpenSQLite opens (or creates) the metadata database at path.
// cacheMB sizes the page cache; zero uses the SQLite default.
func OpenSQLite(path string, cacheMB int) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite handles one writer; a single connection avoids
	// SQLITE_BUSY races between pooled connections.
	db.SetMaxOpenConns(1)

	if cacheMB > 0 {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA cache_size = -%d", cacheMB*1024)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set cache size: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.SetState(context.Background(), StateKeySchemaVersion, strconv.Itoa(CurrentSchemaVersion)); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying handle for packages sharing the database
// file, such as the artifact registry.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// SaveItem upserts the item row and replaces its tag set in one
// transaction.
func (s *SQLiteStore) SaveItem(ctx context.Context, item *SourceItem) error {
	meta, err := json.Marshal(orEmpty(item.Metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO source_items
			(id, path, title, file_type, category, content_hash, status, status_note, importance, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			title = excluded.title,
			file_type = excluded.file_type,
			category = excluded.category,
			content_hash = excluded.content_hash,
			status = excluded.status,
			status_note = excluded.status_note,
			importance = excluded.importance,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		item.ID, item.Path, item.Title, item.FileType, item.Category,
		item.ContentHash, string(item.Status), item.StatusNote, item.Importance,
		string(meta), item.CreatedAt.UnixMilli(), item.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save item: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM item_tags WHERE item_id = ?`, item.ID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for _, tag := range item.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO item_tags (item_id, tag) VALUES (?, ?)`, item.ID, tag); err != nil {
			return fmt.Errorf("save tag: %w", err)
		}
	}

	return tx.Commit()
}

const itemColumns = `id, path, title, file_type, category, content_hash, status, status_note, importance, metadata, created_at, updated_at`

func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*SourceItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM source_items WHERE id = ?`, id)
	return s.scanItem(ctx, row, id)
}

func (s *SQLiteStore) GetItemByPath(ctx context.Context, path string) (*SourceItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM source_items WHERE path = ?`, path)
	return s.scanItem(ctx, row, path)
}

func (s *SQLiteStore) scanItem(ctx context.Context, row *sql.Row, ref string) (*SourceItem, error) {
	item, err := scanItemRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, pulseerrors.NotFound("item", ref)
		}
		return nil, err
	}
	item.Tags, err = s.itemTags(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func scanItemRow(scan func(...any) error) (*SourceItem, error) {
	var item SourceItem
	var status, metaJSON string
	var createdMs, updatedMs int64
	err := scan(&item.ID, &item.Path, &item.Title, &item.FileType, &item.Category,
		&item.ContentHash, &status, &item.StatusNote, &item.Importance,
		&metaJSON, &createdMs, &updatedMs)
	if err != nil {
		return nil, err
	}
	item.Status = ItemStatus(status)
	if err := json.Unmarshal([]byte(metaJSON), &item.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	item.CreatedAt = time.UnixMilli(createdMs).UTC()
	item.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return &item, nil
}

func (s *SQLiteStore) itemTags(ctx context.Context, itemID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tag FROM item_tags WHERE item_id = ? ORDER BY tag`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// buildItemFilter renders the filter as a WHERE clause and args.
func buildItemFilter(f ItemFilter) (string, []any) {
	var clauses []string
	var args []any

	addIn := func(col string, values []string) {
		if len(values) == 0 {
			return
		}
		placeholders := strings.Repeat("?,", len(values))
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", col, placeholders[:len(placeholders)-1]))
		for _, v := range values {
			args = append(args, v)
		}
	}

	addIn("file_type", f.FileTypes)
	addIn("category", f.Categories)
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		addIn("status", statuses)
	}
	if !f.CreatedAfter.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.CreatedAfter.UnixMilli())
	}
	if f.PathPrefix != "" {
		clauses = append(clauses, "path LIKE ? ESCAPE '\\'")
		args = append(args, escapeLike(f.PathPrefix)+"%")
	}
	if len(f.Tags) > 0 {
		sub := `id IN (SELECT item_id FROM item_tags WHERE tag IN (` +
			strings.TrimSuffix(strings.Repeat("?,", len(f.Tags)), ",") + `) GROUP BY item_id`
		if f.MatchAllTags {
			sub += ` HAVING COUNT(DISTINCT tag) = ?`
		}
		sub += `)`
		clauses = append(clauses, sub)
		for _, tag := range f.Tags {
			args = append(args, tag)
		}
		if f.MatchAllTags {
			args = append(args, len(f.Tags))
		}
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}

func (s *SQLiteStore) ListItems(ctx context.Context, filter ItemFilter) ([]*SourceItem, error) {
	where, args := buildItemFilter(filter)
	query := `SELECT ` + itemColumns + ` FROM source_items` + where + ` ORDER BY created_at DESC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*SourceItem
	for rows.Next() {
		item, err := scanItemRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, item := range items {
		if item.Tags, err = s.itemTags(ctx, item.ID); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (s *SQLiteStore) CountItems(ctx context.Context, filter ItemFilter) (int, error) {
	where, args := buildItemFilter(filter)
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM source_items`+where, args...).Scan(&count)
	return count, err
}

// CountUnits returns the total number of content units.
func (s *SQLiteStore) CountUnits(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_units`).Scan(&count)
	return count, err
}

func (s *SQLiteStore) UpdateItemStatus(ctx context.Context, id string, status ItemStatus, note string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE source_items SET status = ?, status_note = ?, updated_at = ? WHERE id = ?`,
		string(status), note, time.Now().UnixMilli(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pulseerrors.NotFound("item", id)
	}
	return nil
}

// DeleteItem removes an item; units, tags, and embeddings cascade.
func (s *SQLiteStore) DeleteItem(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM source_items WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) SaveUnits(ctx context.Context, units []*ContentUnit) error {
	if len(units) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO content_units (id, item_id, ordinal, kind, text, attrs, importance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ordinal = excluded.ordinal,
			kind = excluded.kind,
			text = excluded.text,
			attrs = excluded.attrs,
			importance = excluded.importance`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, u := range units {
		attrs, err := json.Marshal(orEmpty(u.Attrs))
		if err != nil {
			return fmt.Errorf("marshal attrs: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, u.ID, u.ItemID, u.Ordinal, u.Kind,
			u.Text, string(attrs), u.Importance, u.CreatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("save unit %s: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

const unitColumns = `id, item_id, ordinal, kind, text, attrs, importance, created_at`

func scanUnitRow(scan func(...any) error) (*ContentUnit, error) {
	var u ContentUnit
	var attrsJSON string
	var createdMs int64
	err := scan(&u.ID, &u.ItemID, &u.Ordinal, &u.Kind, &u.Text, &attrsJSON, &u.Importance, &createdMs)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(attrsJSON), &u.Attrs); err != nil {
		return nil, fmt.Errorf("unmarshal attrs: %w", err)
	}
	u.CreatedAt = time.UnixMilli(createdMs).UTC()
	return &u, nil
}

func (s *SQLiteStore) GetUnit(ctx context.Context, id string) (*ContentUnit, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+unitColumns+` FROM content_units WHERE id = ?`, id)
	u, err := scanUnitRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pulseerrors.NotFound("unit", id)
	}
	return u, err
}

// GetUnits returns units for the given IDs. Missing IDs are skipped;
// order follows the input.
func (s *SQLiteStore) GetUnits(ctx context.Context, ids []string) ([]*ContentUnit, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+unitColumns+` FROM content_units WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*ContentUnit, len(ids))
	for rows.Next() {
		u, err := scanUnitRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		byID[u.ID] = u
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*ContentUnit, 0, len(byID))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *SQLiteStore) GetUnitsByItem(ctx context.Context, itemID string) ([]*ContentUnit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+unitColumns+` FROM content_units WHERE item_id = ? ORDER BY ordinal`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []*ContentUnit
	for rows.Next() {
		u, err := scanUnitRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func (s *SQLiteStore) UnitIDsByItem(ctx context.Context, itemID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM content_units WHERE item_id = ? ORDER BY ordinal`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) DeleteUnitsByItem(ctx context.Context, itemID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM content_units WHERE item_id = ?`, itemID)
	return err
}

func (s *SQLiteStore) ReplaceItemTags(ctx context.Context, itemID string, tags []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM item_tags WHERE item_id = ?`, itemID); err != nil {
		return err
	}
	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO item_tags (item_id, tag) VALUES (?, ?)`, itemID, tag); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ItemIDsWithTags(ctx context.Context, tags []string, matchAll bool) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tags)), ",")
	query := `SELECT item_id FROM item_tags WHERE tag IN (` + placeholders + `) GROUP BY item_id`
	args := make([]any, 0, len(tags)+1)
	for _, tag := range tags {
		args = append(args, tag)
	}
	if matchAll {
		query += ` HAVING COUNT(DISTINCT tag) = ?`
		args = append(args, len(tags))
	}
	query += ` ORDER BY item_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TagCounts returns the most frequent tags, ties broken alphabetically.
func (s *SQLiteStore) TagCounts(ctx context.Context, limit int) ([]TagCount, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT tag, COUNT(*) AS n FROM item_tags
		GROUP BY tag ORDER BY n DESC, tag ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, tc)
	}
	return counts, rows.Err()
}

func (s *SQLiteStore) SaveUnitEmbeddings(ctx context.Context, embeddings []UnitEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO unit_embeddings (unit_id, model, dims, vector) VALUES (?, ?, ?, ?)
		ON CONFLICT(unit_id) DO UPDATE SET
			model = excluded.model, dims = excluded.dims, vector = excluded.vector`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range embeddings {
		if _, err := stmt.ExecContext(ctx, e.UnitID, e.Model, len(e.Vector), encodeVector(e.Vector)); err != nil {
			return fmt.Errorf("save embedding %s: %w", e.UnitID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetUnitEmbedding(ctx context.Context, unitID string) ([]float32, error) {
	var blob []byte
	var dims int
	err := s.db.QueryRowContext(ctx,
		`SELECT vector, dims FROM unit_embeddings WHERE unit_id = ?`, unitID).Scan(&blob, &dims)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pulseerrors.NotFound("embedding", unitID)
	}
	if err != nil {
		return nil, err
	}
	return decodeVector(blob, dims)
}

// AllEmbeddings streams every stored vector, used to rebuild the HNSW
// index after compaction or dimension changes.
func (s *SQLiteStore) AllEmbeddings(ctx context.Context) ([]UnitEmbedding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT unit_id, model, dims, vector FROM unit_embeddings ORDER BY unit_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UnitEmbedding
	for rows.Next() {
		var e UnitEmbedding
		var blob []byte
		var dims int
		if err := rows.Scan(&e.UnitID, &e.Model, &dims, &blob); err != nil {
			return nil, err
		}
		if e.Vector, err = decodeVector(blob, dims); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM store_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO store_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// Package sqlite provides a SQLite-backed graph store driver.
//
// Fulltext search is served by FTS5 virtual tables kept in sync with the
// entities and artifacts tables via triggers. Dedup uniqueness is enforced
// by a partial unique index over non-terminal entities, so two concurrent
// creators of the same concept converge at the storage level even if the
// in-process lock table is bypassed.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/recall/pkg/graph"
	"github.com/papercomputeco/recall/pkg/store"
)

// Driver implements store.Driver using SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver creates a SQLite-backed graph store.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and sidesteps
	// SQLITE_BUSY between pooled writers.
	db.SetMaxOpenConns(1)

	d := &Driver{db: db}

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return d, nil
}

const pragmas = `
PRAGMA journal_mode = WAL;
PRAGMA busy_timeout = 5000;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
`

const schema = `
CREATE TABLE IF NOT EXISTS interactions (
	id          TEXT PRIMARY KEY,
	project_id  TEXT NOT NULL,
	raw_text    TEXT NOT NULL,
	files       TEXT NOT NULL DEFAULT '[]',
	diff        TEXT NOT NULL DEFAULT '',
	symbols     TEXT NOT NULL DEFAULT '[]',
	tags        TEXT NOT NULL DEFAULT '[]',
	created_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_interactions_project ON interactions(project_id, created_at);

CREATE TABLE IF NOT EXISTS entities (
	id                  TEXT PRIMARY KEY,
	project_id          TEXT NOT NULL,
	entity_type         TEXT NOT NULL,
	title               TEXT NOT NULL,
	normalized_title    TEXT NOT NULL,
	body                TEXT NOT NULL DEFAULT '',
	status              TEXT NOT NULL DEFAULT 'active',
	priority            INTEGER NOT NULL DEFAULT 0,
	acceptance_criteria TEXT NOT NULL DEFAULT '[]',
	tags                TEXT NOT NULL DEFAULT '[]',
	mention_count       INTEGER NOT NULL DEFAULT 1,
	created_at          TIMESTAMP NOT NULL,
	last_seen_at        TIMESTAMP NOT NULL
);

-- One non-terminal node per concept: the dedup invariant, enforced where it
-- cannot be raced past.
CREATE UNIQUE INDEX IF NOT EXISTS idx_entities_active_concept
	ON entities(project_id, entity_type, normalized_title)
	WHERE status NOT IN ('superseded', 'completed', 'resolved');

CREATE INDEX IF NOT EXISTS idx_entities_project_type ON entities(project_id, entity_type, status);

CREATE TABLE IF NOT EXISTS artifacts (
	id           TEXT PRIMARY KEY,
	project_id   TEXT NOT NULL,
	path         TEXT NOT NULL,
	kind         TEXT NOT NULL DEFAULT 'file',
	language     TEXT NOT NULL DEFAULT '',
	symbol_fqn   TEXT NOT NULL DEFAULT '',
	start_line   INTEGER NOT NULL DEFAULT 0,
	end_line     INTEGER NOT NULL DEFAULT 0,
	git_commit   TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT '',
	updated_at   TIMESTAMP NOT NULL,
	UNIQUE(project_id, path, symbol_fqn)
);

CREATE INDEX IF NOT EXISTS idx_artifacts_symbol ON artifacts(project_id, symbol_fqn);

CREATE TABLE IF NOT EXISTS edges (
	project_id TEXT NOT NULL,
	src_id     TEXT NOT NULL,
	dst_id     TEXT NOT NULL,
	edge_type  TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (project_id, src_id, dst_id, edge_type)
);

CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges(project_id, dst_id, edge_type);

CREATE VIRTUAL TABLE IF NOT EXISTS entities_fts USING fts5(
	title,
	body,
	content='entities',
	content_rowid='rowid'
);

CREATE VIRTUAL TABLE IF NOT EXISTS artifacts_fts USING fts5(
	path,
	symbol_fqn,
	content='artifacts',
	content_rowid='rowid'
);
`

const triggers = `
CREATE TRIGGER IF NOT EXISTS entities_ai AFTER INSERT ON entities BEGIN
	INSERT INTO entities_fts(rowid, title, body) VALUES (new.rowid, new.title, new.body);
END;
CREATE TRIGGER IF NOT EXISTS entities_ad AFTER DELETE ON entities BEGIN
	INSERT INTO entities_fts(entities_fts, rowid, title, body) VALUES ('delete', old.rowid, old.title, old.body);
END;
CREATE TRIGGER IF NOT EXISTS entities_au AFTER UPDATE ON entities BEGIN
	INSERT INTO entities_fts(entities_fts, rowid, title, body) VALUES ('delete', old.rowid, old.title, old.body);
	INSERT INTO entities_fts(rowid, title, body) VALUES (new.rowid, new.title, new.body);
END;

CREATE TRIGGER IF NOT EXISTS artifacts_ai AFTER INSERT ON artifacts BEGIN
	INSERT INTO artifacts_fts(rowid, path, symbol_fqn) VALUES (new.rowid, new.path, new.symbol_fqn);
END;
CREATE TRIGGER IF NOT EXISTS artifacts_ad AFTER DELETE ON artifacts BEGIN
	INSERT INTO artifacts_fts(artifacts_fts, rowid, path, symbol_fqn) VALUES ('delete', old.rowid, old.path, old.symbol_fqn);
END;
CREATE TRIGGER IF NOT EXISTS artifacts_au AFTER UPDATE ON artifacts BEGIN
	INSERT INTO artifacts_fts(artifacts_fts, rowid, path, symbol_fqn) VALUES ('delete', old.rowid, old.path, old.symbol_fqn);
	INSERT INTO artifacts_fts(rowid, path, symbol_fqn) VALUES (new.rowid, new.path, new.symbol_fqn);
END;
`

// migrate creates the tables, indexes, FTS shadow tables, and triggers.
func (d *Driver) migrate() error {
	for _, stmts := range []string{pragmas, schema, triggers} {
		if _, err := d.db.Exec(stmts); err != nil {
			return err
		}
	}
	return nil
}

// PutInteraction stores an immutable interaction record.
func (d *Driver) PutInteraction(ctx context.Context, in *graph.Interaction) error {
	if in == nil {
		return store.ValidationError{Field: "interaction", Reason: "nil"}
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO interactions (id, project_id, raw_text, files, diff, symbols, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.ProjectID, in.RawText,
		marshalStrings(in.Files), in.Diff,
		marshalStrings(in.Symbols), marshalStrings(in.Tags),
		in.CreatedAt.UTC(),
	)
	if err != nil {
		return store.UnavailableError{Op: "put interaction", Err: err}
	}

	return nil
}

// GetInteraction retrieves an interaction by id.
func (d *Driver) GetInteraction(ctx context.Context, projectID, id string) (*graph.Interaction, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, project_id, raw_text, files, diff, symbols, tags, created_at
		FROM interactions WHERE project_id = ? AND id = ?`,
		projectID, id,
	)

	var in graph.Interaction
	var files, symbols, tags string
	err := row.Scan(&in.ID, &in.ProjectID, &in.RawText, &files, &in.Diff, &symbols, &tags, &in.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFoundError{Kind: "interaction", Key: id}
	}
	if err != nil {
		return nil, store.UnavailableError{Op: "get interaction", Err: err}
	}

	in.Files = unmarshalStrings(files)
	in.Symbols = unmarshalStrings(symbols)
	in.Tags = unmarshalStrings(tags)

	return &in, nil
}

// CreateEntity inserts a new entity node. A unique-index violation on the
// active-concept index surfaces as ConflictError so the caller can merge
// into the winner.
func (d *Driver) CreateEntity(ctx context.Context, e *graph.Entity) error {
	if e == nil {
		return store.ValidationError{Field: "entity", Reason: "nil"}
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO entities (
			id, project_id, entity_type, title, normalized_title, body, status,
			priority, acceptance_criteria, tags, mention_count, created_at, last_seen_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProjectID, string(e.Type), e.Title, e.NormalizedTitle, e.Body, string(e.Status),
		e.Priority, marshalStrings(e.AcceptanceCriteria), marshalStrings(e.Tags),
		e.MentionCount, e.CreatedAt.UTC(), e.LastSeenAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ConflictError{Key: e.ProjectID + "/" + string(e.Type) + "/" + e.NormalizedTitle}
		}
		return store.UnavailableError{Op: "create entity", Err: err}
	}

	return nil
}

// GetEntity retrieves an entity by id.
func (d *Driver) GetEntity(ctx context.Context, projectID, id string) (*graph.Entity, error) {
	entities, err := d.GetEntities(ctx, projectID, []string{id})
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, store.NotFoundError{Kind: "entity", Key: id}
	}
	return entities[0], nil
}

// GetEntities retrieves entities by id, skipping unresolved ids.
func (d *Driver) GetEntities(ctx context.Context, projectID string, ids []string) ([]*graph.Entity, error) {
	if len(ids) == 0 {
		return []*graph.Entity{}, nil
	}

	query := `
		SELECT id, project_id, entity_type, title, normalized_title, body, status,
		       priority, acceptance_criteria, tags, mention_count, created_at, last_seen_at
		FROM entities WHERE project_id = ? AND id IN (` + placeholders(len(ids)) + `)`

	args := make([]any, 0, len(ids)+1)
	args = append(args, projectID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.UnavailableError{Op: "get entities", Err: err}
	}
	defer rows.Close()

	return scanEntities(rows)
}

// FindActiveEntity finds the non-terminal entity matching the normalized title.
func (d *Driver) FindActiveEntity(ctx context.Context, projectID string, t graph.NodeType, normalizedTitle string) (*graph.Entity, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, project_id, entity_type, title, normalized_title, body, status,
		       priority, acceptance_criteria, tags, mention_count, created_at, last_seen_at
		FROM entities
		WHERE project_id = ? AND entity_type = ? AND normalized_title = ?
		  AND status NOT IN ('superseded', 'completed', 'resolved')
		LIMIT 1`,
		projectID, string(t), normalizedTitle,
	)
	if err != nil {
		return nil, store.UnavailableError{Op: "find active entity", Err: err}
	}
	defer rows.Close()

	entities, err := scanEntities(rows)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, store.NotFoundError{Kind: "entity", Key: normalizedTitle}
	}

	return entities[0], nil
}

// RecordMention reinforces an entity inside a transaction so the tag union
// read-modify-write is atomic under concurrent mentions.
func (d *Driver) RecordMention(ctx context.Context, projectID, id string, seenAt time.Time, tags []string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return store.UnavailableError{Op: "record mention", Err: err}
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT tags FROM entities WHERE project_id = ? AND id = ?`,
		projectID, id,
	).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return store.NotFoundError{Kind: "entity", Key: id}
	}
	if err != nil {
		return store.UnavailableError{Op: "record mention", Err: err}
	}

	merged := mergeTags(unmarshalStrings(existing), tags)

	_, err = tx.ExecContext(ctx, `
		UPDATE entities
		SET mention_count = mention_count + 1,
		    last_seen_at = max(last_seen_at, ?),
		    tags = ?
		WHERE project_id = ? AND id = ?`,
		seenAt.UTC(), marshalStrings(merged), projectID, id,
	)
	if err != nil {
		return store.UnavailableError{Op: "record mention", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return store.UnavailableError{Op: "record mention", Err: err}
	}

	return nil
}

// SetEntityStatus applies an explicit status transition.
func (d *Driver) SetEntityStatus(ctx context.Context, projectID, id string, status graph.Status) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE entities SET status = ? WHERE project_id = ? AND id = ?`,
		string(status), projectID, id,
	)
	if err != nil {
		return store.UnavailableError{Op: "set entity status", Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return store.UnavailableError{Op: "set entity status", Err: err}
	}
	if n == 0 {
		return store.NotFoundError{Kind: "entity", Key: id}
	}

	return nil
}

// ActiveGoals lists non-terminal goals, priority descending then created_at
// ascending.
func (d *Driver) ActiveGoals(ctx context.Context, projectID string) ([]*graph.Entity, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, project_id, entity_type, title, normalized_title, body, status,
		       priority, acceptance_criteria, tags, mention_count, created_at, last_seen_at
		FROM entities
		WHERE project_id = ? AND entity_type = ?
		  AND status NOT IN ('superseded', 'completed', 'resolved')
		ORDER BY priority DESC, created_at ASC`,
		projectID, string(graph.TypeGoal),
	)
	if err != nil {
		return nil, store.UnavailableError{Op: "active goals", Err: err}
	}
	defer rows.Close()

	return scanEntities(rows)
}

// UpsertArtifact creates or refreshes an artifact keyed by
// (project, path, symbol_fqn) as a single atomic statement.
func (d *Driver) UpsertArtifact(ctx context.Context, a *graph.CodeArtifact) (*graph.CodeArtifact, error) {
	if a == nil {
		return nil, store.ValidationError{Field: "artifact", Reason: "nil"}
	}
	if a.Path == "" {
		return nil, store.ValidationError{Field: "path", Reason: "required"}
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO artifacts (
			id, project_id, path, kind, language, symbol_fqn,
			start_line, end_line, git_commit, content_hash, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, path, symbol_fqn) DO UPDATE SET
			kind = excluded.kind,
			language = CASE WHEN excluded.language != '' THEN excluded.language ELSE artifacts.language END,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			git_commit = CASE WHEN excluded.git_commit != '' THEN excluded.git_commit ELSE artifacts.git_commit END,
			content_hash = CASE WHEN excluded.content_hash != '' THEN excluded.content_hash ELSE artifacts.content_hash END,
			updated_at = excluded.updated_at`,
		a.ID, a.ProjectID, a.Path, string(a.Kind), a.Language, a.SymbolFQN,
		a.StartLine, a.EndLine, a.GitCommit, a.ContentHash, a.UpdatedAt.UTC(),
	)
	if err != nil {
		return nil, store.UnavailableError{Op: "upsert artifact", Err: err}
	}

	return d.artifactByKey(ctx, a.ProjectID, a.Path, a.SymbolFQN)
}

func (d *Driver) artifactByKey(ctx context.Context, projectID, path, symbolFQN string) (*graph.CodeArtifact, error) {
	rows, err := d.db.QueryContext(ctx, artifactSelect+
		` WHERE project_id = ? AND path = ? AND symbol_fqn = ?`,
		projectID, path, symbolFQN,
	)
	if err != nil {
		return nil, store.UnavailableError{Op: "get artifact", Err: err}
	}
	defer rows.Close()

	artifacts, err := scanArtifacts(rows)
	if err != nil {
		return nil, err
	}
	if len(artifacts) == 0 {
		return nil, store.NotFoundError{Kind: "artifact", Key: path}
	}

	return artifacts[0], nil
}

const artifactSelect = `
	SELECT id, project_id, path, kind, language, symbol_fqn,
	       start_line, end_line, git_commit, content_hash, updated_at
	FROM artifacts`

// GetArtifacts retrieves artifacts by id, skipping unresolved ids.
func (d *Driver) GetArtifacts(ctx context.Context, projectID string, ids []string) ([]*graph.CodeArtifact, error) {
	return d.artifactsIn(ctx, projectID, "id", ids)
}

// ArtifactsByPaths resolves artifacts by exact path match.
func (d *Driver) ArtifactsByPaths(ctx context.Context, projectID string, paths []string) ([]*graph.CodeArtifact, error) {
	return d.artifactsIn(ctx, projectID, "path", paths)
}

// ArtifactsBySymbols resolves artifacts by symbol FQN.
func (d *Driver) ArtifactsBySymbols(ctx context.Context, projectID string, symbols []string) ([]*graph.CodeArtifact, error) {
	return d.artifactsIn(ctx, projectID, "symbol_fqn", symbols)
}

func (d *Driver) artifactsIn(ctx context.Context, projectID, column string, values []string) ([]*graph.CodeArtifact, error) {
	if len(values) == 0 {
		return []*graph.CodeArtifact{}, nil
	}

	query := artifactSelect + ` WHERE project_id = ? AND ` + column + ` IN (` + placeholders(len(values)) + `)`

	args := make([]any, 0, len(values)+1)
	args = append(args, projectID)
	for _, v := range values {
		args = append(args, v)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.UnavailableError{Op: "query artifacts", Err: err}
	}
	defer rows.Close()

	return scanArtifacts(rows)
}

// PutEdge stores a relationship edge idempotently.
func (d *Driver) PutEdge(ctx context.Context, e graph.Edge) error {
	if e.SrcID == "" || e.DstID == "" {
		return store.ValidationError{Field: "edge", Reason: "src and dst required"}
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO edges (project_id, src_id, dst_id, edge_type, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ProjectID, e.SrcID, e.DstID, string(e.Type), time.Now().UTC(),
	)
	if err != nil {
		return store.UnavailableError{Op: "put edge", Err: err}
	}

	return nil
}

// Neighbors returns edges of the given types touching any of the ids in
// either direction.
func (d *Driver) Neighbors(ctx context.Context, projectID string, ids []string, types []graph.EdgeType) ([]graph.Edge, error) {
	if len(ids) == 0 {
		return []graph.Edge{}, nil
	}

	idPh := placeholders(len(ids))
	query := `
		SELECT project_id, src_id, dst_id, edge_type FROM edges
		WHERE project_id = ? AND (src_id IN (` + idPh + `) OR dst_id IN (` + idPh + `))`

	args := make([]any, 0, 2*len(ids)+len(types)+1)
	args = append(args, projectID)
	for _, id := range ids {
		args = append(args, id)
	}
	for _, id := range ids {
		args = append(args, id)
	}

	if len(types) > 0 {
		query += ` AND edge_type IN (` + placeholders(len(types)) + `)`
		for _, t := range types {
			args = append(args, string(t))
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.UnavailableError{Op: "neighbors", Err: err}
	}
	defer rows.Close()

	edges := []graph.Edge{}
	for rows.Next() {
		var e graph.Edge
		var et string
		if err := rows.Scan(&e.ProjectID, &e.SrcID, &e.DstID, &et); err != nil {
			return nil, store.UnavailableError{Op: "neighbors", Err: err}
		}
		e.Type = graph.EdgeType(et)
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, store.UnavailableError{Op: "neighbors", Err: err}
	}

	return edges, nil
}

// FulltextSearch queries the FTS5 indexes over entities and artifacts,
// merging both result sets by relevance.
func (d *Driver) FulltextSearch(ctx context.Context, projectID, query string, types []graph.NodeType, limit int) ([]store.SearchHit, error) {
	if limit <= 0 {
		return nil, store.ValidationError{Field: "limit", Reason: "must be positive"}
	}

	match := ftsMatchExpr(query)
	if match == "" {
		return []store.SearchHit{}, nil
	}

	wantArtifacts, entityTypes := splitTypeFilter(types)

	hits := []store.SearchHit{}

	if entityTypes == nil || len(entityTypes) > 0 {
		entityHits, err := d.searchEntities(ctx, projectID, match, entityTypes, limit)
		if err != nil {
			return nil, err
		}
		hits = append(hits, entityHits...)
	}

	if wantArtifacts {
		artifactHits, err := d.searchArtifacts(ctx, projectID, match, limit)
		if err != nil {
			return nil, err
		}
		hits = append(hits, artifactHits...)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hitTime(hits[i]).After(hitTime(hits[j]))
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}

	return hits, nil
}

func (d *Driver) searchEntities(ctx context.Context, projectID, match string, entityTypes []graph.NodeType, limit int) ([]store.SearchHit, error) {
	query := `
		SELECT e.id, e.project_id, e.entity_type, e.title, e.normalized_title, e.body, e.status,
		       e.priority, e.acceptance_criteria, e.tags, e.mention_count, e.created_at, e.last_seen_at,
		       -bm25(entities_fts) AS score
		FROM entities_fts
		JOIN entities e ON e.rowid = entities_fts.rowid
		WHERE entities_fts MATCH ? AND e.project_id = ?`

	args := []any{match, projectID}
	if len(entityTypes) > 0 {
		query += ` AND e.entity_type IN (` + placeholders(len(entityTypes)) + `)`
		for _, t := range entityTypes {
			args = append(args, string(t))
		}
	}

	query += ` ORDER BY score DESC, e.last_seen_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.UnavailableError{Op: "fulltext search", Err: err}
	}
	defer rows.Close()

	hits := []store.SearchHit{}
	for rows.Next() {
		var e graph.Entity
		var et, ac, tags string
		var score float64
		if err := rows.Scan(
			&e.ID, &e.ProjectID, &et, &e.Title, &e.NormalizedTitle, &e.Body, &e.Status,
			&e.Priority, &ac, &tags, &e.MentionCount, &e.CreatedAt, &e.LastSeenAt, &score,
		); err != nil {
			return nil, store.UnavailableError{Op: "fulltext search", Err: err}
		}
		e.Type = graph.NodeType(et)
		e.AcceptanceCriteria = unmarshalStrings(ac)
		e.Tags = unmarshalStrings(tags)

		hits = append(hits, store.SearchHit{NodeID: e.ID, Type: e.Type, Score: score, Entity: &e})
	}
	if err := rows.Err(); err != nil {
		return nil, store.UnavailableError{Op: "fulltext search", Err: err}
	}

	return hits, nil
}

func (d *Driver) searchArtifacts(ctx context.Context, projectID, match string, limit int) ([]store.SearchHit, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT a.id, a.project_id, a.path, a.kind, a.language, a.symbol_fqn,
		       a.start_line, a.end_line, a.git_commit, a.content_hash, a.updated_at,
		       -bm25(artifacts_fts) AS score
		FROM artifacts_fts
		JOIN artifacts a ON a.rowid = artifacts_fts.rowid
		WHERE artifacts_fts MATCH ? AND a.project_id = ?
		ORDER BY score DESC, a.updated_at DESC LIMIT ?`,
		match, projectID, limit,
	)
	if err != nil {
		return nil, store.UnavailableError{Op: "fulltext search", Err: err}
	}
	defer rows.Close()

	hits := []store.SearchHit{}
	for rows.Next() {
		var a graph.CodeArtifact
		var kind string
		var score float64
		if err := rows.Scan(
			&a.ID, &a.ProjectID, &a.Path, &kind, &a.Language, &a.SymbolFQN,
			&a.StartLine, &a.EndLine, &a.GitCommit, &a.ContentHash, &a.UpdatedAt, &score,
		); err != nil {
			return nil, store.UnavailableError{Op: "fulltext search", Err: err}
		}
		a.Kind = graph.ArtifactKind(kind)

		hits = append(hits, store.SearchHit{NodeID: a.ID, Type: graph.TypeCodeArtifact, Score: score, Artifact: &a})
	}
	if err := rows.Err(); err != nil {
		return nil, store.UnavailableError{Op: "fulltext search", Err: err}
	}

	return hits, nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	return d.db.Close()
}

// splitTypeFilter separates the CodeArtifact pseudo-type from entity types.
// A nil filter means "search everything" (nil entityTypes, artifacts on);
// a non-nil filter restricts both sides to exactly what it names.
func splitTypeFilter(types []graph.NodeType) (wantArtifacts bool, entityTypes []graph.NodeType) {
	if types == nil {
		return true, nil
	}

	entityTypes = []graph.NodeType{}
	for _, t := range types {
		if t == graph.TypeCodeArtifact {
			wantArtifacts = true
			continue
		}
		entityTypes = append(entityTypes, t)
	}

	return wantArtifacts, entityTypes
}

// ftsMatchExpr quotes each whitespace-separated token so user queries can't
// inject FTS5 operators. Tokens are implicitly ANDed.
func ftsMatchExpr(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}

	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}

	return strings.Join(quoted, " ")
}

func hitTime(h store.SearchHit) time.Time {
	if h.Entity != nil {
		return h.Entity.LastSeenAt
	}
	if h.Artifact != nil {
		return h.Artifact.UpdatedAt
	}
	return time.Time{}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

func scanEntities(rows *sql.Rows) ([]*graph.Entity, error) {
	entities := []*graph.Entity{}

	for rows.Next() {
		var e graph.Entity
		var et, status, ac, tags string
		if err := rows.Scan(
			&e.ID, &e.ProjectID, &et, &e.Title, &e.NormalizedTitle, &e.Body, &status,
			&e.Priority, &ac, &tags, &e.MentionCount, &e.CreatedAt, &e.LastSeenAt,
		); err != nil {
			return nil, store.UnavailableError{Op: "scan entity", Err: err}
		}
		e.Type = graph.NodeType(et)
		e.Status = graph.Status(status)
		e.AcceptanceCriteria = unmarshalStrings(ac)
		e.Tags = unmarshalStrings(tags)
		entities = append(entities, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, store.UnavailableError{Op: "scan entity", Err: err}
	}

	return entities, nil
}

func scanArtifacts(rows *sql.Rows) ([]*graph.CodeArtifact, error) {
	artifacts := []*graph.CodeArtifact{}

	for rows.Next() {
		var a graph.CodeArtifact
		var kind string
		if err := rows.Scan(
			&a.ID, &a.ProjectID, &a.Path, &kind, &a.Language, &a.SymbolFQN,
			&a.StartLine, &a.EndLine, &a.GitCommit, &a.ContentHash, &a.UpdatedAt,
		); err != nil {
			return nil, store.UnavailableError{Op: "scan artifact", Err: err}
		}
		a.Kind = graph.ArtifactKind(kind)
		artifacts = append(artifacts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, store.UnavailableError{Op: "scan artifact", Err: err}
	}

	return artifacts, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func marshalStrings(s []string) string {
	if len(s) == 0 {
		return "[]"
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalStrings(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func mergeTags(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	merged := make([]string, 0, len(existing)+len(incoming))

	for _, t := range existing {
		if t != "" && !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}
	for _, t := range incoming {
		if t != "" && !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}

	sort.Strings(merged)
	return merged
}

// Ensure Driver implements store.Driver
var _ store.Driver = (*Driver)(nil)

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/agentregistry-dev/promptregistry/internal/registry/validators"
	"github.com/agentregistry-dev/promptregistry/pkg/models"
)

// sqliteTimeLayout sorts lexicographically in chronological order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000Z"

// SQLite implements Database on an embedded SQLite file with the same schema
// as the PostgreSQL backend.
type SQLite struct {
	path   string
	logger *zap.Logger

	mu sync.RWMutex
	db *sql.DB
}

var _ Database = (*SQLite)(nil)

// sqlExecutor is satisfied by both *sql.DB and *sql.Tx.
type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS prompts (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		content     TEXT NOT NULL,
		description TEXT,
		is_template INTEGER NOT NULL DEFAULT 0,
		category    TEXT,
		metadata    TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		version     INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS prompt_versions (
		id          TEXT NOT NULL,
		version     INTEGER NOT NULL,
		name        TEXT NOT NULL,
		content     TEXT NOT NULL,
		description TEXT,
		is_template INTEGER NOT NULL DEFAULT 0,
		category    TEXT,
		metadata    TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		PRIMARY KEY (id, version)
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id   INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS prompt_tags (
		prompt_id TEXT NOT NULL REFERENCES prompts(id) ON DELETE CASCADE,
		tag_id    INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		tag_order INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (prompt_id, tag_id)
	)`,
	`CREATE TABLE IF NOT EXISTS prompt_variables (
		prompt_id      TEXT NOT NULL REFERENCES prompts(id) ON DELETE CASCADE,
		variable_name  TEXT NOT NULL,
		variable_order INTEGER NOT NULL,
		PRIMARY KEY (prompt_id, variable_name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_prompts_updated_at ON prompts (updated_at DESC, id)`,
	`CREATE INDEX IF NOT EXISTS idx_prompts_category ON prompts (category)`,
	`CREATE INDEX IF NOT EXISTS idx_prompt_tags_tag_id ON prompt_tags (tag_id)`,
}

// NewSQLite returns a repository backed by the database file at path.
func NewSQLite(path string, logger *zap.Logger) *SQLite {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLite{path: path, logger: logger}
}

func (s *SQLite) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	dsn := s.path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return storageErr("connect", fmt.Errorf("failed to open database: %w", err))
	}

	// SQLite serializes writers; a single connection keeps transactions simple.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return storageErr("connect", fmt.Errorf("failed to ping database: %w", err))
	}
	for i, stmt := range sqliteMigrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return storageErr("connect", fmt.Errorf("failed to run migration %d: %w", i+1, err))
		}
	}

	s.db = db
	return nil
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLite) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db != nil
}

func (s *SQLite) HealthCheck(ctx context.Context) bool {
	db, err := s.getDB()
	if err != nil {
		return false
	}
	var one int
	if err := db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		return false
	}
	return one == 1
}

func (s *SQLite) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, &StorageError{Op: "sqlite", Err: ErrNotConnected}
	}
	return s.db, nil
}

// inTransaction runs fn in a transaction that is rolled back unless fn succeeds.
func (s *SQLite) inTransaction(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("failed to rollback transaction", zap.Error(rbErr))
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLite) SavePrompt(ctx context.Context, in *models.CreatePromptInput) (*models.Prompt, error) {
	normalized, err := validators.NormalizeCreate(in)
	if err != nil {
		return nil, err
	}
	prompt := newPrompt(normalized)

	var saved *models.Prompt
	err = s.inTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		metadataJSON, err := marshalMetadata(prompt.Metadata)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO prompts (`+promptColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			prompt.ID, prompt.Name, prompt.Content, prompt.Description, prompt.IsTemplate,
			prompt.Category, nullableText(metadataJSON), formatSQLiteTime(prompt.CreatedAt),
			formatSQLiteTime(prompt.UpdatedAt), prompt.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to insert prompt: %w", err)
		}
		if err := s.insertVersion(ctx, tx, prompt); err != nil {
			return err
		}
		if err := s.replaceTags(ctx, tx, prompt.ID, prompt.Tags); err != nil {
			return err
		}
		if err := s.replaceVariables(ctx, tx, prompt.ID, prompt.Variables); err != nil {
			return err
		}
		saved, err = s.getCurrent(ctx, tx, prompt.ID)
		return err
	})
	if err != nil {
		return nil, storageErr("save prompt", err)
	}
	return saved, nil
}

func (s *SQLite) GetPromptByID(ctx context.Context, id string, version int) (*models.Prompt, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := checkVersionArg(version); err != nil {
		return nil, err
	}
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var prompt *models.Prompt
	if version <= 0 {
		prompt, err = s.getCurrent(ctx, db, id)
	} else {
		prompt, err = s.getVersion(ctx, db, id, version)
	}
	if err != nil {
		return nil, storageErr("get prompt", err)
	}
	return prompt, nil
}

func (s *SQLite) ListPrompts(ctx context.Context, filter *models.PromptFilter) ([]*models.Prompt, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := validators.ValidateFilter(filter); err != nil {
		return nil, err
	}
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var whereConditions []string
	args := []any{}
	if filter != nil {
		if filter.Category != nil {
			whereConditions = append(whereConditions, "p.category = ?")
			args = append(args, *filter.Category)
		}
		if filter.IsTemplate != nil {
			whereConditions = append(whereConditions, "p.is_template = ?")
			args = append(args, *filter.IsTemplate)
		}
		if tags := distinct(filter.Tags); len(tags) > 0 {
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(tags)), ", ")
			whereConditions = append(whereConditions, `p.id IN (
				SELECT pt.prompt_id FROM prompt_tags pt
				JOIN tags t ON t.id = pt.tag_id
				WHERE t.name IN (`+placeholders+`)
				GROUP BY pt.prompt_id
				HAVING COUNT(DISTINCT t.name) = ?)`)
			for _, tag := range tags {
				args = append(args, tag)
			}
			args = append(args, len(tags))
		}
	}

	whereClause := ""
	if len(whereConditions) > 0 {
		whereClause = "WHERE " + strings.Join(whereConditions, " AND ")
	}
	query := `
		SELECT p.id, p.name, p.content, p.description, p.is_template, p.category, p.metadata, p.created_at, p.updated_at, p.version
		FROM prompts p
		` + whereClause + `
		ORDER BY p.updated_at DESC, p.id ASC
		LIMIT ? OFFSET ?`
	args = append(args, filter.EffectiveLimit(), filter.EffectiveOffset())

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list prompts", fmt.Errorf("failed to query prompts: %w", err))
	}
	prompts := []*models.Prompt{}
	for rows.Next() {
		p, err := scanSQLitePrompt(rows)
		if err != nil {
			rows.Close()
			return nil, storageErr("list prompts", err)
		}
		prompts = append(prompts, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, storageErr("list prompts", fmt.Errorf("failed to iterate prompts: %w", err))
	}
	// the single connection must be released before hydrating
	rows.Close()

	for _, p := range prompts {
		if err := s.hydrate(ctx, db, p); err != nil {
			return nil, storageErr("list prompts", err)
		}
	}
	return prompts, nil
}

func (s *SQLite) UpdatePrompt(ctx context.Context, id string, patch *models.UpdatePromptInput) (*models.Prompt, error) {
	normalized, err := validators.NormalizeUpdate(patch)
	if err != nil {
		return nil, err
	}

	var updated *models.Prompt
	err = s.inTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		current, err := s.getCurrent(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := applyPatch(current, normalized)
		if err != nil {
			return err
		}
		metadataJSON, err := marshalMetadata(next.Metadata)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE prompts
			SET name = ?, content = ?, description = ?, is_template = ?, category = ?,
				metadata = ?, updated_at = ?, version = ?
			WHERE id = ?`,
			next.Name, next.Content, next.Description, next.IsTemplate, next.Category,
			nullableText(metadataJSON), formatSQLiteTime(next.UpdatedAt), next.Version, id,
		)
		if err != nil {
			return fmt.Errorf("failed to update prompt: %w", err)
		}
		if err := s.insertVersion(ctx, tx, next); err != nil {
			return err
		}
		if normalized.Tags != nil {
			if err := s.replaceTags(ctx, tx, id, next.Tags); err != nil {
				return err
			}
		}
		if !slices.Equal(current.Variables, next.Variables) {
			if err := s.replaceVariables(ctx, tx, id, next.Variables); err != nil {
				return err
			}
		}
		updated, err = s.getCurrent(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, storageErr("update prompt", err)
	}
	return updated, nil
}

func (s *SQLite) DeletePrompt(ctx context.Context, id string, version int) (bool, error) {
	if err := checkVersionArg(version); err != nil {
		return false, err
	}
	var deleted bool
	err := s.inTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if version > 0 {
			result, err := tx.ExecContext(ctx, `DELETE FROM prompt_versions WHERE id = ? AND version = ?`, id, version)
			if err != nil {
				return fmt.Errorf("failed to delete prompt version: %w", err)
			}
			n, err := result.RowsAffected()
			deleted = n > 0
			return err
		}

		for _, stmt := range []string{
			`DELETE FROM prompt_tags WHERE prompt_id = ?`,
			`DELETE FROM prompt_variables WHERE prompt_id = ?`,
			`DELETE FROM prompt_versions WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("failed to delete prompt associations: %w", err)
			}
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM prompts WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete prompt: %w", err)
		}
		n, err := result.RowsAffected()
		deleted = n > 0
		return err
	})
	if err != nil {
		return false, storageErr("delete prompt", err)
	}
	return deleted, nil
}

func (s *SQLite) ListPromptVersions(ctx context.Context, id string) ([]int, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT version FROM prompt_versions WHERE id = ? ORDER BY version ASC`, id)
	if err != nil {
		return nil, storageErr("list versions", fmt.Errorf("failed to query versions: %w", err))
	}
	defer rows.Close()

	versions := []int{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, storageErr("list versions", fmt.Errorf("failed to scan version: %w", err))
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list versions", fmt.Errorf("failed to iterate versions: %w", err))
	}
	return versions, nil
}

func (s *SQLite) getCurrent(ctx context.Context, executor sqlExecutor, id string) (*models.Prompt, error) {
	prompt, err := scanSQLitePrompt(executor.QueryRowContext(ctx, `SELECT `+promptColumns+` FROM prompts WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := s.hydrate(ctx, executor, prompt); err != nil {
		return nil, err
	}
	return prompt, nil
}

func (s *SQLite) getVersion(ctx context.Context, executor sqlExecutor, id string, version int) (*models.Prompt, error) {
	prompt, err := scanSQLitePrompt(executor.QueryRowContext(ctx,
		`SELECT `+promptColumns+` FROM prompt_versions WHERE id = ? AND version = ?`, id, version))
	if err != nil {
		return nil, err
	}
	if err := s.hydrate(ctx, executor, prompt); err != nil {
		return nil, err
	}
	return prompt, nil
}

func (s *SQLite) hydrate(ctx context.Context, executor sqlExecutor, prompt *models.Prompt) error {
	tags, err := sqliteStrings(ctx, executor, `
		SELECT t.name FROM prompt_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.prompt_id = ?
		ORDER BY pt.tag_order, t.name`, prompt.ID)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	variables, err := sqliteStrings(ctx, executor, `
		SELECT variable_name FROM prompt_variables
		WHERE prompt_id = ?
		ORDER BY variable_order`, prompt.ID)
	if err != nil {
		return fmt.Errorf("failed to load variables: %w", err)
	}
	mergeCurrentAssociations(prompt, tags, variables)
	return nil
}

func (s *SQLite) insertVersion(ctx context.Context, executor sqlExecutor, p *models.Prompt) error {
	metadataJSON, err := marshalMetadata(p.Metadata)
	if err != nil {
		return err
	}
	_, err = executor.ExecContext(ctx, `
		INSERT INTO prompt_versions (id, version, name, content, description, is_template, category, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Version, p.Name, p.Content, p.Description, p.IsTemplate, p.Category,
		nullableText(metadataJSON), formatSQLiteTime(p.CreatedAt), formatSQLiteTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert prompt version: %w", err)
	}
	return nil
}

func (s *SQLite) replaceTags(ctx context.Context, executor sqlExecutor, promptID string, tags []string) error {
	if _, err := executor.ExecContext(ctx, `DELETE FROM prompt_tags WHERE prompt_id = ?`, promptID); err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}
	for i, name := range tags {
		if _, err := executor.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name); err != nil {
			return fmt.Errorf("failed to upsert tag %q: %w", name, err)
		}
		var tagID int64
		if err := executor.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&tagID); err != nil {
			return fmt.Errorf("failed to resolve tag %q: %w", name, err)
		}
		if _, err := executor.ExecContext(ctx, `
			INSERT INTO prompt_tags (prompt_id, tag_id, tag_order) VALUES (?, ?, ?)
			ON CONFLICT (prompt_id, tag_id) DO NOTHING`, promptID, tagID, i); err != nil {
			return fmt.Errorf("failed to link tag %q: %w", name, err)
		}
	}
	return nil
}

func (s *SQLite) replaceVariables(ctx context.Context, executor sqlExecutor, promptID string, variables []string) error {
	if _, err := executor.ExecContext(ctx, `DELETE FROM prompt_variables WHERE prompt_id = ?`, promptID); err != nil {
		return fmt.Errorf("failed to clear variables: %w", err)
	}
	for i, name := range variables {
		if _, err := executor.ExecContext(ctx, `
			INSERT INTO prompt_variables (prompt_id, variable_name, variable_order) VALUES (?, ?, ?)
			ON CONFLICT (prompt_id, variable_name) DO NOTHING`, promptID, name, i); err != nil {
			return fmt.Errorf("failed to store variable %q: %w", name, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePrompt(row rowScanner) (*models.Prompt, error) {
	var (
		p                    models.Prompt
		description          sql.NullString
		category             sql.NullString
		metadata             sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Content, &description, &p.IsTemplate, &category,
		&metadata, &createdAt, &updatedAt, &p.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan prompt: %w", err)
	}
	if description.Valid {
		p.Description = &description.String
	}
	if category.Valid {
		p.Category = &category.String
	}
	if metadata.Valid {
		if p.Metadata, err = unmarshalMetadata([]byte(metadata.String)); err != nil {
			return nil, err
		}
	}
	if p.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(sqliteTimeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return &p, nil
}

func sqliteStrings(ctx context.Context, executor sqlExecutor, query string, args ...any) ([]string, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func nullableText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

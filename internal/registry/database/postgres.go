package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/agentregistry-dev/promptregistry/internal/registry/validators"
	"github.com/agentregistry-dev/promptregistry/pkg/models"
)

// PostgreSQL is an implementation of the Database interface using PostgreSQL
type PostgreSQL struct {
	connectionURI string
	logger        *zap.Logger

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

var _ Database = (*PostgreSQL)(nil)

// Executor is an interface for executing queries (satisfied by both pgx.Tx and pgxpool.Pool)
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// postgresMigrations are applied in order on every Connect.
var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS prompts (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		content     TEXT NOT NULL,
		description TEXT,
		is_template BOOLEAN NOT NULL DEFAULT FALSE,
		category    TEXT,
		metadata    JSONB,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL,
		version     INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS prompt_versions (
		id          TEXT NOT NULL,
		version     INTEGER NOT NULL,
		name        TEXT NOT NULL,
		content     TEXT NOT NULL,
		description TEXT,
		is_template BOOLEAN NOT NULL DEFAULT FALSE,
		category    TEXT,
		metadata    JSONB,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (id, version)
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id   SERIAL PRIMARY KEY,
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

const promptColumns = `id, name, content, description, is_template, category, metadata, created_at, updated_at, version`

// NewPostgreSQL creates a new instance of the PostgreSQL database. Call Connect
// before use.
func NewPostgreSQL(connectionURI string, logger *zap.Logger) *PostgreSQL {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgreSQL{connectionURI: connectionURI, logger: logger}
}

// Connect opens the pool and runs migrations.
func (db *PostgreSQL) Connect(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.pool != nil {
		return nil
	}

	// Parse connection config for pool settings
	config, err := pgxpool.ParseConfig(db.connectionURI)
	if err != nil {
		return storageErr("connect", fmt.Errorf("failed to parse PostgreSQL config: %w", err))
	}

	config.MaxConns = 30
	config.MinConns = 2
	config.MaxConnIdleTime = 30 * time.Minute
	config.MaxConnLifetime = 2 * time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return storageErr("connect", fmt.Errorf("failed to create PostgreSQL pool: %w", err))
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return storageErr("connect", fmt.Errorf("failed to ping PostgreSQL: %w", err))
	}

	for i, stmt := range postgresMigrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return storageErr("connect", fmt.Errorf("failed to run migration %d: %w", i+1, err))
		}
	}

	db.pool = pool
	return nil
}

// Close closes the database connection
func (db *PostgreSQL) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.pool != nil {
		db.pool.Close()
		db.pool = nil
	}
	return nil
}

func (db *PostgreSQL) IsConnected() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.pool != nil
}

func (db *PostgreSQL) HealthCheck(ctx context.Context) bool {
	pool, err := db.getPool()
	if err != nil {
		return false
	}
	var one int
	if err := pool.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		db.logger.Warn("health check failed", zap.Error(err))
		return false
	}
	return one == 1
}

func (db *PostgreSQL) getPool() (*pgxpool.Pool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.pool == nil {
		return nil, &StorageError{Op: "postgres", Err: ErrNotConnected}
	}
	return db.pool, nil
}

// InTransaction executes a function within a database transaction
func (db *PostgreSQL) InTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	pool, err := db.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	//nolint:contextcheck // Intentionally using separate context for rollback to ensure cleanup even if request is cancelled
	defer func() {
		rollbackCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		if rbErr := tx.Rollback(rollbackCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			db.logger.Error("failed to rollback transaction", zap.Error(rbErr))
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// InTransactionT is a generic helper that wraps InTransaction for functions returning a value.
func InTransactionT[T any](ctx context.Context, db *PostgreSQL, fn func(ctx context.Context, tx pgx.Tx) (T, error)) (T, error) {
	var result T
	err := db.InTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		result, err = fn(ctx, tx)
		return err
	})
	return result, err
}

// SavePrompt inserts the prompt row, version 1, tags and variables in one transaction.
func (db *PostgreSQL) SavePrompt(ctx context.Context, in *models.CreatePromptInput) (*models.Prompt, error) {
	normalized, err := validators.NormalizeCreate(in)
	if err != nil {
		return nil, err
	}
	prompt := newPrompt(normalized)

	saved, err := InTransactionT(ctx, db, func(ctx context.Context, tx pgx.Tx) (*models.Prompt, error) {
		metadataJSON, err := marshalMetadata(prompt.Metadata)
		if err != nil {
			return nil, err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO prompts (`+promptColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			prompt.ID, prompt.Name, prompt.Content, prompt.Description, prompt.IsTemplate,
			prompt.Category, metadataJSON, prompt.CreatedAt, prompt.UpdatedAt, prompt.Version,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return nil, fmt.Errorf("%w: prompt %s already exists", ErrConflict, prompt.ID)
			}
			return nil, fmt.Errorf("failed to insert prompt: %w", err)
		}
		if err := db.insertVersion(ctx, tx, prompt); err != nil {
			return nil, err
		}
		if err := db.replaceTags(ctx, tx, prompt.ID, prompt.Tags); err != nil {
			return nil, err
		}
		if err := db.replaceVariables(ctx, tx, prompt.ID, prompt.Variables); err != nil {
			return nil, err
		}
		return db.getCurrent(ctx, tx, prompt.ID)
	})
	if err != nil {
		return nil, storageErr("save prompt", err)
	}
	return saved, nil
}

// GetPromptByID retrieves the current prompt, or a historical version when version > 0.
func (db *PostgreSQL) GetPromptByID(ctx context.Context, id string, version int) (*models.Prompt, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := checkVersionArg(version); err != nil {
		return nil, err
	}
	pool, err := db.getPool()
	if err != nil {
		return nil, err
	}

	var prompt *models.Prompt
	if version <= 0 {
		prompt, err = db.getCurrent(ctx, pool, id)
	} else {
		prompt, err = db.getVersion(ctx, pool, id, version)
	}
	if err != nil {
		return nil, storageErr("get prompt", err)
	}
	return prompt, nil
}

// ListPrompts lists prompts ordered by updated_at descending.
func (db *PostgreSQL) ListPrompts(ctx context.Context, filter *models.PromptFilter) ([]*models.Prompt, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := validators.ValidateFilter(filter); err != nil {
		return nil, err
	}
	pool, err := db.getPool()
	if err != nil {
		return nil, err
	}

	var whereConditions []string
	args := []any{}
	argIndex := 1

	if filter != nil {
		if filter.Category != nil {
			whereConditions = append(whereConditions, fmt.Sprintf("p.category = $%d", argIndex))
			args = append(args, *filter.Category)
			argIndex++
		}
		if filter.IsTemplate != nil {
			whereConditions = append(whereConditions, fmt.Sprintf("p.is_template = $%d", argIndex))
			args = append(args, *filter.IsTemplate)
			argIndex++
		}
		if tags := distinct(filter.Tags); len(tags) > 0 {
			whereConditions = append(whereConditions, fmt.Sprintf(`p.id IN (
				SELECT pt.prompt_id FROM prompt_tags pt
				JOIN tags t ON t.id = pt.tag_id
				WHERE t.name = ANY($%d)
				GROUP BY pt.prompt_id
				HAVING COUNT(DISTINCT t.name) = $%d)`, argIndex, argIndex+1))
			args = append(args, tags, len(tags))
			argIndex += 2
		}
	}

	whereClause := ""
	if len(whereConditions) > 0 {
		whereClause = "WHERE " + strings.Join(whereConditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT p.id, p.name, p.content, p.description, p.is_template, p.category, p.metadata, p.created_at, p.updated_at, p.version
		FROM prompts p
		%s
		ORDER BY p.updated_at DESC, p.id ASC
		LIMIT $%d OFFSET $%d`, whereClause, argIndex, argIndex+1)
	args = append(args, filter.EffectiveLimit(), filter.EffectiveOffset())

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list prompts", fmt.Errorf("failed to query prompts: %w", err))
	}
	var prompts []*models.Prompt
	for rows.Next() {
		p, err := scanPostgresPrompt(rows)
		if err != nil {
			rows.Close()
			return nil, storageErr("list prompts", err)
		}
		prompts = append(prompts, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storageErr("list prompts", fmt.Errorf("failed to iterate prompts: %w", err))
	}

	for _, p := range prompts {
		if err := db.hydrate(ctx, pool, p); err != nil {
			return nil, storageErr("list prompts", err)
		}
	}
	if prompts == nil {
		prompts = []*models.Prompt{}
	}
	return prompts, nil
}

// UpdatePrompt writes the next version of a prompt. The live row is locked
// for the duration of the transaction.
func (db *PostgreSQL) UpdatePrompt(ctx context.Context, id string, patch *models.UpdatePromptInput) (*models.Prompt, error) {
	normalized, err := validators.NormalizeUpdate(patch)
	if err != nil {
		return nil, err
	}

	updated, err := InTransactionT(ctx, db, func(ctx context.Context, tx pgx.Tx) (*models.Prompt, error) {
		current, err := scanPostgresPrompt(tx.QueryRow(ctx, `SELECT `+promptColumns+` FROM prompts WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return nil, err
		}
		if err := db.hydrate(ctx, tx, current); err != nil {
			return nil, err
		}

		next, err := applyPatch(current, normalized)
		if err != nil {
			return nil, err
		}

		metadataJSON, err := marshalMetadata(next.Metadata)
		if err != nil {
			return nil, err
		}
		_, err = tx.Exec(ctx, `
			UPDATE prompts
			SET name = $2, content = $3, description = $4, is_template = $5, category = $6,
				metadata = $7, updated_at = $8, version = $9
			WHERE id = $1`,
			id, next.Name, next.Content, next.Description, next.IsTemplate, next.Category,
			metadataJSON, next.UpdatedAt, next.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update prompt: %w", err)
		}
		if err := db.insertVersion(ctx, tx, next); err != nil {
			return nil, err
		}
		if normalized.Tags != nil {
			if err := db.replaceTags(ctx, tx, id, next.Tags); err != nil {
				return nil, err
			}
		}
		if !slices.Equal(current.Variables, next.Variables) {
			if err := db.replaceVariables(ctx, tx, id, next.Variables); err != nil {
				return nil, err
			}
		}
		return db.getCurrent(ctx, tx, id)
	})
	if err != nil {
		return nil, storageErr("update prompt", err)
	}
	return updated, nil
}

// DeletePrompt removes one version, or the prompt with all versions and associations.
func (db *PostgreSQL) DeletePrompt(ctx context.Context, id string, version int) (bool, error) {
	if err := checkVersionArg(version); err != nil {
		return false, err
	}
	deleted, err := InTransactionT(ctx, db, func(ctx context.Context, tx pgx.Tx) (bool, error) {
		if version > 0 {
			result, err := tx.Exec(ctx, `DELETE FROM prompt_versions WHERE id = $1 AND version = $2`, id, version)
			if err != nil {
				return false, fmt.Errorf("failed to delete prompt version: %w", err)
			}
			return result.RowsAffected() > 0, nil
		}

		for _, stmt := range []string{
			`DELETE FROM prompt_tags WHERE prompt_id = $1`,
			`DELETE FROM prompt_variables WHERE prompt_id = $1`,
			`DELETE FROM prompt_versions WHERE id = $1`,
		} {
			if _, err := tx.Exec(ctx, stmt, id); err != nil {
				return false, fmt.Errorf("failed to delete prompt associations: %w", err)
			}
		}
		result, err := tx.Exec(ctx, `DELETE FROM prompts WHERE id = $1`, id)
		if err != nil {
			return false, fmt.Errorf("failed to delete prompt: %w", err)
		}
		return result.RowsAffected() > 0, nil
	})
	if err != nil {
		return false, storageErr("delete prompt", err)
	}
	return deleted, nil
}

// ListPromptVersions returns every stored version number for id, ascending.
func (db *PostgreSQL) ListPromptVersions(ctx context.Context, id string) ([]int, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	pool, err := db.getPool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `SELECT version FROM prompt_versions WHERE id = $1 ORDER BY version ASC`, id)
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

func (db *PostgreSQL) getCurrent(ctx context.Context, executor Executor, id string) (*models.Prompt, error) {
	prompt, err := scanPostgresPrompt(executor.QueryRow(ctx, `SELECT `+promptColumns+` FROM prompts WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := db.hydrate(ctx, executor, prompt); err != nil {
		return nil, err
	}
	return prompt, nil
}

func (db *PostgreSQL) getVersion(ctx context.Context, executor Executor, id string, version int) (*models.Prompt, error) {
	prompt, err := scanPostgresPrompt(executor.QueryRow(ctx, `
		SELECT `+promptColumns+`
		FROM prompt_versions WHERE id = $1 AND version = $2`, id, version))
	if err != nil {
		return nil, err
	}
	if err := db.hydrate(ctx, executor, prompt); err != nil {
		return nil, err
	}
	return prompt, nil
}

// hydrate loads the tags and variables associated with the prompt id.
func (db *PostgreSQL) hydrate(ctx context.Context, executor Executor, prompt *models.Prompt) error {
	tags, err := queryStrings(ctx, executor, `
		SELECT t.name FROM prompt_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.prompt_id = $1
		ORDER BY pt.tag_order, t.name`, prompt.ID)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	variables, err := queryStrings(ctx, executor, `
		SELECT variable_name FROM prompt_variables
		WHERE prompt_id = $1
		ORDER BY variable_order`, prompt.ID)
	if err != nil {
		return fmt.Errorf("failed to load variables: %w", err)
	}
	mergeCurrentAssociations(prompt, tags, variables)
	return nil
}

func (db *PostgreSQL) insertVersion(ctx context.Context, executor Executor, p *models.Prompt) error {
	metadataJSON, err := marshalMetadata(p.Metadata)
	if err != nil {
		return err
	}
	_, err = executor.Exec(ctx, `
		INSERT INTO prompt_versions (id, version, name, content, description, is_template, category, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Version, p.Name, p.Content, p.Description, p.IsTemplate, p.Category, metadataJSON, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: version %d of prompt %s already exists", ErrConflict, p.Version, p.ID)
		}
		return fmt.Errorf("failed to insert prompt version: %w", err)
	}
	return nil
}

// replaceTags swaps the tag set of a prompt. Tag rows are created with
// ON CONFLICT DO NOTHING so concurrent writers never see a unique violation.
func (db *PostgreSQL) replaceTags(ctx context.Context, executor Executor, promptID string, tags []string) error {
	if _, err := executor.Exec(ctx, `DELETE FROM prompt_tags WHERE prompt_id = $1`, promptID); err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}
	for i, name := range tags {
		if _, err := executor.Exec(ctx, `INSERT INTO tags (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name); err != nil {
			return fmt.Errorf("failed to upsert tag %q: %w", name, err)
		}
		var tagID int
		if err := executor.QueryRow(ctx, `SELECT id FROM tags WHERE name = $1`, name).Scan(&tagID); err != nil {
			return fmt.Errorf("failed to resolve tag %q: %w", name, err)
		}
		if _, err := executor.Exec(ctx, `
			INSERT INTO prompt_tags (prompt_id, tag_id, tag_order) VALUES ($1, $2, $3)
			ON CONFLICT (prompt_id, tag_id) DO NOTHING`, promptID, tagID, i); err != nil {
			return fmt.Errorf("failed to link tag %q: %w", name, err)
		}
	}
	return nil
}

func (db *PostgreSQL) replaceVariables(ctx context.Context, executor Executor, promptID string, variables []string) error {
	if _, err := executor.Exec(ctx, `DELETE FROM prompt_variables WHERE prompt_id = $1`, promptID); err != nil {
		return fmt.Errorf("failed to clear variables: %w", err)
	}
	for i, name := range variables {
		if _, err := executor.Exec(ctx, `
			INSERT INTO prompt_variables (prompt_id, variable_name, variable_order) VALUES ($1, $2, $3)
			ON CONFLICT (prompt_id, variable_name) DO NOTHING`, promptID, name, i); err != nil {
			return fmt.Errorf("failed to store variable %q: %w", name, err)
		}
	}
	return nil
}

func scanPostgresPrompt(row pgx.Row) (*models.Prompt, error) {
	var p models.Prompt
	var metadataJSON []byte
	err := row.Scan(&p.ID, &p.Name, &p.Content, &p.Description, &p.IsTemplate, &p.Category,
		&metadataJSON, &p.CreatedAt, &p.UpdatedAt, &p.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan prompt: %w", err)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	if p.Metadata, err = unmarshalMetadata(metadataJSON); err != nil {
		return nil, err
	}
	return &p, nil
}

func queryStrings(ctx context.Context, executor Executor, query string, args ...any) ([]string, error) {
	rows, err := executor.Query(ctx, query, args...)
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

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prompt metadata: %w", err)
	}
	return b, nil
}

func unmarshalMetadata(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal(b, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompt metadata: %w", err)
	}
	return metadata, nil
}

package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/agentregistry-dev/promptregistry/internal/registry/validators"
	"github.com/agentregistry-dev/promptregistry/pkg/models"
)

const (
	DefaultLockTimeout = 5 * time.Second
	lockRetryDelay     = 50 * time.Millisecond
	indexFileName      = "index.json"
	maxPathComponent   = 100
)

// indexEntry is the summary kept in index.json for listing without opening
// every version file.
type indexEntry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	IsTemplate  bool      `json:"isTemplate"`
	Tags        []string  `json:"tags"`
	Category    *string   `json:"category,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Version     int       `json:"version"`
}

// FileStore implements Database on a directory tree:
//
//	<root>/index.json           id -> summary of the current version
//	<root>/<id>/<version>.json  full prompt snapshot per version
//
// Writers are serialized by an in-process mutex and an exclusive flock on
// index.json.lock. Readers take no lock. The index and the version file are
// replaced by two separate atomic renames, so a crash between them can leave
// the index pointing at a version that was never written.
type FileStore struct {
	root        string
	indexPath   string
	lockTimeout time.Duration
	logger      *zap.Logger

	mu        sync.Mutex
	fileLock  *flock.Flock
	connected atomic.Bool
}

var _ Database = (*FileStore)(nil)

// NewFileStore returns a repository rooted at dir. A zero lockTimeout selects
// DefaultLockTimeout.
func NewFileStore(dir string, lockTimeout time.Duration, logger *zap.Logger) *FileStore {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	indexPath := filepath.Join(dir, indexFileName)
	return &FileStore{
		root:        dir,
		indexPath:   indexPath,
		lockTimeout: lockTimeout,
		logger:      logger,
		fileLock:    flock.New(indexPath + ".lock"),
	}
}

func (s *FileStore) Connect(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return storageErr("connect", fmt.Errorf("failed to create prompts directory: %w", err))
	}
	if _, err := os.Stat(s.indexPath); errors.Is(err, fs.ErrNotExist) {
		if err := atomicWriteFile(s.indexPath, []byte("{}")); err != nil {
			return storageErr("connect", fmt.Errorf("failed to create index: %w", err))
		}
	} else if err != nil {
		return storageErr("connect", err)
	}
	s.connected.Store(true)
	return nil
}

func (s *FileStore) Close() error {
	s.connected.Store(false)
	return nil
}

func (s *FileStore) IsConnected() bool {
	return s.connected.Load()
}

func (s *FileStore) HealthCheck(ctx context.Context) bool {
	if err := s.ensureConnected(); err != nil {
		return false
	}
	if _, err := s.readIndex(); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		return false
	}
	return true
}

func (s *FileStore) SavePrompt(ctx context.Context, in *models.CreatePromptInput) (*models.Prompt, error) {
	if err := s.ensureConnected(); err != nil {
		return nil, err
	}
	normalized, err := validators.NormalizeCreate(in)
	if err != nil {
		return nil, err
	}
	prompt := newPrompt(normalized)

	err = s.withLock(ctx, func() error {
		if err := s.writeVersion(prompt); err != nil {
			return err
		}
		return s.updateIndex(func(index map[string]indexEntry) {
			index[prompt.ID] = entryFor(prompt)
		})
	})
	if err != nil {
		return nil, storageErr("save prompt", err)
	}
	return prompt, nil
}

func (s *FileStore) GetPromptByID(ctx context.Context, id string, version int) (*models.Prompt, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := s.ensureConnected(); err != nil {
		return nil, err
	}
	if err := checkVersionArg(version); err != nil {
		return nil, err
	}
	if !storableID(id) {
		return nil, ErrNotFound
	}
	index, err := s.readIndex()
	if err != nil {
		return nil, storageErr("get prompt", err)
	}

	entry, live := index[id]
	if version <= 0 {
		if !live {
			return nil, ErrNotFound
		}
		prompt, err := s.readVersion(id, entry.Version)
		return prompt, storageErr("get prompt", err)
	}

	snapshot, err := s.readVersion(id, version)
	if err != nil {
		return nil, storageErr("get prompt", err)
	}
	if live && entry.Version != version {
		current, err := s.readVersion(id, entry.Version)
		if err != nil {
			return nil, storageErr("get prompt", err)
		}
		mergeCurrentAssociations(snapshot, current.Tags, current.Variables)
	}
	return snapshot, nil
}

func (s *FileStore) ListPrompts(ctx context.Context, filter *models.PromptFilter) ([]*models.Prompt, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := s.ensureConnected(); err != nil {
		return nil, err
	}
	if err := validators.ValidateFilter(filter); err != nil {
		return nil, err
	}
	index, err := s.readIndex()
	if err != nil {
		return nil, storageErr("list prompts", err)
	}

	entries := make([]indexEntry, 0, len(index))
	for _, e := range index {
		if matchesFilter(e, filter) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].UpdatedAt.Equal(entries[j].UpdatedAt) {
			return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
		}
		return entries[i].ID < entries[j].ID
	})

	// Entries whose version file is missing are skipped before paging so
	// offsets stay stable and only the last page comes back short.
	offset, limit := filter.EffectiveOffset(), filter.EffectiveLimit()
	prompts := make([]*models.Prompt, 0, min(limit, len(entries)))
	position := 0
	for _, e := range entries {
		if len(prompts) == limit {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if position < offset {
			_, err := os.Stat(s.versionPath(e.ID, e.Version))
			if errors.Is(err, fs.ErrNotExist) {
				s.logger.Warn("index entry without version file", zap.String("id", e.ID), zap.Int("version", e.Version))
				continue
			}
			if err != nil {
				return nil, storageErr("list prompts", err)
			}
			position++
			continue
		}
		p, err := s.readVersion(e.ID, e.Version)
		if errors.Is(err, ErrNotFound) {
			// index was updated ahead of the version file
			s.logger.Warn("index entry without version file", zap.String("id", e.ID), zap.Int("version", e.Version))
			continue
		}
		if err != nil {
			return nil, storageErr("list prompts", err)
		}
		position++
		prompts = append(prompts, p)
	}
	return prompts, nil
}

func (s *FileStore) UpdatePrompt(ctx context.Context, id string, patch *models.UpdatePromptInput) (*models.Prompt, error) {
	if err := s.ensureConnected(); err != nil {
		return nil, err
	}
	normalized, err := validators.NormalizeUpdate(patch)
	if err != nil {
		return nil, err
	}
	if !storableID(id) {
		return nil, ErrNotFound
	}

	var updated *models.Prompt
	err = s.withLock(ctx, func() error {
		index, err := s.readIndex()
		if err != nil {
			return err
		}
		entry, ok := index[id]
		if !ok {
			return ErrNotFound
		}
		current, err := s.readVersion(id, entry.Version)
		if err != nil {
			return err
		}
		next, err := applyPatch(current, normalized)
		if err != nil {
			return err
		}
		if err := s.writeVersion(next); err != nil {
			return err
		}
		index[id] = entryFor(next)
		if err := s.writeIndex(index); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, storageErr("update prompt", err)
	}
	return updated, nil
}

// DeletePrompt removes a version file, or the whole prompt directory. Removing
// the current version also drops the index entry.
func (s *FileStore) DeletePrompt(ctx context.Context, id string, version int) (bool, error) {
	if err := s.ensureConnected(); err != nil {
		return false, err
	}
	if err := checkVersionArg(version); err != nil {
		return false, err
	}
	if !storableID(id) {
		return false, nil
	}

	var deleted bool
	err := s.withLock(ctx, func() error {
		index, err := s.readIndex()
		if err != nil {
			return err
		}
		entry, live := index[id]

		if version > 0 {
			err := os.Remove(s.versionPath(id, version))
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to delete prompt version: %w", err)
			}
			deleted = true
			if live && entry.Version == version {
				delete(index, id)
				return s.writeIndex(index)
			}
			return nil
		}

		dir := s.promptDir(id)
		_, statErr := os.Stat(dir)
		if !live && errors.Is(statErr, fs.ErrNotExist) {
			return nil
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to delete prompt directory: %w", err)
		}
		deleted = true
		if live {
			delete(index, id)
			return s.writeIndex(index)
		}
		return nil
	})
	if err != nil {
		return false, storageErr("delete prompt", err)
	}
	return deleted, nil
}

var versionFilePattern = regexp.MustCompile(`^(\d+)\.json$`)

func (s *FileStore) ListPromptVersions(ctx context.Context, id string) ([]int, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := s.ensureConnected(); err != nil {
		return nil, err
	}
	if !storableID(id) {
		return []int{}, nil
	}
	entries, err := os.ReadDir(s.promptDir(id))
	if errors.Is(err, fs.ErrNotExist) {
		return []int{}, nil
	}
	if err != nil {
		return nil, storageErr("list versions", fmt.Errorf("failed to read prompt directory: %w", err))
	}

	versions := []int{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := versionFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	slices.Sort(versions)
	return versions, nil
}

func (s *FileStore) ensureConnected() error {
	if !s.connected.Load() {
		return &StorageError{Op: "file store", Err: ErrNotConnected}
	}
	return nil
}

// withLock serializes fn against every other writer, in this process and in
// any other process sharing the directory.
func (s *FileStore) withLock(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	locked, err := s.fileLock.TryLockContext(lockCtx, lockRetryDelay)
	if !locked {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		cause := fmt.Errorf("%w after %s", ErrLockTimeout, s.lockTimeout)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			cause = fmt.Errorf("%w: %w", ErrLockTimeout, err)
		}
		return &StorageError{Op: "acquire lock", Err: cause}
	}
	defer func() {
		if err := s.fileLock.Unlock(); err != nil {
			s.logger.Error("failed to release file lock", zap.Error(err))
		}
	}()

	return fn()
}

func (s *FileStore) readIndex() (map[string]indexEntry, error) {
	data, err := os.ReadFile(s.indexPath)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]indexEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	index := map[string]indexEntry{}
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse index: %w", err)
	}
	return index, nil
}

func (s *FileStore) writeIndex(index map[string]indexEntry) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	if err := atomicWriteFile(s.indexPath, data); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

func (s *FileStore) updateIndex(mutate func(map[string]indexEntry)) error {
	index, err := s.readIndex()
	if err != nil {
		return err
	}
	mutate(index)
	return s.writeIndex(index)
}

func (s *FileStore) readVersion(id string, version int) (*models.Prompt, error) {
	data, err := os.ReadFile(s.versionPath(id, version))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt %s version %d: %w", id, version, err)
	}
	var p models.Prompt
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse prompt %s version %d: %w", id, version, err)
	}
	p.Tags = nonNil(p.Tags)
	p.Variables = nonNil(p.Variables)
	return &p, nil
}

func (s *FileStore) writeVersion(p *models.Prompt) error {
	data, err := json.MarshalIndent(p.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal prompt: %w", err)
	}
	if err := atomicWriteFile(s.versionPath(p.ID, p.Version), data); err != nil {
		return fmt.Errorf("failed to write prompt %s version %d: %w", p.ID, p.Version, err)
	}
	return nil
}

// storableID reports whether id maps onto its own directory unchanged. Any
// other id would alias a different prompt's directory, so it can never name
// a stored prompt.
func storableID(id string) bool {
	return id != "" && sanitizePathComponent(id) == id
}

func (s *FileStore) promptDir(id string) string {
	return filepath.Join(s.root, sanitizePathComponent(id))
}

func (s *FileStore) versionPath(id string, version int) string {
	return filepath.Join(s.promptDir(id), strconv.Itoa(version)+".json")
}

func entryFor(p *models.Prompt) indexEntry {
	return indexEntry{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		IsTemplate:  p.IsTemplate,
		Tags:        nonNil(p.Tags),
		Category:    p.Category,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		Version:     p.Version,
	}
}

func matchesFilter(e indexEntry, filter *models.PromptFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Category != nil && (e.Category == nil || *e.Category != *filter.Category) {
		return false
	}
	if filter.IsTemplate != nil && e.IsTemplate != *filter.IsTemplate {
		return false
	}
	return hasAllTags(e.Tags, filter.Tags)
}

var unsafePathChars = regexp.MustCompile(`[<>:"|?*\x00-\x1f]`)

// sanitizePathComponent keeps an id from escaping the prompts directory.
func sanitizePathComponent(component string) string {
	c := unsafePathChars.ReplaceAllString(component, "")
	c = strings.ReplaceAll(c, "..", "")
	c = strings.Trim(c, `/\`)
	c = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return '-'
		}
		return r
	}, c)
	if len(c) > maxPathComponent {
		c = c[:maxPathComponent]
	}
	if c == "" || c == "." {
		c = "_"
	}
	return c
}

// atomicWriteFile writes data to a temp file in the target directory, syncs it
// and renames it over path.
func atomicWriteFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

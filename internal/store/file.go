package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"catalog-api/internal/apperr"
	"catalog-api/internal/domain"

	"go.uber.org/zap"
)

// DefaultCacheTTL is the freshness window after which a cached read is
// considered stale.
const DefaultCacheTTL = 5 * time.Minute

// FileStore persists the product collection as a single pretty-printed JSON
// array, keeping one backup generation of the previous content. All methods
// are safe for concurrent use.
type FileStore struct {
	path       string
	backupPath string
	ttl        time.Duration
	logger     *zap.Logger

	mu    sync.Mutex
	cache cache
}

// NewFileStore creates a store over the given primary and backup file paths.
// A non-positive ttl falls back to DefaultCacheTTL.
func NewFileStore(path, backupPath string, ttl time.Duration, logger *zap.Logger) *FileStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if backupPath == "" {
		backupPath = path + ".backup"
	}
	return &FileStore{
		path:       path,
		backupPath: backupPath,
		ttl:        ttl,
		logger:     logger,
	}
}

// LoadAll returns the current collection. A fresh cache snapshot is served
// without touching disk. A missing primary file initializes an empty
// collection (write-through). An unreadable or unparseable primary file
// triggers backup recovery; if the backup is unusable too the store resets
// to an empty collection, which is logged since it discards data.
func (s *FileStore) LoadAll(ctx context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if products, ok := s.cache.get(time.Now()); ok {
		return domain.CloneAll(products), nil
	}

	products, err := s.readPrimary()
	if err != nil {
		return nil, err
	}

	s.cache.set(products, time.Now(), s.ttl)
	return domain.CloneAll(products), nil
}

// Persist copies the current primary content to the backup location when a
// primary file exists, then rewrites the primary file with products and
// refreshes the cache. Write failures are not retried.
func (s *FileStore) Persist(ctx context.Context, products []domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		if err := copyFile(s.path, s.backupPath); err != nil {
			// Backup is best-effort: a failed copy must not block the write,
			// but it does cost the recovery generation.
			s.logger.Warn("failed to write backup generation",
				zap.String("backup", s.backupPath),
				zap.Error(err),
			)
		}
	}

	snapshot := domain.CloneAll(products)
	if err := s.writeCollection(s.path, snapshot); err != nil {
		s.cache.invalidate()
		return err
	}

	s.cache.set(snapshot, time.Now(), s.ttl)
	return nil
}

// InvalidateCache forces the next LoadAll to re-read from disk.
func (s *FileStore) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.invalidate()
}

// readPrimary reads and parses the primary file, handling the absent-file
// and corruption paths. Caller holds the mutex.
func (s *FileStore) readPrimary() ([]domain.Product, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if werr := s.writeCollection(s.path, []domain.Product{}); werr != nil {
			return nil, werr
		}
		s.logger.Info("initialized empty product collection", zap.String("file", s.path))
		return []domain.Product{}, nil
	}

	var products []domain.Product
	if err == nil {
		err = json.Unmarshal(raw, &products)
	}
	if err != nil {
		return s.recoverFromBackup(err)
	}

	return products, nil
}

// recoverFromBackup handles an unreadable primary file. The most recent
// backup generation becomes the new primary content when it parses; an
// unusable backup resets the collection to empty. Both paths are logged
// because the second one discards unreadable state.
func (s *FileStore) recoverFromBackup(cause error) ([]domain.Product, error) {
	s.logger.Error("primary product file unreadable, attempting backup recovery",
		zap.String("file", s.path),
		zap.Error(cause),
	)

	raw, err := os.ReadFile(s.backupPath)
	var products []domain.Product
	if err == nil {
		err = json.Unmarshal(raw, &products)
	}

	if err != nil {
		s.logger.Warn("backup unusable, resetting product collection to empty; unreadable data discarded",
			zap.String("backup", s.backupPath),
			zap.Error(err),
		)
		if werr := s.writeCollection(s.path, []domain.Product{}); werr != nil {
			return nil, werr
		}
		return []domain.Product{}, nil
	}

	if werr := s.writeCollection(s.path, products); werr != nil {
		return nil, werr
	}
	s.logger.Info("recovered product collection from backup",
		zap.String("backup", s.backupPath),
		zap.Int("products", len(products)),
	)
	return products, nil
}

// writeCollection serializes products pretty-printed and replaces the file
// at path, creating parent directories as needed.
func (s *FileStore) writeCollection(path string, products []domain.Product) error {
	if products == nil {
		products = []domain.Product{}
	}

	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return apperr.Storage("failed to serialize product collection", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperr.Storage("failed to create data directory", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperr.Storage("failed to write product collection", err)
	}

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

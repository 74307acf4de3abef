package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"catalog-api/internal/apperr"
	"catalog-api/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T, ttl time.Duration) (*FileStore, string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "products.json")
	backup := filepath.Join(dir, "products.backup.json")
	return NewFileStore(path, backup, ttl, zap.NewNop()), path, backup
}

func sampleProducts(n int) []domain.Product {
	now := time.Now().UTC().Truncate(time.Second)
	products := make([]domain.Product, 0, n)
	for i := 0; i < n; i++ {
		products = append(products, domain.Product{
			ID:          uuid.New(),
			Name:        "Product " + string(rune('A'+i)),
			Description: "A test product",
			Price:       10.5 + float64(i),
			Category:    "widgets",
			Stock:       i,
			Tags:        []string{"test"},
			IsActive:    true,
			CreatedAt:   now.Add(time.Duration(i) * time.Second),
			UpdatedAt:   now.Add(time.Duration(i) * time.Second),
		})
	}
	return products
}

func TestFileStore_LoadAll_InitializesMissingFile(t *testing.T) {
	st, path, _ := newTestStore(t, 0)

	products, err := st.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)

	// Write-through: the primary file must now exist and hold an empty array
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var onDisk []domain.Product
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Empty(t, onDisk)
}

func TestFileStore_PersistLoadRoundTrip(t *testing.T) {
	st, _, _ := newTestStore(t, 0)
	products := sampleProducts(3)

	require.NoError(t, st.Persist(context.Background(), products))

	st.InvalidateCache()
	loaded, err := st.LoadAll(context.Background())
	require.NoError(t, err)

	require.Len(t, loaded, 3)
	for i := range products {
		assert.Equal(t, products[i].ID, loaded[i].ID)
		assert.Equal(t, products[i].Name, loaded[i].Name)
		assert.Equal(t, products[i].Price, loaded[i].Price)
		assert.Equal(t, products[i].Tags, loaded[i].Tags)
		assert.True(t, products[i].CreatedAt.Equal(loaded[i].CreatedAt))
	}
}

func TestFileStore_OnDiskFormatIsPrettyPrintedArray(t *testing.T) {
	st, path, _ := newTestStore(t, 0)

	require.NoError(t, st.Persist(context.Background(), sampleProducts(2)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  ", "collection should be pretty-printed")
	assert.Equal(t, byte('['), raw[0], "collection should be a JSON array")
}

func TestFileStore_CacheServesWithinFreshnessWindow(t *testing.T) {
	st, path, _ := newTestStore(t, time.Hour)
	products := sampleProducts(2)
	require.NoError(t, st.Persist(context.Background(), products))

	// Change the file behind the store's back; a fresh cache must hide it.
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))

	loaded, err := st.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded, 2)

	// Invalidation forces the next read through to disk.
	st.InvalidateCache()
	loaded, err = st.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestFileStore_CacheExpiresAfterTTL(t *testing.T) {
	st, path, _ := newTestStore(t, 10*time.Millisecond)
	require.NoError(t, st.Persist(context.Background(), sampleProducts(2)))

	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))

	time.Sleep(25 * time.Millisecond)

	loaded, err := st.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded, "expired cache must re-read from disk")
}

func TestFileStore_PersistWritesBackupGeneration(t *testing.T) {
	st, _, backup := newTestStore(t, 0)

	first := sampleProducts(1)
	require.NoError(t, st.Persist(context.Background(), first))

	second := sampleProducts(2)
	require.NoError(t, st.Persist(context.Background(), second))

	raw, err := os.ReadFile(backup)
	require.NoError(t, err)

	var generation []domain.Product
	require.NoError(t, json.Unmarshal(raw, &generation))
	require.Len(t, generation, 1)
	assert.Equal(t, first[0].ID, generation[0].ID)
}

func TestFileStore_RecoversFromBackupOnCorruption(t *testing.T) {
	st, path, backup := newTestStore(t, 0)

	products := sampleProducts(3)
	data, err := json.MarshalIndent(products, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(backup, data, 0o644))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	loaded, err := st.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	// The backup content becomes the new primary content.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var primary []domain.Product
	require.NoError(t, json.Unmarshal(raw, &primary))
	assert.Len(t, primary, 3)
}

func TestFileStore_ResetsToEmptyWhenBackupUnusable(t *testing.T) {
	st, path, backup := newTestStore(t, 0)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(backup, []byte("also not json"), 0o644))

	loaded, err := st.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var primary []domain.Product
	require.NoError(t, json.Unmarshal(raw, &primary))
	assert.Empty(t, primary)
}

func TestFileStore_CallersReceiveCopies(t *testing.T) {
	st, _, _ := newTestStore(t, time.Hour)
	require.NoError(t, st.Persist(context.Background(), sampleProducts(1)))

	first, err := st.LoadAll(context.Background())
	require.NoError(t, err)

	// Mutating a returned product must not leak into the cache.
	first[0].Name = "mutated"
	first[0].Tags[0] = "mutated"

	second, err := st.LoadAll(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", second[0].Name)
	assert.NotEqual(t, "mutated", second[0].Tags[0])
}

func TestFileStore_PersistFailureIsStorageError(t *testing.T) {
	dir := t.TempDir()
	// Point the primary at a path whose parent is a regular file so the
	// write cannot succeed.
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	st := NewFileStore(filepath.Join(blocker, "products.json"), "", 0, zap.NewNop())

	err := st.Persist(context.Background(), sampleProducts(1))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeStorage, apperr.CodeOf(err))
}

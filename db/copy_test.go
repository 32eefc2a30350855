// ABOUTME: Tests for copying collections between stores
// ABOUTME: Moves documents from SQLite into Badger and checks skip and dry-run behavior
package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCopySQLiteToBadger(t *testing.T) {
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	src, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "src.db"), log)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	dst, err := OpenBadgerInMemory(log)
	require.NoError(t, err)
	defer func() { _ = dst.Close() }()

	require.NoError(t, src.Insert(ctx, "objects", 1, []byte(`{"public_id":1,"version":"1.0.0"}`)))
	require.NoError(t, src.Insert(ctx, "objects", 2, []byte(`{"public_id":2,"version":"1.0.1"}`)))
	require.NoError(t, src.Insert(ctx, "locations", 7, []byte(`{"public_id":7,"object_id":1}`)))
	require.NoError(t, dst.Insert(ctx, "objects", 2, []byte(`{"public_id":2,"version":"9.9.9"}`)))

	dry, err := Copy(ctx, src, dst, []string{"objects", "locations"}, true, log)
	require.NoError(t, err)
	assert.Equal(t, CopyStats{Copied: 1, Skipped: 1}, dry["objects"])
	_, err = dst.Get(ctx, "objects", 1)
	assert.True(t, ErrNotFound.Has(err), "dry run must not write")

	stats, err := Copy(ctx, src, dst, []string{"objects", "locations"}, false, log)
	require.NoError(t, err)
	assert.Equal(t, CopyStats{Copied: 1, Skipped: 1}, stats["objects"])
	assert.Equal(t, CopyStats{Copied: 1}, stats["locations"])

	doc, err := dst.Get(ctx, "objects", 2)
	require.NoError(t, err)
	assert.JSONEq(t, `{"public_id":2,"version":"9.9.9"}`, string(doc))

	next, err := dst.NextID(ctx, "objects")
	require.NoError(t, err)
	assert.Equal(t, int64(3), next)
}

func TestCopyRejectsInvalidDocument(t *testing.T) {
	ctx := context.Background()
	src, err := OpenBadgerInMemory(nil)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()
	dst, err := OpenBadgerInMemory(nil)
	require.NoError(t, err)
	defer func() { _ = dst.Close() }()

	require.NoError(t, src.Insert(ctx, "objects", 1, []byte(`not json`)))

	_, err = Copy(ctx, src, dst, []string{"objects"}, false, nil)
	assert.Error(t, err)
}

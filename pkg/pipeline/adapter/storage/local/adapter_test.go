package local_test

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storageAdapter "github.com/karstlab/mofpipe/pkg/pipeline/adapter/storage"
	"github.com/karstlab/mofpipe/pkg/pipeline/adapter/storage/config"
	"github.com/karstlab/mofpipe/pkg/pipeline/adapter/storage/local"
)

func newAdapter(t *testing.T) (storageAdapter.ObjectStore, string) {
	t.Helper()
	baseDir := t.TempDir()
	a, err := local.NewLocalAdapter(config.StorageConfig{
		Type:       local.ProviderType,
		BucketName: "default-bucket",
		BaseDir:    baseDir,
	}, "unit")
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, baseDir
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	a, _ := newAdapter(t)
	ctx := context.Background()

	err := a.Upload(ctx, "results", "b1/summary.json.gz", strings.NewReader("payload"), "application/gzip")
	require.NoError(t, err)

	rc, err := a.Download(ctx, "results", "b1/summary.json.gz")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestUploadUsesConfiguredBucketWhenEmpty(t *testing.T) {
	a, baseDir := newAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Upload(ctx, "", "obj.txt", strings.NewReader("x"), "text/plain"))
	assert.FileExists(t, filepath.Join(baseDir, "default-bucket", "obj.txt"))
}

func TestListObjectsWithPrefix(t *testing.T) {
	a, _ := newAdapter(t)
	ctx := context.Background()

	for _, name := range []string{"b1/summary.json.gz", "b1/export.parquet", "b2/summary.json.gz"} {
		require.NoError(t, a.Upload(ctx, "results", name, strings.NewReader("x"), ""))
	}

	var seen []string
	err := a.ListObjects(ctx, "results", "b1/", func(objectName string) error {
		seen = append(seen, objectName)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(seen)
	assert.Equal(t, []string{"b1/export.parquet", "b1/summary.json.gz"}, seen)
}

func TestDeleteObject(t *testing.T) {
	a, _ := newAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Upload(ctx, "results", "gone.txt", strings.NewReader("x"), ""))
	require.NoError(t, a.DeleteObject(ctx, "results", "gone.txt"))

	_, err := a.Download(ctx, "results", "gone.txt")
	assert.Error(t, err)
}

func TestDeleteMissingObjectTolerated(t *testing.T) {
	a, _ := newAdapter(t)
	assert.NoError(t, a.DeleteObject(context.Background(), "results", "never-existed.txt"))
}

func TestPathEscapeRejected(t *testing.T) {
	a, _ := newAdapter(t)
	ctx := context.Background()

	err := a.Upload(ctx, "results", "../../etc/passwd", strings.NewReader("x"), "")
	assert.Error(t, err)

	_, err = a.Download(ctx, "results", "../outside.txt")
	assert.Error(t, err)
}

func TestNewLocalAdapterRequiresBaseDir(t *testing.T) {
	_, err := local.NewLocalAdapter(config.StorageConfig{Type: local.ProviderType}, "unit")
	assert.Error(t, err)
}

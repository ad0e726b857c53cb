package filesystem

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	rotateStorage "github.com/airbusgeo/georotate/interface/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelete(t *testing.T) {
	ctx := context.Background()
	f, err := os.CreateTemp("", "sample")
	require.NoError(t, err)
	f.Close()
	defer os.Remove(f.Name())
	s, err := NewFileSystemStrategy(ctx)
	require.NoError(t, err)

	assert.NoError(t, s.Delete(ctx, f.Name()))
	assert.Error(t, s.Delete(ctx, f.Name()))
	assert.NoError(t, s.Delete(ctx, f.Name(), rotateStorage.IgnoreNotFound()))
}

func TestUploadDownload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := fileSystemStrategy{}

	dst := filepath.Join(dir, "sub", "dir", "rotated.tif")
	require.NoError(t, s.Upload(ctx, "file://"+dst, []byte("II*\x00payload")))

	data, err := s.Download(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("II*\x00payload"), data)

	copied := filepath.Join(dir, "other", "copy.tif")
	require.NoError(t, s.DownloadToFile(ctx, dst, copied))
	data, err = os.ReadFile(copied)
	require.NoError(t, err)
	assert.Equal(t, []byte("II*\x00payload"), data)

	_, err = s.Download(ctx, filepath.Join(dir, "missing.tif"))
	assert.ErrorIs(t, err, rotateStorage.ErrFileNotFound)
}

func TestExistAndAttrs(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := fileSystemStrategy{}

	path := filepath.Join(dir, "in.tif")
	ok, err := s.Exist(ctx, path)
	assert.False(t, ok)
	assert.ErrorIs(t, err, rotateStorage.ErrFileNotFound)

	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0644))
	ok, err = s.Exist(ctx, path)
	require.NoError(t, err)
	assert.True(t, ok)

	attrs, err := s.GetAttrs(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int64(10), attrs.Size)
	assert.Equal(t, "filesystem", attrs.StorageClass)
}

func TestStreamAt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.tif")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0644))
	s := fileSystemStrategy{}

	r, size, err := s.StreamAt(path, 2, 4)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, int64(10), size)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "2345", string(data))

	_, _, err = s.StreamAt(path, 10, 4)
	assert.ErrorIs(t, err, io.EOF)
}

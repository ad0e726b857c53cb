package gcs

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/airbusgeo/georotate/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		uri, bucket, object string
	}{
		{"gs://bucket/raster.tif", "bucket", "raster.tif"},
		{"/bucket/raster.tif", "bucket", "raster.tif"},
		{"bucket/raster.tif", "bucket", "raster.tif"},
		{"gs://bucket/rotated/15/raster.tif", "bucket", "rotated/15/raster.tif"},
		{"bucket/rotated/15/raster.tif", "bucket", "rotated/15/raster.tif"},
	} {
		bucket, object, err := Parse(tc.uri)
		require.NoError(t, err, tc.uri)
		assert.Equal(t, tc.bucket, bucket, tc.uri)
		assert.Equal(t, tc.object, object, tc.uri)
	}

	for _, uri := range []string{"bucket", "bucket/", "/bucket/", "gs://bucket", "gs://bucket/",
		"gs://bucket/rotated/", "//path/to/raster.tif", "gs:///path/to/raster.tif"} {
		_, _, err := Parse(uri)
		assert.Error(t, err, uri)
	}
}

type failingReader struct {
	err error
}

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestStreamReader(t *testing.T) {
	r := streamReader{io.NopCloser(strings.NewReader("pixels"))}
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))

	_, err = streamReader{io.NopCloser(failingReader{io.ErrUnexpectedEOF})}.Read(make([]byte, 8))
	assert.True(t, utils.Temporary(err))

	_, err = streamReader{io.NopCloser(failingReader{io.EOF})}.Read(make([]byte, 8))
	assert.Equal(t, io.EOF, err)

	_, err = streamReader{io.NopCloser(failingReader{errors.New("permission denied")})}.Read(make([]byte, 8))
	assert.False(t, utils.Temporary(err))
}

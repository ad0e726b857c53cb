package s3

import (
	"errors"
	"fmt"
	"testing"

	"github.com/airbusgeo/georotate/internal/utils"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	b, k, err := Parse("s3://bucket/path/to/raster.tif")
	require.NoError(t, err)
	assert.Equal(t, "bucket", b)
	assert.Equal(t, "path/to/raster.tif", k)

	b, k, err = Parse("/bucket/raster.tif")
	require.NoError(t, err)
	assert.Equal(t, "bucket", b)
	assert.Equal(t, "raster.tif", k)

	for _, u := range []string{"s3://bucket", "s3://bucket/", "s3:///raster.tif", ""} {
		_, _, err = Parse(u)
		assert.Error(t, err, u)
	}
}

func TestByteRange(t *testing.T) {
	assert.Nil(t, byteRange(0, -1))
	assert.Equal(t, "bytes=10-", aws.ToString(byteRange(10, -1)))
	assert.Equal(t, "bytes=0-1023", aws.ToString(byteRange(0, 1024)))
	assert.Equal(t, "bytes=1024-1535", aws.ToString(byteRange(1024, 512)))
}

func TestErrors(t *testing.T) {
	assert.True(t, notFound(fmt.Errorf("get: %w", &types.NoSuchKey{})))
	assert.True(t, notFound(&types.NotFound{}))
	assert.False(t, notFound(errors.New("access denied")))

	assert.True(t, temporary(&smithy.GenericAPIError{Code: "SlowDown"}))
	assert.True(t, temporary(utils.MakeTemporary(errors.New("reset"))))
	assert.False(t, temporary(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.Nil(t, s3Error(nil))
}

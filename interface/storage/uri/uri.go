package uri

import (
	"context"
	"fmt"
	"io"
	pathPkg "path"
	"regexp"
	"strings"
	"sync"

	"github.com/airbusgeo/georotate/interface/storage"
	"github.com/airbusgeo/georotate/interface/storage/filesystem"
	"github.com/airbusgeo/georotate/interface/storage/gcs"
	"github.com/airbusgeo/georotate/interface/storage/s3"
	"github.com/airbusgeo/georotate/internal/utils"
)

var (
	BadUriErr = fmt.Errorf("badly formatted storage uri")
	uriRegex  = regexp.MustCompile("^(?P<Protocol>.+)://(?P<BucketName>.+?)(/(?P<Path>(?:.*/)*(?P<FileName>.*)))?$")
)

var (
	s3Config   s3.Config
	s3ConfigMu sync.Mutex
)

// SetS3Config sets the configuration of the s3:// strategies created afterwards
func SetS3Config(cfg s3.Config) {
	s3ConfigMu.Lock()
	defer s3ConfigMu.Unlock()
	s3Config = cfg
}

func getS3Config() s3.Config {
	s3ConfigMu.Lock()
	defer s3ConfigMu.Unlock()
	return s3Config
}

// ParseUri parse a storage uri (e.g. gs://bucket-name/path/to/file, s3://bucket/key, file:///path)
// Any string without a protocol is a local path.
func ParseUri(rawURI string) (DefaultUri, error) {
	if rawURI == "" {
		return DefaultUri{}, fmt.Errorf("empty uri: %w", BadUriErr)
	}
	if !strings.Contains(rawURI, "://") {
		return DefaultUri{
			path:     rawURI,
			fileName: pathPkg.Base(rawURI),
		}, nil
	}
	matches, err := utils.FindRegexGroups(uriRegex, rawURI)
	if err != nil {
		return DefaultUri{}, BadUriErr
	}

	protocol := matches["Protocol"]
	bucket := matches["BucketName"]
	path := matches["Path"]
	fileName := matches["FileName"]
	if protocol == "file" {
		// file:///abs/path: the bucket is the first directory
		return DefaultUri{
			protocol: protocol,
			path:     pathPkg.Join("/", bucket, path),
			fileName: pathPkg.Base(pathPkg.Join(bucket, path)),
		}, nil
	}
	if path == "" {
		return DefaultUri{}, fmt.Errorf("invalid path: %w", BadUriErr)
	}
	return DefaultUri{
		protocol: protocol,
		bucket:   bucket,
		path:     path,
		fileName: fileName,
	}, nil
}

type DefaultUri struct {
	protocol string
	bucket   string
	path     string
	fileName string
}

func (u DefaultUri) Protocol() string {
	return u.protocol
}

func (u DefaultUri) Bucket() string {
	return u.bucket
}

func (u DefaultUri) Path() string {
	return u.path
}

func (u DefaultUri) FileName() string {
	return u.fileName
}

// IsLocal returns true if the uri is a path of the local filesystem
func (u DefaultUri) IsLocal() bool {
	return u.protocol == "" || u.protocol == "file"
}

// String returns the uri as understood by GDAL: local path or protocol://bucket/path
func (u DefaultUri) String() string {
	if u.IsLocal() {
		return u.path
	}
	return fmt.Sprintf("%s://%s/%s", u.protocol, u.bucket, u.path)
}

func (u DefaultUri) NewStorageStrategy(ctx context.Context) (storage.Strategy, error) {
	return u.getStrategy(ctx)
}

func (u DefaultUri) getStrategy(ctx context.Context) (storage.Strategy, error) {
	switch strings.ToLower(u.protocol) {
	case "gs":
		return gcs.NewGsStrategy(ctx)
	case "s3":
		return s3.NewS3Strategy(ctx, getS3Config())
	case "file", "":
		return filesystem.NewFileSystemStrategy(ctx)
	default:
		return nil, fmt.Errorf("failed to determine storage strategy for protocol %s", u.protocol)
	}
}

func (u DefaultUri) Download(ctx context.Context) ([]byte, error) {
	strategy, err := u.getStrategy(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage strategy: %w", err)
	}

	return strategy.Download(ctx, u.String())
}

func (u DefaultUri) DownloadToFile(ctx context.Context, destination string) error {
	strategy, err := u.getStrategy(ctx)
	if err != nil {
		return fmt.Errorf("failed to get storage strategy: %w", err)
	}

	return strategy.DownloadToFile(ctx, u.String(), destination)
}

func (u DefaultUri) Upload(ctx context.Context, data []byte) error {
	strategy, err := u.getStrategy(ctx)
	if err != nil {
		return fmt.Errorf("failed to get storage strategy: %w", err)
	}

	return strategy.Upload(ctx, u.String(), data)
}

func (u DefaultUri) UploadFile(ctx context.Context, data io.ReadCloser) error {
	strategy, err := u.getStrategy(ctx)
	if err != nil {
		return fmt.Errorf("failed to get storage strategy: %w", err)
	}

	return strategy.UploadFile(ctx, u.String(), data)
}

func (u DefaultUri) Delete(ctx context.Context, options ...storage.Option) error {
	strategy, err := u.getStrategy(ctx)
	if err != nil {
		return fmt.Errorf("failed to get storage strategy: %w", err)
	}

	return strategy.Delete(ctx, u.String(), options...)
}

func (u DefaultUri) GetAttrs(ctx context.Context) (storage.Attrs, error) {
	strategy, err := u.getStrategy(ctx)
	if err != nil {
		return storage.Attrs{}, fmt.Errorf("failed to get storage strategy: %w", err)
	}

	return strategy.GetAttrs(ctx, u.String())
}

func (u DefaultUri) Exist(ctx context.Context) (bool, error) {
	strategy, err := u.getStrategy(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get storage strategy: %w", err)
	}
	return strategy.Exist(ctx, u.String())
}

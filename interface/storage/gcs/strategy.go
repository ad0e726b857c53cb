package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"cloud.google.com/go/storage"
	rotateStorage "github.com/airbusgeo/georotate/interface/storage"
	"github.com/airbusgeo/georotate/internal/log"
	"github.com/airbusgeo/georotate/internal/utils"
	"google.golang.org/api/googleapi"
)

type gsStrategy struct {
	gsClient *storage.Client
	ctx      context.Context
}

var retriableOAuth2Errors = []string{
	"cannot assign requested address",
	"connection refused",
	"connection reset",
	"timeout",
	"broken pipe",
	"client connection force closed",
	"502 Bad Gateway",
}

var retriableSuffixErrors = []string{
	"http2: client connection lost",
	"http2: client connection force closed via ClientConn.Close",
	"EOF", // Unexpected EOF is a temporary error
}

func gsError(err error) error {
	if err == nil {
		return nil
	}
	if utils.Temporary(err) {
		return err
	}

	// oauth2 does not transfer the temporary status of error
	if strings.Contains(err.Error(), "oauth2: cannot fetch token:") {
		for _, e := range retriableOAuth2Errors {
			if strings.Contains(err.Error(), e) {
				return utils.MakeTemporary(err)
			}
		}
	}

	for _, e := range retriableSuffixErrors {
		if strings.HasSuffix(err.Error(), e) {
			return utils.MakeTemporary(err)
		}
	}
	return err
}

func temporary(err error) bool {
	return utils.Temporary(gsError(err))
}

func NewGsStrategy(ctx context.Context) (rotateStorage.Strategy, error) {
	gsClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create gs Client : %w", gsError(err))
	}

	return gsStrategy{
		gsClient: gsClient,
		ctx:      ctx,
	}, nil
}

func (s gsStrategy) object(uri string) (*storage.ObjectHandle, error) {
	bucket, path, err := Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URI %s : %w", uri, err)
	}
	return s.gsClient.Bucket(bucket).Object(path), nil
}

func (s gsStrategy) Download(ctx context.Context, uri string, options ...rotateStorage.Option) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := s.downloadTo(ctx, uri, buf, options...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s gsStrategy) DownloadToFile(ctx context.Context, source, destination string, options ...rotateStorage.Option) error {
	if err := os.MkdirAll(filepath.Dir(destination), os.ModePerm); err != nil {
		return err
	}

	writer, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	if err = s.downloadTo(ctx, source, writer, options...); err != nil {
		writer.Close()
		return fmt.Errorf("failed to download object to destination: %w", err)
	}

	if err = writer.Close(); err != nil {
		return fmt.Errorf("DownloadToFile: failed to close writer: %w", err)
	}
	return nil
}

// downloadTo resumes the download where it failed on temporary errors
func (s gsStrategy) downloadTo(ctx context.Context, uri string, w io.Writer, options ...rotateStorage.Option) error {
	obj, err := s.object(uri)
	if err != nil {
		return err
	}
	op := rotateStorage.Apply(options...)
	offset, remaining := op.Offset, op.Length
	return rotateStorage.Retry(ctx, temporary, func() error {
		r, err := obj.NewRangeReader(ctx, offset, remaining)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return rotateStorage.ErrFileNotFound
		}
		if err != nil {
			return fmt.Errorf("newreader: %w", gsError(err))
		}
		defer r.Close()
		n, err := io.Copy(w, r)
		offset += n
		if remaining > 0 {
			remaining -= n
		}
		if err != nil {
			return fmt.Errorf("copy: %w", gsError(err))
		}
		return nil
	}, options...)
}

func (s gsStrategy) Upload(ctx context.Context, uri string, data []byte, options ...rotateStorage.Option) error {
	return s.uploadFrom(ctx, uri, bytes.NewReader(data), options...)
}

func (s gsStrategy) UploadFile(ctx context.Context, uri string, data io.ReadCloser, options ...rotateStorage.Option) error {
	if rs, ok := data.(io.ReadSeeker); ok {
		return s.uploadFrom(ctx, uri, rs, options...)
	}

	obj, err := s.object(uri)
	if err != nil {
		return err
	}
	return s.write(ctx, obj, data, rotateStorage.Apply(options...).StorageClass)
}

// uploadFrom retries the upload from the beginning on temporary errors
func (s gsStrategy) uploadFrom(ctx context.Context, uri string, r io.ReadSeeker, options ...rotateStorage.Option) error {
	obj, err := s.object(uri)
	if err != nil {
		return err
	}
	storageClass := rotateStorage.Apply(options...).StorageClass
	off, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("r.seek: %w", err)
	}
	return rotateStorage.Retry(ctx, temporary, func() error {
		if _, err := r.Seek(off, io.SeekStart); err != nil {
			return fmt.Errorf("r.reset: %w", err)
		}
		return s.write(ctx, obj, r, storageClass)
	}, options...)
}

func (s gsStrategy) write(ctx context.Context, obj *storage.ObjectHandle, r io.Reader, storageClass string) error {
	w := obj.NewWriter(ctx)
	if storageClass != "" {
		w.StorageClass = storageClass
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("copy: %w", gsError(err))
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("w.close: %w", gsError(err))
	}
	return nil
}

func (s gsStrategy) Delete(ctx context.Context, uri string, options ...rotateStorage.Option) error {
	obj, err := s.object(uri)
	if err != nil {
		return err
	}
	op := rotateStorage.Apply(options...)
	return rotateStorage.Retry(ctx, temporary, func() error {
		err := obj.Delete(ctx)
		if err == nil || (op.IgnoreNotFound && errors.Is(err, storage.ErrObjectNotExist)) {
			return nil
		}
		return fmt.Errorf("delete: %w", gsError(err))
	}, options...)
}

func (s gsStrategy) Exist(ctx context.Context, uri string) (bool, error) {
	if _, err := s.GetAttrs(ctx, uri); err != nil {
		return false, err
	}
	return true, nil
}

func (s gsStrategy) GetAttrs(ctx context.Context, uri string) (rotateStorage.Attrs, error) {
	obj, err := s.object(uri)
	if err != nil {
		return rotateStorage.Attrs{}, err
	}

	attrs, err := obj.Attrs(ctx)
	switch {
	case errors.Is(err, storage.ErrObjectNotExist):
		return rotateStorage.Attrs{}, rotateStorage.ErrFileNotFound
	case errors.Is(err, storage.ErrBucketNotExist):
		return rotateStorage.Attrs{}, fmt.Errorf("bucket not exist: %w", err)
	case err != nil:
		return rotateStorage.Attrs{}, fmt.Errorf("failed to get file attributes from GCS : %w", gsError(err))
	}

	return rotateStorage.Attrs{
		StorageClass: attrs.StorageClass,
		ContentType:  attrs.ContentType,
		Size:         attrs.Size,
	}, nil
}

var (
	metrics = make(map[string]streamAtMetrics)
	lock    = sync.Mutex{}
)

type streamAtMetrics struct {
	Calls  int
	Volume int64
}

// GetMetrics logs the number of calls and the volume read by StreamAt, per key, and resets the counters
func GetMetrics(ctx context.Context) {
	lock.Lock()
	defer lock.Unlock()
	for key, m := range metrics {
		log.Logger(ctx).Sugar().Debugf("GCS Metrics: %s - %d calls - %d octets", key, m.Calls, m.Volume)
	}
	metrics = map[string]streamAtMetrics{}
}

func (s gsStrategy) StreamAt(key string, off int64, n int64) (io.ReadCloser, int64, error) {
	bucket, object, err := Parse(key)
	if err != nil {
		return nil, 0, err
	}

	r, err := s.gsClient.Bucket(bucket).Object(object).NewRangeReader(s.ctx, off, n)
	if err != nil {
		var gerr *googleapi.Error
		if off > 0 && errors.As(err, &gerr) && gerr.Code == 416 {
			return nil, 0, io.EOF
		}
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, -1, syscall.ENOENT
		}
		return nil, 0, fmt.Errorf("new reader for gs://%s/%s: %w", bucket, object, gsError(err))
	}

	lock.Lock()
	m := metrics[key]
	m.Calls++
	m.Volume += n
	metrics[key] = m
	lock.Unlock()

	return streamReader{r}, r.Attrs.Size, nil
}

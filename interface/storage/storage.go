package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	ErrFileNotFound = errors.New("file not found")
)

type Strategy interface {
	Download(ctx context.Context, uri string, options ...Option) ([]byte, error)
	DownloadToFile(ctx context.Context, source string, destination string, options ...Option) error
	Upload(ctx context.Context, uri string, data []byte, options ...Option) error
	UploadFile(ctx context.Context, uri string, data io.ReadCloser, options ...Option) error
	Delete(ctx context.Context, uri string, options ...Option) error
	// Exist returns false, ErrFileNotFound if the file does not exist
	Exist(ctx context.Context, uri string) (bool, error)
	GetAttrs(ctx context.Context, uri string) (Attrs, error)
	// StreamAt reads n bytes at offset off of the file key and returns the size of the file.
	// It is used as a GDAL block reader (see osio.KeyStreamerAt).
	StreamAt(key string, off int64, n int64) (io.ReadCloser, int64, error)
}

type Option func(o *option)

type option struct {
	MaxTries       int
	Delay          time.Duration
	StorageClass   string
	Offset         int64
	Length         int64
	IgnoreNotFound bool
}

type Attrs struct {
	ContentType  string
	StorageClass string
	Size         int64
}

func MaxTries(n int) Option {
	if n <= 0 {
		n = 1
	}
	return func(o *option) {
		o.MaxTries = n
	}
}

func OnErrorRetryDelay(d time.Duration) Option {
	if d < 0 {
		d = 0
	}
	return func(o *option) {
		o.Delay = d
	}
}

func StorageClass(cl string) Option {
	return func(o *option) {
		o.StorageClass = cl
	}
}

func Offset(off int64) Option {
	if off < 0 {
		panic("offset cannot be negative")
	}
	return func(o *option) {
		o.Offset = off
	}
}

func Length(l int64) Option {
	if l <= 0 {
		panic("length must be >0")
	}
	return func(o *option) {
		o.Length = l
	}
}

// IgnoreNotFound makes Delete succeed if the file does not exist
func IgnoreNotFound() Option {
	return func(o *option) {
		o.IgnoreNotFound = true
	}
}

func Apply(opts ...Option) option {
	opt := option{
		MaxTries: 10,
		Delay:    time.Second,
		Offset:   0,
		Length:   -1,
	}
	for _, o := range opts {
		o(&opt)
	}
	return opt
}

// Retry calls f until it succeeds, returns a permanent error (according to temporary)
// or MaxTries is reached. The delay between two tries doubles each time.
func Retry(ctx context.Context, temporary func(error) bool, f func() error, options ...Option) error {
	op := Apply(options...)
	d := op.Delay
	var err error
	for try := 0; try < op.MaxTries; try++ {
		if try > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
			}
			d *= 2
		}
		if err = f(); err == nil || !temporary(err) {
			return err
		}
	}
	return fmt.Errorf("failed after %d retries: %w", op.MaxTries, err)
}

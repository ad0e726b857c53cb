package filesystem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	rotateStorage "github.com/airbusgeo/georotate/interface/storage"
)

type fileSystemStrategy struct {
}

func NewFileSystemStrategy(ctx context.Context) (rotateStorage.Strategy, error) {
	return fileSystemStrategy{}, nil
}

func formatError(err error) error {
	var epath *os.PathError
	if errors.As(err, &epath) && os.IsNotExist(epath) {
		return rotateStorage.ErrFileNotFound
	}
	return err
}

func localPath(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}

func createParentDir(path string) error {
	if _, err := os.Stat(filepath.Dir(path)); os.IsNotExist(err) {
		return os.MkdirAll(filepath.Dir(path), os.ModePerm)
	}
	return nil
}

func (s fileSystemStrategy) Download(ctx context.Context, uri string, options ...rotateStorage.Option) ([]byte, error) {
	f, err := os.Open(localPath(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", formatError(err))
	}

	defer f.Close()
	return io.ReadAll(f)
}

func (s fileSystemStrategy) DownloadToFile(ctx context.Context, source, destination string, options ...rotateStorage.Option) error {
	sourceFile, err := os.Open(localPath(source))
	if err != nil {
		return fmt.Errorf("failed to open file: %w", formatError(err))
	}
	defer sourceFile.Close()

	return s.UploadFile(ctx, destination, sourceFile)
}

func (s fileSystemStrategy) Upload(ctx context.Context, uri string, data []byte, options ...rotateStorage.Option) error {
	return s.UploadFile(ctx, uri, io.NopCloser(bytes.NewReader(data)), options...)
}

func (s fileSystemStrategy) UploadFile(ctx context.Context, uri string, data io.ReadCloser, options ...rotateStorage.Option) error {
	uri = localPath(uri)
	if err := createParentDir(uri); err != nil {
		return err
	}

	f, err := os.Create(uri)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err = io.Copy(f, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s fileSystemStrategy) Delete(ctx context.Context, uri string, options ...rotateStorage.Option) error {
	opts := rotateStorage.Apply(options...)

	if err := os.Remove(localPath(uri)); err != nil {
		if !opts.IgnoreNotFound || !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove file: %w", err)
		}
	}

	return nil
}

func (s fileSystemStrategy) Exist(ctx context.Context, uri string) (bool, error) {
	if _, err := os.Stat(localPath(uri)); err != nil {
		if os.IsNotExist(err) {
			return false, rotateStorage.ErrFileNotFound
		}
		return false, err
	}
	return true, nil
}

func (s fileSystemStrategy) GetAttrs(ctx context.Context, uri string) (rotateStorage.Attrs, error) {
	f, err := os.Open(localPath(uri))
	if err != nil {
		return rotateStorage.Attrs{}, fmt.Errorf("failed to open file: %w", formatError(err))
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return rotateStorage.Attrs{}, err
	}

	// Only the first 512 bytes are used to sniff the content type.
	buffer := make([]byte, 512)
	b, err := f.Read(buffer)
	if err != nil && err != io.EOF {
		return rotateStorage.Attrs{}, err
	}

	buffer = buffer[:b]

	// Always returns a valid content-type and "application/octet-stream"
	// if no others seemed to match.
	contentType := http.DetectContentType(buffer)
	return rotateStorage.Attrs{
		ContentType:  contentType,
		StorageClass: "filesystem",
		Size:         fi.Size(),
	}, nil
}

type fileSection struct {
	*io.SectionReader
	f *os.File
}

func (s fileSection) Close() error {
	return s.f.Close()
}

func (s fileSystemStrategy) StreamAt(key string, off int64, n int64) (io.ReadCloser, int64, error) {
	f, err := os.Open(localPath(key))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file: %w", formatError(err))
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if off >= fi.Size() {
		f.Close()
		return nil, fi.Size(), io.EOF
	}
	return fileSection{SectionReader: io.NewSectionReader(f, off, n), f: f}, fi.Size(), nil
}

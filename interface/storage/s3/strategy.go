package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	rotateStorage "github.com/airbusgeo/georotate/interface/storage"
	"github.com/airbusgeo/georotate/internal/utils"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	aws3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Config of the S3 client. Empty fields fall back to the default AWS configuration.
type Config struct {
	Region          string
	Endpoint        string
	CredentialsFile string
}

// NewClient creates an S3 client. A custom endpoint implies path-style addressing (minio, ceph...)
func NewClient(ctx context.Context, cfg Config) (*aws3.Client, error) {
	var opts []func(*awsConfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsConfig.WithRegion(cfg.Region))
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, awsConfig.WithSharedCredentialsFiles([]string{cfg.CredentialsFile}))
	}
	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return aws3.NewFromConfig(awsCfg, func(o *aws3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

type s3Strategy struct {
	client *aws3.Client
	ctx    context.Context
}

func NewS3Strategy(ctx context.Context, cfg Config) (rotateStorage.Strategy, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s3Strategy{client: client, ctx: ctx}, nil
}

// Parse takes in a string in the form s3://bucket/path/to/object and returns the bucket and the key
func Parse(s3Uri string) (bucket, key string, err error) {
	s3Uri = strings.TrimPrefix(s3Uri, "s3://")
	s3Uri = strings.TrimPrefix(s3Uri, "/")
	parts := strings.SplitN(s3Uri, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("missing bucket or key in %s", s3Uri)
	}
	return parts[0], parts[1], nil
}

func notFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

// s3Error marks throttling and server errors as temporary
func s3Error(err error) error {
	if err == nil || utils.Temporary(err) {
		return err
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable", "Throttling":
			return utils.MakeTemporary(err)
		}
	}
	return err
}

func temporary(err error) bool {
	return utils.Temporary(s3Error(err))
}

func (s s3Strategy) Download(ctx context.Context, uri string, options ...rotateStorage.Option) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := s.downloadTo(ctx, uri, buf, options...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s s3Strategy) DownloadToFile(ctx context.Context, source, destination string, options ...rotateStorage.Option) error {
	if err := os.MkdirAll(filepath.Dir(destination), os.ModePerm); err != nil {
		return err
	}
	f, err := os.Create(destination)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	if err := s.downloadTo(ctx, source, f, options...); err != nil {
		f.Close()
		return fmt.Errorf("failed to download object to destination: %w", err)
	}
	return f.Close()
}

func byteRange(off, length int64) *string {
	if off == 0 && length < 0 {
		return nil
	}
	if length < 0 {
		return aws.String(fmt.Sprintf("bytes=%d-", off))
	}
	return aws.String(fmt.Sprintf("bytes=%d-%d", off, off+length-1))
}

// downloadTo resumes the download where it failed on temporary errors
func (s s3Strategy) downloadTo(ctx context.Context, uri string, w io.Writer, options ...rotateStorage.Option) error {
	bucket, key, err := Parse(uri)
	if err != nil {
		return err
	}
	op := rotateStorage.Apply(options...)
	offset, remaining := op.Offset, op.Length
	return rotateStorage.Retry(ctx, temporary, func() error {
		out, err := s.client.GetObject(ctx, &aws3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Range:  byteRange(offset, remaining),
		})
		if notFound(err) {
			return rotateStorage.ErrFileNotFound
		}
		if err != nil {
			return fmt.Errorf("getobject: %w", s3Error(err))
		}
		defer out.Body.Close()
		n, err := io.Copy(w, out.Body)
		offset += n
		if remaining > 0 {
			remaining -= n
		}
		if err != nil {
			return fmt.Errorf("copy: %w", utils.MakeTemporary(err))
		}
		return nil
	}, options...)
}

func (s s3Strategy) Upload(ctx context.Context, uri string, data []byte, options ...rotateStorage.Option) error {
	return s.uploadFrom(ctx, uri, bytes.NewReader(data), options...)
}

func (s s3Strategy) UploadFile(ctx context.Context, uri string, data io.ReadCloser, options ...rotateStorage.Option) error {
	if rs, ok := data.(io.ReadSeeker); ok {
		return s.uploadFrom(ctx, uri, rs, options...)
	}
	// the body must be seekable to be signed
	b, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("UploadFile: %w", err)
	}
	return s.Upload(ctx, uri, b, options...)
}

func (s s3Strategy) uploadFrom(ctx context.Context, uri string, r io.ReadSeeker, options ...rotateStorage.Option) error {
	bucket, key, err := Parse(uri)
	if err != nil {
		return err
	}
	op := rotateStorage.Apply(options...)
	off, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("r.seek: %w", err)
	}
	return rotateStorage.Retry(ctx, temporary, func() error {
		if _, err := r.Seek(off, io.SeekStart); err != nil {
			return fmt.Errorf("r.reset: %w", err)
		}
		input := &aws3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   r,
		}
		if op.StorageClass != "" {
			input.StorageClass = types.StorageClass(op.StorageClass)
		}
		if _, err := s.client.PutObject(ctx, input); err != nil {
			return fmt.Errorf("putobject: %w", s3Error(err))
		}
		return nil
	}, options...)
}

func (s s3Strategy) Delete(ctx context.Context, uri string, options ...rotateStorage.Option) error {
	bucket, key, err := Parse(uri)
	if err != nil {
		return err
	}
	op := rotateStorage.Apply(options...)
	if !op.IgnoreNotFound {
		// DeleteObject succeeds on missing keys
		if _, err := s.GetAttrs(ctx, uri); err != nil {
			return fmt.Errorf("failed to remove file: %w", err)
		}
	}
	return rotateStorage.Retry(ctx, temporary, func() error {
		if _, err := s.client.DeleteObject(ctx, &aws3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			return fmt.Errorf("deleteobject: %w", s3Error(err))
		}
		return nil
	}, options...)
}

func (s s3Strategy) Exist(ctx context.Context, uri string) (bool, error) {
	if _, err := s.GetAttrs(ctx, uri); err != nil {
		return false, err
	}
	return true, nil
}

func (s s3Strategy) GetAttrs(ctx context.Context, uri string) (rotateStorage.Attrs, error) {
	bucket, key, err := Parse(uri)
	if err != nil {
		return rotateStorage.Attrs{}, err
	}
	out, err := s.client.HeadObject(ctx, &aws3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if notFound(err) {
		return rotateStorage.Attrs{}, rotateStorage.ErrFileNotFound
	}
	if err != nil {
		return rotateStorage.Attrs{}, fmt.Errorf("failed to get file attributes from S3 : %w", s3Error(err))
	}
	return rotateStorage.Attrs{
		ContentType:  aws.ToString(out.ContentType),
		StorageClass: string(out.StorageClass),
		Size:         aws.ToInt64(out.ContentLength),
	}, nil
}

func (s s3Strategy) StreamAt(key string, off int64, n int64) (io.ReadCloser, int64, error) {
	bucket, object, err := Parse(key)
	if err != nil {
		return nil, 0, err
	}
	out, err := s.client.GetObject(s.ctx, &aws3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(object),
		Range:  byteRange(off, n),
	})
	if err != nil {
		var apiErr smithy.APIError
		if off > 0 && errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange" {
			return nil, 0, io.EOF
		}
		if notFound(err) {
			return nil, -1, rotateStorage.ErrFileNotFound
		}
		return nil, 0, fmt.Errorf("getobject s3://%s/%s: %w", bucket, object, s3Error(err))
	}
	size := aws.ToInt64(out.ContentLength)
	if cr := aws.ToString(out.ContentRange); cr != "" {
		// bytes start-end/size
		if i := strings.LastIndex(cr, "/"); i >= 0 {
			fmt.Sscanf(cr[i+1:], "%d", &size)
		}
	}
	return out.Body, size, nil
}

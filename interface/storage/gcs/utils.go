package gcs

import (
	"fmt"
	"io"
	"strings"
)

// Parse splits gs://bucket/path/to/object, /bucket/path/to/object or bucket/path/to/object
// into the bucket and the object names used by the storage client.
// A uri ending with a slash is a prefix, not an object.
func Parse(gsUri string) (bucket, object string, err error) {
	s := strings.TrimPrefix(gsUri, "gs://")
	if s == gsUri {
		s = strings.TrimPrefix(s, "/")
	}
	bucket, object, _ = strings.Cut(s, "/")
	if bucket == "" || object == "" || strings.HasSuffix(object, "/") {
		return "", "", fmt.Errorf("missing bucket or object in %q", gsUri)
	}
	return bucket, object, nil
}

// streamReader flags the network errors met while reading a range as temporary
type streamReader struct {
	io.ReadCloser
}

func (r streamReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		err = gsError(err)
	}
	return n, err
}

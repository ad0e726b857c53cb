package utils

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"syscall"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type temporaryError interface{ Temporary() bool }

// errTmp flags an error as temporary. The underlying error is still reachable with errors.As.
type errTmp struct{ error }

func (t errTmp) Temporary() bool { return true }
func (t errTmp) Unwrap() error   { return t.error }

// MakeTemporary flags err as temporary: the operation that returned it can be retried
func MakeTemporary(err error) error {
	return errTmp{err}
}

// Temporary inspects the error chain and returns whether the error is transient:
// an error flagged by MakeTemporary, a transient syscall or network error,
// an HTTP 429/5xx from a google api, a transient grpc status, or a cancellation.
func Temporary(err error) bool {
	if err == nil {
		return false
	}
	var uerr *neturl.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	if temporaryErrno(err) {
		return true
	}

	var tmp temporaryError
	if errors.As(err, &tmp) {
		return tmp.Temporary()
	}
	var gapiError *googleapi.Error
	if errors.As(err, &gapiError) {
		return gapiError.Code == 429 || (gapiError.Code >= 500 && gapiError.Code < 600)
	}
	if s, ok := status.FromError(err); ok && temporaryCode(s.Code()) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// temporaryErrno overrides the default temporary status of some syscall errors
func temporaryErrno(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case syscall.EIO, syscall.EBUSY, syscall.ECANCELED, syscall.ECONNABORTED, syscall.ECONNRESET, syscall.ENOMEM, syscall.EPIPE:
		return true
	}
	return false
}

func temporaryCode(code codes.Code) bool {
	switch code {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted, codes.DeadlineExceeded:
		return true
	}
	return false
}

// MergeErrors merges err with newErrs, appending their texts.
// With priorityToError, the merged error is fatal if any error is fatal, then temporary.
// Otherwise, nil wins over a temporary error, which wins over a fatal one.
func MergeErrors(priorityToError bool, err error, newErrs ...error) error {
	if len(newErrs) == 0 {
		return err
	}
	newErr := newErrs[0]

	if err == nil {
		err = newErr
	} else if newErr == nil {
		if !priorityToError {
			err = nil
		}
	} else if priorityToError != Temporary(newErr) {
		err = fmt.Errorf("%w\n %v", newErr, err)
	} else {
		err = fmt.Errorf("%w\n %v", err, newErr)
	}
	return MergeErrors(priorityToError, err, newErrs[1:]...)
}

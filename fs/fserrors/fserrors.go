// Package fserrors classifies the errors of the adapter into the
// abstract kinds of the error model and decides which transport
// failures are worth retrying.
package fserrors

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/objfs/s3fs/fs"
)

// Kind is the abstract error kind
type Kind int

// The error kinds
const (
	KindUnknown Kind = iota
	KindNotFound
	KindAlreadyExists
	KindInvalidArgument
	KindClosed
	KindDirNotEmpty
	KindTransport
)

// KindOf maps err onto its abstract kind. Anything which is not one of
// the library sentinels is a transport failure.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, fs.ErrorObjectNotFound),
		errors.Is(err, fs.ErrorDirNotFound),
		errors.Is(err, fs.ErrorFsNotFound):
		return KindNotFound
	case errors.Is(err, fs.ErrorFileAlreadyExists),
		errors.Is(err, fs.ErrorFsAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, fs.ErrorInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, fs.ErrorFsClosed),
		errors.Is(err, fs.ErrorStreamClosed),
		errors.Is(err, fs.ErrorChannelClosed):
		return KindClosed
	case errors.Is(err, fs.ErrorDirNotEmpty):
		return KindDirNotEmpty
	}
	return KindTransport
}

// IsNotFound reports whether err is any of the not-found sentinels
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsAlreadyExists reports whether err is an already-exists failure
func IsAlreadyExists(err error) bool {
	return KindOf(err) == KindAlreadyExists
}

// retriableErrors are transport errors which a retry may cure
var retriableErrors = []error{
	io.EOF,
	io.ErrUnexpectedEOF,
}

// ShouldRetry looks at an error and tries to work out if retrying the
// operation that caused it would be a good idea. It returns true if
// the error implies the operation should be retried.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	// context cancellation is deliberate - never retry it
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// the library's own sentinels are never transient
	if KindOf(err) != KindTransport {
		return false
	}
	for _, retriableErr := range retriableErrors {
		if errors.Is(err, retriableErr) {
			return true
		}
	}
	// a failed dial, write or read is worth another attempt
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// ContextError checks the context for cancellation and wraps *perr
// with it if so. It returns true if the context has been cancelled.
func ContextError(ctx context.Context, perr *error) bool {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if *perr == nil {
			*perr = ctxErr
		}
		return true
	}
	return false
}

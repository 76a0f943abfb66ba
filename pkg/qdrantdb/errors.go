package qdrantdb

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrUnavailable means the server never answered health checks.
	ErrUnavailable = errors.New("qdrant unavailable")
	// ErrCollectionSetup means the collection could not be prepared.
	ErrCollectionSetup = errors.New("collection setup failed")
	// ErrRetriesExhausted means an operation kept failing transiently
	// until the retry budget ran out.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// errClass tells the retry loop how to treat a failed call.
type errClass int

const (
	errTransient errClass = iota
	errFatal
)

// classify sorts store errors into retryable and terminal. Scheduling
// and transport hiccups are worth retrying; validation, auth and
// not-found failures will fail the same way every time.
func classify(err error) errClass {
	s, ok := status.FromError(err)
	if !ok {
		// Not a gRPC status. Dial and transport errors land here and
		// a retry may still help.
		return errTransient
	}
	switch s.Code() {
	case codes.Unavailable,
		codes.DeadlineExceeded,
		codes.ResourceExhausted,
		codes.Aborted,
		codes.Internal,
		codes.Unknown:
		return errTransient
	default:
		return errFatal
	}
}

package kmsout

import "errors"

var (
	// ErrNoCompatibleFormat means negotiation exhausted every branch
	// without finding a (decoder, kernel, plane) triple.
	ErrNoCompatibleFormat = errors.New("no compatible format")

	// ErrUnknownFormat means a forced kernel format is not in the
	// catalog at all.
	ErrUnknownFormat = errors.New("format not in catalog")

	// ErrPresent means the kernel rejected a plane update. The session
	// stays usable; the next frame is expected to retry.
	ErrPresent = errors.New("plane update rejected")

	// ErrBadFlip means the plane update was rejected with an argument
	// error. That is a resource-accounting defect, not a runtime
	// condition, and the session must stop.
	ErrBadFlip = errors.New("plane update rejected with invalid argument")
)

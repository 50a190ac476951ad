package audience

import "errors"

var (
	// ErrNotImplemented is returned by the abstract base variant. Reaching it
	// means a segment was stored with the "list" kind or an unknown kind.
	ErrNotImplemented = errors.New("audience: candidates not implemented for variant")
	ErrUnknownKind    = errors.New("audience: unknown segment kind")
	ErrInvalidSegment = errors.New("audience: invalid segment")
)

var (
	ErrSegmentNotFound = errors.New("audience: segment not found")
	ErrSegmentInactive = errors.New("audience: segment is inactive")
	ErrSegmentInUse    = errors.New("audience: segment is referenced by campaigns")
	ErrDuplicateUID    = errors.New("audience: segment uid already exists")
)

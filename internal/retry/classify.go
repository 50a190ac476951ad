package retry

import "errors"

type temporary interface {
	Temporary() bool
}

// IsTransient reports whether err, or an error it wraps, declares itself
// temporary. Everything else is a permanent failure.
func IsTransient(err error) bool {
	var t temporary
	return errors.As(err, &t) && t.Temporary()
}

package retrier

import "errors"

// Temporary indicates if an error condition is temporary and may succeed if retried.
type Temporary interface {
	Temporary() bool
}

type timeout interface {
	Timeout() bool
}

// IsTemporary reports whether err, or an error it wraps, declares itself
// temporary or a timeout.
func IsTemporary(err error) bool {
	var temp Temporary
	if errors.As(err, &temp) && temp.Temporary() {
		return true
	}
	var to timeout
	return errors.As(err, &to) && to.Timeout()
}

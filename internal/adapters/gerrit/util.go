package gerrit

import (
	"bytes"
	"errors"
	"io"
	"net/http"
)

// magicPrefix guards every Gerrit JSON body against XSSI
var magicPrefix = []byte(")]}'")

// StatusError wraps non-2xx HTTP responses from Gerrit
type StatusError struct {
	Status int
	Body   string
	Err    error
}

// Error interface
func (e *StatusError) Error() string { return e.Err.Error() }

// Unwrap interface
func (e *StatusError) Unwrap() error { return e.Err }

// HTTPStatus interface
func (e *StatusError) HTTPStatus() int { return e.Status }

// StatusOf returns the HTTP status carried by err, or 0 when the failure never got a response
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// IsTransient reports whether err is a StatusError with a 5xx status
func IsTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status >= http.StatusInternalServerError && se.Status <= 599
	}
	return false
}

// stripMagicPrefix drops the ")]}'" guard line when present
func stripMagicPrefix(b []byte) []byte {
	if !bytes.HasPrefix(b, magicPrefix) {
		return b
	}
	b = b[len(magicPrefix):]
	b = bytes.TrimPrefix(b, []byte("\r"))
	return bytes.TrimPrefix(b, []byte("\n"))
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	return rc.Close()
}

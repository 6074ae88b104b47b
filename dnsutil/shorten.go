package dnsutil

import (
	"strings"
)

// shortenedError is a wrapped error so the caller doesn't lose the original error
// context, if that is of interest to them.
type shortenedError struct {
	msg string
	err error
}

func (t *shortenedError) Error() string {
	return t.msg
}

func (t *shortenedError) Unwrap() error {
	return t.err
}

// ShortenSendError turns the long unwieldy errors that net writes can produce into a
// succinct error in the common cases which don't warrant the full text in a query log.
func ShortenSendError(err error) error {
	if err == nil {
		return err
	}
	m := err.Error() // Shorten up the error if we can
	switch {
	case strings.Contains(m, "i/o timeout"):
		err = &shortenedError{msg: "Timeout", err: err}
	case strings.Contains(m, "connection refused"):
		err = &shortenedError{msg: "Connection refused", err: err}
	case strings.Contains(m, "use of closed network connection"):
		err = &shortenedError{msg: "Connection closed", err: err}
	case strings.Contains(m, "broken pipe"):
		err = &shortenedError{msg: "Broken pipe", err: err}
	}

	return err
}

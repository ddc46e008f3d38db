package git

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/pkgbuilder/internal/foundation/errors"
)

// Typed failures, reachable with errors.As through the classified wrapper.
type AuthError struct {
	Op, URL string
	Err     error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.URL, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Op, URL string
	Err     error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found %s: %v", e.Op, e.URL, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

type UnsupportedProtocolError struct {
	Op, URL string
	Err     error
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("%s unsupported protocol %s: %v", e.Op, e.URL, e.Err)
}
func (e *UnsupportedProtocolError) Unwrap() error { return e.Err }

// ClassifyGitError wraps a go-git failure into a vcs ClassifiedError, keeping a typed cause
// where the message allows it.
func ClassifyGitError(err error, op Operation, url string) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	cause := err
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") || strings.Contains(l, "not authorized"):
		cause = &AuthError{Op: string(op), URL: url, Err: err}
	case strings.Contains(l, "not found") || strings.Contains(l, "does not exist"):
		cause = &NotFoundError{Op: string(op), URL: url, Err: err}
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		cause = &UnsupportedProtocolError{Op: string(op), URL: url, Err: err}
	}

	return errors.VCSError(fmt.Sprintf("git %s failed", op)).
		WithCause(cause).
		WithContext("op", string(op)).
		WithContext("url", url).
		Build()
}

package publisher

import (
	"errors"
	"fmt"

	"github.com/maheshrc27/postflow/internal/models"
)

// Kind classifies why a publish or refresh call failed.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindAuth
	KindConfiguration
	KindPlatform
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindConfiguration:
		return "configuration"
	case KindPlatform:
		return "platform"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is returned by every Publisher operation.
type Error struct {
	Kind       Kind
	Platform   models.Platform
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s error: %s", e.Platform, e.Kind, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable is true only for transient transport failures.
func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork
}

// ErrRefreshUnsupported is returned by Refresh on platforms without a token
// refresh protocol.
var ErrRefreshUnsupported = errors.New("token refresh not supported")

func newError(kind Kind, platform models.Platform, message string, err error) *Error {
	return &Error{Kind: kind, Platform: platform, Message: message, Err: err}
}

// IsKind reports whether err is a publisher Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}

// IsRetryable reports whether err should be retried.
func IsRetryable(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Retryable()
}

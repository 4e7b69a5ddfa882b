package driven

import (
	"errors"
	"fmt"
)

// RemoteErrorKind categorizes a failed remote call.
type RemoteErrorKind string

const (
	RemoteErrAuth       RemoteErrorKind = "auth"
	RemoteErrPermission RemoteErrorKind = "permission"
	RemoteErrNotFound   RemoteErrorKind = "not_found"
	RemoteErrRateLimit  RemoteErrorKind = "rate_limit"
	RemoteErrServer     RemoteErrorKind = "server"
	RemoteErrNetwork    RemoteErrorKind = "network"
	RemoteErrTimeout    RemoteErrorKind = "timeout"
	RemoteErrUnknown    RemoteErrorKind = "unknown"
)

// Sentinel errors matched by errors.Is against a *RemoteError of the same kind.
var (
	ErrUnauthorized = errors.New("authentication failed: the access token is invalid or expired")
	ErrForbidden    = errors.New("permission denied: the access token lacks the required scope")
	ErrNotFound     = errors.New("resource not found")
	ErrRateLimited  = errors.New("rate limit reached: retry later")
	ErrServer       = errors.New("remote server error: the service is temporarily unavailable")
	ErrNetwork      = errors.New("network error: unable to reach the remote instance")
	ErrTimeout      = errors.New("remote request timed out")
)

var kindSentinels = map[RemoteErrorKind]error{
	RemoteErrAuth:       ErrUnauthorized,
	RemoteErrPermission: ErrForbidden,
	RemoteErrNotFound:   ErrNotFound,
	RemoteErrRateLimit:  ErrRateLimited,
	RemoteErrServer:     ErrServer,
	RemoteErrNetwork:    ErrNetwork,
	RemoteErrTimeout:    ErrTimeout,
}

// RemoteError is the translated form of every remote client failure.
type RemoteError struct {
	Kind   RemoteErrorKind
	Status int    // HTTP status, 0 when no response was received.
	Op     string // e.g. "get project 42".
	Err    error
}

func (e *RemoteError) Error() string {
	msg := string(e.Kind)
	if s, ok := kindSentinels[e.Kind]; ok {
		msg = s.Error()
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *RemoteError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// KindForStatus maps an HTTP status code to a RemoteErrorKind.
func KindForStatus(status int) RemoteErrorKind {
	switch {
	case status == 401:
		return RemoteErrAuth
	case status == 403:
		return RemoteErrPermission
	case status == 404:
		return RemoteErrNotFound
	case status == 429:
		return RemoteErrRateLimit
	case status >= 500:
		return RemoteErrServer
	default:
		return RemoteErrUnknown
	}
}

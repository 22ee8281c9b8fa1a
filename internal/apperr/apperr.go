package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the RPC boundary.
type Kind string

const (
	KindAuth               Kind = "auth_failure"
	KindNetwork            Kind = "network_failure"
	KindFilesystem         Kind = "filesystem_failure"
	KindSerialization      Kind = "serialization_failure"
	KindLaunch             Kind = "launch_failure"
	KindVersionNotFound    Kind = "version_not_found"
	KindRuntimeNotFound    Kind = "runtime_not_found"
	KindInsufficientMemory Kind = "insufficient_memory"
	KindInstall            Kind = "install_failure"
	KindSessionExpired     Kind = "session_expired"
	KindConflict           Kind = "conflict"
	KindInvalid            Kind = "invalid_argument"
	KindUnclassified       Kind = "unclassified"
)

// Error is the structured failure value surfaced to callers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same request may succeed without user intervention.
func (e *Error) Retryable() bool { return e.Kind == KindNetwork }

// Is matches another *Error by kind so errors.Is(err, &Error{Kind: K}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnclassified.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnclassified
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }

func VersionNotFound(id string) *Error {
	return Newf(KindVersionNotFound, "version %q is not installed; install it before launching", id)
}

func RuntimeNotFound(detail string) *Error {
	msg := "no Java runtime found; install one or set java_path in settings"
	if detail != "" {
		msg = detail
	}
	return New(KindRuntimeNotFound, msg)
}

func LaunchFailed(err error) *Error {
	return Wrap(KindLaunch, "failed to start game process", err)
}

func Filesystem(msg string, err error) *Error { return Wrap(KindFilesystem, msg, err) }

func Serialization(msg string, err error) *Error { return Wrap(KindSerialization, msg, err) }

func Network(msg string, err error) *Error {
	return Wrap(KindNetwork, msg+" (check your connection and retry)", err)
}

func Install(msg string, err error) *Error { return Wrap(KindInstall, msg, err) }

func Conflict(msg string) *Error { return New(KindConflict, msg) }

func Invalid(msg string, err error) *Error { return Wrap(KindInvalid, msg, err) }

package acquisition

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind is the fixed failure taxonomy shared by every fetch strategy.
// Retry and fallback decisions are made from the Kind alone, never from
// message text; messages exist only for humans.
type Kind string

const (
	// upstream throttling, retryable after backoff
	KindRateLimited Kind = "rate_limited"
	// credential invalid/expired/insufficient scope
	KindNotAuthorized Kind = "not_authorized"
	// confirmed-absent profile, terminal
	KindNotFound Kind = "not_found"
	// the profile exists but its own privacy settings block access, terminal
	KindPrivacyRestricted Kind = "privacy_restricted"
	// transient upstream outage or timeout, retryable
	KindServiceUnavailable Kind = "service_unavailable"
	// anything else, surfaced after at most one retry
	KindUnknown Kind = "unknown"
)

// Transient reports whether a failure of this kind is worth retrying
// after backoff.
func (k Kind) Transient() bool {
	return k == KindRateLimited || k == KindServiceUnavailable
}

// UserMessage is what the boundary layer shows for this kind, the
// classified message itself is operator-facing.
func (k Kind) UserMessage() string {
	switch k {
	case KindRateLimited:
		return "This platform is throttling requests right now. Try again in a few minutes."
	case KindNotAuthorized:
		return "Our access to this platform is not authorized. An operator needs to reconnect it."
	case KindNotFound:
		return "No profile with that username was found on this platform."
	case KindPrivacyRestricted:
		return "This profile exists but its privacy settings prevent us from reading it."
	case KindServiceUnavailable:
		return "This platform appears to be unavailable right now. Try again later."
	default:
		return "Something unexpected went wrong while talking to this platform."
	}
}

type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func WrapError(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf classifies an arbitrary error. Timeouts and transport-level
// failures count as a transient upstream outage, everything unlabeled
// is unknown.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindServiceUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindServiceUnavailable
	}
	return KindUnknown
}

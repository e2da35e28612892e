package gwconn

import (
	"errors"
	"fmt"
)

// Kind classifies a connection error so callers can react by category
// (retry on network failures, surface auth failures, count decode noise)
// without matching on error strings.
type Kind int

const (
	KindNetwork Kind = iota
	KindAuth
	KindProtocol
	KindTimeout
	KindDecode
)

// String returns the lowercase category name.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuth:
		return "auth"
	case KindProtocol:
		return "protocol"
	case KindTimeout:
		return "timeout"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is a categorized connection error. Op names the operation that
// failed ("dial", "read", "heartbeat", ...).
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NetworkError wraps a transport-level failure (dial refused, read/write
// on a dead socket, unexpected close).
func NetworkError(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

// AuthError wraps a credential rejection. Auth errors are terminal: the
// manager will not retry them.
func AuthError(op string, err error) *Error {
	return &Error{Kind: KindAuth, Op: op, Err: err}
}

// ProtocolError wraps a violation of the expected frame exchange.
func ProtocolError(op string, err error) *Error {
	return &Error{Kind: KindProtocol, Op: op, Err: err}
}

// TimeoutError wraps a deadline expiry (dial timeout, missed heartbeat).
func TimeoutError(op string, err error) *Error {
	return &Error{Kind: KindTimeout, Op: op, Err: err}
}

// DecodeError wraps malformed payload data inside an otherwise healthy
// connection.
func DecodeError(op string, err error) *Error {
	return &Error{Kind: KindDecode, Op: op, Err: err}
}

// KindOf extracts the category of err. ok is false when err carries no
// category anywhere in its chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given category.
func IsKind(err error, k Kind) bool {
	kind, ok := KindOf(err)
	return ok && kind == k
}

// IsAuth reports whether err is a credential rejection.
func IsAuth(err error) bool { return IsKind(err, KindAuth) }

// IsTimeout reports whether err is a deadline expiry.
func IsTimeout(err error) bool { return IsKind(err, KindTimeout) }

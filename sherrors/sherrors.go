// Package sherrors defines the small set of abstract kinds that package
// boundaries classify errors into. Most boundaries wrap lower-level
// errors (KV engine, trie library, transport) into a Kind; some paths
// (trie node loading, persist's column-family and deque plumbing,
// encoding) return plain errors, which KindOf reports as Unknown.
package sherrors

import (
	"errors"
	"fmt"
)

// Kind is the abstract error taxonomy shared across the module.
type Kind int

const (
	// Unknown is never returned deliberately; its presence indicates a
	// conversion site that didn't classify its error.
	Unknown Kind = iota
	InputRejected
	AuthFailed
	NotFound
	Conflict
	CapacityExceeded
	ProofVerificationFailed
	TransportFailed
	TransactionTimeout
	TransactionDropped
	TransactionUsurped
	FinalityTimeout
	StorageCorruption
	PanicRecovered
)

func (k Kind) String() string {
	switch k {
	case InputRejected:
		return "InputRejected"
	case AuthFailed:
		return "AuthFailed"
	case NotFound:
		return "NotFound"
	case Conflict:
		return "Conflict"
	case CapacityExceeded:
		return "CapacityExceeded"
	case ProofVerificationFailed:
		return "ProofVerificationFailed"
	case TransportFailed:
		return "TransportFailed"
	case TransactionTimeout:
		return "TransactionTimeout"
	case TransactionDropped:
		return "TransactionDropped"
	case TransactionUsurped:
		return "TransactionUsurped"
	case FinalityTimeout:
		return "FinalityTimeout"
	case StorageCorruption:
		return "StorageCorruption"
	case PanicRecovered:
		return "PanicRecovered"
	default:
		return "Unknown"
	}
}

// Error is the wrapper type every component boundary returns. It carries
// the abstract Kind, an optional underlying cause, and free-form context.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, target) report true when target is (or wraps)
// an *Error of the same Kind, whatever its message or cause. To test a
// bare Kind, use the package-level Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// KindOf extracts the Kind from err, returning Unknown if err is not (or
// does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Package ucerrors defines the shared error taxonomy used across unisync's
// use cases: precondition, input, crypto, state, transient I/O, policy, and
// fatal errors. Use cases wrap these with context via fmt.Errorf("...: %w").
package ucerrors

import "errors"

// Kind classifies an error for logging and for orchestration-layer decisions
// (retry vs. surface vs. convert to a terminal state).
type Kind int

const (
	KindPrecondition Kind = iota
	KindInput
	KindCrypto
	KindState
	KindTransient
	KindPolicy
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindInput:
		return "input"
	case KindCrypto:
		return "crypto"
	case KindState:
		return "state"
	case KindTransient:
		return "transient"
	case KindPolicy:
		return "policy"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a classified, wrapped error. errors.As unwraps to the underlying
// cause; errors.Is compares by Kind-tagged sentinels below.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with an operation name and a classification.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err (or any error it wraps) is classified as kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Precondition sentinels.
var (
	ErrAlreadyInitialized     = errors.New("already initialized")
	ErrMissingWrappedMaster   = errors.New("keyslot missing wrapped master key")
	ErrLocked                 = errors.New("session locked")
	ErrUninitialized          = errors.New("encryption not initialized")
	ErrSessionExists          = errors.New("session already exists")
	ErrSessionMissing         = errors.New("session missing")
)

// Input sentinels.
var (
	ErrInvalidLimit        = errors.New("invalid limit")
	ErrMalformedWireMessage = errors.New("malformed wire message")
	ErrInvalidPeer         = errors.New("invalid peer")
)

// Crypto sentinels.
var (
	ErrWrongPassphrase = errors.New("wrong passphrase")
	ErrCorruptedBlob   = errors.New("corrupted encrypted blob")
	ErrEncryptFailed   = errors.New("encrypt failed")
	ErrDecryptFailed   = errors.New("decrypt failed")
)

// State sentinels.
var ErrStateMismatch = errors.New("state mismatch")

// Policy sentinels.
var (
	ErrProtocolDenied  = errors.New("protocol denied")
	ErrPolicyRepoError = errors.New("policy repository error")
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
)

// Fatal sentinels.
var ErrStatePersistenceFailed = errors.New("state persistence failed")

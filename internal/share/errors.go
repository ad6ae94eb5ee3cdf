package share

import (
	"errors"
	"fmt"
)

// UserMessage is the single user-facing category for decode failures.
const UserMessage = "invalid share data"

// Decode failure kinds. A *DecodeError unwraps to exactly one of them.
var (
	ErrMalformedToken     = errors.New("malformed token")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrCorruptPayload     = errors.New("corrupt payload")
	ErrInvalidSnapshot    = errors.New("invalid snapshot")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrPayloadTooLarge    = errors.New("payload too large")
)

// DecodeError reports why a token could not be decoded. Detail is for
// logs; Message is safe to show to the caller.
type DecodeError struct {
	Kind   error
	Detail string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if e.Detail == "" {
		return UserMessage + ": " + e.Kind.Error()
	}
	return UserMessage + ": " + e.Kind.Error() + ": " + e.Detail
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}

// Message is the human-readable diagnostic returned to clients. It names
// the failure kind but never the detail.
func (e *DecodeError) Message() string {
	return UserMessage + ": " + e.Kind.Error()
}

func decodeError(kind error, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

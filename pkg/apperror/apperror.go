// Package apperror classifies failures so handlers can tell "nothing happened" apart from
// "a transaction was submitted but something after it went wrong".
package apperror

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Kind int

const (
	Unknown Kind = iota
	InvalidInput
	InvalidCredential
	BusinessRule
	Network
	Submission
	Configuration
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case InvalidCredential:
		return "invalid_credential"
	case BusinessRule:
		return "business_rule_violation"
	case Network:
		return "network_error"
	case Submission:
		return "submission_error"
	case Configuration:
		return "configuration_error"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Submitted holds the hashes of transactions that already
// reached the node before the failure; when it is non-empty the caller must not resubmit.
type Error struct {
	Kind      Kind
	Message   string
	Submitted []string
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err, keeping a stack trace of the wrap point.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: errors.WithStack(err)}
}

// AfterSubmission marks err as having happened once the given transactions were already sent.
func AfterSubmission(err error, hashes ...string) error {
	return &Error{Kind: Submission, Message: "transaction submitted but request did not complete", Submitted: hashes, Err: err}
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// SubmittedHashes returns the hashes recorded on the first classified error that has any.
func SubmittedHashes(err error) []string {
	for err != nil {
		if e, ok := err.(*Error); ok && len(e.Submitted) > 0 {
			return e.Submitted
		}
		err = errors.Unwrap(err)
	}
	return nil
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case InvalidInput, BusinessRule:
		return http.StatusBadRequest
	case InvalidCredential:
		return http.StatusUnauthorized
	case Network, Submission:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

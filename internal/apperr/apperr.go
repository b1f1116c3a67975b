// Package apperr carries the error taxonomy shared by the upload engine and the
// HTTP shell. Every error raised while parsing or handling a chunk is one of
// these kinds; the shell maps the kind to a status code.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindPayloadTooLarge
	KindUnauthorized
	KindNotFound
	KindMethodNotAllowed
	KindUnprocessable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindUnprocessable:
		return "unprocessable"
	default:
		return "internal"
	}
}

// Rule names the validation rule a field violated.
type Rule string

const (
	RuleRequired          Rule = "required"
	RuleInteger           Rule = "integer"
	RuleMalformed         Rule = "malformed"
	RuleNonNegative       Rule = "non_negative"
	RulePositive          Rule = "positive"
	RuleBelowCount        Rule = "below_count"
	RuleAtMostCount       Rule = "at_most_count"
	RuleCoversOffset      Rule = "covers_offset"
	RuleWithinGrid        Rule = "within_grid"
	RuleEndNotBeforeStart Rule = "end_not_before_start"
	RuleTotalAboveEnd     Rule = "total_above_end"
	RuleTooLarge          Rule = "too_large"
	RuleSafeName          Rule = "safe_name"
	RuleSingleFile        Rule = "single_file"
)

type Error struct {
	Kind  Kind
	Field string
	Rule  Rule
	Msg   string
	// Allow lists the accepted methods of a KindMethodNotAllowed error.
	Allow []string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(field string, rule Rule, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Rule: rule, Msg: fmt.Sprintf(format, args...)}
}

func TooLarge(field string, format string, args ...any) *Error {
	return &Error{Kind: KindPayloadTooLarge, Field: field, Rule: RuleTooLarge, Msg: fmt.Sprintf(format, args...)}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Msg: msg}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Unprocessable(field string, rule Rule, msg string) *Error {
	return &Error{Kind: KindUnprocessable, Field: field, Rule: rule, Msg: msg}
}

func MethodNotAllowed(allow ...string) *Error {
	return &Error{Kind: KindMethodNotAllowed, Msg: "method not allowed", Allow: allow}
}

// Internal wraps an I/O or storage failure. A nil err yields nil.
func Internal(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of err; errors outside the taxonomy are internal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

func FieldOf(err error) string {
	if e, ok := As(err); ok {
		return e.Field
	}
	return ""
}

func RuleOf(err error) Rule {
	if e, ok := As(err); ok {
		return e.Rule
	}
	return ""
}

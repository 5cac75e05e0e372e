// Package apperr defines the error kinds returned by domain services and the
// JSON body the HTTP layer renders for them.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindValidation
	KindNotFound
	KindUpstream
	KindReferentialGap
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	case KindReferentialGap:
		return "referential_gap"
	default:
		return "internal"
	}
}

// Error codes carried in the response body.
const (
	CodeAuthenticationRequired  = "AUTHENTICATION_REQUIRED"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeValidationError         = "VALIDATION_ERROR"
	CodeResourceNotFound        = "RESOURCE_NOT_FOUND"
	CodeUpstreamError           = "UPSTREAM_ERROR"
	CodeReferentialGap          = "REFERENTIAL_GAP"
	CodeInternalError           = "INTERNAL_ERROR"
)

// Error is the single error type crossing the service boundary.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Reason  string
	Details map[string]interface{}
	Err     error

	statusOverride int
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	switch {
	case e.Field != "":
		msg = fmt.Sprintf("%s: %s: %s", msg, e.Field, e.Message)
	case e.Reason != "":
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	case e.Message != "":
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Unauthenticated never carries detail about why resolution failed.
func Unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: "authentication required"}
}

func Forbidden(reason string) *Error {
	return &Error{Kind: KindForbidden, Reason: reason, Message: "action not permitted"}
}

func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// Upstream wraps a failure reported by the store or the identity provider.
// The upstream message is surfaced verbatim.
func Upstream(op string, err error) *Error {
	msg := op
	if err != nil {
		msg = fmt.Sprintf("%s: %s", op, err.Error())
	}
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

// ReferentialGap reports that a patient was created but the appointment that
// should reference it was not.
func ReferentialGap(patientID string, err error) *Error {
	return &Error{
		Kind:    KindReferentialGap,
		Message: "patient was created but the appointment could not be saved",
		Details: map[string]interface{}{"patient_id": patientID},
		Err:     err,
	}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// As extracts an *Error from the chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return KindInternal
}

func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

func (e *Error) Status() int {
	if e.statusOverride != 0 {
		return e.statusOverride
	}
	switch e.Kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse represents the standardized error response body.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *Error) Response() ErrorResponse {
	resp := ErrorResponse{Message: e.Message}
	switch e.Kind {
	case KindUnauthenticated:
		resp.Error, resp.Code = "Unauthorized", CodeAuthenticationRequired
	case KindForbidden:
		resp.Error, resp.Code = "Forbidden", CodeInsufficientPermissions
		resp.Details = map[string]interface{}{"reason": e.Reason}
	case KindValidation:
		resp.Error, resp.Code = "Validation failed", CodeValidationError
		if e.Field != "" {
			resp.Details = map[string]interface{}{"field": e.Field}
		}
	case KindNotFound:
		resp.Error, resp.Code = "Resource not found", CodeResourceNotFound
	case KindUpstream:
		resp.Error, resp.Code = "Upstream failure", CodeUpstreamError
	case KindReferentialGap:
		resp.Error, resp.Code = "Partial write", CodeReferentialGap
		resp.Details = e.Details
	default:
		resp.Error, resp.Code = "Internal error", CodeInternalError
		resp.Message = "internal server error"
	}
	return resp
}

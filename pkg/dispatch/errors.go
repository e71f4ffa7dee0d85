package dispatch

import (
	"errors"
	"fmt"
)

// Kind buckets engine errors so callers can map them to transport-level
// responses without matching individual codes.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindState         Kind = "state"
	KindAvailability  Kind = "availability"
	KindUpstream      Kind = "upstream"
)

const (
	CodeInvalidInput         = "INVALID_INPUT"
	CodeInvalidStatus        = "INVALID_RECORDING_STATUS"
	CodeVideoNotFound        = "VIDEO_NOT_FOUND"
	CodeClaimNotOwned        = "CLAIM_NOT_OWNED"
	CodeClaimHeld            = "CLAIM_HELD"
	CodeNotAssignedToYou     = "NOT_ASSIGNED_TO_YOU"
	CodeAssignmentExpired    = "ASSIGNMENT_EXPIRED"
	CodeRoleMismatch         = "ROLE_MISMATCH"
	CodeForbidden            = "FORBIDDEN"
	CodeMissingFinalMedia    = "MISSING_FINAL_MEDIA"
	CodeMissingLockedScript  = "MISSING_LOCKED_SCRIPT"
	CodeMissingPostingFields = "MISSING_POSTING_FIELDS"
	CodeTerminalStatus       = "TERMINAL_STATUS"
	CodeNoWorkAvailable      = "NO_WORK_AVAILABLE"
	CodeUpgradeRequired      = "UPGRADE_REQUIRED"
)

// Error is the structured error the engine returns for every business-rule
// rejection. Only malformed programmatic misuse is reported as a plain error.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(kind Kind, code, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrNoWorkAvailable distinguishes an empty dispatch result from a failure.
var ErrNoWorkAvailable = &Error{
	Kind:    KindAvailability,
	Code:    CodeNoWorkAvailable,
	Message: "no eligible work items in lane",
}

// CodeOf extracts the engine error code, or "" for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// KindOf extracts the engine error kind, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

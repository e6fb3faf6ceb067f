package domain

import (
	"errors"
	"fmt"
)

// ErrorKind buckets expected domain failures for the HTTP boundary.
type ErrorKind int

const (
	KindValidation ErrorKind = iota // bad input shape, reported inline
	KindNotFound                    // unknown username/token/session/link
	KindConflict                    // duplicate username/email/attendance key
	KindState                       // locked, inactive, expired, usage exceeded
	KindStorage                     // underlying store failure
)

// Stable error codes surfaced to callers.
const (
	CodeInvalidInput          = "INVALID_INPUT"
	CodeEmptyPassword         = "EMPTY_PASSWORD"
	CodePasswordTooShort      = "PASSWORD_TOO_SHORT"
	CodeWeakPassword          = "WEAK_PASSWORD"
	CodeUserNotFound          = "USER_NOT_FOUND"
	CodeInvalidPassword       = "INVALID_PASSWORD"
	CodeAccountLocked         = "ACCOUNT_LOCKED"
	CodeAccountInactive       = "ACCOUNT_INACTIVE"
	CodeUsernameExists        = "USERNAME_EXISTS"
	CodeEmailExists           = "EMAIL_EXISTS"
	CodeInvalidOrExpiredToken = "INVALID_OR_EXPIRED_TOKEN"
	CodeSessionNotFound       = "SESSION_NOT_FOUND"
	CodeLinkNotFound          = "LINK_NOT_FOUND"
	CodeTokenExpired          = "TOKEN_EXPIRED"
	CodeTokenInactive         = "TOKEN_INACTIVE"
	CodeUsageExceeded         = "USAGE_EXCEEDED"
	CodeStudentNotFound       = "STUDENT_NOT_FOUND"
	CodeStudentExists         = "STUDENT_EXISTS"
	CodeAlreadyMarked         = "ALREADY_MARKED"
	CodeRecordNotFound        = "RECORD_NOT_FOUND"
	CodeStorageError          = "STORAGE_ERROR"
)

// Error is the discriminated failure every service operation returns for
// expected domain conditions. Only storage failures wrap an underlying
// cause.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NotFound(code, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Conflict(code, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

func State(code, format string, args ...any) *Error {
	return &Error{Kind: KindState, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Storage(err error) *Error {
	return &Error{Kind: KindStorage, Code: CodeStorageError, Message: "storage error", Err: err}
}

// CodeOf extracts the domain code from an error chain, or empty.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// KindOf extracts the kind; unknown errors count as storage failures.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindStorage
}

// IsCode reports whether err carries the given domain code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

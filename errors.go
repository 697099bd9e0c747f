package auth

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Error is the rich error every operation returns
type Error = goerrors.Error

const (
	TextCodeUnauthorized       = "unauthorized"
	TextCodeForbidden          = "forbidden"
	TextCodeInvalidCredentials = "invalid_credentials"
	TextCodeConflict           = "conflict"
	TextCodeAccountNotFound    = "account_not_found"
	TextCodeStore              = "store_error"
	TextCodeInvalidPayload     = "invalid_payload"
	TextCodeTokenMalformed     = "token_malformed"
	TextCodeTokenTampered      = "token_tampered"
	TextCodeTokenExpired       = "token_expired"
	TextCodeInternal           = "internal_error"
)

// NewSentinel builds a categorized error with its status and text code set.
// goerrors.New leaves Code unset, so the status is derived from category.
func NewSentinel(message string, category goerrors.Category, textCode string) *Error {
	return goerrors.New(message, category).
		WithCode(statusForCategory(category)).
		WithTextCode(textCode)
}

// Decorate returns a copy of sentinel carrying meta. The copy unwraps to
// sentinel, so errors.Is keeps matching it and the sentinel is never mutated.
func Decorate(sentinel *Error, meta map[string]any) *Error {
	err := sentinel.Clone()
	err.Source = sentinel
	if len(meta) > 0 {
		err.WithMetadata(meta)
	}
	return err
}

// Wrap attaches source to a copy of sentinel. Both stay reachable through
// errors.Is. A nil source yields nil, as with goerrors.Wrap.
func Wrap(source error, sentinel *Error) *Error {
	if source == nil {
		return nil
	}
	err := sentinel.Clone()
	err.Source = errors.Join(sentinel, source)
	return err
}

func statusForCategory(c goerrors.Category) int {
	switch c {
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrUnauthorized no credential was presented or the session is no longer live
var ErrUnauthorized = NewSentinel("authorisation failed: session required", goerrors.CategoryAuth, TextCodeUnauthorized)

// ErrForbidden the credential was presented but failed cryptographic checks
var ErrForbidden = NewSentinel("authorisation failed: forbidden request", goerrors.CategoryAuthz, TextCodeForbidden)

// ErrInvalidCredentials is returned for any failed local login
var ErrInvalidCredentials = NewSentinel("invalid username or password", goerrors.CategoryAuth, TextCodeInvalidCredentials)

// ErrConflict is returned when a unique account attribute is already taken
var ErrConflict = NewSentinel("account already exists", goerrors.CategoryConflict, TextCodeConflict)

// ErrAccountNotFound no account matched the lookup
var ErrAccountNotFound = NewSentinel("account not found", goerrors.CategoryNotFound, TextCodeAccountNotFound)

// ErrStore the persistent store failed
var ErrStore = NewSentinel("internal server error", goerrors.CategoryInternal, TextCodeStore)

// ErrInvalidPayload the request body could not be parsed or validated
var ErrInvalidPayload = NewSentinel("invalid request payload", goerrors.CategoryBadInput, TextCodeInvalidPayload)

// ErrTokenMalformed the credential could not be parsed
var ErrTokenMalformed = NewSentinel("token is malformed", goerrors.CategoryAuthz, TextCodeTokenMalformed)

// ErrTokenTampered the credential signature or embedded expiry is invalid
var ErrTokenTampered = NewSentinel("token signature is invalid or token is expired", goerrors.CategoryAuthz, TextCodeTokenTampered)

// ErrNoEmptyString password must not be empty
var ErrNoEmptyString = NewSentinel("password must not be empty", goerrors.CategoryBadInput, TextCodeInvalidPayload)

// ErrMismatchedHashAndPassword the password does not match the digest
var ErrMismatchedHashAndPassword = NewSentinel("password does not match", goerrors.CategoryAuth, TextCodeInvalidCredentials)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenExpired) || strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTokenMalformed) ||
		strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsNotFound reports whether the first rich error in err's chain is a
// lookup miss
func IsNotFound(err error) bool {
	return goerrors.IsNotFound(err)
}

// Reason returns the "reason" metadata of the rich error in err's chain
func Reason(err error) string {
	rich := AsError(err)
	if rich == nil || rich.Metadata == nil {
		return ""
	}
	r, _ := rich.Metadata["reason"].(string)
	return r
}

// AsError returns the rich error in err's chain or a generic internal error
// wrapping it. Driver and library errors never leave the process through it.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}

	var richErr *Error
	if goerrors.As(err, &richErr) {
		if richErr.Code == 0 {
			richErr = richErr.Clone().WithCode(statusForCategory(richErr.Category))
		}
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, "internal server error").
		WithCode(http.StatusInternalServerError).
		WithTextCode(TextCodeInternal)
}

// HTTPStatus returns the status code err maps to
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return AsError(err).Code
}

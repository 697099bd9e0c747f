package auth_test

import (
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-session-auth"
)

func TestErrorStatusByCategory(t *testing.T) {
	cases := map[*auth.Error]int{
		auth.ErrUnauthorized:       401,
		auth.ErrInvalidCredentials: 401,
		auth.ErrTokenExpired:       401,
		auth.ErrForbidden:          403,
		auth.ErrTokenTampered:      403,
		auth.ErrInvalidPayload:     400,
		auth.ErrConflict:           409,
		auth.ErrAccountNotFound:    404,
		auth.ErrStore:              500,
	}
	for err, status := range cases {
		assert.Equal(t, status, err.Code, err.TextCode)
	}

	assert.Equal(t, goerrors.CategoryAuth, auth.ErrUnauthorized.Category)
	assert.Equal(t, goerrors.CategoryAuthz, auth.ErrForbidden.Category)
}

func TestErrorDecorationKeepsIdentity(t *testing.T) {
	decorated := auth.Decorate(auth.ErrUnauthorized, map[string]any{"reason": "expired"})

	assert.ErrorIs(t, decorated, auth.ErrUnauthorized)
	assert.NotErrorIs(t, decorated, auth.ErrForbidden)
	assert.Equal(t, "expired", auth.Reason(decorated))
	assert.Equal(t, 401, decorated.Code)
	assert.Empty(t, auth.Reason(auth.ErrUnauthorized), "sentinel is not mutated")
	assert.Nil(t, auth.ErrUnauthorized.Metadata)

	wrapped := fmt.Errorf("handler: %w", decorated)
	assert.ErrorIs(t, wrapped, auth.ErrUnauthorized)
	assert.Equal(t, "expired", auth.Reason(wrapped))
}

func TestWrapKeepsSource(t *testing.T) {
	source := errors.New("UNIQUE constraint failed: accounts.login_name")
	err := auth.Wrap(source, auth.ErrConflict)

	assert.ErrorIs(t, err, auth.ErrConflict)
	assert.ErrorIs(t, err, source)
	assert.Equal(t, auth.ErrConflict.Message, err.Message)
	assert.Contains(t, err.Error(), "login_name")
	assert.Nil(t, auth.ErrConflict.Source)

	assert.Nil(t, auth.Wrap(nil, auth.ErrConflict))
}

func TestWrapThenDecorateDoesNotLeak(t *testing.T) {
	first := auth.Wrap(errors.New("bad sig"), auth.ErrForbidden).WithMetadata(map[string]any{"reason": "tampered"})
	second := auth.Wrap(errors.New("bad json"), auth.ErrForbidden).WithMetadata(map[string]any{"reason": "malformed"})

	assert.Equal(t, "tampered", auth.Reason(first))
	assert.Equal(t, "malformed", auth.Reason(second))
	assert.Empty(t, auth.Reason(auth.ErrForbidden))
}

func TestAsErrorHidesForeignErrors(t *testing.T) {
	assert.Nil(t, auth.AsError(nil))

	rich := auth.AsError(errors.New("pq: password authentication failed"))
	assert.Equal(t, 500, rich.Code)
	assert.Equal(t, auth.TextCodeInternal, rich.TextCode)
	assert.Equal(t, "internal server error", rich.Message)
	assert.Equal(t, goerrors.CategoryInternal, rich.Category)
}

func TestAsErrorFillsMissingCode(t *testing.T) {
	plain := goerrors.New("no such row", goerrors.CategoryNotFound)

	rich := auth.AsError(fmt.Errorf("lookup: %w", plain))
	require.NotNil(t, rich)
	assert.Equal(t, 404, rich.Code)
	assert.Zero(t, plain.Code)
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, auth.IsNotFound(auth.Decorate(auth.ErrAccountNotFound, map[string]any{"id": "x"})))
	assert.False(t, auth.IsNotFound(auth.ErrStore))
	assert.True(t, auth.IsMalformedError(auth.ErrTokenMalformed))
	assert.True(t, auth.IsTokenExpiredError(auth.Wrap(errors.New("exp"), auth.ErrTokenExpired)))
	assert.False(t, auth.IsTokenExpiredError(nil))

	assert.Equal(t, 200, auth.HTTPStatus(nil))
	assert.Equal(t, 409, auth.HTTPStatus(fmt.Errorf("signup: %w", auth.ErrConflict)))
	assert.Equal(t, 500, auth.HTTPStatus(errors.New("boom")))

	custom := auth.NewSentinel("teapot", goerrors.CategoryBadInput, "teapot").WithCode(418)
	assert.Equal(t, 418, auth.HTTPStatus(custom))
	assert.Equal(t, goerrors.CategoryBadInput, custom.Category)
}

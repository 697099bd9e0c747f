package social

import (
	goerrors "github.com/goliatone/go-errors"

	auth "github.com/goliatone/go-session-auth"
)

const (
	TextCodeProviderNotFound  = "social_provider_not_found"
	TextCodeInvalidState      = "social_invalid_state"
	TextCodeStateExpired      = "social_state_expired"
	TextCodeStateReplayed     = "social_state_replayed"
	TextCodeTokenExchangeFail = "social_token_exchange_failed"
	TextCodeUserInfoFail      = "social_user_info_failed"
	TextCodeProviderDenied    = "social_provider_denied"
)

// ErrProviderNotFound is returned when a requested provider is not configured.
var ErrProviderNotFound = auth.NewSentinel("social provider not found", goerrors.CategoryNotFound, TextCodeProviderNotFound)

// ErrInvalidState is returned when the OAuth state is invalid or tampered.
var ErrInvalidState = auth.NewSentinel("invalid oauth state", goerrors.CategoryBadInput, TextCodeInvalidState)

// ErrStateExpired is returned when the OAuth state has expired.
var ErrStateExpired = auth.NewSentinel("oauth state expired", goerrors.CategoryBadInput, TextCodeStateExpired)

// ErrStateReplayed is returned when a state nonce is presented a second time.
var ErrStateReplayed = auth.NewSentinel("oauth state already used", goerrors.CategoryBadInput, TextCodeStateReplayed)

// ErrTokenExchangeFailed is returned when a provider token exchange fails.
var ErrTokenExchangeFailed = auth.NewSentinel("token exchange failed", goerrors.CategoryAuth, TextCodeTokenExchangeFail)

// ErrUserInfoFailed is returned when fetching user info fails.
var ErrUserInfoFailed = auth.NewSentinel("failed to fetch user info", goerrors.CategoryAuth, TextCodeUserInfoFail)

// ErrProviderDenied is returned when the provider redirected back with an error.
var ErrProviderDenied = auth.NewSentinel("provider denied the request", goerrors.CategoryAuth, TextCodeProviderDenied)

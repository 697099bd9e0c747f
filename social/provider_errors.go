package social

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"strings"

	auth "github.com/goliatone/go-session-auth"
)

// ProviderError is a failed call to a provider endpoint. Code and Detail
// carry the provider's own error fields when the response had them.
type ProviderError struct {
	Provider  string
	Operation string
	Status    int
	Code      string
	Detail    string
	Err       error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(cmp.Or(e.Provider, "provider"))
	if e.Operation != "" {
		b.WriteString(" " + e.Operation)
	}
	b.WriteString(" failed")
	if e.Status != 0 {
		fmt.Fprintf(&b, " with status %d", e.Status)
	}

	switch {
	case e.Detail != "":
		b.WriteString(": " + e.Detail)
	case e.Code != "":
		b.WriteString(": " + e.Code)
	case e.Err != nil:
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) fields() map[string]any {
	out := map[string]any{}
	if e.Status != 0 {
		out["status"] = e.Status
	}
	if e.Code != "" {
		out["provider_code"] = e.Code
	}
	if e.Detail != "" {
		out["detail"] = e.Detail
	}
	return out
}

// providerFailure wraps err in base. Only ProviderError fields become
// metadata; arbitrary transport errors stay in the source.
func providerFailure(base *auth.Error, provider, operation string, err error) *auth.Error {
	meta := map[string]any{"provider": provider, "operation": operation}

	var perr *ProviderError
	if errors.As(err, &perr) {
		maps.Copy(meta, perr.fields())
	}
	return auth.Wrap(err, base).WithMetadata(meta)
}

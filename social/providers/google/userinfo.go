package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/goliatone/go-session-auth/social"
)

// maxUserInfoBody caps the userinfo response read
const maxUserInfoBody = 1 << 20

type userInfo struct {
	Sub           string   `json:"sub"`
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	Picture       string   `json:"picture"`
}

// flexBool accepts both true and "true". Google has served email_verified
// in either form depending on the endpoint version.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*b = false
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("email_verified: %w", err)
	}
	*b = flexBool(v)
	return nil
}

// UserInfo fetches the OpenID profile for token. A response without a
// subject is rejected since the subject is the stable identity.
func (p *Provider) UserInfo(ctx context.Context, token *social.Token) (*social.Profile, error) {
	if token == nil || token.AccessToken == "" {
		return nil, userInfoFailure(0, "missing_access_token", "no access token", nil)
	}

	client := p.oauth.Client(p.withClient(ctx), &oauth2.Token{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, userInfoFailure(0, "", "", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, userInfoFailure(0, "", "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBody))
	if err != nil {
		return nil, userInfoFailure(resp.StatusCode, "", "", err)
	}
	if resp.StatusCode != http.StatusOK {
		code, detail := parseError(body)
		return nil, userInfoFailure(resp.StatusCode, code, detail, nil)
	}

	var info userInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, userInfoFailure(resp.StatusCode, "invalid_response", "undecodable userinfo", err)
	}
	if strings.TrimSpace(info.Sub) == "" {
		return nil, userInfoFailure(resp.StatusCode, "missing_subject", "userinfo has no subject", nil)
	}

	return &social.Profile{
		Provider:      Name,
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: bool(info.EmailVerified),
		Name:          info.Name,
		Picture:       info.Picture,
	}, nil
}

func userInfoFailure(status int, code, detail string, err error) *social.ProviderError {
	return &social.ProviderError{
		Provider:  Name,
		Operation: "user_info",
		Status:    status,
		Code:      code,
		Detail:    detail,
		Err:       err,
	}
}

// parseError reads either the OAuth error body or the Google API error
// envelope.
func parseError(body []byte) (code, detail string) {
	var envelope struct {
		Error            json.RawMessage `json:"error"`
		ErrorDescription string          `json:"error_description"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Error) > 0 {
		var plain string
		if json.Unmarshal(envelope.Error, &plain) == nil {
			return plain, envelope.ErrorDescription
		}

		var api struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		}
		if json.Unmarshal(envelope.Error, &api) == nil {
			if api.Status == "" && api.Code != 0 {
				api.Status = strconv.Itoa(api.Code)
			}
			return api.Status, api.Message
		}
	}

	detail = strings.TrimSpace(string(body))
	if detail == "" {
		detail = "google request failed"
	}
	return "", detail
}

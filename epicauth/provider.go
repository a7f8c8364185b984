package epicauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
)

// Endpoints holds the identity provider's OAuth endpoints. DeviceAuth is a
// printf template taking the account ID.
type Endpoints struct {
	Token      string
	DeviceCode string
	Exchange   string
	DeviceAuth string
}

// DefaultEndpoints returns the production Epic endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Token:      "https://account-public-service-prod.ol.epicgames.com/account/api/oauth/token",
		DeviceCode: "https://account-public-service-prod03.ol.epicgames.com/account/api/oauth/deviceAuthorization",
		Exchange:   "https://account-public-service-prod.ol.epicgames.com/account/api/oauth/exchange",
		DeviceAuth: "https://account-public-service-prod.ol.epicgames.com/account/api/public/account/%s/deviceAuth",
	}
}

// TokenResponse is the provider's token grant response. Access tokens are
// opaque to this service; they are held in memory only for the duration of
// a flow.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	AccountID   string `json:"account_id"`
	DisplayName string `json:"displayName"`
}

// DeviceCodeResponse is the device-authorization response.
type DeviceCodeResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// DeviceAuthResponse is the durable credential minted for an account.
type DeviceAuthResponse struct {
	DeviceID  string `json:"deviceId"`
	AccountID string `json:"accountId"`
	Secret    string `json:"secret"`
}

// ProviderError carries the provider's error body for non-2xx responses
// that do not map to a sentinel.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned %d: %s %s", e.StatusCode, e.Code, truncate(e.Message, 200))
}

// Provider speaks the identity provider's token grant protocol. Every token
// call authenticates with HTTP Basic using one of the configured client
// pairs; the device-authorization and exchange calls use a bearer token.
type Provider struct {
	endpoints  Endpoints
	httpClient *http.Client
}

func NewProvider(endpoints Endpoints, httpClient *http.Client) *Provider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Provider{endpoints: endpoints, httpClient: httpClient}
}

// ClientCredentialsToken obtains a service-level token for a client pair.
func (p *Provider) ClientCredentialsToken(ctx context.Context, client ClientCredentials) (*TokenResponse, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	return p.tokenGrant(ctx, client.BasicToken(), form)
}

// RequestDeviceAuthorization starts a device-code flow with the given
// service token.
func (p *Provider) RequestDeviceAuthorization(ctx context.Context, bearer string) (*DeviceCodeResponse, error) {
	form := url.Values{"prompt": {"login"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoints.DeviceCode, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "[RequestDeviceAuthorization] build request")
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := p.do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[RequestDeviceAuthorization] request")
	}
	if status != http.StatusOK {
		if strings.Contains(string(body), "unsupported_grant_type") {
			return nil, apperrors.Wrapf(apperrors.ErrUnsupportedGrant, "[RequestDeviceAuthorization]")
		}
		return nil, providerErr(status, body)
	}

	var resp DeviceCodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "[RequestDeviceAuthorization] decode")
	}
	if resp.ExpiresIn == 0 {
		resp.ExpiresIn = 600
	}
	if resp.Interval == 0 {
		resp.Interval = 5
	}
	return &resp, nil
}

// DeviceCodeToken performs one poll attempt for a pending device code.
// 400 responses are classified by errorCode substring into the auth
// sentinels; other failures come back as *ProviderError.
func (p *Provider) DeviceCodeToken(ctx context.Context, client ClientCredentials, deviceCode string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":  {"device_code"},
		"device_code": {deviceCode},
	}
	resp, err := p.tokenGrant(ctx, client.BasicToken(), form)
	if err == nil {
		return resp, nil
	}

	var perr *ProviderError
	if !errors.As(err, &perr) || perr.StatusCode != http.StatusBadRequest {
		return nil, err
	}
	switch {
	case strings.Contains(perr.Code, "authorization_pending"):
		return nil, apperrors.ErrAuthPending
	case strings.Contains(perr.Code, "slow_down"):
		return nil, apperrors.ErrAuthSlowDown
	case strings.Contains(perr.Code, "expired_token"), strings.Contains(perr.Code, "expired"):
		return nil, apperrors.ErrAuthExpired
	case strings.Contains(perr.Code, "access_denied"):
		return nil, apperrors.ErrAuthDenied
	}
	return nil, err
}

// ExchangeCode requests a short-lived exchange code for the bearer's
// account.
func (p *Provider) ExchangeCode(ctx context.Context, bearer string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoints.Exchange, nil)
	if err != nil {
		return "", errors.Wrap(err, "[ExchangeCode] build request")
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	status, body, err := p.do(req)
	if err != nil {
		return "", errors.Wrap(err, "[ExchangeCode] request")
	}
	if status != http.StatusOK {
		return "", providerErr(status, body)
	}

	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errors.Wrap(err, "[ExchangeCode] decode")
	}
	if resp.Code == "" {
		return "", errors.New("[ExchangeCode] provider returned no code")
	}
	return resp.Code, nil
}

// ExchangeCodeToken redeems an exchange code against a different client
// pair.
func (p *Provider) ExchangeCodeToken(ctx context.Context, client ClientCredentials, exchangeCode string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"exchange_code"},
		"exchange_code": {exchangeCode},
	}
	resp, err := p.tokenGrant(ctx, client.BasicToken(), form)
	if err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) && strings.Contains(perr.Code+perr.Message, "client_disabled") {
			return nil, apperrors.Wrapf(apperrors.ErrClientDisabled, "[ExchangeCodeToken] %s", client.Label)
		}
		return nil, err
	}
	return resp, nil
}

// CreateDeviceAuth mints a durable device credential for the account using
// the bearer token. A 403 or a permission-flavored error body maps to
// ErrPermissionDenied, which signals the caller to walk the fallback chain.
func (p *Provider) CreateDeviceAuth(ctx context.Context, bearer, accountID string) (*DeviceAuthResponse, error) {
	deviceAuthURL := fmt.Sprintf(p.endpoints.DeviceAuth, url.PathEscape(accountID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, deviceAuthURL, strings.NewReader("{}"))
	if err != nil {
		return nil, errors.Wrap(err, "[CreateDeviceAuth] build request")
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")

	status, body, err := p.do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[CreateDeviceAuth] request")
	}
	if status != http.StatusOK {
		if status == http.StatusForbidden || strings.Contains(strings.ToLower(string(body)), "permission") {
			return nil, apperrors.Wrapf(apperrors.ErrPermissionDenied, "[CreateDeviceAuth] status %d", status)
		}
		return nil, providerErr(status, body)
	}

	var resp DeviceAuthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "[CreateDeviceAuth] decode")
	}
	return &resp, nil
}

// DeviceAuthToken replays a device-credential grant, used to verify that a
// stored secret is still accepted. basicToken must be the client token that
// minted the credential.
func (p *Provider) DeviceAuthToken(ctx context.Context, basicToken, deviceID, accountID, secret string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type": {"device_auth"},
		"device_id":  {deviceID},
		"account_id": {accountID},
		"secret":     {secret},
	}
	resp, err := p.tokenGrant(ctx, basicToken, form)
	if err != nil {
		var perr *ProviderError
		if errors.As(err, &perr) {
			combined := perr.Code + perr.Message
			if strings.Contains(combined, "invalid_grant") {
				return nil, apperrors.Wrapf(apperrors.ErrInvalidGrant, "[DeviceAuthToken]")
			}
			if strings.Contains(combined, "client_disabled") {
				return nil, apperrors.Wrapf(apperrors.ErrClientDisabled, "[DeviceAuthToken]")
			}
		}
		return nil, err
	}
	return resp, nil
}

func (p *Provider) tokenGrant(ctx context.Context, basicToken string, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoints.Token, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "[tokenGrant] build request")
	}
	req.Header.Set("Authorization", "Basic "+basicToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	status, body, err := p.do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[tokenGrant] request")
	}
	if status != http.StatusOK {
		return nil, providerErr(status, body)
	}

	var resp TokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "[tokenGrant] decode")
	}
	if resp.AccessToken == "" {
		return nil, errors.New("[tokenGrant] provider returned no access token")
	}
	return &resp, nil
}

func (p *Provider) do(req *http.Request) (int, []byte, error) {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Debug().Err(err).Msg("provider response body close")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func providerErr(status int, body []byte) *ProviderError {
	perr := &ProviderError{StatusCode: status, Message: string(body)}
	var parsed struct {
		ErrorCode string `json:"errorCode"`
		Message   string `json:"errorMessage"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		perr.Code = parsed.ErrorCode
		if parsed.Message != "" {
			perr.Message = parsed.Message
		}
	}
	return perr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

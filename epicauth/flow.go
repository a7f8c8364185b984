package epicauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
	"github.com/jasonzli-DEV/fortniteLobbyBot/internal/metrics"
)

// Bundle is the durable credential set produced by a completed flow. The
// client token that minted it is part of the bundle: future liveness checks
// must replay the same client.
type Bundle struct {
	DeviceID    string
	AccountID   string
	Secret      string
	DisplayName string
	ClientToken string
}

// StatusFunc receives human-readable progress updates during polling.
type StatusFunc func(status string)

// Service drives the device-code handshake against the identity provider.
// One pending flow per user; a second Start replaces the first.
type Service struct {
	provider *Provider
	clients  []ClientCredentials

	mu      sync.Mutex
	pending map[string]*DeviceCodeSession

	nowTime func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// ServiceOption modifies the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// WithSleep sets the wait function used between poll attempts (primarily
// for testing)
func WithSleep(sleepFunc func(ctx context.Context, d time.Duration) error) ServiceOption {
	return func(s *Service) {
		s.sleep = sleepFunc
	}
}

// NewService initializes the device auth flow with the provider client and
// the ordered client-credential fallback list.
func NewService(provider *Provider, clients []ClientCredentials, options ...ServiceOption) (*Service, error) {
	if provider == nil {
		return nil, errors.New("[NewService] provider is required")
	}
	if len(clients) == 0 {
		return nil, errors.New("[NewService] at least one client credential pair is required")
	}

	service := &Service{
		provider: provider,
		clients:  clients,
		pending:  make(map[string]*DeviceCodeSession),
		nowTime:  time.Now,
		sleep:    defaultSleep,
	}
	for _, opt := range options {
		opt(service)
	}
	return service, nil
}

// Start begins a device-code flow for the user: obtains a service token
// with the primary client, requests a device code, and stores the pending
// session keyed by discordID. Any prior pending flow for the user is
// silently replaced.
func (s *Service) Start(ctx context.Context, discordID string) (*DeviceCodeSession, error) {
	primary := s.clients[0]

	serviceToken, err := s.provider.ClientCredentialsToken(ctx, primary)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Start] client credentials")
	}

	deviceCode, err := s.provider.RequestDeviceAuthorization(ctx, serviceToken.AccessToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Start] device authorization")
	}

	verificationURI := deviceCode.VerificationURIComplete
	if verificationURI == "" {
		baseURI := deviceCode.VerificationURI
		if baseURI == "" {
			baseURI = "https://www.epicgames.com/activate"
		}
		verificationURI = fmt.Sprintf("%s?userCode=%s", baseURI, deviceCode.UserCode)
	}

	session := &DeviceCodeSession{
		DeviceCode:      deviceCode.DeviceCode,
		UserCode:        deviceCode.UserCode,
		VerificationURI: verificationURI,
		ExpiresIn:       time.Duration(deviceCode.ExpiresIn) * time.Second,
		Interval:        time.Duration(deviceCode.Interval) * time.Second,
		StartedAt:       s.nowTime(),
	}

	s.mu.Lock()
	s.pending[discordID] = session
	s.mu.Unlock()

	log.Info().Str("discord_id", discordID).Str("user_code", session.UserCode).Msg("started device code flow")
	return session, nil
}

// Poll loops until the user completes login elsewhere, the code expires or
// is denied, or the flow is cancelled. onStatus (optional) receives
// progress text with the remaining seconds while authorization is pending.
func (s *Service) Poll(ctx context.Context, discordID string, onStatus StatusFunc) (*Bundle, error) {
	session := s.get(discordID)
	if session == nil {
		return nil, apperrors.ErrNoAuthSession
	}
	primary := s.clients[0]

	for {
		if session.Cancelled() {
			metrics.AuthFlows.WithLabelValues("cancelled").Inc()
			return nil, apperrors.ErrAuthCancelled
		}
		elapsed := s.nowTime().Sub(session.StartedAt)
		if elapsed >= session.ExpiresIn {
			s.clear(discordID)
			metrics.AuthFlows.WithLabelValues("timeout").Inc()
			return nil, apperrors.ErrAuthTimedOut
		}

		token, err := s.provider.DeviceCodeToken(ctx, primary, session.DeviceCode)
		if err == nil {
			bundle, err := s.createDeviceAuth(ctx, token)
			s.clear(discordID)
			if err != nil {
				metrics.AuthFlows.WithLabelValues("error").Inc()
				return nil, errors.Wrap(err, "[Service.Poll] create device auth")
			}
			metrics.AuthFlows.WithLabelValues("ok").Inc()
			log.Info().Str("discord_id", discordID).Str("display_name", bundle.DisplayName).Msg("device code flow complete")
			return bundle, nil
		}

		switch {
		case apperrors.Is(err, apperrors.ErrAuthPending):
			if onStatus != nil {
				remaining := int((session.ExpiresIn - elapsed).Seconds())
				onStatus(fmt.Sprintf("Waiting for login... (%ds remaining)", remaining))
			}
		case apperrors.Is(err, apperrors.ErrAuthSlowDown):
			// Provider asked us to back off: double the wait, skip the
			// standard tick.
			if err := s.sleep(ctx, session.Interval*2); err != nil {
				return nil, err
			}
			continue
		case apperrors.Is(err, apperrors.ErrAuthExpired):
			s.clear(discordID)
			metrics.AuthFlows.WithLabelValues("expired").Inc()
			return nil, apperrors.ErrAuthExpired
		case apperrors.Is(err, apperrors.ErrAuthDenied):
			s.clear(discordID)
			metrics.AuthFlows.WithLabelValues("denied").Inc()
			return nil, apperrors.ErrAuthDenied
		default:
			// Transient; keep polling.
			log.Warn().Err(err).Str("discord_id", discordID).Msg("unexpected poll response")
		}

		if err := s.sleep(ctx, session.Interval); err != nil {
			return nil, err
		}
	}
}

// createDeviceAuth mints the durable credential. The token that completed
// the device-code grant is tried first; when the primary client lacks the
// deviceAuths permission the remaining clients in the fallback list are
// tried in order through the exchange-code grant.
func (s *Service) createDeviceAuth(ctx context.Context, token *TokenResponse) (*Bundle, error) {
	primary := s.clients[0]

	deviceAuth, err := s.provider.CreateDeviceAuth(ctx, token.AccessToken, token.AccountID)
	if err == nil {
		return &Bundle{
			DeviceID:    deviceAuth.DeviceID,
			AccountID:   deviceAuth.AccountID,
			Secret:      deviceAuth.Secret,
			DisplayName: token.DisplayName,
			ClientToken: primary.BasicToken(),
		}, nil
	}
	if !apperrors.Is(err, apperrors.ErrPermissionDenied) {
		log.Warn().Err(err).Str("client", primary.Label).Msg("device auth creation failed, trying fallback clients")
	}

	lastErr := err
	for _, fallback := range s.clients[1:] {
		// Exchange codes are single-use, so each fallback attempt needs a
		// fresh one.
		exchangeCode, err := s.provider.ExchangeCode(ctx, token.AccessToken)
		if err != nil {
			return nil, errors.Wrap(err, "[createDeviceAuth] exchange code")
		}

		fallbackToken, err := s.provider.ExchangeCodeToken(ctx, fallback, exchangeCode)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrClientDisabled) {
				return nil, err
			}
			lastErr = err
			continue
		}

		deviceAuth, err := s.provider.CreateDeviceAuth(ctx, fallbackToken.AccessToken, token.AccountID)
		if err != nil {
			lastErr = err
			continue
		}

		log.Info().Str("client", fallback.Label).Msg("created device auth via fallback client")
		return &Bundle{
			DeviceID:    deviceAuth.DeviceID,
			AccountID:   deviceAuth.AccountID,
			Secret:      deviceAuth.Secret,
			DisplayName: token.DisplayName,
			ClientToken: fallback.BasicToken(),
		}, nil
	}
	return nil, lastErr
}

// Cancel marks the user's pending flow cancelled and removes it. Returns
// whether a pending flow existed.
func (s *Service) Cancel(discordID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.pending[discordID]
	if !ok {
		return false
	}
	session.Cancel()
	delete(s.pending, discordID)
	return true
}

// Pending returns the user's in-flight session, if any.
func (s *Service) Pending(discordID string) *DeviceCodeSession {
	return s.get(discordID)
}

// Verify replays a device-credential grant to confirm the secret is still
// accepted. clientToken must be the Basic token persisted with the
// credential; when empty the last configured client is used.
func (s *Service) Verify(ctx context.Context, deviceID, accountID, secret, clientToken string) (string, error) {
	if clientToken == "" {
		clientToken = s.clients[len(s.clients)-1].BasicToken()
	}

	token, err := s.provider.DeviceAuthToken(ctx, clientToken, deviceID, accountID, secret)
	if err != nil {
		return "", err
	}
	displayName := token.DisplayName
	if displayName == "" {
		displayName = "Unknown"
	}
	return displayName, nil
}

func (s *Service) get(discordID string) *DeviceCodeSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[discordID]
}

func (s *Service) clear(discordID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, discordID)
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

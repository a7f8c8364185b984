package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jasonzli-DEV/fortniteLobbyBot/accounts"
	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
	"github.com/jasonzli-DEV/fortniteLobbyBot/users"
	"github.com/jasonzli-DEV/fortniteLobbyBot/vault"
)

type authStartRequest struct {
	DiscordID       string `json:"discord_id"`
	DiscordUsername string `json:"discord_username,omitempty"`
}

type authStartResponse struct {
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
}

func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request) {
	var req authStartRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.DiscordID == "" {
		badRequest(w, "discord_id is required")
		return
	}

	// Reject users already at the account cap before sending them through
	// the provider login.
	if done := s.rejectAtAccountCap(w, r, req.DiscordID); done {
		return
	}

	if err := s.deps.Users.Upsert(r.Context(), &users.User{
		DiscordID:       req.DiscordID,
		DiscordUsername: req.DiscordUsername,
	}); err != nil {
		log.Warn().Err(err).Str("discord_id", req.DiscordID).Msg("upsert user")
	}

	session, err := s.deps.Auth.Start(r.Context(), req.DiscordID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, authStartResponse{
		UserCode:        session.UserCode,
		VerificationURI: session.VerificationURI,
		ExpiresIn:       int(session.ExpiresIn / time.Second),
	})
}

type authPollRequest struct {
	DiscordID string `json:"discord_id"`
}

// handleAuthPoll blocks until the pending flow resolves, then links the
// authorized account: capacity check, credential encryption, persistence.
func (s *Server) handleAuthPoll(w http.ResponseWriter, r *http.Request) {
	var req authPollRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.DiscordID == "" {
		badRequest(w, "discord_id is required")
		return
	}
	ctx := r.Context()

	bundle, err := s.deps.Auth.Poll(ctx, req.DiscordID, func(status string) {
		log.Debug().Str("discord_id", req.DiscordID).Str("status", status).Msg("auth poll")
	})
	if err != nil {
		respondErr(w, err)
		return
	}

	if done := s.rejectAtAccountCap(w, r, req.DiscordID); done {
		return
	}

	blob, err := s.deps.Vault.Encrypt(vault.Credentials{
		DeviceID:    bundle.DeviceID,
		AccountID:   bundle.AccountID,
		Secret:      bundle.Secret,
		ClientToken: bundle.ClientToken,
	})
	if err != nil {
		respondErr(w, err)
		return
	}

	account := &accounts.Account{
		DiscordID:            req.DiscordID,
		EpicUsername:         bundle.DisplayName,
		EpicDisplayName:      bundle.DisplayName,
		EpicAccountID:        bundle.AccountID,
		EncryptedCredentials: blob,
	}
	if err := s.deps.Accounts.Create(ctx, account); err != nil {
		respondErr(w, err)
		return
	}

	log.Info().Str("discord_id", req.DiscordID).Str("epic_username", account.EpicUsername).Msg("account linked")
	respondJSON(w, http.StatusCreated, account)
}

// rejectAtAccountCap writes a 429 and returns true when the user already
// has the maximum number of linked accounts.
func (s *Server) rejectAtAccountCap(w http.ResponseWriter, r *http.Request, discordID string) bool {
	count, err := s.deps.Accounts.CountByDiscordID(r.Context(), discordID)
	if err != nil {
		respondErr(w, err)
		return true
	}
	if count >= s.deps.MaxAccountsPerUser {
		respondJSON(w, http.StatusTooManyRequests, map[string]string{
			"error": "account limit reached, remove one before adding another",
		})
		return true
	}
	return false
}

func (s *Server) handleAuthCancel(w http.ResponseWriter, r *http.Request) {
	var req authPollRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if !s.deps.Auth.Cancel(req.DiscordID) {
		respondErr(w, apperrors.ErrNoAuthSession)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "authentication cancelled"})
}

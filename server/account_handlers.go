package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/jasonzli-DEV/fortniteLobbyBot/accounts"
	"github.com/jasonzli-DEV/fortniteLobbyBot/sessions"
	"github.com/jasonzli-DEV/fortniteLobbyBot/vault"
)

type accountAddRequest struct {
	DiscordID   string `json:"discord_id"`
	DeviceID    string `json:"device_id"`
	AccountID   string `json:"account_id"`
	Secret      string `json:"secret"`
	ClientToken string `json:"client_token,omitempty"`
}

// handleAccountAdd links an account from existing device-auth credentials,
// verifying them against the identity provider before persisting.
func (s *Server) handleAccountAdd(w http.ResponseWriter, r *http.Request) {
	var req accountAddRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.DiscordID == "" || req.DeviceID == "" || req.AccountID == "" || req.Secret == "" {
		badRequest(w, "discord_id, device_id, account_id and secret are required")
		return
	}
	ctx := r.Context()

	if done := s.rejectAtAccountCap(w, r, req.DiscordID); done {
		return
	}

	displayName, err := s.deps.Auth.Verify(ctx, req.DeviceID, req.AccountID, req.Secret, req.ClientToken)
	if err != nil {
		respondErr(w, err)
		return
	}

	blob, err := s.deps.Vault.Encrypt(vault.Credentials{
		DeviceID:    req.DeviceID,
		AccountID:   req.AccountID,
		Secret:      req.Secret,
		ClientToken: req.ClientToken,
	})
	if err != nil {
		respondErr(w, err)
		return
	}

	account := &accounts.Account{
		DiscordID:            req.DiscordID,
		EpicUsername:         displayName,
		EpicDisplayName:      displayName,
		EpicAccountID:        req.AccountID,
		EncryptedCredentials: blob,
	}
	if err := s.deps.Accounts.Create(ctx, account); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, account)
}

func (s *Server) handleAccountList(w http.ResponseWriter, r *http.Request) {
	discordID := r.URL.Query().Get("discord_id")
	if discordID == "" {
		badRequest(w, "discord_id is required")
		return
	}
	list, err := s.deps.Accounts.ListByDiscordID(r.Context(), discordID)
	if err != nil {
		respondErr(w, err)
		return
	}
	if list == nil {
		list = []*accounts.Account{}
	}
	respondJSON(w, http.StatusOK, list)
}

// handleAccountRemove deletes a linked account. A live session on the
// account is stopped first so nothing keeps running on removed credentials.
func (s *Server) handleAccountRemove(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	ctx := r.Context()

	if _, err := s.deps.Accounts.GetByID(ctx, accountID); err != nil {
		respondErr(w, err)
		return
	}

	if inst := s.deps.Registry.Get(accountID); inst != nil {
		if _, err := s.deps.Registry.Stop(ctx, accountID, sessions.ReasonAccountRemoved); err != nil {
			log.Warn().Err(err).Str("account_id", accountID).Msg("stop session during account removal")
		}
	}

	if err := s.deps.Accounts.Delete(ctx, accountID); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "account removed"})
}

package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/jasonzli-DEV/fortniteLobbyBot/cosmetics"
	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
	"github.com/jasonzli-DEV/fortniteLobbyBot/registry"
	"github.com/jasonzli-DEV/fortniteLobbyBot/sessions"
)

type sessionStartRequest struct {
	AccountID string `json:"account_id"`
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req sessionStartRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.AccountID == "" {
		badRequest(w, "account_id is required")
		return
	}
	ctx := r.Context()

	account, err := s.deps.Accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		respondErr(w, err)
		return
	}

	msg, err := s.deps.Registry.Start(ctx, account.ID, account.DiscordID, account.EpicUsername, account.EncryptedCredentials)
	if err != nil {
		respondErr(w, err)
		return
	}

	if err := s.deps.Users.IncrementSessions(ctx, account.DiscordID); err != nil {
		log.Warn().Err(err).Str("discord_id", account.DiscordID).Msg("increment user sessions")
	}
	inst := s.deps.Registry.Get(account.ID)
	if inst != nil {
		if err := s.deps.Sessions.LogActivity(ctx, &sessions.ActivityEntry{
			SessionID: inst.SessionID,
			DiscordID: account.DiscordID,
			Action:    "start",
		}); err != nil {
			log.Warn().Err(err).Msg("log session start")
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	msg, err := s.deps.Registry.Stop(r.Context(), accountID, sessions.ReasonManual)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": msg})
}

type sessionExtendResponse struct {
	Message          string `json:"message"`
	RemainingMinutes int    `json:"remaining_minutes"`
	ExtensionsUsed   int    `json:"extensions_used"`
	ExtensionsLeft   int    `json:"extensions_left"`
}

func (s *Server) handleSessionExtend(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	ctx := r.Context()

	inst := s.deps.Registry.Get(accountID)
	if inst == nil {
		respondErr(w, apperrors.ErrNotRunning)
		return
	}

	session, err := s.deps.Sessions.Extend(ctx, inst.SessionID, s.deps.ExtensionMinutes, s.deps.MaxExtensions)
	if err != nil {
		respondErr(w, err)
		return
	}
	if err := s.deps.Sessions.LogActivity(ctx, &sessions.ActivityEntry{
		SessionID: session.ID,
		DiscordID: session.DiscordID,
		Action:    "extend",
	}); err != nil {
		log.Warn().Err(err).Msg("log session extend")
	}

	remaining := session.Remaining(time.Now().UTC())
	respondJSON(w, http.StatusOK, sessionExtendResponse{
		Message:          "session extended",
		RemainingMinutes: int(remaining / time.Minute),
		ExtensionsUsed:   session.ExtensionsUsed,
		ExtensionsLeft:   s.deps.MaxExtensions - session.ExtensionsUsed,
	})
}

type sessionStatusResponse struct {
	registry.Status
	RemainingMinutes int `json:"remaining_minutes,omitempty"`
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	status := s.deps.Registry.Status(accountID)
	resp := sessionStatusResponse{Status: status}
	if status.Running && status.SessionID != "" {
		if session, err := s.deps.Sessions.Get(r.Context(), status.SessionID); err == nil {
			if remaining := session.Remaining(time.Now().UTC()); remaining > 0 {
				resp.RemainingMinutes = int(remaining / time.Minute)
			}
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

type sessionSummary struct {
	AccountID    string         `json:"account_id"`
	SessionID    string         `json:"session_id"`
	EpicUsername string         `json:"epic_username"`
	State        registry.State `json:"state"`
	StartedAt    time.Time      `json:"started_at"`
	LastActivity time.Time      `json:"last_activity"`
}

func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	discordID := r.URL.Query().Get("discord_id")
	if discordID == "" {
		badRequest(w, "discord_id is required")
		return
	}

	list := []sessionSummary{}
	for _, inst := range s.deps.Registry.ForUser(discordID) {
		list = append(list, sessionSummary{
			AccountID:    inst.AccountID,
			SessionID:    inst.SessionID,
			EpicUsername: inst.EpicUsername,
			State:        inst.State(),
			StartedAt:    inst.StartedAt,
			LastActivity: inst.LastActivity(),
		})
	}
	respondJSON(w, http.StatusOK, list)
}

type loadoutRequest struct {
	Outfit    string `json:"outfit,omitempty"`
	Backpack  string `json:"backpack,omitempty"`
	Pickaxe   string `json:"pickaxe,omitempty"`
	Emote     string `json:"emote,omitempty"`
	Level     int    `json:"level,omitempty"`
	CrownWins int    `json:"crown_wins,omitempty"`
}

// handleSessionLoadout applies cosmetics to a live session. Fields are
// given by name and resolved against the catalog before applying.
func (s *Server) handleSessionLoadout(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	var req loadoutRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	ctx := r.Context()

	inst := s.deps.Registry.Get(accountID)
	if inst == nil {
		respondErr(w, apperrors.ErrNotRunning)
		return
	}

	loadout := sessions.Loadout{Level: req.Level, CrownWins: req.CrownWins}
	fields := []struct {
		query    string
		itemType string
		name     *string
		id       *string
	}{
		{req.Outfit, cosmetics.TypeOutfit, &loadout.Outfit, &loadout.OutfitID},
		{req.Backpack, cosmetics.TypeBackpack, &loadout.Backpack, &loadout.BackpackID},
		{req.Pickaxe, cosmetics.TypePickaxe, &loadout.Pickaxe, &loadout.PickaxeID},
		{req.Emote, cosmetics.TypeEmote, &loadout.Emote, &loadout.EmoteID},
	}
	for _, field := range fields {
		if field.query == "" {
			continue
		}
		item, err := s.deps.Cosmetics.Resolve(ctx, field.query, field.itemType)
		if err != nil {
			respondErr(w, apperrors.Wrapf(err, "resolve %q", field.query))
			return
		}
		*field.name = item.Name
		*field.id = item.ID
	}

	if err := inst.ApplyLoadout(ctx, loadout); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "loadout applied",
		"loadout": inst.Loadout(),
	})
}

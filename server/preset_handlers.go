package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jasonzli-DEV/fortniteLobbyBot/internal/errors"
	"github.com/jasonzli-DEV/fortniteLobbyBot/presets"
	"github.com/jasonzli-DEV/fortniteLobbyBot/registry"
)

type presetSaveRequest struct {
	DiscordID string `json:"discord_id"`
	Name      string `json:"name"`
	AccountID string `json:"account_id"`
}

// handlePresetSave snapshots the current loadout of a running session under
// a name. Saving to an existing name replaces it.
func (s *Server) handlePresetSave(w http.ResponseWriter, r *http.Request) {
	var req presetSaveRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.DiscordID == "" || req.AccountID == "" {
		badRequest(w, "discord_id and account_id are required")
		return
	}
	if req.Name == "" || len(req.Name) > presets.MaxNameLength {
		respondErr(w, apperrors.Wrapf(apperrors.ErrPresetName, "name must be 1-%d characters", presets.MaxNameLength))
		return
	}

	inst := s.ownedInstance(req.AccountID, req.DiscordID)
	if inst == nil {
		respondErr(w, apperrors.ErrNotRunning)
		return
	}

	preset := &presets.Preset{
		DiscordID: req.DiscordID,
		Name:      req.Name,
		Loadout:   inst.Loadout(),
	}
	if err := s.deps.Presets.Save(r.Context(), preset); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, preset)
}

func (s *Server) handlePresetList(w http.ResponseWriter, r *http.Request) {
	discordID := r.URL.Query().Get("discord_id")
	if discordID == "" {
		badRequest(w, "discord_id is required")
		return
	}

	list, err := s.deps.Presets.ListByDiscordID(r.Context(), discordID)
	if err != nil {
		respondErr(w, err)
		return
	}
	if list == nil {
		list = []*presets.Preset{}
	}
	respondJSON(w, http.StatusOK, list)
}

type presetApplyRequest struct {
	DiscordID string `json:"discord_id"`
	Name      string `json:"name"`
	AccountID string `json:"account_id"` // a linked account, or "all"
}

// handlePresetApply loads a saved preset onto one running session, or onto
// every running session the user has when account_id is "all".
func (s *Server) handlePresetApply(w http.ResponseWriter, r *http.Request) {
	var req presetApplyRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.DiscordID == "" || req.Name == "" || req.AccountID == "" {
		badRequest(w, "discord_id, name and account_id are required")
		return
	}
	ctx := r.Context()

	preset, err := s.deps.Presets.GetByName(ctx, req.DiscordID, req.Name)
	if err != nil {
		respondErr(w, err)
		return
	}

	var targets []*registry.Instance
	if req.AccountID == "all" {
		targets = s.deps.Registry.ForUser(req.DiscordID)
	} else if inst := s.ownedInstance(req.AccountID, req.DiscordID); inst != nil {
		targets = append(targets, inst)
	}
	if len(targets) == 0 {
		respondErr(w, apperrors.ErrNotRunning)
		return
	}

	applied := 0
	for _, inst := range targets {
		if err := inst.ApplyLoadout(ctx, preset.Loadout); err != nil {
			log.Warn().Err(err).Str("account_id", inst.AccountID).Str("preset", preset.Name).Msg("apply preset")
			continue
		}
		applied++
	}
	if applied == 0 {
		respondErr(w, apperrors.Wrapf(apperrors.ErrNotReady, "preset %q applied to no sessions", preset.Name))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "preset applied",
		"applied": applied,
	})
}

func (s *Server) handlePresetDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	discordID := r.URL.Query().Get("discord_id")
	if discordID == "" {
		badRequest(w, "discord_id is required")
		return
	}

	if err := s.deps.Presets.Delete(r.Context(), discordID, name); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "preset deleted"})
}

// ownedInstance returns the running instance for accountID only when it
// belongs to discordID.
func (s *Server) ownedInstance(accountID, discordID string) *registry.Instance {
	inst := s.deps.Registry.Get(accountID)
	if inst == nil || inst.DiscordID != discordID {
		return nil
	}
	return inst
}

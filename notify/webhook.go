package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jasonzli-DEV/fortniteLobbyBot/sessions"
)

var _ Notifier = (*WebhookNotifier)(nil)

// WebhookNotifier posts notices to a Discord-compatible webhook. The user is
// mentioned by Discord ID so the notice reaches them wherever the webhook's
// channel lives.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Content string `json:"content"`
}

func (n *WebhookNotifier) Warn(ctx context.Context, discordID, epicUsername string, remaining time.Duration) error {
	minutes := int(remaining.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	content := fmt.Sprintf("<@%s> Your bot `%s` will stop in %d minute(s) due to inactivity. Extend the session to keep it running.",
		discordID, epicUsername, minutes)
	return n.post(ctx, content)
}

func (n *WebhookNotifier) Stopped(ctx context.Context, discordID, epicUsername string, reason sessions.Reason) error {
	var content string
	switch reason {
	case sessions.ReasonTimeout:
		content = fmt.Sprintf("<@%s> Your bot `%s` was stopped due to inactivity.", discordID, epicUsername)
	default:
		content = fmt.Sprintf("<@%s> Your bot `%s` was stopped (%s).", discordID, epicUsername, reason)
	}
	return n.post(ctx, content)
}

func (n *WebhookNotifier) post(ctx context.Context, content string) error {
	body, err := json.Marshal(webhookPayload{Content: content})
	if err != nil {
		return errors.Wrap(err, "[WebhookNotifier.post] marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "[WebhookNotifier.post] build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "[WebhookNotifier.post] deliver")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errors.Errorf("[WebhookNotifier.post] webhook returned %d", resp.StatusCode)
	}
	return nil
}

// NopNotifier drops every notice. Used when no webhook is configured.
type NopNotifier struct{}

var _ Notifier = NopNotifier{}

func (NopNotifier) Warn(_ context.Context, discordID, epicUsername string, _ time.Duration) error {
	log.Debug().Str("discord_id", discordID).Str("epic_username", epicUsername).Msg("idle warning dropped, no notifier configured")
	return nil
}

func (NopNotifier) Stopped(_ context.Context, discordID, epicUsername string, _ sessions.Reason) error {
	log.Debug().Str("discord_id", discordID).Str("epic_username", epicUsername).Msg("stop notice dropped, no notifier configured")
	return nil
}

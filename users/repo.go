package users

import "context"

type Repo interface {
	Upsert(ctx context.Context, user *User) error
	GetByDiscordID(ctx context.Context, discordID string) (*User, error)
	TouchActivity(ctx context.Context, discordID, channelID string) error
	IncrementSessions(ctx context.Context, discordID string) error
}

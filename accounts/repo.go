package accounts

import "context"

type Repo interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEpicAccountID(ctx context.Context, epicAccountID string) (*Account, error)
	ListByDiscordID(ctx context.Context, discordID string) ([]*Account, error)
	CountByDiscordID(ctx context.Context, discordID string) (int, error)
	SetStatus(ctx context.Context, id string, status Status) error
	MarkUsed(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

package ports

import (
	"context"

	"github.com/hoodx/roulettebot/internal/domain"
)

// RoundFeed lists recently resolved rounds, most recent first. Used only for
// outcome reconciliation of pending bets.
type RoundFeed interface {
	Recent(ctx context.Context, limit int) ([]domain.FeedRound, error)
}

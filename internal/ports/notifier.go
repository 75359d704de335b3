package ports

import "github.com/hoodx/roulettebot/internal/domain"

// Reporter renders one user's session report for the operator. Implementations
// are presentation only and must not mutate anything.
type Reporter interface {
	Report(userID, status string, stats domain.Stats, history []domain.HistoryEntry) error
}

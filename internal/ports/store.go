package ports

import (
	"context"

	"github.com/hoodx/roulettebot/internal/domain"
)

// LedgerStore persists per-user session summaries and the detailed audit
// history. Writes are best-effort: the engine logs failures and moves on.
type LedgerStore interface {
	// SaveReport upserts the one-row summary for a user session.
	SaveReport(ctx context.Context, userID string, stats domain.Stats, status string) error

	// SaveEntry appends one audit entry, keyed by (userID, roundID).
	// Replaying the same key must not duplicate the row.
	SaveEntry(ctx context.Context, userID string, entry domain.HistoryEntry) error

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}

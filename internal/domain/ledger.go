package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryLimit bounds the in-memory detailed history ring.
const DefaultHistoryLimit = 1000

// Stats son los contadores de la operación de un usuario. Solo el
// reconciliador los escribe; la UI externa los lee vía snapshot.
type Stats struct {
	TotalBets int
	Wins      int
	Losses    int
	Profit    float64
	StartedAt time.Time
}

// HistoryEntry is one immutable line of the detailed audit history.
type HistoryEntry struct {
	ID        string
	Timestamp time.Time
	Level     int
	Selection Selection
	RoundID   string
	Number    int
	Color     Color
	IsWin     bool
	BetAmount float64
	Profit    float64
}

// Ledger acumula resultados de forma append-only. La historia detallada es
// un ring acotado para no crecer sin límite en sesiones largas.
type Ledger struct {
	mu      sync.RWMutex
	stats   Stats
	history []HistoryEntry
	limit   int
}

// NewLedger creates a ledger whose history keeps at most limit entries.
func NewLedger(limit int) *Ledger {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Ledger{
		stats: Stats{StartedAt: time.Now()},
		limit: limit,
	}
}

// Record applies one reconciled result to the counters and appends the
// detailed entry. Returns the entry so callers can persist it.
func (l *Ledger) Record(res Result) HistoryEntry {
	entry := HistoryEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Level:     res.Level,
		Selection: res.Selection,
		RoundID:   res.Outcome.RoundID,
		Number:    res.Outcome.Number,
		Color:     res.Outcome.Color,
		IsWin:     res.IsWin,
		BetAmount: res.Amount,
		Profit:    res.Profit,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.stats.TotalBets++
	if res.IsWin {
		l.stats.Wins++
	} else {
		l.stats.Losses++
	}
	l.stats.Profit += res.Profit

	l.history = append(l.history, entry)
	if len(l.history) > l.limit {
		l.history = l.history[len(l.history)-l.limit:]
	}
	return entry
}

// Snapshot returns the counters and a copy of the history, newest last.
func (l *Ledger) Snapshot() (Stats, []HistoryEntry) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]HistoryEntry, len(l.history))
	copy(out, l.history)
	return l.stats, out
}

// Reset zeroes the counters and clears the history. Called only on explicit
// operator action, never by the staking engine itself.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stats = Stats{StartedAt: time.Now()}
	l.history = nil
}

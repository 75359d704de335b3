package storage

// sqlite.go — persistencia del ledger por usuario.
//
// Estrategia:
//   - `session_reports`: UNA fila por usuario (UPSERT). Resumen vivo de la
//     sesión: contadores, profit y estado. Pesa nada, se actualiza en cada
//     resultado reconciliado.
//   - `history_entries`: una fila por apuesta resuelta, keyed por
//     (user_id, round_id). INSERT OR IGNORE hace el replay idempotente:
//     reconciliar dos veces la misma ronda no duplica filas.
//   - Prune automático al arrancar: historial > 30 días se descarta.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hoodx/roulettebot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Resumen vivo de la sesión de cada usuario
CREATE TABLE IF NOT EXISTS session_reports (
    user_id    TEXT PRIMARY KEY,
    status     TEXT     NOT NULL,
    total_bets INTEGER  NOT NULL DEFAULT 0,
    wins       INTEGER  NOT NULL DEFAULT 0,
    losses     INTEGER  NOT NULL DEFAULT 0,
    profit     REAL     NOT NULL DEFAULT 0,
    started_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

-- Historial detallado de apuestas resueltas, sin duplicados por ronda
CREATE TABLE IF NOT EXISTS history_entries (
    user_id    TEXT    NOT NULL,
    round_id   TEXT    NOT NULL,
    entry_id   TEXT    NOT NULL,
    ts         DATETIME NOT NULL,
    level      INTEGER NOT NULL,
    selection  TEXT    NOT NULL,
    number     INTEGER NOT NULL,
    color      TEXT    NOT NULL,
    is_win     INTEGER NOT NULL,
    bet_amount REAL    NOT NULL,
    profit     REAL    NOT NULL,
    PRIMARY KEY (user_id, round_id)
);

CREATE INDEX IF NOT EXISTS idx_history_user_ts ON history_entries(user_id, ts DESC);
`

const retentionHistory = 30 * 24 * time.Hour // historial: 30 días

// SQLiteStore implementa ports.LedgerStore usando SQLite (pure Go, sin CGo).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia el historial antiguo.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveReport hace upsert del resumen de sesión del usuario.
func (s *SQLiteStore) SaveReport(ctx context.Context, userID string, stats domain.Stats, status string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_reports
			(user_id, status, total_bets, wins, losses, profit, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			status     = excluded.status,
			total_bets = excluded.total_bets,
			wins       = excluded.wins,
			losses     = excluded.losses,
			profit     = excluded.profit,
			started_at = excluded.started_at,
			updated_at = excluded.updated_at`,
		userID, status, stats.TotalBets, stats.Wins, stats.Losses,
		stats.Profit, stats.StartedAt.UTC(), now,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveReport: upsert %q: %w", userID, err)
	}
	return nil
}

// SaveEntry persiste una entrada del historial. Replay de la misma ronda
// es un no-op gracias a la PK (user_id, round_id).
func (s *SQLiteStore) SaveEntry(ctx context.Context, userID string, entry domain.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO history_entries
			(user_id, round_id, entry_id, ts, level, selection, number, color, is_win, bet_amount, profit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, entry.RoundID, entry.ID, entry.Timestamp.UTC(), entry.Level,
		string(entry.Selection), entry.Number, string(entry.Color),
		boolToInt(entry.IsWin), entry.BetAmount, entry.Profit,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveEntry: insert %q/%q: %w", userID, entry.RoundID, err)
	}
	return nil
}

// Report lee el resumen guardado de un usuario, si existe.
func (s *SQLiteStore) Report(ctx context.Context, userID string) (domain.Stats, string, error) {
	var stats domain.Stats
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT status, total_bets, wins, losses, profit, started_at
		FROM session_reports WHERE user_id = ?`, userID,
	).Scan(&status, &stats.TotalBets, &stats.Wins, &stats.Losses, &stats.Profit, &stats.StartedAt)
	if err == sql.ErrNoRows {
		return domain.Stats{}, "", domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Stats{}, "", fmt.Errorf("storage.Report: query %q: %w", userID, err)
	}
	return stats, status, nil
}

// History lee las últimas entradas persistidas de un usuario, más antiguas
// primero, hasta limit.
func (s *SQLiteStore) History(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, round_id, ts, level, selection, number, color, is_win, bet_amount, profit
		FROM history_entries WHERE user_id = ?
		ORDER BY ts DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.History: query %q: %w", userID, err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var sel, color string
		var isWin int
		if err := rows.Scan(&e.ID, &e.RoundID, &e.Timestamp, &e.Level, &sel,
			&e.Number, &color, &isWin, &e.BetAmount, &e.Profit); err != nil {
			return nil, fmt.Errorf("storage.History: scan: %w", err)
		}
		e.Selection = domain.Selection(sel)
		e.Color = domain.Color(color)
		e.IsWin = isWin == 1
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.History: rows: %w", err)
	}

	// Invertir: la query trae recientes primero, el reporte las quiere en orden.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// pruneOld descarta historial más viejo que la retención. Best-effort.
func (s *SQLiteStore) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionHistory)
	s.db.ExecContext(ctx, `DELETE FROM history_entries WHERE ts < ?`, cutoff)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package notify

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/hoodx/roulettebot/internal/domain"
)

const maxHistoryRows = 20

// Console implementa ports.Reporter escribiendo el reporte a stdout.
type Console struct {
	out io.Writer
}

// NewConsole crea un reporter que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un reporter para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Report imprime el resumen de sesión y las últimas apuestas resueltas.
func (c *Console) Report(userID, status string, stats domain.Stats, history []domain.HistoryEntry) error {
	elapsed := time.Since(stats.StartedAt).Round(time.Second)
	fmt.Fprintf(c.out, "\n=== session report: %s ===\n", userID)
	fmt.Fprintf(c.out, "status: %s | bets: %d (W:%d L:%d) | profit: %+.2f | elapsed: %s\n",
		status, stats.TotalBets, stats.Wins, stats.Losses, stats.Profit, elapsed)

	if len(history) == 0 {
		fmt.Fprintln(c.out, "no resolved bets")
		return nil
	}

	// Solo las últimas filas: el historial completo vive en SQLite.
	start := 0
	if len(history) > maxHistoryRows {
		start = len(history) - maxHistoryRows
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Round", "Bet", "Lvl", "Amount", "Number", "Color", "Result", "Profit")
	for _, e := range history[start:] {
		result := "LOSS"
		if e.IsWin {
			result = "WIN"
		}
		table.Append(
			e.Timestamp.Format("15:04:05"),
			e.RoundID,
			string(e.Selection),
			fmt.Sprintf("%d", e.Level),
			fmt.Sprintf("%.2f", e.BetAmount),
			fmt.Sprintf("%d", e.Number),
			string(e.Color),
			result,
			fmt.Sprintf("%+.2f", e.Profit),
		)
	}
	table.Render()
	return nil
}

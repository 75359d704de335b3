package operator

import (
	"context"
	"log/slog"
	"time"

	"github.com/hoodx/roulettebot/internal/domain"
	"github.com/hoodx/roulettebot/internal/ports"
)

// reconciler resolves one pending bet by polling the external round feed
// until the round shows up. Results arrive on the out channel; the runner
// cancels the context when the bet is rejected or the session is torn down.
//
// Colors reported by the feed are advisory: the outcome color is always
// recomputed from the number, and a mismatch is logged as a data
// inconsistency without affecting settlement.
type reconciler struct {
	feed     ports.RoundFeed
	interval time.Duration
	limit    int
	log      *slog.Logger
}

func newReconciler(feed ports.RoundFeed, interval time.Duration, limit int, log *slog.Logger) *reconciler {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if limit <= 0 {
		limit = 3
	}
	return &reconciler{feed: feed, interval: interval, limit: limit, log: log}
}

// resolve polls until roundID appears in the feed, then delivers exactly one
// outcome on out. Feed errors are logged and retried on the next tick.
func (r *reconciler) resolve(ctx context.Context, roundID string, out chan<- domain.Outcome) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		rounds, err := r.feed.Recent(ctx, r.limit)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Warn("round feed poll failed", "round", roundID, "error", err)
		}

		for _, round := range rounds {
			if round.RoundID != roundID {
				continue
			}
			outcome := domain.NewOutcome(round.RoundID, round.Number)
			if round.Color != "" && round.Color != string(outcome.Color) {
				r.log.Warn("feed color mismatch, using derived color",
					"round", roundID, "number", round.Number,
					"feed_color", round.Color, "derived", outcome.Color)
			}
			select {
			case out <- outcome:
			case <-ctx.Done():
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

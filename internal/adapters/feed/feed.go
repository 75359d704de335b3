// Package feed implementa el cliente HTTP del feed público de rondas.
// El engine lo usa solo para reconciliar apuestas pendientes; los colores
// que reporta el feed son advisory y se recalculan del número.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/hoodx/roulettebot/internal/domain"
)

const (
	defaultTimeout = 8 * time.Second

	// El feed es público pero sensible al abuso; un request cada 500ms
	// cubre el loop de reconciliación de todos los usuarios.
	feedRatePerSec = 2
)

// Config configures the feed client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements ports.RoundFeed over the provider history endpoint.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates the feed client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(feedRatePerSec, feedRatePerSec),
	}
}

// feedEntry es el shape del JSON upstream.
type feedEntry struct {
	GameID string `json:"gameId"`
	Result string `json:"gameResult"`
	Color  string `json:"color"`
	Time   int64  `json:"timestamp"`
}

// Recent lists the latest resolved rounds, most recent first.
func (c *Client) Recent(ctx context.Context, limit int) ([]domain.FeedRound, error) {
	if limit <= 0 {
		limit = 3
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("feed.Recent: rate limiter: %w", err)
	}

	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("feed.Recent: parse base url: %w", err)
	}
	q := u.Query()
	q.Set("games_count", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("feed.Recent: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed.Recent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<14))
		return nil, fmt.Errorf("feed.Recent: upstream returned %d", resp.StatusCode)
	}

	var payload struct {
		History []feedEntry `json:"history"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("feed.Recent: decode response: %w", err)
	}

	rounds := make([]domain.FeedRound, 0, len(payload.History))
	for _, e := range payload.History {
		number, err := strconv.Atoi(e.Result)
		if err != nil {
			// Entradas malformadas se saltan, no abortan el batch.
			continue
		}
		rounds = append(rounds, domain.FeedRound{
			RoundID:   e.GameID,
			Number:    number,
			Color:     e.Color,
			Timestamp: time.UnixMilli(e.Time),
		})
	}
	return rounds, nil
}

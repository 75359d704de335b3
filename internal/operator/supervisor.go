package operator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hoodx/roulettebot/internal/domain"
	"github.com/hoodx/roulettebot/internal/ports"
	"github.com/hoodx/roulettebot/internal/session"
)

const disconnectWait = 10 * time.Second

// Supervisor mounts and unmounts per-user runners. It is the only component
// that creates or destroys sessions; everything below it works on one user.
type Supervisor struct {
	cfg      Config
	registry *session.Registry
	dialer   ports.GameDialer
	feed     ports.RoundFeed
	store    ports.LedgerStore
	reporter ports.Reporter
	log      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*handle
}

type handle struct {
	runner *Runner
	cancel context.CancelFunc
}

// NewSupervisor wires the supervisor. It registers itself for permanent
// renewal failures so a dead credential tears the session down even when
// the websocket is still quiet.
func NewSupervisor(cfg Config, registry *session.Registry, dialer ports.GameDialer,
	feed ports.RoundFeed, store ports.LedgerStore, reporter ports.Reporter, log *slog.Logger) *Supervisor {

	s := &Supervisor{
		cfg:      cfg,
		registry: registry,
		dialer:   dialer,
		feed:     feed,
		store:    store,
		reporter: reporter,
		log:      log.With("component", "supervisor"),
		sessions: make(map[string]*handle),
	}
	registry.OnPermanentFailure(func(userID string, err error) {
		if r, rerr := s.Runner(userID); rerr == nil {
			r.Fail(err)
		}
	})
	return s
}

// Connect acquires credentials for the user and mounts a runner. baseStake
// overrides the configured default when positive.
//
// The key is reserved before the slow acquire/dial work, so a concurrent
// Connect for the same user fails fast instead of mounting a second runner.
func (s *Supervisor) Connect(ctx context.Context, userID string, src domain.SourceCredential, baseStake float64) error {
	s.mu.Lock()
	if _, exists := s.sessions[userID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("operator.Connect: user %q already connected", userID)
	}
	s.sessions[userID] = &handle{} // reserva: runner nil = montándose
	s.mu.Unlock()

	unreserve := func() {
		s.mu.Lock()
		delete(s.sessions, userID)
		s.mu.Unlock()
	}

	if _, err := s.registry.Acquire(ctx, userID, src); err != nil {
		unreserve()
		return fmt.Errorf("operator.Connect: %w", err)
	}

	cfg := s.cfg
	if baseStake > 0 {
		cfg.Staking.BaseStake = baseStake
	}

	runner := NewRunner(userID, cfg, s.registry, s.dialer, s.feed, s.store, s.log)
	runCtx, cancel := context.WithCancel(context.Background())
	if err := runner.Run(runCtx); err != nil {
		cancel()
		s.registry.Drop(userID)
		unreserve()
		return fmt.Errorf("operator.Connect: %w", err)
	}

	s.mu.Lock()
	s.sessions[userID] = &handle{runner: runner, cancel: cancel}
	s.mu.Unlock()

	s.log.Info("session mounted", "user", userID)
	return nil
}

// Disconnect tears the session down immediately, prints the final report
// and forgets the user. Pending reconciliation is canceled.
func (s *Supervisor) Disconnect(userID string) error {
	s.mu.Lock()
	h, ok := s.sessions[userID]
	if ok && h.runner == nil {
		// Sólo una reserva de Connect en vuelo, todavía no hay runner.
		ok = false
	}
	if ok {
		delete(s.sessions, userID)
	}
	s.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	h.cancel()
	select {
	case <-h.runner.done:
	case <-time.After(disconnectWait):
		s.log.Warn("runner did not stop in time", "user", userID)
	}
	s.registry.Drop(userID)

	status, stats, history := h.runner.Snapshot()
	if err := s.reporter.Report(userID, status, stats, history); err != nil {
		s.log.Warn("report render failed", "user", userID, "error", err)
	}

	s.log.Info("session unmounted", "user", userID)
	return nil
}

// Runner returns the live runner for a user.
func (s *Supervisor) Runner(userID string) (*Runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.sessions[userID]
	if !ok || h.runner == nil {
		return nil, domain.ErrSessionNotFound
	}
	return h.runner, nil
}

// Shutdown disconnects every mounted session.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	users := make([]string, 0, len(s.sessions))
	for id, h := range s.sessions {
		if h.runner == nil {
			continue
		}
		users = append(users, id)
	}
	s.mu.Unlock()

	for _, id := range users {
		if err := s.Disconnect(id); err != nil {
			s.log.Warn("shutdown disconnect failed", "user", id, "error", err)
		}
	}
}

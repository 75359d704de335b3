package operator

// runner.go — the per-user engine loop.
//
// One goroutine owns everything mutable for a user: the staking machine,
// the live connection, the reconnect timer and the pending reconciler.
// Commands from the HTTP API and events from the websocket are serialized
// through the same select, so the staking machine needs no locking.

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hoodx/roulettebot/internal/domain"
	"github.com/hoodx/roulettebot/internal/ports"
	"github.com/hoodx/roulettebot/internal/session"
)

// Session status values, as reported to the operator.
const (
	StatusInactive  = "INACTIVE"
	StatusAnalyzing = "ANALYZING" // connected, not placing bets
	StatusOperating = "OPERATING" // connected and betting
	StatusError     = "ERROR"
)

const persistTimeout = 5 * time.Second

// Config parametrizes one runner.
type Config struct {
	Staking              domain.StakingConfig
	PollInterval         time.Duration
	FeedLimit            int
	ReconnectBackoff     time.Duration
	ReconnectCeiling     time.Duration
	ReconnectMaxAttempts int
	HistoryLimit         int
}

// statusHistoryLimit bounds the recent entries included in a status snapshot.
const statusHistoryLimit = 10

// StatusInfo is the operator-facing snapshot of one session.
type StatusInfo struct {
	UserID           string                `json:"user_id"`
	Status           string                `json:"status"`
	Level            int                   `json:"level"`
	MaxLevel         int                   `json:"max_level"`
	Selection        domain.Selection      `json:"selection"`
	BaseStake        float64               `json:"base_stake"`
	MissionCompleted bool                  `json:"mission_completed"`
	PendingRound     string                `json:"pending_round,omitempty"`
	Stats            domain.Stats          `json:"stats"`
	Recent           []domain.HistoryEntry `json:"recent,omitempty"`
}

// Runner drives one user's session.
type Runner struct {
	userID   string
	cfg      Config
	registry *session.Registry
	dialer   ports.GameDialer
	rec      *reconciler
	store    ports.LedgerStore
	log      *slog.Logger

	staking *domain.Staking
	ledger  *domain.Ledger

	cmds     chan func()
	outcomes chan domain.Outcome
	done     chan struct{}

	// Estado del loop — solo el goroutine del loop lo toca.
	conn           ports.GameConn
	events         <-chan domain.Event
	status         string
	started        bool
	endpoint       string
	bo             *backoff
	reconCancel    context.CancelFunc
	reconnectTimer <-chan time.Time
}

// NewRunner builds a runner for one user. Run must be called to start it.
func NewRunner(userID string, cfg Config, registry *session.Registry, dialer ports.GameDialer,
	feed ports.RoundFeed, store ports.LedgerStore, log *slog.Logger) *Runner {

	rlog := log.With("user", userID)
	return &Runner{
		userID:   userID,
		cfg:      cfg,
		registry: registry,
		dialer:   dialer,
		rec:      newReconciler(feed, cfg.PollInterval, cfg.FeedLimit, rlog),
		store:    store,
		log:      rlog,
		staking:  domain.NewStaking(cfg.Staking),
		ledger:   domain.NewLedger(cfg.HistoryLimit),
		cmds:     make(chan func()),
		outcomes: make(chan domain.Outcome, 1),
		done:     make(chan struct{}),
		status:   StatusInactive,
		bo:       newBackoff(cfg.ReconnectBackoff, cfg.ReconnectCeiling, cfg.ReconnectMaxAttempts),
	}
}

// Run connects and drives the session until ctx is canceled. The initial
// dial happens inline so callers learn immediately whether the session
// could start at all.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.connect(ctx, ""); err != nil {
		close(r.done)
		return err
	}
	r.status = StatusAnalyzing

	go r.loop(ctx)
	return nil
}

func (r *Runner) loop(ctx context.Context) {
	defer r.cleanup()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-r.cmds:
			fn()
		case ev, ok := <-r.events:
			if !ok {
				r.events = nil
				continue
			}
			r.handleEvent(ctx, ev)
		case o := <-r.outcomes:
			r.handleOutcome(o)
		case <-r.reconnectTimer:
			r.reconnectTimer = nil
			r.tryReconnect(ctx)
		}
	}
}

// --- comandos del operador ---------------------------------------------

// do runs fn inside the loop goroutine and waits for it.
func (r *Runner) do(fn func()) error {
	done := make(chan struct{})
	select {
	case r.cmds <- func() { fn(); close(done) }:
	case <-r.done:
		return domain.ErrSessionNotFound
	}
	select {
	case <-done:
		return nil
	case <-r.done:
		return domain.ErrSessionNotFound
	}
}

// StartBetting enables automatic betting. After a completed mission it also
// rearms the staking sequence from level zero.
func (r *Runner) StartBetting() error {
	return r.do(func() {
		if r.staking.MissionCompleted() {
			r.staking.Restart()
			r.log.Info("mission state cleared, sequence restarted")
		}
		r.started = true
		if r.status == StatusAnalyzing {
			r.status = StatusOperating
		}
		r.log.Info("betting started", "selection", r.staking.Selection(), "base_stake", r.staking.BaseStake())
	})
}

// StopBetting disables new bets. A pending bet keeps reconciling until its
// outcome lands; only teardown cancels it.
func (r *Runner) StopBetting() error {
	return r.do(func() {
		r.started = false
		if r.status == StatusOperating {
			r.status = StatusAnalyzing
		}
		r.log.Info("betting stopped")
	})
}

// Select arms the bet category for upcoming rounds.
func (r *Runner) Select(sel domain.Selection) error {
	if !sel.Valid() {
		return errors.New("operator.Select: unknown selection")
	}
	return r.do(func() {
		r.staking.Arm(sel)
		r.log.Info("selection armed", "selection", sel)
	})
}

// UpdateStake requests a new base stake, applied at the next level-zero
// moment per the staking rules.
func (r *Runner) UpdateStake(amount float64) error {
	if amount <= 0 {
		return errors.New("operator.UpdateStake: amount must be positive")
	}
	return r.do(func() {
		r.staking.DeferStake(amount)
		r.log.Info("base stake update requested", "amount", amount)
	})
}

// Fail forces the session into the error state. Used by the supervisor when
// a proactive renewal fails permanently.
func (r *Runner) Fail(cause error) error {
	return r.do(func() { r.setError(cause) })
}

// ResetReport zeroes the counters and clears the in-memory history.
func (r *Runner) ResetReport() error {
	return r.do(func() {
		r.ledger.Reset()
		r.persistReport()
		r.log.Info("report reset")
	})
}

// Status returns a snapshot of the session.
func (r *Runner) Status() (StatusInfo, error) {
	var info StatusInfo
	err := r.do(func() {
		stats, history := r.ledger.Snapshot()
		if len(history) > statusHistoryLimit {
			history = history[len(history)-statusHistoryLimit:]
		}
		pending, _ := r.staking.Pending()
		info = StatusInfo{
			UserID:           r.userID,
			Status:           r.status,
			Level:            r.staking.Level(),
			MaxLevel:         r.staking.MaxLevel(),
			Selection:        r.staking.Selection(),
			BaseStake:        r.staking.BaseStake(),
			MissionCompleted: r.staking.MissionCompleted(),
			PendingRound:     pending,
			Stats:            stats,
			Recent:           history,
		}
	})
	return info, err
}

// Snapshot returns the final counters and history for reporting.
func (r *Runner) Snapshot() (string, domain.Stats, []domain.HistoryEntry) {
	var status string
	var stats domain.Stats
	var history []domain.HistoryEntry
	err := r.do(func() {
		status = r.status
		stats, history = r.ledger.Snapshot()
	})
	if err != nil {
		// Loop ya terminado: leer directo es seguro, nadie más escribe.
		stats, history = r.ledger.Snapshot()
		status = StatusInactive
	}
	return status, stats, history
}

// --- eventos del protocolo ---------------------------------------------

func (r *Runner) handleEvent(ctx context.Context, ev domain.Event) {
	switch ev.Kind {
	case domain.EventRoundOpened:
		r.handleRoundOpened(ctx, ev.RoundID)

	case domain.EventRoundClosed:
		r.log.Debug("round closed", "round", ev.RoundID)

	case domain.EventBetAccepted:
		r.log.Debug("bet accepted upstream")

	case domain.EventBetRejected:
		if _, ok := r.staking.Pending(); ok {
			r.log.Warn("bet rejected", "code", ev.Code)
			r.staking.BetRejected()
			r.cancelReconciler()
		}

	case domain.EventSessionInvalid:
		r.log.Warn("session invalidated upstream", "code", ev.Code)
		r.renewAndRedial(ctx)

	case domain.EventRedirect:
		r.log.Info("server redirect", "endpoint", ev.Endpoint)
		r.endpoint = ev.Endpoint
		r.redial(ctx)

	case domain.EventDisconnected:
		r.log.Warn("connection lost", "close_code", ev.Code)
		r.conn = nil
		r.scheduleReconnect()
	}
}

func (r *Runner) handleRoundOpened(ctx context.Context, roundID string) {
	r.log.Debug("round opened", "round", roundID)
	if !r.started || r.conn == nil {
		return
	}

	bet, ok := r.staking.Decide(roundID)
	if !ok {
		return
	}

	if err := r.conn.SubmitBet(bet.Selection, bet.Amount, bet.RoundID); err != nil {
		r.log.Warn("bet submission failed", "round", roundID, "error", err)
		return
	}
	r.staking.BetPlaced(bet)
	r.log.Info("bet placed",
		"round", roundID, "selection", bet.Selection,
		"amount", bet.Amount, "level", r.staking.Level())

	// Reconciliar el resultado via feed, fuera del loop.
	recCtx, cancel := context.WithCancel(ctx)
	r.reconCancel = cancel
	go r.rec.resolve(recCtx, roundID, r.outcomes)
}

func (r *Runner) handleOutcome(o domain.Outcome) {
	res, ok := r.staking.Apply(o)
	if !ok {
		return
	}
	r.cancelReconciler()

	entry := r.ledger.Record(res)
	r.log.Info("bet resolved",
		"round", o.RoundID, "number", o.Number, "color", o.Color,
		"win", res.IsWin, "profit", res.Profit, "level", r.staking.Level())

	if r.staking.MissionCompleted() {
		stats, _ := r.ledger.Snapshot()
		r.log.Info("stake sequence completed, betting suppressed until restart",
			"profit", stats.Profit)
	}

	r.persistEntry(entry)
	r.persistReport()
}

// --- conexión -----------------------------------------------------------

func (r *Runner) connect(ctx context.Context, endpoint string) error {
	creds, err := r.registry.Get(r.userID)
	if err != nil {
		return err
	}
	conn, err := r.dialer.Dial(ctx, endpoint, creds)
	if err != nil {
		return err
	}
	r.conn = conn
	r.events = conn.Events()
	r.bo.reset()
	return nil
}

// redial swaps the connection on a server redirect. Credentials that are
// already past the renewal interval get renewed before dialing the new
// address; fresh ones are reused.
func (r *Runner) redial(ctx context.Context) {
	r.closeConn()
	if _, err := r.registry.RenewIfStale(ctx, r.userID); err != nil {
		if domain.IsPermanentAuth(err) || errors.Is(err, domain.ErrInsufficientBalance) {
			r.setError(err)
			return
		}
		r.log.Warn("renewal before redirect failed", "error", err)
	}
	if err := r.connect(ctx, r.endpoint); err != nil {
		r.log.Warn("redial failed", "error", err)
		r.scheduleReconnect()
	}
}

// renewAndRedial replaces credentials and reconnects. A permanent auth
// failure kills the session.
func (r *Runner) renewAndRedial(ctx context.Context) {
	r.closeConn()
	if _, err := r.registry.Renew(ctx, r.userID); err != nil {
		if domain.IsPermanentAuth(err) || errors.Is(err, domain.ErrInsufficientBalance) {
			r.setError(err)
			return
		}
		r.log.Warn("renewal failed, will retry via reconnect", "error", err)
		r.scheduleReconnect()
		return
	}
	if err := r.connect(ctx, r.endpoint); err != nil {
		r.log.Warn("reconnect after renewal failed", "error", err)
		r.scheduleReconnect()
	}
}

func (r *Runner) scheduleReconnect() {
	if r.reconnectTimer != nil {
		return
	}
	delay, ok := r.bo.next()
	if !ok {
		r.setError(errors.New("reconnect attempts exhausted"))
		return
	}
	r.log.Info("reconnect scheduled", "delay", delay, "attempt", r.bo.attempts)
	r.reconnectTimer = time.After(delay)
}

func (r *Runner) tryReconnect(ctx context.Context) {
	// Credenciales frescas en cada intento: la causa más común de la
	// desconexión es una sesión expirada.
	if _, err := r.registry.Renew(ctx, r.userID); err != nil {
		if domain.IsPermanentAuth(err) || errors.Is(err, domain.ErrInsufficientBalance) {
			r.setError(err)
			return
		}
		r.log.Warn("renewal during reconnect failed", "error", err)
	}
	if err := r.connect(ctx, r.endpoint); err != nil {
		r.log.Warn("reconnect failed", "error", err)
		r.scheduleReconnect()
		return
	}
	if r.started {
		r.status = StatusOperating
	} else {
		r.status = StatusAnalyzing
	}
	r.log.Info("reconnected")
}

func (r *Runner) setError(cause error) {
	r.log.Error("session failed", "error", cause)
	r.status = StatusError
	r.started = false
	r.cancelReconciler()
	r.closeConn()
	r.persistReport()
}

func (r *Runner) cancelReconciler() {
	if r.reconCancel != nil {
		r.reconCancel()
		r.reconCancel = nil
	}
}

func (r *Runner) closeConn() {
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
		r.events = nil
	}
}

func (r *Runner) cleanup() {
	r.cancelReconciler()
	r.closeConn()
	if r.status != StatusError {
		r.status = StatusInactive
	}
	r.persistReport()
	close(r.done)
}

// --- persistencia best-effort ------------------------------------------

func (r *Runner) persistEntry(entry domain.HistoryEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := r.store.SaveEntry(ctx, r.userID, entry); err != nil {
		r.log.Warn("history persist failed", "round", entry.RoundID, "error", err)
	}
}

func (r *Runner) persistReport() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	stats, _ := r.ledger.Snapshot()
	if err := r.store.SaveReport(ctx, r.userID, stats, r.status); err != nil {
		r.log.Warn("report persist failed", "error", err)
	}
}

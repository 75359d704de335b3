package domain

// staking.go — the bounded-martingale state machine.
//
// Pure decision logic, no I/O. The runner feeds it round-open events and
// reconciled outcomes; it answers with bet decisions and ledger results.
// Level advances by one on each win and resets to zero on any loss. Winning
// through the whole sequence completes the mission and suppresses further
// bets until an explicit restart.

// DefaultMultipliers is the stake sequence as factors of the base unit.
var DefaultMultipliers = []float64{1, 4, 10, 22}

// StakingConfig parametrizes one user's staking engine.
type StakingConfig struct {
	BaseStake   float64
	Multipliers []float64
}

// Bet is a decision to place a stake on the current round.
type Bet struct {
	Selection Selection
	Amount    float64
	RoundID   string
}

// Result is produced once per applied outcome, for the ledger.
type Result struct {
	Outcome   Outcome
	Selection Selection
	Level     int // level the bet was placed at
	Amount    float64
	IsWin     bool
	Profit    float64
}

// Staking holds one user's position in the stake sequence.
//
// Invariant: pendingRoundID is non-empty iff a bet has been submitted and
// its outcome not yet applied.
type Staking struct {
	cfg StakingConfig

	level            int
	selection        Selection
	pendingRoundID   string
	pendingSelection Selection
	pendingLevel     int
	pendingAmount    float64
	missionCompleted bool
	lastApplied      string

	deferredStake    float64
	hasDeferredStake bool
}

// NewStaking creates an engine at level 0 with no armed selection.
func NewStaking(cfg StakingConfig) *Staking {
	if len(cfg.Multipliers) == 0 {
		cfg.Multipliers = DefaultMultipliers
	}
	return &Staking{cfg: cfg, selection: SelectionAwait}
}

// MaxLevel is the length of the stake sequence.
func (s *Staking) MaxLevel() int { return len(s.cfg.Multipliers) }

// Level returns the current martingale level.
func (s *Staking) Level() int { return s.level }

// Selection returns the armed selection.
func (s *Staking) Selection() Selection { return s.selection }

// MissionCompleted reports whether the full sequence was won through.
func (s *Staking) MissionCompleted() bool { return s.missionCompleted }

// Pending returns the round id of the unresolved bet, if any.
func (s *Staking) Pending() (string, bool) {
	return s.pendingRoundID, s.pendingRoundID != ""
}

// StakeAt returns the amount for a given level.
func (s *Staking) StakeAt(level int) float64 {
	if level < 0 || level >= len(s.cfg.Multipliers) {
		return 0
	}
	return s.cfg.BaseStake * s.cfg.Multipliers[level]
}

// BaseStake returns the configured base unit.
func (s *Staking) BaseStake() float64 { return s.cfg.BaseStake }

// Arm sets the selection to bet automatically each round.
func (s *Staking) Arm(sel Selection) {
	s.selection = sel
}

// DeferStake requests a new base unit. Stakes only ever change at level 0,
// never mid-sequence: at level 0 with no pending bet it applies immediately,
// otherwise it is held until the next reset to level 0.
func (s *Staking) DeferStake(amount float64) {
	if s.level == 0 && s.pendingRoundID == "" {
		s.cfg.BaseStake = amount
		return
	}
	s.deferredStake = amount
	s.hasDeferredStake = true
}

// Decide maps a round-open event to a bet, or to nothing when the mission is
// completed, no selection is armed, or a bet is already unresolved.
func (s *Staking) Decide(roundID string) (Bet, bool) {
	if s.missionCompleted || s.selection == SelectionAwait || s.pendingRoundID != "" {
		return Bet{}, false
	}
	return Bet{
		Selection: s.selection,
		Amount:    s.StakeAt(s.level),
		RoundID:   roundID,
	}, true
}

// BetPlaced marks the bet as submitted and unresolved.
func (s *Staking) BetPlaced(b Bet) {
	s.pendingRoundID = b.RoundID
	s.pendingSelection = b.Selection
	s.pendingLevel = s.level
	s.pendingAmount = b.Amount
}

// BetRejected clears the pending bet without touching the level: a rejected
// bet was never placed.
func (s *Staking) BetRejected() {
	s.clearPending()
}

// Apply feeds the outcome of the pending round into the machine. It is
// idempotent: the same round id applied twice changes state only once.
// Returns false when the outcome does not resolve a pending bet.
func (s *Staking) Apply(o Outcome) (Result, bool) {
	if o.RoundID == s.lastApplied {
		return Result{}, false
	}
	if s.pendingRoundID == "" || o.RoundID != s.pendingRoundID {
		return Result{}, false
	}

	res := Result{
		Outcome:   o,
		Selection: s.pendingSelection,
		Level:     s.pendingLevel,
		Amount:    s.pendingAmount,
		IsWin:     s.pendingSelection.Matches(o.Number),
	}
	s.lastApplied = o.RoundID
	s.clearPending()

	if res.IsWin {
		res.Profit = res.Amount
		s.level++
		if s.level >= len(s.cfg.Multipliers) {
			s.missionCompleted = true
		}
	} else {
		res.Profit = -res.Amount
		s.level = 0
		if s.hasDeferredStake {
			s.cfg.BaseStake = s.deferredStake
			s.hasDeferredStake = false
		}
	}
	return res, true
}

// Restart clears the terminal mission state for an explicit new session.
// Level and deferred stake are reset; the armed selection survives.
func (s *Staking) Restart() {
	s.missionCompleted = false
	s.level = 0
	s.clearPending()
	if s.hasDeferredStake {
		s.cfg.BaseStake = s.deferredStake
		s.hasDeferredStake = false
	}
}

func (s *Staking) clearPending() {
	s.pendingRoundID = ""
	s.pendingSelection = SelectionAwait
	s.pendingLevel = 0
	s.pendingAmount = 0
}

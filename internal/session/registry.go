// Package session owns the per-user credential lifecycle: acquisition,
// proactive renewal on a timer, reactive renewal on demand, and the
// consecutive-failure policy that turns a flaky provider into a permanent
// auth error.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hoodx/roulettebot/internal/domain"
	"github.com/hoodx/roulettebot/internal/ports"
)

const renewTimeout = 30 * time.Second

// Config parametrizes the registry.
type Config struct {
	RenewalInterval    time.Duration
	MaxRenewalAttempts int
}

// record is one user's live credential state. Guarded by Registry.mu.
type record struct {
	src      domain.SourceCredential
	creds    domain.Credentials
	failures int // renovaciones consecutivas fallidas
	timer    *time.Timer
	dropped  bool
}

// Registry tracks credentials for every connected user.
//
// Concurrent renewal requests for the same user collapse into a single
// provider call via singleflight: the websocket runner and the proactive
// timer may both notice an expired session at once, and the provider must
// only be hit once.
type Registry struct {
	provider ports.CredentialProvider
	cfg      Config
	log      *slog.Logger

	// onPermanent is invoked (on a fresh goroutine) when a user's renewal
	// fails permanently during proactive renewal. May be nil.
	onPermanent func(userID string, err error)

	mu      sync.Mutex
	records map[string]*record
	sf      singleflight.Group
}

// NewRegistry creates the registry.
func NewRegistry(provider ports.CredentialProvider, cfg Config, log *slog.Logger) *Registry {
	if cfg.RenewalInterval <= 0 {
		cfg.RenewalInterval = 10 * time.Minute
	}
	if cfg.MaxRenewalAttempts <= 0 {
		cfg.MaxRenewalAttempts = 3
	}
	return &Registry{
		provider: provider,
		cfg:      cfg,
		log:      log.With("component", "session_registry"),
		records:  make(map[string]*record),
	}
}

// OnPermanentFailure registers the callback fired when proactive renewal
// exhausts its attempts. Must be called before the first Acquire.
func (r *Registry) OnPermanentFailure(fn func(userID string, err error)) {
	r.onPermanent = fn
}

// Acquire mints credentials for a new user session and schedules proactive
// renewal. Calling it again for a live user re-mints and replaces.
func (r *Registry) Acquire(ctx context.Context, userID string, src domain.SourceCredential) (domain.Credentials, error) {
	creds, err := r.mint(ctx, userID, src)
	if err != nil {
		return domain.Credentials{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.records[userID]; ok && old.timer != nil {
		old.timer.Stop()
	}
	rec := &record{src: src, creds: creds}
	rec.timer = time.AfterFunc(r.cfg.RenewalInterval, func() { r.proactiveRenew(userID) })
	r.records[userID] = rec

	r.log.Info("session acquired", "user", userID)
	return creds, nil
}

// Get returns the current credentials for a user.
func (r *Registry) Get(userID string) (domain.Credentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[userID]
	if !ok {
		return domain.Credentials{}, domain.ErrSessionNotFound
	}
	return rec.creds, nil
}

// Renew replaces the user's credentials with a fresh pair. Concurrent calls
// for the same user share one provider round-trip. After the configured
// number of consecutive failures the error becomes permanent; insufficient
// balance passes through untouched and does not count as a failure.
func (r *Registry) Renew(ctx context.Context, userID string) (domain.Credentials, error) {
	v, err, _ := r.sf.Do(userID, func() (any, error) {
		r.mu.Lock()
		rec, ok := r.records[userID]
		if !ok {
			r.mu.Unlock()
			return nil, domain.ErrSessionNotFound
		}
		src := rec.src
		r.mu.Unlock()

		// El ctx del closure es el del primer caller; desligado aquí para
		// que su cancelación a mitad de vuelo no tumbe al resto de esperas.
		mintCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), renewTimeout)
		defer cancel()

		creds, err := r.provider.Mint(mintCtx, src)
		if err != nil {
			return nil, r.recordFailure(userID, err)
		}

		r.mu.Lock()
		if rec, ok := r.records[userID]; ok {
			rec.creds = creds
			rec.failures = 0
		}
		r.mu.Unlock()

		r.log.Info("session renewed", "user", userID)
		return creds, nil
	})
	if err != nil {
		return domain.Credentials{}, err
	}
	return v.(domain.Credentials), nil
}

// RenewIfStale renews only when the current credentials are older than the
// renewal interval; fresh credentials are returned untouched.
func (r *Registry) RenewIfStale(ctx context.Context, userID string) (domain.Credentials, error) {
	r.mu.Lock()
	rec, ok := r.records[userID]
	if !ok {
		r.mu.Unlock()
		return domain.Credentials{}, domain.ErrSessionNotFound
	}
	creds := rec.creds
	r.mu.Unlock()

	if time.Since(creds.IssuedAt) < r.cfg.RenewalInterval {
		return creds, nil
	}
	return r.Renew(ctx, userID)
}

// Drop forgets a user's session and stops its renewal timer.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[userID]; ok {
		rec.dropped = true
		if rec.timer != nil {
			rec.timer.Stop()
		}
		delete(r.records, userID)
	}
}

// mint calls the provider through singleflight so a burst of Acquire calls
// for the same user costs one round-trip.
func (r *Registry) mint(ctx context.Context, userID string, src domain.SourceCredential) (domain.Credentials, error) {
	v, err, _ := r.sf.Do("acquire:"+userID, func() (any, error) {
		creds, err := r.provider.Mint(ctx, src)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientBalance) {
				return nil, err
			}
			return nil, &domain.AuthError{Reason: "credential acquisition failed", Err: err}
		}
		return creds, nil
	})
	if err != nil {
		return domain.Credentials{}, err
	}
	return v.(domain.Credentials), nil
}

// recordFailure applies the consecutive-failure policy after a renewal error.
func (r *Registry) recordFailure(userID string, cause error) error {
	// Saldo insuficiente no es un fallo de auth: se propaga tal cual.
	if errors.Is(cause, domain.ErrInsufficientBalance) {
		return cause
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[userID]
	if !ok {
		return &domain.AuthError{Reason: "renewal failed", Err: cause}
	}

	rec.failures++
	if rec.failures >= r.cfg.MaxRenewalAttempts {
		r.log.Error("renewal failed permanently",
			"user", userID, "attempts", rec.failures, "error", cause)
		return &domain.AuthError{
			Permanent: true,
			Reason:    fmt.Sprintf("renewal failed %d consecutive times", rec.failures),
			Err:       cause,
		}
	}

	r.log.Warn("renewal failed",
		"user", userID, "attempt", rec.failures, "max", r.cfg.MaxRenewalAttempts, "error", cause)
	return &domain.AuthError{Reason: "renewal failed", Err: cause}
}

// proactiveRenew runs on the per-user timer. Failures are retried on the
// next tick until the policy turns them permanent.
func (r *Registry) proactiveRenew(userID string) {
	r.mu.Lock()
	rec, ok := r.records[userID]
	if !ok || rec.dropped {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), renewTimeout)
	defer cancel()

	_, err := r.Renew(ctx, userID)
	if err != nil && domain.IsPermanentAuth(err) {
		r.Drop(userID)
		if r.onPermanent != nil {
			go r.onPermanent(userID, err)
		}
		return
	}

	// Reprogramar el siguiente tick, incluso tras un fallo transitorio.
	r.mu.Lock()
	if rec, ok := r.records[userID]; ok && !rec.dropped {
		rec.timer = time.AfterFunc(r.cfg.RenewalInterval, func() { r.proactiveRenew(userID) })
	}
	r.mu.Unlock()
}

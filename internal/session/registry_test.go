package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoodx/roulettebot/internal/domain"
)

// fakeProvider cuenta llamadas y devuelve lo programado.
type fakeProvider struct {
	mu       sync.Mutex
	calls    atomic.Int64
	err      error
	delay    time.Duration
	issuedAt time.Time // cero = time.Now()
}

func (f *fakeProvider) Mint(ctx context.Context, _ domain.SourceCredential) (domain.Credentials, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.Credentials{}, ctx.Err()
		}
	}
	f.mu.Lock()
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return domain.Credentials{}, err
	}
	issued := f.issuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	return domain.Credentials{
		SessionToken: "sess",
		AuthToken:    "auth",
		IssuedAt:     issued,
	}, nil
}

func (f *fakeProvider) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func newTestRegistry(p *fakeProvider) *Registry {
	return NewRegistry(p, Config{
		RenewalInterval:    time.Hour, // el timer proactivo no dispara en tests
		MaxRenewalAttempts: 3,
	}, slog.Default())
}

func TestRegistry_AcquireAndGet(t *testing.T) {
	p := &fakeProvider{}
	r := newTestRegistry(p)

	creds, err := r.Acquire(context.Background(), "user1", domain.SourceCredential{Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "sess", creds.SessionToken)

	got, err := r.Get("user1")
	require.NoError(t, err)
	assert.Equal(t, creds.SessionToken, got.SessionToken)

	_, err = r.Get("nobody")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRegistry_ConcurrentRenewCollapses(t *testing.T) {
	p := &fakeProvider{delay: 100 * time.Millisecond}
	r := newTestRegistry(p)

	_, err := r.Acquire(context.Background(), "user1", domain.SourceCredential{Token: "tok"})
	require.NoError(t, err)
	baseline := p.calls.Load()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Renew(context.Background(), "user1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Las 10 renovaciones concurrentes comparten una sola llamada al proveedor.
	assert.Equal(t, baseline+1, p.calls.Load())
}

func TestRegistry_RenewFailurePolicy(t *testing.T) {
	p := &fakeProvider{}
	r := newTestRegistry(p)

	_, err := r.Acquire(context.Background(), "user1", domain.SourceCredential{Token: "tok"})
	require.NoError(t, err)

	p.setErr(errors.New("upstream down"))

	// Dos fallos: transitorios
	for i := 0; i < 2; i++ {
		_, err = r.Renew(context.Background(), "user1")
		require.Error(t, err)
		assert.False(t, domain.IsPermanentAuth(err), "attempt %d must be transient", i+1)
	}

	// Tercer fallo consecutivo: permanente
	_, err = r.Renew(context.Background(), "user1")
	require.Error(t, err)
	assert.True(t, domain.IsPermanentAuth(err))
}

func TestRegistry_RenewSuccessResetsFailures(t *testing.T) {
	p := &fakeProvider{}
	r := newTestRegistry(p)

	_, err := r.Acquire(context.Background(), "user1", domain.SourceCredential{Token: "tok"})
	require.NoError(t, err)

	p.setErr(errors.New("down"))
	_, err = r.Renew(context.Background(), "user1")
	require.Error(t, err)
	_, err = r.Renew(context.Background(), "user1")
	require.Error(t, err)

	p.setErr(nil)
	_, err = r.Renew(context.Background(), "user1")
	require.NoError(t, err)

	// El contador arranca de cero: dos fallos más siguen siendo transitorios.
	p.setErr(errors.New("down again"))
	_, err = r.Renew(context.Background(), "user1")
	require.Error(t, err)
	assert.False(t, domain.IsPermanentAuth(err))
	_, err = r.Renew(context.Background(), "user1")
	require.Error(t, err)
	assert.False(t, domain.IsPermanentAuth(err))
}

func TestRegistry_RenewIfStaleSkipsFreshCredentials(t *testing.T) {
	p := &fakeProvider{}
	r := newTestRegistry(p)

	creds, err := r.Acquire(context.Background(), "user1", domain.SourceCredential{Token: "tok"})
	require.NoError(t, err)
	baseline := p.calls.Load()

	got, err := r.RenewIfStale(context.Background(), "user1")
	require.NoError(t, err)
	assert.Equal(t, creds.SessionToken, got.SessionToken)
	assert.Equal(t, baseline, p.calls.Load(), "fresh credentials must not hit the provider")
}

func TestRegistry_RenewIfStaleRenewsOldCredentials(t *testing.T) {
	p := &fakeProvider{issuedAt: time.Now().Add(-2 * time.Hour)}
	r := newTestRegistry(p)

	_, err := r.Acquire(context.Background(), "user1", domain.SourceCredential{Token: "tok"})
	require.NoError(t, err)
	baseline := p.calls.Load()

	_, err = r.RenewIfStale(context.Background(), "user1")
	require.NoError(t, err)
	assert.Equal(t, baseline+1, p.calls.Load(), "stale credentials force a renewal")

	_, err = r.RenewIfStale(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRegistry_RenewSurvivesCallerCancellation(t *testing.T) {
	p := &fakeProvider{delay: 50 * time.Millisecond}
	r := newTestRegistry(p)

	_, err := r.Acquire(context.Background(), "user1", domain.SourceCredential{Token: "tok"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// La renovación corre con un ctx propio: la cancelación del caller no
	// la aborta ni cuenta como fallo.
	creds, err := r.Renew(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, "sess", creds.SessionToken)
}

func TestRegistry_InsufficientBalancePassesThrough(t *testing.T) {
	p := &fakeProvider{}
	r := newTestRegistry(p)

	_, err := r.Acquire(context.Background(), "user1", domain.SourceCredential{Token: "tok"})
	require.NoError(t, err)

	p.setErr(domain.ErrInsufficientBalance)
	for i := 0; i < 5; i++ {
		_, err = r.Renew(context.Background(), "user1")
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
		assert.False(t, domain.IsPermanentAuth(err), "balance errors never escalate")
	}
}

func TestRegistry_Drop(t *testing.T) {
	p := &fakeProvider{}
	r := newTestRegistry(p)

	_, err := r.Acquire(context.Background(), "user1", domain.SourceCredential{Token: "tok"})
	require.NoError(t, err)

	r.Drop("user1")

	_, err = r.Get("user1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = r.Renew(context.Background(), "user1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRegistry_AcquireFailureWrapsAuthError(t *testing.T) {
	p := &fakeProvider{}
	p.setErr(errors.New("casino 500"))
	r := newTestRegistry(p)

	_, err := r.Acquire(context.Background(), "user1", domain.SourceCredential{Token: "tok"})
	require.Error(t, err)
	var ae *domain.AuthError
	assert.ErrorAs(t, err, &ae)
	assert.False(t, domain.IsPermanentAuth(err))
}

package pragmatic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoodx/roulettebot/internal/domain"
)

func newTestProvider(casino, launch string) *Provider {
	return NewProvider(AuthConfig{
		CasinoBase:    casino,
		GameSlug:      "mega-roulette---brazilian",
		Currency:      "BRL",
		LaunchBase:    launch,
		GameSymbol:    "287",
		EnvironmentID: "247",
		CasinoID:      "6376",
		SecureLogin:   "sfws_test",
		LobbyURL:      casino,
		CountryCode:   "BR",
	})
}

func TestProvider_Mint(t *testing.T) {
	launch := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/secure/GameLaunch", r.URL.Path)
		assert.Equal(t, "game-tok-123", r.URL.Query().Get("ppToken"))
		w.Header().Set("Location",
			"https://client.pragmaticplaylive.net/desktop/roulette/?JSESSIONID=abc123def&ppc9912345")
		w.WriteHeader(http.StatusFound)
	}))
	defer launch.Close()

	casino := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/games/mega-roulette---brazilian/play", r.URL.Path)
		assert.Equal(t, "Bearer casino-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"url":"https://games.pragmaticplaylive.net/playGame.do?key=token%3Dgame-tok-123%26symbol%3D287"}`))
	}))
	defer casino.Close()

	p := newTestProvider(casino.URL, launch.URL)
	creds, err := p.Mint(context.Background(), domain.SourceCredential{Token: "casino-token"})
	require.NoError(t, err)

	assert.Equal(t, "abc123def", creds.SessionToken)
	assert.Equal(t, "game-tok-123", creds.AuthToken)
	assert.Equal(t, "ppc9912345", creds.ExternalUserID)
	assert.False(t, creds.IssuedAt.IsZero())
}

func TestProvider_Mint_SessionFromCookie(t *testing.T) {
	launch := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Add("Set-Cookie", "JSESSIONID=cookie-sess; Path=/; HttpOnly")
		w.WriteHeader(http.StatusOK)
	}))
	defer launch.Close()

	casino := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"url":"https://x/playGame.do?key=token%3Dtok%26a%3Db"}`))
	}))
	defer casino.Close()

	p := newTestProvider(casino.URL, launch.URL)
	creds, err := p.Mint(context.Background(), domain.SourceCredential{Token: "t"})
	require.NoError(t, err)
	assert.Equal(t, "cookie-sess", creds.SessionToken)
	// Sin ppc en la respuesta, se genera un id sintético bien formado
	assert.Regexp(t, `^ppc[0-9]+$`, creds.ExternalUserID)
}

func TestProvider_Mint_InsufficientBalance(t *testing.T) {
	casino := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"insufficient_balance"}`))
	}))
	defer casino.Close()

	p := newTestProvider(casino.URL, "http://unused")
	_, err := p.Mint(context.Background(), domain.SourceCredential{Token: "t"})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestProvider_Mint_TokenMissing(t *testing.T) {
	casino := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"url":"https://x/playGame.do?key=no-token-here"}`))
	}))
	defer casino.Close()

	p := newTestProvider(casino.URL, "http://unused")
	_, err := p.Mint(context.Background(), domain.SourceCredential{Token: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "game token")
}

func TestProvider_Mint_SessionMissing(t *testing.T) {
	launch := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK) // sin Location ni cookie
	}))
	defer launch.Close()

	casino := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"url":"https://x/playGame.do?key=token%3Dtok%26a%3Db"}`))
	}))
	defer casino.Close()

	p := newTestProvider(casino.URL, launch.URL)
	_, err := p.Mint(context.Background(), domain.SourceCredential{Token: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session id not found")
}

package pragmatic

// auth.go — credential provider adapter.
//
// Minting a credential pair is a two-step dance against the casino platform
// and the game provider:
//   1. POST the casino game-launch endpoint with the operator's source
//      credential → the response carries a launch URL embedding a short-lived
//      game token.
//   2. GET the provider GameLaunch endpoint with that token, without
//      following redirects → the 302 Location (or Set-Cookie) carries the
//      session id for the websocket.
// Both tokens expire silently within minutes; callers renew on a timer.

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hoodx/roulettebot/internal/domain"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

var (
	gameTokenRe = regexp.MustCompile(`token%3D([^%&]+)`)
	sessionRe   = regexp.MustCompile(`JSESSIONID=([^&;]+)`)
	extUserRe   = regexp.MustCompile(`ppc[0-9]+`)
)

// AuthConfig configures the credential provider adapter.
type AuthConfig struct {
	CasinoBase    string // e.g. https://blaze.bet.br
	GameSlug      string
	Currency      string
	LaunchBase    string // e.g. https://games.pragmaticplaylive.net
	GameSymbol    string
	EnvironmentID string
	CasinoID      string
	SecureLogin   string
	LobbyURL      string
	CountryCode   string
	Timeout       time.Duration
}

// Provider implements ports.CredentialProvider against the live-game platform.
type Provider struct {
	cfg  AuthConfig
	http *httpClient
}

// NewProvider creates the credential provider adapter.
func NewProvider(cfg AuthConfig) *Provider {
	return &Provider{cfg: cfg, http: newHTTPClient(cfg.Timeout)}
}

// Mint obtains a brand-new credential pair. A timeout or transport failure
// surfaces as a plain error (the registry treats it as a renewal failure);
// an insufficient-balance response maps to domain.ErrInsufficientBalance
// and must not be retried.
func (p *Provider) Mint(ctx context.Context, src domain.SourceCredential) (domain.Credentials, error) {
	gameToken, err := p.fetchGameToken(ctx, src)
	if err != nil {
		return domain.Credentials{}, err
	}

	sessionID, extUserID, err := p.fetchSessionID(ctx, src, gameToken)
	if err != nil {
		return domain.Credentials{}, err
	}

	return domain.Credentials{
		SessionToken:   sessionID,
		AuthToken:      gameToken,
		ExternalUserID: extUserID,
		IssuedAt:       time.Now(),
	}, nil
}

// fetchGameToken performs step 1 against the casino platform.
func (p *Provider) fetchGameToken(ctx context.Context, src domain.SourceCredential) (string, error) {
	endpoint := fmt.Sprintf("%s/api/games/%s/play", p.cfg.CasinoBase, p.cfg.GameSlug)
	payload, err := json.Marshal(map[string]string{
		"selected_currency_type": p.cfg.Currency,
	})
	if err != nil {
		return "", fmt.Errorf("pragmatic.Mint: marshal play request: %w", err)
	}

	resp, err := p.http.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+src.Token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Origin", p.cfg.CasinoBase)
		req.Header.Set("Referer", p.cfg.CasinoBase+"/")
		req.Header.Set("User-Agent", userAgent(src))
		if src.Language != "" {
			req.Header.Set("Accept-Language", src.Language)
		}
		// Huella del navegador del operador, tal cual la manda el casino.
		for k, v := range src.Fingerprint {
			req.Header.Set(k, v)
		}
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("pragmatic.Mint: play request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("pragmatic.Mint: read play response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if isInsufficientBalance(body) {
			return "", domain.ErrInsufficientBalance
		}
		return "", fmt.Errorf("pragmatic.Mint: play returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var playResp struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &playResp); err != nil {
		return "", fmt.Errorf("pragmatic.Mint: parse play response: %w", err)
	}
	if !strings.Contains(playResp.URL, "playGame.do") {
		return "", fmt.Errorf("pragmatic.Mint: unexpected launch URL %q", truncate(playResp.URL, 120))
	}

	m := gameTokenRe.FindStringSubmatch(playResp.URL)
	if m == nil {
		return "", fmt.Errorf("pragmatic.Mint: game token not found in launch URL")
	}
	return m[1], nil
}

// fetchSessionID performs step 2 against the game provider.
func (p *Provider) fetchSessionID(ctx context.Context, src domain.SourceCredential, gameToken string) (session, extUser string, err error) {
	extra, err := json.Marshal(map[string]string{
		"lobbyUrl":           p.cfg.LobbyURL,
		"requestCountryCode": p.cfg.CountryCode,
		"language":           "pt",
		"currency":           p.cfg.Currency,
		"technology":         "H5",
		"platform":           "WEB",
	})
	if err != nil {
		return "", "", fmt.Errorf("pragmatic.Mint: marshal extra data: %w", err)
	}

	params := url.Values{}
	params.Set("environmentID", p.cfg.EnvironmentID)
	params.Set("gameid", p.cfg.GameSymbol)
	params.Set("secureLogin", p.cfg.SecureLogin)
	params.Set("requestCountryCode", p.cfg.CountryCode)
	params.Set("userEnvId", p.cfg.EnvironmentID)
	params.Set("ppCasinoId", p.cfg.CasinoID)
	params.Set("ppGame", p.cfg.GameSymbol)
	params.Set("ppToken", gameToken)
	params.Set("ppExtraData", base64.StdEncoding.EncodeToString(extra))
	params.Set("isGameUrlApiCalled", "true")
	params.Set("stylename", p.cfg.SecureLogin)

	endpoint := p.cfg.LaunchBase + "/api/secure/GameLaunch?" + params.Encode()

	resp, err := p.http.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent(src))
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		if src.Language != "" {
			req.Header.Set("Accept-Language", src.Language)
		}
		return req, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("pragmatic.Mint: game launch: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	location := resp.Header.Get("Location")
	if m := sessionRe.FindStringSubmatch(location); m != nil {
		return m[1], extUserID(location), nil
	}
	for _, cookie := range resp.Header.Values("Set-Cookie") {
		if m := sessionRe.FindStringSubmatch(cookie); m != nil {
			return m[1], extUserID(location), nil
		}
	}
	return "", "", fmt.Errorf("pragmatic.Mint: session id not found in game launch response (status %d)", resp.StatusCode)
}

// extUserID pulls the provider-assigned user id from the redirect URL.
// A synthetic id keeps bet frames well-formed when the provider omits it.
func extUserID(location string) string {
	if m := extUserRe.FindString(location); m != "" {
		return m
	}
	return fmt.Sprintf("ppc%d", time.Now().UnixMilli())
}

func userAgent(src domain.SourceCredential) string {
	if src.UserAgent != "" {
		return src.UserAgent
	}
	return defaultUserAgent
}

func isInsufficientBalance(body []byte) bool {
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "insufficient_balance") ||
		strings.Contains(lower, "insufficient balance") ||
		strings.Contains(lower, "saldo insuficiente")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

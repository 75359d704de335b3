package pragmatic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hoodx/roulettebot/internal/domain"
	"github.com/hoodx/roulettebot/internal/ports"
)

const (
	wsOrigin         = "https://client.pragmaticplaylive.net"
	wsHandshakeWait  = 15 * time.Second
	wsWriteWait      = 10 * time.Second
	missedPongsLimit = 2
)

// DialerConfig configures the websocket dialer.
type DialerConfig struct {
	WSBase    string // default game server, e.g. wss://gs9.pragmaticplaylive.net/game
	TableID   string
	Heartbeat time.Duration
	UserAgent string
}

// Dialer implements ports.GameDialer over the provider websocket protocol.
type Dialer struct {
	cfg DialerConfig
	log *slog.Logger
}

// NewDialer creates the websocket dialer.
func NewDialer(cfg DialerConfig, log *slog.Logger) *Dialer {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Dialer{cfg: cfg, log: log.With("adapter", "pragmatic_ws")}
}

// Dial opens a connection to the game server. An empty endpoint uses the
// configured default; a non-empty endpoint honors a server redirect.
func (d *Dialer) Dial(ctx context.Context, endpoint string, creds domain.Credentials) (ports.GameConn, error) {
	base := endpoint
	if base == "" {
		base = d.cfg.WSBase
	}

	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("pragmatic.Dial: parse endpoint %q: %w", base, err)
	}
	q := u.Query()
	q.Set("JSESSIONID", creds.SessionToken)
	q.Set("tableId", d.cfg.TableID)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Origin", wsOrigin)
	header.Set("User-Agent", d.cfg.UserAgent)
	header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.8")

	dialer := &websocket.Dialer{HandshakeTimeout: wsHandshakeWait}
	ws, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("pragmatic.Dial: handshake failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("pragmatic.Dial: %w", err)
	}

	c := &Conn{
		ws:        ws,
		creds:     creds,
		tableID:   d.cfg.TableID,
		heartbeat: d.cfg.Heartbeat,
		events:    make(chan domain.Event, 16),
		pongs:     make(chan struct{}, 1),
		done:      make(chan struct{}),
		log:       d.log,
	}
	go c.readLoop()
	go c.heartbeatLoop()

	d.log.Info("websocket connected", "endpoint", u.Host, "table", d.cfg.TableID)
	return c, nil
}

// Conn is one live websocket session against the game server.
type Conn struct {
	ws        *websocket.Conn
	creds     domain.Credentials
	tableID   string
	heartbeat time.Duration
	events    chan domain.Event
	pongs     chan struct{}
	log       *slog.Logger

	writeMu sync.Mutex // serializa todas las escrituras al socket

	mu         sync.Mutex
	closed     bool
	userClosed bool
	closeCode  int // código del close frame del servidor, 0 si no llegó
	done       chan struct{}
}

// Events returns the channel of protocol events. Closed after the final
// Disconnected event (suppressed on user-initiated Close).
func (c *Conn) Events() <-chan domain.Event {
	return c.events
}

// SubmitBet frames and sends a single bet command for the amount on the
// selection in the given round. One message, no retries.
func (c *Conn) SubmitBet(selection domain.Selection, amount float64, roundID string) error {
	code, ok := selection.BetCode()
	if !ok {
		return fmt.Errorf("pragmatic.SubmitBet: selection %q has no bet code", selection)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrNotConnected
	}
	c.mu.Unlock()

	// La idempotency key va duplicada en el frame: una para el comando,
	// otra para la apuesta individual.
	ck := uuid.NewString()
	frame := fmt.Sprintf(
		`<command channel="table-%s"><lpbet gm="roulette_desktop" gId="%s" uId="%s" ck="%s"><bet amt="%.2f" bc="%s" ck="%s"/></lpbet></command>`,
		c.tableID, roundID, c.creds.ExternalUserID, ck, amount, code, ck,
	)

	if err := c.write(frame); err != nil {
		return fmt.Errorf("pragmatic.SubmitBet: %w", err)
	}
	c.log.Debug("bet submitted", "selection", selection, "amount", amount, "round", roundID)
	return nil
}

// Close performs a user-initiated normal closure. The pending Disconnected
// event is suppressed so the caller does not treat it as a failure.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.userClosed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	deadline := time.Now().Add(wsWriteWait)
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	c.writeMu.Unlock()

	return c.ws.Close()
}

func (c *Conn) write(frame string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.ws.WriteMessage(websocket.TextMessage, []byte(frame))
}

// readLoop consumes inbound frames until the socket dies, translating them
// into domain events. It owns the events channel.
func (c *Conn) readLoop() {
	defer c.shutdown()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				c.mu.Lock()
				c.closeCode = ce.Code
				c.mu.Unlock()
			}
			return
		}

		pf := parseFrame(string(data))
		switch pf.kind {
		case framePong:
			select {
			case c.pongs <- struct{}{}:
			default:
			}
		case frameEvent:
			select {
			case c.events <- pf.event:
			case <-c.done:
				return
			}
		}
	}
}

// heartbeatLoop sends a ping frame every interval and force-closes the
// socket when two consecutive replies go missing.
func (c *Conn) heartbeatLoop() {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	missed := 0
	for {
		select {
		case <-c.done:
			return
		case <-c.pongs:
			missed = 0
		case <-ticker.C:
			missed++
			if missed > missedPongsLimit {
				c.log.Warn("heartbeat timeout, forcing close", "missed", missed)
				c.ws.Close()
				return
			}
			frame := fmt.Sprintf("<ping time='%d'></ping>", time.Now().UnixMilli())
			if err := c.write(frame); err != nil {
				c.log.Warn("heartbeat write failed", "error", err)
				c.ws.Close()
				return
			}
		}
	}
}

// shutdown finalizes the connection exactly once: emits Disconnected unless
// the user asked for the closure, then closes the events channel.
func (c *Conn) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	userClosed := c.userClosed
	closeCode := c.closeCode
	close(c.done)
	c.mu.Unlock()

	c.ws.Close()

	if !userClosed {
		ev := domain.Event{Kind: domain.EventDisconnected}
		if closeCode != 0 {
			ev.Code = strconv.Itoa(closeCode)
		}
		c.events <- ev
	}
	close(c.events)
}

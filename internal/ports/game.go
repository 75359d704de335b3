package ports

import (
	"context"

	"github.com/hoodx/roulettebot/internal/domain"
)

// GameConn is one live connection to the upstream game server.
//
// Events delivers the structured protocol events until the connection dies;
// the channel is closed after the final Disconnected event. SubmitBet sends
// exactly one framed message and never retries — retry policy belongs to
// the caller. Close performs a user-initiated normal closure, which must
// not be reported as an abnormal disconnect.
type GameConn interface {
	Events() <-chan domain.Event
	SubmitBet(selection domain.Selection, amount float64, roundID string) error
	Close() error
}

// GameDialer opens game connections. endpoint overrides the default game
// server, used when honoring a server redirect; empty means the default.
type GameDialer interface {
	Dial(ctx context.Context, endpoint string, creds domain.Credentials) (GameConn, error)
}

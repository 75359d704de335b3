package domain

import "time"

// EventKind enumerates the protocol events the game connection emits upward.
type EventKind int

const (
	EventRoundOpened EventKind = iota
	EventRoundClosed
	EventBetAccepted
	EventBetRejected
	EventSessionInvalid
	EventRedirect
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventRoundOpened:
		return "round_opened"
	case EventRoundClosed:
		return "round_closed"
	case EventBetAccepted:
		return "bet_accepted"
	case EventBetRejected:
		return "bet_rejected"
	case EventSessionInvalid:
		return "session_invalid"
	case EventRedirect:
		return "redirect"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is one structured protocol event. Fields are populated per kind:
// RoundID for round events, Code for rejections and disconnects, Endpoint
// for server redirects.
type Event struct {
	Kind     EventKind
	RoundID  string
	Code     string
	Endpoint string
}

// Credentials is the token pair issued by the credential provider. Replaced
// wholesale on renewal, never mutated field by field.
type Credentials struct {
	SessionToken   string
	AuthToken      string
	ExternalUserID string
	IssuedAt       time.Time
}

// SourceCredential is the operator-supplied casino credential plus the
// browser fingerprint forwarded to the provider.
type SourceCredential struct {
	Token       string
	UserAgent   string
	Language    string
	Fingerprint map[string]string
}

// FeedRound is one entry of the external round feed, most recent first.
// The color field is advisory only — outcomes recompute it from the number.
type FeedRound struct {
	RoundID   string
	Number    int
	Color     string
	Timestamp time.Time
}

package pragmatic

// messages.go — tagged-frame parser.
//
// The game server speaks an XML-ish dialect of single tags with attributes.
// Frames are not well-formed XML (unquoted entities, bare text bodies), so
// parsing is substring dispatch + attribute regexes, all confined to this
// file. Everything upward deals in domain.Event variants only.

import (
	"regexp"
	"strings"

	"github.com/hoodx/roulettebot/internal/domain"
)

var (
	attrGame       = regexp.MustCompile(`game="([^"]*)"`)
	attrStatus     = regexp.MustCompile(`status="([^"]*)"`)
	attrCode       = regexp.MustCompile(`code="([^"]*)"`)
	attrWsAddress  = regexp.MustCompile(`wsAddress="([^"]*)"`)
	attrGameServer = regexp.MustCompile(`gameServer="([^"]*)"`)
	attrSeq        = regexp.MustCompile(`seq="([^"]*)"`)
)

// sessionErrorCodes are bet-validation codes that mean the session died and
// credentials must be renewed, not that the bet itself was bad.
var sessionErrorCodes = map[string]bool{
	"1001": true, "1002": true, "1003": true, "1039": true, "1040": true,
}

// sessionInvalidBodies are plain-text markers of a dead session.
var sessionInvalidBodies = []string{
	"invalid session",
	"session expired",
	"session timeout",
	"unauthorized access",
	"authentication failed",
	"token expired",
}

// frameKind classifies a raw frame before it becomes a domain event.
type frameKind int

const (
	frameIgnored frameKind = iota
	framePong
	frameEvent
)

// parsedFrame is the outcome of parsing one inbound frame.
type parsedFrame struct {
	kind  frameKind
	event domain.Event
	seq   string
}

// parseFrame classifies one raw inbound frame. Heartbeat replies are
// reported separately so the connection can track liveness without
// bothering the event consumer.
func parseFrame(raw string) parsedFrame {
	msg := strings.TrimSpace(raw)

	switch {
	case strings.Contains(msg, "<pong"):
		return parsedFrame{kind: framePong, seq: attr(attrSeq, msg)}

	case strings.Contains(msg, "<session>offline</session>"):
		return event(domain.Event{Kind: domain.EventSessionInvalid})

	case strings.Contains(msg, "<switch") && strings.Contains(msg, "gameServer="):
		ws := attr(attrWsAddress, msg)
		if ws == "" {
			return parsedFrame{}
		}
		return event(domain.Event{
			Kind:     domain.EventRedirect,
			Endpoint: ws,
			Code:     attr(attrGameServer, msg),
		})

	case strings.Contains(msg, "<betsopen"):
		round := attr(attrGame, msg)
		if round == "" {
			return parsedFrame{}
		}
		return event(domain.Event{Kind: domain.EventRoundOpened, RoundID: round})

	case strings.Contains(msg, "<betsclosed"), strings.Contains(msg, "<betsclose"):
		return event(domain.Event{
			Kind:    domain.EventRoundClosed,
			RoundID: attr(attrGame, msg),
		})

	case strings.Contains(msg, "<betValidationError"):
		code := attr(attrCode, msg)
		if sessionErrorCodes[code] {
			return event(domain.Event{Kind: domain.EventSessionInvalid, Code: code})
		}
		return event(domain.Event{Kind: domain.EventBetRejected, Code: code})

	case strings.Contains(msg, "<command") && strings.Contains(msg, "status="):
		switch attr(attrStatus, msg) {
		case "success":
			return event(domain.Event{Kind: domain.EventBetAccepted})
		case "error", "fail", "denied", "refused", "rejected":
			return event(domain.Event{Kind: domain.EventBetRejected, Code: attr(attrStatus, msg)})
		}
		return parsedFrame{}
	}

	lower := strings.ToLower(msg)
	for _, marker := range sessionInvalidBodies {
		if strings.Contains(lower, marker) {
			return event(domain.Event{Kind: domain.EventSessionInvalid})
		}
	}

	return parsedFrame{}
}

func event(ev domain.Event) parsedFrame {
	return parsedFrame{kind: frameEvent, event: ev}
}

func attr(re *regexp.Regexp, msg string) string {
	if m := re.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	return ""
}

package pragmatic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoodx/roulettebot/internal/domain"
)

func TestParseFrame_RoundEvents(t *testing.T) {
	pf := parseFrame(`<betsopen game="8270123456" table="mrbras531mrbr532"></betsopen>`)
	require.Equal(t, frameEvent, pf.kind)
	assert.Equal(t, domain.EventRoundOpened, pf.event.Kind)
	assert.Equal(t, "8270123456", pf.event.RoundID)

	pf = parseFrame(`<betsclosed game="8270123456"></betsclosed>`)
	require.Equal(t, frameEvent, pf.kind)
	assert.Equal(t, domain.EventRoundClosed, pf.event.Kind)
	assert.Equal(t, "8270123456", pf.event.RoundID)
}

func TestParseFrame_BetsOpenWithoutRoundIsIgnored(t *testing.T) {
	pf := parseFrame(`<betsopen></betsopen>`)
	assert.Equal(t, frameIgnored, pf.kind)
}

func TestParseFrame_Pong(t *testing.T) {
	pf := parseFrame(`<pong seq="42"></pong>`)
	assert.Equal(t, framePong, pf.kind)
	assert.Equal(t, "42", pf.seq)
}

func TestParseFrame_CommandStatus(t *testing.T) {
	pf := parseFrame(`<command status="success" channel="table-mrbras531mrbr532"></command>`)
	require.Equal(t, frameEvent, pf.kind)
	assert.Equal(t, domain.EventBetAccepted, pf.event.Kind)

	pf = parseFrame(`<command status="error"></command>`)
	require.Equal(t, frameEvent, pf.kind)
	assert.Equal(t, domain.EventBetRejected, pf.event.Kind)
}

func TestParseFrame_BetValidationError(t *testing.T) {
	// 1007 = apuestas cerradas: rechazo normal, no invalida la sesión
	pf := parseFrame(`<betValidationError code="1007"></betValidationError>`)
	require.Equal(t, frameEvent, pf.kind)
	assert.Equal(t, domain.EventBetRejected, pf.event.Kind)
	assert.Equal(t, "1007", pf.event.Code)

	// Los códigos de sesión se reportan como sesión inválida
	for _, code := range []string{"1001", "1002", "1003", "1039", "1040"} {
		pf = parseFrame(`<betValidationError code="` + code + `"></betValidationError>`)
		require.Equal(t, frameEvent, pf.kind, "code %s", code)
		assert.Equal(t, domain.EventSessionInvalid, pf.event.Kind, "code %s", code)
		assert.Equal(t, code, pf.event.Code)
	}
}

func TestParseFrame_SessionOffline(t *testing.T) {
	pf := parseFrame(`<session>offline</session>`)
	require.Equal(t, frameEvent, pf.kind)
	assert.Equal(t, domain.EventSessionInvalid, pf.event.Kind)
}

func TestParseFrame_SessionInvalidBody(t *testing.T) {
	pf := parseFrame(`<error>Invalid session key</error>`)
	require.Equal(t, frameEvent, pf.kind)
	assert.Equal(t, domain.EventSessionInvalid, pf.event.Kind)
}

func TestParseFrame_Redirect(t *testing.T) {
	pf := parseFrame(`<switch gameServer="gs12" wsAddress="wss://gs12.pragmaticplaylive.net/game"></switch>`)
	require.Equal(t, frameEvent, pf.kind)
	assert.Equal(t, domain.EventRedirect, pf.event.Kind)
	assert.Equal(t, "wss://gs12.pragmaticplaylive.net/game", pf.event.Endpoint)
}

func TestParseFrame_UnknownFramesIgnored(t *testing.T) {
	for _, raw := range []string{
		`<seat open="true"></seat>`,
		`<balance amount="103.50"></balance>`,
		``,
		`garbage`,
	} {
		pf := parseFrame(raw)
		assert.Equal(t, frameIgnored, pf.kind, "frame %q", raw)
	}
}

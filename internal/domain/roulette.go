package domain

// HouseNumber is the outcome that satisfies no outside selection. The wheel
// pays nobody betting color/parity/range when it lands.
const HouseNumber = 0

// Color of a roulette pocket.
type Color string

const (
	ColorGreen Color = "green"
	ColorRed   Color = "red"
	ColorBlack Color = "black"
)

// redNumbers are the red pockets of a European wheel.
var redNumbers = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true,
	14: true, 16: true, 18: true, 19: true, 21: true, 23: true,
	25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

// ColorOf derives the color from the number. This is the only source of
// truth for colors — values reported by external feeds are never trusted.
func ColorOf(number int) Color {
	if number == HouseNumber {
		return ColorGreen
	}
	if redNumbers[number] {
		return ColorRed
	}
	return ColorBlack
}

// Selection is the bet category armed for automatic betting.
type Selection string

const (
	SelectionAwait Selection = "await"
	SelectionRed   Selection = "red"
	SelectionBlack Selection = "black"
	SelectionEven  Selection = "even"
	SelectionOdd   Selection = "odd"
	SelectionLow   Selection = "low"
	SelectionHigh  Selection = "high"
)

// betCodes maps each selection to the upstream wire code.
var betCodes = map[Selection]string{
	SelectionLow:   "46",
	SelectionEven:  "47",
	SelectionRed:   "48",
	SelectionBlack: "49",
	SelectionOdd:   "50",
	SelectionHigh:  "51",
}

// Valid reports whether s is a known selection, including await.
func (s Selection) Valid() bool {
	if s == SelectionAwait {
		return true
	}
	_, ok := betCodes[s]
	return ok
}

// BetCode returns the wire code for the selection. Await has no code.
func (s Selection) BetCode() (string, bool) {
	code, ok := betCodes[s]
	return code, ok
}

// Matches reports whether the outcome number satisfies the selection.
// The house number loses against every outside selection.
func (s Selection) Matches(number int) bool {
	if number == HouseNumber {
		return false
	}
	switch s {
	case SelectionRed:
		return ColorOf(number) == ColorRed
	case SelectionBlack:
		return ColorOf(number) == ColorBlack
	case SelectionEven:
		return number%2 == 0
	case SelectionOdd:
		return number%2 == 1
	case SelectionLow:
		return number >= 1 && number <= 18
	case SelectionHigh:
		return number >= 19 && number <= 36
	default:
		return false
	}
}

// Outcome is the resolved result of one round.
type Outcome struct {
	RoundID string
	Number  int
	Color   Color
}

// NewOutcome builds an Outcome with the color recomputed from the number.
// Any color supplied by an external source must go through here.
func NewOutcome(roundID string, number int) Outcome {
	return Outcome{
		RoundID: roundID,
		Number:  number,
		Color:   ColorOf(number),
	}
}

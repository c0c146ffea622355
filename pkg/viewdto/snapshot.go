package viewdto

import "time"

// Snapshot is the read-only view of the session produced once per tick for
// the render loop. It carries no references into mutable session state.
type Snapshot struct {
	SessionUUID string

	FEN       string
	Turn      string
	MovesSAN  []string
	MoveCount int
	RedoCount int
	Terminal  bool
	Outcome   string

	LastMove *MovePair
	Selected string // square name, empty when nothing is selected

	Suggestion *Suggestion

	Thinking           bool
	ThinkingElapsedSec float64
	ThinkingBudgetSec  float64 // budget the search was launched with
	ThinkingFraction   float64 // elapsed over launch budget, capped at 1
	LastThinkSec       float64

	MoveTimeSec float64
	WhiteBottom bool

	Notice *Notice
}

type MovePair struct {
	From string
	To   string
}

// Suggestion is the published engine suggestion overlay. Informational only;
// it is never auto-applied.
type Suggestion struct {
	Color   string
	MoveUCI string
	SAN     string
	Eval    string // signed centipawns or "# N", empty when unavailable
	From    string
	To      string
}

// Notice is the latest transient notification with its expiry.
type Notice struct {
	Text      string
	Error     bool
	ExpiresAt time.Time
}

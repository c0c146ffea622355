package game

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var (
	ErrIllegalMove   = errors.New("illegal move")
	ErrNothingToRedo = errors.New("nothing to redo")
	ErrStaleRedo     = errors.New("redo move no longer legal")
)

// State is the single source of truth for the position being looked at:
// the applied move history, the redo buffer and the current selection.
// It is not safe for concurrent use; one goroutine owns it.
type State struct {
	game *nchess.Game

	moves []string // coordinate notation, canonical lowercase
	sans  []string

	// redo stack: push on undo, pop on redo. Cleared whenever a move is
	// applied by any path other than redo.
	redo []string

	selected     nchess.Square
	hasSelection bool
}

func New() *State {
	return &State{game: nchess.NewGame()}
}

// Apply validates and applies one move given in coordinate notation,
// clearing the redo buffer. The position is unchanged on failure.
func (s *State) Apply(uciMove string) error {
	if err := s.push(uciMove); err != nil {
		return err
	}
	s.redo = s.redo[:0]
	return nil
}

func (s *State) push(uciMove string) error {
	uciMove = strings.ToLower(strings.TrimSpace(uciMove))
	if uciMove == "" {
		return ErrIllegalMove
	}
	pos := s.game.Position()
	notation := nchess.UCINotation{}
	mv, err := notation.Decode(pos, uciMove)
	if err != nil {
		return ErrIllegalMove
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	if err := s.game.Move(mv, nil); err != nil {
		return ErrIllegalMove
	}
	s.moves = append(s.moves, uciMove)
	s.sans = append(s.sans, san)
	return nil
}

// Click resolves the two-phase board interaction. The first click on an
// occupied square records the selection; the second attempts the move, with
// automatic queen promotion for a pawn reaching the last rank. After any
// attempt the clicked square becomes the selection if it holds a piece.
// Clicking the selected square again keeps the selection.
func (s *State) Click(sq nchess.Square) (applied bool, err error) {
	board := s.game.Position().Board()

	if !s.hasSelection {
		if board.Piece(sq) != nchess.NoPiece {
			s.selected = sq
			s.hasSelection = true
		}
		return false, nil
	}

	if sq == s.selected {
		return false, nil
	}

	uciMove := s.selected.String() + sq.String()
	if p := board.Piece(s.selected); p != nchess.NoPiece && p.Type() == nchess.Pawn {
		if (p.Color() == nchess.White && sq.Rank() == nchess.Rank8) ||
			(p.Color() == nchess.Black && sq.Rank() == nchess.Rank1) {
			uciMove += "q"
		}
	}

	err = s.Apply(uciMove)

	if s.game.Position().Board().Piece(sq) != nchess.NoPiece {
		s.selected = sq
		s.hasSelection = true
	} else {
		s.hasSelection = false
	}

	if err != nil {
		return false, err
	}
	return true, nil
}

// Undo pops up to n plies from the history onto the redo buffer, stopping
// early when the history is exhausted, and returns how many were popped.
// The target position is replayed before any pop is committed, so a replay
// failure leaves the state untouched.
func (s *State) Undo(n int) (int, error) {
	if n > len(s.moves) {
		n = len(s.moves)
	}
	if n <= 0 {
		return 0, nil
	}
	game, err := replay(s.moves[:len(s.moves)-n])
	if err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		last := s.moves[len(s.moves)-1]
		s.moves = s.moves[:len(s.moves)-1]
		s.sans = s.sans[:len(s.sans)-1]
		s.redo = append(s.redo, last)
	}
	s.game = game
	return n, nil
}

// Redo pops one ply from the redo buffer and re-validates it against the
// current position. A stale entry is dropped and reported; the rest of the
// buffer is kept.
func (s *State) Redo() error {
	if len(s.redo) == 0 {
		return ErrNothingToRedo
	}
	uciMove := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]

	if err := s.push(uciMove); err != nil {
		return ErrStaleRedo
	}
	return nil
}

// IsLegal reports whether a coordinate-notation move is legal in the
// current position, without applying it.
func (s *State) IsLegal(uciMove string) bool {
	uciMove = strings.ToLower(strings.TrimSpace(uciMove))
	pos := s.game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, uciMove)
	if err != nil {
		return false
	}
	for _, valid := range s.game.ValidMoves() {
		if valid.S1() == mv.S1() && valid.S2() == mv.S2() && valid.Promo() == mv.Promo() {
			return true
		}
	}
	return false
}

// SAN renders a legal coordinate-notation move as algebraic text for the
// current position, falling back to the raw string.
func (s *State) SAN(uciMove string) string {
	pos := s.game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, strings.ToLower(strings.TrimSpace(uciMove)))
	if err != nil {
		return uciMove
	}
	return nchess.AlgebraicNotation{}.Encode(pos, mv)
}

func replay(moves []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	notation := nchess.UCINotation{}
	for _, mv := range moves {
		decoded, err := notation.Decode(game.Position(), mv)
		if err != nil {
			return nil, fmt.Errorf("decode move %s: %w", mv, err)
		}
		if err := game.Move(decoded, nil); err != nil {
			return nil, fmt.Errorf("apply move %s: %w", mv, err)
		}
	}
	return game, nil
}

func (s *State) Selected() (nchess.Square, bool) {
	return s.selected, s.hasSelection
}

func (s *State) ClearSelection() {
	s.hasSelection = false
}

// LastMove returns the squares of the most recently applied move.
func (s *State) LastMove() (from, to nchess.Square, ok bool) {
	moves := s.game.Moves()
	if len(moves) == 0 {
		return 0, 0, false
	}
	mv := moves[len(moves)-1]
	return mv.S1(), mv.S2(), true
}

func (s *State) Turn() nchess.Color { return s.game.Position().Turn() }

func (s *State) FEN() string { return s.game.FEN() }

func (s *State) Position() *nchess.Position { return s.game.Position() }

func (s *State) MovesUCI() []string { return append([]string(nil), s.moves...) }

func (s *State) MovesSAN() []string { return append([]string(nil), s.sans...) }

func (s *State) MoveCount() int { return len(s.moves) }

func (s *State) RedoCount() int { return len(s.redo) }

// Terminal reports whether the position has no legal continuation.
func (s *State) Terminal() bool { return s.game.Outcome() != nchess.NoOutcome }

func (s *State) Outcome() nchess.Outcome { return s.game.Outcome() }

func (s *State) Method() nchess.Method { return s.game.Method() }

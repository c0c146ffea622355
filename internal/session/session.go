package session

import (
	"errors"
	"fmt"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kapu/grandmaster-guide-go/internal/archive"
	"github.com/kapu/grandmaster-guide-go/internal/assist"
	"github.com/kapu/grandmaster-guide-go/internal/chess/uci"
	"github.com/kapu/grandmaster-guide-go/internal/config"
	"github.com/kapu/grandmaster-guide-go/internal/game"
	"github.com/kapu/grandmaster-guide-go/internal/msgcat"
	"github.com/kapu/grandmaster-guide-go/pkg/viewdto"
)

var (
	ErrEngineBusy      = errors.New("engine busy")
	ErrNoSuggestion    = errors.New("no suggestion to apply")
	ErrStaleSuggestion = errors.New("suggestion no longer legal")
)

const (
	ttlView  = 1 * time.Second
	ttlShort = 1600 * time.Millisecond
	ttlInfo  = 2 * time.Second
	ttlError = 3 * time.Second
)

type Config struct {
	MoveTimeSec float64
	SaveDir     string
}

// Suggestion is the at-most-one live engine suggestion. Invalidated whenever
// the position changes by any means.
type Suggestion struct {
	Color   nchess.Color
	MoveUCI string
	SAN     string
	Eval    *uci.Score
}

type notice struct {
	text      string
	isErr     bool
	expiresAt time.Time
}

// Session owns the game state, the suggestion worker and the transient
// notification. It is driven by a single goroutine: user actions and Tick
// must come from the same loop that reads Snapshot.
type Session struct {
	id     string
	state  *game.State
	worker *assist.Worker
	msgs   *msgcat.Catalog
	logger *zap.Logger
	cfg    Config

	moveTime    float64
	whiteBottom bool
	suggestion  *Suggestion
	note        *notice

	now func() time.Time
}

func New(worker *assist.Worker, msgs *msgcat.Catalog, cfg Config, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	moveTime := config.ClampMoveTime(cfg.MoveTimeSec)
	return &Session{
		id:          uuid.NewString(),
		state:       game.New(),
		worker:      worker,
		msgs:        msgs,
		logger:      logger,
		cfg:         cfg,
		moveTime:    moveTime,
		whiteBottom: true,
		now:         time.Now,
	}
}

func (s *Session) ID() string { return s.id }

// ClickSquare feeds one board click into the two-phase move resolution.
// Manual moves are allowed while the engine is thinking; the eventual
// suggestion is re-validated before it can be applied.
func (s *Session) ClickSquare(sq nchess.Square) {
	applied, err := s.state.Click(sq)
	if err != nil {
		s.notify("notify.illegal_move", nil, ttlInfo, true)
		return
	}
	if applied {
		s.suggestion = nil
		s.logger.Debug("move applied",
			zap.String("session_uuid", s.id),
			zap.String("square", sq.String()),
			zap.Int("move_count", s.state.MoveCount()),
		)
	}
}

// Undo pops up to n plies onto the redo buffer. Rejected while the engine is
// thinking, since undoing changes the position under analysis.
func (s *Session) Undo(n int) error {
	if s.worker != nil && s.worker.Busy() {
		s.notify("notify.undo_blocked", nil, ttlError, true)
		return ErrEngineBusy
	}
	popped, err := s.state.Undo(n)
	if err != nil {
		s.logger.Error("undo rebuild failed", zap.Error(err), zap.String("session_uuid", s.id))
		return err
	}
	if popped == 0 {
		s.notify("notify.history_empty", nil, ttlInfo, false)
		return nil
	}
	s.suggestion = nil
	return nil
}

// Redo re-applies one ply from the redo buffer, re-validating it first.
func (s *Session) Redo() error {
	if s.worker != nil && s.worker.Busy() {
		s.notify("notify.redo_blocked", nil, ttlError, true)
		return ErrEngineBusy
	}
	err := s.state.Redo()
	switch {
	case errors.Is(err, game.ErrNothingToRedo):
		s.notify("notify.redo_empty", nil, ttlInfo, false)
		return err
	case errors.Is(err, game.ErrStaleRedo):
		s.notify("notify.redo_stale", nil, ttlError, true)
		return err
	case err != nil:
		return err
	}
	s.suggestion = nil
	return nil
}

// RequestSuggestion launches a background engine query for color under the
// current time budget. Preconditions surface as notifications.
func (s *Session) RequestSuggestion(color nchess.Color) error {
	if s.state.Turn() != color {
		s.notify("notify.wrong_turn", map[string]string{"Color": color.Name()}, ttlError, true)
		return assist.ErrWrongTurn
	}
	budget := time.Duration(s.moveTime * float64(time.Second))
	err := s.worker.Request(color, s.state.FEN(), budget)
	switch {
	case errors.Is(err, assist.ErrNoEngine):
		s.notify("notify.no_engine", nil, ttlError, true)
		return err
	case errors.Is(err, assist.ErrBusy):
		s.notify("notify.engine_busy", nil, ttlInfo, false)
		return err
	case err != nil:
		s.notify("notify.engine_error", nil, ttlError, true)
		return err
	}
	s.suggestion = nil
	s.logger.Info("suggestion requested",
		zap.String("session_uuid", s.id),
		zap.String("color", color.Name()),
		zap.Float64("budget_sec", s.moveTime),
	)
	return nil
}

// ApplySuggestion plays the published suggestion as a manual move, after
// checking it is still legal in the current position.
func (s *Session) ApplySuggestion() error {
	if s.suggestion == nil {
		s.notify("notify.suggestion_empty", nil, ttlInfo, true)
		return ErrNoSuggestion
	}
	if !s.state.IsLegal(s.suggestion.MoveUCI) {
		s.suggestion = nil
		s.notify("notify.suggestion_stale", nil, ttlError, true)
		return ErrStaleSuggestion
	}
	if err := s.state.Apply(s.suggestion.MoveUCI); err != nil {
		s.suggestion = nil
		s.notify("notify.suggestion_stale", nil, ttlError, true)
		return ErrStaleSuggestion
	}
	s.suggestion = nil
	s.state.ClearSelection()
	s.notify("notify.suggestion_applied", nil, ttlShort, false)
	return nil
}

// CancelThinking suppresses publication of the outstanding search.
func (s *Session) CancelThinking() {
	if err := s.worker.Cancel(); err != nil {
		s.notify("notify.cancel_idle", nil, ttlView, false)
		return
	}
	s.notify("notify.cancel_requested", nil, ttlShort, false)
}

func (s *Session) ToggleView() {
	s.whiteBottom = !s.whiteBottom
	if s.whiteBottom {
		s.notify("notify.view_white", nil, ttlView, false)
	} else {
		s.notify("notify.view_black", nil, ttlView, false)
	}
}

func (s *Session) WhiteBottom() bool { return s.whiteBottom }

// AdjustMoveTime shifts the time budget by delta seconds, clamped to the
// supported range. Allowed while the engine is thinking; it only affects
// later requests.
func (s *Session) AdjustMoveTime(delta float64) {
	s.moveTime = config.ClampMoveTime(s.moveTime + delta)
}

func (s *Session) SetMoveTime(sec float64) {
	s.moveTime = config.ClampMoveTime(sec)
}

func (s *Session) MoveTime() float64 { return s.moveTime }

// SavePGN writes the move history to a timestamp-named file in the
// configured save directory. Failure is reported, never fatal.
func (s *Session) SavePGN() (string, error) {
	rec := archive.Record{
		Event:    "Session",
		Site:     "GrandMaster Guide",
		Date:     s.now(),
		MovesSAN: s.state.MovesSAN(),
		Result:   s.state.Outcome().String(),
	}
	if s.state.Terminal() {
		rec.Termination = s.state.Method().String()
	}
	file, err := archive.Save(s.cfg.SaveDir, rec)
	if err != nil {
		s.logger.Warn("pgn save failed", zap.Error(err), zap.String("session_uuid", s.id))
		s.notify("notify.pgn_failed", nil, ttlError, true)
		return "", err
	}
	s.notify("notify.pgn_saved", map[string]string{"File": file}, ttlInfo, false)
	return file, nil
}

// Tick drains the worker's completion channel and expires the notification.
// Call once per render tick, before Snapshot.
func (s *Session) Tick(now time.Time) {
	if s.worker != nil {
		if res, ok := s.worker.Poll(); ok {
			s.handleResult(res)
		}
	}
	if s.note != nil && now.After(s.note.expiresAt) {
		s.note = nil
	}
}

func (s *Session) handleResult(res assist.Result) {
	if res.Cancelled {
		s.logger.Info("suggestion cancelled",
			zap.String("session_uuid", s.id),
			zap.Duration("elapsed", res.Elapsed),
		)
		return
	}
	if res.Err != nil {
		s.notify("notify.engine_error", nil, ttlError, true)
		return
	}
	s.suggestion = &Suggestion{
		Color:   res.Color,
		MoveUCI: res.MoveUCI,
		SAN:     res.SAN,
		Eval:    res.Eval,
	}
	s.notify("notify.suggestion_ready", map[string]string{"SAN": res.SAN}, ttlInfo, false)
	s.logger.Info("suggestion ready",
		zap.String("session_uuid", s.id),
		zap.String("move", res.MoveUCI),
		zap.Duration("elapsed", res.Elapsed),
	)
}

// Suggestion returns the live suggestion, or nil.
func (s *Session) Suggestion() *Suggestion { return s.suggestion }

// Snapshot assembles the read-only per-tick view for the render loop.
func (s *Session) Snapshot(now time.Time) *viewdto.Snapshot {
	snap := &viewdto.Snapshot{
		SessionUUID: s.id,
		FEN:         s.state.FEN(),
		Turn:        s.state.Turn().Name(),
		MovesSAN:    s.state.MovesSAN(),
		MoveCount:   s.state.MoveCount(),
		RedoCount:   s.state.RedoCount(),
		Terminal:    s.state.Terminal(),
		Outcome:     s.state.Outcome().String(),
		MoveTimeSec: s.moveTime,
		WhiteBottom: s.whiteBottom,
	}

	if from, to, ok := s.state.LastMove(); ok {
		snap.LastMove = &viewdto.MovePair{From: from.String(), To: to.String()}
	}
	if sq, ok := s.state.Selected(); ok {
		snap.Selected = sq.String()
	}
	if s.suggestion != nil {
		sug := &viewdto.Suggestion{
			Color:   s.suggestion.Color.Name(),
			MoveUCI: s.suggestion.MoveUCI,
			SAN:     s.suggestion.SAN,
		}
		if s.suggestion.Eval != nil {
			sug.Eval = s.suggestion.Eval.String()
		}
		if len(s.suggestion.MoveUCI) >= 4 {
			sug.From = s.suggestion.MoveUCI[:2]
			sug.To = s.suggestion.MoveUCI[2:4]
		}
		snap.Suggestion = sug
	}

	if s.worker != nil {
		st := s.worker.Status(now)
		snap.Thinking = st.InProgress
		snap.LastThinkSec = st.LastElapsed.Seconds()
		if st.InProgress {
			snap.ThinkingElapsedSec = st.Elapsed.Seconds()
			// Progress runs against the budget the search was launched
			// with; slider changes only affect later requests.
			snap.ThinkingBudgetSec = st.Budget.Seconds()
			if snap.ThinkingBudgetSec > 0 {
				frac := snap.ThinkingElapsedSec / snap.ThinkingBudgetSec
				if frac > 1 {
					frac = 1
				}
				snap.ThinkingFraction = frac
			}
		}
	}

	if s.note != nil {
		snap.Notice = &viewdto.Notice{
			Text:      s.note.text,
			Error:     s.note.isErr,
			ExpiresAt: s.note.expiresAt,
		}
	}
	return snap
}

func (s *Session) notify(key string, data map[string]string, ttl time.Duration, isErr bool) {
	var payload any
	if data != nil {
		payload = data
	}
	text := s.msgs.MustRender(key, payload)
	s.note = &notice{text: text, isErr: isErr, expiresAt: s.now().Add(ttl)}
}

// State exposes the underlying game state for front ends that need board
// contents. Read-only use from the owning goroutine.
func (s *Session) State() *game.State { return s.state }

func (s *Session) String() string {
	return fmt.Sprintf("session %s (%d plies)", s.id, s.state.MoveCount())
}

package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/kapu/grandmaster-guide-go/internal/chess/uci"
)

var (
	ErrNoEngine    = errors.New("no engine available")
	ErrBusy        = errors.New("engine already thinking")
	ErrWrongTurn   = errors.New("not that color's turn")
	ErrNotThinking = errors.New("no active thinking job")
)

// Analyzer is the engine surface the worker consumes. Both calls are
// best-effort; failures degrade to "no suggestion" for that request.
type Analyzer interface {
	BestMove(ctx context.Context, fen string, budget time.Duration) (string, error)
	Evaluate(ctx context.Context, fen string, depth int) (uci.Score, error)
}

// Stopper is implemented by engines that can end a search early. When
// available, cancellation becomes bounded instead of advisory.
type Stopper interface {
	Stop() error
}

// Result is the immutable completion record published by the background
// search. Exactly one Result is delivered per accepted request, including
// cancelled and failed ones.
type Result struct {
	Color     nchess.Color
	MoveUCI   string
	SAN       string
	Eval      *uci.Score // nil when the evaluation query failed
	Elapsed   time.Duration
	Err       error
	Cancelled bool
}

// Status is what the render loop reads to draw thinking progress. Budget is
// the time the outstanding request was launched with, so later slider changes
// do not skew the progress fraction.
type Status struct {
	InProgress  bool
	StartedAt   time.Time
	Elapsed     time.Duration
	Budget      time.Duration
	LastElapsed time.Duration
}

// Worker runs at most one background engine query at a time. All fields are
// owned by the dispatching goroutine; the background goroutine communicates
// only through the one-shot results channel and the per-request cancel flag.
type Worker struct {
	engine    Analyzer
	logger    *zap.Logger
	evalDepth int

	results     chan Result
	busy        bool
	startedAt   time.Time
	budget      time.Duration
	lastElapsed time.Duration
	cancelFlag  *atomic.Bool
}

func NewWorker(engine Analyzer, evalDepth int, logger *zap.Logger) *Worker {
	if evalDepth <= 0 {
		evalDepth = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		engine:    engine,
		logger:    logger,
		evalDepth: evalDepth,
		results:   make(chan Result, 1),
	}
}

// Available reports whether an engine session is attached.
func (w *Worker) Available() bool { return w.engine != nil }

// Busy reports whether a request is outstanding. A second request while one
// is outstanding is rejected, not queued.
func (w *Worker) Busy() bool { return w.busy }

// Request launches exactly one background search for the given color on a
// copy of the position with the turn forced to that color, and returns
// immediately. The busy flag and start timestamp are set synchronously
// before the goroutine starts, so a "thinking" state is never observable
// without a valid start time.
func (w *Worker) Request(color nchess.Color, fen string, budget time.Duration) error {
	if w.engine == nil {
		return ErrNoEngine
	}
	if w.busy {
		return ErrBusy
	}

	forced, err := ForceTurn(fen, color)
	if err != nil {
		return err
	}

	w.busy = true
	w.startedAt = time.Now()
	w.budget = budget
	flag := new(atomic.Bool)
	w.cancelFlag = flag

	go w.search(color, forced, budget, flag)
	return nil
}

func (w *Worker) search(color nchess.Color, fen string, budget time.Duration, cancelled *atomic.Bool) {
	start := time.Now()
	best, err := w.engine.BestMove(context.Background(), fen, budget)
	elapsed := time.Since(start)

	if cancelled.Load() {
		w.results <- Result{Color: color, Elapsed: elapsed, Cancelled: true}
		return
	}
	if err != nil {
		w.logger.Warn("engine query failed", zap.Error(err), zap.String("fen", fen))
		w.results <- Result{Color: color, Elapsed: elapsed, Err: err}
		return
	}

	res := Result{
		Color:   color,
		MoveUCI: strings.ToLower(strings.TrimSpace(best)),
		SAN:     sanForFEN(fen, best),
		Elapsed: elapsed,
	}

	// Second low-depth query for the score; omitted on failure, never fatal.
	if score, evalErr := w.engine.Evaluate(context.Background(), fen, w.evalDepth); evalErr == nil {
		sc := score
		res.Eval = &sc
	} else {
		w.logger.Debug("evaluation query failed", zap.Error(evalErr))
	}

	// A cancel can also land while the evaluation query is in flight.
	if cancelled.Load() {
		w.results <- Result{Color: color, Elapsed: elapsed, Cancelled: true}
		return
	}

	w.results <- res
}

// Poll consumes the completion record if one is ready and clears the busy
// state. The caller decides whether to publish or discard the result.
func (w *Worker) Poll() (Result, bool) {
	select {
	case res := <-w.results:
		w.busy = false
		w.lastElapsed = res.Elapsed
		w.cancelFlag = nil
		return res, true
	default:
		return Result{}, false
	}
}

// Cancel requests that the outstanding search's result be discarded. The
// engine is asked to stop when it supports that; otherwise the in-flight
// query runs to its time budget and only publication is suppressed.
func (w *Worker) Cancel() error {
	if !w.busy {
		return ErrNotThinking
	}
	w.cancelFlag.Store(true)
	if stopper, ok := w.engine.(Stopper); ok {
		if err := stopper.Stop(); err != nil {
			w.logger.Warn("engine stop failed", zap.Error(err))
		}
	}
	return nil
}

func (w *Worker) Status(now time.Time) Status {
	st := Status{
		InProgress:  w.busy,
		StartedAt:   w.startedAt,
		LastElapsed: w.lastElapsed,
	}
	if w.busy {
		st.Elapsed = now.Sub(w.startedAt)
		st.Budget = w.budget
	}
	return st
}

// ForceTurn rewrites a FEN so that color is to move. The en passant target
// is dropped when the turn flips, since it is only meaningful for the side
// that was originally to move.
func ForceTurn(fen string, color nchess.Color) (string, error) {
	fields := strings.Fields(strings.TrimSpace(fen))
	if len(fields) < 4 {
		return "", fmt.Errorf("malformed fen: %q", fen)
	}
	want := "w"
	if color == nchess.Black {
		want = "b"
	}
	if fields[1] == want {
		return strings.Join(fields, " "), nil
	}
	fields[1] = want
	fields[3] = "-"
	return strings.Join(fields, " "), nil
}

// sanForFEN renders a coordinate move as algebraic text for the given
// position, falling back to the raw coordinate string.
func sanForFEN(fen, uciMove string) string {
	uciMove = strings.ToLower(strings.TrimSpace(uciMove))
	fenOpt, err := nchess.FEN(fen)
	if err != nil {
		return uciMove
	}
	game := nchess.NewGame(fenOpt)
	pos := game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, uciMove)
	if err != nil {
		return uciMove
	}
	return nchess.AlgebraicNotation{}.Encode(pos, mv)
}

package assist

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/kapu/grandmaster-guide-go/internal/chess/uci"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// fakeEngine blocks BestMove until the test releases it, so tests control
// exactly when the background search completes. The optional eval gate lets a
// test hold the search inside the evaluation phase.
type fakeEngine struct {
	release chan string
	bestErr error
	eval    uci.Score
	evalErr error

	evalEntered chan struct{}
	evalGate    chan struct{}

	stopped atomic.Bool
	gotFEN  atomic.Value
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{release: make(chan string, 1), eval: uci.Score{CP: 33}}
}

func (f *fakeEngine) BestMove(ctx context.Context, fen string, budget time.Duration) (string, error) {
	f.gotFEN.Store(fen)
	mv := <-f.release
	if f.bestErr != nil {
		return "", f.bestErr
	}
	return mv, nil
}

func (f *fakeEngine) Evaluate(ctx context.Context, fen string, depth int) (uci.Score, error) {
	if f.evalEntered != nil {
		f.evalEntered <- struct{}{}
	}
	if f.evalGate != nil {
		<-f.evalGate
	}
	return f.eval, f.evalErr
}

func (f *fakeEngine) Stop() error {
	f.stopped.Store(true)
	return nil
}

func waitPoll(t *testing.T, w *Worker) Result {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if res, ok := w.Poll(); ok {
			return res
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("no result published before deadline")
	return Result{}
}

func TestRequestPublishesSuggestion(t *testing.T) {
	eng := newFakeEngine()
	w := NewWorker(eng, 1, nil)

	if err := w.Request(nchess.White, startFEN, time.Second); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !w.Busy() {
		t.Fatal("worker not busy after accepted request")
	}
	st := w.Status(time.Now())
	if !st.InProgress || st.StartedAt.IsZero() {
		t.Fatalf("Status = %+v", st)
	}
	if st.Budget != time.Second {
		t.Fatalf("Budget = %v, want the launch budget", st.Budget)
	}

	eng.release <- "e2e4"
	res := waitPoll(t, w)

	if res.Err != nil || res.Cancelled {
		t.Fatalf("result = %+v", res)
	}
	if res.MoveUCI != "e2e4" || res.SAN != "e4" {
		t.Fatalf("move = %s / %s", res.MoveUCI, res.SAN)
	}
	if res.Eval == nil || res.Eval.CP != 33 {
		t.Fatalf("eval = %v", res.Eval)
	}
	if res.Color != nchess.White {
		t.Fatalf("color = %v", res.Color)
	}
	if w.Busy() {
		t.Fatal("still busy after Poll")
	}
	if got := w.Status(time.Now()).LastElapsed; got <= 0 {
		t.Fatalf("LastElapsed = %v", got)
	}
}

func TestSecondRequestRejectedWhileBusy(t *testing.T) {
	eng := newFakeEngine()
	w := NewWorker(eng, 1, nil)

	if err := w.Request(nchess.White, startFEN, time.Second); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if err := w.Request(nchess.White, startFEN, time.Second); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Request = %v, want ErrBusy", err)
	}

	// The first request is unaffected by the rejection.
	eng.release <- "g1f3"
	res := waitPoll(t, w)
	if res.MoveUCI != "g1f3" {
		t.Fatalf("MoveUCI = %s", res.MoveUCI)
	}
}

func TestCancelSuppressesPublication(t *testing.T) {
	eng := newFakeEngine()
	w := NewWorker(eng, 1, nil)

	if err := w.Cancel(); !errors.Is(err, ErrNotThinking) {
		t.Fatalf("Cancel while idle = %v, want ErrNotThinking", err)
	}

	if err := w.Request(nchess.White, startFEN, time.Second); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if err := w.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !eng.stopped.Load() {
		t.Fatal("engine stop not requested")
	}

	eng.release <- "e2e4"
	res := waitPoll(t, w)
	if !res.Cancelled {
		t.Fatalf("result not marked cancelled: %+v", res)
	}
	if res.MoveUCI != "" || res.Eval != nil {
		t.Fatalf("cancelled result carries payload: %+v", res)
	}
	if w.Busy() {
		t.Fatal("still busy after cancelled result drained")
	}
}

func TestCancelDuringEvaluationSuppressed(t *testing.T) {
	eng := newFakeEngine()
	eng.evalEntered = make(chan struct{}, 1)
	eng.evalGate = make(chan struct{})
	w := NewWorker(eng, 1, nil)

	if err := w.Request(nchess.White, startFEN, time.Second); err != nil {
		t.Fatalf("Request: %v", err)
	}
	eng.release <- "e2e4"
	<-eng.evalEntered

	// The best move is already in hand; the cancel lands during the
	// evaluation query and must still win.
	if err := w.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	close(eng.evalGate)

	res := waitPoll(t, w)
	if !res.Cancelled {
		t.Fatalf("result not marked cancelled: %+v", res)
	}
	if res.MoveUCI != "" || res.Eval != nil {
		t.Fatalf("cancelled result carries payload: %+v", res)
	}
}

func TestEngineErrorClearsBusy(t *testing.T) {
	eng := newFakeEngine()
	eng.bestErr = errors.New("engine gone")
	w := NewWorker(eng, 1, nil)

	if err := w.Request(nchess.Black, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1", time.Second); err != nil {
		t.Fatalf("Request: %v", err)
	}
	eng.release <- ""
	res := waitPoll(t, w)
	if res.Err == nil {
		t.Fatal("error not propagated")
	}
	if w.Busy() {
		t.Fatal("still busy after failed search")
	}
}

func TestEvalFailureOmitsScore(t *testing.T) {
	eng := newFakeEngine()
	eng.evalErr = errors.New("eval timed out")
	w := NewWorker(eng, 1, nil)

	if err := w.Request(nchess.White, startFEN, time.Second); err != nil {
		t.Fatalf("Request: %v", err)
	}
	eng.release <- "d2d4"
	res := waitPoll(t, w)
	if res.Err != nil {
		t.Fatalf("Err = %v", res.Err)
	}
	if res.MoveUCI != "d2d4" || res.Eval != nil {
		t.Fatalf("result = %+v", res)
	}
}

func TestRequestWithoutEngine(t *testing.T) {
	w := NewWorker(nil, 1, nil)
	if w.Available() {
		t.Fatal("Available without engine")
	}
	if err := w.Request(nchess.White, startFEN, time.Second); !errors.Is(err, ErrNoEngine) {
		t.Fatalf("Request = %v, want ErrNoEngine", err)
	}
	if w.Busy() {
		t.Fatal("busy after rejected request")
	}
}

func TestRequestForcesSideToMove(t *testing.T) {
	eng := newFakeEngine()
	w := NewWorker(eng, 1, nil)

	blackFEN := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"
	if err := w.Request(nchess.White, blackFEN, time.Second); err != nil {
		t.Fatalf("Request: %v", err)
	}
	eng.release <- "e4e5"
	waitPoll(t, w)

	forced, _ := eng.gotFEN.Load().(string)
	if !strings.Contains(forced, " w ") {
		t.Fatalf("turn not forced to White: %s", forced)
	}
	if strings.Contains(forced, " e3 ") {
		t.Fatalf("en passant survived a turn flip: %s", forced)
	}
}

func TestForceTurn(t *testing.T) {
	afterE4 := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"

	cases := []struct {
		name  string
		fen   string
		color nchess.Color
		want  string
	}{
		{
			name:  "already to move keeps en passant",
			fen:   afterE4,
			color: nchess.Black,
			want:  afterE4,
		},
		{
			name:  "flip clears en passant",
			fen:   afterE4,
			color: nchess.White,
			want:  "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 1",
		},
		{
			name:  "start position to black",
			fen:   startFEN,
			color: nchess.Black,
			want:  "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR b KQkq - 0 1",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ForceTurn(tc.fen, tc.color)
			if err != nil {
				t.Fatalf("ForceTurn: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("fen mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := ForceTurn("rubbish", nchess.White); err == nil {
		t.Fatal("malformed fen accepted")
	}
}

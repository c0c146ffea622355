package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrBroken is returned once a query timed out or the stream failed. The
// abandoned reader goroutine is still parked on the stream, so its output can
// no longer be attributed to any query; the session must be closed and
// replaced.
var ErrBroken = errors.New("engine session unusable after stream failure")

const defaultReadyTimeout = 4 * time.Second

// searchTimeoutSlack is added on top of a movetime budget before the session
// gives up on the engine. The budget bounds the engine's own search, not the
// surrounding call; a wedged engine is detected here, not by the caller.
const searchTimeoutSlack = 5 * time.Second

// Options are resource hints applied at startup.
type Options struct {
	Threads int
	HashMB  int
}

// Score is a position evaluation: centipawns, or a forced mate distance when
// Mate is non-zero.
type Score struct {
	CP   int
	Mate int
}

func (s Score) IsMate() bool { return s.Mate != 0 }

func (s Score) String() string {
	if s.Mate != 0 {
		return fmt.Sprintf("# %d", s.Mate)
	}
	return strconv.Itoa(s.CP)
}

// Session owns one UCI engine subprocess for the lifetime of the
// application: started once, terminated once at shutdown.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex
	search sync.Mutex
	failed atomic.Bool
}

// NewSession starts the engine binary, performs the uci/isready handshake
// and applies resource options.
func NewSession(ctx context.Context, binaryPath string, opt Options) (*Session, error) {
	if strings.TrimSpace(binaryPath) == "" {
		return nil, fmt.Errorf("engine binary path required")
	}
	if _, err := os.Stat(binaryPath); err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}

	cmd := exec.CommandContext(ctx, binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Session{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdoutPipe),
	}

	if err := s.initialize(ctx, opt); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// BestMove searches the position for the given wall-clock budget and returns
// the engine's best move in coordinate notation.
func (s *Session) BestMove(ctx context.Context, fen string, budget time.Duration) (string, error) {
	ms := int(budget / time.Millisecond)
	if ms <= 0 {
		ms = 1
	}
	resp, err := s.run(ctx, fen, fmt.Sprintf("go movetime %d", ms), budget+searchTimeoutSlack)
	if err != nil {
		return "", err
	}
	if resp.bestMove == "" || resp.bestMove == "(none)" {
		return "", fmt.Errorf("engine returned no move")
	}
	return resp.bestMove, nil
}

// Evaluate runs a depth-bounded search and returns the final reported score
// from the side to move's point of view.
func (s *Session) Evaluate(ctx context.Context, fen string, depth int) (Score, error) {
	if depth <= 0 {
		depth = 1
	}
	timeout := time.Duration(depth) * 300 * time.Millisecond
	if timeout < 6*time.Second {
		timeout = 6 * time.Second
	}
	resp, err := s.run(ctx, fen, fmt.Sprintf("go depth %d", depth), timeout)
	if err != nil {
		return Score{}, err
	}
	if !resp.scored {
		return Score{}, fmt.Errorf("engine reported no score")
	}
	return resp.score, nil
}

// Stop asks the engine to end the current search early. The in-flight
// BestMove or Evaluate call still returns normally with whatever the engine
// settled on.
func (s *Session) Stop() error {
	return s.send("stop\n")
}

type searchResult struct {
	bestMove string
	score    Score
	scored   bool
}

func (s *Session) run(ctx context.Context, fen string, goCmd string, timeout time.Duration) (searchResult, error) {
	s.search.Lock()
	defer s.search.Unlock()

	if s.failed.Load() {
		return searchResult{}, ErrBroken
	}

	if err := s.send(buildPositionCommand(fen)); err != nil {
		return searchResult{}, fmt.Errorf("send position: %w", err)
	}
	if err := s.send(goCmd + "\n"); err != nil {
		return searchResult{}, fmt.Errorf("send go: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var res searchResult
	for {
		line, err := s.readLine(searchCtx)
		if err != nil {
			return searchResult{}, fmt.Errorf("read line: %w", err)
		}
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "info "):
			if sc, ok := parseInfoScore(line); ok {
				res.score = sc
				res.scored = true
			}
		case strings.HasPrefix(line, "bestmove"):
			parts := strings.Fields(line)
			if len(parts) >= 2 {
				res.bestMove = parts[1]
			}
			return res, nil
		}
	}
}

func buildPositionCommand(fen string) string {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return "position startpos\n"
	}
	return "position fen " + fen + "\n"
}

// parseInfoScore extracts "score cp N" or "score mate N" from an info line.
func parseInfoScore(line string) (Score, bool) {
	parts := strings.Fields(line)
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] != "score" {
			continue
		}
		v, err := strconv.Atoi(parts[i+2])
		if err != nil {
			return Score{}, false
		}
		switch parts[i+1] {
		case "cp":
			return Score{CP: v}, true
		case "mate":
			return Score{Mate: v}, true
		}
		return Score{}, false
	}
	return Score{}, false
}

func (s *Session) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdin != nil {
		_, _ = io.WriteString(s.stdin, "quit\n")
		s.stdin.Close()
	}

	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}

	if s.cmd != nil {
		return s.cmd.Wait()
	}
	return nil
}

func (s *Session) initialize(ctx context.Context, opt Options) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}

	if err := s.applyOptions(opt); err != nil {
		return err
	}

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}

	return nil
}

func (s *Session) applyOptions(opt Options) error {
	threadCount := opt.Threads
	if threadCount <= 0 {
		threadCount = 1
	}
	hashMB := opt.HashMB
	if hashMB <= 0 {
		hashMB = 16
	}
	cmds := []string{
		fmt.Sprintf("setoption name Threads value %d\n", threadCount),
		fmt.Sprintf("setoption name Hash value %d\n", hashMB),
	}
	for _, cmd := range cmds {
		if err := s.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	return nil
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		line, err := s.stdout.ReadString('\n')
		ch <- result{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		// The reader goroutine stays parked on the stream; any line it
		// eventually gets belongs to the aborted query.
		s.failed.Store(true)
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil {
			s.failed.Store(true)
		}
		return res.line, res.err
	}
}

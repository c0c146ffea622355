package tui

import (
	"fmt"
	"time"
	"unicode/utf8"

	nchess "github.com/corentings/chess/v2"
	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/kapu/grandmaster-guide-go/internal/session"
	"github.com/kapu/grandmaster-guide-go/pkg/viewdto"
)

const (
	leftMargin = 3
	topMargin  = 1
	squareW    = 2
	panelGap   = 4
)

// UI drives the fixed-tick render loop: input events and session Tick both
// run on this goroutine, which is the single owner of the session.
type UI struct {
	screen tcell.Screen
	sess   *session.Session
	theme  Theme
	logger *zap.Logger
	tick   time.Duration
}

func New(sess *session.Session, tickHz int, logger *zap.Logger) (*UI, error) {
	if tickHz <= 0 {
		tickHz = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init screen: %w", err)
	}
	screen.EnableMouse()
	return &UI{
		screen: screen,
		sess:   sess,
		theme:  DefaultTheme(),
		logger: logger,
		tick:   time.Second / time.Duration(tickHz),
	}, nil
}

// Run blocks until the user quits.
func (u *UI) Run() error {
	defer u.screen.Fini()

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := u.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(u.tick)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !u.handleEvent(ev) {
				return nil
			}
		case <-ticker.C:
		}

		now := time.Now()
		u.sess.Tick(now)
		u.render(u.sess.Snapshot(now))
	}
}

// handleEvent returns false when the user asked to quit.
func (u *UI) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		u.screen.Sync()
	case *tcell.EventMouse:
		if ev.Buttons()&tcell.Button1 != 0 {
			x, y := ev.Position()
			if sq, ok := u.pointToSquare(x, y); ok {
				u.sess.ClickSquare(sq)
			}
		}
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case 'z':
				_ = u.sess.Undo(1)
			case 'Z':
				_ = u.sess.Undo(2)
			case 'y':
				_ = u.sess.Redo()
			case 'w':
				_ = u.sess.RequestSuggestion(nchess.White)
			case 'b':
				_ = u.sess.RequestSuggestion(nchess.Black)
			case 'a':
				_ = u.sess.ApplySuggestion()
			case 'c':
				u.sess.CancelThinking()
			case 'v':
				u.sess.ToggleView()
			case '+', '=':
				u.sess.AdjustMoveTime(0.5)
			case '-':
				u.sess.AdjustMoveTime(-0.5)
			case 's':
				_, _ = u.sess.SavePGN()
			}
		}
	}
	return true
}

// pointToSquare maps a terminal cell to a board square, honoring the view
// orientation.
func (u *UI) pointToSquare(x, y int) (nchess.Square, bool) {
	col := (x - leftMargin) / squareW
	row := y - topMargin
	if x < leftMargin || col < 0 || col > 7 || row < 0 || row > 7 {
		return 0, false
	}
	var file nchess.File
	var rank nchess.Rank
	if u.sess.WhiteBottom() {
		file = nchess.File(col)
		rank = nchess.Rank(7 - row)
	} else {
		file = nchess.File(7 - col)
		rank = nchess.Rank(row)
	}
	return nchess.NewSquare(file, rank), true
}

func (u *UI) render(snap *viewdto.Snapshot) {
	u.screen.Clear()
	u.drawBoard(snap)
	u.drawPanel(snap)
	u.screen.Show()
}

func (u *UI) drawBoard(snap *viewdto.Snapshot) {
	board := u.sess.State().Position().Board()
	t := u.theme

	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			var file nchess.File
			var rank nchess.Rank
			if snap.WhiteBottom {
				file = nchess.File(col)
				rank = nchess.Rank(7 - row)
			} else {
				file = nchess.File(7 - col)
				rank = nchess.Rank(row)
			}
			sq := nchess.NewSquare(file, rank)
			bg := t.SquareDark
			if (int(file)+int(rank))%2 == 1 {
				bg = t.SquareLight
			}
			switch sq.String() {
			case snap.Selected:
				bg = t.Selected
			case suggestionFrom(snap), suggestionTo(snap):
				bg = t.Suggest
			case lastFrom(snap), lastTo(snap):
				bg = t.LastMove
			}
			u.drawSquare(leftMargin+col*squareW, topMargin+row, board.Piece(sq), bg)
		}
		// rank label
		var rank nchess.Rank
		if snap.WhiteBottom {
			rank = nchess.Rank(7 - row)
		} else {
			rank = nchess.Rank(row)
		}
		label, _ := utf8.DecodeRuneInString(rank.String())
		u.screen.SetContent(leftMargin-2, topMargin+row, label, nil, tcell.StyleDefault.Foreground(t.Rank))
	}

	// file labels
	for col := 0; col < 8; col++ {
		var file nchess.File
		if snap.WhiteBottom {
			file = nchess.File(col)
		} else {
			file = nchess.File(7 - col)
		}
		label, _ := utf8.DecodeRuneInString(file.String())
		u.screen.SetContent(leftMargin+col*squareW, topMargin+8, label, nil, tcell.StyleDefault.Foreground(t.File))
	}
}

func (u *UI) drawSquare(x, y int, p nchess.Piece, bg tcell.Color) {
	style := tcell.StyleDefault.Background(bg)
	if p == nchess.NoPiece {
		u.screen.SetContent(x, y, ' ', nil, style)
		u.screen.SetContent(x+1, y, ' ', nil, style)
		return
	}
	fg := u.theme.Black
	if p.Color() == nchess.White {
		fg = u.theme.White
	}
	r, _ := utf8.DecodeRuneInString(p.String())
	u.screen.SetContent(x, y, r, nil, style.Foreground(fg))
	u.screen.SetContent(x+1, y, ' ', nil, style)
}

func (u *UI) drawPanel(snap *viewdto.Snapshot) {
	t := u.theme
	x := leftMargin + 8*squareW + panelGap
	y := topMargin

	textStyle := tcell.StyleDefault.Foreground(t.Text)
	mutedStyle := tcell.StyleDefault.Foreground(t.Muted)
	errStyle := tcell.StyleDefault.Foreground(t.Error)

	u.drawText(x, y, textStyle, "GrandMaster Guide")
	y += 2

	u.drawText(x, y, textStyle, fmt.Sprintf("Budget %.1fs   Turn: %s", snap.MoveTimeSec, snap.Turn))
	y++

	if snap.Thinking {
		u.drawText(x, y, textStyle, fmt.Sprintf("Thinking %.2fs / %.1fs %s",
			snap.ThinkingElapsedSec, snap.ThinkingBudgetSec, progressBar(snap.ThinkingFraction, 16)))
	} else {
		u.drawText(x, y, mutedStyle, fmt.Sprintf("Last think: %.2fs", snap.LastThinkSec))
	}
	y += 2

	if snap.Suggestion != nil {
		line := "Suggest " + snap.Suggestion.SAN
		if snap.Suggestion.Eval != "" {
			line += "  (" + snap.Suggestion.Eval + ")"
		}
		u.drawText(x, y, tcell.StyleDefault.Foreground(t.Suggest), line)
	}
	y += 2

	u.drawText(x, y, mutedStyle, movesTail(snap.MovesSAN, 6))
	y += 2

	if snap.Terminal {
		u.drawText(x, y, textStyle, "Game over: "+snap.Outcome)
		y += 2
	}

	if snap.Notice != nil {
		style := mutedStyle
		if snap.Notice.Error {
			style = errStyle
		}
		u.drawText(x, y, style, snap.Notice.Text)
	}
	y += 2

	u.drawText(x, y, mutedStyle, "z undo  Z undo2  y redo  w/b suggest  a apply")
	y++
	u.drawText(x, y, mutedStyle, "c cancel  v view  +/- budget  s save  q quit")
}

func (u *UI) drawText(x, y int, style tcell.Style, text string) {
	for _, r := range text {
		u.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func progressBar(frac float64, width int) string {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * float64(width))
	bar := make([]rune, width)
	for i := range bar {
		if i < filled {
			bar[i] = '█'
		} else {
			bar[i] = '░'
		}
	}
	return string(bar)
}

func movesTail(sans []string, n int) string {
	if len(sans) == 0 {
		return "(no moves)"
	}
	start := len(sans) - n
	if start < 0 {
		start = 0
	}
	out := ""
	for i := start; i < len(sans); i++ {
		if out != "" {
			out += " "
		}
		if i%2 == 0 {
			out += fmt.Sprintf("%d.", i/2+1)
		}
		out += sans[i]
	}
	return out
}

func suggestionFrom(snap *viewdto.Snapshot) string {
	if snap.Suggestion == nil {
		return ""
	}
	return snap.Suggestion.From
}

func suggestionTo(snap *viewdto.Snapshot) string {
	if snap.Suggestion == nil {
		return ""
	}
	return snap.Suggestion.To
}

func lastFrom(snap *viewdto.Snapshot) string {
	if snap.LastMove == nil {
		return ""
	}
	return snap.LastMove.From
}

func lastTo(snap *viewdto.Snapshot) string {
	if snap.LastMove == nil {
		return ""
	}
	return snap.LastMove.To
}

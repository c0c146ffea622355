package tui

import "github.com/gdamore/tcell/v2"

// Theme collects the colors used to draw the board and panel.
type Theme struct {
	SquareLight tcell.Color
	SquareDark  tcell.Color
	White       tcell.Color
	Black       tcell.Color
	Selected    tcell.Color
	LastMove    tcell.Color
	Suggest     tcell.Color
	Text        tcell.Color
	Muted       tcell.Color
	Error       tcell.Color
	Rank        tcell.Color
	File        tcell.Color
}

func DefaultTheme() Theme {
	return Theme{
		SquareLight: tcell.NewRGBColor(240, 217, 181),
		SquareDark:  tcell.NewRGBColor(181, 136, 99),
		White:       tcell.ColorWhite,
		Black:       tcell.ColorBlack,
		Selected:    tcell.NewRGBColor(60, 160, 255),
		LastMove:    tcell.NewRGBColor(255, 235, 130),
		Suggest:     tcell.NewRGBColor(30, 200, 80),
		Text:        tcell.NewRGBColor(230, 230, 230),
		Muted:       tcell.NewRGBColor(190, 190, 190),
		Error:       tcell.NewRGBColor(220, 80, 80),
		Rank:        tcell.ColorYellow,
		File:        tcell.ColorYellow,
	}
}

package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Record is everything needed to serialize one game to portable PGN text.
type Record struct {
	Event       string
	Site        string
	Date        time.Time
	MovesSAN    []string
	Result      string // "1-0", "0-1", "1/2-1/2" or "*"
	Termination string
}

// Save writes the record to dir as one timestamp-named PGN file and returns
// the file path.
func Save(dir string, rec Record) (string, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create save dir: %w", err)
	}
	date := rec.Date
	if date.IsZero() {
		date = time.Now()
	}
	name := fmt.Sprintf("game_%s.pgn", date.Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(BuildPGN(rec)), 0o644); err != nil {
		return "", fmt.Errorf("write pgn: %w", err)
	}
	return path, nil
}

// BuildPGN renders headers and numbered SAN movetext.
func BuildPGN(rec Record) string {
	var b strings.Builder
	date := rec.Date
	if date.IsZero() {
		date = time.Now()
	}
	result := strings.TrimSpace(rec.Result)
	if result == "" {
		result = "*"
	}

	event := strings.TrimSpace(rec.Event)
	if event == "" {
		event = "Session"
	}
	b.WriteString(fmt.Sprintf("[Event \"%s\"]\n", sanitize(event)))
	if strings.TrimSpace(rec.Site) != "" {
		b.WriteString(fmt.Sprintf("[Site \"%s\"]\n", sanitize(rec.Site)))
	}
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString("[White \"White\"]\n")
	b.WriteString("[Black \"Black\"]\n")
	if strings.TrimSpace(rec.Termination) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitize(strings.ToLower(rec.Termination))))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", result))

	for i := 0; i < len(rec.MovesSAN); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(rec.MovesSAN[i])))
		if i+1 < len(rec.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(rec.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	b.WriteString("\n")
	return b.String()
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}

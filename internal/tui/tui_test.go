package tui

import "testing"

func TestMovesTail(t *testing.T) {
	if got := movesTail(nil, 6); got != "(no moves)" {
		t.Fatalf("empty history = %q", got)
	}
	sans := []string{"e4", "e5", "Nf3", "Nc6", "Bb5"}
	if got := movesTail(sans, 10); got != "1.e4 e5 2.Nf3 Nc6 3.Bb5" {
		t.Fatalf("full history = %q", got)
	}
	// Move numbers stay aligned to absolute ply positions in a tail.
	if got := movesTail(sans, 2); got != "Nc6 3.Bb5" {
		t.Fatalf("tail = %q", got)
	}
}

func TestProgressBar(t *testing.T) {
	if got := progressBar(0, 4); got != "░░░░" {
		t.Fatalf("empty bar = %q", got)
	}
	if got := progressBar(0.5, 4); got != "██░░" {
		t.Fatalf("half bar = %q", got)
	}
	// Out-of-range fractions clamp instead of panicking.
	if got := progressBar(2, 4); got != "████" {
		t.Fatalf("overfull bar = %q", got)
	}
	if got := progressBar(-1, 4); got != "░░░░" {
		t.Fatalf("negative bar = %q", got)
	}
}

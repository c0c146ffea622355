package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := c.Render("notify.illegal_move", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.TrimSpace(got) == "" {
		t.Fatal("empty rendered message")
	}

	got, err = c.Render("notify.wrong_turn", map[string]string{"Color": "Black"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(got, "Black") {
		t.Fatalf("template data not interpolated: %q", got)
	}
}

func TestRenderUnknownKey(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Render("notify.no_such_key", nil); err == nil {
		t.Fatal("unknown key accepted")
	}
	// MustRender falls back to the key so notifications never fail the caller.
	if got := c.MustRender("notify.no_such_key", nil); got != "notify.no_such_key" {
		t.Fatalf("MustRender fallback = %q", got)
	}
}

func TestRenderMissingTemplateData(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Render("notify.wrong_turn", map[string]string{}); err == nil {
		t.Fatal("missing template key accepted")
	}
}

func TestOverrideDirectory(t *testing.T) {
	dir := t.TempDir()
	override := "notify:\n  illegal_move: \"Nope: {{.Move}} is not allowed\"\n"
	if err := os.WriteFile(filepath.Join(dir, "10-local.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := c.Render("notify.illegal_move", map[string]string{"Move": "e2e5"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Nope: e2e5 is not allowed" {
		t.Fatalf("override not applied: %q", got)
	}

	// Keys not named by the override keep their embedded defaults.
	if got := c.MustRender("notify.no_engine", nil); got == "notify.no_engine" {
		t.Fatal("default lost after override")
	}
}

func TestOverrideDirectoryMissing(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("missing override dir accepted")
	}
}

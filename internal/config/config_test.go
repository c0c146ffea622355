package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MoveTimeSec != DefaultMoveTimeSec {
		t.Fatalf("MoveTimeSec = %v", cfg.MoveTimeSec)
	}
	if cfg.EngineHashMB != 256 {
		t.Fatalf("EngineHashMB = %d", cfg.EngineHashMB)
	}
	if cfg.EngineThreads < 1 {
		t.Fatalf("EngineThreads = %d", cfg.EngineThreads)
	}
	if cfg.EvalDepth != 1 || cfg.TickRateHz != 30 || cfg.SaveDir != "." {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadYAMLFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gmguide.yaml")
	yaml := "move_time_sec: 4.5\nengine_hash_mb: 128\nsave_dir: games\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("GMGUIDE_CONFIG", path)
	t.Setenv("GMGUIDE_MOVE_TIME", "6")
	t.Setenv("STOCKFISH_PATH", "/opt/stockfish/bin/stockfish")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Environment wins over the file, the file wins over defaults.
	if cfg.MoveTimeSec != 6 {
		t.Fatalf("MoveTimeSec = %v", cfg.MoveTimeSec)
	}
	if cfg.EngineHashMB != 128 {
		t.Fatalf("EngineHashMB = %d", cfg.EngineHashMB)
	}
	if cfg.SaveDir != "games" {
		t.Fatalf("SaveDir = %s", cfg.SaveDir)
	}
	if cfg.EnginePath != "/opt/stockfish/bin/stockfish" {
		t.Fatalf("EnginePath = %s", cfg.EnginePath)
	}
}

func TestLoadClampsMoveTime(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GMGUIDE_MOVE_TIME", "500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MoveTimeSec != MaxMoveTimeSec {
		t.Fatalf("MoveTimeSec = %v, want %v", cfg.MoveTimeSec, MaxMoveTimeSec)
	}
}

func TestClampMoveTime(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, MinMoveTimeSec},
		{0.5, 0.5},
		{2, 2},
		{30, 30},
		{31, MaxMoveTimeSec},
		{-1, MinMoveTimeSec},
	}
	for _, tc := range cases {
		if got := ClampMoveTime(tc.in); got != tc.want {
			t.Fatalf("ClampMoveTime(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

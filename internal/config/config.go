package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

const (
	DefaultMoveTimeSec = 2.0
	MinMoveTimeSec     = 0.5
	MaxMoveTimeSec     = 30.0
)

type AppConfig struct {
	EnginePath    string `yaml:"engine_path"`
	EngineThreads int    `yaml:"engine_threads"`
	EngineHashMB  int    `yaml:"engine_hash_mb"`

	MoveTimeSec float64 `yaml:"move_time_sec"`
	EvalDepth   int     `yaml:"eval_depth"`

	SaveDir    string `yaml:"save_dir"`
	MessageDir string `yaml:"message_dir"`

	TickRateHz int `yaml:"tick_rate_hz"`
}

// Load reads the optional YAML config file named by GMGUIDE_CONFIG (or
// ./gmguide.yaml when present), then applies environment overrides on top.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		EngineThreads: defaultEngineThreads(),
		EngineHashMB:  256,
		MoveTimeSec:   DefaultMoveTimeSec,
		EvalDepth:     1,
		SaveDir:       ".",
		TickRateHz:    30,
	}

	path := strings.TrimSpace(os.Getenv("GMGUIDE_CONFIG"))
	if path == "" {
		if _, err := os.Stat("gmguide.yaml"); err == nil {
			path = "gmguide.yaml"
		}
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.EnginePath == "" {
		cfg.EnginePath = FindEngine()
	}
	if cfg.EngineThreads <= 0 {
		cfg.EngineThreads = defaultEngineThreads()
	}
	if cfg.EngineHashMB <= 0 {
		cfg.EngineHashMB = 256
	}
	cfg.MoveTimeSec = ClampMoveTime(cfg.MoveTimeSec)
	if cfg.EvalDepth <= 0 {
		cfg.EvalDepth = 1
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 30
	}
	if strings.TrimSpace(cfg.SaveDir) == "" {
		cfg.SaveDir = "."
	}

	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv("STOCKFISH_PATH")); v != "" {
		cfg.EnginePath = v
	}
	if v := strings.TrimSpace(os.Getenv("GMGUIDE_ENGINE_THREADS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineThreads = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("GMGUIDE_ENGINE_HASH_MB")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EngineHashMB = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("GMGUIDE_MOVE_TIME")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.MoveTimeSec = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("GMGUIDE_EVAL_DEPTH")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EvalDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("GMGUIDE_SAVE_DIR")); v != "" {
		cfg.SaveDir = v
	}
	if v := strings.TrimSpace(os.Getenv("GMGUIDE_MESSAGE_DIR")); v != "" {
		cfg.MessageDir = v
	}
	if v := strings.TrimSpace(os.Getenv("GMGUIDE_TICK_RATE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TickRateHz = n
		}
	}
}

// FindEngine locates a Stockfish binary: next to the executable, in the
// working directory, then on PATH. Empty result means manual play only.
func FindEngine() string {
	var tries []string
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		tries = append(tries, filepath.Join(dir, "stockfish"), filepath.Join(dir, "stockfish.exe"))
	}
	tries = append(tries, "./stockfish", "./stockfish.exe")
	for _, p := range tries {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	if p, err := exec.LookPath("stockfish"); err == nil {
		return p
	}
	return ""
}

// ClampMoveTime bounds a time budget to the supported slider range.
func ClampMoveTime(sec float64) float64 {
	if sec < MinMoveTimeSec {
		return MinMoveTimeSec
	}
	if sec > MaxMoveTimeSec {
		return MaxMoveTimeSec
	}
	return sec
}

func defaultEngineThreads() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	return n
}

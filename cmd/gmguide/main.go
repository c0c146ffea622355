package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kapu/grandmaster-guide-go/internal/assist"
	"github.com/kapu/grandmaster-guide-go/internal/chess/uci"
	appcfg "github.com/kapu/grandmaster-guide-go/internal/config"
	"github.com/kapu/grandmaster-guide-go/internal/msgcat"
	"github.com/kapu/grandmaster-guide-go/internal/obslog"
	"github.com/kapu/grandmaster-guide-go/internal/session"
	"github.com/kapu/grandmaster-guide-go/internal/tui"
)

func main() {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	msgs, err := msgcat.New(cfg.MessageDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	// The engine is optional: without it the board degrades to manual play
	// with suggestion features disabled.
	var engine *uci.Session
	if cfg.EnginePath != "" {
		startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		engine, err = uci.NewSession(startCtx, cfg.EnginePath, uci.Options{
			Threads: cfg.EngineThreads,
			HashMB:  cfg.EngineHashMB,
		})
		cancel()
		if err != nil {
			logger.Warn("engine start failed, continuing without suggestions",
				zap.String("path", cfg.EnginePath),
				zap.Error(err),
			)
			engine = nil
		}
	} else {
		logger.Warn("no engine binary found, continuing without suggestions")
	}
	defer func() {
		if engine != nil {
			_ = engine.Close()
		}
	}()

	var worker *assist.Worker
	if engine != nil {
		worker = assist.NewWorker(engine, cfg.EvalDepth, logger)
	} else {
		worker = assist.NewWorker(nil, cfg.EvalDepth, logger)
	}

	sess := session.New(worker, msgs, session.Config{
		MoveTimeSec: cfg.MoveTimeSec,
		SaveDir:     cfg.SaveDir,
	}, logger)

	logger.Info("session started",
		zap.String("session_uuid", sess.ID()),
		zap.Bool("engine", engine != nil),
		zap.Float64("move_time_sec", cfg.MoveTimeSec),
	)

	ui, err := tui.New(sess, cfg.TickRateHz, logger)
	if err != nil {
		log.Fatalf("ui error: %v", err)
	}
	if err := ui.Run(); err != nil {
		logger.Error("ui loop failed", zap.Error(err))
	}

	logger.Info("session ended", zap.String("session_uuid", sess.ID()))
}

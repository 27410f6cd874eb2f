package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tmhk-chat/game-server-go/internal/config"
	"github.com/tmhk-chat/game-server-go/internal/content"
	"github.com/tmhk-chat/game-server-go/internal/dispatch"
	"github.com/tmhk-chat/game-server-go/internal/presence"
	"github.com/tmhk-chat/game-server-go/internal/repository"
	"github.com/tmhk-chat/game-server-go/internal/room"
	"github.com/tmhk-chat/game-server-go/internal/server"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting game server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	// Score persistence is optional; without a database URL final results
	// are only logged.
	var scores dispatch.ScoreRecorder = dispatch.NopRecorder{}
	if cfg.Database.URL != "" {
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		stats := db.Stats()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)
		scores = repository.NewScoreRepository(db, logger)
	} else {
		logger.Warn("database url not configured; score persistence disabled")
	}

	presenceReg := presence.NewRegistry(logger)
	logger.Info("presence registry initialized")

	rooms := room.NewRegistry(cfg.Game.MaxRooms, logger)
	logger.Info("room registry initialized",
		zap.Int("max_rooms", cfg.Game.MaxRooms),
		zap.Duration("finished_room_linger", cfg.Game.FinishedRoomLinger),
	)
	go rooms.Janitor(ctx, cfg.Game.FinishedRoomLinger)

	questions := content.NewStaticProvider()

	dispatcher := dispatch.New(
		rooms,
		presenceReg,
		questions,
		scores,
		cfg.Game.QuizRoundDelay,
		logger,
	)
	logger.Info("dispatcher initialized",
		zap.Duration("quiz_round_delay", cfg.Game.QuizRoundDelay),
	)

	gateway := server.NewGateway(dispatcher, presenceReg, logger)

	logger.Info("game server initialized",
		zap.String("version", version),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
	)

	if err := gateway.Run(ctx, cfg.Server.WebSocket.Address); err != nil {
		logger.Error("websocket gateway error", zap.Error(err))
	}

	logger.Info("game server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

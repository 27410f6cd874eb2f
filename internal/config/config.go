package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Game     GameConfig     `mapstructure:"game"`
}

// ServerConfig holds transport settings.
type ServerConfig struct {
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// WebSocketConfig holds the client gateway settings.
type WebSocketConfig struct {
	Address string `mapstructure:"address"`
}

// DatabaseConfig holds the score store settings. An empty URL disables
// persistence; final results are then only logged.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GameConfig holds engine timing and registry limits.
type GameConfig struct {
	QuizRoundDelay     time.Duration `mapstructure:"quiz_round_delay"`
	FinishedRoomLinger time.Duration `mapstructure:"finished_room_linger"`
	MaxRooms           int           `mapstructure:"max_rooms"`
}

// Load reads configuration from the given file with GAMESERVER_* environment
// overrides. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.websocket.address", ":8090")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("game.quiz_round_delay", 5*time.Second)
	v.SetDefault("game.finished_room_linger", 30*time.Second)
	v.SetDefault("game.max_rooms", 1000)

	v.SetConfigFile(path)
	v.SetEnvPrefix("GAMESERVER")
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

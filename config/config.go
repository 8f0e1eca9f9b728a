package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"

	"othello-ai/agent"
	"othello-ai/selfplay"
)

// Config хранит настройки приложения, общие для всех режимов
type Config struct {
	// ServerPort - порт HTTP сервера
	ServerPort string
	// DatabasePath - путь к файлу SQLite; пустая строка отключает архив
	DatabasePath string
	// LogLevel - уровень логирования zap
	LogLevel zapcore.Level

	// Параметры автоигры по умолчанию
	PlayMode    selfplay.PlayMode
	PlaySpeed   float64
	TargetGames int
	BlackAI     agent.Difficulty
	WhiteAI     agent.Difficulty
	SearchDepth int
}

const (
	envServerPort   = "SERVER_PORT"
	envDatabasePath = "DATABASE_PATH"
	envLogLevel     = "LOG_LEVEL"
	envPlayMode     = "AUTOPLAY_MODE"
	envPlaySpeed    = "AUTOPLAY_SPEED"
	envTargetGames  = "AUTOPLAY_GAMES"
	envBlackAI      = "BLACK_AI"
	envWhiteAI      = "WHITE_AI"
	envSearchDepth  = "SEARCH_DEPTH"
)

// Default возвращает настройки без учета окружения
func Default() Config {
	return Config{
		ServerPort:  "8080",
		LogLevel:    zapcore.InfoLevel,
		PlayMode:    selfplay.Normal,
		PlaySpeed:   selfplay.DefaultSpeed.Seconds(),
		TargetGames: 1,
		BlackAI:     agent.Medium,
		WhiteAI:     agent.Medium,
		SearchDepth: agent.DefaultSearchDepth,
	}
}

// Load читает настройки из переменных окружения. Незаданные значения
// берутся из Default, некорректные возвращают ошибку с именем переменной.
func Load() (Config, error) {
	cfg := Default()

	if port := os.Getenv(envServerPort); port != "" {
		cfg.ServerPort = port
	}
	cfg.DatabasePath = os.Getenv(envDatabasePath)

	if v := lookup(envLogLevel); v != "" {
		level, err := zapcore.ParseLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", envLogLevel, err)
		}
		cfg.LogLevel = level
	}

	if v := lookup(envPlayMode); v != "" {
		mode, err := selfplay.ParsePlayMode(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", envPlayMode, err)
		}
		cfg.PlayMode = mode
	}

	if v := lookup(envPlaySpeed); v != "" {
		speed, err := strconv.ParseFloat(v, 64)
		if err != nil || speed <= 0 {
			return Config{}, fmt.Errorf("%s: некорректная скорость %q", envPlaySpeed, v)
		}
		cfg.PlaySpeed = speed
	}

	if v := lookup(envTargetGames); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("%s: некорректное число партий %q", envTargetGames, v)
		}
		cfg.TargetGames = n
	}

	var err error
	if cfg.BlackAI, err = difficulty(envBlackAI, cfg.BlackAI); err != nil {
		return Config{}, err
	}
	if cfg.WhiteAI, err = difficulty(envWhiteAI, cfg.WhiteAI); err != nil {
		return Config{}, err
	}

	if v := lookup(envSearchDepth); v != "" {
		depth, err := strconv.Atoi(v)
		if err != nil || depth < 1 {
			return Config{}, fmt.Errorf("%s: некорректная глубина %q", envSearchDepth, v)
		}
		cfg.SearchDepth = depth
	}

	return cfg, nil
}

// Addr возвращает адрес для http.Server
func (c Config) Addr() string {
	if strings.HasPrefix(c.ServerPort, ":") {
		return c.ServerPort
	}
	return ":" + c.ServerPort
}

// AgentOptions возвращает опции агентов, заданные конфигурацией
func (c Config) AgentOptions() []agent.Option {
	return []agent.Option{agent.WithSearchDepth(c.SearchDepth)}
}

func lookup(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func difficulty(key string, fallback agent.Difficulty) (agent.Difficulty, error) {
	v := lookup(key)
	if v == "" {
		return fallback, nil
	}
	d, err := agent.ParseDifficulty(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

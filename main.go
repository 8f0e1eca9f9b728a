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

	"othello-ai/agent"
	"othello-ai/config"
	"othello-ai/database"
	"othello-ai/game"
	"othello-ai/selfplay"
	"othello-ai/stats"
	"othello-ai/ui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Определяем флаги командной строки; значения по умолчанию берутся из окружения
	terminalMode := flag.Bool("terminal", false, "Играть против AI в терминале")
	selfPlayMode := flag.Bool("self-play", false, "Серия партий AI против AI без задержек")
	tournamentMode := flag.Bool("tournament", false, "Круговой турнир всех уровней сложности")
	numGames := flag.Int("games", cfg.TargetGames, "Количество партий (в турнире - на пару)")
	mode := flag.String("mode", cfg.PlayMode.String(), "Режим автоигры в веб-режиме: normal, step, instant")
	speed := flag.Float64("speed", cfg.PlaySpeed, "Задержка между ходами в секундах")
	blackAI := flag.String("black", string(cfg.BlackAI), "Уровень черных: easy, medium, hard, expert")
	whiteAI := flag.String("white", string(cfg.WhiteAI), "Уровень белых: easy, medium, hard, expert")
	depth := flag.Int("depth", cfg.SearchDepth, "Глубина поиска для expert")
	color := flag.String("color", "black", "Цвет игрока в терминальном режиме")
	workers := flag.Int("workers", 4, "Число параллельных пар в турнире")
	dbPath := flag.String("db", cfg.DatabasePath, "Путь к файлу архива SQLite (пусто - без архива)")
	port := flag.String("port", cfg.ServerPort, "Порт веб-сервера")
	logLevel := flag.String("log-level", cfg.LogLevel.String(), "Уровень логирования: debug, info, warn, error")
	statsOut := flag.String("stats-out", "", "Файл для статистики серии в JSON")
	flag.Parse()

	if err := applyFlags(&cfg, *mode, *speed, *blackAI, *whiteAI, *depth, *numGames, *dbPath, *port, *logLevel); err != nil {
		fmt.Printf("Ошибка: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Ошибка при создании логгера: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *tournamentMode:
		err = runTournament(ctx, cfg, *workers, logger)
	case *selfPlayMode:
		err = runSelfPlay(ctx, cfg, *statsOut, logger)
	case *terminalMode:
		err = runTerminalMode(cfg, *color)
	default:
		err = runWeb(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error("завершение с ошибкой", zap.Error(err))
		fmt.Printf("Ошибка: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// applyFlags переносит значения флагов в конфигурацию с проверкой
func applyFlags(cfg *config.Config, mode string, speed float64, black, white string, depth, games int, dbPath, port, logLevel string) error {
	playMode, err := selfplay.ParsePlayMode(mode)
	if err != nil {
		return err
	}
	blackLevel, err := agent.ParseDifficulty(black)
	if err != nil {
		return fmt.Errorf("черные: %w", err)
	}
	whiteLevel, err := agent.ParseDifficulty(white)
	if err != nil {
		return fmt.Errorf("белые: %w", err)
	}
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	if games <= 0 {
		return fmt.Errorf("количество партий должно быть больше нуля (указано: %d)", games)
	}
	if depth <= 0 {
		return fmt.Errorf("глубина поиска должна быть больше нуля (указано: %d)", depth)
	}

	cfg.PlayMode = playMode
	cfg.PlaySpeed = speed
	cfg.BlackAI = blackLevel
	cfg.WhiteAI = whiteLevel
	cfg.SearchDepth = depth
	cfg.TargetGames = games
	cfg.DatabasePath = dbPath
	cfg.ServerPort = port
	cfg.LogLevel = level
	return nil
}

func newLogger(level zapcore.Level) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zc.Build()
}

// openDatabase открывает архив, если путь задан
func openDatabase(path string, logger *zap.Logger) (*database.Database, error) {
	if path == "" {
		return nil, nil
	}
	db, err := database.NewDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("открытие архива: %w", err)
	}
	logger.Info("архив подключен", zap.String("path", path))
	return db, nil
}

func runSelfPlay(ctx context.Context, cfg config.Config, statsOut string, logger *zap.Logger) error {
	fmt.Println("=== Серия партий AI против AI ===")
	fmt.Printf("Черные: %s, белые: %s, партий: %d\n\n", cfg.BlackAI, cfg.WhiteAI, cfg.TargetGames)

	manager := selfplay.NewManager(
		selfplay.WithLogger(logger.Named("autoplay")),
		selfplay.WithAgentOptions(cfg.AgentOptions()...),
		selfplay.WithPlayMode(selfplay.Instant),
		selfplay.WithTargetGames(cfg.TargetGames),
		selfplay.WithListener(selfplay.ListenerFuncs{
			GameEnd: func(r stats.GameResult) {
				fmt.Printf("Партия %d: %s (%d:%d, ходов: %d)\n",
					r.GameNumber, winnerLabel(r.Winner), r.BlackScore, r.WhiteScore, r.TotalMoves)
			},
		}),
	)
	if err := manager.SetAgents(cfg.BlackAI, cfg.WhiteAI); err != nil {
		return err
	}

	db, err := openDatabase(cfg.DatabasePath, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		manager.AddListener(database.NewRecorder(db, logger.Named("recorder")))
	}

	if err := manager.Start(ctx); err != nil {
		return err
	}

	statistics := manager.Statistics()
	printSummary(statistics)

	if statsOut != "" {
		f, err := os.Create(statsOut)
		if err != nil {
			return fmt.Errorf("создание файла статистики: %w", err)
		}
		defer f.Close()
		if err := statistics.WriteJSON(f); err != nil {
			return fmt.Errorf("запись статистики: %w", err)
		}
		fmt.Printf("Статистика сохранена в %s\n", statsOut)
	}
	return nil
}

func printSummary(s *stats.Statistics) {
	fmt.Println("\n=== ИТОГИ ===")
	fmt.Printf("Партий сыграно: %d\n", s.TotalGames)
	fmt.Printf("Победы черных: %d (%.1f%%)\n", s.BlackWins, s.GetWinRate(game.Black))
	fmt.Printf("Победы белых: %d (%.1f%%)\n", s.WhiteWins, s.GetWinRate(game.White))
	fmt.Printf("Ничьи: %d (%.1f%%)\n", s.Draws, s.GetDrawRate())
	fmt.Printf("Средний счет: %.1f : %.1f\n", s.GetAverageScore(game.Black), s.GetAverageScore(game.White))
	fmt.Printf("Среднее число ходов: %.1f\n", s.GetAverageMoves())
}

func runTournament(ctx context.Context, cfg config.Config, workers int, logger *zap.Logger) error {
	levels := agent.Difficulties()
	fmt.Println("=== Круговой турнир ===")
	fmt.Printf("Уровни: %v, партий на пару: %d\n\n", levels, cfg.TargetGames)

	t := selfplay.Tournament{
		Pairings:        selfplay.RoundRobin(levels),
		GamesPerPairing: cfg.TargetGames,
		Workers:         workers,
		AgentOptions:    cfg.AgentOptions(),
		Logger:          logger.Named("tournament"),
	}

	db, err := openDatabase(cfg.DatabasePath, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	results, err := t.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%-8s %-8s %6s %6s %6s %8s\n", "черные", "белые", "ч", "б", "н", "ходов")
	for _, r := range results {
		s := r.Statistics
		fmt.Printf("%-8s %-8s %6d %6d %6d %8.1f\n",
			r.Pairing.Black, r.Pairing.White, s.BlackWins, s.WhiteWins, s.Draws, s.GetAverageMoves())

		if db != nil {
			if err := archiveTournament(ctx, db, t.GamesPerPairing, r); err != nil {
				return err
			}
		}
	}
	return nil
}

// archiveTournament сохраняет партии одной пары как отдельную серию
func archiveTournament(ctx context.Context, db *database.Database, games int, r selfplay.TournamentResult) error {
	runID, err := db.StartRun(ctx, database.RunParams{
		Mode:            "tournament",
		BlackDifficulty: string(r.Pairing.Black),
		WhiteDifficulty: string(r.Pairing.White),
		TargetGames:     games,
	})
	if err != nil {
		return err
	}
	for _, result := range r.Statistics.GetResults() {
		if _, err := db.RecordGame(ctx, runID, result); err != nil {
			return err
		}
	}
	return db.FinishRun(ctx, runID)
}

func runWeb(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	fmt.Println("=== Отелло: партия с AI и автоигра ===")
	fmt.Printf("Откройте API на http://localhost%s/api/state\n", cfg.Addr())

	manager := selfplay.NewManager(
		selfplay.WithLogger(logger.Named("autoplay")),
		selfplay.WithAgentOptions(cfg.AgentOptions()...),
		selfplay.WithPlayMode(cfg.PlayMode),
		selfplay.WithTargetGames(cfg.TargetGames),
	)
	manager.SetPlaySpeed(cfg.PlaySpeed)
	if err := manager.SetAgents(cfg.BlackAI, cfg.WhiteAI); err != nil {
		return err
	}

	db, err := openDatabase(cfg.DatabasePath, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	server := ui.NewServer(ui.Options{
		Manager:  manager,
		Session:  ui.NewSession(logger.Named("session"), cfg.AgentOptions()...),
		Database: db,
		Logger:   logger,
	})

	return server.Run(ctx, cfg.Addr())
}

func runTerminalMode(cfg config.Config, colorName string) error {
	human, err := game.ParseColor(colorName)
	if err != nil {
		return err
	}
	level := cfg.WhiteAI
	if human == game.White {
		level = cfg.BlackAI
	}
	opponent, err := agent.NewAgent(level, cfg.AgentOptions()...)
	if err != nil {
		return err
	}
	return runTerminal(os.Stdin, os.Stdout, opponent, human)
}

func winnerLabel(c game.Color) string {
	switch c {
	case game.Black:
		return "победа черных"
	case game.White:
		return "победа белых"
	}
	return "ничья"
}

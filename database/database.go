package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"othello-ai/game"
	"othello-ai/stats"
)

// ErrNotFound возвращается, если запись не найдена
var ErrNotFound = errors.New("запись не найдена")

// Database представляет соединение с архивом партий
type Database struct {
	db *sql.DB
}

// Run - серия автоигры
type Run struct {
	ID              string     `json:"id"`
	StartedAt       time.Time  `json:"startedAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
	Mode            string     `json:"mode"`
	BlackDifficulty string     `json:"blackDifficulty"`
	WhiteDifficulty string     `json:"whiteDifficulty"`
	TargetGames     int        `json:"targetGames"`
	GamesPlayed     int        `json:"gamesPlayed"`
}

// RunParams - параметры новой серии
type RunParams struct {
	Mode            string
	BlackDifficulty string
	WhiteDifficulty string
	TargetGames     int
}

// GameRecord - сохраненная партия
type GameRecord struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"runId"`
	GameNumber int       `json:"gameNumber"`
	Winner     string    `json:"winner"` // "black", "white" или "draw"
	BlackScore int       `json:"blackScore"`
	WhiteScore int       `json:"whiteScore"`
	MovesCount int       `json:"movesCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MoveRecord представляет запись о ходе в базе данных
type MoveRecord struct {
	GameID     int64  `json:"gameId"`
	MoveNumber int    `json:"moveNumber"`
	Row        int    `json:"row"`
	Col        int    `json:"col"`
	Player     string `json:"player"`
	BoardHash  string `json:"boardHash"` // позиция перед ходом
	Result     string `json:"result"`    // "win", "loss", "draw" для сделавшего ход
}

// PositionStats - статистика позиции по архиву
type PositionStats struct {
	BoardHash string         `json:"boardHash"`
	Total     int            `json:"total"`
	Wins      int            `json:"wins"`
	Losses    int            `json:"losses"`
	Draws     int            `json:"draws"`
	BestMove  *game.Position `json:"bestMove,omitempty"`
	BestWins  int            `json:"bestWins"`
}

// NewDatabase открывает архив, создавая файл и таблицы при необходимости.
// ":memory:" открывает базу в памяти.
func NewDatabase(dbPath string) (*Database, error) {
	if dbPath != ":memory:" {
		// Создаем директорию если не существует
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть базу данных: %w", err)
	}
	// sqlite не любит параллельных писателей, а база в памяти живет в одном соединении
	db.SetMaxOpenConns(1)

	database := &Database{db: db}

	if err := database.createTables(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицы: %w", err)
	}

	return database, nil
}

// createTables создает необходимые таблицы
func (d *Database) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		mode TEXT NOT NULL,
		black_difficulty TEXT NOT NULL,
		white_difficulty TEXT NOT NULL,
		target_games INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS games (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		game_number INTEGER NOT NULL,
		winner TEXT NOT NULL,
		black_score INTEGER NOT NULL,
		white_score INTEGER NOT NULL,
		moves_count INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS moves (
		game_id INTEGER NOT NULL,
		move_number INTEGER NOT NULL,
		move_row INTEGER NOT NULL,
		move_col INTEGER NOT NULL,
		player TEXT NOT NULL,
		board_hash TEXT NOT NULL,
		result TEXT NOT NULL,
		PRIMARY KEY (game_id, move_number),
		FOREIGN KEY (game_id) REFERENCES games(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_games_run_id ON games(run_id);
	CREATE INDEX IF NOT EXISTS idx_moves_board_hash ON moves(board_hash);
	`

	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// StartRun создает серию и возвращает ее идентификатор
func (d *Database) StartRun(ctx context.Context, params RunParams) (string, error) {
	id := uuid.NewString()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, mode, black_difficulty, white_difficulty, target_games)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, time.Now().UTC(), params.Mode, params.BlackDifficulty, params.WhiteDifficulty, params.TargetGames,
	)
	if err != nil {
		return "", fmt.Errorf("ошибка при создании серии: %w", err)
	}
	return id, nil
}

// FinishRun отмечает серию завершенной
func (d *Database) FinishRun(ctx context.Context, runID string) error {
	res, err := d.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ? WHERE id = ?",
		time.Now().UTC(), runID,
	)
	if err != nil {
		return fmt.Errorf("ошибка при завершении серии: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordGame сохраняет партию вместе с ходами одной транзакцией
func (d *Database) RecordGame(ctx context.Context, runID string, result stats.GameResult) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO games (run_id, game_number, winner, black_score, white_score, moves_count)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, result.GameNumber, result.WinnerName(), result.BlackScore, result.WhiteScore, result.TotalMoves,
	)
	if err != nil {
		return 0, fmt.Errorf("ошибка при записи партии: %w", err)
	}
	gameID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO moves (game_id, move_number, move_row, move_col, player, board_hash, result)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	// позиции перед каждым ходом восстанавливаются проигрыванием партии
	board := game.NewBoard()
	for i, move := range result.Moves {
		hash := GenerateBoardHash(board)
		if _, err := stmt.ExecContext(ctx,
			gameID, i+1, move.Row, move.Col, move.Player.String(), hash, moveResult(result.Winner, move.Player),
		); err != nil {
			return 0, fmt.Errorf("ошибка при записи хода %d: %w", i+1, err)
		}
		if !board.PlaceStone(move.Row, move.Col, move.Player) {
			return 0, fmt.Errorf("ход %d (%s) недопустим", i+1, move.Position())
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return gameID, nil
}

// moveResult определяет исход партии для сделавшего ход
func moveResult(winner, player game.Color) string {
	switch winner {
	case player:
		return "win"
	case game.Draw:
		return "draw"
	default:
		return "loss"
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run      Run
		finished sql.NullTime
	)
	err := row.Scan(&run.ID, &run.StartedAt, &finished, &run.Mode,
		&run.BlackDifficulty, &run.WhiteDifficulty, &run.TargetGames, &run.GamesPlayed)
	if err != nil {
		return Run{}, err
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return run, nil
}

const runColumns = `
	SELECT r.id, r.started_at, r.finished_at, r.mode, r.black_difficulty, r.white_difficulty, r.target_games,
		(SELECT COUNT(*) FROM games g WHERE g.run_id = r.id)
	FROM runs r`

// ListRuns возвращает последние серии, новые первыми
func (d *Database) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.QueryContext(ctx, runColumns+" ORDER BY r.started_at DESC, r.rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun возвращает серию по идентификатору
func (d *Database) GetRun(ctx context.Context, runID string) (Run, error) {
	run, err := scanRun(d.db.QueryRowContext(ctx, runColumns+" WHERE r.id = ?", runID))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return run, err
}

// ListGames возвращает партии серии по порядку
func (d *Database) ListGames(ctx context.Context, runID string) ([]GameRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, run_id, game_number, winner, black_score, white_score, moves_count, created_at
		FROM games
		WHERE run_id = ?
		ORDER BY game_number`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	games := []GameRecord{}
	for rows.Next() {
		var g GameRecord
		if err := rows.Scan(&g.ID, &g.RunID, &g.GameNumber, &g.Winner,
			&g.BlackScore, &g.WhiteScore, &g.MovesCount, &g.CreatedAt); err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// GameMoves возвращает ходы партии по порядку
func (d *Database) GameMoves(ctx context.Context, gameID int64) ([]MoveRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT game_id, move_number, move_row, move_col, player, board_hash, result
		FROM moves
		WHERE game_id = ?
		ORDER BY move_number`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	moves := []MoveRecord{}
	for rows.Next() {
		var m MoveRecord
		if err := rows.Scan(&m.GameID, &m.MoveNumber, &m.Row, &m.Col, &m.Player, &m.BoardHash, &m.Result); err != nil {
			return nil, err
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

// GetPositionStats возвращает исходы партий, проходивших через позицию,
// и ход, чаще всего приводивший к победе
func (d *Database) GetPositionStats(ctx context.Context, boardHash string) (*PositionStats, error) {
	ps := &PositionStats{BoardHash: boardHash}

	err := d.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN result = 'win' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN result = 'loss' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN result = 'draw' THEN 1 ELSE 0 END), 0)
		FROM moves
		WHERE board_hash = ?`, boardHash).Scan(&ps.Total, &ps.Wins, &ps.Losses, &ps.Draws)
	if err != nil {
		return nil, err
	}

	var best game.Position
	err = d.db.QueryRowContext(ctx, `
		SELECT move_row, move_col, COUNT(*) AS wins
		FROM moves
		WHERE board_hash = ? AND result = 'win'
		GROUP BY move_row, move_col
		ORDER BY wins DESC, move_row, move_col
		LIMIT 1`, boardHash).Scan(&best.Row, &best.Col, &ps.BestWins)
	switch {
	case err == nil:
		ps.BestMove = &best
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	return ps, nil
}

// GetTotalGames возвращает общее количество партий в архиве
func (d *Database) GetTotalGames(ctx context.Context) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM games").Scan(&count)
	return count, err
}

// Close закрывает соединение с базой данных
func (d *Database) Close() error {
	return d.db.Close()
}

// GenerateBoardHash кодирует позицию строкой из 64 символов: '.', 'B', 'W'
func GenerateBoardHash(board *game.Board) string {
	var sb strings.Builder
	sb.Grow(game.Size * game.Size)
	for row := 0; row < game.Size; row++ {
		for col := 0; col < game.Size; col++ {
			switch board.Cells[row][col] {
			case game.Black:
				sb.WriteByte('B')
			case game.White:
				sb.WriteByte('W')
			default:
				sb.WriteByte('.')
			}
		}
	}
	return sb.String()
}

package database

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"othello-ai/selfplay"
	"othello-ai/stats"
)

const writeTimeout = 5 * time.Second

// Recorder сохраняет партии автоигры в архив. Подключается к менеджеру
// как слушатель: серия открывается при запуске, каждая партия пишется
// по окончании. Ошибки записи логируются и не останавливают игру.
type Recorder struct {
	selfplay.NopListener

	db     *Database
	logger *zap.Logger

	mu      sync.Mutex
	runID   string
	lastErr error
}

// NewRecorder создает регистратор; logger может быть nil
func NewRecorder(db *Database, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{db: db, logger: logger}
}

// BeginRun открывает новую серию с известными параметрами.
// Незавершенная предыдущая серия так и остается без finished_at.
func (r *Recorder) BeginRun(ctx context.Context, params RunParams) (string, error) {
	id, err := r.db.StartRun(ctx, params)
	if err != nil {
		r.setErr(err)
		return "", err
	}

	r.mu.Lock()
	r.runID = id
	r.mu.Unlock()

	r.logger.Info("серия записывается", zap.String("run_id", id))
	return id, nil
}

// RunID возвращает идентификатор текущей серии или пустую строку
func (r *Recorder) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

// Err возвращает последнюю ошибку записи
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// OnStateUpdate открывает серию по уведомлению о запуске
func (r *Recorder) OnStateUpdate(progress selfplay.Progress) {
	if progress.State != selfplay.Playing || progress.CurrentGame != 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := r.BeginRun(ctx, RunParams{
		Mode:            progress.Mode.String(),
		BlackDifficulty: string(progress.Black),
		WhiteDifficulty: string(progress.White),
		TargetGames:     progress.TargetGames,
	})
	if err != nil {
		r.logger.Error("не удалось открыть серию", zap.Error(err))
	}
}

// OnGameEnd сохраняет партию; без BeginRun серия открывается сама
func (r *Recorder) OnGameEnd(result stats.GameResult) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	runID := r.RunID()
	if runID == "" {
		var err error
		runID, err = r.BeginRun(ctx, RunParams{
			BlackDifficulty: string(result.BlackDifficulty),
			WhiteDifficulty: string(result.WhiteDifficulty),
		})
		if err != nil {
			r.logger.Error("не удалось открыть серию", zap.Error(err))
			return
		}
	}

	gameID, err := r.db.RecordGame(ctx, runID, result)
	if err != nil {
		r.setErr(err)
		r.logger.Error("не удалось сохранить партию",
			zap.String("run_id", runID),
			zap.Int("game", result.GameNumber),
			zap.Error(err),
		)
		return
	}
	r.logger.Debug("партия сохранена", zap.String("run_id", runID), zap.Int64("game_id", gameID))
}

// OnAllGamesEnd закрывает текущую серию
func (r *Recorder) OnAllGamesEnd(*stats.Statistics) {
	r.mu.Lock()
	runID := r.runID
	r.runID = ""
	r.mu.Unlock()

	if runID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.db.FinishRun(ctx, runID); err != nil {
		r.setErr(err)
		r.logger.Error("не удалось закрыть серию", zap.String("run_id", runID), zap.Error(err))
	}
}

func (r *Recorder) setErr(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}

package selfplay

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"othello-ai/agent"
	"othello-ai/game"
	"othello-ai/stats"
)

var (
	// ErrAgentsNotConfigured - не назначен агент хотя бы одному цвету
	ErrAgentsNotConfigured = errors.New("агенты для обоих цветов не назначены")
	// ErrAlreadyRunning - автоигра уже идет
	ErrAlreadyRunning = errors.New("автоигра уже запущена")
)

// Manager проводит серию партий между двумя агентами
type Manager struct {
	mu sync.Mutex

	state       State
	mode        PlayMode
	speed       time.Duration
	currentGame int
	targetGames int

	game       *game.Game
	black      *agent.Agent
	white      *agent.Agent
	agentOpts  []agent.Option
	statistics *stats.Statistics

	listeners []Listener
	logger    *zap.Logger

	stopRequested bool
	stopWaiting   bool // Stop ждет выхода и сам сообщит об Idle
	skipRequested bool
	wake          chan struct{}
	done          chan struct{}
	cancel        context.CancelFunc
}

// Option настраивает Manager
type Option func(*Manager)

// WithListener добавляет получателя событий
func WithListener(l Listener) Option {
	return func(m *Manager) {
		if l != nil {
			m.listeners = append(m.listeners, l)
		}
	}
}

// WithLogger задает логгер; по умолчанию zap.NewNop
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithAgentOptions задает опции для агентов, создаваемых SetAgents
func WithAgentOptions(opts ...agent.Option) Option {
	return func(m *Manager) {
		m.agentOpts = append(m.agentOpts, opts...)
	}
}

// WithPlayMode задает начальный режим
func WithPlayMode(mode PlayMode) Option {
	return func(m *Manager) {
		m.mode = mode
	}
}

// WithTargetGames задает начальное число партий
func WithTargetGames(n int) Option {
	return func(m *Manager) {
		m.targetGames = max(n, 1)
	}
}

// NewManager создает менеджер в состоянии Idle без агентов
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		state:       Idle,
		mode:        Normal,
		speed:       DefaultSpeed,
		targetGames: 1,
		game:        game.NewGame(),
		statistics:  stats.NewStatistics(),
		logger:      zap.NewNop(),
		wake:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddListener добавляет получателя событий
func (m *Manager) AddListener(l Listener) {
	if l == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// SetAgents создает агентов заданных уровней для черных и белых
func (m *Manager) SetAgents(black, white agent.Difficulty) error {
	m.mu.Lock()
	opts := m.agentOpts
	m.mu.Unlock()

	blackAgent, err := agent.NewAgent(black, opts...)
	if err != nil {
		return err
	}
	whiteAgent, err := agent.NewAgent(white, opts...)
	if err != nil {
		return err
	}

	m.SetAgent(game.Black, blackAgent)
	m.SetAgent(game.White, whiteAgent)
	return nil
}

// SetAgent назначает агента цвету; nil снимает назначение
func (m *Manager) SetAgent(color game.Color, a *agent.Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch color {
	case game.Black:
		m.black = a
	case game.White:
		m.white = a
	}
}

// Agent возвращает агента цвета или nil
func (m *Manager) Agent(color game.Color) *agent.Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agentFor(color)
}

func (m *Manager) agentFor(color game.Color) *agent.Agent {
	if color == game.Black {
		return m.black
	}
	if color == game.White {
		return m.white
	}
	return nil
}

// SetPlayMode меняет режим; действует со следующего хода
func (m *Manager) SetPlayMode(mode PlayMode) {
	m.mu.Lock()
	m.mode = mode
	resumed := mode == Instant && m.state == Paused
	if resumed {
		// Instant паузу не соблюдает
		m.state = Playing
	}
	progress := m.progressLocked()
	m.mu.Unlock()

	m.signal()
	if resumed {
		m.notifyState(progress)
	}
}

// SetPlaySpeed задает задержку между ходами в секундах, с ограничением [0.1, 3.0]
func (m *Manager) SetPlaySpeed(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speed = ClampSpeed(time.Duration(seconds * float64(time.Second)))
}

// SetTargetGames задает число партий серии, не меньше одной
func (m *Manager) SetTargetGames(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targetGames = max(n, 1)
}

// State возвращает текущее состояние
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// PlayMode возвращает текущий режим
func (m *Manager) PlayMode() PlayMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// PlaySpeed возвращает задержку между ходами
func (m *Manager) PlaySpeed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed
}

// Progress возвращает снимок состояния серии
func (m *Manager) Progress() Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progressLocked()
}

// progressLocked читает счетчики статистики напрямую: она меняется только под m.mu
func (m *Manager) progressLocked() Progress {
	return Progress{
		State:       m.state,
		Mode:        m.mode,
		Speed:       m.speed.Seconds(),
		CurrentGame: m.currentGame,
		TargetGames: m.targetGames,
		MovesPlayed: m.game.MovesCount(),
		Black:       difficultyOf(m.black),
		White:       difficultyOf(m.white),
		BlackWins:   m.statistics.BlackWins,
		WhiteWins:   m.statistics.WhiteWins,
		Draws:       m.statistics.Draws,
	}
}

// Statistics возвращает копию статистики текущей серии
func (m *Manager) Statistics() *stats.Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statistics.Snapshot()
}

// Game возвращает копию текущей партии
func (m *Manager) Game() *game.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.game.Clone()
}

// EvaluationMap оценивает каждый допустимый ход стороны, которая ходит.
// Для оконченной партии карта пустая; без агента берутся веса по умолчанию.
func (m *Manager) EvaluationMap() map[game.Position]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	scores := make(map[game.Position]int)
	if m.game.IsGameOver() {
		return scores
	}

	ai := m.agentFor(m.game.CurrentPlayer())
	for _, move := range m.game.ValidMoves() {
		if ai != nil {
			scores[move] = ai.EvaluateMove(m.game, move)
		} else {
			scores[move] = agent.EvaluateMove(m.game, move)
		}
	}
	return scores
}

// Start запускает серию из TargetGames партий. В режиме Instant серия
// проходит в вызывающей горутине, в остальных - в фоне. ctx ограничивает
// время жизни всей серии, а не только вызова.
func (m *Manager) Start(ctx context.Context) error {
	return m.start(ctx, false)
}

// Launch запускает серию в фоне в любом режиме
func (m *Manager) Launch(ctx context.Context) error {
	return m.start(ctx, true)
}

func (m *Manager) start(ctx context.Context, background bool) error {
	m.mu.Lock()
	if m.state == Playing || m.state == Paused {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	if m.black == nil || m.white == nil {
		m.mu.Unlock()
		return ErrAgentsNotConfigured
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	m.state = Playing
	m.currentGame = 0
	m.stopRequested = false
	m.stopWaiting = false
	m.skipRequested = false
	m.statistics = stats.NewStatistics()
	m.game = game.NewGame()
	m.cancel = cancel
	m.done = done
	mode := m.mode

	m.logger.Info("автоигра запущена",
		zap.Stringer("mode", mode),
		zap.Int("games", m.targetGames),
		zap.String("black", string(m.black.Difficulty())),
		zap.String("white", string(m.white.Difficulty())),
	)
	progress := m.progressLocked()
	m.mu.Unlock()

	m.notifyState(progress)

	if mode == Instant && !background {
		m.run(runCtx, cancel, done)
		return nil
	}
	go m.run(runCtx, cancel, done)
	return nil
}

// Pause приостанавливает серию после текущего хода.
// В режиме Instant пауза не поддерживается и возвращается false.
func (m *Manager) Pause() bool {
	m.mu.Lock()
	if m.state != Playing || m.mode == Instant {
		m.mu.Unlock()
		return false
	}
	m.state = Paused
	progress := m.progressLocked()
	m.mu.Unlock()

	m.logger.Debug("автоигра на паузе")
	m.notifyState(progress)
	return true
}

// Resume продолжает серию после паузы. В режиме Step это один ход.
func (m *Manager) Resume() bool {
	m.mu.Lock()
	if m.state != Paused {
		m.mu.Unlock()
		return false
	}
	m.state = Playing
	progress := m.progressLocked()
	m.mu.Unlock()

	m.signal()
	m.notifyState(progress)
	return true
}

// Step разрешает ровно один ход в режиме Step. После хода серия снова на паузе.
func (m *Manager) Step() bool {
	m.mu.Lock()
	if m.state != Paused || m.mode != Step {
		m.mu.Unlock()
		return false
	}
	m.state = Playing
	m.mu.Unlock()

	m.signal()
	return true
}

// SkipCurrentGame досрочно завершает текущую партию обычным путем:
// результат по текущему счету попадает в статистику. Между партиями
// пропускать нечего, и вызов возвращает false.
func (m *Manager) SkipCurrentGame() bool {
	m.mu.Lock()
	if (m.state != Playing && m.state != Paused) || m.game.IsGameOver() {
		m.mu.Unlock()
		return false
	}
	m.skipRequested = true
	m.mu.Unlock()

	m.signal()
	return true
}

// Stop прерывает серию и ждет завершения управляющей горутины.
// После возврата события ходов и партий больше не приходят.
// Вызов из слушателя приводит к взаимной блокировке: слушатель работает
// в той же управляющей горутине. Слушателям нужен RequestStop.
func (m *Manager) Stop() {
	m.mu.Lock()
	wasRunning := m.state == Playing || m.state == Paused
	m.stopRequested = true
	m.stopWaiting = true
	done := m.done
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.signal()
	if done != nil {
		<-done
	}

	m.mu.Lock()
	m.state = Idle
	m.done = nil
	m.cancel = nil
	m.stopWaiting = false
	progress := m.progressLocked()
	m.mu.Unlock()

	if wasRunning {
		m.logger.Info("автоигра остановлена", zap.Int("game", progress.CurrentGame))
	}
	m.notifyState(progress)
}

// RequestStop просит серию остановиться и не ждет ее завершения.
// Безопасен из слушателя; об Idle сообщит сама управляющая горутина.
func (m *Manager) RequestStop() {
	m.mu.Lock()
	m.stopRequested = true
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.signal()
}

// Reset останавливает серию и очищает партию и статистику
func (m *Manager) Reset() {
	m.Stop()

	m.mu.Lock()
	m.game = game.NewGame()
	m.statistics = stats.NewStatistics()
	m.currentGame = 0
	progress := m.progressLocked()
	m.mu.Unlock()

	m.notifyState(progress)
}

// Wait блокируется до конца текущей серии
func (m *Manager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer cancel()

	for {
		m.mu.Lock()
		if m.stopRequested || m.currentGame >= m.targetGames {
			m.mu.Unlock()
			break
		}
		m.game = game.NewGame()
		m.currentGame++
		number := m.currentGame
		progress := m.progressLocked()
		m.mu.Unlock()

		m.logger.Debug("партия начата", zap.Int("game", number))
		m.notifyState(progress)

		if !m.playGame(ctx) {
			m.abort()
			return
		}
		m.endGame()
	}

	m.mu.Lock()
	if m.stopRequested {
		m.mu.Unlock()
		m.abort()
		return
	}
	m.state = Finished
	progress := m.progressLocked()
	statistics := m.statistics.Snapshot()
	m.mu.Unlock()

	m.logger.Info("автоигра завершена",
		zap.Int("games", statistics.TotalGames),
		zap.Int("black_wins", statistics.BlackWins),
		zap.Int("white_wins", statistics.WhiteWins),
		zap.Int("draws", statistics.Draws),
	)
	m.notifyState(progress)
	for _, l := range m.snapshotListeners() {
		l.OnAllGamesEnd(statistics)
	}
}

// abort переводит прерванную серию в Idle. Если ее остановил Stop,
// оповещение отправит он, иначе - управляющая горутина.
func (m *Manager) abort() {
	m.mu.Lock()
	m.state = Idle
	waiting := m.stopWaiting
	progress := m.progressLocked()
	m.mu.Unlock()

	if waiting {
		return
	}
	m.logger.Info("автоигра прервана", zap.Int("game", progress.CurrentGame))
	m.notifyState(progress)
}

// playGame ведет партию до конца; false - серия прервана
func (m *Manager) playGame(ctx context.Context) bool {
	for {
		m.mu.Lock()
		stop, skip := m.stopRequested, m.skipRequested
		over := m.game.IsGameOver()
		mode := m.mode
		m.mu.Unlock()

		if stop || ctx.Err() != nil {
			return false
		}
		if skip || over {
			return true
		}

		if mode != Instant {
			if mode == Step {
				m.enterStepPause()
			}
			if !m.waitWhilePaused(ctx) {
				return false
			}
			if m.flagged() {
				continue
			}
		}

		if !m.playMove(ctx, mode) {
			return false
		}

		if mode == Normal {
			if !m.delay(ctx) {
				return false
			}
		}
	}
}

// flagged сообщает о запрошенной остановке или пропуске
func (m *Manager) flagged() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopRequested || m.skipRequested
}

func (m *Manager) enterStepPause() {
	m.mu.Lock()
	if m.state != Playing {
		m.mu.Unlock()
		return
	}
	m.state = Paused
	progress := m.progressLocked()
	m.mu.Unlock()

	m.notifyState(progress)
}

// waitWhilePaused ждет Resume или Step; false - серия прервана
func (m *Manager) waitWhilePaused(ctx context.Context) bool {
	for {
		m.mu.Lock()
		stop, skip := m.stopRequested, m.skipRequested
		paused := m.state == Paused
		m.mu.Unlock()

		if stop {
			return false
		}
		if skip || !paused {
			return true
		}

		select {
		case <-m.wake:
		case <-ctx.Done():
			return false
		}
	}
}

// delay выдерживает паузу между ходами; пропуск партии прерывает ее досрочно
func (m *Manager) delay(ctx context.Context) bool {
	m.mu.Lock()
	speed := m.speed
	m.mu.Unlock()

	timer := time.NewTimer(speed)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return true
		case <-ctx.Done():
			return false
		case <-m.wake:
			m.mu.Lock()
			stop, skip := m.stopRequested, m.skipRequested
			m.mu.Unlock()
			if stop {
				return false
			}
			if skip {
				return true
			}
		}
	}
}

// playMove делает ход текущего агента или пас; false - серия прервана
func (m *Manager) playMove(ctx context.Context, mode PlayMode) bool {
	m.mu.Lock()
	g := m.game
	player := g.CurrentPlayer()
	ai := m.agentFor(player)

	if ai == nil {
		m.mu.Unlock()
		m.logger.Warn("агент снят во время серии", zap.Stringer("player", player))
		return false
	}

	if len(g.ValidMoves()) == 0 {
		g.SwitchTurn()
		progress := m.progressLocked()
		m.mu.Unlock()

		m.logger.Debug("пас", zap.Stringer("player", player))
		m.notifyState(progress)
		return true
	}

	var (
		move game.Position
		ok   bool
	)
	if mode == Instant {
		move, ok = ai.ChooseMove(g)
	} else {
		choices := ai.ChooseMoveAsync(ctx, g)
		m.mu.Unlock()

		choice := <-choices
		if choice.Err != nil {
			return false
		}

		m.mu.Lock()
		if m.stopRequested {
			m.mu.Unlock()
			return false
		}
		if m.skipRequested {
			m.mu.Unlock()
			return true
		}
		move, ok = choice.Move, choice.OK
	}

	applied := ok && g.MakeMove(move.Row, move.Col)
	progress := m.progressLocked()
	m.mu.Unlock()

	if !applied {
		m.logger.Warn("агент вернул недопустимый ход",
			zap.Stringer("player", player),
			zap.Stringer("move", move),
		)
		return true
	}

	for _, l := range m.snapshotListeners() {
		l.OnMoveMade(move, player)
	}
	m.notifyState(progress)
	return true
}

// endGame записывает результат партии в статистику и оповещает слушателей
func (m *Manager) endGame() {
	m.mu.Lock()
	g := m.game
	skipped := m.skipRequested
	if !g.IsGameOver() {
		g.ForceOver()
	}
	m.skipRequested = false

	winner, _ := g.Winner()
	score := g.Score()
	result := stats.GameResult{
		GameNumber:      m.currentGame,
		Winner:          winner,
		BlackScore:      score.Black,
		WhiteScore:      score.White,
		TotalMoves:      g.MovesCount(),
		BlackDifficulty: difficultyOf(m.black),
		WhiteDifficulty: difficultyOf(m.white),
		Moves:           g.History(),
	}
	m.statistics.AddResult(result)
	progress := m.progressLocked()
	m.mu.Unlock()

	m.logger.Info("партия завершена",
		zap.Int("game", result.GameNumber),
		zap.String("winner", result.WinnerName()),
		zap.Int("black", result.BlackScore),
		zap.Int("white", result.WhiteScore),
		zap.Int("moves", result.TotalMoves),
		zap.Bool("skipped", skipped),
	)

	for _, l := range m.snapshotListeners() {
		l.OnGameEnd(result)
	}
	m.notifyState(progress)
}

func difficultyOf(a *agent.Agent) agent.Difficulty {
	if a == nil {
		return ""
	}
	return a.Difficulty()
}

func (m *Manager) snapshotListeners() []Listener {
	m.mu.Lock()
	defer m.mu.Unlock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	return listeners
}

func (m *Manager) notifyState(progress Progress) {
	for _, l := range m.snapshotListeners() {
		l.OnStateUpdate(progress)
	}
}

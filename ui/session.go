package ui

import (
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"othello-ai/agent"
	"othello-ai/game"
)

var (
	// ErrInvalidMove - ход не переворачивает ни одного камня или клетка занята
	ErrInvalidMove = errors.New("недопустимый ход")
	// ErrGameOver - партия окончена
	ErrGameOver = errors.New("партия окончена")
	// ErrOpponentTurn - сейчас ходит ИИ-соперник
	ErrOpponentTurn = errors.New("сейчас ход соперника")
)

// BoardState - состояние партии для клиента
type BoardState struct {
	Cells         [game.Size][game.Size]game.Color `json:"cells"`
	CurrentPlayer game.Color                       `json:"currentPlayer"`
	ValidMoves    []game.Position                  `json:"validMoves"`
	Score         game.Counts                      `json:"score"`
	GameOver      bool                             `json:"gameOver"`
	Winner        string                           `json:"winner,omitempty"` // "black", "white" или "draw"
	MovesCount    int                              `json:"movesCount"`
	LastMove      *game.Move                       `json:"lastMove,omitempty"`
	Passed        bool                             `json:"passed"`
}

func newBoardState(g *game.Game) BoardState {
	state := BoardState{
		Cells:         g.Cells(),
		CurrentPlayer: g.CurrentPlayer(),
		ValidMoves:    []game.Position{},
		Score:         g.Score(),
		GameOver:      g.IsGameOver(),
		MovesCount:    g.MovesCount(),
		Passed:        g.PassedLastTurn(),
	}
	if !state.GameOver {
		if moves := g.ValidMoves(); moves != nil {
			state.ValidMoves = moves
		}
	}
	if winner, ok := g.Winner(); ok {
		if winner == game.Draw {
			state.Winner = "draw"
		} else {
			state.Winner = winner.String()
		}
	}
	if history := g.History(); len(history) > 0 {
		last := history[len(history)-1]
		state.LastMove = &last
	}
	return state
}

// SessionState - состояние интерактивной партии вместе с соперником
type SessionState struct {
	BoardState
	Opponent      agent.Difficulty `json:"opponent,omitempty"`
	OpponentColor game.Color       `json:"opponentColor,omitempty"`
	Thinking      bool             `json:"thinking"`
}

// Session - интерактивная партия человека против необязательного ИИ-соперника
type Session struct {
	mu sync.Mutex

	game          *game.Game
	opponent      *agent.Agent
	opponentColor game.Color
	agentOpts     []agent.Option
	// generation меняется при сбросе, отмене хода и смене соперника;
	// ход ИИ, посчитанный для старой партии, отбрасывается
	generation int
	thinking   bool

	pending  sync.WaitGroup
	onChange func(SessionState)
	logger   *zap.Logger
}

// NewSession создает партию с начальной расстановкой без соперника
func NewSession(logger *zap.Logger, agentOpts ...agent.Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		game:      game.NewGame(),
		agentOpts: agentOpts,
		logger:    logger,
	}
}

// OnChange задает функцию, вызываемую после каждого изменения партии
func (s *Session) OnChange(fn func(SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// State возвращает текущее состояние
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() SessionState {
	state := SessionState{
		BoardState: newBoardState(s.game),
		Thinking:   s.thinking,
	}
	if s.opponent != nil {
		state.Opponent = s.opponent.Difficulty()
		state.OpponentColor = s.opponentColor
	}
	return state
}

// Game возвращает копию партии
func (s *Session) Game() *game.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.game.Clone()
}

// Move делает ход человека; если следующим ходит ИИ, его ход считается в фоне
func (s *Session) Move(row, col int) (SessionState, error) {
	s.mu.Lock()

	if s.game.IsGameOver() {
		s.mu.Unlock()
		return SessionState{}, ErrGameOver
	}
	if s.opponent != nil && s.game.CurrentPlayer() == s.opponentColor {
		s.mu.Unlock()
		return SessionState{}, ErrOpponentTurn
	}
	if !s.game.MakeMove(row, col) {
		s.mu.Unlock()
		return SessionState{}, ErrInvalidMove
	}

	s.logger.Debug("ход игрока", zap.Stringer("move", game.Position{Row: row, Col: col}))
	s.scheduleOpponentLocked()
	return s.commit()
}

// Undo отменяет последний ход человека вместе с ответом ИИ
func (s *Session) Undo() (SessionState, bool) {
	s.mu.Lock()

	if !s.game.Undo() {
		state := s.stateLocked()
		s.mu.Unlock()
		return state, false
	}
	// откатываемся до хода человека
	if s.opponent != nil {
		for s.game.CurrentPlayer() == s.opponentColor && s.game.MovesCount() > 0 {
			s.game.Undo()
		}
	}
	s.generation++
	s.thinking = false
	s.scheduleOpponentLocked()

	state, _ := s.commit()
	return state, true
}

// Reset начинает новую партию
func (s *Session) Reset() SessionState {
	s.mu.Lock()
	s.game.Reset()
	s.generation++
	s.thinking = false
	s.scheduleOpponentLocked()

	state, _ := s.commit()
	return state
}

// SetOpponent назначает ИИ-соперника; "off", "none" или пустая строка отключают его
func (s *Session) SetOpponent(difficulty string, color game.Color) (SessionState, error) {
	var opponent *agent.Agent
	switch strings.ToLower(strings.TrimSpace(difficulty)) {
	case "", "off", "none":
	default:
		d, err := agent.ParseDifficulty(difficulty)
		if err != nil {
			return SessionState{}, err
		}
		opponent, err = agent.NewAgent(d, s.agentOpts...)
		if err != nil {
			return SessionState{}, err
		}
	}
	if color != game.Black && color != game.White {
		color = game.White
	}

	s.mu.Lock()
	s.opponent = opponent
	s.opponentColor = color
	s.generation++
	s.thinking = false
	s.scheduleOpponentLocked()

	return s.commit()
}

// Evaluation оценивает допустимые ходы стороны, которая ходит
func (s *Session) Evaluation() map[game.Position]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	scores := make(map[game.Position]int)
	if s.game.IsGameOver() {
		return scores
	}
	for _, move := range s.game.ValidMoves() {
		scores[move] = agent.EvaluateMove(s.game, move)
	}
	return scores
}

// Wait ждет завершения фоновых ходов ИИ
func (s *Session) Wait() {
	s.pending.Wait()
}

// commit снимает состояние, отпускает блокировку и оповещает подписчика
func (s *Session) commit() (SessionState, error) {
	state := s.stateLocked()
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(state)
	}
	return state, nil
}

func (s *Session) scheduleOpponentLocked() {
	if s.opponent == nil || s.game.IsGameOver() || s.game.CurrentPlayer() != s.opponentColor {
		return
	}

	// ИИ считает ход на копии доски без блокировки
	snapshot := s.game.Clone()
	opponent := s.opponent
	generation := s.generation
	s.thinking = true

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.playOpponent(opponent, snapshot, generation)
	}()
}

func (s *Session) playOpponent(opponent *agent.Agent, snapshot *game.Game, generation int) {
	move, ok := opponent.ChooseMove(snapshot)

	s.mu.Lock()
	// партия могла смениться, пока ИИ думал
	if generation != s.generation || s.game.IsGameOver() || s.game.CurrentPlayer() != s.opponentColor {
		s.mu.Unlock()
		return
	}
	s.thinking = false

	if !ok || !s.game.MakeMove(move.Row, move.Col) {
		s.logger.Warn("соперник не смог сделать ход", zap.Stringer("move", move))
		s.commit()
		return
	}

	s.logger.Debug("ход соперника",
		zap.String("difficulty", string(opponent.Difficulty())),
		zap.Stringer("move", move),
	)
	// если человек пасует, ИИ ходит снова
	s.scheduleOpponentLocked()
	s.commit()
}

package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"othello-ai/game"
)

// Difficulty - уровень сложности агента
type Difficulty string

const (
	Easy   Difficulty = "easy"   // случайный ход
	Medium Difficulty = "medium" // жадный: больше всего переворотов
	Hard   Difficulty = "hard"   // эвристическая оценка хода
	Expert Difficulty = "expert" // minimax с альфа-бета отсечением
)

// ErrUnknownDifficulty возвращается для неизвестного уровня сложности
var ErrUnknownDifficulty = errors.New("неизвестный уровень сложности")

// DefaultSearchDepth - глубина поиска для Expert.
// Четная глубина оценивает листья с точки зрения ищущей стороны.
const DefaultSearchDepth = 4

// Difficulties перечисляет все поддерживаемые уровни
func Difficulties() []Difficulty {
	return []Difficulty{Easy, Medium, Hard, Expert}
}

// ParseDifficulty разбирает уровень сложности из строки
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case Easy, Medium, Hard, Expert:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDifficulty, s)
}

// strategy - закрытый набор стратегий выбора хода, выбирается один раз в NewAgent
type strategy int

const (
	strategyRandom strategy = iota
	strategyGreedy
	strategyHeuristic
	strategySearch
)

// Weights - веса эвристики
type Weights struct {
	Corner   int `json:"corner"`
	Edge     int `json:"edge"`
	Mobility int `json:"mobility"`
}

// DefaultWeights - стандартные веса эвристики
var DefaultWeights = Weights{Corner: 100, Edge: 10, Mobility: 5}

// Agent выбирает ходы. Состояние доски между вызовами не хранит.
type Agent struct {
	difficulty  Difficulty
	strategy    strategy
	weights     Weights
	searchDepth int

	mu  sync.Mutex // защищает rng
	rng *rand.Rand
}

// Option настраивает агента
type Option func(*Agent)

// WithRand задает источник случайности (для воспроизводимых партий).
// Один *rand.Rand нельзя отдавать агентам, которые ходят одновременно.
func WithRand(rng *rand.Rand) Option {
	return func(a *Agent) {
		if rng != nil {
			a.rng = rng
		}
	}
}

// WithSeed задает зерно генератора; каждый агент получает свой генератор
func WithSeed(seed int64) Option {
	return func(a *Agent) {
		a.rng = rand.New(rand.NewSource(seed))
	}
}

// WithSearchDepth задает глубину поиска для Expert
func WithSearchDepth(depth int) Option {
	return func(a *Agent) {
		if depth > 0 {
			a.searchDepth = depth
		}
	}
}

// NewAgent создает агента заданной сложности
func NewAgent(difficulty Difficulty, opts ...Option) (*Agent, error) {
	a := &Agent{
		difficulty:  difficulty,
		weights:     DefaultWeights,
		searchDepth: DefaultSearchDepth,
	}

	switch difficulty {
	case Easy:
		a.strategy = strategyRandom
	case Medium:
		a.strategy = strategyGreedy
	case Hard:
		a.strategy = strategyHeuristic
	case Expert:
		a.strategy = strategySearch
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDifficulty, difficulty)
	}

	for _, opt := range opts {
		opt(a)
	}
	if a.rng == nil {
		a.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return a, nil
}

// Difficulty возвращает уровень сложности агента
func (a *Agent) Difficulty() Difficulty {
	return a.difficulty
}

// Weights возвращает веса эвристики
func (a *Agent) Weights() Weights {
	return a.weights
}

// SearchDepth возвращает глубину поиска для Expert
func (a *Agent) SearchDepth() int {
	return a.searchDepth
}

// ChooseMove выбирает ход для текущего игрока партии.
// false означает, что ходов нет и игрок должен пасовать.
func (a *Agent) ChooseMove(g *game.Game) (game.Position, bool) {
	return a.choose(g.Board(), g.CurrentPlayer())
}

func (a *Agent) choose(board *game.Board, player game.Color) (game.Position, bool) {
	moves := board.ValidMoves(player)
	if len(moves) == 0 {
		return game.Position{}, false
	}

	switch a.strategy {
	case strategyRandom:
		return a.randomMove(moves), true
	case strategyGreedy:
		return greedyMove(board, player, moves), true
	case strategyHeuristic:
		return a.heuristicMove(board, player, moves), true
	default:
		_, move, ok := a.Minimax(board, a.searchDepth, player, math.MinInt, math.MaxInt, true)
		if !ok {
			return moves[0], true
		}
		return move, true
	}
}

// Choice - результат асинхронного выбора хода
type Choice struct {
	Move game.Position
	OK   bool
	Err  error
}

// ChooseMoveAsync снимает копию партии в вызывающей горутине и ищет ход в отдельной.
// В канал попадает ровно одно значение: ход или ошибка контекста.
func (a *Agent) ChooseMoveAsync(ctx context.Context, g *game.Game) <-chan Choice {
	board := g.Board()
	player := g.CurrentPlayer()

	out := make(chan Choice, 1)
	result := make(chan Choice, 1)

	go func() {
		move, ok := a.choose(board, player)
		result <- Choice{Move: move, OK: ok}
	}()

	go func() {
		select {
		case choice := <-result:
			out <- choice
		case <-ctx.Done():
			out <- Choice{Err: ctx.Err()}
		}
	}()

	return out
}

// randomMove выбирает равновероятно среди допустимых ходов
func (a *Agent) randomMove(moves []game.Position) game.Position {
	a.mu.Lock()
	defer a.mu.Unlock()
	return moves[a.rng.Intn(len(moves))]
}

// greedyMove выбирает ход с наибольшим числом переворотов; при равенстве - первый
func greedyMove(board *game.Board, player game.Color, moves []game.Position) game.Position {
	best := moves[0]
	maxFlips := 0

	for _, move := range moves {
		flips := len(board.Flips(move.Row, move.Col, player))
		if flips > maxFlips {
			maxFlips = flips
			best = move
		}
	}

	return best
}

// heuristicMove выбирает ход с лучшей оценкой EvaluateMove; при равенстве - первый
func (a *Agent) heuristicMove(board *game.Board, player game.Color, moves []game.Position) game.Position {
	best := moves[0]
	bestScore := math.MinInt

	for _, move := range moves {
		score := a.evaluateMove(board, player, move)
		if score > bestScore {
			bestScore = score
			best = move
		}
	}

	return best
}

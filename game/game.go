package game

// Move - один поставленный камень в истории партии
type Move struct {
	Row    int   `json:"row"`
	Col    int   `json:"col"`
	Player Color `json:"player"`
}

// Position возвращает клетку хода
func (m Move) Position() Position {
	return Position{Row: m.Row, Col: m.Col}
}

// Game управляет очередностью ходов, пасами и историей партии.
// Пасы в историю не записываются.
type Game struct {
	board          *Board
	currentPlayer  Color
	history        []Move
	gameOver       bool
	passedLastTurn bool

	// позиция, с которой разыгрывается история
	start       Board
	startPlayer Color
}

// NewGame создает партию с начальной расстановкой; черные ходят первыми
func NewGame() *Game {
	return NewGameFromPosition(NewBoard(), Black)
}

// NewGameFromPosition создает партию с произвольной позиции.
// Undo разыгрывает историю именно от нее.
func NewGameFromPosition(board *Board, current Color) *Game {
	g := &Game{start: *board, startPlayer: current}
	g.rewind()
	return g
}

// CurrentPlayer возвращает цвет игрока, который ходит сейчас
func (g *Game) CurrentPlayer() Color {
	return g.currentPlayer
}

// ValidMoves возвращает допустимые ходы текущего игрока
func (g *Game) ValidMoves() []Position {
	return g.board.ValidMoves(g.currentPlayer)
}

// Flips возвращает камни, которые перевернет ход текущего игрока
func (g *Game) Flips(row, col int) []Position {
	return g.board.Flips(row, col, g.currentPlayer)
}

// MakeMove делает ход текущего игрока. Возвращает false без изменений,
// если партия окончена или ход недопустим.
func (g *Game) MakeMove(row, col int) bool {
	if g.gameOver {
		return false
	}

	player := g.currentPlayer
	if !g.board.PlaceStone(row, col, player) {
		return false
	}

	g.history = append(g.history, Move{Row: row, Col: col, Player: player})
	g.passedLastTurn = false
	g.SwitchTurn()
	return true
}

// SwitchTurn передает ход сопернику с учетом пасов: если у соперника нет ходов,
// он пасует и ход возвращается; два паса подряд заканчивают партию.
func (g *Game) SwitchTurn() {
	g.currentPlayer = g.currentPlayer.Opponent()

	if g.board.HasValidMove(g.currentPlayer) {
		g.passedLastTurn = false
		return
	}

	if g.passedLastTurn {
		g.gameOver = true
		return
	}

	g.passedLastTurn = true
	g.currentPlayer = g.currentPlayer.Opponent()
	if !g.board.HasValidMove(g.currentPlayer) {
		g.gameOver = true
	}
}

// IsGameOver сообщает, окончена ли партия (по пасам или заполненной доске)
func (g *Game) IsGameOver() bool {
	return g.gameOver || g.board.IsFull()
}

// ForceOver завершает партию досрочно, не трогая доску
func (g *Game) ForceOver() {
	g.gameOver = true
}

// PassedLastTurn сообщает, был ли последний переход хода вынужденным пасом
func (g *Game) PassedLastTurn() bool {
	return g.passedLastTurn
}

// Winner возвращает победителя (Draw при равенстве) и false, пока партия идет
func (g *Game) Winner() (Color, bool) {
	if !g.IsGameOver() {
		return Invalid, false
	}

	counts := g.board.CountStones()
	switch {
	case counts.Black > counts.White:
		return Black, true
	case counts.White > counts.Black:
		return White, true
	default:
		return Draw, true
	}
}

// Score возвращает текущий счет
func (g *Game) Score() Counts {
	return g.board.CountStones()
}

// History возвращает копию истории ходов
func (g *Game) History() []Move {
	history := make([]Move, len(g.history))
	copy(history, g.history)
	return history
}

// MovesCount возвращает число поставленных камней
func (g *Game) MovesCount() int {
	return len(g.history)
}

// Board возвращает копию доски
func (g *Game) Board() *Board {
	return g.board.Clone()
}

// Cells возвращает содержимое доски
func (g *Game) Cells() [Size][Size]Color {
	return g.board.Cells
}

// Reset начинает новую партию со стандартной расстановки
func (g *Game) Reset() {
	g.start = *NewBoard()
	g.startPlayer = Black
	g.rewind()
}

// rewind возвращает партию в стартовую позицию и очищает историю
func (g *Game) rewind() {
	start := g.start
	g.board = &start
	g.currentPlayer = g.startPlayer
	g.history = nil
	g.gameOver = false
	g.passedLastTurn = false
}

// Undo отменяет последний ход, заново разыгрывая оставшуюся историю
// со стартовой позиции. Так состояние пасов и очередь хода всегда согласованы.
func (g *Game) Undo() bool {
	if len(g.history) == 0 {
		return false
	}

	remaining := g.history[:len(g.history)-1]
	g.rewind()
	for _, move := range remaining {
		g.MakeMove(move.Row, move.Col)
	}
	return true
}

// Replay разыгрывает историю с начальной позиции.
// Возвращает ошибку, если какой-то ход недопустим.
func Replay(history []Move) (*Game, error) {
	g := NewGame()
	for i, move := range history {
		if !g.MakeMove(move.Row, move.Col) {
			return nil, &ReplayError{Index: i, Move: move}
		}
	}
	return g, nil
}

// ReplayError описывает ход истории, который не удалось повторить
type ReplayError struct {
	Index int
	Move  Move
}

func (e *ReplayError) Error() string {
	return "недопустимый ход " + e.Move.Position().String() + " в истории"
}

// Clone создает независимую копию партии
func (g *Game) Clone() *Game {
	return &Game{
		board:          g.board.Clone(),
		currentPlayer:  g.currentPlayer,
		history:        g.History(),
		gameOver:       g.gameOver,
		passedLastTurn: g.passedLastTurn,
		start:          g.start,
		startPlayer:    g.startPlayer,
	}
}

package agent

import "othello-ai/game"

var corners = map[game.Position]bool{
	{Row: 0, Col: 0}: true,
	{Row: 0, Col: 7}: true,
	{Row: 7, Col: 0}: true,
	{Row: 7, Col: 7}: true,
}

// клетки рядом с углами (X- и C-клетки)
var unsafeSquares = map[game.Position]bool{
	{Row: 0, Col: 1}: true, {Row: 1, Col: 0}: true, {Row: 1, Col: 1}: true,
	{Row: 0, Col: 6}: true, {Row: 1, Col: 6}: true, {Row: 1, Col: 7}: true,
	{Row: 6, Col: 0}: true, {Row: 6, Col: 1}: true, {Row: 7, Col: 1}: true,
	{Row: 6, Col: 6}: true, {Row: 6, Col: 7}: true, {Row: 7, Col: 6}: true,
}

var positionValues = [game.Size][game.Size]int{
	{100, -20, 10, 5, 5, 10, -20, 100},
	{-20, -50, -2, -2, -2, -2, -50, -20},
	{10, -2, 1, 0, 0, 1, -2, 10},
	{5, -2, 0, 0, 0, 0, -2, 5},
	{5, -2, 0, 0, 0, 0, -2, 5},
	{10, -2, 1, 0, 0, 1, -2, 10},
	{-20, -50, -2, -2, -2, -2, -50, -20},
	{100, -20, 10, 5, 5, 10, -20, 100},
}

// PositionValue возвращает позиционную ценность клетки
func PositionValue(row, col int) int {
	if !(game.Position{Row: row, Col: col}).InBounds() {
		return 0
	}
	return positionValues[row][col]
}

// EvaluateMove оценивает ход текущего игрока за один полуход без поиска
func (a *Agent) EvaluateMove(g *game.Game, move game.Position) int {
	return a.evaluateMove(g.Board(), g.CurrentPlayer(), move)
}

func (a *Agent) evaluateMove(board *game.Board, player game.Color, move game.Position) int {
	return evaluateMove(a.weights, board, player, move)
}

// EvaluateMove оценивает ход со стандартными весами
func EvaluateMove(g *game.Game, move game.Position) int {
	return evaluateMove(DefaultWeights, g.Board(), g.CurrentPlayer(), move)
}

func evaluateMove(w Weights, board *game.Board, player game.Color, move game.Position) int {
	score := 0

	if corners[move] {
		score += w.Corner
	}

	if move.Row == 0 || move.Row == game.Size-1 || move.Col == 0 || move.Col == game.Size-1 {
		score += w.Edge
	}

	if unsafeSquares[move] {
		score -= w.Edge * 2
	}

	flips := len(board.Flips(move.Row, move.Col, player))

	temp := board.Clone()
	temp.PlaceStone(move.Row, move.Col, player)
	score -= len(temp.ValidMoves(player.Opponent())) * w.Mobility

	score += flips * 2

	return score
}

// EvaluateBoard оценивает позицию с точки зрения player:
// позиционная ценность камней плюс разница в мобильности
func (a *Agent) EvaluateBoard(board *game.Board, player game.Color) int {
	score := 0
	opponent := player.Opponent()

	for row := 0; row < game.Size; row++ {
		for col := 0; col < game.Size; col++ {
			switch board.Cells[row][col] {
			case player:
				score += positionValues[row][col]
			case opponent:
				score -= positionValues[row][col]
			}
		}
	}

	playerMobility := len(board.ValidMoves(player))
	opponentMobility := len(board.ValidMoves(opponent))
	score += (playerMobility - opponentMobility) * a.weights.Mobility

	return score
}

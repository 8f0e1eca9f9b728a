package agent

import (
	"math"

	"othello-ai/game"
)

// Minimax реализует алгоритм minimax с альфа-бета отсечением.
// Доску не изменяет: каждая ветка работает со своей копией.
// Возвращает оценку и лучший ход; false - хода нет (глубина 0, пас или конец партии).
func (a *Agent) Minimax(board *game.Board, depth int, player game.Color, alpha, beta int, maximizing bool) (int, game.Position, bool) {
	if depth == 0 {
		return a.EvaluateBoard(board, player), game.Position{}, false
	}

	opponent := player.Opponent()
	moves := board.ValidMoves(player)
	if len(moves) == 0 {
		if !board.HasValidMove(opponent) {
			return a.EvaluateBoard(board, player), game.Position{}, false
		}
		// вынужденный пас: ход переходит к сопернику
		score, _, _ := a.Minimax(board, depth-1, opponent, alpha, beta, !maximizing)
		return score, game.Position{}, false
	}

	var bestMove game.Position

	if maximizing {
		maxEval := math.MinInt
		for _, move := range moves {
			child := *board
			child.PlaceStone(move.Row, move.Col, player)
			eval, _, _ := a.Minimax(&child, depth-1, opponent, alpha, beta, false)

			if eval > maxEval {
				maxEval = eval
				bestMove = move
			}

			alpha = max(alpha, eval)
			if beta <= alpha {
				break // Альфа-бета отсечение
			}
		}
		return maxEval, bestMove, true
	}

	minEval := math.MaxInt
	for _, move := range moves {
		child := *board
		child.PlaceStone(move.Row, move.Col, player)
		eval, _, _ := a.Minimax(&child, depth-1, opponent, alpha, beta, true)

		if eval < minEval {
			minEval = eval
			bestMove = move
		}

		beta = min(beta, eval)
		if beta <= alpha {
			break
		}
	}
	return minEval, bestMove, true
}

package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"othello-ai/agent"
	"othello-ai/game"
)

// runTerminal ведет партии человека против AI через текстовый ввод.
// Команды: ход вида d3, undo, hint, new, quit.
func runTerminal(in io.Reader, out io.Writer, ai *agent.Agent, human game.Color) error {
	fmt.Fprintln(out, "=== Отелло против AI ===")
	fmt.Fprintf(out, "Вы играете за %s, AI: %s\n", colorLabel(human), ai.Difficulty())
	fmt.Fprintln(out, "Введите ход в формате: d3 (undo - отмена, hint - подсказка, quit - выход)")
	fmt.Fprintln(out)

	hinter, err := agent.NewAgent(agent.Hard)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	g := game.NewGame()
	gamesPlayed := 0

	for {
		fmt.Fprint(out, g.Board().String())

		if g.IsGameOver() {
			gamesPlayed++
			handleGameOver(out, g, human, gamesPlayed)
			g.Reset()
			continue
		}

		if g.CurrentPlayer() != human {
			fmt.Fprintln(out, "AI думает...")
			move, ok := ai.ChooseMove(g)
			if !ok || !g.MakeMove(move.Row, move.Col) {
				return fmt.Errorf("AI не смог сделать ход %s", move)
			}
			fmt.Fprintf(out, "AI ходит: %s\n", move)
			reportPass(out, g)
			continue
		}

		fmt.Fprint(out, "Ваш ход: ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		input := strings.ToLower(strings.TrimSpace(scanner.Text()))
		switch input {
		case "quit", "exit":
			fmt.Fprintln(out, "До свидания!")
			return nil
		case "new":
			g.Reset()
			continue
		case "hint":
			if move, ok := hinter.ChooseMove(g); ok {
				fmt.Fprintf(out, "Подсказка: %s\n", move)
			}
			continue
		case "undo":
			// откатываем ход AI и свой
			undone := false
			for g.Undo() {
				undone = true
				if g.CurrentPlayer() == human {
					break
				}
			}
			if !undone {
				fmt.Fprintln(out, "Нечего отменять")
			}
			continue
		}

		pos, ok := parsePosition(input)
		if !ok || !g.MakeMove(pos.Row, pos.Col) {
			fmt.Fprintln(out, "Некорректный ход! Попробуйте еще раз.")
			continue
		}
		reportPass(out, g)
	}
}

// reportPass сообщает о пропуске хода, если он случился
func reportPass(out io.Writer, g *game.Game) {
	if g.PassedLastTurn() && !g.IsGameOver() {
		fmt.Fprintf(out, "%s пропускают ход\n", colorLabel(g.CurrentPlayer().Opponent()))
	}
}

func handleGameOver(out io.Writer, g *game.Game, human game.Color, gamesPlayed int) {
	fmt.Fprintln(out, "\n=== ИГРА ОКОНЧЕНА ===")

	score := g.Score()
	winner, _ := g.Winner()
	switch winner {
	case human:
		fmt.Fprintln(out, "Вы победили!")
	case human.Opponent():
		fmt.Fprintln(out, "AI победил!")
	default:
		fmt.Fprintln(out, "Ничья!")
	}

	fmt.Fprintf(out, "Счет: черные %d, белые %d\n", score.Black, score.White)
	fmt.Fprintf(out, "Игр сыграно: %d\n\n", gamesPlayed)
}

// parsePosition разбирает клетку вида d3 (буква - столбец, цифра - строка)
func parsePosition(s string) (game.Position, bool) {
	if len(s) != 2 {
		return game.Position{}, false
	}
	pos := game.Position{Row: int(s[1] - '1'), Col: int(s[0] - 'a')}
	return pos, pos.InBounds()
}

func colorLabel(c game.Color) string {
	if c == game.White {
		return "белые"
	}
	return "черные"
}

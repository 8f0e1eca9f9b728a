package game

import (
	"fmt"
	"strings"
)

// Size - длина стороны доски
const Size = 8

// Цвет камня (или состояние клетки)
type Color int

const (
	// Invalid возвращается при чтении клетки за пределами доски
	Invalid Color = iota - 1
	Empty
	Black
	White
)

// Draw - результат партии вничью
const Draw = Empty

// Opponent возвращает цвет соперника
func (c Color) Opponent() Color {
	if c == Black {
		return White
	}
	return Black
}

func (c Color) String() string {
	switch c {
	case Black:
		return "black"
	case White:
		return "white"
	case Empty:
		return "empty"
	default:
		return "invalid"
	}
}

// MarshalText кодирует цвет названием ("black", "white", "empty")
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText разбирает название цвета
func (c *Color) UnmarshalText(text []byte) error {
	switch string(text) {
	case "empty", "draw":
		*c = Empty
	case "invalid":
		*c = Invalid
	default:
		color, err := ParseColor(string(text))
		if err != nil {
			return err
		}
		*c = color
	}
	return nil
}

// ParseColor разбирает название цвета игрока
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "black", "b":
		return Black, nil
	case "white", "w":
		return White, nil
	}
	return Invalid, fmt.Errorf("неизвестный цвет: %q", s)
}

// Позиция на доске
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// InBounds сообщает, лежит ли позиция на доске
func (p Position) InBounds() bool {
	return p.Row >= 0 && p.Row < Size && p.Col >= 0 && p.Col < Size
}

func (p Position) String() string {
	if !p.InBounds() {
		return "--"
	}
	return fmt.Sprintf("%c%d", 'a'+p.Col, p.Row+1)
}

// Counts - количество клеток каждого вида
type Counts struct {
	Black int `json:"black"`
	White int `json:"white"`
	Empty int `json:"empty"`
}

// Of возвращает счет для цвета
func (c Counts) Of(color Color) int {
	switch color {
	case Black:
		return c.Black
	case White:
		return c.White
	case Empty:
		return c.Empty
	}
	return 0
}

var directions = [8]Position{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Доска. Значение копируется целиком, поэтому присваивание дает независимый снимок
type Board struct {
	Cells [Size][Size]Color
}

// NewBoard создает доску с начальной расстановкой
func NewBoard() *Board {
	board := &Board{}
	board.setupInitialPosition()
	return board
}

// setupInitialPosition ставит четыре центральных камня
func (b *Board) setupInitialPosition() {
	center := Size / 2
	b.Cells[center-1][center-1] = White
	b.Cells[center-1][center] = Black
	b.Cells[center][center-1] = Black
	b.Cells[center][center] = White
}

// ParseBoard строит доску из восьми строк по восемь символов:
// '.' - пусто, 'B'/'X' - черный, 'W'/'O' - белый
func ParseBoard(rows ...string) (*Board, error) {
	if len(rows) != Size {
		return nil, fmt.Errorf("ожидалось %d строк, получено %d", Size, len(rows))
	}

	board := &Board{}
	for row, line := range rows {
		line = strings.ReplaceAll(line, " ", "")
		if len(line) != Size {
			return nil, fmt.Errorf("строка %d: ожидалось %d клеток, получено %d", row, Size, len(line))
		}
		for col, ch := range line {
			switch ch {
			case '.', '-':
				board.Cells[row][col] = Empty
			case 'B', 'b', 'X', 'x':
				board.Cells[row][col] = Black
			case 'W', 'w', 'O', 'o':
				board.Cells[row][col] = White
			default:
				return nil, fmt.Errorf("строка %d: неизвестный символ %q", row, ch)
			}
		}
	}
	return board, nil
}

// Cell возвращает состояние клетки или Invalid за пределами доски
func (b *Board) Cell(row, col int) Color {
	if !(Position{row, col}).InBounds() {
		return Invalid
	}
	return b.Cells[row][col]
}

// setCell ничего не делает для координат за пределами доски
func (b *Board) setCell(row, col int, color Color) {
	if (Position{row, col}).InBounds() {
		b.Cells[row][col] = color
	}
}

// IsEmpty сообщает, свободна ли клетка
func (b *Board) IsEmpty(row, col int) bool {
	return b.Cell(row, col) == Empty
}

// Flips возвращает камни, которые перевернутся при ходе player в (row, col).
// Для занятой клетки результат пустой.
func (b *Board) Flips(row, col int, player Color) []Position {
	if !b.IsEmpty(row, col) {
		return nil
	}

	opponent := player.Opponent()
	var flips []Position

	for _, dir := range directions {
		r, c := row+dir.Row, col+dir.Col
		start := len(flips)

		for b.Cell(r, c) == opponent {
			flips = append(flips, Position{r, c})
			r += dir.Row
			c += dir.Col
		}

		// линия без замыкающего камня игрока не переворачивается
		if len(flips) > start && b.Cell(r, c) != player {
			flips = flips[:start]
		}
	}

	return flips
}

// IsValidMove проверяет, переворачивает ли ход хотя бы один камень
func (b *Board) IsValidMove(row, col int, player Color) bool {
	return len(b.Flips(row, col, player)) > 0
}

// ValidMoves возвращает допустимые ходы в порядке обхода по строкам.
// На этот порядок опирается выбор первого из равных ходов у агентов.
func (b *Board) ValidMoves(player Color) []Position {
	var moves []Position
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			if b.IsValidMove(row, col, player) {
				moves = append(moves, Position{row, col})
			}
		}
	}
	return moves
}

// HasValidMove - то же, что len(ValidMoves) > 0, но без аллокаций
func (b *Board) HasValidMove(player Color) bool {
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			if b.IsValidMove(row, col, player) {
				return true
			}
		}
	}
	return false
}

// PlaceStone ставит камень и переворачивает захваченные.
// Единственный способ изменить доску; при недопустимом ходе доска не меняется.
func (b *Board) PlaceStone(row, col int, player Color) bool {
	flips := b.Flips(row, col, player)
	if len(flips) == 0 {
		return false
	}

	b.setCell(row, col, player)
	for _, pos := range flips {
		b.setCell(pos.Row, pos.Col, player)
	}
	return true
}

// CountStones считает камни обоих цветов и пустые клетки
func (b *Board) CountStones() Counts {
	var counts Counts
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			switch b.Cells[row][col] {
			case Black:
				counts.Black++
			case White:
				counts.White++
			default:
				counts.Empty++
			}
		}
	}
	return counts
}

// IsFull сообщает, что на доске нет пустых клеток
func (b *Board) IsFull() bool {
	return b.CountStones().Empty == 0
}

// Clone создает независимую копию доски
func (b *Board) Clone() *Board {
	clone := *b
	return &clone
}

// String возвращает строковое представление доски
func (b *Board) String() string {
	var sb strings.Builder

	sb.WriteString("  a b c d e f g h\n")
	for row := 0; row < Size; row++ {
		sb.WriteString(fmt.Sprintf("%d ", row+1))
		for col := 0; col < Size; col++ {
			sb.WriteString(cellToString(b.Cells[row][col]))
			sb.WriteString(" ")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// cellToString конвертирует клетку в символ
func cellToString(c Color) string {
	switch c {
	case Black:
		return "B"
	case White:
		return "W"
	}
	return "."
}

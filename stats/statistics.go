package stats

import (
	"encoding/json"
	"io"
	"sync"

	"othello-ai/agent"
	"othello-ai/game"
)

// GameResult представляет результат одной партии
type GameResult struct {
	GameNumber      int              `json:"gameNumber"`
	Winner          game.Color       `json:"winner"`
	BlackScore      int              `json:"blackScore"`
	WhiteScore      int              `json:"whiteScore"`
	TotalMoves      int              `json:"totalMoves"`
	BlackDifficulty agent.Difficulty `json:"blackDifficulty"`
	WhiteDifficulty agent.Difficulty `json:"whiteDifficulty"`
	Moves           []game.Move      `json:"moves,omitempty"`
}

// WinnerName возвращает победителя строкой: "black", "white" или "draw"
func (r GameResult) WinnerName() string {
	if r.Winner == game.Draw {
		return "draw"
	}
	return r.Winner.String()
}

// Statistics хранит статистику партий
type Statistics struct {
	TotalGames      int          `json:"totalGames"`
	BlackWins       int          `json:"blackWins"`
	WhiteWins       int          `json:"whiteWins"`
	Draws           int          `json:"draws"`
	TotalMoves      int          `json:"totalMoves"`
	TotalBlackScore int          `json:"totalBlackScore"`
	TotalWhiteScore int          `json:"totalWhiteScore"`
	MinMoves        int          `json:"minMoves"`
	MaxMoves        int          `json:"maxMoves"`
	Results         []GameResult `json:"results"`

	mu sync.Mutex
}

// NewStatistics создает пустую статистику
func NewStatistics() *Statistics {
	return &Statistics{
		Results: []GameResult{},
	}
}

// AddResult добавляет результат партии
func (s *Statistics) AddResult(result GameResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.TotalGames == 0 || result.TotalMoves < s.MinMoves {
		s.MinMoves = result.TotalMoves
	}
	if result.TotalMoves > s.MaxMoves {
		s.MaxMoves = result.TotalMoves
	}

	s.TotalGames++
	s.TotalMoves += result.TotalMoves
	s.TotalBlackScore += result.BlackScore
	s.TotalWhiteScore += result.WhiteScore

	switch result.Winner {
	case game.Black:
		s.BlackWins++
	case game.White:
		s.WhiteWins++
	default:
		s.Draws++
	}

	s.Results = append(s.Results, result)
}

// Merge добавляет все результаты другой статистики
func (s *Statistics) Merge(other *Statistics) {
	for _, result := range other.GetResults() {
		s.AddResult(result)
	}
}

// GetResults возвращает копию списка результатов
func (s *Statistics) GetResults() []GameResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]GameResult, len(s.Results))
	copy(results, s.Results)
	return results
}

// Snapshot возвращает независимую копию статистики
func (s *Statistics) Snapshot() *Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := &Statistics{
		TotalGames:      s.TotalGames,
		BlackWins:       s.BlackWins,
		WhiteWins:       s.WhiteWins,
		Draws:           s.Draws,
		TotalMoves:      s.TotalMoves,
		TotalBlackScore: s.TotalBlackScore,
		TotalWhiteScore: s.TotalWhiteScore,
		MinMoves:        s.MinMoves,
		MaxMoves:        s.MaxMoves,
		Results:         make([]GameResult, len(s.Results)),
	}
	copy(snapshot.Results, s.Results)
	return snapshot
}

// GetWinRate возвращает процент побед цвета
func (s *Statistics) GetWinRate(player game.Color) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.TotalGames == 0 {
		return 0
	}

	wins := s.WhiteWins
	if player == game.Black {
		wins = s.BlackWins
	}
	return float64(wins) * 100 / float64(s.TotalGames)
}

// GetDrawRate возвращает процент ничьих
func (s *Statistics) GetDrawRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.TotalGames == 0 {
		return 0
	}
	return float64(s.Draws) * 100 / float64(s.TotalGames)
}

// GetAverageScore возвращает средний счет цвета
func (s *Statistics) GetAverageScore(player game.Color) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.TotalGames == 0 {
		return 0
	}

	total := s.TotalWhiteScore
	if player == game.Black {
		total = s.TotalBlackScore
	}
	return float64(total) / float64(s.TotalGames)
}

// GetAverageMoves возвращает среднее число ходов в партии
func (s *Statistics) GetAverageMoves() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.TotalGames == 0 {
		return 0
	}
	return float64(s.TotalMoves) / float64(s.TotalGames)
}

// WriteJSON сохраняет статистику в JSON
func (s *Statistics) WriteJSON(w io.Writer) error {
	snapshot := s.Snapshot()

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(snapshot)
}

// ReadJSON загружает статистику из JSON
func ReadJSON(r io.Reader) (*Statistics, error) {
	s := NewStatistics()
	if err := json.NewDecoder(r).Decode(s); err != nil {
		return nil, err
	}
	return s, nil
}

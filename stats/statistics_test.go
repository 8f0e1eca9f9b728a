package stats

import (
	"bytes"
	"math"
	"sync"
	"testing"

	"othello-ai/agent"
	"othello-ai/game"
)

func result(winner game.Color, black, white, moves int) GameResult {
	return GameResult{
		Winner:          winner,
		BlackScore:      black,
		WhiteScore:      white,
		TotalMoves:      moves,
		BlackDifficulty: agent.Medium,
		WhiteDifficulty: agent.Easy,
	}
}

// TestNewStatistics проверяет пустую статистику
func TestNewStatistics(t *testing.T) {
	stats := NewStatistics()

	if stats == nil {
		t.Fatal("NewStatistics() returned nil")
	}
	if stats.Results == nil {
		t.Error("Results slice should not be nil")
	}
	if stats.TotalGames != 0 || stats.MinMoves != 0 || stats.MaxMoves != 0 {
		t.Errorf("Expected zero aggregates, got %+v", stats)
	}
}

// TestAddResult проверяет накопление агрегатов
func TestAddResult(t *testing.T) {
	stats := NewStatistics()

	stats.AddResult(result(game.Black, 40, 24, 30))
	if stats.TotalGames != 1 || stats.BlackWins != 1 || stats.MinMoves != 30 || stats.MaxMoves != 30 {
		t.Errorf("Unexpected aggregates after first game: %+v", stats)
	}

	stats.AddResult(result(game.White, 20, 44, 40))
	if stats.TotalGames != 2 || stats.WhiteWins != 1 || stats.TotalMoves != 70 {
		t.Errorf("Unexpected aggregates after second game: %+v", stats)
	}
	if stats.MinMoves != 30 || stats.MaxMoves != 40 {
		t.Errorf("Expected min 30 max 40, got %d/%d", stats.MinMoves, stats.MaxMoves)
	}

	stats.AddResult(result(game.Draw, 32, 32, 25))
	if stats.Draws != 1 || stats.MinMoves != 25 {
		t.Errorf("Unexpected aggregates after draw: %+v", stats)
	}

	if stats.TotalBlackScore != 92 || stats.TotalWhiteScore != 100 {
		t.Errorf("Expected total scores 92/100, got %d/%d", stats.TotalBlackScore, stats.TotalWhiteScore)
	}

	if len(stats.GetResults()) != 3 {
		t.Errorf("Expected 3 results, got %d", len(stats.GetResults()))
	}
}

// TestGetWinRate проверяет процент побед
func TestGetWinRate(t *testing.T) {
	stats := NewStatistics()
	stats.AddResult(result(game.Black, 40, 24, 30))
	stats.AddResult(result(game.White, 20, 44, 40))
	stats.AddResult(result(game.Draw, 32, 32, 35))

	if stats.TotalGames != 3 || stats.BlackWins != 1 || stats.WhiteWins != 1 || stats.Draws != 1 {
		t.Fatalf("Unexpected counts: %+v", stats)
	}

	if rate := stats.GetWinRate(game.Black); rate != 100.0/3 {
		t.Errorf("Expected black win rate 100/3, got %f", rate)
	}
	if rate := stats.GetWinRate(game.White); rate != 100.0/3 {
		t.Errorf("Expected white win rate 100/3, got %f", rate)
	}
	if rate := stats.GetDrawRate(); math.Abs(rate-100.0/3) > 1e-9 {
		t.Errorf("Expected draw rate 100/3, got %f", rate)
	}
}

// TestAverages проверяет средние значения
func TestAverages(t *testing.T) {
	stats := NewStatistics()

	if stats.GetWinRate(game.Black) != 0 || stats.GetAverageScore(game.White) != 0 || stats.GetAverageMoves() != 0 {
		t.Error("Empty statistics should return zeros")
	}

	stats.AddResult(result(game.Black, 40, 24, 30))
	stats.AddResult(result(game.White, 20, 44, 40))

	if avg := stats.GetAverageScore(game.Black); avg != 30 {
		t.Errorf("Expected black average 30, got %f", avg)
	}
	if avg := stats.GetAverageScore(game.White); avg != 34 {
		t.Errorf("Expected white average 34, got %f", avg)
	}
	if avg := stats.GetAverageMoves(); avg != 35 {
		t.Errorf("Expected average moves 35, got %f", avg)
	}
}

// TestSnapshot проверяет независимость снимка
func TestSnapshot(t *testing.T) {
	stats := NewStatistics()
	stats.AddResult(result(game.Black, 40, 24, 30))

	snapshot := stats.Snapshot()
	stats.AddResult(result(game.White, 20, 44, 40))

	if snapshot.TotalGames != 1 || len(snapshot.Results) != 1 {
		t.Errorf("Snapshot should not see later results, got %+v", snapshot)
	}
}

// TestMerge проверяет объединение статистики
func TestMerge(t *testing.T) {
	a := NewStatistics()
	a.AddResult(result(game.Black, 40, 24, 30))

	b := NewStatistics()
	b.AddResult(result(game.White, 20, 44, 20))
	b.AddResult(result(game.Draw, 32, 32, 60))

	a.Merge(b)

	if a.TotalGames != 3 || a.MinMoves != 20 || a.MaxMoves != 60 {
		t.Errorf("Unexpected merged aggregates: %+v", a)
	}
}

// TestWriteReadJSON проверяет сохранение и загрузку
func TestWriteReadJSON(t *testing.T) {
	stats := NewStatistics()
	r := result(game.Draw, 32, 32, 60)
	r.GameNumber = 42
	r.Moves = []game.Move{{Row: 2, Col: 3, Player: game.Black}}
	stats.AddResult(r)

	var buf bytes.Buffer
	if err := stats.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"winner": "empty"`)) {
		t.Errorf("Expected winner encoded by name, got %s", buf.String())
	}

	loaded, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}

	if loaded.TotalGames != 1 || loaded.Draws != 1 {
		t.Errorf("Unexpected loaded aggregates: %+v", loaded)
	}
	last := loaded.Results[0]
	if last.GameNumber != 42 || last.Winner != game.Draw || last.WinnerName() != "draw" {
		t.Errorf("Unexpected loaded result: %+v", last)
	}
	if len(last.Moves) != 1 || last.Moves[0].Player != game.Black {
		t.Errorf("Moves should survive a round trip, got %+v", last.Moves)
	}
}

// TestConcurrentAccess проверяет потокобезопасность
func TestConcurrentAccess(t *testing.T) {
	stats := NewStatistics()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r := result(game.Black, 40, 24, 30)
			r.GameNumber = n
			stats.AddResult(r)
		}(i)
	}
	wg.Wait()

	if stats.TotalGames != 10 || len(stats.Results) != 10 {
		t.Errorf("Expected 10 games after concurrent adds, got %d", stats.TotalGames)
	}
}

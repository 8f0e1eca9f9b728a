package selfplay

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"othello-ai/agent"
	"othello-ai/stats"
)

// Pairing - пара уровней: кто играет черными, кто белыми
type Pairing struct {
	Black agent.Difficulty `json:"black"`
	White agent.Difficulty `json:"white"`
}

// RoundRobin строит все пары уровней, включая зеркальные и одинаковые
func RoundRobin(levels []agent.Difficulty) []Pairing {
	pairings := make([]Pairing, 0, len(levels)*len(levels))
	for _, black := range levels {
		for _, white := range levels {
			pairings = append(pairings, Pairing{Black: black, White: white})
		}
	}
	return pairings
}

// TournamentResult - статистика одной пары
type TournamentResult struct {
	Pairing    Pairing           `json:"pairing"`
	Statistics *stats.Statistics `json:"statistics"`
}

// Tournament проводит серии Instant для нескольких пар параллельно
type Tournament struct {
	Pairings        []Pairing
	GamesPerPairing int
	// Workers ограничивает число одновременных серий; 0 - по числу CPU
	Workers      int
	AgentOptions []agent.Option
	Logger       *zap.Logger
	// Listeners получают события всех серий из разных горутин
	Listeners []Listener
}

// Run играет все пары и возвращает результаты в порядке Pairings.
// Первая ошибка отменяет оставшиеся серии.
func (t Tournament) Run(ctx context.Context) ([]TournamentResult, error) {
	logger := t.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := t.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]TournamentResult, len(t.Pairings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, pairing := range t.Pairings {
		i, pairing := i, pairing
		g.Go(func() error {
			opts := []Option{
				WithPlayMode(Instant),
				WithTargetGames(t.GamesPerPairing),
				WithAgentOptions(t.AgentOptions...),
				WithLogger(logger.With(
					zap.String("black", string(pairing.Black)),
					zap.String("white", string(pairing.White)),
				)),
			}
			for _, l := range t.Listeners {
				opts = append(opts, WithListener(l))
			}

			m := NewManager(opts...)
			if err := m.SetAgents(pairing.Black, pairing.White); err != nil {
				return err
			}
			if err := m.Start(gctx); err != nil {
				return err
			}
			if err := gctx.Err(); err != nil {
				return err
			}

			results[i] = TournamentResult{Pairing: pairing, Statistics: m.Statistics()}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

package selfplay

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"othello-ai/agent"
	"othello-ai/stats"
)

func TestRoundRobin(t *testing.T) {
	pairings := RoundRobin([]agent.Difficulty{agent.Easy, agent.Medium})

	assert.Equal(t, []Pairing{
		{Black: agent.Easy, White: agent.Easy},
		{Black: agent.Easy, White: agent.Medium},
		{Black: agent.Medium, White: agent.Easy},
		{Black: agent.Medium, White: agent.Medium},
	}, pairings)
}

func TestTournamentRun(t *testing.T) {
	var gameEnds atomic.Int32
	tournament := Tournament{
		Pairings:        RoundRobin([]agent.Difficulty{agent.Easy, agent.Medium, agent.Hard}),
		GamesPerPairing: 2,
		Workers:         3,
		AgentOptions:    []agent.Option{agent.WithSeed(3)},
		Listeners: []Listener{ListenerFuncs{
			GameEnd: func(stats.GameResult) { gameEnds.Add(1) },
		}},
	}

	results, err := tournament.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 9)

	for i, result := range results {
		assert.Equal(t, tournament.Pairings[i], result.Pairing, "порядок результатов совпадает с парами")
		require.NotNil(t, result.Statistics)
		assert.Equal(t, 2, result.Statistics.TotalGames)
		for _, r := range result.Statistics.Results {
			assert.Equal(t, result.Pairing.Black, r.BlackDifficulty)
			assert.Equal(t, result.Pairing.White, r.WhiteDifficulty)
		}
	}
	assert.EqualValues(t, 18, gameEnds.Load())
}

// TestTournamentDeterministic проверяет детерминированность неслучайных агентов
func TestTournamentDeterministic(t *testing.T) {
	tournament := Tournament{
		Pairings:        []Pairing{{Black: agent.Medium, White: agent.Hard}},
		GamesPerPairing: 3,
	}

	results, err := tournament.Run(context.Background())
	require.NoError(t, err)

	games := results[0].Statistics.Results
	require.Len(t, games, 3)
	assert.Equal(t, games[0].Moves, games[1].Moves)
	assert.Equal(t, games[1].Moves, games[2].Moves)
}

func TestTournamentErrors(t *testing.T) {
	_, err := Tournament{
		Pairings:        []Pairing{{Black: "grandmaster", White: agent.Easy}},
		GamesPerPairing: 1,
	}.Run(context.Background())
	assert.ErrorIs(t, err, agent.ErrUnknownDifficulty)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Tournament{
		Pairings:        []Pairing{{Black: agent.Easy, White: agent.Easy}},
		GamesPerPairing: 1,
	}.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

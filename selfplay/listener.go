package selfplay

import (
	"othello-ai/game"
	"othello-ai/stats"
)

// Listener получает события автоигры. Методы вызываются синхронно
// из управляющей горутины менеджера. Stop из них блокируется навсегда,
// для остановки серии из слушателя есть RequestStop.
type Listener interface {
	OnStateUpdate(progress Progress)
	OnMoveMade(move game.Position, player game.Color)
	OnGameEnd(result stats.GameResult)
	OnAllGamesEnd(statistics *stats.Statistics)
}

// NopListener игнорирует все события; удобно встраивать
type NopListener struct{}

func (NopListener) OnStateUpdate(Progress)               {}
func (NopListener) OnMoveMade(game.Position, game.Color) {}
func (NopListener) OnGameEnd(stats.GameResult)           {}
func (NopListener) OnAllGamesEnd(*stats.Statistics)      {}

// ListenerFuncs превращает набор функций в Listener; nil-поля пропускаются
type ListenerFuncs struct {
	StateUpdate func(progress Progress)
	MoveMade    func(move game.Position, player game.Color)
	GameEnd     func(result stats.GameResult)
	AllGamesEnd func(statistics *stats.Statistics)
}

func (f ListenerFuncs) OnStateUpdate(progress Progress) {
	if f.StateUpdate != nil {
		f.StateUpdate(progress)
	}
}

func (f ListenerFuncs) OnMoveMade(move game.Position, player game.Color) {
	if f.MoveMade != nil {
		f.MoveMade(move, player)
	}
}

func (f ListenerFuncs) OnGameEnd(result stats.GameResult) {
	if f.GameEnd != nil {
		f.GameEnd(result)
	}
}

func (f ListenerFuncs) OnAllGamesEnd(statistics *stats.Statistics) {
	if f.AllGamesEnd != nil {
		f.AllGamesEnd(statistics)
	}
}

package selfplay

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"othello-ai/agent"
)

// State - состояние автоигры
type State int

const (
	Idle State = iota
	Playing
	Paused
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText кодирует состояние названием
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText разбирает состояние из названия
func (s *State) UnmarshalText(text []byte) error {
	for _, state := range []State{Idle, Playing, Paused, Finished} {
		if state.String() == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("неизвестное состояние: %q", text)
}

// PlayMode - режим темпа автоигры
type PlayMode int

const (
	// Normal - пауза PlaySpeed после каждого хода
	Normal PlayMode = iota
	// Step - один ход на каждый вызов Step
	Step
	// Instant - все партии подряд без задержек
	Instant
)

// ErrUnknownPlayMode возвращается для неизвестного режима
var ErrUnknownPlayMode = errors.New("неизвестный режим игры")

func (m PlayMode) String() string {
	switch m {
	case Normal:
		return "normal"
	case Step:
		return "step"
	case Instant:
		return "instant"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// MarshalText кодирует режим названием
func (m PlayMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText разбирает режим из названия
func (m *PlayMode) UnmarshalText(text []byte) error {
	mode, err := ParsePlayMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParsePlayMode разбирает режим из строки
func ParsePlayMode(s string) (PlayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal":
		return Normal, nil
	case "step":
		return Step, nil
	case "instant":
		return Instant, nil
	}
	return Normal, fmt.Errorf("%w: %q", ErrUnknownPlayMode, s)
}

// Границы и значение по умолчанию для задержки между ходами
const (
	MinSpeed     = 100 * time.Millisecond
	MaxSpeed     = 3 * time.Second
	DefaultSpeed = time.Second
)

// ClampSpeed приводит задержку к допустимому диапазону
func ClampSpeed(d time.Duration) time.Duration {
	if d < MinSpeed {
		return MinSpeed
	}
	if d > MaxSpeed {
		return MaxSpeed
	}
	return d
}

// Progress - снимок состояния автоигры для отображения.
// Уведомление с State == Playing и CurrentGame == 0 приходит ровно один раз
// на серию, из Start до первой партии.
type Progress struct {
	State       State            `json:"state"`
	Mode        PlayMode         `json:"mode"`
	Speed       float64          `json:"speed"` // секунд на ход
	CurrentGame int              `json:"currentGame"`
	TargetGames int              `json:"targetGames"`
	MovesPlayed int              `json:"movesPlayed"`
	Black       agent.Difficulty `json:"black,omitempty"`
	White       agent.Difficulty `json:"white,omitempty"`
	BlackWins   int              `json:"blackWins"`
	WhiteWins   int              `json:"whiteWins"`
	Draws       int              `json:"draws"`
}

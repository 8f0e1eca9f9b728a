package ui

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"othello-ai/game"
	"othello-ai/selfplay"
	"othello-ai/stats"
)

const (
	wsIdlePingInterval = 30 * time.Second
	wsSendBuffer       = 256
)

// Типы событий websocket
const (
	EventSession     = "session"
	EventState       = "state"
	EventMove        = "move"
	EventGameEnd     = "game_end"
	EventAllGamesEnd = "all_games_end"
	EventPing        = "ping"
)

// Event - сообщение websocket
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub рассылает события всем подключенным клиентам.
// Медленный клиент теряет сообщения, но не тормозит остальных.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	logger  *zap.Logger
}

// NewHub создает пустой хаб
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
	}
}

// Publish отправляет событие всем клиентам
func (h *Hub) Publish(eventType string, payload any) {
	if h.Clients() == 0 {
		return
	}
	data, err := encodeEvent(eventType, payload)
	if err != nil {
		h.logger.Error("не удалось закодировать событие", zap.String("type", eventType), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// Clients возвращает число подключенных клиентов
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Close отключает всех клиентов
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func encodeEvent(eventType string, payload any) ([]byte, error) {
	event := Event{Type: eventType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		event.Payload = raw
	}
	return json.Marshal(event)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serveWS подключает клиента; первыми он получает снимки состояния
func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request, initial ...[]byte) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, wsSendBuffer)}
	for _, msg := range initial {
		c.send <- msg
	}
	h.register(c)

	go func() {
		defer conn.Close()
		if err := writeWithHeartbeat(conn, c.send); err != nil {
			h.logger.Debug("websocket закрыт", zap.Error(err))
		}
	}()

	// клиент ничего не присылает; чтение нужно, чтобы заметить разрыв
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.unregister(c)
			return
		}
	}
}

func writeWithHeartbeat(conn *websocket.Conn, send <-chan []byte) error {
	ticker := time.NewTicker(wsIdlePingInterval)
	defer ticker.Stop()
	lastWrite := time.Now()
	ping, _ := encodeEvent(EventPing, nil)

	for {
		select {
		case msg, ok := <-send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return nil
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return err
			}
			lastWrite = time.Now()
		case <-ticker.C:
			if time.Since(lastWrite) < wsIdlePingInterval {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				return err
			}
			lastWrite = time.Now()
		}
	}
}

// autoplayEvents транслирует события менеджера в хаб
type autoplayEvents struct {
	hub     *Hub
	manager *selfplay.Manager
}

// AutoplayState - состояние автоигры с текущей доской
type AutoplayState struct {
	Progress selfplay.Progress `json:"progress"`
	Board    BoardState        `json:"board"`
}

type moveEvent struct {
	Move   game.Position `json:"move"`
	Player game.Color    `json:"player"`
}

func (e autoplayEvents) OnStateUpdate(progress selfplay.Progress) {
	if e.hub.Clients() == 0 {
		return
	}
	e.hub.Publish(EventState, AutoplayState{
		Progress: progress,
		Board:    newBoardState(e.manager.Game()),
	})
}

func (e autoplayEvents) OnMoveMade(move game.Position, player game.Color) {
	e.hub.Publish(EventMove, moveEvent{Move: move, Player: player})
}

func (e autoplayEvents) OnGameEnd(result stats.GameResult) {
	e.hub.Publish(EventGameEnd, result)
}

func (e autoplayEvents) OnAllGamesEnd(statistics *stats.Statistics) {
	e.hub.Publish(EventAllGamesEnd, newStatsResponse(statistics))
}

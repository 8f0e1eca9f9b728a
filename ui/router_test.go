package ui

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"othello-ai/database"
	"othello-ai/game"
	"othello-ai/selfplay"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := NewServer(opts)
	t.Cleanup(func() {
		s.Manager().Stop()
		s.Session().Wait()
	})
	return s
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "ответ: %s", rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	r := newTestServer(t, Options{}).Router()

	rec := doRequest(t, r, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
}

func TestSessionState(t *testing.T) {
	r := newTestServer(t, Options{}).Router()

	rec := doRequest(t, r, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)

	state := decode[SessionState](t, rec)
	assert.Equal(t, game.Black, state.CurrentPlayer)
	assert.Len(t, state.ValidMoves, 4)
	assert.Equal(t, game.Counts{Black: 2, White: 2, Empty: 60}, state.Score)
	assert.Equal(t, game.White, state.Cells[3][3])
	assert.False(t, state.GameOver)
	assert.Contains(t, rec.Body.String(), `"currentPlayer":"black"`)
}

func TestMoveHandler(t *testing.T) {
	r := newTestServer(t, Options{}).Router()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "illegal square", body: `{"row":0,"col":0}`, status: http.StatusBadRequest},
		{name: "off board", body: `{"row":8,"col":1}`, status: http.StatusBadRequest},
		{name: "missing col", body: `{"row":2}`, status: http.StatusBadRequest},
		{name: "broken json", body: `{"row":`, status: http.StatusBadRequest},
		{name: "legal move", body: `{"row":2,"col":3}`, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, r, http.MethodPost, "/api/move", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				body := decode[map[string]string](t, rec)
				assert.NotEmpty(t, body["error"])
				assert.NotEmpty(t, body["details"])
			}
		})
	}

	state := decode[SessionState](t, doRequest(t, r, http.MethodGet, "/api/state", ""))
	assert.Equal(t, 1, state.MovesCount)
	assert.Equal(t, game.White, state.CurrentPlayer)
	require.NotNil(t, state.LastMove)
	assert.Equal(t, game.Move{Row: 2, Col: 3, Player: game.Black}, *state.LastMove)
}

// TestOpponentReplies проверяет ответ ИИ-соперника и отмену хода
func TestOpponentReplies(t *testing.T) {
	s := newTestServer(t, Options{})
	r := s.Router()

	rec := doRequest(t, r, http.MethodPut, "/api/opponent", `{"difficulty":"medium","color":"white"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "medium", string(decode[SessionState](t, rec).Opponent))

	rec = doRequest(t, r, http.MethodPost, "/api/move", `{"row":2,"col":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	s.Session().Wait()

	state := decode[SessionState](t, doRequest(t, r, http.MethodGet, "/api/state", ""))
	assert.Equal(t, 2, state.MovesCount, "соперник ответил")
	assert.Equal(t, game.Black, state.CurrentPlayer)
	assert.False(t, state.Thinking)

	rec = doRequest(t, r, http.MethodPost, "/api/undo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	undo := decode[struct {
		Undone bool         `json:"undone"`
		State  SessionState `json:"state"`
	}](t, rec)
	assert.True(t, undo.Undone)
	assert.Equal(t, 0, undo.State.MovesCount, "отменяются ход игрока и ответ")

	rec = doRequest(t, r, http.MethodPost, "/api/undo", "")
	assert.False(t, decode[map[string]any](t, rec)["undone"].(bool))

	rec = doRequest(t, r, http.MethodPut, "/api/opponent", `{"difficulty":"grandmaster"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doRequest(t, r, http.MethodPut, "/api/opponent", `{"difficulty":"easy","color":"green"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, r, http.MethodPut, "/api/opponent", `{"difficulty":"off"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[SessionState](t, rec).Opponent)
}

// TestOpponentMovesFirst проверяет соперника за черных
func TestOpponentMovesFirst(t *testing.T) {
	s := newTestServer(t, Options{})
	r := s.Router()

	rec := doRequest(t, r, http.MethodPut, "/api/opponent", `{"difficulty":"hard","color":"black"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	s.Session().Wait()

	state := s.Session().State()
	assert.Equal(t, 1, state.MovesCount)
	assert.Equal(t, game.White, state.CurrentPlayer)

	rec = doRequest(t, r, http.MethodPost, "/api/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	s.Session().Wait()
	assert.Equal(t, 1, s.Session().State().MovesCount, "после сброса соперник снова ходит первым")
}

func TestEvaluationHandler(t *testing.T) {
	r := newTestServer(t, Options{}).Router()

	rec := doRequest(t, r, http.MethodGet, "/api/evaluation", "")
	require.Equal(t, http.StatusOK, rec.Code)

	scores := decode[[]MoveScore](t, rec)
	require.Len(t, scores, 4)
	assert.Equal(t, 2, scores[0].Row)
	assert.Equal(t, 3, scores[0].Col)
	g := game.NewGame()
	for _, s := range scores {
		assert.Contains(t, g.ValidMoves(), game.Position{Row: s.Row, Col: s.Col})
	}
}

// TestAutoplayFlow проверяет настройку, запуск и статистику автоигры
func TestAutoplayFlow(t *testing.T) {
	s := newTestServer(t, Options{})
	r := s.Router()

	rec := doRequest(t, r, http.MethodPost, "/api/autoplay/start", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "без агентов запуск невозможен")

	rec = doRequest(t, r, http.MethodPut, "/api/autoplay/config", `{"mode":"turbo"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doRequest(t, r, http.MethodPut, "/api/autoplay/config", `{"black":"grandmaster"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, r, http.MethodPut, "/api/autoplay/config",
		`{"mode":"instant","speed":0.01,"games":2,"black":"easy","white":"medium"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	state := decode[AutoplayState](t, rec)
	assert.Equal(t, selfplay.Instant, state.Progress.Mode)
	assert.Equal(t, 0.1, state.Progress.Speed)
	assert.Equal(t, 2, state.Progress.TargetGames)

	rec = doRequest(t, r, http.MethodPost, "/api/autoplay/pause", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "пауза в Idle")

	rec = doRequest(t, r, http.MethodPost, "/api/autoplay/start", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s.Manager().Wait()

	rec = doRequest(t, r, http.MethodGet, "/api/autoplay", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"finished"`)

	rec = doRequest(t, r, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[StatsResponse](t, rec)
	assert.Equal(t, 2, summary.TotalGames)
	assert.Len(t, summary.Results, 2)
	assert.InDelta(t, 100, summary.BlackWinRate+summary.WhiteWinRate+summary.DrawRate, 1e-9)

	rec = doRequest(t, r, http.MethodGet, "/api/autoplay/evaluation", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]MoveScore](t, rec), "партия окончена")

	rec = doRequest(t, r, http.MethodPost, "/api/autoplay/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, selfplay.Idle, s.Manager().State())
}

func TestAutoplayStepCommands(t *testing.T) {
	s := newTestServer(t, Options{})
	r := s.Router()

	rec := doRequest(t, r, http.MethodPut, "/api/autoplay/config", `{"mode":"step","black":"hard","white":"expert","searchDepth":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, s.Manager().Agent(game.White).SearchDepth())

	require.Equal(t, http.StatusOK, doRequest(t, r, http.MethodPost, "/api/autoplay/start", "").Code)
	require.Eventually(t, func() bool { return s.Manager().State() == selfplay.Paused }, 2*time.Second, 5*time.Millisecond)

	rec = doRequest(t, r, http.MethodPost, "/api/autoplay/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "повторный запуск")

	rec = doRequest(t, r, http.MethodGet, "/api/autoplay/evaluation", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]MoveScore](t, rec), 4)

	require.Equal(t, http.StatusOK, doRequest(t, r, http.MethodPost, "/api/autoplay/step", "").Code)
	require.Eventually(t, func() bool {
		return s.Manager().State() == selfplay.Paused && s.Manager().Game().MovesCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, http.StatusOK, doRequest(t, r, http.MethodPost, "/api/autoplay/skip", "").Code)
	require.Eventually(t, func() bool {
		return s.Manager().Progress().CurrentGame == 1 && s.Manager().State() == selfplay.Finished
	},
		2*time.Second, 5*time.Millisecond)
}

func TestArchiveWithoutDatabase(t *testing.T) {
	r := newTestServer(t, Options{}).Router()

	for _, path := range []string{"/api/runs", "/api/runs/x/games", "/api/games/1/moves", "/api/book"} {
		rec := doRequest(t, r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

// TestArchiveEndpoints проверяет чтение архива после записанной серии
func TestArchiveEndpoints(t *testing.T) {
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := newTestServer(t, Options{Database: db})
	r := s.Router()

	rec := doRequest(t, r, http.MethodPut, "/api/autoplay/config", `{"mode":"instant","games":2,"black":"medium","white":"hard"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, http.StatusOK, doRequest(t, r, http.MethodPost, "/api/autoplay/start", "").Code)
	s.Manager().Wait()

	rec = doRequest(t, r, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]database.Run](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, "instant", runs[0].Mode)
	assert.Equal(t, 2, runs[0].GamesPlayed)

	rec = doRequest(t, r, http.MethodGet, "/api/runs?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, r, http.MethodGet, "/api/runs/"+runs[0].ID+"/games", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Run   database.Run          `json:"run"`
		Games []database.GameRecord `json:"games"`
	}](t, rec)
	require.Len(t, body.Games, 2)

	rec = doRequest(t, r, http.MethodGet, "/api/runs/missing/games", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, r, http.MethodGet, "/api/games/abc/moves", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := "/api/games/" + strconv.FormatInt(body.Games[0].ID, 10) + "/moves"
	rec = doRequest(t, r, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]database.MoveRecord](t, rec), body.Games[0].MovesCount)

	// обе партии детерминированы и начинаются с одной позиции
	rec = doRequest(t, r, http.MethodGet, "/api/book", "")
	require.Equal(t, http.StatusOK, rec.Code)
	book := decode[database.PositionStats](t, rec)
	assert.Equal(t, 2, book.Total)
}

// TestEventsStream проверяет поток событий websocket
func TestEventsStream(t *testing.T) {
	s := newTestServer(t, Options{})
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	read := func() Event {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var event Event
		require.NoError(t, conn.ReadJSON(&event))
		return event
	}

	assert.Equal(t, EventSession, read().Type)
	assert.Equal(t, EventState, read().Type)
	require.Eventually(t, func() bool { return s.Hub().Clients() == 1 }, time.Second, 5*time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/move", "application/json", strings.NewReader(`{"row":2,"col":3}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	event := read()
	require.Equal(t, EventSession, event.Type)
	var state SessionState
	require.NoError(t, json.Unmarshal(event.Payload, &state))
	assert.Equal(t, 1, state.MovesCount)

	s.Manager().SetPlayMode(selfplay.Instant)
	require.NoError(t, s.Manager().SetAgents("medium", "medium"))
	require.NoError(t, s.Manager().Launch(s.runContext()))
	s.Manager().Wait()

	seen := map[string]bool{}
	for !seen[EventAllGamesEnd] {
		seen[read().Type] = true
	}
	assert.True(t, seen[EventMove])
	assert.True(t, seen[EventGameEnd])
	assert.True(t, seen[EventState])
}

package ui

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"othello-ai/agent"
	"othello-ai/database"
	"othello-ai/game"
	"othello-ai/selfplay"
	"othello-ai/stats"
)

var (
	// ErrInvalidState - команда недоступна в текущем состоянии автоигры
	ErrInvalidState = errors.New("команда недоступна в текущем состоянии")
	// ErrNoArchive - сервер запущен без базы данных
	ErrNoArchive = errors.New("архив не подключен")
)

type moveRequest struct {
	Row *int `json:"row" binding:"required"`
	Col *int `json:"col" binding:"required"`
}

type opponentRequest struct {
	Difficulty string `json:"difficulty"`
	Color      string `json:"color"`
}

type autoplayConfigRequest struct {
	Mode        *string  `json:"mode"`
	Speed       *float64 `json:"speed"`
	Games       *int     `json:"games"`
	Black       *string  `json:"black"`
	White       *string  `json:"white"`
	SearchDepth *int     `json:"searchDepth"`
}

// MoveScore - оценка одного хода
type MoveScore struct {
	Row   int `json:"row"`
	Col   int `json:"col"`
	Score int `json:"score"`
}

// StatsResponse - сводка статистики серии
type StatsResponse struct {
	TotalGames        int                `json:"totalGames"`
	BlackWins         int                `json:"blackWins"`
	WhiteWins         int                `json:"whiteWins"`
	Draws             int                `json:"draws"`
	BlackWinRate      float64            `json:"blackWinRate"`
	WhiteWinRate      float64            `json:"whiteWinRate"`
	DrawRate          float64            `json:"drawRate"`
	AverageBlackScore float64            `json:"averageBlackScore"`
	AverageWhiteScore float64            `json:"averageWhiteScore"`
	AverageMoves      float64            `json:"averageMoves"`
	MinMoves          int                `json:"minMoves"`
	MaxMoves          int                `json:"maxMoves"`
	Results           []stats.GameResult `json:"results"`
}

func newStatsResponse(s *stats.Statistics) StatsResponse {
	// ходы партий в сводку не попадают
	results := s.GetResults()
	for i := range results {
		results[i].Moves = nil
	}

	return StatsResponse{
		TotalGames:        s.TotalGames,
		BlackWins:         s.BlackWins,
		WhiteWins:         s.WhiteWins,
		Draws:             s.Draws,
		BlackWinRate:      s.GetWinRate(game.Black),
		WhiteWinRate:      s.GetWinRate(game.White),
		DrawRate:          s.GetDrawRate(),
		AverageBlackScore: s.GetAverageScore(game.Black),
		AverageWhiteScore: s.GetAverageScore(game.White),
		AverageMoves:      s.GetAverageMoves(),
		MinMoves:          s.MinMoves,
		MaxMoves:          s.MaxMoves,
		Results:           results,
	}
}

// evaluationList упорядочивает оценки по строкам
func evaluationList(scores map[game.Position]int) []MoveScore {
	list := make([]MoveScore, 0, len(scores))
	for pos, score := range scores {
		list = append(list, MoveScore{Row: pos.Row, Col: pos.Col, Score: score})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Row != list[j].Row {
			return list[i].Row < list[j].Row
		}
		return list[i].Col < list[j].Col
	})
	return list
}

func (s *Server) autoplayState() AutoplayState {
	return AutoplayState{
		Progress: s.manager.Progress(),
		Board:    newBoardState(s.manager.Game()),
	}
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.State())
}

func (s *Server) handleMove(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "тело запроса должно содержать row и col", err)
		return
	}
	if !(game.Position{Row: *req.Row, Col: *req.Col}).InBounds() {
		writeError(c, http.StatusBadRequest, "координаты вне доски",
			fmt.Errorf("(%d, %d)", *req.Row, *req.Col))
		return
	}

	state, err := s.session.Move(*req.Row, *req.Col)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleUndo(c *gin.Context) {
	state, ok := s.session.Undo()
	c.JSON(http.StatusOK, gin.H{"undone": ok, "state": state})
}

func (s *Server) handleReset(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.Reset())
}

func (s *Server) handleOpponent(c *gin.Context) {
	var req opponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "тело запроса имеет неверный формат", err)
		return
	}

	color := game.White
	if req.Color != "" {
		parsed, err := game.ParseColor(req.Color)
		if err != nil {
			writeError(c, http.StatusBadRequest, "неизвестный цвет", err)
			return
		}
		color = parsed
	}

	state, err := s.session.SetOpponent(req.Difficulty, color)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleEvaluation(c *gin.Context) {
	c.JSON(http.StatusOK, evaluationList(s.session.Evaluation()))
}

func (s *Server) handleAutoplayState(c *gin.Context) {
	c.JSON(http.StatusOK, s.autoplayState())
}

func (s *Server) handleAutoplayConfig(c *gin.Context) {
	var req autoplayConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "тело запроса имеет неверный формат", err)
		return
	}

	// сначала все проверки, затем изменения
	var mode selfplay.PlayMode
	if req.Mode != nil {
		parsed, err := selfplay.ParsePlayMode(*req.Mode)
		if err != nil {
			handleError(c, err)
			return
		}
		mode = parsed
	}

	agents := map[game.Color]*string{game.Black: req.Black, game.White: req.White}
	replacements := make(map[game.Color]*agent.Agent)
	for _, color := range []game.Color{game.Black, game.White} {
		tag := agents[color]
		current := s.manager.Agent(color)
		if tag == nil && (req.SearchDepth == nil || current == nil) {
			continue
		}

		var difficulty agent.Difficulty
		if tag != nil {
			parsed, err := agent.ParseDifficulty(*tag)
			if err != nil {
				handleError(c, err)
				return
			}
			difficulty = parsed
		} else {
			difficulty = current.Difficulty()
		}

		depth := agent.DefaultSearchDepth
		if req.SearchDepth != nil {
			depth = *req.SearchDepth
		} else if current != nil {
			depth = current.SearchDepth()
		}

		a, err := agent.NewAgent(difficulty, agent.WithSearchDepth(depth))
		if err != nil {
			handleError(c, err)
			return
		}
		replacements[color] = a
	}

	if req.Mode != nil {
		s.manager.SetPlayMode(mode)
	}
	if req.Speed != nil {
		s.manager.SetPlaySpeed(*req.Speed)
	}
	if req.Games != nil {
		s.manager.SetTargetGames(*req.Games)
	}
	for color, a := range replacements {
		s.manager.SetAgent(color, a)
	}

	c.JSON(http.StatusOK, s.autoplayState())
}

func (s *Server) handleAutoplayStart(c *gin.Context) {
	if err := s.manager.Launch(s.runContext()); err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.autoplayState())
}

func (s *Server) handleAutoplayCommand(command func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !command() {
			writeError(c, http.StatusConflict, "команда отклонена",
				fmt.Errorf("%w: %s", ErrInvalidState, s.manager.State()))
			return
		}
		c.JSON(http.StatusOK, s.autoplayState())
	}
}

func (s *Server) handleAutoplayStop(c *gin.Context) {
	s.manager.Stop()
	c.JSON(http.StatusOK, s.autoplayState())
}

func (s *Server) handleAutoplayEvaluation(c *gin.Context) {
	c.JSON(http.StatusOK, evaluationList(s.manager.EvaluationMap()))
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, newStatsResponse(s.manager.Statistics()))
}

func (s *Server) requireArchive(c *gin.Context) bool {
	if s.db == nil {
		writeError(c, http.StatusNotFound, "архив партий недоступен", ErrNoArchive)
		return false
	}
	return true
}

func (s *Server) handleRuns(c *gin.Context) {
	if !s.requireArchive(c) {
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(c, http.StatusBadRequest, "limit должен быть положительным числом",
				fmt.Errorf("limit=%q", raw))
			return
		}
		limit = parsed
	}

	runs, err := s.db.ListRuns(c.Request.Context(), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (s *Server) handleRunGames(c *gin.Context) {
	if !s.requireArchive(c) {
		return
	}

	ctx := c.Request.Context()
	run, err := s.db.GetRun(ctx, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	games, err := s.db.ListGames(ctx, run.ID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "games": games})
}

func (s *Server) handleGameMoves(c *gin.Context) {
	if !s.requireArchive(c) {
		return
	}

	gameID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, "неверный идентификатор партии", err)
		return
	}
	moves, err := s.db.GameMoves(c.Request.Context(), gameID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, moves)
}

// handleBook возвращает статистику архива для позиции интерактивной партии
func (s *Server) handleBook(c *gin.Context) {
	if !s.requireArchive(c) {
		return
	}

	hash := database.GenerateBoardHash(s.session.Game().Board())
	ps, err := s.db.GetPositionStats(c.Request.Context(), hash)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, ps)
}

func (s *Server) handleEvents(c *gin.Context) {
	session, err := encodeEvent(EventSession, s.session.State())
	if err != nil {
		handleError(c, err)
		return
	}
	autoplay, err := encodeEvent(EventState, s.autoplayState())
	if err != nil {
		handleError(c, err)
		return
	}
	s.hub.serveWS(c.Writer, c.Request, session, autoplay)
}

// handleError переводит ошибки в HTTP-статусы
func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidMove):
		writeError(c, http.StatusBadRequest, "недопустимый ход", err)
	case errors.Is(err, ErrGameOver), errors.Is(err, ErrOpponentTurn):
		writeError(c, http.StatusConflict, "ход сейчас невозможен", err)
	case errors.Is(err, agent.ErrUnknownDifficulty):
		writeError(c, http.StatusBadRequest, "неизвестный уровень сложности", err)
	case errors.Is(err, selfplay.ErrUnknownPlayMode):
		writeError(c, http.StatusBadRequest, "неизвестный режим игры", err)
	case errors.Is(err, selfplay.ErrAgentsNotConfigured):
		writeError(c, http.StatusBadRequest, "агенты не назначены", err)
	case errors.Is(err, selfplay.ErrAlreadyRunning):
		writeError(c, http.StatusConflict, "автоигра уже идет", err)
	case errors.Is(err, database.ErrNotFound):
		writeError(c, http.StatusNotFound, "не найдено", err)
	default:
		writeError(c, http.StatusInternalServerError, "внутренняя ошибка", err)
	}
}

func writeError(c *gin.Context, status int, message string, err error) {
	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

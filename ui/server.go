package ui

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"othello-ai/database"
	"othello-ai/selfplay"
)

// Options - зависимости сервера; незаданные создаются по умолчанию
type Options struct {
	Manager  *selfplay.Manager
	Session  *Session
	Database *database.Database // nil - архив не подключен
	Logger   *zap.Logger
}

// Server обслуживает JSON API и поток событий для интерактивной партии и автоигры
type Server struct {
	manager  *selfplay.Manager
	session  *Session
	hub      *Hub
	db       *database.Database
	recorder *database.Recorder
	logger   *zap.Logger

	mu      sync.Mutex
	baseCtx context.Context
}

// NewServer собирает сервер и подписывает его на события менеджера и партии
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		manager: opts.Manager,
		session: opts.Session,
		hub:     NewHub(logger.Named("hub")),
		db:      opts.Database,
		logger:  logger,
		baseCtx: context.Background(),
	}
	if s.manager == nil {
		s.manager = selfplay.NewManager(selfplay.WithLogger(logger.Named("autoplay")))
	}
	if s.session == nil {
		s.session = NewSession(logger.Named("session"))
	}

	s.manager.AddListener(autoplayEvents{hub: s.hub, manager: s.manager})
	if s.db != nil {
		s.recorder = database.NewRecorder(s.db, logger.Named("recorder"))
		s.manager.AddListener(s.recorder)
	}
	s.session.OnChange(func(state SessionState) {
		s.hub.Publish(EventSession, state)
	})

	return s
}

// Manager возвращает менеджер автоигры
func (s *Server) Manager() *selfplay.Manager {
	return s.manager
}

// Session возвращает интерактивную партию
func (s *Server) Session() *Session {
	return s.session
}

// Hub возвращает хаб событий
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

// Run обслуживает addr до отмены ctx, затем останавливает автоигру
// и закрывает соединения
func (s *Server) Run(ctx context.Context, addr string) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("сервер запущен", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.manager.Stop()
	s.session.Wait()
	s.hub.Close()
	err := srv.Shutdown(shutdownCtx)
	s.logger.Info("сервер остановлен")
	return err
}

// Router создает gin.Engine со всеми маршрутами
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(s.logger.Named("http")), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	api := r.Group("/api")
	{
		api.GET("/state", s.handleState)
		api.POST("/move", s.handleMove)
		api.POST("/undo", s.handleUndo)
		api.POST("/reset", s.handleReset)
		api.PUT("/opponent", s.handleOpponent)
		api.GET("/evaluation", s.handleEvaluation)

		autoplay := api.Group("/autoplay")
		autoplay.GET("", s.handleAutoplayState)
		autoplay.PUT("/config", s.handleAutoplayConfig)
		autoplay.POST("/start", s.handleAutoplayStart)
		autoplay.POST("/pause", s.handleAutoplayCommand(s.manager.Pause))
		autoplay.POST("/resume", s.handleAutoplayCommand(s.manager.Resume))
		autoplay.POST("/step", s.handleAutoplayCommand(s.manager.Step))
		autoplay.POST("/skip", s.handleAutoplayCommand(s.manager.SkipCurrentGame))
		autoplay.POST("/stop", s.handleAutoplayStop)
		autoplay.GET("/evaluation", s.handleAutoplayEvaluation)

		api.GET("/stats", s.handleStats)

		api.GET("/runs", s.handleRuns)
		api.GET("/runs/:id/games", s.handleRunGames)
		api.GET("/games/:id/moves", s.handleGameMoves)
		api.GET("/book", s.handleBook)

		api.GET("/events", s.handleEvents)
	}

	return r
}

// requestLogger пишет каждый запрос в zap
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Debug("request", fields...)
		}
	}
}

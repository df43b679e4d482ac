// Package server is the browser shell: upload a PDF, ask questions, read the
// transcript. Each browser gets its own session through a cookie.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"document-qa/internal/metrics"
	"document-qa/internal/session"
)

const sessionCookie = "docqa_session"

type Server struct {
	sessions  *session.Manager
	metrics   *metrics.Metrics
	startedAt time.Time
}

func New(sessions *session.Manager, m *metrics.Metrics, startedAt time.Time) *Server {
	if m == nil {
		m = metrics.New()
	}
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	return &Server{sessions: sessions, metrics: m, startedAt: startedAt}
}

// Router returns the gin engine serving the shell and its JSON API.
func (s *Server) Router(ginMode string) *gin.Engine {
	if ginMode != "" {
		gin.SetMode(ginMode)
	}
	router := gin.New()
	router.Use(accessLog(s.metrics), gin.Recovery())

	router.GET("/", s.Index)
	router.POST("/upload", s.UploadForm)
	router.POST("/ask", s.AskForm)
	router.POST("/theme", s.ToggleTheme)
	router.GET("/healthz", s.Health)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := router.Group("/api")
	api.POST("/upload", s.UploadAPI)
	api.POST("/ask", s.AskAPI)
	api.GET("/history", s.HistoryAPI)
	api.GET("/document", s.DocumentAPI)

	return router
}

// lookup returns the caller's existing session, or nil. Read-only handlers use
// it so that requests without a cookie do not allocate sessions.
func (s *Server) lookup(c *gin.Context) *session.Session {
	id, err := c.Cookie(sessionCookie)
	if err != nil || id == "" {
		return nil
	}
	sess, ok := s.sessions.Lookup(id)
	if !ok {
		return nil
	}
	return sess
}

// session resolves the caller's session, creating one if needed, and
// refreshes its cookie.
func (s *Server) session(c *gin.Context) (*session.Session, error) {
	id, _ := c.Cookie(sessionCookie)
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	if sess.ID != id {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, sess.ID, 0, "/", "", false, true)
	}
	return sess, nil
}

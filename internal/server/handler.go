package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
	"document-qa/internal/rag"
	"document-qa/internal/session"
)

type AskRequest struct {
	Question string `json:"question" form:"question" binding:"required"`
}

type SourceView struct {
	Source     string  `json:"source"`
	Page       int     `json:"page"`
	ChunkID    int     `json:"chunk_id"`
	StartIndex int     `json:"start_index"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

type AskResponse struct {
	Query     string       `json:"query"`
	Answer    string       `json:"answer"`
	Sources   []SourceView `json:"sources"`
	Timestamp time.Time    `json:"timestamp"`
}

type DocumentResponse struct {
	Loaded bool   `json:"loaded"`
	Label  string `json:"label,omitempty"`
	Pages  int    `json:"pages,omitempty"`
	Chunks int    `json:"chunks,omitempty"`
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"sessions":       s.sessions.Len(),
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) UploadAPI(c *gin.Context) {
	sess, err := s.session(c)
	if err != nil {
		fail(c, err)
		return
	}
	info, err := s.upload(c, sess)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, documentResponse(info, true))
}

func (s *Server) UploadForm(c *gin.Context) {
	sess, err := s.session(c)
	if err != nil {
		s.renderError(c, nil, err)
		return
	}
	info, err := s.upload(c, sess)
	if err != nil {
		s.renderError(c, sess, err)
		return
	}
	sess.SetNotice(fmt.Sprintf("Document '%s' processed successfully! Ask questions below.", info.Label))
	c.Redirect(http.StatusSeeOther, "/")
}

// upload reads the multipart "file" field, which must be a PDF, then saves and
// indexes it for the session.
func (s *Server) upload(c *gin.Context, sess *session.Session) (rag.DocumentInfo, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return rag.DocumentInfo{}, models.Errorf(models.ErrInvalidInput, "upload", "missing file")
	}
	if strings.ToLower(filepath.Ext(file.Filename)) != ".pdf" {
		return rag.DocumentInfo{}, models.Errorf(models.ErrInvalidInput, "upload", "only PDF files are allowed")
	}

	f, err := file.Open()
	if err != nil {
		return rag.DocumentInfo{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return rag.DocumentInfo{}, err
	}

	info, err := sess.Upload(c.Request.Context(), data, file.Filename)
	if err != nil {
		s.metrics.DocumentsLoaded.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("session", sess.ID).Str("file", file.Filename).Msg("Error loading document")
		return rag.DocumentInfo{}, err
	}
	s.metrics.DocumentsLoaded.WithLabelValues("ok").Inc()
	s.metrics.ChunksIndexed.Add(float64(info.Chunks))
	return info, nil
}

func (s *Server) AskAPI(c *gin.Context) {
	sess := s.lookup(c)
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, models.Errorf(models.ErrInvalidInput, "ask", "invalid request payload"))
		return
	}
	resp, err := s.ask(c, sess, req.Question)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

func (s *Server) AskForm(c *gin.Context) {
	sess := s.lookup(c)
	var req AskRequest
	if err := c.ShouldBind(&req); err != nil {
		s.renderError(c, sess, models.Errorf(models.ErrInvalidInput, "ask", "question is required"))
		return
	}
	if _, err := s.ask(c, sess, req.Question); err != nil {
		s.renderError(c, sess, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// ask answers question for sess. A nil sess has nothing indexed.
func (s *Server) ask(c *gin.Context, sess *session.Session, question string) (*AskResponse, error) {
	if sess == nil {
		s.metrics.QuestionsTotal.WithLabelValues(questionResult(models.ErrEmptyIndex)).Inc()
		return nil, models.NewError(models.ErrEmptyIndex, "ask", nil)
	}
	start := time.Now()
	resp, err := sess.Ask(c.Request.Context(), question)
	if err != nil {
		s.metrics.QuestionsTotal.WithLabelValues(questionResult(err)).Inc()
		log.Error().Err(err).Str("session", sess.ID).Msg("Error answering question")
		return nil, err
	}
	s.metrics.QuestionsTotal.WithLabelValues("ok").Inc()
	s.metrics.AnswerLatency.Observe(time.Since(start).Seconds())

	out := &AskResponse{Query: resp.Query, Answer: resp.Content, Timestamp: time.Now()}
	if turns := sess.History(); len(turns) > 0 {
		out.Timestamp = turns[len(turns)-1].Timestamp
	}
	for _, r := range resp.Chunks {
		out.Sources = append(out.Sources, SourceView{
			Source:     r.Chunk.Source,
			Page:       r.Chunk.PageNumber,
			ChunkID:    r.Chunk.ChunkID,
			StartIndex: r.Chunk.StartIndex,
			Score:      r.Score,
			Content:    r.Chunk.Content,
		})
	}
	return out, nil
}

func (s *Server) HistoryAPI(c *gin.Context) {
	sess := s.lookup(c)
	if sess == nil {
		ok(c, []models.ChatTurn{})
		return
	}
	ok(c, sess.History())
}

func (s *Server) DocumentAPI(c *gin.Context) {
	sess := s.lookup(c)
	if sess == nil {
		ok(c, DocumentResponse{})
		return
	}
	ok(c, documentResponse(sess.Document()))
}

func (s *Server) ToggleTheme(c *gin.Context) {
	sess, err := s.session(c)
	if err != nil {
		s.renderError(c, nil, err)
		return
	}
	sess.ToggleTheme()
	c.Redirect(http.StatusSeeOther, "/")
}

func documentResponse(info rag.DocumentInfo, loaded bool) DocumentResponse {
	if !loaded {
		return DocumentResponse{}
	}
	return DocumentResponse{Loaded: true, Label: info.Label, Pages: info.Pages, Chunks: info.Chunks}
}

func questionResult(err error) string {
	switch {
	case errors.Is(err, models.ErrEmptyIndex):
		return "empty_index"
	case errors.Is(err, models.ErrEmbedding):
		return "embedding_error"
	case errors.Is(err, models.ErrGeneration):
		return "generation_error"
	default:
		return "error"
	}
}

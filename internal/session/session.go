// Package session keeps the state of one user's interaction with a document:
// the loaded flag, the chat transcript, the theme and the pipeline that owns
// the document's index.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"document-qa/internal/helper"
	"document-qa/internal/models"
	"document-qa/internal/rag"
)

const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Pipeline is the part of rag.Pipeline a session drives.
type Pipeline interface {
	LoadDocument(ctx context.Context, path, label string) (rag.DocumentInfo, error)
	Ask(ctx context.Context, query string) (*models.PromptResponse, error)
	Reset() error
}

// Session is safe for concurrent use; calls are serialized.
type Session struct {
	ID string

	mu        sync.Mutex
	pipeline  Pipeline
	uploadDir string
	now       func() time.Time

	loaded   bool
	document rag.DocumentInfo
	history  []models.ChatTurn
	theme    string
	notice   string

	// guarded by the owning Manager's mutex
	lastSeen time.Time
}

func New(id string, pipeline Pipeline, uploadDir string) *Session {
	if uploadDir == "" {
		uploadDir = models.DefaultUploadDir
	}
	return &Session{
		ID:        id,
		pipeline:  pipeline,
		uploadDir: uploadDir,
		now:       time.Now,
		theme:     ThemeDark,
	}
}

// UploadDocument writes data verbatim to the upload directory under the base
// name of filename and returns the local path. A file with the same name is
// overwritten.
func (s *Session) UploadDocument(data []byte, filename string) (string, error) {
	name, ok := helper.SafeFileName(filename)
	if !ok {
		return "", models.Errorf(models.ErrInvalidInput, "upload", "invalid file name %q", filename)
	}
	if err := helper.CreateFolder(s.uploadDir); err != nil {
		return "", err
	}
	path := filepath.Join(s.uploadDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", name, err)
	}
	log.Debug().Str("session", s.ID).Str("path", path).Int("bytes", len(data)).Msg("Saved upload")
	return path, nil
}

// Load indexes the document at path in place of any previous one. On failure
// the session has no document loaded.
func (s *Session) Load(ctx context.Context, path, label string) (rag.DocumentInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loaded = false
	s.document = rag.DocumentInfo{}
	info, err := s.pipeline.LoadDocument(ctx, path, label)
	if err != nil {
		if rerr := s.pipeline.Reset(); rerr != nil {
			log.Warn().Err(rerr).Str("session", s.ID).Msg("Failed to reset index after load error")
		}
		return rag.DocumentInfo{}, err
	}
	s.loaded = true
	s.document = info
	return info, nil
}

// Upload saves and loads a document in one step.
func (s *Session) Upload(ctx context.Context, data []byte, filename string) (rag.DocumentInfo, error) {
	path, err := s.UploadDocument(data, filename)
	if err != nil {
		return rag.DocumentInfo{}, err
	}
	return s.Load(ctx, path, filepath.Base(path))
}

// Ask answers query against the loaded document. Only answered questions are
// added to the transcript; a failed question leaves it unchanged.
func (s *Session) Ask(ctx context.Context, query string) (*models.PromptResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return nil, models.NewError(models.ErrEmptyIndex, "ask", nil)
	}
	resp, err := s.pipeline.Ask(ctx, query)
	if err != nil {
		return nil, err
	}
	s.history = append(s.history, models.ChatTurn{
		Query:     resp.Query,
		Answer:    resp.Content,
		Timestamp: s.now(),
	})
	return resp, nil
}

// History returns a copy of the transcript, oldest first.
func (s *Session) History() []models.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := make([]models.ChatTurn, len(s.history))
	copy(turns, s.history)
	return turns
}

// Document reports the loaded document, if any.
func (s *Session) Document() (rag.DocumentInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document, s.loaded
}

func (s *Session) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// ToggleTheme flips between dark and light and returns the new theme.
func (s *Session) ToggleTheme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.theme == ThemeDark {
		s.theme = ThemeLight
	} else {
		s.theme = ThemeDark
	}
	return s.theme
}

// SetNotice stores a message shown once on the next page render.
func (s *Session) SetNotice(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = msg
}

// TakeNotice returns the pending notice and clears it.
func (s *Session) TakeNotice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.notice
	s.notice = ""
	return msg
}

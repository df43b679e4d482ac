package server

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"document-qa/internal/models"
	"document-qa/internal/session"
)

type themeColors struct {
	Background string
	Text       string
	Accent     string
	InputBg    string
	Border     string
}

var themes = map[string]themeColors{
	session.ThemeDark:  {Background: "#0E1117", Text: "#FFFFFF", Accent: "#00FFAA", InputBg: "#1E1E1E", Border: "#3A3A3A"},
	session.ThemeLight: {Background: "#FFFFFF", Text: "#000000", Accent: "#007BFF", InputBg: "#F0F0F0", Border: "#CCCCCC"},
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

const summaryRunes = 40

type turnView struct {
	Time    string
	Query   string
	Summary string
	Answer  template.HTML
}

type pageData struct {
	Theme    string
	Colors   themeColors
	Document string
	Loaded   bool
	Turns    []turnView
	Notice   string
	Error    string
}

// Index renders the page for the caller's session, or the empty page when
// there is none yet.
func (s *Server) Index(c *gin.Context) {
	s.render(c, http.StatusOK, s.lookup(c), "")
}

func (s *Server) renderError(c *gin.Context, sess *session.Session, err error) {
	s.render(c, models.HTTPStatusCode(err), sess, err.Error())
}

func (s *Server) render(c *gin.Context, status int, sess *session.Session, errMsg string) {
	data := pageData{Theme: session.ThemeDark, Error: errMsg}
	if sess != nil {
		data.Theme = sess.Theme()
		data.Notice = sess.TakeNotice()
		if info, loaded := sess.Document(); loaded {
			data.Loaded = true
			data.Document = info.Label
		}
		for _, turn := range sess.History() {
			data.Turns = append(data.Turns, turnView{
				Time:    turn.Timestamp.Format("15:04:05"),
				Query:   turn.Query,
				Summary: summarize(turn.Query),
				Answer:  renderMarkdown(turn.Answer),
			})
		}
	}
	data.Colors = themes[data.Theme]

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		log.Error().Err(err).Msg("Error rendering page")
		c.String(http.StatusInternalServerError, "failed to render page")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

// summarize shortens a question for the sidebar list.
func summarize(query string) string {
	runes := []rune(query)
	if len(runes) <= summaryRunes {
		return query
	}
	return string(runes[:summaryRunes]) + "..."
}

// renderMarkdown converts a model answer to HTML. Raw HTML in the answer is
// dropped by goldmark's default renderer.
func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Document Assistant Bot</title>
<style>
body { background-color: {{.Colors.Background}}; color: {{.Colors.Text}}; font-family: sans-serif; margin: 0; display: flex; }
h1, h2, h3 { color: {{.Colors.Accent}}; }
main { flex: 1; padding: 24px; }
aside { width: 280px; padding: 16px; border-right: 1px solid {{.Colors.Border}}; }
.upload { background-color: {{.Colors.InputBg}}; border: 1px solid {{.Colors.Border}}; border-radius: 10px; padding: 15px; }
.message { background-color: {{.Colors.InputBg}}; padding: 10px; border-radius: 8px; margin: 8px 0; }
.error { border: 1px solid #FF4B4B; padding: 10px; border-radius: 8px; }
.notice { border: 1px solid #21C354; padding: 10px; border-radius: 8px; }
button { background-color: {{.Colors.Accent}}; border: none; color: black; padding: 6px 12px; border-radius: 8px; cursor: pointer; font-weight: bold; }
input[type=text] { width: 70%; padding: 8px; background-color: {{.Colors.InputBg}}; color: {{.Colors.Text}}; border: 1px solid {{.Colors.Border}}; border-radius: 8px; }
</style>
</head>
<body>
<aside>
<form method="post" action="/theme"><button type="submit">Toggle theme ({{.Theme}})</button></form>
<h3>Chat History</h3>
{{range .Turns}}<details class="message"><summary>{{.Summary}}</summary><b>User:</b> {{.Query}}<br><b>Assistant:</b> {{.Answer}}</details>
{{end}}
</aside>
<main>
<h1>Document Assistant Bot</h1>
<h3>Upload a PDF and start chatting!</h3>
{{if .Error}}<div class="error">{{.Error}}</div>{{end}}
<form class="upload" method="post" action="/upload" enctype="multipart/form-data">
<label>Upload Research Document (PDF) <input type="file" name="file" accept=".pdf,application/pdf" required></label>
<button type="submit">Process</button>
</form>
{{if .Notice}}<div class="notice">{{.Notice}}</div>{{end}}
{{if .Loaded}}
<p><b>Current Document:</b> <code>{{.Document}}</code></p>
{{range .Turns}}
<div class="message"><code>{{.Time}}</code> <b>You:</b> {{.Query}}</div>
<div class="message"><code>{{.Time}}</code> <b>Assistant:</b> {{.Answer}}</div>
{{end}}
<form method="post" action="/ask">
<input type="text" name="question" placeholder="Enter your question about the document..." required>
<button type="submit">Ask</button>
</form>
{{end}}
</main>
</body>
</html>
`))

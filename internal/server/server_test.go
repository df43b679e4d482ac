package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"document-qa/internal/bootstrap"
	"document-qa/internal/config"
	"document-qa/internal/embedding"
	"document-qa/internal/metrics"
	"document-qa/internal/pdftest"
)

type cannedCompleter struct{ answer string }

func (c cannedCompleter) Complete(context.Context, string) (string, error) {
	return c.answer, nil
}

type testClient struct {
	t      *testing.T
	srv    *Server
	router *gin.Engine
	cookie *http.Cookie
}

func newTestServer(t *testing.T, startedAt time.Time) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.RAG.UploadDir = t.TempDir()
	app := bootstrap.NewWithClients(cfg, embedding.NewHashEmbedder(64), cannedCompleter{answer: "The sky is **blue**."})
	return New(app.NewManager(), metrics.New(), startedAt)
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	srv := newTestServer(t, time.Now())
	return &testClient{t: t, srv: srv, router: srv.Router(gin.TestMode)}
}

func (tc *testClient) do(req *http.Request) *httptest.ResponseRecorder {
	tc.t.Helper()
	if tc.cookie != nil {
		req.AddCookie(tc.cookie)
	}
	w := httptest.NewRecorder()
	tc.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			tc.cookie = c
		}
	}
	return w
}

func (tc *testClient) upload(path, name string, data []byte) *httptest.ResponseRecorder {
	tc.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		tc.t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write(data)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return tc.do(req)
}

func (tc *testClient) askJSON(question string) *httptest.ResponseRecorder {
	tc.t.Helper()
	payload, _ := json.Marshal(map[string]string{"question": question})
	req := httptest.NewRequest(http.MethodPost, "/api/ask", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) APIResponse {
	t.Helper()
	resp := APIResponse{Data: data}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestUploadAndAsk(t *testing.T) {
	tc := newTestClient(t)
	pdf := pdftest.Build("The sky is blue.")

	w := tc.upload("/api/upload", "sky.pdf", pdf)
	if w.Code != http.StatusOK {
		t.Fatalf("upload status %d: %s", w.Code, w.Body.String())
	}
	var doc DocumentResponse
	decode(t, w, &doc)
	if !doc.Loaded || doc.Label != "sky.pdf" || doc.Pages != 1 || doc.Chunks != 1 {
		t.Fatalf("unexpected document %+v", doc)
	}
	if tc.cookie == nil {
		t.Fatalf("no session cookie set")
	}

	w = tc.askJSON("What color is the sky?")
	if w.Code != http.StatusOK {
		t.Fatalf("ask status %d: %s", w.Code, w.Body.String())
	}
	var ans AskResponse
	decode(t, w, &ans)
	if ans.Answer != "The sky is **blue**." || ans.Query != "What color is the sky?" {
		t.Fatalf("unexpected answer %+v", ans)
	}
	if len(ans.Sources) != 1 || !strings.Contains(ans.Sources[0].Content, "The sky is blue.") || ans.Sources[0].Page != 1 {
		t.Fatalf("unexpected sources %+v", ans.Sources)
	}

	w = tc.do(httptest.NewRequest(http.MethodGet, "/api/history", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("history status %d", w.Code)
	}
	var turns []map[string]interface{}
	decode(t, w, &turns)
	if len(turns) != 1 || turns[0]["query"] != "What color is the sky?" || turns[0]["response"] != "The sky is **blue**." {
		t.Fatalf("unexpected history %v", turns)
	}

	w = tc.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("page status %d", w.Code)
	}
	page := w.Body.String()
	if !strings.Contains(page, "<strong>blue</strong>") || !strings.Contains(page, "sky.pdf") {
		t.Fatalf("page missing rendered answer or document name")
	}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	tc := newTestClient(t)
	w := tc.upload("/api/upload", "notes.txt", []byte("hello"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
	if resp := decode(t, w, nil); resp.Code != "invalid_input" {
		t.Fatalf("code %q", resp.Code)
	}
}

func TestUploadMalformedPDF(t *testing.T) {
	tc := newTestClient(t)
	w := tc.upload("/api/upload", "broken.pdf", []byte("not really a pdf"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
	if resp := decode(t, w, nil); resp.Code != "ingest_error" {
		t.Fatalf("code %q", resp.Code)
	}
	w = tc.do(httptest.NewRequest(http.MethodGet, "/api/document", nil))
	var doc DocumentResponse
	decode(t, w, &doc)
	if doc.Loaded {
		t.Fatalf("document should not be loaded")
	}
}

func TestAskBeforeUpload(t *testing.T) {
	tc := newTestClient(t)
	w := tc.askJSON("anything?")
	if w.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", w.Code)
	}
	if resp := decode(t, w, nil); resp.Code != "empty_index" {
		t.Fatalf("code %q", resp.Code)
	}
}

func TestAskMissingQuestion(t *testing.T) {
	tc := newTestClient(t)
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	if w := tc.do(req); w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	a := newTestClient(t)
	if w := a.upload("/api/upload", "sky.pdf", pdftest.Build("The sky is blue.")); w.Code != http.StatusOK {
		t.Fatalf("upload status %d", w.Code)
	}
	// same router, no cookie
	b := &testClient{t: t, srv: a.srv, router: a.router}
	if w := b.askJSON("What color is the sky?"); w.Code != http.StatusConflict {
		t.Fatalf("second browser status %d, want 409", w.Code)
	}
	var doc DocumentResponse
	decode(t, b.do(httptest.NewRequest(http.MethodGet, "/api/document", nil)), &doc)
	if doc.Loaded {
		t.Fatalf("second browser should not see the first browser's document")
	}
	if w := b.upload("/api/upload", "grass.pdf", pdftest.Build("Grass is green.")); w.Code != http.StatusOK {
		t.Fatalf("upload status %d", w.Code)
	}
	if b.cookie == nil || b.cookie.Value == a.cookie.Value {
		t.Fatalf("second browser should get its own session")
	}
	decode(t, a.do(httptest.NewRequest(http.MethodGet, "/api/document", nil)), &doc)
	if doc.Label != "sky.pdf" {
		t.Fatalf("first browser document changed to %q", doc.Label)
	}
}

func TestReadOnlyRequestsDoNotCreateSessions(t *testing.T) {
	tc := newTestClient(t)
	for i := 0; i < 500; i++ {
		for _, path := range []string{"/", "/api/history", "/api/document"} {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			if i%2 == 1 {
				req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "stale-id"})
			}
			w := httptest.NewRecorder()
			tc.router.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Fatalf("%s status %d", path, w.Code)
			}
		}
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"hi?"}`))
		req.Header.Set("Content-Type", "application/json")
		tc.router.ServeHTTP(w, req)
		if w.Code != http.StatusConflict {
			t.Fatalf("ask status %d, want 409", w.Code)
		}
	}
	if n := tc.srv.sessions.Len(); n != 0 {
		t.Fatalf("read-only requests created %d sessions", n)
	}

	w := tc.do(httptest.NewRequest(http.MethodGet, "/api/history", nil))
	var turns []map[string]interface{}
	decode(t, w, &turns)
	if turns == nil || len(turns) != 0 {
		t.Fatalf("expected an empty history list, got %s", w.Body.String())
	}
	if page := tc.do(httptest.NewRequest(http.MethodGet, "/", nil)).Body.String(); !strings.Contains(page, "Upload Research Document") {
		t.Fatalf("empty page not rendered")
	}

	tc.upload("/api/upload", "sky.pdf", pdftest.Build("The sky is blue."))
	if n := tc.srv.sessions.Len(); n != 1 {
		t.Fatalf("upload should create one session, got %d", n)
	}
}

func TestFormFlow(t *testing.T) {
	tc := newTestClient(t)
	w := tc.upload("/upload", "sky.pdf", pdftest.Build("The sky is blue."))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("upload status %d, want 303", w.Code)
	}
	const notice = "Document &#39;sky.pdf&#39; processed successfully! Ask questions below."
	page := tc.do(httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	if !strings.Contains(page, notice) {
		t.Fatalf("upload notice missing from page")
	}
	page = tc.do(httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	if strings.Contains(page, "processed successfully") {
		t.Fatalf("upload notice should be shown only once")
	}

	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader("question=What+color+is+the+sky%3F"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if w := tc.do(req); w.Code != http.StatusSeeOther {
		t.Fatalf("ask status %d, want 303", w.Code)
	}

	if w := tc.do(httptest.NewRequest(http.MethodPost, "/theme", nil)); w.Code != http.StatusSeeOther {
		t.Fatalf("theme status %d", w.Code)
	}
	page = tc.do(httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	if !strings.Contains(page, "#007BFF") {
		t.Fatalf("light theme not applied")
	}
	if !strings.Contains(page, "What color is the sky?") {
		t.Fatalf("transcript missing from page")
	}
}

func TestFormUploadErrorRendersPage(t *testing.T) {
	tc := newTestClient(t)
	w := tc.upload("/upload", "notes.txt", []byte("hello"))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "only PDF files are allowed") {
		t.Fatalf("error not shown on page")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, time.Now().Add(-90*time.Second))
	tc := &testClient{t: t, srv: srv, router: srv.Router(gin.TestMode)}
	w := tc.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status %d", w.Code)
	}
	var health struct {
		Status        string `json:"status"`
		Sessions      int    `json:"sessions"`
		UptimeSeconds int64  `json:"uptime_seconds"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" || health.Sessions != 0 || health.UptimeSeconds < 90 {
		t.Fatalf("unexpected health %+v", health)
	}
	w = tc.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "docqa_http_requests_total") {
		t.Fatalf("metrics not exposed: %d", w.Code)
	}
}

func TestSidebarSummaryTruncated(t *testing.T) {
	long := strings.Repeat("a", 39) + "é and then some more words"
	if got := summarize(long); got != strings.Repeat("a", 39)+"é..." {
		t.Fatalf("summarize = %q", got)
	}
	if got := summarize("short question?"); got != "short question?" {
		t.Fatalf("short question changed to %q", got)
	}

	tc := newTestClient(t)
	tc.upload("/upload", "sky.pdf", pdftest.Build("The sky is blue."))
	question := "What color is the sky over the ocean on a clear summer afternoon?"
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader("question="+strings.ReplaceAll(question, " ", "+")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tc.do(req)
	page := tc.do(httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	if !strings.Contains(page, "<summary>"+question[:40]+"...</summary>") {
		t.Fatalf("sidebar summary not truncated")
	}
}

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tmc/langchaingo/llms"

	"pdf-chat/internal/config"
	"pdf-chat/internal/index"
	"pdf-chat/internal/models"
	"pdf-chat/internal/parser"
	"pdf-chat/internal/parser/pdftest"
	"pdf-chat/internal/rag"
	"pdf-chat/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubIndex struct{ chunks []string }

func (x *stubIndex) TopK(_ context.Context, _ string, k int) ([]models.Chunk, error) {
	var out []models.Chunk
	for i, c := range x.chunks[:min(k, len(x.chunks))] {
		out = append(out, models.Chunk{ChunkID: i, Content: c})
	}
	return out, nil
}

func (x *stubIndex) Len() int                    { return len(x.chunks) }
func (x *stubIndex) Close(context.Context) error { return nil }

type stubBuilder struct{}

func (stubBuilder) Build(_ context.Context, chunks []string) (index.Index, error) {
	if len(chunks) == 0 {
		return nil, index.ErrNoContent
	}
	return &stubIndex{chunks: chunks}, nil
}

type stubModel struct{ answer string }

func (m stubModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.answer}}}, nil
}

func (m stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

type client struct {
	t       *testing.T
	handler http.Handler
	cookies []*http.Cookie
}

func newClient(t *testing.T) *client {
	t.Helper()
	cfg := config.Default()
	p := &session.Pipeline{
		Splitter: parser.NewSplitter(cfg.Chunker),
		Builder:  stubBuilder{},
		Model:    stubModel{answer: "The answer is **42**."},
		Engine:   rag.Options{TopK: cfg.Retriever.TopK},
	}
	srv, err := NewServer(cfg, session.NewManager(p, time.Hour))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return &client{t: t, handler: srv.Handler()}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	if got := w.Result().Cookies(); len(got) > 0 {
		c.cookies = got
	}
	return w
}

func (c *client) ask(question string) *httptest.ResponseRecorder {
	form := url.Values{"question": {question}}
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *client) upload(files map[string][]byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		fw, err := mw.CreateFormFile("pdfs", name)
		if err != nil {
			c.t.Fatal(err)
		}
		if _, err := io.Copy(fw, bytes.NewReader(data)); err != nil {
			c.t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		c.t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/process", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func TestIndexPage(t *testing.T) {
	c := newClient(t)
	w := c.do(httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"<title>Chat with multiple PDFs</title>", "Ask a question about your documents:", `name="pdfs"`, "Process"} {
		if !strings.Contains(body, want) {
			t.Errorf("page is missing %q", want)
		}
	}
	if len(c.cookies) == 0 || c.cookies[0].Name != sessionCookie || !c.cookies[0].HttpOnly {
		t.Errorf("session cookie = %+v", c.cookies)
	}
}

func TestAskBeforeProcess(t *testing.T) {
	c := newClient(t)
	w := c.ask("hello?")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), models.NotInitializedMessage) {
		t.Errorf("body does not show the not-initialized message")
	}
	if strings.Contains(w.Body.String(), "chat-message user") {
		t.Error("question rendered although nothing was recorded")
	}
}

func TestProcessRejectsNonPDF(t *testing.T) {
	c := newClient(t)
	w := c.upload(map[string][]byte{"notes.txt": []byte("plain text")})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "notes.txt") {
		t.Error("error does not name the rejected file")
	}
}

func TestProcessWithoutFiles(t *testing.T) {
	c := newClient(t)
	w := c.upload(nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestProcessBlankPDF(t *testing.T) {
	c := newClient(t)
	w := c.upload(map[string][]byte{"scan.pdf": pdftest.Build("")})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
	if !strings.Contains(w.Body.String(), "No text could be extracted") {
		t.Error("missing error message")
	}
}

func TestProcessCorruptPDF(t *testing.T) {
	c := newClient(t)
	w := c.upload(map[string][]byte{"broken.pdf": []byte("%PDF-1.4 truncated")})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
	if !strings.Contains(w.Body.String(), "broken.pdf") {
		t.Error("error does not name the unreadable file")
	}
}

func TestProcessThenAsk(t *testing.T) {
	c := newClient(t)

	w := c.upload(map[string][]byte{"a.pdf": pdftest.Build("Deep Thought computed the answer")})
	if w.Code != http.StatusOK {
		t.Fatalf("process status = %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "1 document processed into 1 chunk.") {
		t.Error("missing process notice")
	}
	if !strings.Contains(body, "Deep Thought") {
		t.Error("chunk preview missing")
	}

	w = c.ask("What is <the> answer?")
	if w.Code != http.StatusOK {
		t.Fatalf("ask status = %d", w.Code)
	}
	body = w.Body.String()
	if !strings.Contains(body, "What is &lt;the&gt; answer?") {
		t.Error("question not rendered escaped")
	}
	if !strings.Contains(body, "<strong>42</strong>") {
		t.Error("answer markdown not rendered")
	}

	c.ask("And why?")
	body = c.do(httptest.NewRequest(http.MethodGet, "/", nil)).Body.String()
	if strings.Count(body, "chat-message user") != 2 {
		t.Errorf("expected two rendered turns")
	}
	if strings.Index(body, "What is &lt;the&gt; answer?") > strings.Index(body, "And why?") {
		t.Error("turns out of order")
	}
}

func TestAskEmptyQuestionRedirects(t *testing.T) {
	c := newClient(t)
	w := c.ask("")
	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", w.Code)
	}
}

func TestHealth(t *testing.T) {
	c := newClient(t)
	w := c.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Status != "ok" {
		t.Errorf("body = %s, %v", w.Body.String(), err)
	}
}

package web

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"pdf-chat/internal/config"
	"pdf-chat/internal/helper"
	"pdf-chat/internal/index"
	"pdf-chat/internal/models"
	"pdf-chat/internal/parser"
	"pdf-chat/internal/session"
)

const (
	sessionCookie  = "pdf_chat_session"
	uploadField    = "pdfs"
	questionField  = "question"
	previewChunks  = 20
	maxUploadBytes = 64 << 20
)

//go:embed templates/*.html
var templateFS embed.FS

type Server struct {
	ui       config.UIConfig
	ttl      time.Duration
	sessions *session.Manager
	md       goldmark.Markdown
	router   *gin.Engine
}

type pageData struct {
	Title   string
	Icon    string
	Ready   bool
	Turns   []models.Turn
	Chunks  []string
	Total   int
	Notice  string
	Error   string
	Message string
}

func NewServer(cfg *config.Config, sessions *session.Manager) (*Server, error) {
	s := &Server{
		ui:       cfg.UI,
		ttl:      cfg.Server.SessionTTL,
		sessions: sessions,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}

	tmpl, err := template.New("").Funcs(template.FuncMap{"markdown": s.markdown}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.MaxMultipartMemory = maxUploadBytes
	r.SetHTMLTemplate(tmpl)

	r.GET("/", s.Index)
	r.POST("/process", s.Process)
	r.POST("/ask", s.Ask)
	r.GET("/healthz", s.Health)

	s.router = r
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Index(c *gin.Context) {
	sess := s.session(c)
	s.render(c, http.StatusOK, sess, pageData{})
}

// Process replaces the session index with one built from the uploaded PDFs.
func (s *Server) Process(c *gin.Context) {
	sess := s.session(c)

	form, err := c.MultipartForm()
	if err != nil || len(form.File[uploadField]) == 0 {
		s.render(c, http.StatusBadRequest, sess, pageData{Error: "Please upload at least one PDF before processing."})
		return
	}
	headers := form.File[uploadField]
	for _, h := range headers {
		if !parser.IsPDF(h.Filename) {
			s.render(c, http.StatusBadRequest, sess, pageData{Error: "Only PDF files are supported: " + h.Filename})
			return
		}
	}

	files, closeAll, err := openUploads(headers)
	if err != nil {
		log.Error().Err(err).Str("session", sess.ID).Msg("Failed to open uploads")
		s.render(c, http.StatusInternalServerError, sess, pageData{Error: "Failed to read the uploaded files."})
		return
	}
	res, err := sess.Process(c.Request.Context(), files)
	closeAll()
	if err != nil {
		status := http.StatusBadGateway
		msg := "Processing failed: " + err.Error()
		switch {
		case errors.Is(err, index.ErrNoContent):
			status = http.StatusUnprocessableEntity
			msg = "No text could be extracted from the uploaded PDFs."
		case errors.Is(err, parser.ErrUnreadable):
			status = http.StatusUnprocessableEntity
			msg = "Could not read the uploaded PDFs: " + err.Error()
		}
		log.Error().Err(err).Str("session", sess.ID).Msg("Failed to process documents")
		s.render(c, status, sess, pageData{Error: msg})
		return
	}

	s.render(c, http.StatusOK, sess, pageData{
		Notice: helper.Pluralize(res.Documents, "document") + " processed into " + helper.Pluralize(len(res.Chunks), "chunk") + ".",
	})
}

// Ask answers the submitted question and shows the whole conversation.
func (s *Server) Ask(c *gin.Context) {
	sess := s.session(c)

	question := c.PostForm(questionField)
	if question == "" {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	answer, err := sess.Ask(c.Request.Context(), question)
	if err != nil {
		log.Error().Err(err).Str("session", sess.ID).Msg("Failed to answer question")
		s.render(c, http.StatusBadGateway, sess, pageData{Error: "The language model request failed: " + err.Error()})
		return
	}
	if sess.State() != session.Ready {
		s.render(c, http.StatusOK, sess, pageData{Message: answer})
		return
	}
	s.render(c, http.StatusOK, sess, pageData{})
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.sessions.Len()})
}

func (s *Server) render(c *gin.Context, status int, sess *session.Session, data pageData) {
	data.Title = s.ui.PageTitle
	data.Icon = s.ui.PageIcon
	data.Ready = sess.State() == session.Ready
	data.Turns = sess.History()

	chunks := sess.Chunks()
	data.Total = len(chunks)
	data.Chunks = chunks[:min(len(chunks), previewChunks)]

	c.HTML(status, "index.html", data)
}

// session resolves the caller's session, issuing a new cookie when needed.
func (s *Server) session(c *gin.Context) *session.Session {
	id, err := c.Cookie(sessionCookie)
	if err != nil || uuid.Validate(id) != nil {
		id, err = helper.GenerateUUID()
		if err != nil {
			log.Error().Err(err).Msg("Failed to generate session id")
			id = uuid.NewString()
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, id, int(s.ttl.Seconds()), "/", "", false, true)
	return s.sessions.Get(id)
}

func (s *Server) markdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}

func openUploads(headers []*multipart.FileHeader) ([]parser.File, func(), error) {
	var files []parser.File
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		opened = append(opened, f)
		files = append(files, parser.File{Name: h.Filename, Data: f})
	}
	return files, closeAll, nil
}

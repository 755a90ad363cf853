package web

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	app "thermal-vision/internal/application"
	"thermal-vision/internal/domain/entity"
	"thermal-vision/internal/infrastructure/auth"
)

const (
	uploadField       = "image"
	multipartOverhead = 1 << 20
	historyLimit      = 20
	healthTimeout     = 5 * time.Second
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, detectPath, http.StatusSeeOther)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, loginPage)
}

func (s *Server) handleDetectPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, detectPage)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if r.Header.Get("Content-Type") == "application/json" {
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		req.Email = r.FormValue("email")
		req.Password = r.FormValue("password")
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		s.loginFailed(w, r, http.StatusBadRequest, "email is required")
		return
	}

	token, err := auth.NewToken()
	if err != nil {
		s.log.Error("login: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	session, err := s.container.Auth.SignIn(token, email, email, req.Password)
	if errors.Is(err, entity.ErrInvalidCredentials) {
		s.log.Warning("failed login for %s", email)
		s.loginFailed(w, r, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err != nil {
		s.log.Error("login %s: %v", email, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	cookie := &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if !session.ExpiresAt.IsZero() {
		cookie.Expires = session.ExpiresAt
	}
	http.SetCookie(w, cookie)

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, loginResponse{UserID: session.UserID})
		return
	}
	http.Redirect(w, r, detectPath, http.StatusSeeOther)
}

func (s *Server) loginFailed(w http.ResponseWriter, r *http.Request, status int, message string) {
	if wantsJSON(r) {
		writeError(w, status, message)
		return
	}
	http.Redirect(w, r, signInPath+"?error=1", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		s.container.Auth.SignOut(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, signInPath, http.StatusSeeOther)
}

// uploadedFile файл из multipart-формы.
type uploadedFile struct {
	header *multipart.FileHeader
}

func (f uploadedFile) Name() string        { return f.header.Filename }
func (f uploadedFile) ContentType() string { return f.header.Header.Get("Content-Type") }

func (f uploadedFile) Open() (io.ReadCloser, error) {
	return f.header.Open()
}

type imageResponse struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Preview  string `json:"preview"`
	Sequence uint64 `json:"sequence"`
}

func newImageResponse(asset *entity.ImageAsset) *imageResponse {
	if asset == nil {
		return nil
	}
	return &imageResponse{
		Name:     asset.Name,
		MimeType: asset.MimeType,
		Preview:  asset.Preview,
		Sequence: asset.Sequence,
	}
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	p, err := s.pipeline(r.Context(), sessionKey(r))
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, app.UserMessage(entity.ErrInvalidFileType))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File[uploadField]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, app.UserMessage(entity.ErrInvalidFileType))
		return
	}

	asset, err := p.SelectFile(r.Context(), uploadedFile{header: files[0]})
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newImageResponse(asset))
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	p, err := s.pipeline(r.Context(), sessionKey(r))
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	result, err := p.Submit(r.Context())
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type resultResponse struct {
	State  entity.SubmitState      `json:"state"`
	Image  *imageResponse          `json:"image"`
	Result *entity.DetectionResult `json:"result"`
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	p, err := s.pipeline(r.Context(), sessionKey(r))
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resultResponse{
		State:  p.State(),
		Image:  newImageResponse(p.Asset()),
		Result: p.Current(),
	})
}

type historyItem struct {
	ID         int64              `json:"id"`
	Count      int                `json:"detection_count"`
	Labels     []string           `json:"labels"`
	Detections []entity.Detection `json:"detections"`
	CreatedAt  time.Time          `json:"created_at"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.container.History == nil {
		writeJSON(w, http.StatusOK, []historyItem{})
		return
	}

	p, err := s.pipeline(r.Context(), sessionKey(r))
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	session := p.Session()
	if session == nil {
		s.writePipelineError(w, entity.ErrUnauthenticated)
		return
	}

	limit := historyLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}

	entries, err := s.container.History.ListByUser(r.Context(), session.UserID, limit)
	if err != nil {
		s.log.Error("list history for %s: %v", session.UserID, err)
		writeError(w, http.StatusInternalServerError, app.UserMessage(err))
		return
	}

	items := make([]historyItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, historyItem{
			ID:         e.ID,
			Count:      e.Count,
			Labels:     e.Labels,
			Detections: e.Detections,
			CreatedAt:  e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	key := sessionKey(r)
	if _, err := s.pipeline(r.Context(), key); err != nil {
		s.writePipelineError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade: %v", err)
		return
	}
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	s.hub.Register(key, conn)
	defer s.hub.Unregister(key, conn)

	// Клиент ничего не присылает; чтение нужно только чтобы заметить отключение
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

type healthResponse struct {
	Status     string `json:"status"`
	Detection  any    `json:"detection"`
	Sessions   int    `json:"sessions"`
	Clients    int    `json:"clients"`
	Processing int    `json:"processing"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Sessions: s.sessions.count(),
		Clients:  s.hub.ClientCount(),
	}

	if n, err := s.container.UserService.Processing(r.Context()); err == nil {
		resp.Processing = n
	}

	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status, err := s.health.Health(ctx)
		if err != nil {
			resp.Status = "degraded"
			resp.Detection = errorResponse{Error: err.Error()}
		} else {
			resp.Detection = status
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// writePipelineError переводит ошибку конвейера в HTTP-ответ.
func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	var dse *entity.DetectionServiceError

	status := http.StatusInternalServerError
	message := app.UserMessage(err)

	switch {
	case errors.Is(err, entity.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, entity.ErrInvalidFileType), errors.Is(err, entity.ErrNoImageSelected):
		status = http.StatusBadRequest
	case errors.Is(err, entity.ErrAlreadyInProgress):
		status = http.StatusConflict
	case errors.Is(err, entity.ErrSelectionSuperseded), errors.Is(err, entity.ErrResultDiscarded):
		status = http.StatusConflict
		message = err.Error()
	case errors.As(err, &dse):
		status = http.StatusBadGateway
	default:
		s.log.Error("pipeline: %v", err)
	}

	writeError(w, status, message)
}

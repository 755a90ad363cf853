package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"thermal-vision/internal/container"
	"thermal-vision/internal/infrastructure/detectapi"
	"thermal-vision/internal/logger"
)

const (
	sessionCookie = "session"
	detectPath    = "/detect"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HealthChecker сообщает состояние сервиса детекции.
type HealthChecker interface {
	Health(ctx context.Context) (*detectapi.HealthStatus, error)
}

// Server HTTP-интерфейс конвейера детекции: один конвейер на cookie сессии.
type Server struct {
	container *container.Container
	hub       *Hub
	health    HealthChecker
	sessions  *sessionRegistry
	maxUpload int64
	log       *logger.Logger
}

func NewServer(c *container.Container, hub *Hub, health HealthChecker, maxUploadBytes int64, log *logger.Logger) *Server {
	return &Server{
		container: c,
		hub:       hub,
		health:    health,
		sessions:  newSessionRegistry(),
		maxUpload: maxUploadBytes,
		log:       log,
	}
}

// Router собирает маршруты сервера.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc(signInPath, s.handleLoginPage).Methods("GET")
	r.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
	r.HandleFunc("/auth/logout", s.handleLogout).Methods("POST")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	private := r.NewRoute().Subrouter()
	private.Use(s.requireSession)
	private.HandleFunc(detectPath, s.handleDetectPage).Methods("GET")
	private.HandleFunc("/api/image", s.handleImage).Methods("POST")
	private.HandleFunc("/api/detect", s.handleDetect).Methods("POST")
	private.HandleFunc("/api/result", s.handleResult).Methods("GET")
	private.HandleFunc("/api/history", s.handleHistory).Methods("GET")
	private.HandleFunc("/ws", s.handleWebsocket).Methods("GET")

	return r
}

// Close освобождает все конвейеры.
func (s *Server) Close() {
	s.sessions.closeAll()
}

type keyContext struct{}

// requireSession пропускает только запросы с действующей сессией.
// API получает 401, страницы перенаправляются на вход.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err == nil && cookie.Value != "" {
			session, err := s.container.Auth.Source(cookie.Value).Current(r.Context())
			if err == nil && session != nil {
				ctx := context.WithValue(r.Context(), keyContext{}, cookie.Value)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}

		if isAPI(r) {
			writeError(w, http.StatusUnauthorized, "Please sign in to run detection")
			return
		}
		http.Redirect(w, r, signInPath, http.StatusSeeOther)
	})
}

func sessionKey(r *http.Request) string {
	key, _ := r.Context().Value(keyContext{}).(string)
	return key
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		r.URL.Path == "/ws" ||
		wantsJSON(r)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		r.Header.Get("Content-Type") == "application/json" ||
		r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func readJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}

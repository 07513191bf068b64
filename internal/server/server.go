package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// TimestampLayout is the UTC layout stamped on every stored message.
const TimestampLayout = "2006-01-02 15:04:05"

// Server serves the chat API.
type Server struct {
	store     Store
	notifier  Notifier
	log       zerolog.Logger
	now       func() time.Time
	keepAlive time.Duration
	router    *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithClock overrides the clock used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithKeepAlive sets the interval of comment lines on idle event streams.
// Non-positive values keep the default.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.keepAlive = d
		}
	}
}

// New builds a Server and its routes.
func New(store Store, notifier Notifier, log zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		store:     store,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
		keepAlive: 25 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(hlog.NewHandler(s.log), requestID, securityHeaders)

	// Registered ahead of the API subrouter: the access logger wraps the
	// ResponseWriter and the stream needs to flush.
	r.HandleFunc("/api/events", s.handleEvents).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(accessLog)
	api.HandleFunc("/ping", s.handlePing).Methods(http.MethodGet)
	api.HandleFunc("/signup", s.handleSignup).Methods(http.MethodPost)
	api.HandleFunc("/getPublicKey", s.handlePublicKey).Methods(http.MethodGet)
	api.HandleFunc("/getchats", s.handleChats).Methods(http.MethodGet)
	api.HandleFunc("/addchats", s.handleAddChat).Methods(http.MethodPost)
	api.HandleFunc("/sendmessageplain", s.handleSendGroup).Methods(http.MethodPost)
	api.HandleFunc("/sendmessagee2ee", s.handleSendDirect).Methods(http.MethodPost)

	s.router = r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

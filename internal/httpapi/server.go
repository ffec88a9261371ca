// Package httpapi exposes the authentication engine over HTTP with a chi
// router. Each browser is identified by a client id carried in a signed
// cookie; the id keys its session state and its failed-attempt log.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/koustreak/gardien/internal/auth"
	"github.com/koustreak/gardien/internal/crud"
	"github.com/koustreak/gardien/internal/filestore"
	"github.com/koustreak/gardien/internal/logger"
)

type Server struct {
	engine  *auth.Engine
	cookies *CookieSigner
	log     *logger.Logger
	router  chi.Router

	users  *crud.Table
	store  filestore.Store
	bucket string
	now    func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithExport enables the user export routes. store may be nil, in which
// case only the streaming export is served.
func WithExport(users *crud.Table, store filestore.Store, bucket string) Option {
	return func(s *Server) {
		s.users = users
		s.store = store
		s.bucket = bucket
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// New builds the router.
func New(engine *auth.Engine, cookies *CookieSigner, opts ...Option) *Server {
	s := &Server{
		engine:  engine,
		cookies: cookies,
		log:     logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Component("http")
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.identify)

	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.Post("/login/token", s.handleTokenLogin)
	r.Post("/token", s.handleIssueToken)
	r.Post("/logout", s.handleLogout)
	r.Get("/me", s.handleMe)
	r.Get("/schema", s.handleSchema)

	if s.users != nil {
		r.Get("/users/export", s.handleExport)
		if s.store != nil {
			r.Post("/users/export", s.handleExportObject)
		}
	}
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type ctxKey struct{}

// identify resolves the client id from the cookie, issuing a new id when the
// cookie is missing or does not verify.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(s.cookies.Name()); err == nil {
			if parsed, err := s.cookies.Parse(c.Value); err == nil {
				id = parsed
			} else {
				s.log.WarnWith("rejected client cookie", err, map[string]any{
					"request_id": middleware.GetReqID(r.Context()),
				})
			}
		}
		if id == "" {
			id = uuid.NewString()
			token, err := s.cookies.Sign(id)
			if err != nil {
				s.log.ErrorWith("sign client cookie", err, nil)
				writeJSON(w, http.StatusInternalServerError, errorBody(msgInternal))
				return
			}
			http.SetCookie(w, s.cookies.Cookie(token))
		}
		reqLog := s.log.With().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("client_id", id).
			Logger()
		ctx := context.WithValue(reqLog.WithContext(r.Context()), ctxKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// client binds the engine to the caller of r.
func (s *Server) client(r *http.Request) *auth.Client {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return s.engine.Client(id, remoteIP(r))
}

func remoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		fields := map[string]any{
			"request_id":  middleware.GetReqID(r.Context()),
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_ip":   remoteIP(r),
		}
		if ww.Status() >= http.StatusInternalServerError {
			s.log.ErrorWith("request", nil, fields)
			return
		}
		s.log.InfoWith("request", fields)
	})
}

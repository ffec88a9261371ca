package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/koustreak/gardien/internal/auth"
	"github.com/koustreak/gardien/internal/crud"
	"github.com/koustreak/gardien/internal/errs"
	"github.com/koustreak/gardien/internal/logger"
)

const (
	msgInternal         = "internal error"
	msgBadBody          = "request body must be a JSON object"
	msgNotAuthenticated = "not authenticated"
)

type credentials struct {
	Login    string         `json:"login"`
	Password string         `json:"password"`
	Fields   map[string]any `json:"fields"`
}

type response struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
	User   auth.Row `json:"user,omitempty"`
	Token  string   `json:"token,omitempty"`
}

func errorBody(msgs ...string) response {
	return response{Errors: msgs}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(msgBadBody))
		return false
	}
	return true
}

// statusFor maps a recovered client failure to a status code.
func statusFor(kind errs.ErrKind) int {
	switch kind {
	case errs.ErrKindConflict:
		return http.StatusConflict
	case errs.ErrKindAuthFailure:
		return http.StatusUnauthorized
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// finish writes the outcome of a client operation.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, c *auth.Client, ok bool, err error, body response) {
	if err != nil {
		s.internal(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, statusFor(c.Failure()), errorBody(c.Errors()...))
		return
	}
	body.OK = true
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) internal(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).ErrorWith("request failed", err, map[string]any{
		"path": r.URL.Path,
	})
	writeJSON(w, http.StatusInternalServerError, errorBody(msgInternal))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decode(w, r, &in) {
		return
	}
	c := s.client(r)
	ok, err := c.CreateAccount(r.Context(), in.Login, in.Password, numbers(in.Fields))
	s.finish(w, r, c, ok, err, response{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decode(w, r, &in) {
		return
	}
	c := s.client(r)
	ok, err := c.Authenticate(r.Context(), in.Login, in.Password)
	s.finishLogin(w, r, c, ok, err)
}

func (s *Server) handleTokenLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	if !decode(w, r, &in) {
		return
	}
	c := s.client(r)
	ok, err := c.AuthenticateToken(r.Context(), in.Token)
	s.finishLogin(w, r, c, ok, err)
}

func (s *Server) finishLogin(w http.ResponseWriter, r *http.Request, c *auth.Client, ok bool, err error) {
	if err != nil || !ok {
		s.finish(w, r, c, ok, err, response{})
		return
	}
	user, err := c.CurrentUser(r.Context())
	s.finish(w, r, c, true, err, response{User: user})
}

// handleIssueToken issues a one-time login token for the authenticated
// caller, to be handed to another device.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	c := s.client(r)
	login, ok := s.requireLogin(w, r, c)
	if !ok {
		return
	}
	token, ok, err := c.IssueLoginToken(r.Context(), login)
	s.finish(w, r, c, ok, err, response{Token: token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	c := s.client(r)
	err := c.Logout(r.Context())
	s.finish(w, r, c, true, err, response{})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	c := s.client(r)
	user, err := c.CurrentUser(r.Context())
	if err != nil {
		s.internal(w, r, err)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, errorBody(msgNotAuthenticated))
		return
	}
	writeJSON(w, http.StatusOK, response{OK: true, User: user})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"schema":         s.engine.TableSchema(),
		"mandatory":      s.engine.MandatoryFields(),
		"tokens_enabled": s.engine.TokensEnabled(),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	c := s.client(r)
	if _, ok := s.requireLogin(w, r, c); !ok {
		return
	}
	format, ok := s.format(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, s.users.Name(), format))
	if _, err := s.users.Export(r.Context(), w, format, s.engine.PublicColumns()...); err != nil {
		// headers may be gone already; the journal has the detail
		logger.FromContext(r.Context()).ErrorWith("export failed", err, nil)
	}
}

func (s *Server) handleExportObject(w http.ResponseWriter, r *http.Request) {
	c := s.client(r)
	if _, ok := s.requireLogin(w, r, c); !ok {
		return
	}
	format, ok := s.format(w, r)
	if !ok {
		return
	}

	key := fmt.Sprintf("%s/%s.%s", s.users.Name(), s.now().UTC().Format("20060102T150405Z"), format)
	info, err := s.users.ExportObject(r.Context(), s.store, s.bucket, key, format, s.engine.PublicColumns()...)
	if err != nil {
		s.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"bucket": s.bucket,
		"key":    info.Key,
		"size":   info.Size,
	})
}

func (s *Server) format(w http.ResponseWriter, r *http.Request) (crud.Format, bool) {
	raw := r.URL.Query().Get("format")
	if raw == "" {
		raw = string(crud.FormatCSV)
	}
	f, err := crud.ParseFormat(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(errs.MessageOf(err)))
		return "", false
	}
	return f, true
}

// requireLogin returns the session login or answers 401.
func (s *Server) requireLogin(w http.ResponseWriter, r *http.Request, c *auth.Client) (string, bool) {
	login, err := c.Login(r.Context())
	if err != nil {
		s.internal(w, r, err)
		return "", false
	}
	if login == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody(msgNotAuthenticated))
		return "", false
	}
	return login, true
}

// numbers turns JSON numbers into int64 or float64 so they bind like
// values set from Go.
func numbers(fields map[string]any) map[string]any {
	for k, v := range fields {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			fields[k] = i
		} else if f, err := n.Float64(); err == nil {
			fields[k] = f
		} else {
			fields[k] = n.String()
		}
	}
	return fields
}

// Package httpapi exposes the identity and document-store HTTP API.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"costtracker/internal/errs"
	"costtracker/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	auth    service.AuthService
	docs    service.DocService
	signKey []byte
	log     *zap.Logger
}

// New constructs an HTTP API server with injected services.
func New(auth service.AuthService, docs service.DocService, signKey []byte, log *zap.Logger) *Server {
	return &Server{auth: auth, docs: docs, signKey: signKey, log: log}
}

// Router builds the route table with logging/recover middleware applied.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(Recover(s.log), Logging(s.log))

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)

	users := api.PathPrefix("/users/{uid}").Subrouter()
	users.Use(s.authenticate)
	users.HandleFunc("", s.handleEnsureNamespace).Methods(http.MethodPut)
	users.HandleFunc("/{collection}", s.handleList).Methods(http.MethodGet)
	users.HandleFunc("/{collection}", s.handleCreate).Methods(http.MethodPost)
	users.HandleFunc("/{collection}/{id}", s.handleReplace).Methods(http.MethodPut)
	users.HandleFunc("/{collection}/{id}", s.handleRemove).Methods(http.MethodDelete)

	return r
}

// --- Auth ---

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type registerResponse struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	id, err := s.auth.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, errs.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "email taken")
		default:
			s.log.Error("register", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal")
		}
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{UserID: id.String()})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	tok, u, err := s.auth.LoginWithIP(r.Context(), req.Email, req.Password, r.RemoteAddr)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "bad credentials")
		case errors.Is(err, errs.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "rate limited")
		default:
			s.log.Error("login", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal")
		}
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt,
		UserID:      u.ID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName,
	})
}

// --- Documents ---

func (s *Server) handleEnsureNamespace(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	if err := s.docs.EnsureNamespace(r.Context(), userID); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type listResponse struct {
	Documents []json.RawMessage `json:"documents"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	collection := mux.Vars(r)["collection"]
	orderBy := r.URL.Query().Get("orderBy")

	docs, err := s.docs.List(r.Context(), userID, collection, orderBy)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	out := listResponse{Documents: make([]json.RawMessage, 0, len(docs))}
	for _, d := range docs {
		merged, err := mergeID(d.ID, d.Doc)
		if err != nil {
			s.log.Error("merge doc", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal")
			return
		}
		out.Documents = append(out.Documents, merged)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	collection := mux.Vars(r)["collection"]

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	doc, err := s.docs.Create(r.Context(), userID, collection, fields)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	merged, err := mergeID(doc.ID, doc.Doc)
	if err != nil {
		s.log.Error("merge doc", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(merged)
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	vars := mux.Vars(r)

	id, err := uuid.FromString(vars["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad id")
		return
	}
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if err := s.docs.Replace(r.Context(), userID, vars["collection"], id, fields); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromCtx(r.Context())
	vars := mux.Vars(r)

	id, err := uuid.FromString(vars["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad id")
		return
	}
	if err := s.docs.Remove(r.Context(), userID, vars["collection"], id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Auth middleware ---

// authenticate verifies the bearer token and enforces that its subject
// matches the {uid} path segment, so one user can never touch another's
// namespace.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.userIDFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "no auth")
			return
		}
		pathID, err := uuid.FromString(mux.Vars(r)["uid"])
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad user id")
			return
		}
		if pathID != userID {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// userIDFromRequest extracts "Authorization: Bearer <JWT>", verifies HS256,
// and returns the subject as UUID.
func (s *Server) userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	tok, err := bearerToken(r)
	if err != nil {
		return uuid.Nil, err
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, errors.New("invalid token")
	}

	v := jwt.NewValidator(jwt.WithLeeway(30 * time.Second))
	if err := v.Validate(&claims); err != nil {
		return uuid.Nil, errors.New("token expired or not valid yet")
	}

	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, errors.New("bad subject")
	}
	return id, nil
}

func bearerToken(r *http.Request) (string, error) {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		if t := strings.TrimSpace(v[7:]); t != "" {
			return t, nil
		}
	}
	return "", errors.New("no bearer token")
}

// --- helpers ---

// mergeID renders a document as its fields plus the store-assigned id.
func mergeID(id uuid.UUID, doc json.RawMessage) (json.RawMessage, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, err
	}
	m["id"] = id.String()
	return json.Marshal(m)
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		s.log.Error("docs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Package server exposes the agent-facing HTTP API. Each authenticated
// agent gets its own task/message state, mirroring the device-side stores
// the mobile app keeps.
package server

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"conciera/internal/banner"
	"conciera/internal/events"
	"conciera/internal/msgstore"
	"conciera/internal/repo"
	"conciera/internal/session"
	"conciera/internal/taskstore"
	"conciera/internal/workflow"
)

// Config for the HTTP API handler. Engine builds a workflow engine bound
// to one agent's task state; Now is injectable for tests.
type Config struct {
	Repo     repo.Repo
	Engine   func(tasks *taskstore.Store) *workflow.Engine
	Events   events.Writer
	BasePath string
	Auth     AuthConfig
	Logger   zerolog.Logger
	Now      func() time.Time
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"task not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// agentState is the per-agent slice of app state: the same containers the
// device keeps, held server-side per authenticated identity.
type agentState struct {
	Tasks  *taskstore.Store
	Msgs   *msgstore.Store
	Banner *banner.Banner
	Engine *workflow.Engine
}

type stateRegistry struct {
	mu     sync.Mutex
	byAuth map[string]*agentState
	cfg    Config
}

func (r *stateRegistry) forAuth(authID string) *agentState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.byAuth[authID]; ok {
		return st
	}
	tasks := taskstore.New(r.cfg.Repo, r.cfg.Logger, "")
	st := &agentState{
		Tasks:  tasks,
		Msgs:   msgstore.New(r.cfg.Repo, r.cfg.Logger),
		Banner: banner.New(),
		Engine: r.cfg.Engine(tasks),
	}
	r.byAuth[authID] = st
	return st
}

// New returns an HTTP handler exposing the Conciera API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(requestLogger(cfg.Logger))
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Conciera API", "0.1.0")
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	states := &stateRegistry{byAuth: map[string]*agentState{}, cfg: cfg}

	registerHealth(group)
	registerMe(group, cfg)
	registerResidences(group, cfg, states)
	registerTasks(group, cfg, states)
	registerMessages(group, cfg, states)
	registerBanner(group, cfg, states)

	return router, nil
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, session.ErrNotAuthenticated):
		return newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	case errors.Is(err, workflow.ErrReadOnly):
		return newAPIError(http.StatusConflict, "read_only", err.Error(), nil)
	case errors.Is(err, workflow.ErrSaveInProgress):
		return newAPIError(http.StatusConflict, "save_in_progress", err.Error(), nil)
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

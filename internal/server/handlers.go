package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/shared"
	"github.com/desertthunder/stackr/internal/tasks"
)

const maxBodyBytes = 1 << 20

// StackService is the subset of [tasks.StackEngine] the HTTP API needs.
type StackService interface {
	Build(ctx context.Context, req tasks.BuildRequest, progress chan<- tasks.ProgressUpdate) (*tasks.BuildResult, error)
	Delete(ctx context.Context, id string) (bool, error)
	History(ctx context.Context) ([]models.Stack, error)
	Stack(ctx context.Context, id string) (*models.Stack, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (*tasks.ExposureStats, error)
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// BuildResponse is the body of a successful POST /api/stacks.
type BuildResponse struct {
	Stack      *models.Stack  `json:"stack"`
	Mutation   tasks.Mutation `json:"mutation"`
	Containers int            `json:"containers"`
	Collected  int            `json:"collected"`
	Matched    int            `json:"matched"`
	Committed  bool           `json:"committed"`
}

// StackHandler serves the stack and exposure endpoints.
type StackHandler struct {
	service      StackService
	buildTimeout time.Duration
	maxPerSeed   int
	logger       *log.Logger
}

// NewStackHandler creates a handler. buildTimeout bounds each build; maxPerSeed applies when a request omits it.
func NewStackHandler(service StackService, buildTimeout time.Duration, maxPerSeed int, logger *log.Logger) *StackHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &StackHandler{
		service:      service,
		buildTimeout: buildTimeout,
		maxPerSeed:   maxPerSeed,
		logger:       shared.WithLogger(logger, "component", "api"),
	}
}

const (
	routeBuild  = "POST /api/stacks"
	routeList   = "GET /api/stacks"
	routeGet    = "GET /api/stacks/{id}"
	routeDelete = "DELETE /api/stacks/{id}"
	routeStats  = "GET /api/exposure"
	routeClear  = "DELETE /api/exposure"
)

// Routes returns the HTTP routes this handler serves.
func (h *StackHandler) Routes() []string {
	return []string{routeBuild, routeList, routeGet, routeDelete, routeStats, routeClear}
}

// ServeHTTP dispatches on the matched mux pattern.
func (h *StackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case routeBuild:
		h.build(w, r)
	case routeList:
		h.list(w, r)
	case routeGet:
		h.get(w, r)
	case routeDelete:
		h.delete(w, r)
	case routeStats:
		h.stats(w, r)
	case routeClear:
		h.clear(w, r)
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

func (h *StackHandler) build(w http.ResponseWriter, r *http.Request) {
	var req tasks.BuildRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, models.ErrUnknownSeedKind) {
			h.fail(w, r, errors.Join(shared.ErrInvalidSeeds, err))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
		return
	}
	if req.MaxPerSeed <= 0 {
		req.MaxPerSeed = h.maxPerSeed
	}

	ctx := r.Context()
	if h.buildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.buildTimeout)
		defer cancel()
	}

	result, err := h.service.Build(ctx, req, nil)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := http.StatusCreated
	if !result.Committed {
		status = http.StatusOK
	}
	writeJSON(w, status, BuildResponse{
		Stack:      result.Stack,
		Mutation:   result.Mutation,
		Containers: result.Containers,
		Collected:  result.Collected,
		Matched:    result.Matched,
		Committed:  result.Committed,
	})
}

func (h *StackHandler) list(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.History(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if history == nil {
		history = []models.Stack{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"stacks": history})
}

func (h *StackHandler) get(w http.ResponseWriter, r *http.Request) {
	stack, err := h.service.Stack(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stack)
}

func (h *StackHandler) delete(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *StackHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *StackHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// fail maps domain errors to status codes.
func (h *StackHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", RequestID(r.Context()))
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeError(w, status, code, msg)
}

// StatusFor returns the HTTP status and error code for err.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrInvalidSeeds):
		return http.StatusBadRequest, "invalid_seeds"
	case errors.Is(err, shared.ErrNoNewContent):
		return http.StatusConflict, "no_new_content"
	case errors.Is(err, shared.ErrStackNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, shared.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: strings.TrimSpace(msg), Code: code})
}

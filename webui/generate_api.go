package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"imagestream/core"
	"imagestream/imagegen"
	"imagestream/logging"
	"imagestream/metrics"
)

const (
	maxGenerateBodyBytes = 64 << 20
	defaultHistoryLimit  = 20
	maxHistoryLimit      = 100
)

// Generator runs one generation against a per-run sink. *imagegen.Generator
// implements it.
type Generator interface {
	GenerateTo(ctx context.Context, params imagegen.Params, refs []imagegen.ReferenceImage, sink imagegen.Sink) (*imagegen.Result, error)
}

// GenerateRequest is the body of POST /api/generate. Unset fields take the
// configured defaults. "n" is accepted as an alias for "count".
type GenerateRequest struct {
	Model           string   `json:"model"`
	Prompt          string   `json:"prompt"`
	Count           *int     `json:"count,omitempty"`
	N               *int     `json:"n,omitempty"`
	Size            string   `json:"size,omitempty"`
	GuidanceScale   *float64 `json:"guidance_scale,omitempty"`
	Steps           *int     `json:"num_inference_steps,omitempty"`
	Strength        *float64 `json:"strength,omitempty"`
	ReferenceImages []string `json:"reference_images,omitempty"`
}

// GenerateResponse acknowledges an accepted generation. Delivery events for
// it arrive on /ws tagged with CorrelationID.
type GenerateResponse struct {
	CorrelationID string `json:"correlation_id"`
	Status        string `json:"status"`
	Count         int    `json:"count"`
	Size          string `json:"size"`
}

// HistoryResponse is the body of GET /api/generations.
type HistoryResponse struct {
	Summary     metrics.Summary            `json:"summary"`
	Generations []metrics.GenerationRecord `json:"generations"`
}

// GenerateAPI accepts generation requests, runs them in the background and
// streams their delivery over the broadcaster.
type GenerateAPI struct {
	generator   Generator
	broadcaster *WebSocketBroadcaster
	store       *metrics.Store
	defaults    core.GenerationDefaults
	logger      *logging.Logger

	// baseCtx bounds background runs; cancelling it cancels every job.
	baseCtx context.Context
	jobs    sync.WaitGroup
}

// NewGenerateAPI wires the API. store may be nil, in which case history is empty.
func NewGenerateAPI(
	baseCtx context.Context,
	generator Generator,
	broadcaster *WebSocketBroadcaster,
	store *metrics.Store,
	defaults core.GenerationDefaults,
	logger *logging.Logger,
) *GenerateAPI {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &GenerateAPI{
		generator:   generator,
		broadcaster: broadcaster,
		store:       store,
		defaults:    defaults,
		logger:      logger.Named("api"),
		baseCtx:     baseCtx,
	}
}

// RegisterRoutes adds the API endpoints to mux.
func (a *GenerateAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(PathGenerate, a.handleGenerate)
	mux.HandleFunc(PathGenerations, a.handleGenerations)
	mux.HandleFunc(PathHealth, a.handleHealth)
}

// Wait blocks until every background generation has finished.
func (a *GenerateAPI) Wait() {
	a.jobs.Wait()
}

func (a *GenerateAPI) handleGenerate(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req GenerateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGenerateBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}

	params := a.paramsFrom(req)
	if err := imagegen.Validate(params); err != nil {
		var ve *imagegen.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   http.StatusBadRequest,
				Message: ve.Reason,
				Code:    ve.Code,
			})
			return
		}
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	refs := make([]imagegen.ReferenceImage, 0, len(req.ReferenceImages))
	for i, raw := range req.ReferenceImages {
		ref, err := imagegen.ParseReferenceImage(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   http.StatusBadRequest,
				Message: fmt.Sprintf("reference image %d: %v", i+1, err),
				Code:    "invalid_reference",
			})
			return
		}
		refs = append(refs, ref)
	}

	id := uuid.NewString()
	a.broadcaster.BroadcastMessage(NewWSMessage(MessageTypeGenerationStarted, GenerationStartedData{
		CorrelationID: id,
		Prompt:        params.Prompt,
		Count:         params.Count,
		Size:          params.Size,
	}))

	a.jobs.Add(1)
	go a.run(id, params, refs)

	writeJSON(w, http.StatusAccepted, GenerateResponse{
		CorrelationID: id,
		Status:        "accepted",
		Count:         params.Count,
		Size:          params.Size,
	})
}

func (a *GenerateAPI) paramsFrom(req GenerateRequest) imagegen.Params {
	p := imagegen.ParamsFromDefaults(a.defaults)
	p.Prompt = req.Prompt
	if req.Model != "" {
		p.Model = req.Model
	}
	if req.Size != "" {
		p.Size = req.Size
	}
	switch {
	case req.Count != nil:
		p.Count = *req.Count
	case req.N != nil:
		p.Count = *req.N
	}
	if req.GuidanceScale != nil {
		p.GuidanceScale = *req.GuidanceScale
	}
	if req.Steps != nil {
		p.Steps = *req.Steps
	}
	if req.Strength != nil {
		p.Strength = *req.Strength
	}
	return p
}

func (a *GenerateAPI) run(id string, params imagegen.Params, refs []imagegen.ReferenceImage) {
	defer a.jobs.Done()

	ctx := imagegen.WithCorrelationID(a.baseCtx, id)
	result, err := a.generator.GenerateTo(ctx, params, refs, NewWebSocketSink(a.broadcaster, id))
	if err != nil {
		a.logger.Warn("Background generation failed",
			zap.String("correlation_id", id),
			zap.Error(err))
		a.broadcaster.BroadcastMessage(NewWSMessage(MessageTypeGenerationFailed, GenerationFailedData{
			CorrelationID: id,
			Code:          failureCode(err),
			Message:       err.Error(),
		}))
		return
	}
	a.broadcaster.BroadcastMessage(NewCompleteMessage(result))
}

// failureCode classifies a generation error with the metrics outcome names.
func failureCode(err error) string {
	var ve *imagegen.ValidationError
	var te *imagegen.TransportError
	switch {
	case errors.As(err, &ve):
		return ve.Code
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCancelled
	case errors.As(err, &te):
		return metrics.OutcomeTransport
	case errors.Is(err, imagegen.ErrNoImages):
		return metrics.OutcomeNoImages
	default:
		return "internal_error"
	}
}

func (a *GenerateAPI) handleGenerations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	resp := HistoryResponse{Generations: []metrics.GenerationRecord{}}
	if a.store != nil {
		resp.Summary = a.store.Summary()
		if recent := a.store.Recent(limit); recent != nil {
			resp.Generations = recent
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *GenerateAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": a.broadcaster.ClientCount(),
	})
}

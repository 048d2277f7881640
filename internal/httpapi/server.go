package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llamad/internal/auth"
	"llamad/internal/prompt"
	"llamad/internal/supervisor"
	"llamad/pkg/types"
)

// Stream is a streaming answer as seen by the HTTP layer.
type Stream interface {
	Events() <-chan supervisor.StreamEvent
	Close()
}

// Service defines the methods required by the HTTP API layer.
type Service interface {
	LoadModels(ctx context.Context) error
	Models() map[string][]string
	LoadModel(ctx context.Context, name, personality string) error
	UnloadModel(ctx context.Context) error
	AskQuestion(ctx context.Context, messages []prompt.Message) (string, error)
	AskQuestionStream(messages []prompt.Message) Stream
	Status() supervisor.Snapshot
	Subscribe() (<-chan supervisor.StatusEvent, func())
	Errors() string
}

type supervisorService struct{ *supervisor.Supervisor }

func (s supervisorService) AskQuestionStream(messages []prompt.Message) Stream {
	return s.Supervisor.AskQuestionStream(messages)
}

// NewService adapts a Supervisor to Service.
func NewService(s *supervisor.Supervisor) Service { return supervisorService{s} }

// NewMux builds the router. Auth (when configured) covers every API route;
// the static fallback stays public like the ACME challenge path.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if corsEnabled {
		r.Use(cors.Handler(corsOptions()))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)
	r.Use(RequestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		st := svc.Status().Status
		if st.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(string(st)))
	})
	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	h := &handlers{svc: svc}
	r.Group(func(r chi.Router) {
		if authStore != nil {
			r.Use(auth.Middleware(authStore, logger()))
		}
		r.Route("/chat", func(r chi.Router) {
			r.Post("/completions", h.completions)
			r.Get("/ask", h.ask)
			r.Get("/errors", h.drainErrors)
		})
		r.Get("/models", h.models)
		r.Post("/loadModel", h.loadModel)
		r.Get("/unloadModel", h.unloadModel)
		r.Post("/unloadModel", h.unloadModel)
		r.Get("/status", h.status)
		r.Get("/ping", h.ping)
	})

	if staticDir != "" {
		r.NotFound(http.FileServer(http.Dir(staticDir)).ServeHTTP)
	}
	return r
}

func corsOptions() cors.Options {
	o := cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: corsAllowedMethods,
		AllowedHeaders: corsAllowedHeaders,
	}
	if len(o.AllowedOrigins) == 0 {
		o.AllowedOrigins = []string{"*"}
	}
	if len(o.AllowedMethods) == 0 {
		o.AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	if len(o.AllowedHeaders) == 0 {
		o.AllowedHeaders = []string{"Authorization", "Content-Type"}
	}
	return o
}

type handlers struct{ svc Service }

// models godoc
// @Summary      List models
// @Description  Reloads the model catalog and lists each model's personalities.
// @Tags         models
// @Produce      json
// @Success      200  {object}  map[string]types.ModelEntry
// @Failure      500  {object}  types.ErrorResponse
// @Router       /models [get]
func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.LoadModels(r.Context()); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Failed to load models: "+err.Error())
		return
	}
	writeJSON(w, modelEntries(h.svc.Models()))
}

func modelEntries(m map[string][]string) map[string]types.ModelEntry {
	out := make(map[string]types.ModelEntry, len(m))
	for name, ps := range m {
		if ps == nil {
			ps = []string{}
		}
		out[name] = types.ModelEntry{Personalities: ps}
	}
	return out
}

// loadModel godoc
// @Summary      Load a model
// @Description  Replaces the running session and starts llama.cpp for the model.
// @Tags         models
// @Accept       json
// @Produce      json
// @Param        body  body      types.LoadModelRequest  true  "Model and optional personality"
// @Success      200   {object}  types.MessageResponse
// @Failure      400   {object}  types.ErrorResponse
// @Failure      404   {object}  types.ErrorResponse
// @Failure      500   {object}  types.ErrorResponse
// @Router       /loadModel [post]
func (h *handlers) loadModel(w http.ResponseWriter, r *http.Request) {
	var req types.LoadModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Model == "" {
		writeJSONError(w, http.StatusBadRequest, "Model parameter is required")
		return
	}
	if err := h.svc.LoadModel(r.Context(), req.Model, req.Personality); err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, types.MessageResponse{Message: "Model loading."})
}

// unloadModel godoc
// @Summary      Unload the model
// @Tags         models
// @Produce      json
// @Success      200  {object}  types.MessageResponse
// @Failure      500  {object}  types.ErrorResponse
// @Router       /unloadModel [get]
func (h *handlers) unloadModel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.UnloadModel(r.Context()); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, types.MessageResponse{Message: "Model unloaded."})
}

// status godoc
// @Summary      Session status stream
// @Description  Server-sent events; one "message" event now and one per status change.
// @Tags         status
// @Produce      text/event-stream
// @Success      200  {object}  types.StatusEvent
// @Router       /status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	events, unsubscribe := h.svc.Subscribe()
	defer unsubscribe()
	ctx, cancel := streamContext(r)
	defer cancel()

	sse := prepStream(w)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := sse.event("message", h.statusEvent(ev)); err != nil {
				return
			}
		}
	}
}

func (h *handlers) statusEvent(ev supervisor.StatusEvent) types.StatusEvent {
	out := types.StatusEvent{Status: string(ev.Status), Models: modelEntries(h.svc.Models())}
	if ev.Meta != nil {
		out.Info = &types.SessionInfo{Model: ev.Meta.Model, Personality: ev.Meta.Personality, Meta: ev.Meta.Definition}
	}
	return out
}

// ping godoc
// @Summary  Liveness probe behind auth
// @Tags     status
// @Produce  plain
// @Success  200  {string}  string  "pong"
// @Router   /ping [get]
func (h *handlers) ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("pong"))
}

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"llamad/internal/prompt"
	"llamad/internal/supervisor"
	"llamad/pkg/types"
)

// decodeJSON reads a size-limited JSON body into v, writing 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	// Limit body size (configurable, default 1MiB)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		if errors.Is(err, io.EOF) {
			writeJSONError(w, http.StatusBadRequest, "empty request body")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func toPromptMessages(in []openai.ChatCompletionMessage) []prompt.Message {
	out := make([]prompt.Message, len(in))
	for i, m := range in {
		out[i] = prompt.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

// completions godoc
// @Summary      Chat completion
// @Description  Answers a conversation. With stream=true the reply is sent as OpenAI-style
// @Description  chat.completion.chunk events terminated by "data: [DONE]".
// @Tags         chat
// @Accept       json
// @Produce      json
// @Produce      text/event-stream
// @Param        body  body      types.ChatRequest  true  "Conversation"
// @Success      200   {object}  types.ChatResponse
// @Failure      400   {object}  types.ErrorResponse
// @Failure      500   {object}  types.ErrorResponse
// @Router       /chat/completions [post]
func (h *handlers) completions(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Messages) == 0 || req.Messages[0].Role == "" {
		writeJSONError(w, http.StatusBadRequest, "Invalid or missing messages array")
		return
	}
	msgs := toPromptMessages(req.Messages)

	if !req.Stream {
		text, err := h.svc.AskQuestion(r.Context(), msgs)
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, types.ChatResponse{Responses: text})
		return
	}

	ctx, cancel := streamContext(r)
	defer cancel()
	stream := h.svc.AskQuestionStream(msgs)
	defer stream.Close()
	sse := prepStream(w)
	debug := h.debugWriter(r)
	defer debug.Flush()

	model := ""
	if meta := h.svc.Status().Meta; meta != nil {
		model = meta.Model
	}
	chunk := openai.ChatCompletionStreamResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-stream.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case supervisor.StreamData:
				_, _ = debug.Write([]byte(ev.Data))
				chunk.Choices = []openai.ChatCompletionStreamChoice{{
					Index: 0,
					Delta: openai.ChatCompletionStreamChoiceDelta{Content: ev.Data},
				}}
				if err := sse.data(chunk); err != nil {
					return
				}
			case supervisor.StreamEnd:
				_ = sse.raw("", "[DONE]")
				return
			case supervisor.StreamError:
				logStreamError(r, ev.Err)
				return
			}
		}
	}
}

// ask godoc
// @Summary      Ask a single question
// @Description  Wraps the question as one user message. With stream=true fragments are sent as
// @Description  data events followed by an "end" or "error" event.
// @Tags         chat
// @Produce      json
// @Produce      text/event-stream
// @Param        question  query     string  true   "Question text"
// @Param        stream    query     bool    false  "Stream the answer"
// @Success      200       {object}  types.AskResponse
// @Failure      400       {object}  types.ErrorResponse
// @Failure      500       {object}  types.ErrorResponse
// @Router       /chat/ask [get]
func (h *handlers) ask(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("question")
	if question == "" {
		writeJSONError(w, http.StatusBadRequest, "No question provided")
		return
	}
	msgs := []prompt.Message{{Role: prompt.RoleUser, Content: question}}

	if r.URL.Query().Get("stream") != "true" {
		text, err := h.svc.AskQuestion(r.Context(), msgs)
		if err != nil {
			if r.Context().Err() != nil {
				return
			}
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, types.AskResponse{Question: question, Response: cleanAnswer(text)})
		return
	}

	ctx, cancel := streamContext(r)
	defer cancel()
	stream := h.svc.AskQuestionStream(msgs)
	defer stream.Close()
	sse := prepStream(w)
	debug := h.debugWriter(r)
	defer debug.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-stream.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case supervisor.StreamData:
				_, _ = debug.Write([]byte(ev.Data))
				if err := sse.data(types.AskChunk{Response: ev.Data}); err != nil {
					return
				}
			case supervisor.StreamEnd:
				_ = sse.event("end", nil)
				return
			case supervisor.StreamError:
				logStreamError(r, ev.Err)
				_ = sse.event("error", types.ErrorResponse{Error: ev.Err.Error()})
				return
			}
		}
	}
}

// cleanAnswer trims the answer and a leading completion marker.
func cleanAnswer(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, supervisor.DefaultMarker) {
		s = strings.TrimSpace(s[len(supervisor.DefaultMarker):])
	}
	return s
}

// drainErrors godoc
// @Summary      Drain the error buffer
// @Description  Returns the stderr text collected since the last call and clears it.
// @Tags         chat
// @Produce      json
// @Success      200  {object}  types.ErrorsResponse
// @Router       /chat/errors [get]
func (h *handlers) drainErrors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, types.ErrorsResponse{Errors: h.svc.Errors()})
}

// debugWriter returns a line logger for generated text when the request asks
// for debug logging, or a discard writer.
func (h *handlers) debugWriter(r *http.Request) interface {
	io.Writer
	Flush()
} {
	if requestLogLevel(r) >= LevelDebug {
		return &loggingLineWriter{rid: middleware.GetReqID(r.Context())}
	}
	return discardFlusher{}
}

type discardFlusher struct{}

func (discardFlusher) Write(p []byte) (int, error) { return len(p), nil }
func (discardFlusher) Flush()                      {}

func logStreamError(r *http.Request, err error) {
	l := logger()
	l.Warn().Str("path", r.URL.Path).Str("request_id", middleware.GetReqID(r.Context())).Err(err).Msg("stream error")
}

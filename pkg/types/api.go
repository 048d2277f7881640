package types

import openai "github.com/sashabaranov/go-openai"

// ChatRequest is the payload for POST /chat/completions.
type ChatRequest struct {
	// Conversation in order. The first message must carry a role.
	Messages []openai.ChatCompletionMessage `json:"messages"`
	// If true, stream results as server-sent events.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
}

// ChatResponse is the buffered reply of POST /chat/completions.
type ChatResponse struct {
	// Full text produced by the model for this request.
	// example: Hello! How can I help?
	Responses string `json:"responses" example:"Hello! How can I help?"`
}

// AskResponse is returned by GET /chat/ask when not streaming.
type AskResponse struct {
	Question string `json:"question" example:"What is a haiku?"`
	Response string `json:"response" example:"A short Japanese poem."`
}

// AskChunk is one SSE data payload of a streamed GET /chat/ask.
type AskChunk struct {
	Response string `json:"response"`
}

// ErrorsResponse carries the drained error buffer for GET /chat/errors.
type ErrorsResponse struct {
	Errors string `json:"errors"`
}

// LoadModelRequest is the payload for POST /loadModel.
type LoadModelRequest struct {
	// Catalog name of the model.
	// example: mistral-7b
	Model string `json:"model" example:"mistral-7b"`
	// Optional personality; empty or "none" loads without a system prompt.
	// example: pirate
	Personality string `json:"personality,omitempty" example:"pirate"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message" example:"Model unloaded."`
}

// ModelEntry lists the personalities of one catalog model.
type ModelEntry struct {
	Personalities []string `json:"personalities"`
}

// SessionInfo describes the model bound to the current session.
type SessionInfo struct {
	Model       string `json:"model"`
	Personality string `json:"personality"`
	Meta        any    `json:"meta,omitempty"`
}

// StatusEvent is one message of the GET /status event stream.
type StatusEvent struct {
	// Session status: Terminated, Loading, Idle or Processing.
	// example: Idle
	Status string                `json:"status" example:"Idle"`
	Info   *SessionInfo          `json:"info"`
	Models map[string]ModelEntry `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code,omitempty" example:"400"`
}

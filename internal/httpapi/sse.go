package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// sseWriter writes Server-Sent Events and flushes after each one.
type sseWriter struct {
	w     http.ResponseWriter
	flush func()
}

// prepStream sets the event-stream headers and flushes them so clients see the
// stream open before the first event.
func prepStream(w http.ResponseWriter) *sseWriter {
	h := w.Header()
	h.Set("Cache-Control", "no-cache")
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	s := &sseWriter{w: w, flush: func() {}}
	if f, ok := w.(http.Flusher); ok {
		s.flush = f.Flush
	}
	s.flush()
	return s
}

// data writes an unnamed event whose payload is v encoded as JSON.
func (s *sseWriter) data(v any) error {
	return s.event("", v)
}

// event writes a named event. A nil v is sent as the literal null.
func (s *sseWriter) event(name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.raw(name, string(b))
}

func (s *sseWriter) raw(name, payload string) error {
	var err error
	if name != "" {
		_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, payload)
	} else {
		_, err = fmt.Fprintf(s.w, "data: %s\n\n", payload)
	}
	s.flush()
	return err
}

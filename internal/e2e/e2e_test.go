package e2e

import (
	"net/http"
	"strings"
	"testing"

	"llamad/internal/diag"
	"llamad/internal/supervisor"
	"llamad/pkg/types"
)

func TestE2E_LoadAskUnload(t *testing.T) {
	srv, sup := newServer(t)

	resp, body := httpGet(t, srv.URL+"/models")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("models status=%d body=%s", resp.StatusCode, body)
	}
	var models map[string]types.ModelEntry
	decode(t, body, &models)
	if got := models["echo"].Personalities; len(got) != 1 || got[0] != "pirate" {
		t.Fatalf("personalities=%v", got)
	}

	if resp, _ := httpGet(t, srv.URL+"/readyz"); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz before load = %d", resp.StatusCode)
	}
	loadAndWait(t, srv.URL, "echo", "pirate")
	if loading := strings.Join(sup.Diag().Entries(diag.LevelLoading), "\n"); !strings.Contains(loading, "Tensors: ggml ctx size = 0.11 MiB") {
		t.Fatalf("loading log not extracted: %q", loading)
	}

	req := map[string]any{"messages": []map[string]string{{"role": "user", "content": "Hi"}}}
	resp, body = httpPostJSON(t, srv.URL+"/chat/completions", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("completions status=%d body=%s", resp.StatusCode, body)
	}
	var first types.ChatResponse
	decode(t, body, &first)
	if !strings.Contains(first.Responses, "Hi") || !strings.Contains(first.Responses, "Talk like a pirate.") {
		t.Fatalf("first response = %q", first.Responses)
	}
	if !strings.HasSuffix(first.Responses, "> ") {
		t.Fatalf("response should end at the marker: %q", first.Responses)
	}

	// The personality only prefixes the first prompt of a session.
	resp, body = httpPostJSON(t, srv.URL+"/chat/completions", req)
	var second types.ChatResponse
	decode(t, body, &second)
	if resp.StatusCode != http.StatusOK || strings.Contains(second.Responses, "pirate") {
		t.Fatalf("second status=%d response=%q", resp.StatusCode, second.Responses)
	}

	resp, body = httpGet(t, srv.URL+"/chat/ask?question=Hello")
	var ask types.AskResponse
	decode(t, body, &ask)
	if resp.StatusCode != http.StatusOK || ask.Question != "Hello" || !strings.HasPrefix(ask.Response, "echo: ") {
		t.Fatalf("ask status=%d body=%+v", resp.StatusCode, ask)
	}

	resp, body = httpPostJSON(t, srv.URL+"/unloadModel", struct{}{})
	var msg types.MessageResponse
	decode(t, body, &msg)
	if resp.StatusCode != http.StatusOK || msg.Message != "Model unloaded." {
		t.Fatalf("unload status=%d body=%s", resp.StatusCode, body)
	}
	if st := sup.Status(); st.Status != supervisor.StatusTerminated || st.Meta != nil {
		t.Fatalf("after unload: %+v", st)
	}
}

func TestE2E_StreamCompletions(t *testing.T) {
	srv, _ := newServer(t)
	loadAndWait(t, srv.URL, "echo", "")

	req := map[string]any{"stream": true, "messages": []map[string]string{{"role": "user", "content": "stream me"}}}
	resp, body := httpPostJSON(t, srv.URL+"/chat/completions", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content-type=%q", ct)
	}
	s := string(body)
	if !strings.Contains(s, `"object":"chat.completion.chunk"`) || !strings.Contains(s, "stream me") {
		t.Fatalf("missing chunks: %s", s)
	}
	if !strings.HasSuffix(s, "data: [DONE]\n\n") {
		t.Fatalf("stream not terminated by [DONE]: %q", s)
	}
}

func TestE2E_StreamAsk(t *testing.T) {
	srv, _ := newServer(t)
	loadAndWait(t, srv.URL, "echo", "")

	resp, body := httpGet(t, srv.URL+"/chat/ask?stream=true&question=again")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	s := string(body)
	if !strings.Contains(s, `"response":`) || !strings.Contains(s, "event: end") {
		t.Fatalf("unexpected stream: %q", s)
	}
}

func TestE2E_ProcessingErrorFillsErrorBuffer(t *testing.T) {
	srv, _ := newServer(t)
	loadAndWait(t, srv.URL, "echo", "")

	resp, body := httpGet(t, srv.URL+"/chat/ask?question=FAIL")
	var e types.ErrorResponse
	decode(t, body, &e)
	if resp.StatusCode != http.StatusInternalServerError || e.Error != "Error occurred while processing." {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}

	_, body = httpGet(t, srv.URL+"/chat/errors")
	var errs types.ErrorsResponse
	decode(t, body, &errs)
	if !strings.Contains(errs.Errors, "boom") {
		t.Fatalf("errors=%q", errs.Errors)
	}
	_, body = httpGet(t, srv.URL+"/chat/errors")
	decode(t, body, &errs)
	if errs.Errors != "" {
		t.Fatalf("error buffer not cleared: %q", errs.Errors)
	}

	// The session survives a processing error.
	resp, _ = httpGet(t, srv.URL+"/chat/ask?question=ok")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ask after error status=%d", resp.StatusCode)
	}
}

func TestE2E_LoadValidation(t *testing.T) {
	srv, sup := newServer(t)

	resp, body := httpPostJSON(t, srv.URL+"/loadModel", map[string]string{"model": "nope"})
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(string(body), "Model 'nope' does not exist.") {
		t.Fatalf("unknown model status=%d body=%s", resp.StatusCode, body)
	}
	resp, body = httpPostJSON(t, srv.URL+"/loadModel", map[string]string{"model": "echo", "personality": "ninja"})
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(string(body), "Personality 'ninja' does not exist for model 'echo'.") {
		t.Fatalf("unknown personality status=%d body=%s", resp.StatusCode, body)
	}
	if st := sup.Status().Status; st != supervisor.StatusTerminated {
		t.Fatalf("validation must not spawn: status=%s", st)
	}
}

func TestE2E_ReloadReplacesSession(t *testing.T) {
	srv, sup := newServer(t)
	loadAndWait(t, srv.URL, "echo", "")
	pid := sup.Status().Pid

	loadAndWait(t, srv.URL, "echo", "pirate")
	st := sup.Status()
	if st.Pid == pid || st.Meta == nil || st.Meta.Personality != "pirate" {
		t.Fatalf("reload kept old session: pid %d -> %d meta=%+v", pid, st.Pid, st.Meta)
	}
}

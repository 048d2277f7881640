package supervisor

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"llamad/internal/catalog"
	"llamad/internal/diag"
	"llamad/internal/prompt"
)

const waitFor = 2 * time.Second

// fakeProc is an in-memory llama.cpp stand-in driven by the test.
type fakeProc struct {
	pid    int
	stdinR *io.PipeReader
	stdinW *io.PipeWriter
	outR   *io.PipeReader
	outW   *io.PipeWriter
	errR   *io.PipeReader
	errW   *io.PipeWriter
	lines  chan string

	ignoreInterrupt bool
	interrupts      atomic.Int32
	kills           atomic.Int32

	once    sync.Once
	exited  chan struct{}
	exitErr error
}

func newFakeProc(pid int) *fakeProc {
	p := &fakeProc{pid: pid, lines: make(chan string, 64), exited: make(chan struct{})}
	p.stdinR, p.stdinW = io.Pipe()
	p.outR, p.outW = io.Pipe()
	p.errR, p.errW = io.Pipe()
	go func() {
		sc := bufio.NewScanner(p.stdinR)
		for sc.Scan() {
			p.lines <- sc.Text()
		}
	}()
	return p
}

func (p *fakeProc) Stdin() io.Writer  { return p.stdinW }
func (p *fakeProc) Stdout() io.Reader { return p.outR }
func (p *fakeProc) Stderr() io.Reader { return p.errR }
func (p *fakeProc) Pid() int          { return p.pid }

func (p *fakeProc) Interrupt() error {
	p.interrupts.Add(1)
	if !p.ignoreInterrupt {
		p.exit(nil)
	}
	return nil
}

func (p *fakeProc) Kill() error {
	p.kills.Add(1)
	p.exit(errors.New("signal: killed"))
	return nil
}

func (p *fakeProc) Wait() error {
	<-p.exited
	return p.exitErr
}

func (p *fakeProc) exit(err error) {
	p.once.Do(func() {
		p.exitErr = err
		_ = p.outW.Close()
		_ = p.errW.Close()
		_ = p.stdinR.CloseWithError(io.ErrClosedPipe)
		close(p.exited)
	})
}

// out writes one stdout chunk; it returns once the demux has read it.
func (p *fakeProc) out(s string) { _, _ = p.outW.Write([]byte(s)) }

// err writes one stderr chunk.
func (p *fakeProc) err(s string) { _, _ = p.errW.Write([]byte(s)) }

// breakStdin makes further prompt writes fail while the process stays alive.
func (p *fakeProc) breakStdin() { _ = p.stdinR.CloseWithError(errors.New("broken pipe")) }

func (p *fakeProc) nextLine(t *testing.T) string {
	t.Helper()
	select {
	case l := <-p.lines:
		return l
	case <-time.After(waitFor):
		t.Fatalf("no prompt written to stdin")
		return ""
	}
}

func (p *fakeProc) noLine(t *testing.T) {
	t.Helper()
	select {
	case l := <-p.lines:
		t.Fatalf("unexpected prompt written: %q", l)
	case <-time.After(50 * time.Millisecond):
	}
}

type spawnCall struct {
	bin  string
	args []string
}

type fakeSpawner struct {
	mu    sync.Mutex
	calls []spawnCall
	err   error
	procs chan *fakeProc
	pid   int
	// configure is applied to each new process before it is returned.
	configure func(*fakeProc)
}

func newFakeSpawner() *fakeSpawner { return &fakeSpawner{procs: make(chan *fakeProc, 8), pid: 1000} }

func (f *fakeSpawner) spawn(_ context.Context, bin string, args []string) (Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, spawnCall{bin: bin, args: append([]string(nil), args...)})
	if f.err != nil {
		return nil, f.err
	}
	f.pid++
	p := newFakeProc(f.pid)
	if f.configure != nil {
		f.configure(p)
	}
	f.procs <- p
	return p, nil
}

func (f *fakeSpawner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSpawner) next(t *testing.T) *fakeProc {
	t.Helper()
	select {
	case p := <-f.procs:
		return p
	case <-time.After(waitFor):
		t.Fatalf("process was not spawned")
		return nil
	}
}

func intp(v int) *int { return &v }

func testCatalog() catalog.Catalog {
	return catalog.Catalog{
		"mistral": {
			Params:        catalog.Params{Model: "/models/mistral.gguf", Interactive: true, CtxSize: intp(2048)},
			Template:      "mistral",
			Personalities: map[string]string{"pirate": "Talk like a pirate."},
		},
		"zephyr": {
			Params:   catalog.Params{Model: "/models/zephyr.gguf", Interactive: true},
			Template: "zephyr",
		},
		"broken": {
			Params:   catalog.Params{Model: "/models/broken.gguf"},
			Template: "nope",
		},
	}
}

type harness struct {
	sup *Supervisor
	sp  *fakeSpawner
	pub *MemoryPublisher
}

func newHarness(t *testing.T, tweak ...func(*Config)) *harness {
	t.Helper()
	sp := newFakeSpawner()
	pub := NewMemoryPublisher()
	cfg := Config{
		LlamaBin:  "llama-main",
		Spawn:     sp.spawn,
		Publisher: pub,
		StopGrace: 200 * time.Millisecond,
		Diag:      diag.Nop(),
	}
	for _, f := range tweak {
		f(&cfg)
	}
	s := New(cfg)
	s.SetCatalog(testCatalog())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = s.Close(ctx)
	})
	return &harness{sup: s, sp: sp, pub: pub}
}

// load spawns model and drives it to Idle.
func (h *harness) load(t *testing.T, model, personality string) *fakeProc {
	t.Helper()
	require.NoError(t, h.sup.LoadModel(context.Background(), model, personality))
	p := h.sp.next(t)
	p.out("== Running in interactive mode. ==\n\n> ")
	h.waitStatus(t, StatusIdle)
	return p
}

func (h *harness) waitStatus(t *testing.T, want Status) {
	t.Helper()
	require.Eventually(t, func() bool { return h.sup.Status().Status == want }, waitFor, 2*time.Millisecond,
		"status never became %s (now %s)", want, h.sup.Status().Status)
}

func (h *harness) waitQueue(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.sup.Status().QueueDepth == n }, waitFor, 2*time.Millisecond)
}

func user(content string) []prompt.Message {
	return []prompt.Message{{Role: prompt.RoleUser, Content: content}}
}

type askResult struct {
	text string
	err  error
}

// askAsync runs AskQuestion in a goroutine and waits until it is queued or dispatched.
func (h *harness) askAsync(t *testing.T, msgs []prompt.Message) <-chan askResult {
	t.Helper()
	before := h.sup.Status()
	ch := make(chan askResult, 1)
	go func() {
		text, err := h.sup.AskQuestion(context.Background(), msgs)
		ch <- askResult{text: text, err: err}
	}()
	require.Eventually(t, func() bool {
		st := h.sup.Status()
		if before.Status == StatusIdle && before.QueueDepth == 0 {
			return st.Status == StatusProcessing
		}
		return st.QueueDepth > before.QueueDepth
	}, waitFor, time.Millisecond)
	return ch
}

func recv(t *testing.T, ch <-chan askResult) askResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(waitFor):
		t.Fatalf("request never settled")
		return askResult{}
	}
}

// drain collects stream events until the channel closes.
func drain(t *testing.T, st *Stream) []StreamEvent {
	t.Helper()
	var out []StreamEvent
	timeout := time.After(waitFor)
	for {
		select {
		case ev, ok := <-st.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("stream never closed; got %v", out)
			return out
		}
	}
}

func streamText(evs []StreamEvent) string {
	var s string
	for _, ev := range evs {
		if ev.Kind == StreamData {
			s += ev.Data
		}
	}
	return s
}

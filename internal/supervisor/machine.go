package supervisor

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"llamad/internal/diag"
	"llamad/internal/prompt"
)

// request is one queued question.
type request struct {
	id       string
	messages []prompt.Message
	sink     sink
	enqueued time.Time
	started  time.Time
}

// session is the live process and its bookkeeping. done closes once the demux
// has run cleanup for it.
type session struct {
	gen  uint64
	proc Process
	done chan struct{}

	// Prompts waiting for the stdin writer, in dispatch order.
	wmu     sync.Mutex
	pending []pendingWrite
	wake    chan struct{}
}

type pendingWrite struct {
	r    *request
	text string
}

func newSession(gen uint64, proc Process) *session {
	return &session{gen: gen, proc: proc, done: make(chan struct{}), wake: make(chan struct{}, 1)}
}

// enqueueWrite hands text to the writer goroutine. It never blocks.
func (s *session) enqueueWrite(r *request, text string) {
	s.wmu.Lock()
	s.pending = append(s.pending, pendingWrite{r: r, text: text})
	s.wmu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *session) nextWrite() (pendingWrite, bool) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if len(s.pending) == 0 {
		return pendingWrite{}, false
	}
	w := s.pending[0]
	s.pending[0] = pendingWrite{}
	s.pending = s.pending[1:]
	return w, true
}

// writeLoop copies queued prompts to stdin one at a time until done closes.
// A blocked write holds no machine lock; killing the process unblocks it.
func (s *session) writeLoop(fail func(r *request, err error)) {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			w, ok := s.nextWrite()
			if !ok {
				break
			}
			if _, err := io.WriteString(s.proc.Stdin(), w.text); err != nil {
				fail(w.r, err)
			}
		}
	}
}

// machine is the session state machine. Fields below mu are guarded by it, and
// all transitions and status publication happen with mu held, so no two
// transitions interleave. Prompts are written to stdin by the session writer
// outside mu; live mirrors the attached session for lock-free stop paths.
type machine struct {
	marker  string
	delim   string
	timeout time.Duration
	diag    *diag.Logger
	log     zerolog.Logger
	bus     *broadcaster
	metrics *metrics
	// onTimeout is called without mu held when the watchdog fires.
	onTimeout func(gen uint64)
	live      atomic.Pointer[session]

	mu           sync.Mutex
	status       Status
	gen          uint64
	meta         *Meta
	template     string
	systemPrompt string
	queue        []*request
	current      *request
	acc          strings.Builder
	timer        *time.Timer
	// draining is set by the watchdog; nothing is dispatched until Terminated.
	draining bool
}

func newMachine(marker, delim string, timeout time.Duration, d *diag.Logger, log zerolog.Logger, bus *broadcaster, mt *metrics) *machine {
	return &machine{
		marker:    marker,
		delim:     delim,
		timeout:   timeout,
		diag:      d,
		log:       log,
		bus:       bus,
		metrics:   mt,
		onTimeout: func(uint64) {},
		status:    StatusTerminated,
	}
}

// setStatusLocked records the transition, logs it and notifies subscribers.
func (m *machine) setStatusLocked(s Status) {
	old := m.status
	m.status = s
	if old == StatusLoading && s == StatusIdle {
		m.diag.Log("Loading complete.", diag.LevelInfo)
	}
	m.diag.Log(fmt.Sprintf("Status changed from %s to %s", old, s), diag.LevelInfo)
	m.metrics.setStatus(s)
	m.bus.publish(StatusEvent{Status: s, Meta: m.meta})
}

// beginLoading starts a new session generation in Loading with meta recorded.
func (m *machine) beginLoading(meta *Meta, template, systemPrompt string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.live.Store(nil)
	m.meta = meta
	m.template = template
	m.systemPrompt = systemPrompt
	m.draining = false
	m.acc.Reset()
	m.setStatusLocked(StatusLoading)
	return m.gen
}

// attach binds the spawned process to generation gen.
func (m *machine) attach(gen uint64, proc Process) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return nil
	}
	sess := newSession(gen, proc)
	m.live.Store(sess)
	go sess.writeLoop(func(r *request, err error) { m.writeFailed(gen, r, err) })
	return sess
}

// session returns the attached session, if any, without taking mu.
func (m *machine) session() *session { return m.live.Load() }

func (m *machine) submit(r *request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, r)
	m.metrics.queueDepth.Set(float64(len(m.queue)))
	m.log.Debug().Str("event", "enqueue").Str("request", r.id).Int("depth", len(m.queue)).Str("status", string(m.status)).Send()
	m.processNextLocked()
}

// processNextLocked dispatches queued requests while the machine is Idle. A
// request whose prompt cannot be rendered is rejected and the next one is
// tried; rendered prompts go to the session writer.
func (m *machine) processNextLocked() {
	sess := m.live.Load()
	for m.status == StatusIdle && !m.draining && len(m.queue) > 0 && sess != nil {
		r := m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
		m.metrics.queueDepth.Set(float64(len(m.queue)))

		msgs := r.messages
		if m.systemPrompt != "" {
			msgs = make([]prompt.Message, 0, len(r.messages)+1)
			msgs = append(msgs, prompt.Message{Role: prompt.RoleSystem, Content: m.systemPrompt})
			msgs = append(msgs, r.messages...)
			m.systemPrompt = ""
		}

		m.setStatusLocked(StatusProcessing)
		m.current = r
		r.started = time.Now()
		m.acc.Reset()

		text, err := prompt.RenderID(m.template, msgs, m.delim)
		if err != nil {
			m.finishLocked(fmt.Errorf("%w: %w", ErrUnknownTemplate, err), "template_error")
			continue
		}
		sess.enqueueWrite(r, text+"\n")
		m.log.Debug().Str("event", "dispatch").Str("request", r.id).Int("bytes", len(text)+1).Send()
		m.armWatchdogLocked(r)
	}
}

// writeFailed rejects r if it is still the in-flight request of generation gen.
func (m *machine) writeFailed(gen uint64, r *request, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.current != r {
		m.log.Debug().Str("event", "stale_write_error").Str("request", r.id).Err(err).Send()
		return
	}
	m.finishLocked(fmt.Errorf("write prompt: %w", err), "write_error")
	m.processNextLocked()
}

func (m *machine) armWatchdogLocked(r *request) {
	if m.timeout <= 0 {
		return
	}
	gen := m.gen
	m.timer = time.AfterFunc(m.timeout, func() { m.watchdog(gen, r) })
}

func (m *machine) stopWatchdogLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *machine) watchdog(gen uint64, r *request) {
	m.mu.Lock()
	if gen != m.gen || m.current != r || m.status != StatusProcessing {
		m.mu.Unlock()
		return
	}
	m.log.Warn().Str("event", "request_timeout").Str("request", r.id).Dur("timeout", m.timeout).Send()
	m.stopWatchdogLocked()
	m.current = nil
	m.acc.Reset()
	m.draining = true
	r.sink.fail(ErrRequestTimeout)
	m.metrics.observe(r, "timeout")
	m.mu.Unlock()
	m.onTimeout(gen)
}

// finishLocked settles the current request (err == nil resolves it with the
// accumulated output), returns to Idle and leaves dispatch to the caller.
func (m *machine) finishLocked(err error, outcome string) {
	r := m.current
	m.current = nil
	m.stopWatchdogLocked()
	if r != nil {
		if err != nil {
			r.sink.fail(err)
		} else {
			r.sink.end(m.acc.String())
		}
		m.metrics.observe(r, outcome)
		m.log.Debug().Str("event", "settle").Str("request", r.id).Str("outcome", outcome).Send()
	}
	m.acc.Reset()
	m.setStatusLocked(StatusIdle)
}

// onStdout forwards chunk to the in-flight request, then treats a chunk
// containing the marker as the end of the response (or of loading).
func (m *machine) onStdout(gen uint64, chunk string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || m.status == StatusTerminated {
		return
	}
	if m.status == StatusProcessing && m.current != nil {
		if !m.current.sink.data(chunk) {
			m.acc.WriteString(chunk)
		}
	}
	if !strings.Contains(chunk, m.marker) {
		return
	}
	switch m.status {
	case StatusProcessing:
		if m.current == nil {
			return
		}
		m.finishLocked(nil, "resolved")
		m.processNextLocked()
	case StatusIdle:
	default:
		m.setStatusLocked(StatusIdle)
		m.processNextLocked()
	}
}

// onStderr routes chunk to the loading log while Loading; otherwise it is an
// error, which fails the in-flight request.
func (m *machine) onStderr(gen uint64, chunk string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	if m.status == StatusLoading {
		m.diag.LoadLog(chunk)
		return
	}
	if m.status == StatusProcessing && m.current != nil {
		m.finishLocked(ErrProcessing, "processing_error")
		m.processNextLocked()
	}
	m.diag.Log(chunk, diag.LevelError)
	m.diag.AppendError(chunk)
}

// terminate rejects the in-flight request and drains the queue with
// ErrTerminated, then settles Terminated. Calls for an older generation are
// ignored; repeated calls are no-ops.
func (m *machine) terminate(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return
	}
	m.stopWatchdogLocked()
	if r := m.current; r != nil {
		m.current = nil
		r.sink.fail(ErrTerminated)
		m.metrics.observe(r, "terminated")
	}
	for _, r := range m.queue {
		r.sink.fail(ErrTerminated)
		m.metrics.observe(r, "terminated")
	}
	m.queue = nil
	m.metrics.queueDepth.Set(0)
	m.acc.Reset()
	m.live.Store(nil)
	m.meta = nil
	m.template = ""
	m.systemPrompt = ""
	m.draining = false
	if m.status != StatusTerminated {
		m.setStatusLocked(StatusTerminated)
	}
}

func (m *machine) snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{Status: m.status, Meta: m.meta, QueueDepth: len(m.queue)}
	if sess := m.live.Load(); sess != nil {
		s.Pid = sess.proc.Pid()
	}
	return s
}

func (m *machine) subscribe() (<-chan StatusEvent, func()) {
	// Hold mu so the initial event and later transitions keep their order.
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, cancel := m.bus.subscribe()
	m.bus.publishTo(ch, StatusEvent{Status: m.status, Meta: m.meta})
	return ch, cancel
}

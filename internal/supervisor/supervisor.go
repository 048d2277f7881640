package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"llamad/internal/catalog"
	"llamad/internal/diag"
	"llamad/internal/prompt"
)

// noPersonality selects no system prompt, like the empty string.
const noPersonality = "none"

// Supervisor is the facade over the catalog, the child process and the
// request queue. Construct with New; the zero value is not usable.
type Supervisor struct {
	cfg     Config
	log     zerolog.Logger
	diag    *diag.Logger
	pub     EventPublisher
	metrics *metrics
	m       *machine

	// lifecycle serializes LoadModel, UnloadModel and Close.
	lifecycle sync.Mutex

	catMu   sync.RWMutex
	catalog catalog.Catalog
}

// New constructs a Supervisor in the Terminated state.
func New(cfg Config) *Supervisor {
	cfg = cfg.withDefaults()
	s := &Supervisor{
		cfg:     cfg,
		log:     cfg.Logger.With().Str("component", "supervisor").Logger(),
		diag:    cfg.Diag,
		pub:     cfg.Publisher,
		metrics: newMetrics(cfg.Registerer),
	}
	s.m = newMachine(cfg.Marker, cfg.Delimiter, cfg.RequestTimeout, s.diag, s.log, newBroadcaster(), s.metrics)
	s.m.onTimeout = func(gen uint64) {
		s.pub.Publish(Event{Name: "request_timeout"})
		go s.stop(context.Background(), gen)
	}
	return s
}

// LoadModels (re)reads the catalog file and caches it.
func (s *Supervisor) LoadModels(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := catalog.Load(s.cfg.ModelsFile)
	if err != nil {
		s.diag.Log(fmt.Sprintf("Failed to load models: %v", err), diag.LevelError)
		return fmt.Errorf("load catalog: %w", err)
	}
	s.catMu.Lock()
	s.catalog = c
	s.catMu.Unlock()
	s.diag.Log("llama.cpp loaded.", diag.LevelInfo)
	s.log.Info().Str("event", "catalog_loaded").Str("path", s.cfg.ModelsFile).Int("models", len(c)).Send()
	return nil
}

// SetCatalog installs c directly, bypassing the catalog file.
func (s *Supervisor) SetCatalog(c catalog.Catalog) {
	s.catMu.Lock()
	s.catalog = c
	s.catMu.Unlock()
}

func (s *Supervisor) ensureCatalog(ctx context.Context) (catalog.Catalog, error) {
	s.catMu.RLock()
	c := s.catalog
	s.catMu.RUnlock()
	if c != nil {
		return c, nil
	}
	if err := s.LoadModels(ctx); err != nil {
		return nil, err
	}
	s.catMu.RLock()
	defer s.catMu.RUnlock()
	return s.catalog, nil
}

// Models returns model name → sorted personality names. It is empty until the
// catalog has been loaded and does not depend on the session.
func (s *Supervisor) Models() map[string][]string {
	s.catMu.RLock()
	defer s.catMu.RUnlock()
	if s.catalog == nil {
		return map[string][]string{}
	}
	return s.catalog.Personalities()
}

// LoadModel validates name and personality, replaces any running session and
// spawns llama.cpp for the model. It returns once the process is started; the
// session reaches Idle when the process prints its first marker. personality ""
// or "none" selects no system prompt.
func (s *Supervisor) LoadModel(ctx context.Context, name, personality string) error {
	c, err := s.ensureCatalog(ctx)
	if err != nil {
		return err
	}
	def, ok := c[name]
	if !ok {
		return ErrModelNotFound(name)
	}
	var systemPrompt string
	if personality != "" && personality != noPersonality {
		if !def.HasPersonality(personality) {
			return ErrPersonalityNotFound(name, personality)
		}
		systemPrompt = def.Personalities[personality]
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.m.snapshot().Status != StatusTerminated {
		s.log.Info().Str("event", "replace_session").Str("model", name).Send()
		if err := s.unloadLocked(ctx); err != nil {
			return err
		}
	}

	args := catalog.BuildArgs(def.Params)
	s.log.Info().Str("event", "load_start").Str("model", name).Str("personality", personality).Strs("args", args).Send()
	s.pub.Publish(Event{Name: "load_start", Model: name, Fields: map[string]any{"personality": personality}})

	gen := s.m.beginLoading(&Meta{Model: name, Personality: personality, Definition: def}, def.Template, systemPrompt)
	proc, err := s.cfg.Spawn(ctx, s.cfg.LlamaBin, args)
	if err != nil {
		s.diag.Log("Failed to start subprocess.", diag.LevelError)
		s.log.Error().Str("event", "spawn_error").Str("model", name).Err(err).Send()
		s.metrics.loadsTotal.WithLabelValues("spawn_error").Inc()
		s.pub.Publish(Event{Name: "spawn_error", Model: name, Fields: map[string]any{"error": err.Error()}})
		s.m.terminate(gen)
		return fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	sess := s.m.attach(gen, proc)
	if sess == nil {
		// Superseded between spawn and attach; nothing can reach it now.
		_ = proc.Kill()
		return ErrTerminated
	}
	go s.demux(sess)

	s.metrics.loadsTotal.WithLabelValues("ok").Inc()
	s.log.Info().Str("event", "load_spawned").Str("model", name).Int("pid", proc.Pid()).Send()
	s.pub.Publish(Event{Name: "load_spawned", Model: name, Fields: map[string]any{"pid": proc.Pid()}})
	return nil
}

// UnloadModel interrupts the running process and waits until its session is
// Terminated, killing it after StopGrace. It is a no-op when nothing runs.
func (s *Supervisor) UnloadModel(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.unloadLocked(ctx)
}

func (s *Supervisor) unloadLocked(ctx context.Context) error {
	sess := s.m.session()
	if sess == nil {
		return nil
	}
	s.log.Info().Str("event", "unload").Int("pid", sess.proc.Pid()).Send()
	s.pub.Publish(Event{Name: "unload", Fields: map[string]any{"pid": sess.proc.Pid()}})
	return s.stopSession(ctx, sess)
}

// stop terminates generation gen if it is still the live session.
func (s *Supervisor) stop(ctx context.Context, gen uint64) {
	sess := s.m.session()
	if sess == nil || sess.gen != gen {
		return
	}
	if err := s.stopSession(ctx, sess); err != nil {
		s.log.Warn().Str("event", "stop_error").Err(err).Send()
	}
}

func (s *Supervisor) stopSession(ctx context.Context, sess *session) error {
	if err := sess.proc.Interrupt(); err != nil {
		s.log.Debug().Str("event", "interrupt_error").Err(err).Send()
	}
	grace := time.NewTimer(s.cfg.StopGrace)
	defer grace.Stop()
	select {
	case <-sess.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-grace.C:
	}
	s.log.Warn().Str("event", "kill").Int("pid", sess.proc.Pid()).Dur("grace", s.cfg.StopGrace).Send()
	if err := sess.proc.Kill(); err != nil {
		s.log.Debug().Str("event", "kill_error").Err(err).Send()
	}
	select {
	case <-sess.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AskQuestion queues messages and waits for the complete response. Cancelling
// ctx stops the wait only; the request stays queued and its result is dropped.
func (s *Supervisor) AskQuestion(ctx context.Context, messages []prompt.Message) (string, error) {
	b := newBufferedSink()
	s.m.submit(s.newRequest(messages, b))
	select {
	case res := <-b.ch:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// AskQuestionStream queues messages and returns a Stream of response fragments.
func (s *Supervisor) AskQuestionStream(messages []prompt.Message) *Stream {
	r := s.newRequest(messages, nil)
	st := newStream(r.id)
	r.sink = st
	s.m.submit(r)
	return st
}

func (s *Supervisor) newRequest(messages []prompt.Message, sk sink) *request {
	return &request{id: uuid.NewString(), messages: messages, sink: sk, enqueued: time.Now()}
}

// Status returns the current session snapshot.
func (s *Supervisor) Status() Snapshot { return s.m.snapshot() }

// Subscribe returns a channel receiving the current status immediately and
// every status change after it, plus a function that unsubscribes and closes
// the channel. Events are dropped for a subscriber that falls behind.
func (s *Supervisor) Subscribe() (<-chan StatusEvent, func()) { return s.m.subscribe() }

// Errors returns and clears the accumulated stderr text.
func (s *Supervisor) Errors() string { return s.diag.GetErrors() }

// Diag exposes the diagnostic logger.
func (s *Supervisor) Diag() *diag.Logger { return s.diag }

// Close unloads the model. Used at shutdown.
func (s *Supervisor) Close(ctx context.Context) error {
	return s.UnloadModel(ctx)
}

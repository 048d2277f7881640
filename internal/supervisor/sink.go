package supervisor

import "sync"

// sink receives the outcome of one request. Exactly one of end or fail is called.
type sink interface {
	// data forwards a stdout fragment; false means the machine accumulates it instead.
	data(chunk string) bool
	end(text string)
	fail(err error)
}

type result struct {
	text string
	err  error
}

// bufferedSink delivers the accumulated output once.
type bufferedSink struct{ ch chan result }

func newBufferedSink() *bufferedSink { return &bufferedSink{ch: make(chan result, 1)} }

func (b *bufferedSink) data(string) bool { return false }
func (b *bufferedSink) end(text string)  { b.ch <- result{text: text} }
func (b *bufferedSink) fail(err error)   { b.ch <- result{err: err} }

// StreamEventKind tags a StreamEvent.
type StreamEventKind string

const (
	StreamData  StreamEventKind = "data"
	StreamEnd   StreamEventKind = "end"
	StreamError StreamEventKind = "error"
)

// StreamEvent is one item of a streaming response. Data is set for StreamData,
// Err for StreamError.
type StreamEvent struct {
	Kind StreamEventKind
	Data string
	Err  error
}

// Stream is the push-style sink returned by AskQuestionStream. Events yields
// data events followed by exactly one end or error event, then closes. The
// producer never blocks on a slow consumer.
type Stream struct {
	ID string

	mu       sync.Mutex
	pending  []StreamEvent
	finished bool
	closed   bool
	notify   chan struct{}
	out      chan StreamEvent
	done     chan struct{}
	once     sync.Once
}

func newStream(id string) *Stream {
	s := &Stream{
		ID:     id,
		notify: make(chan struct{}, 1),
		out:    make(chan StreamEvent),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

// Events returns the event channel.
func (s *Stream) Events() <-chan StreamEvent { return s.out }

// Close stops listening. Remaining events are discarded; generation is not
// cancelled and the queue is unaffected.
func (s *Stream) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.pending = nil
		s.mu.Unlock()
		close(s.done)
	})
}

// push queues ev for the consumer. Events after Close or after the terminal
// event are dropped.
func (s *Stream) push(ev StreamEvent) {
	s.mu.Lock()
	if s.finished || s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, ev)
	if ev.Kind != StreamData {
		s.finished = true
	}
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Stream) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			finished := s.finished
			s.mu.Unlock()
			if finished {
				return
			}
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *Stream) data(chunk string) bool {
	s.push(StreamEvent{Kind: StreamData, Data: chunk})
	return true
}

func (s *Stream) end(string)     { s.push(StreamEvent{Kind: StreamEnd}) }
func (s *Stream) fail(err error) { s.push(StreamEvent{Kind: StreamError, Err: err}) }

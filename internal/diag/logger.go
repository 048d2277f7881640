// Package diag keeps the diagnostic trail of the llama.cpp process: timestamped
// per-level buffers mirrored to zerolog, extraction of the interesting lines of
// the loading log, and the accumulated stderr error text.
package diag

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grafana/regexp"
	"github.com/rs/zerolog"
)

// Level names a diagnostic buffer.
type Level string

const (
	LevelLoading Level = "loading"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// DefaultMaxEntries bounds each level buffer; the oldest entries are dropped first.
const DefaultMaxEntries = 512

type extractor struct {
	re     *regexp.Regexp
	keep   string // literal re-attached in front of the capture
	prefix string
}

// Logger is safe for concurrent use.
type Logger struct {
	zl         zerolog.Logger
	extractors []extractor
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	buffers map[Level][]string
	errBuf  []string
}

// Option configures a Logger.
type Option func(*Logger)

// WithMaxEntries overrides DefaultMaxEntries. Values < 1 are ignored.
func WithMaxEntries(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.maxEntries = n
		}
	}
}

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// New returns a Logger writing to zl. llmStorage is the directory model files are
// loaded from; when empty the model-name extractor is disabled.
func New(zl zerolog.Logger, llmStorage string, opts ...Option) *Logger {
	l := &Logger{
		zl:         zl,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		buffers:    make(map[Level][]string, 3),
	}
	l.extractors = append(l.extractors, extractor{
		re:   regexp.MustCompile(`Device(.*?), compute`),
		keep: "Device",
	})
	if s := strings.TrimRight(llmStorage, `/\`); s != "" {
		l.extractors = append(l.extractors, extractor{
			re:     regexp.MustCompile(regexp.QuoteMeta(s) + `[/\\](.*?) \(version`),
			prefix: "Model: ",
		})
	}
	l.extractors = append(l.extractors, extractor{
		re:     regexp.MustCompile(`llm_load_tensors:([^\n]*)`),
		prefix: "Tensors: ",
	})
	for _, o := range opts {
		o(l)
	}
	return l
}

// Nop returns a Logger that buffers but discards zerolog output.
func Nop() *Logger { return New(zerolog.Nop(), "") }

// Log appends "[timestamp] message" to the level buffer and emits it.
func (l *Logger) Log(message string, level Level) {
	line := fmt.Sprintf("[%s] %s", l.now().UTC().Format(time.RFC3339Nano), message)
	l.mu.Lock()
	buf := append(l.buffers[level], line)
	if over := len(buf) - l.maxEntries; over > 0 {
		buf = append(buf[:0:0], buf[over:]...)
	}
	l.buffers[level] = buf
	l.mu.Unlock()

	if level == LevelError {
		l.zl.Error().Msg(message)
		return
	}
	l.zl.Info().Str("level_tag", string(level)).Msg(message)
}

// LoadLog pulls device, model and tensor lines out of raw loading output and logs
// each at loading level. Most chunks match nothing.
func (l *Logger) LoadLog(raw string) {
	for _, line := range extract(raw, l.extractors) {
		l.Log(line, LevelLoading)
	}
}

// extract runs every extractor over text in order and returns the trimmed,
// prefixed captures.
func extract(text string, extractors []extractor) []string {
	var out []string
	for _, x := range extractors {
		for _, m := range x.re.FindAllStringSubmatch(text, -1) {
			out = append(out, x.prefix+strings.TrimSpace(x.keep+m[1]))
		}
	}
	return out
}

// AppendError adds raw stderr text to the error accumulation buffer.
func (l *Logger) AppendError(chunk string) {
	l.mu.Lock()
	l.errBuf = append(l.errBuf, chunk)
	l.mu.Unlock()
}

// GetErrors returns the accumulated error text and clears it.
func (l *Logger) GetErrors() string {
	l.mu.Lock()
	errs := strings.Join(l.errBuf, "")
	l.errBuf = nil
	l.mu.Unlock()
	l.zl.Debug().Int("bytes", len(errs)).Msg("errors requested")
	return errs
}

// Entries returns a copy of the level buffer.
func (l *Logger) Entries(level Level) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.buffers[level]...)
}

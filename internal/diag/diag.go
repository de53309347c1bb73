// Package diag holds the linker's process-wide diagnostics: a structured
// logger, an error sink that accumulates semantic-link errors across
// parallel phases, and the -y/--trace-symbol resolution tracer.
package diag

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Log is the linker's structured logger. Only warnings and above are
// printed unless SetVerbose is called, matching the teacher's terse
// stderr-only diagnostics.
var Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false}).
	With().Timestamp().Logger().Level(zerolog.WarnLevel)

// SetVerbose raises the log level to info. No command-line option calls
// it (-v prints the version).
func SetVerbose() {
	Log = Log.Level(zerolog.InfoLevel)
}

// Sink accumulates SemanticLinkError-class diagnostics produced by
// parallel phases. Workers append to one shared slice under a mutex;
// Checkpoint reports everything collected. This mirrors spec §5's "fatal errors... mark a
// process-wide error flag" and §7's "accumulated into a process-wide
// error sink; the next checkpoint aborts with all collected messages."
type Sink struct {
	mu       sync.Mutex
	messages []string
}

func NewSink() *Sink {
	return &Sink{}
}

// Report appends a diagnostic. Safe for concurrent use from any phase
// worker.
func (s *Sink) Report(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// HasErrors reports whether any diagnostic has been recorded.
func (s *Sink) HasErrors() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages) > 0
}

// Checkpoint aborts the link if any diagnostic was recorded, printing
// every accumulated message first. A no-op checkpoint passes through
// silently, corresponding to spec §5's "each phase ends with a
// checkpoint() that aborts the link if the flag is set."
func (s *Sink) Checkpoint() {
	s.mu.Lock()
	msgs := s.messages
	s.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	for _, m := range msgs {
		fmt.Fprintf(os.Stderr, "mold: error: %s\n", m)
	}
	os.Exit(1)
}

// Tracer logs resolution steps for symbols named via -y/--trace-symbol.
type Tracer struct {
	names map[string]bool
}

func NewTracer(names []string) *Tracer {
	t := &Tracer{names: make(map[string]bool, len(names))}
	for _, n := range names {
		t.names[n] = true
	}
	return t
}

// Traced reports whether name was requested via -y/--trace-symbol.
func (t *Tracer) Traced(name string) bool {
	if t == nil {
		return false
	}
	return t.names[name]
}

// Step logs a single resolution event for a traced symbol.
func (t *Tracer) Step(name, format string, args ...any) {
	if !t.Traced(name) {
		return
	}
	Log.Info().Str("symbol", name).Msg(fmt.Sprintf(format, args...))
}

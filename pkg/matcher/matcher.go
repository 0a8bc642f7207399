// Package matcher builds the recursive match tree: it obtains MIME-level
// signature candidates for a byte window, deduplicates them, probes the
// registered parser capabilities, and commits nodes only for candidates
// that survive their probe.
package matcher

import (
	"errors"
	"fmt"
	"iter"

	"github.com/mightyhouseinc/polyfile/pkg/registry"
	"github.com/mightyhouseinc/polyfile/pkg/types"
	"github.com/mightyhouseinc/polyfile/pkg/window"
)

// ErrResourceLimit marks resource-exhaustion failures: the recursion
// depth or node-count cap was exceeded for this input. Unlike a parser
// fault it aborts the whole run, failing closed on adversarial input.
var ErrResourceLimit = errors.New("matcher: resource limit exceeded")

const (
	// DefaultMaxDepth bounds recursion into nested matches.
	DefaultMaxDepth = 30

	// DefaultMaxNodes bounds the total node count per run.
	DefaultMaxNodes = 100000
)

// Candidate is one signature-level match reported by the engine for a
// window. Offset and Length are window-relative.
type Candidate struct {
	MIME       string // resolved MIME type; empty for diagnostic-only tests
	Name       string // display name
	Offset     int64
	Length     int64
	Value      string   // stringified matched value
	Extensions []string // declared extensions, preferred first
}

// Engine evaluates a signature database against a window and lazily
// yields candidates. With mimeOnly set it may skip tests that cannot
// contribute a MIME type. The engine is treated as an opaque
// deterministic function of the window.
type Engine interface {
	Match(w *window.Window, mimeOnly bool) iter.Seq2[Candidate, error]
}

// Logger receives diagnostics about contained parser faults.
type Logger interface {
	Logf(format string, args ...any)
}

// NoopLogger discards all diagnostics.
type NoopLogger struct{}

// Logf implements Logger.
func (NoopLogger) Logf(format string, args ...any) {}

// Config for matcher initialization.
type Config struct {
	// Engine supplies signature-level candidates. Required.
	Engine Engine

	// Registry maps MIME types to parser capabilities. Defaults to the
	// process-wide registry.
	Registry *registry.Registry

	// DisableParsing emits one leaf node per accepted MIME type instead
	// of invoking parsers.
	DisableParsing bool

	// MaxDepth and MaxNodes cap recursion; zero means the default.
	MaxDepth int
	MaxNodes int

	// Logger receives contained-fault diagnostics. Defaults to no-op.
	Logger Logger
}

// Matcher orchestrates recursive match-tree construction. It is
// stateless across runs and safe for concurrent use once built.
type Matcher struct {
	cfg Config
}

// New creates a Matcher.
func New(cfg Config) (*Matcher, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("matcher: engine is required")
	}
	if cfg.Registry == nil {
		cfg.Registry = registry.Default
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.MaxNodes <= 0 {
		cfg.MaxNodes = DefaultMaxNodes
	}
	if cfg.Logger == nil {
		cfg.Logger = NoopLogger{}
	}
	return &Matcher{cfg: cfg}, nil
}

// Match lazily yields every node discovered in the window: top-level
// matches are parentless, everything else is reachable through them.
// Abandoning the sequence early stops all further signature queries and
// parser invocations. A yielded error wrapping ErrResourceLimit ends
// the run.
func (m *Matcher) Match(w *window.Window) iter.Seq2[*types.Node, error] {
	r := &run{cfg: m.cfg}
	return r.Submatch(w, nil)
}

// run carries the per-invocation state shared by every recursion frame:
// the node budget. It implements types.Submatcher so parser capabilities
// can recurse through the nodes they were handed.
type run struct {
	cfg   Config
	nodes int
}

// Submatch identifies formats in the window and attaches what it finds
// beneath parent (nil for the top level).
func (r *run) Submatch(w *window.Window, parent *types.Node) iter.Seq2[*types.Node, error] {
	return func(yield func(*types.Node, error) bool) {
		if depth := depthOf(parent); depth >= r.cfg.MaxDepth {
			yield(nil, fmt.Errorf("recursion depth %d: %w", depth, ErrResourceLimit))
			return
		}
		// First match per distinct MIME type per window wins; later
		// identical-type tests contribute nothing.
		seen := make(map[string]struct{})
		for cand, err := range r.cfg.Engine.Match(w, true) {
			if err != nil {
				yield(nil, fmt.Errorf("signature engine: %w", err))
				return
			}
			if cand.MIME == "" {
				continue
			}
			if _, dup := seen[cand.MIME]; dup {
				continue
			}
			seen[cand.MIME] = struct{}{}
			if !r.expand(w, parent, cand, yield) {
				return
			}
		}
	}
}

// expand handles one accepted MIME type. It reports whether the outer
// sequence should continue.
func (r *run) expand(w *window.Window, parent *types.Node, cand Candidate, yield func(*types.Node, error) bool) bool {
	var ext string
	if len(cand.Extensions) > 0 {
		ext = cand.Extensions[0]
	}
	if r.cfg.DisableParsing {
		node := r.newCandidateNode(parent, cand, ext)
		node.Attach()
		return r.emit(node, yield)
	}
	for _, parser := range r.cfg.Registry.Lookup(cand.MIME) {
		if !r.attempt(w, parent, cand, ext, parser, yield) {
			return false
		}
	}
	return true
}

// attempt runs one (MIME type, parser) pairing through the probe
// protocol: pull exactly one element of the parser's output to decide
// between committing the candidate node and discarding it without
// trace. It reports whether the outer sequence should continue.
func (r *run) attempt(w *window.Window, parent *types.Node, cand Candidate, ext string, parser registry.Parser, yield func(*types.Node, error) bool) bool {
	node := r.newCandidateNode(parent, cand, ext)
	sub, err := w.Sub(cand.Offset, cand.Length)
	if err != nil {
		// Fails only the window for this candidate, never the run.
		r.cfg.Logger.Logf("matcher: window for %s at %d+%d: %v", cand.MIME, cand.Offset, cand.Length, err)
		return true
	}
	defer sub.Close()

	next, stop := iter.Pull2(parser.Parse(sub, node))
	defer stop()

	first, ferr, ok := next()
	if ferr != nil {
		if isFatal(ferr) {
			yield(nil, ferr)
			return false
		}
		if !errors.Is(ferr, registry.ErrInvalidMatch) {
			r.cfg.Logger.Logf("matcher: parser %T rejected %s during probe: %v", parser, cand.MIME, ferr)
		}
		return true // Probing -> Rejected: no trace of the candidate
	}

	// Committed: the node becomes visible before its children.
	node.Attach()
	if !r.emit(node, yield) {
		return false
	}
	if !ok {
		return true // legitimately empty output
	}
	if !r.emit(first, yield) {
		return false
	}
	for {
		child, cerr, more := next()
		if cerr != nil {
			if isFatal(cerr) {
				yield(nil, cerr)
				return false
			}
			// Truncates only this parser's contribution; children
			// already emitted stay attached.
			r.cfg.Logger.Logf("matcher: parser %T for %s: %v", parser, cand.MIME, cerr)
			return true
		}
		if !more {
			return true
		}
		if !r.emit(child, yield) {
			return false
		}
	}
}

func (r *run) newCandidateNode(parent *types.Node, cand Candidate, ext string) *types.Node {
	return types.NewNode(cand.MIME, cand.Value, cand.Offset,
		types.WithDisplayName(cand.Name),
		types.WithLength(cand.Length),
		types.WithExtension(ext),
		types.WithParent(parent),
		types.WithSubmatcher(r),
	)
}

// emit forwards a node to the consumer, charging it against the node
// budget. It reports whether the run should continue.
func (r *run) emit(n *types.Node, yield func(*types.Node, error) bool) bool {
	r.nodes++
	if r.nodes > r.cfg.MaxNodes {
		yield(nil, fmt.Errorf("node count %d: %w", r.nodes, ErrResourceLimit))
		return false
	}
	return yield(n, nil)
}

func isFatal(err error) bool {
	return errors.Is(err, ErrResourceLimit)
}

func depthOf(n *types.Node) int {
	depth := 0
	for ; n != nil; n = n.Parent() {
		depth++
	}
	return depth
}

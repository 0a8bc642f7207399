// Package polyfile identifies every file format a byte blob matches and
// recursively maps the formats embedded within already-matched regions,
// producing a tree of typed byte ranges.
//
// # Basic Usage
//
// Create a matcher with the built-in signature database and analyze a
// file:
//
//	m, err := polyfile.NewMatcher()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	roots, err := m.MatchFile("suspect.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, root := range roots {
//	    fmt.Printf("%s at offset %d (%d bytes)\n", root.Name(), root.Offset(), root.Length())
//	}
//
// Every embedded or interior match is reachable through the root nodes'
// children. Node trees serialize to a stable JSON shape via Record.
package polyfile

import (
	"fmt"
	"iter"

	"github.com/mightyhouseinc/polyfile/pkg/magic"
	"github.com/mightyhouseinc/polyfile/pkg/matcher"
	"github.com/mightyhouseinc/polyfile/pkg/registry"
	"github.com/mightyhouseinc/polyfile/pkg/types"
	"github.com/mightyhouseinc/polyfile/pkg/window"

	// Register the built-in parser capabilities.
	_ "github.com/mightyhouseinc/polyfile/pkg/parsers"
)

// Re-export commonly used types for convenience. Users can import just
// "github.com/mightyhouseinc/polyfile" without subpackages.
type (
	// Node is one discovered region of a file.
	Node = types.Node

	// Record is the stable serialized form of a node.
	Record = types.Record

	// Window is a bounded view over a byte source.
	Window = window.Window
)

// ErrResourceLimit marks an aborted run: the recursion depth or node
// count cap was exceeded for the input.
var ErrResourceLimit = matcher.ErrResourceLimit

// Option configures a Matcher.
type Option func(*config)

type config struct {
	engine   matcher.Engine
	registry *registry.Registry
	logger   matcher.Logger
	maxDepth int
	maxNodes int
	noParse  bool
}

// WithEngine replaces the built-in signature database engine.
func WithEngine(e matcher.Engine) Option {
	return func(c *config) { c.engine = e }
}

// WithRegistry uses a custom parser registry instead of the
// process-wide default.
func WithRegistry(r *registry.Registry) Option {
	return func(c *config) { c.registry = r }
}

// WithLogger receives diagnostics about contained parser faults.
func WithLogger(l matcher.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMaxDepth caps recursion into nested matches.
func WithMaxDepth(depth int) Option {
	return func(c *config) { c.maxDepth = depth }
}

// WithMaxNodes caps the total node count per run.
func WithMaxNodes(nodes int) Option {
	return func(c *config) { c.maxNodes = nodes }
}

// WithoutParsing emits one leaf node per identified format instead of
// invoking parser capabilities.
func WithoutParsing() Option {
	return func(c *config) { c.noParse = true }
}

// Matcher identifies formats and builds match trees.
type Matcher struct {
	inner *matcher.Matcher
}

// NewMatcher creates a Matcher. By default it uses the built-in
// signature database, the process-wide parser registry, and the default
// recursion caps.
func NewMatcher(opts ...Option) (*Matcher, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.engine == nil {
		engine, err := magic.Default()
		if err != nil {
			return nil, fmt.Errorf("loading builtin signatures: %w", err)
		}
		cfg.engine = engine
	}
	inner, err := matcher.New(matcher.Config{
		Engine:         cfg.engine,
		Registry:       cfg.registry,
		DisableParsing: cfg.noParse,
		MaxDepth:       cfg.maxDepth,
		MaxNodes:       cfg.maxNodes,
		Logger:         cfg.logger,
	})
	if err != nil {
		return nil, err
	}
	return &Matcher{inner: inner}, nil
}

// Match lazily yields every node discovered in the window, parentless
// roots and their descendants alike. Abandoning the sequence stops
// further work; the window stays owned by the caller.
func (m *Matcher) Match(w *Window) iter.Seq2[*Node, error] {
	return m.inner.Match(w)
}

// MatchFile analyzes a file and returns its parentless root nodes.
// Embedded matches are reachable only as descendants of the roots.
func (m *Matcher) MatchFile(path string) ([]*Node, error) {
	w, err := window.Open(path)
	if err != nil {
		return nil, err
	}
	defer w.Close()
	return m.collectRoots(w)
}

// MatchBytes analyzes an in-memory blob and returns its root nodes.
func (m *Matcher) MatchBytes(data []byte) ([]*Node, error) {
	return m.collectRoots(window.FromBytes(data))
}

func (m *Matcher) collectRoots(w *Window) ([]*Node, error) {
	var roots []*Node
	for node, err := range m.inner.Match(w) {
		if err != nil {
			return nil, err
		}
		if node.Parent() == nil {
			roots = append(roots, node)
		}
	}
	return roots, nil
}

// Match analyzes a file with a default matcher and returns its root
// nodes.
func Match(path string) ([]*Node, error) {
	m, err := NewMatcher()
	if err != nil {
		return nil, err
	}
	return m.MatchFile(path)
}

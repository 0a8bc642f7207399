// Package registry maps MIME types to pluggable parser capabilities.
//
// Registration is append-only and idempotent; once matching begins the
// table is read-only and safe for concurrent lookups. Capabilities are
// compared by identity, so register pointer-valued implementations.
package registry

import (
	"errors"
	"iter"
	"sync"

	"github.com/mightyhouseinc/polyfile/pkg/types"
	"github.com/mightyhouseinc/polyfile/pkg/window"
)

// ErrInvalidMatch is the rejection signal of the probe protocol. A
// capability yields it before producing any node to report that the
// candidate region is not actually an instance of its format; the
// orchestrator then discards the candidate without trace. After the
// first node it has no special meaning.
var ErrInvalidMatch = errors.New("parser: invalid match")

// Parser is a pluggable format capability. Parse scans a window covering
// exactly the matched byte range and lazily yields the subregion nodes
// it discovers beneath node. Faults after the first yielded node
// truncate only this capability's own output.
type Parser interface {
	Parse(w *window.Window, node *types.Node) iter.Seq2[*types.Node, error]
}

// ParseFunc is the signature of a plain parser function.
type ParseFunc func(w *window.Window, node *types.Node) iter.Seq2[*types.Node, error]

// funcParser adapts a plain function to the Parser interface. The
// pointer gives the capability a stable identity for deduplication.
type funcParser struct {
	fn ParseFunc
}

func (p *funcParser) Parse(w *window.Window, node *types.Node) iter.Seq2[*types.Node, error] {
	return p.fn(w, node)
}

// Func wraps a plain function as a Parser. Each call yields a distinct
// capability identity.
func Func(fn ParseFunc) Parser {
	return &funcParser{fn: fn}
}

// Registry is an append-only table of parser capabilities keyed by MIME
// type.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string][]Parser
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{parsers: make(map[string][]Parser)}
}

// Register adds the capability under each given MIME type. Re-registering
// an identical capability under the same type is a no-op; entries are
// never removed.
func (r *Registry) Register(p Parser, mimeTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, mime := range mimeTypes {
		if containsParser(r.parsers[mime], p) {
			continue
		}
		r.parsers[mime] = append(r.parsers[mime], p)
	}
}

// Lookup returns the capabilities registered under the MIME type,
// possibly none. The order is unspecified but stable for a given
// registry state.
func (r *Registry) Lookup(mime string) []Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	found := r.parsers[mime]
	out := make([]Parser, len(found))
	copy(out, found)
	return out
}

func containsParser(list []Parser, p Parser) bool {
	for _, have := range list {
		if have == p {
			return true
		}
	}
	return false
}

// Default is the process-wide registry populated by capability packages
// in their init functions.
var Default = New()

// Register adds a capability to the default registry.
func Register(p Parser, mimeTypes ...string) {
	Default.Register(p, mimeTypes...)
}

// Lookup queries the default registry.
func Lookup(mime string) []Parser {
	return Default.Lookup(mime)
}

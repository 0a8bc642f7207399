// Package magic is the signature engine: it evaluates a database of
// byte-pattern tests against a window and yields candidate MIME
// matches. Literal "search" tests across the whole database are located
// in one Aho-Corasick pass per window.
package magic

import (
	"fmt"
	"io"
	"iter"
	"sync"

	"github.com/dlclark/regexp2"
	"github.com/mightyhouseinc/polyfile/pkg/matcher"
	"github.com/mightyhouseinc/polyfile/pkg/search"
	"github.com/mightyhouseinc/polyfile/pkg/window"
)

// DefaultScanLimit bounds how many bytes of a window the search and
// regex tests examine.
const DefaultScanLimit = 1 << 20

type testKind int

const (
	literalTest testKind = iota // exact bytes at a fixed offset
	searchTest                  // bytes anywhere within the scan range
	regexTest                   // regex within the scan range
)

type compiledTest struct {
	kind    testKind
	data    []byte
	offset  int64 // literal only
	limit   int64 // search/regex scan bound; 0 means the engine's limit
	pattern int   // automaton index, assigned by NewEngine
	re      *regexp2.Regexp
}

// Signature is one compiled database entry. A signature matches a
// window when any of its tests does; the first matching test supplies
// offset and value.
type Signature struct {
	MIME       string
	Name       string
	Extensions []string
	tests      []compiledTest
}

// Engine is a compiled signature database. It is immutable after
// construction and safe for concurrent use.
type Engine struct {
	sigs      []*Signature
	auto      *search.Automaton
	scanLimit int64
}

// NewEngine compiles the signatures into an engine, building the shared
// automaton over every search test in the database.
func NewEngine(sigs []*Signature) (*Engine, error) {
	e := &Engine{
		sigs:      sigs,
		auto:      search.New(),
		scanLimit: DefaultScanLimit,
	}
	for _, sig := range sigs {
		for i := range sig.tests {
			t := &sig.tests[i]
			if t.kind != searchTest {
				continue
			}
			idx, err := e.auto.Add(t.data)
			if err != nil {
				return nil, fmt.Errorf("signature %q: %w", sig.Name, err)
			}
			t.pattern = idx
		}
	}
	if err := e.auto.Finalize(); err != nil {
		return nil, err
	}
	return e, nil
}

var (
	defaultEngine *Engine
	defaultErr    error
	defaultOnce   sync.Once
)

// Default returns the engine for the built-in signature database,
// compiled once per process.
func Default() (*Engine, error) {
	defaultOnce.Do(func() {
		sigs, err := NewLoader().LoadBuiltin()
		if err != nil {
			defaultErr = err
			return
		}
		defaultEngine, defaultErr = NewEngine(sigs)
	})
	return defaultEngine, defaultErr
}

// Match evaluates the database against the window and lazily yields one
// candidate per matching signature, in database order. With mimeOnly
// set, diagnostic-only entries are skipped before evaluation.
func (e *Engine) Match(w *window.Window, mimeOnly bool) iter.Seq2[matcher.Candidate, error] {
	return func(yield func(matcher.Candidate, error) bool) {
		prefix, err := e.readPrefix(w)
		if err != nil {
			yield(matcher.Candidate{}, fmt.Errorf("reading window: %w", err))
			return
		}
		hits, err := e.searchHits(prefix)
		if err != nil {
			yield(matcher.Candidate{}, err)
			return
		}
		for _, sig := range e.sigs {
			if mimeOnly && sig.MIME == "" {
				continue
			}
			off, val, ok := e.evalSignature(sig, w, prefix, hits)
			if !ok {
				continue
			}
			cand := matcher.Candidate{
				MIME:       sig.MIME,
				Name:       sig.Name,
				Offset:     off,
				Length:     w.Size() - off,
				Value:      val,
				Extensions: sig.Extensions,
			}
			if !yield(cand, nil) {
				return
			}
		}
	}
}

func (e *Engine) readPrefix(w *window.Window) ([]byte, error) {
	n := w.Size()
	if n > e.scanLimit {
		n = e.scanLimit
	}
	buf := make([]byte, n)
	if _, err := w.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return buf, nil
}

// searchHits runs the one automaton pass and records the earliest start
// offset per search pattern.
func (e *Engine) searchHits(prefix []byte) (map[int]int64, error) {
	hits := make(map[int]int64)
	for m, err := range e.auto.SearchBytes(prefix) {
		if err != nil {
			return nil, err
		}
		start := m.End - int64(len(e.auto.Pattern(m.Pattern))) + 1
		if _, ok := hits[m.Pattern]; !ok {
			hits[m.Pattern] = start
		}
	}
	return hits, nil
}

func (e *Engine) evalSignature(sig *Signature, w *window.Window, prefix []byte, hits map[int]int64) (int64, string, bool) {
	for _, t := range sig.tests {
		switch t.kind {
		case literalTest:
			buf := make([]byte, len(t.data))
			n, err := w.ReadAt(buf, t.offset)
			if (err != nil && err != io.EOF) || n < len(t.data) {
				continue
			}
			if string(buf) == string(t.data) {
				return t.offset, fmt.Sprintf("%q", t.data), true
			}
		case searchTest:
			start, ok := hits[t.pattern]
			if !ok {
				continue
			}
			if t.limit > 0 && start >= t.limit {
				continue
			}
			return start, fmt.Sprintf("%q", t.data), true
		case regexTest:
			region := prefix
			if t.limit > 0 && int64(len(region)) > t.limit {
				region = region[:t.limit]
			}
			m, err := t.re.FindStringMatch(latin1(region))
			if err != nil || m == nil {
				continue
			}
			return int64(m.Index), m.String(), true
		}
	}
	return 0, "", false
}

// latin1 maps each byte to one rune so regexp2 match indexes correspond
// to byte offsets in the window.
func latin1(b []byte) string {
	rs := make([]rune, len(b))
	for i, c := range b {
		rs[i] = rune(c)
	}
	return string(rs)
}

// Package search implements multi-pattern byte search using the
// Aho-Corasick algorithm.
//
// An Automaton is built by adding literal byte patterns, finalized once,
// and then shared read-only across any number of searches. A single pass
// over the input reports every position where any pattern ends, including
// overlapping and nested occurrences.
package search

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"iter"
)

var (
	// ErrEmptyPattern is returned when adding a zero-length pattern.
	// An empty pattern would match at every position, which is never
	// what a signature database wants.
	ErrEmptyPattern = errors.New("search: empty pattern")

	// ErrFinalized is returned when mutating an automaton after Finalize.
	ErrFinalized = errors.New("search: automaton already finalized")

	// ErrNotFinalized is returned when searching before Finalize.
	ErrNotFinalized = errors.New("search: automaton not finalized")
)

// Match reports one pattern occurrence found during a search.
type Match struct {
	// End is the input offset of the last byte of the occurrence.
	End int64

	// Pattern is the index returned by Add for the matched pattern.
	Pattern int
}

// Automaton is a trie of byte patterns with Aho-Corasick failure links.
//
// Byte-identical patterns added twice share one trie path but keep
// distinct indices, so each occurrence reports one match per added
// pattern. The zero value is not usable; call New.
type Automaton struct {
	root      *trieNode
	patterns  [][]byte
	finalized bool
}

// New returns an empty automaton.
func New() *Automaton {
	return &Automaton{root: newTrieNode(0, nil)}
}

// Compile builds a finalized automaton from the given patterns.
func Compile(patterns ...[]byte) (*Automaton, error) {
	a := New()
	for _, p := range patterns {
		if _, err := a.Add(p); err != nil {
			return nil, err
		}
	}
	if err := a.Finalize(); err != nil {
		return nil, err
	}
	return a, nil
}

// MustCompile is Compile for patterns known valid at build time; it
// panics on error.
func MustCompile(patterns ...[]byte) *Automaton {
	a, err := Compile(patterns...)
	if err != nil {
		panic(err)
	}
	return a
}

// Add inserts a pattern and returns its index. The pattern bytes are
// copied. Add fails after Finalize has run.
func (a *Automaton) Add(pattern []byte) (int, error) {
	if a.finalized {
		return 0, ErrFinalized
	}
	if len(pattern) == 0 {
		return 0, ErrEmptyPattern
	}
	n := a.root
	for _, b := range pattern {
		child := n.children[b]
		if child == nil {
			child = newTrieNode(b, n)
			n.children[b] = child
		}
		n = child
	}
	idx := len(a.patterns)
	a.patterns = append(a.patterns, append([]byte(nil), pattern...))
	n.terminal = append(n.terminal, idx)
	return idx, nil
}

// Len returns the number of added patterns.
func (a *Automaton) Len() int {
	return len(a.patterns)
}

// Pattern returns the bytes of the pattern with the given index.
func (a *Automaton) Pattern(idx int) []byte {
	return a.patterns[idx]
}

// Finalize resolves failure links. It must run exactly once, after all
// Add calls and before any Search.
func (a *Automaton) Finalize() error {
	if a.finalized {
		return ErrFinalized
	}
	a.root.fail = a.root
	// Breadth-first from the root: a node's failure link only depends on
	// its parent's, which lives on a shallower level.
	queue := []*trieNode{a.root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, child := range n.children {
			queue = append(queue, child)
		}
		if n == a.root {
			continue
		}
		f := n.parent.fail
		for f.children[n.value] == nil && f != a.root {
			f = f.fail
		}
		if child := f.children[n.value]; child != nil && child != n {
			n.fail = child
		} else {
			n.fail = a.root
		}
	}
	a.finalized = true
	return nil
}

// Search runs the automaton over r and yields every match, in input
// order; matches ending at the same position come longest first. The
// sequence is lazy and may be abandoned at any point. Searching an
// unfinalized automaton yields ErrNotFinalized and stops.
func (a *Automaton) Search(r io.Reader) iter.Seq2[Match, error] {
	return func(yield func(Match, error) bool) {
		if !a.finalized {
			yield(Match{}, ErrNotFinalized)
			return
		}
		br := bufio.NewReader(r)
		state := a.root
		for pos := int64(0); ; pos++ {
			b, err := br.ReadByte()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Match{}, err)
				return
			}
			n := state
			for n.children[b] == nil && n != a.root {
				n = n.fail
			}
			if child := n.children[b]; child != nil {
				n = child
			}
			state = n
			// Every pattern ending here is a suffix of the current
			// path; walk the failure chain to report them all.
			for t := n; t != a.root; t = t.fail {
				for _, idx := range t.terminal {
					if !yield(Match{End: pos, Pattern: idx}, nil) {
						return
					}
				}
			}
		}
	}
}

// SearchBytes is Search over an in-memory input.
func (a *Automaton) SearchBytes(data []byte) iter.Seq2[Match, error] {
	return a.Search(bytes.NewReader(data))
}

package matcher_test

import (
	"errors"
	"fmt"
	"iter"
	"testing"

	"github.com/mightyhouseinc/polyfile/pkg/matcher"
	"github.com/mightyhouseinc/polyfile/pkg/registry"
	"github.com/mightyhouseinc/polyfile/pkg/types"
	"github.com/mightyhouseinc/polyfile/pkg/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEngine replays a fixed candidate list for every window.
type stubEngine struct {
	cands []matcher.Candidate
	err   error
}

func (e stubEngine) Match(w *window.Window, mimeOnly bool) iter.Seq2[matcher.Candidate, error] {
	return func(yield func(matcher.Candidate, error) bool) {
		for _, c := range e.cands {
			if !yield(c, nil) {
				return
			}
		}
		if e.err != nil {
			yield(matcher.Candidate{}, e.err)
		}
	}
}

type recordLogger struct {
	msgs []string
}

func (l *recordLogger) Logf(format string, args ...any) {
	l.msgs = append(l.msgs, fmt.Sprintf(format, args...))
}

func fullCandidate(mime string, size int64) matcher.Candidate {
	return matcher.Candidate{MIME: mime, Name: mime, Offset: 0, Length: size}
}

func collect(m *matcher.Matcher, w *window.Window) ([]*types.Node, error) {
	var nodes []*types.Node
	for n, err := range m.Match(w) {
		if err != nil {
			return nodes, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func TestDuplicateMIMEExpandsOnce(t *testing.T) {
	w := window.FromBytes(make([]byte, 16))
	reg := registry.New()
	calls := 0
	reg.Register(registry.Func(func(w *window.Window, node *types.Node) iter.Seq2[*types.Node, error] {
		calls++
		return func(yield func(*types.Node, error) bool) {
			yield(node.NewChild("Header", nil, 0, types.WithLength(4)), nil)
		}
	}), "application/x-test")

	m, err := matcher.New(matcher.Config{
		Engine: stubEngine{cands: []matcher.Candidate{
			fullCandidate("application/x-test", 16),
			fullCandidate("application/x-test", 16),
		}},
		Registry: reg,
	})
	require.NoError(t, err)

	nodes, err := collect(m, w)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second identical MIME match must be suppressed")
	require.Len(t, nodes, 2)
	assert.Nil(t, nodes[0].Parent())
	assert.Equal(t, nodes[0], nodes[1].Parent())
}

func TestRejectionLeavesNoTrace(t *testing.T) {
	w := window.FromBytes(make([]byte, 8))
	reg := registry.New()
	reg.Register(registry.Func(func(w *window.Window, node *types.Node) iter.Seq2[*types.Node, error] {
		return func(yield func(*types.Node, error) bool) {
			yield(nil, registry.ErrInvalidMatch)
		}
	}), "application/x-test")

	log := &recordLogger{}
	m, err := matcher.New(matcher.Config{
		Engine:   stubEngine{cands: []matcher.Candidate{fullCandidate("application/x-test", 8)}},
		Registry: reg,
		Logger:   log,
	})
	require.NoError(t, err)

	nodes, err := collect(m, w)
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.Empty(t, log.msgs, "rejection is part of the protocol, not a fault")
}

func TestProbeFaultIsLoggedAndDiscarded(t *testing.T) {
	w := window.FromBytes(make([]byte, 8))
	reg := registry.New()
	reg.Register(registry.Func(func(w *window.Window, node *types.Node) iter.Seq2[*types.Node, error] {
		return func(yield func(*types.Node, error) bool) {
			yield(nil, errors.New("truncated header"))
		}
	}), "application/x-test")

	log := &recordLogger{}
	m, err := matcher.New(matcher.Config{
		Engine:   stubEngine{cands: []matcher.Candidate{fullCandidate("application/x-test", 8)}},
		Registry: reg,
		Logger:   log,
	})
	require.NoError(t, err)

	nodes, err := collect(m, w)
	require.NoError(t, err)
	assert.Empty(t, nodes)
	assert.NotEmpty(t, log.msgs)
}

func TestPostCommitFaultTruncatesOnlyThatParser(t *testing.T) {
	w := window.FromBytes(make([]byte, 8))
	reg := registry.New()
	reg.Register(registry.Func(func(w *window.Window, node *types.Node) iter.Seq2[*types.Node, error] {
		return func(yield func(*types.Node, error) bool) {
			if !yield(node.NewChild("A", nil, 0, types.WithLength(2)), nil) {
				return
			}
			if !yield(node.NewChild("B", nil, 2, types.WithLength(2)), nil) {
				return
			}
			yield(nil, errors.New("corrupt tail"))
		}
	}), "application/x-broken")

	log := &recordLogger{}
	m, err := matcher.New(matcher.Config{
		Engine: stubEngine{cands: []matcher.Candidate{
			fullCandidate("application/x-broken", 8),
			fullCandidate("application/x-clean", 8),
		}},
		Registry: reg,
		Logger:   log,
	})
	require.NoError(t, err)

	// The clean MIME type has no capability, so only the broken branch
	// produces nodes; the run itself must still succeed.
	nodes, err := collect(m, w)
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Len(t, nodes[0].Children(), 2, "children emitted before the fault stay attached")
	assert.NotEmpty(t, log.msgs)
}

func TestEmptyParserOutputStillCommits(t *testing.T) {
	w := window.FromBytes(make([]byte, 8))
	reg := registry.New()
	reg.Register(registry.Func(func(w *window.Window, node *types.Node) iter.Seq2[*types.Node, error] {
		return func(yield func(*types.Node, error) bool) {}
	}), "application/x-test")

	m, err := matcher.New(matcher.Config{
		Engine:   stubEngine{cands: []matcher.Candidate{fullCandidate("application/x-test", 8)}},
		Registry: reg,
	})
	require.NoError(t, err)

	nodes, err := collect(m, w)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "application/x-test", nodes[0].Name())
	assert.Empty(t, nodes[0].Children())
}

func TestSecondParserRunsAfterRejection(t *testing.T) {
	w := window.FromBytes(make([]byte, 8))
	reg := registry.New()
	reg.Register(registry.Func(func(w *window.Window, node *types.Node) iter.Seq2[*types.Node, error] {
		return func(yield func(*types.Node, error) bool) {
			yield(nil, registry.ErrInvalidMatch)
		}
	}), "application/x-test")
	reg.Register(registry.Func(func(w *window.Window, node *types.Node) iter.Seq2[*types.Node, error] {
		return func(yield func(*types.Node, error) bool) {
			yield(node.NewChild("Body", nil, 0, types.WithLength(8)), nil)
		}
	}), "application/x-test")

	m, err := matcher.New(matcher.Config{
		Engine:   stubEngine{cands: []matcher.Candidate{fullCandidate("application/x-test", 8)}},
		Registry: reg,
	})
	require.NoError(t, err)

	nodes, err := collect(m, w)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "Body", nodes[1].Name())
}

func TestDisableParsingEmitsLeaves(t *testing.T) {
	w := window.FromBytes(make([]byte, 8))
	reg := registry.New()
	reg.Register(registry.Func(func(w *window.Window, node *types.Node) iter.Seq2[*types.Node, error] {
		t.Fatal("parser must not run in leaf mode")
		return nil
	}), "application/x-test")

	m, err := matcher.New(matcher.Config{
		Engine: stubEngine{cands: []matcher.Candidate{
			fullCandidate("application/x-test", 8),
			fullCandidate("application/x-other", 8),
		}},
		Registry:       reg,
		DisableParsing: true,
	})
	require.NoError(t, err)

	nodes, err := collect(m, w)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "application/x-test", nodes[0].Name())
	assert.Equal(t, "application/x-other", nodes[1].Name())
	assert.Empty(t, nodes[0].Children())
}

func TestExtensionHintUsesFirstDeclared(t *testing.T) {
	w := window.FromBytes(make([]byte, 8))
	cand := fullCandidate("application/x-test", 8)
	cand.Extensions = []string{"tst", "t"}

	m, err := matcher.New(matcher.Config{
		Engine:         stubEngine{cands: []matcher.Candidate{cand}},
		Registry:       registry.New(),
		DisableParsing: true,
	})
	require.NoError(t, err)

	nodes, err := collect(m, w)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "tst", nodes[0].Extension())
}

func TestBadCandidateWindowIsContained(t *testing.T) {
	w := window.FromBytes(make([]byte, 8))
	reg := registry.New()
	reg.Register(registry.Func(func(w *window.Window, node *types.Node) iter.Seq2[*types.Node, error] {
		return func(yield func(*types.Node, error) bool) {}
	}), "application/x-good")
	reg.Register(registry.Func(func(w *window.Window, node *types.Node) iter.Seq2[*types.Node, error] {
		return func(yield func(*types.Node, error) bool) {}
	}), "application/x-oob")

	oob := matcher.Candidate{MIME: "application/x-oob", Name: "oob", Offset: 4, Length: 100}
	log := &recordLogger{}
	m, err := matcher.New(matcher.Config{
		Engine:   stubEngine{cands: []matcher.Candidate{oob, fullCandidate("application/x-good", 8)}},
		Registry: reg,
		Logger:   log,
	})
	require.NoError(t, err)

	nodes, err := collect(m, w)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "application/x-good", nodes[0].Name())
	assert.NotEmpty(t, log.msgs)
}

func TestEngineErrorAbortsRun(t *testing.T) {
	w := window.FromBytes(make([]byte, 8))
	boom := errors.New("signature database corrupt")
	m, err := matcher.New(matcher.Config{
		Engine:   stubEngine{err: boom},
		Registry: registry.New(),
	})
	require.NoError(t, err)

	_, err = collect(m, w)
	assert.ErrorIs(t, err, boom)
}

func TestDepthCap(t *testing.T) {
	w := window.FromBytes(make([]byte, 8))
	reg := registry.New()
	// Recurses into its own window forever; the depth cap must stop it.
	reg.Register(registry.Func(func(w *window.Window, node *types.Node) iter.Seq2[*types.Node, error] {
		return node.Submatcher().Submatch(w, node)
	}), "application/x-test")

	m, err := matcher.New(matcher.Config{
		Engine:   stubEngine{cands: []matcher.Candidate{fullCandidate("application/x-test", 8)}},
		Registry: reg,
		MaxDepth: 4,
	})
	require.NoError(t, err)

	_, err = collect(m, w)
	assert.ErrorIs(t, err, matcher.ErrResourceLimit)
}

func TestNodeCap(t *testing.T) {
	w := window.FromBytes(make([]byte, 8))
	reg := registry.New()
	reg.Register(registry.Func(func(w *window.Window, node *types.Node) iter.Seq2[*types.Node, error] {
		return func(yield func(*types.Node, error) bool) {
			for i := 0; i < 10; i++ {
				if !yield(node.NewChild("Chunk", nil, int64(i), types.WithLength(1)), nil) {
					return
				}
			}
		}
	}), "application/x-test")

	m, err := matcher.New(matcher.Config{
		Engine:   stubEngine{cands: []matcher.Candidate{fullCandidate("application/x-test", 8)}},
		Registry: reg,
		MaxNodes: 3,
	})
	require.NoError(t, err)

	nodes, err := collect(m, w)
	assert.ErrorIs(t, err, matcher.ErrResourceLimit)
	assert.Len(t, nodes, 3)
}

func TestDiagnosticCandidatesAreSkipped(t *testing.T) {
	w := window.FromBytes(make([]byte, 8))
	m, err := matcher.New(matcher.Config{
		Engine: stubEngine{cands: []matcher.Candidate{
			{Name: "utf-8 byte-order mark", Offset: 0, Length: 3},
		}},
		Registry:       registry.New(),
		DisableParsing: true,
	})
	require.NoError(t, err)

	nodes, err := collect(m, w)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestNewRequiresEngine(t *testing.T) {
	_, err := matcher.New(matcher.Config{})
	assert.Error(t, err)
}

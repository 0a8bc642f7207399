package search

import (
	"bytes"
	"testing"

	"github.com/cloudflare/ahocorasick"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect drains a search into a slice, failing the test on any error.
func collect(t *testing.T, a *Automaton, input []byte) []Match {
	t.Helper()
	var out []Match
	for m, err := range a.SearchBytes(input) {
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

// bruteForce computes the expected matches by direct comparison.
func bruteForce(patterns [][]byte, input []byte) []Match {
	var out []Match
	for end := 0; end < len(input); end++ {
		for idx, p := range patterns {
			start := end - len(p) + 1
			if start < 0 {
				continue
			}
			if bytes.Equal(input[start:end+1], p) {
				out = append(out, Match{End: int64(end), Pattern: idx})
			}
		}
	}
	return out
}

func TestSearchReportsAllOccurrences(t *testing.T) {
	patterns := [][]byte{[]byte("hack"), []byte("hacker"), []byte("ack"), []byte("kool")}
	a, err := Compile(patterns...)
	require.NoError(t, err)

	input := []byte("This is a test to see if hack or hacker is in this string. " +
		"Can you crack it? If so, please ack, 'cause that would be kool.")
	got := collect(t, a, input)
	want := bruteForce(patterns, input)

	assert.ElementsMatch(t, want, got)
	for _, m := range got {
		p := a.Pattern(m.Pattern)
		start := m.End - int64(len(p)) + 1
		assert.Equal(t, p, input[start:m.End+1])
	}
}

func TestSearchOverlappingPatterns(t *testing.T) {
	a, err := Compile([]byte("ab"), []byte("b"))
	require.NoError(t, err)

	got := collect(t, a, []byte("ab"))
	// Both end at position 1, longest first.
	require.Len(t, got, 2)
	assert.Equal(t, Match{End: 1, Pattern: 0}, got[0])
	assert.Equal(t, Match{End: 1, Pattern: 1}, got[1])
}

func TestSearchNestedPatterns(t *testing.T) {
	patterns := [][]byte{[]byte("hack"), []byte("hacker"), []byte("ack")}
	a, err := Compile(patterns...)
	require.NoError(t, err)

	input := []byte("...hacker...")
	got := collect(t, a, input)
	assert.ElementsMatch(t, []Match{
		{End: 6, Pattern: 0}, // "hack"
		{End: 6, Pattern: 2}, // "ack"
		{End: 8, Pattern: 1}, // "hacker"
	}, got)
}

func TestDuplicatePatternsStayDistinct(t *testing.T) {
	a := New()
	first, err := a.Add([]byte("abc"))
	require.NoError(t, err)
	second, err := a.Add([]byte("abc"))
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	require.NoError(t, a.Finalize())

	got := collect(t, a, []byte("xabc"))
	assert.ElementsMatch(t, []Match{
		{End: 3, Pattern: first},
		{End: 3, Pattern: second},
	}, got)
}

func TestSearchDeterminism(t *testing.T) {
	a, err := Compile([]byte("aa"), []byte("aaa"), []byte("a"))
	require.NoError(t, err)

	input := []byte("aaaaabaaa")
	first := collect(t, a, input)
	second := collect(t, a, input)
	assert.Equal(t, first, second)
}

func TestAddEmptyPattern(t *testing.T) {
	a := New()
	_, err := a.Add(nil)
	assert.ErrorIs(t, err, ErrEmptyPattern)
	_, err = a.Add([]byte{})
	assert.ErrorIs(t, err, ErrEmptyPattern)
}

func TestAddAfterFinalize(t *testing.T) {
	a := New()
	_, err := a.Add([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, a.Finalize())

	_, err = a.Add([]byte("y"))
	assert.ErrorIs(t, err, ErrFinalized)
}

func TestFinalizeTwice(t *testing.T) {
	a := New()
	_, err := a.Add([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, a.Finalize())
	assert.ErrorIs(t, a.Finalize(), ErrFinalized)
}

func TestSearchBeforeFinalize(t *testing.T) {
	a := New()
	_, err := a.Add([]byte("x"))
	require.NoError(t, err)

	for _, serr := range a.SearchBytes([]byte("x")) {
		assert.ErrorIs(t, serr, ErrNotFinalized)
	}
}

func TestSearchAgainstIndependentOracle(t *testing.T) {
	patterns := [][]byte{
		[]byte("PK\x03\x04"),
		[]byte("%PDF-"),
		[]byte("obj"),
		[]byte("endobj"),
		[]byte("ustar"),
		[]byte("\x1f\x8b"),
	}
	a, err := Compile(patterns...)
	require.NoError(t, err)

	input := []byte("%PDF-1.7\n1 0 obj\n<< /Length 4 >>\nstream\nPK\x03\x04data\nendstream\nendobj\nustar junk \x1f\x8b\x08")

	found := make(map[int]bool)
	for m, serr := range a.SearchBytes(input) {
		require.NoError(t, serr)
		found[m.Pattern] = true
	}
	var got []int
	for idx := range found {
		got = append(got, idx)
	}

	oracle := ahocorasick.NewMatcher(patterns)
	assert.ElementsMatch(t, oracle.Match(input), got)
}

func TestMustCompilePanicsOnEmptyPattern(t *testing.T) {
	assert.Panics(t, func() { MustCompile([]byte("")) })
}

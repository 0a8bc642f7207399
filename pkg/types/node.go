// Package types defines the match tree produced by recursive format
// identification and its stable serialized form.
package types

import (
	"iter"

	"github.com/mightyhouseinc/polyfile/pkg/window"
)

// Submatcher recursively identifies formats inside a nested byte range.
// Nodes carry a non-owning reference to the submatcher of the run that
// created them, so parser capabilities can recurse into decoded or
// embedded payloads without depending on the orchestrator package.
type Submatcher interface {
	Submatch(w *window.Window, parent *Node) iter.Seq2[*Node, error]
}

// Node is one discovered region of a file: a typed byte range with an
// optional decoded payload and an ordered list of child regions.
//
// Ownership is strictly tree-shaped: a node belongs to its parent and
// the root belongs to the caller. Nodes are built during matching and
// read-only afterwards.
type Node struct {
	name        string
	displayName string
	value       any
	offset      int64 // relative to parent
	length      int64
	hasLength   bool
	imgData     string
	decoded     []byte
	extension   string
	submatch    bool
	parent      *Node
	children    []*Node
	matcher     Submatcher
}

// NodeOption configures a node at construction time.
type NodeOption func(*Node)

// WithDisplayName sets a human-readable name distinct from the type
// identifier.
func WithDisplayName(name string) NodeOption {
	return func(n *Node) { n.displayName = name }
}

// WithLength sets an explicit byte length. Without it the length is
// inferred from the furthest child extent.
func WithLength(length int64) NodeOption {
	return func(n *Node) { n.length, n.hasLength = length, true }
}

// WithExtension records a file-extension hint.
func WithExtension(ext string) NodeOption {
	return func(n *Node) { n.extension = ext }
}

// WithDecoded attaches a decoded-byte payload.
func WithDecoded(data []byte) NodeOption {
	return func(n *Node) { n.decoded = data }
}

// WithImageData attaches a rendered preview blob.
func WithImageData(data string) NodeOption {
	return func(n *Node) { n.imgData = data }
}

// WithParent links the node to a parent without attaching it to the
// parent's child list; see Attach. The node inherits the parent's
// submatcher unless one is set explicitly.
func WithParent(parent *Node) NodeOption {
	return func(n *Node) { n.parent = parent }
}

// WithSubmatcher sets the submatcher reference used for recursion.
func WithSubmatcher(m Submatcher) NodeOption {
	return func(n *Node) { n.matcher = m }
}

// NewNode builds a detached node. name is the type identifier (normally
// a MIME type), value the opaque matched payload, offset the position
// relative to the parent (absolute for a root).
func NewNode(name string, value any, offset int64, opts ...NodeOption) *Node {
	n := &Node{
		name:   name,
		value:  value,
		offset: offset,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.displayName == "" {
		n.displayName = name
	}
	if n.matcher == nil && n.parent != nil {
		n.matcher = n.parent.matcher
	}
	return n
}

// NewChild builds a subregion node under n and attaches it immediately.
// This is the constructor parser capabilities use for the structure they
// discover inside a committed match.
func (n *Node) NewChild(name string, value any, offset int64, opts ...NodeOption) *Node {
	child := NewNode(name, value, offset, append(opts, WithParent(n))...)
	child.submatch = true
	child.Attach()
	return child
}

// Attach appends the node to its parent's child list. The recursive
// matcher defers this until a candidate's parser probe succeeds, so a
// rejected candidate leaves no trace in the tree.
func (n *Node) Attach() {
	if n.parent != nil {
		n.parent.children = append(n.parent.children, n)
	}
}

// Name returns the type identifier.
func (n *Node) Name() string { return n.name }

// DisplayName returns the human-readable name.
func (n *Node) DisplayName() string { return n.displayName }

// Value returns the opaque matched payload.
func (n *Node) Value() any { return n.value }

// Extension returns the file-extension hint, if any.
func (n *Node) Extension() string { return n.extension }

// Decoded returns the decoded-byte payload, if any.
func (n *Node) Decoded() []byte { return n.decoded }

// ImageData returns the preview blob, if any.
func (n *Node) ImageData() string { return n.imgData }

// Parent returns the owning node, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the ordered child nodes.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// IsSubmatch reports whether the node is interior structure discovered
// by a parser, as opposed to a signature-level format match.
func (n *Node) IsSubmatch() bool { return n.submatch }

// Submatcher returns the matcher reference for recursion, or nil.
func (n *Node) Submatcher() Submatcher { return n.matcher }

// RelativeOffset returns the offset from the parent's start.
func (n *Node) RelativeOffset() int64 { return n.offset }

// Offset returns the absolute offset with respect to the original file.
func (n *Node) Offset() int64 {
	if n.parent != nil {
		return n.parent.Offset() + n.offset
	}
	return n.offset
}

// Root returns the top of the tree containing n.
func (n *Node) Root() *Node {
	if n.parent == nil {
		return n
	}
	return n.parent.Root()
}

// Length returns the number of bytes covered by the match. When no
// explicit length was set it is the distance from this node's offset to
// the furthest child extent, or zero without children.
func (n *Node) Length() int64 {
	if n.hasLength {
		return n.length
	}
	if len(n.children) == 0 {
		return 0
	}
	var max int64
	for _, c := range n.children {
		if end := c.Offset() + c.Length(); end > max {
			max = end
		}
	}
	return max - n.Offset()
}

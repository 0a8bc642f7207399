package search

// trieNode is one state of the pattern trie. After Finalize, fail points
// to the node for the longest proper suffix of this node's path that is
// present in the trie, or the root if none is.
type trieNode struct {
	value    byte
	parent   *trieNode
	fail     *trieNode
	children map[byte]*trieNode
	terminal []int // indices of patterns ending at this node
}

func newTrieNode(value byte, parent *trieNode) *trieNode {
	return &trieNode{
		value:    value,
		parent:   parent,
		children: make(map[byte]*trieNode),
	}
}

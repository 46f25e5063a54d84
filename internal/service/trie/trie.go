package trie

import (
	"sort"
	"sync"
)

// Node is a single trie node. The count is the frequency of the sequence
// spelled by the path from the root to this node.
type Node struct {
	symbolID uint32
	count    int64
	children map[uint32]*Node
}

// NewNode creates an empty node for symbolID
func NewNode(symbolID uint32) *Node {
	return &Node{
		symbolID: symbolID,
		children: make(map[uint32]*Node),
	}
}

// Trie stores counted symbol sequences with string interning. Every prefix
// of a stored sequence is a node; only nodes with a positive count are
// considered stored.
type Trie struct {
	root       *Node
	symbolToID map[string]uint32
	idToSymbol []string
	stored     int64 // nodes with count > 0
	total      int64 // sum of all counts
	mu         sync.RWMutex
}

// New creates an empty trie
func New() *Trie {
	return &Trie{
		root:       NewNode(0),
		symbolToID: make(map[string]uint32),
		idToSymbol: []string{"<ROOT>"}, // ID 0 is reserved for root
	}
}

func (t *Trie) intern(symbol string) uint32 {
	if id, ok := t.symbolToID[symbol]; ok {
		return id
	}
	id := uint32(len(t.idToSymbol))
	t.symbolToID[symbol] = id
	t.idToSymbol = append(t.idToSymbol, symbol)
	return id
}

// find walks to the node for symbols without creating anything
func (t *Trie) find(symbols []string) *Node {
	current := t.root
	for _, symbol := range symbols {
		id, ok := t.symbolToID[symbol]
		if !ok {
			return nil
		}
		child, ok := current.children[id]
		if !ok {
			return nil
		}
		current = child
	}
	return current
}

// Add increments the count of symbols by n
func (t *Trie) Add(symbols []string, n int64) {
	if len(symbols) == 0 || n == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.root
	for _, symbol := range symbols {
		id := t.intern(symbol)
		child, ok := current.children[id]
		if !ok {
			child = NewNode(id)
			current.children[id] = child
		}
		current = child
	}

	if current.count == 0 {
		t.stored++
	}
	current.count += n
	t.total += n
}

// Count returns the frequency of symbols, 0 when absent
func (t *Trie) Count(symbols []string) int64 {
	if len(symbols) == 0 {
		return 0
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	node := t.find(symbols)
	if node == nil {
		return 0
	}
	return node.count
}

// Contains reports whether symbols has a positive count
func (t *Trie) Contains(symbols []string) bool {
	return t.Count(symbols) > 0
}

// Children returns every symbol s such that prefix+s has a positive count.
// An empty prefix enumerates stored single symbols. The result is sorted.
func (t *Trie) Children(prefix []string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	node := t.find(prefix)
	if node == nil {
		return nil
	}

	var result []string
	for id, child := range node.children {
		if child.count > 0 {
			result = append(result, t.idToSymbol[id])
		}
	}
	sort.Strings(result)
	return result
}

// ChildrenTotal returns the summed counts of all stored continuations of prefix
func (t *Trie) ChildrenTotal(prefix []string) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	node := t.find(prefix)
	if node == nil {
		return 0
	}

	var total int64
	for _, child := range node.children {
		total += child.count
	}
	return total
}

// Walk calls fn for every stored sequence in depth-first order. The slice
// passed to fn is a fresh copy.
func (t *Trie) Walk(fn func(symbols []string, count int64)) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	t.walkNode(t.root, nil, fn)
}

func (t *Trie) walkNode(node *Node, path []string, fn func([]string, int64)) {
	if node != t.root && node.count > 0 {
		symbols := make([]string, len(path))
		copy(symbols, path)
		fn(symbols, node.count)
	}

	ids := make([]uint32, 0, len(node.children))
	for id := range node.children {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return t.idToSymbol[ids[i]] < t.idToSymbol[ids[j]] })

	for _, id := range ids {
		t.walkNode(node.children[id], append(path, t.idToSymbol[id]), fn)
	}
}

// Merge adds every count of other into t
func (t *Trie) Merge(other *Trie) {
	if other == nil || other == t {
		return
	}

	other.Walk(func(symbols []string, count int64) {
		t.Add(symbols, count)
	})
}

// Len returns the number of stored sequences
func (t *Trie) Len() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stored
}

// Total returns the sum of all counts
func (t *Trie) Total() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// SymbolCount returns the number of distinct interned symbols
func (t *Trie) SymbolCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.symbolToID)
}

// MemoryStats returns node statistics
func (t *Trie) MemoryStats() MemoryStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var nodeCount int64
	t.countNodes(t.root, &nodeCount)

	symbolMemory := int64(0)
	for symbol := range t.symbolToID {
		symbolMemory += int64(len(symbol)) + 16 // String header + content
	}

	return MemoryStats{
		SymbolCount:       len(t.symbolToID),
		TotalNodes:        nodeCount,
		StoredSequences:   t.stored,
		SymbolMemoryBytes: symbolMemory,
		NodeMemoryBytes:   nodeCount * 56, // Approx: symbolID(4) + count(8) + map(24) + pointers(20)
	}
}

func (t *Trie) countNodes(node *Node, count *int64) {
	*count++
	for _, child := range node.children {
		t.countNodes(child, count)
	}
}

// MemoryStats contains node statistics for a trie
type MemoryStats struct {
	SymbolCount       int   `json:"symbol_count"`
	TotalNodes        int64 `json:"total_nodes"`
	StoredSequences   int64 `json:"stored_sequences"`
	SymbolMemoryBytes int64 `json:"symbol_memory_bytes"`
	NodeMemoryBytes   int64 `json:"node_memory_bytes"`
}

// TotalMemoryBytes returns the estimated total memory usage
func (s MemoryStats) TotalMemoryBytes() int64 {
	return s.SymbolMemoryBytes + s.NodeMemoryBytes
}

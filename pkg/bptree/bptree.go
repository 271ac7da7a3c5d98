// Package bptree is an in-memory B+tree with linked leaves, used for the
// sparse key-to-offset indexes over sealed segments.
package bptree

import (
	"cmp"
	"sort"
	"sync"
)

// DefaultOrder is the fallback branching factor if a user-supplied order is too small.
const DefaultOrder = 4

// BPlusTree maps ordered keys to values. It is safe for concurrent use:
// writers are serialized and readers share the tree.
type BPlusTree[K cmp.Ordered, V any] struct {
	root   *node[K, V]
	order  int
	height int
	size   int
	m      sync.RWMutex
}

// node represents both internal and leaf nodes in the B+Tree.
type node[K cmp.Ordered, V any] struct {
	isLeaf   bool
	keys     []K
	children []*node[K, V] // used if !isLeaf
	values   []V           // used if isLeaf
	parent   *node[K, V]
	next     *node[K, V] // leaf-link pointer, for range scans
}

// NewBPlusTree creates and returns a B+Tree with the given order.
// If the specified order < 3, we fall back to DefaultOrder.
func NewBPlusTree[K cmp.Ordered, V any](order int) *BPlusTree[K, V] {
	if order < 3 {
		order = DefaultOrder
	}
	return &BPlusTree[K, V]{
		root: &node[K, V]{
			isLeaf: true,
			keys:   make([]K, 0, order+1),
			values: make([]V, 0, order+1),
		},
		order:  order,
		height: 1,
	}
}

func (tree *BPlusTree[K, V]) Height() int {
	tree.m.RLock()
	defer tree.m.RUnlock()
	return tree.height
}

// Len returns the number of distinct keys.
func (tree *BPlusTree[K, V]) Len() int {
	tree.m.RLock()
	defer tree.m.RUnlock()
	return tree.size
}

// childIndex determines which child pointer to follow for key.
func childIndex[K cmp.Ordered](keys []K, key K) int {
	return sort.Search(len(keys), func(i int) bool { return cmp.Less(key, keys[i]) })
}

// findLeaf descends to the leaf that would hold key.
func (tree *BPlusTree[K, V]) findLeaf(key K) *node[K, V] {
	current := tree.root
	for !current.isLeaf {
		current = current.children[childIndex(current.keys, key)]
	}
	return current
}

// Search locates the value associated with `key` (if it exists).
func (tree *BPlusTree[K, V]) Search(key K) (V, bool) {
	tree.m.RLock()
	defer tree.m.RUnlock()

	leaf := tree.findLeaf(key)
	i := sort.Search(len(leaf.keys), func(i int) bool { return leaf.keys[i] >= key })
	if i < len(leaf.keys) && leaf.keys[i] == key {
		return leaf.values[i], true
	}
	var zero V
	return zero, false
}

// Floor returns the greatest key <= key and its value.
func (tree *BPlusTree[K, V]) Floor(key K) (K, V, bool) {
	tree.m.RLock()
	defer tree.m.RUnlock()

	// The floor is either in key's leaf or is the last entry of an earlier
	// leaf; leaves only link forward, so walk from the leftmost leaf when the
	// target leaf has nothing <= key.
	leaf := tree.findLeaf(key)
	i := sort.Search(len(leaf.keys), func(i int) bool { return leaf.keys[i] > key })
	if i > 0 {
		return leaf.keys[i-1], leaf.values[i-1], true
	}

	var (
		fk    K
		fv    V
		found bool
	)
	for n := tree.leftmost(); n != nil && n != leaf; n = n.next {
		if len(n.keys) > 0 {
			fk, fv, found = n.keys[len(n.keys)-1], n.values[len(n.values)-1], true
		}
	}
	return fk, fv, found
}

// Ascend calls fn for every entry in key order until fn returns false.
func (tree *BPlusTree[K, V]) Ascend(fn func(key K, value V) bool) {
	tree.m.RLock()
	defer tree.m.RUnlock()

	for n := tree.leftmost(); n != nil; n = n.next {
		for i, k := range n.keys {
			if !fn(k, n.values[i]) {
				return
			}
		}
	}
}

func (tree *BPlusTree[K, V]) leftmost() *node[K, V] {
	current := tree.root
	for !current.isLeaf {
		current = current.children[0]
	}
	return current
}

// Insert adds a (key, value) pair to the B+Tree, replacing the value of an
// existing key.
func (tree *BPlusTree[K, V]) Insert(key K, value V) {
	tree.m.Lock()
	defer tree.m.Unlock()

	leaf := tree.findLeaf(key)
	if !insertKeyValueInLeaf(leaf, key, value) {
		return
	}
	tree.size++

	if len(leaf.keys) > tree.order {
		tree.splitLeaf(leaf)
	}
}

// insertKeyValueInLeaf reports whether a new key was added.
func insertKeyValueInLeaf[K cmp.Ordered, V any](leaf *node[K, V], key K, value V) bool {
	idx := sort.Search(len(leaf.keys), func(i int) bool { return leaf.keys[i] >= key })
	if idx < len(leaf.keys) && leaf.keys[idx] == key {
		leaf.values[idx] = value
		return false
	}

	leaf.keys = append(leaf.keys, key)
	copy(leaf.keys[idx+1:], leaf.keys[idx:])
	leaf.keys[idx] = key

	leaf.values = append(leaf.values, value)
	copy(leaf.values[idx+1:], leaf.values[idx:])
	leaf.values[idx] = value
	return true
}

// splitLeaf handles splitting a leaf node that has overflowed.
func (tree *BPlusTree[K, V]) splitLeaf(leaf *node[K, V]) {
	mid := len(leaf.keys) / 2

	newLeaf := &node[K, V]{
		isLeaf: true,
		keys:   append([]K{}, leaf.keys[mid:]...),
		values: append([]V{}, leaf.values[mid:]...),
		next:   leaf.next,
		parent: leaf.parent,
	}

	leaf.keys = leaf.keys[:mid]
	leaf.values = leaf.values[:mid]
	leaf.next = newLeaf

	tree.insertInParent(leaf, newLeaf.keys[0], newLeaf)
}

// insertInParent links right after left under their parent, separated by key.
func (tree *BPlusTree[K, V]) insertInParent(left *node[K, V], key K, right *node[K, V]) {
	parent := left.parent
	if parent == nil {
		newRoot := &node[K, V]{
			keys:     []K{key},
			children: []*node[K, V]{left, right},
		}
		left.parent = newRoot
		right.parent = newRoot
		tree.root = newRoot
		tree.height++
		return
	}

	idx := childIndex(parent.keys, key)

	parent.keys = append(parent.keys, key)
	copy(parent.keys[idx+1:], parent.keys[idx:])
	parent.keys[idx] = key

	parent.children = append(parent.children, right)
	copy(parent.children[idx+2:], parent.children[idx+1:])
	parent.children[idx+1] = right
	right.parent = parent

	if len(parent.keys) > tree.order {
		tree.splitInternal(parent)
	}
}

// splitInternal handles splitting an internal node that has overflowed.
func (tree *BPlusTree[K, V]) splitInternal(internal *node[K, V]) {
	mid := len(internal.keys) / 2
	splitKey := internal.keys[mid]

	newInternal := &node[K, V]{
		keys:     append([]K{}, internal.keys[mid+1:]...),
		children: append([]*node[K, V]{}, internal.children[mid+1:]...),
		parent:   internal.parent,
	}
	for _, child := range newInternal.children {
		child.parent = newInternal
	}

	internal.keys = internal.keys[:mid]
	internal.children = internal.children[:mid+1]

	tree.insertInParent(internal, splitKey, newInternal)
}

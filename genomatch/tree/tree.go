// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package tree

import (
	"errors"
	"sync"

	"github.com/shenwei356/genomatch/genomatch/util"
)

// ErrKeyLength means the length of a key is not K.
var ErrKeyLength = errors.New("tree: key length mismatch")

// ErrInvalidBase means a key contains bytes other than ACGTN.
var ErrInvalidBase = errors.New("tree: invalid base")

// leafNode is used to represent a value.
type leafNode struct {
	val []uint64 // yes, multiple values
}

// node represents a node in the tree, it might be the root, inner or leaf node.
// The label of a child is its slot in children.
type node struct {
	numChildren uint8
	children    [util.NumBases]*node // just use an array

	leaf *leafNode // only at depth K
}

// Tree is a prefix tree for storing fixed-length DNA keys,
// each with a list of occurrences.
type Tree struct {
	k    int   // use a global K
	root *node // root node

	numNodes     int // the number of nodes, including leaf nodes
	numLeafNodes int // the number of leaf nodes
}

// New returns a tree storing keys of k bases.
func New(k int) *Tree {
	return &Tree{k: k, root: &node{}}
}

// K returns the length of keys.
func (t *Tree) K() int {
	return t.k
}

// NumNodes returns the number of nodes, including leaf nodes.
func (t *Tree) NumNodes() int {
	return t.numNodes
}

// NumLeafNodes returns the number of leaf nodes, i.e., distinct keys.
func (t *Tree) NumLeafNodes() int {
	return t.numLeafNodes
}

// Insert is used to add a new entry or update
// an existing entry. Returns true if an existing key is updated.
func (t *Tree) Insert(key []byte, v uint64) (bool, error) {
	if len(key) != t.k {
		return false, ErrKeyLength
	}
	// check all bases first, so a bad key leaves no dangling nodes.
	if util.InvalidBaseAt(key) >= 0 {
		return false, ErrInvalidBase
	}

	n := t.root
	var c uint8
	var child *node
	for _, b := range key {
		c = util.BaseCode(b)
		child = n.children[c]

		// No child, create one
		if child == nil {
			child = &node{}
			n.children[c] = child
			n.numChildren++
			t.numNodes++
		}
		n = child
	}

	if n.leaf != nil {
		n.leaf.val = append(n.leaf.val, v)
		return true, nil
	}

	n.leaf = &leafNode{val: []uint64{v}}
	t.numLeafNodes++
	return false, nil
}

// Get is used to lookup a specific key, returning
// the value and if it was found.
func (t *Tree) Get(key []byte) ([]uint64, bool) {
	if len(key) != t.k {
		return nil, false
	}

	n := t.root
	var c uint8
	for _, b := range key {
		c = util.BaseCode(b)
		if c == util.InvalidBase {
			return nil, false
		}
		n = n.children[c]
		if n == nil { // not found
			return nil, false
		}
	}

	if n.leaf != nil {
		return n.leaf.val, true
	}
	return nil, false
}

var poolSearchResults = &sync.Pool{New: func() interface{} {
	tmp := make([]uint64, 0, 128)
	return &tmp
}}

// state of a branch during mismatch-tolerant searching.
type state struct {
	n      *node
	depth  int  // the number of consumed bases
	budget bool // whether a mismatch can still be spent
}

var poolStack = &sync.Pool{New: func() interface{} {
	tmp := make([]state, 0, 64)
	return &tmp
}}

// RecycleSearchResult recycles search results objects.
func (t *Tree) RecycleSearchResult(sr *[]uint64) {
	if sr == nil {
		return
	}
	poolSearchResults.Put(sr)
}

// Search returns values of all keys identical to the probe, or
// differing from it at exactly one base if allowMismatch is true.
// The first base must always match, it's the fast rejection step.
// Values of keys reached by multiple branches are appended once per branch.
// After using the result, do not forget to call RecycleSearchResult().
func (t *Tree) Search(probe []byte, allowMismatch bool) (*[]uint64, bool) {
	if len(probe) != t.k || t.k == 0 {
		return nil, false
	}

	c := util.BaseCode(probe[0])
	if c == util.InvalidBase {
		return nil, false
	}
	first := t.root.children[c]
	if first == nil {
		return nil, false
	}

	results := poolSearchResults.Get().(*[]uint64)
	*results = (*results)[:0]

	stack := poolStack.Get().(*[]state)
	*stack = append((*stack)[:0], state{n: first, depth: 1, budget: allowMismatch})

	var s state
	var i uint8
	var child *node
	for len(*stack) > 0 {
		s = (*stack)[len(*stack)-1]
		*stack = (*stack)[:len(*stack)-1]

		if s.depth == t.k {
			if s.n.leaf != nil {
				*results = append(*results, s.n.leaf.val...)
			}
			continue
		}

		c = util.BaseCode(probe[s.depth])
		for i = 0; i < util.NumBases; i++ {
			child = s.n.children[i]
			if child == nil {
				continue
			}
			if i == c {
				*stack = append(*stack, state{n: child, depth: s.depth + 1, budget: s.budget})
			} else if s.budget {
				*stack = append(*stack, state{n: child, depth: s.depth + 1, budget: false})
			}
		}
	}
	poolStack.Put(stack)

	if len(*results) == 0 {
		poolSearchResults.Put(results)
		return nil, false
	}
	return results, true
}

// WalkFn is used for walking the tree. Takes a
// key and value, returning if iteration should
// be terminated. The key is only valid in the call.
type WalkFn func(key []byte, v []uint64) bool

// Walk is used to walk the whole tree.
// Keys are visited in the order of A, C, G, T, N.
func (t *Tree) Walk(fn WalkFn) {
	key := make([]byte, 0, t.k)
	recursiveWalk(t.root, key, fn)
}

// recursiveWalk is used to do a pre-order walk of a node
// recursively. Returns true if the walk should be aborted.
func recursiveWalk(n *node, key []byte, fn WalkFn) bool {
	if n.leaf != nil && fn(key, n.leaf.val) {
		return true
	}

	for c, child := range n.children {
		if child != nil && recursiveWalk(child, append(key, util.Code2Base[c]), fn) {
			return true
		}
	}

	return false
}

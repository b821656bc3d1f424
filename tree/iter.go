// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package tree

import "iter"

// PreOrder returns an iterator visiting n and its descendants, parent
// before children.
func (n Node) PreOrder() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		n.preOrder(yield)
	}
}

func (n Node) preOrder(yield func(Node) bool) bool {
	if !yield(n) {
		return false
	}
	for _, c := range n.Children() {
		if !c.preOrder(yield) {
			return false
		}
	}
	return true
}

// PostOrder returns an iterator visiting n and its descendants,
// children before parent.
func (n Node) PostOrder() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		n.postOrder(yield)
	}
}

func (n Node) postOrder(yield func(Node) bool) bool {
	for _, c := range n.Children() {
		if !c.postOrder(yield) {
			return false
		}
	}
	return yield(n)
}

// PreOrderInternal is PreOrder restricted to internal (non-leaf) nodes.
func (n Node) PreOrderInternal() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for m := range n.PreOrder() {
			if m.IsLeaf() {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

// PostOrderInternal is PostOrder restricted to internal (non-leaf)
// nodes.
func (n Node) PostOrderInternal() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for m := range n.PostOrder() {
			if m.IsLeaf() {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

// Leaves returns a post-order iterator over the leaves of n's subtree.
func (n Node) Leaves() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for m := range n.PostOrder() {
			if !m.IsLeaf() {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

// Ancestors returns an iterator walking rootward from n's parent up to
// and including the root, but not past it.
func (n Node) Ancestors() iter.Seq[Node] {
	return func(yield func(Node) bool) {
		cur, ok := n.Parent()
		for ok {
			if !yield(cur) {
				return
			}
			cur, ok = cur.Parent()
		}
	}
}

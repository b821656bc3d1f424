// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package tree

// Clone returns a full, deep, structurally identical copy of t. Node
// ids are preserved, so a Node handle from t is not meaningful on the
// clone; callers should re-resolve handles through the clone's own
// Root/Node accessors.
func (t *Tree) Clone() *Tree {
	nt := &Tree{
		nodes:  make(map[int]*node, len(t.nodes)),
		root:   t.root,
		nextID: t.nextID,
	}
	for id, n := range t.nodes {
		cp := *n
		cp.children = append([]int(nil), n.children...)
		cp.changes = append([]stateChange(nil), n.changes...)
		nt.nodes[id] = &cp
	}
	return nt
}

// PruneExtinctLeaves returns a new, deep-copied tree with every maximal
// subtree that has no extant leaves removed, followed by removal of
// every unifurcation. The filtered copy and the unifurcation removal
// share a single underlying copy of the source tree: there is no
// separate discard-then-collapse pass.
//
// If t itself has no extant leaves (the whole replicate went extinct),
// there is nothing left to prune to, and ok is false.
func (t *Tree) PruneExtinctLeaves() (pruned *Tree, ok bool) {
	root := t.Root()
	if !root.HasExtantLeaves() {
		return nil, false
	}

	nt := New(root.RootwardState())
	if seed, ok := root.SeedTime(); ok {
		nt.SetSeedTime(nt.Root(), seed)
	}
	copyExtantSubtree(root, nt.Root())
	removeUnifurcationsInPlace(nt)
	return nt, true
}

// copyExtantSubtree copies src's own fields onto dst, then recursively
// copies every child of src that has at least one extant leaf in its
// subtree. dst already exists in its tree's arena.
func copyExtantSubtree(src, dst Node) {
	sd, dd := src.data(), dst.data()
	dd.timeSet = sd.timeSet
	dd.time = sd.time
	dd.isExtinct = sd.isExtinct
	dd.isBurstNode = sd.isBurstNode
	dd.label = sd.label
	dd.changes = append([]stateChange(nil), sd.changes...)

	for _, c := range src.Children() {
		if !c.HasExtantLeaves() {
			continue
		}
		dc := dst.t.AddChild(dst, c.RootwardState())
		copyExtantSubtree(c, dc)
	}
}

// RemoveUnifurcations returns a new, deep-copied tree with every node
// that has exactly one child spliced out: the child is reattached
// directly to the removed node's parent, the removed node's state
// history is prepended to the child's, and the child inherits the
// removed node's rootward_state. If the root itself is a unifurcation,
// the surviving descendant becomes the new root and inherits the
// former root's seed_time. The operation is idempotent: applying it to
// a tree with no unifurcations returns an unchanged copy.
func (t *Tree) RemoveUnifurcations() *Tree {
	nt := t.Clone()
	removeUnifurcationsInPlace(nt)
	return nt
}

// removeUnifurcationsInPlace collapses every maximal chain of
// single-child nodes in t, mutating t directly.
func removeUnifurcationsInPlace(t *Tree) {
	chain := collectChain(t, t.root)
	if len(chain) > 1 {
		first := t.nodes[chain[0]]
		last := t.nodes[chain[len(chain)-1]]

		merged := mergeChanges(t, chain)
		last.rootwardState = first.rootwardState
		last.changes = merged
		last.parent = noParent
		last.seedTimeSet = first.seedTimeSet
		last.seedTime = first.seedTime

		for _, id := range chain[:len(chain)-1] {
			delete(t.nodes, id)
		}
		t.root = last.id
	}

	collapseChildren(t, t.root)
}

// collapseChildren recursively collapses unifurcation chains rooted at
// each child of n.
func collapseChildren(t *Tree, n int) {
	p := t.nodes[n]
	children := append([]int(nil), p.children...)
	for i, cid := range children {
		chain := collectChain(t, cid)
		if len(chain) == 1 {
			collapseChildren(t, cid)
			continue
		}

		first := t.nodes[chain[0]]
		last := t.nodes[chain[len(chain)-1]]
		merged := mergeChanges(t, chain)
		last.rootwardState = first.rootwardState
		last.changes = merged
		last.parent = n
		p.children[i] = last.id

		for _, id := range chain[:len(chain)-1] {
			delete(t.nodes, id)
		}
		collapseChildren(t, last.id)
	}
}

// collectChain returns the ids from start down through a maximal run
// of single-child descendants, inclusive of the first node that is not
// a single-child node (0 or 2+ children, or a leaf).
func collectChain(t *Tree, start int) []int {
	chain := []int{start}
	cur := t.nodes[start]
	for len(cur.children) == 1 {
		next := cur.children[0]
		chain = append(chain, next)
		cur = t.nodes[next]
	}
	return chain
}

// mergeChanges concatenates the state-change histories of every node
// in chain, in rootward-to-leafward order.
func mergeChanges(t *Tree, chain []int) []stateChange {
	var out []stateChange
	for _, id := range chain {
		out = append(out, t.nodes[id].changes...)
	}
	return out
}

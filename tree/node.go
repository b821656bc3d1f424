// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package tree

import "fmt"

// Node is a lightweight, read-mostly handle onto a node held in a
// Tree's arena. Node values are cheap to copy and are never
// invalidated by structural mutation elsewhere in the tree: only the
// id they reference may, in principle, be removed from the arena.
type Node struct {
	t  *Tree
	id int
}

// ID returns the node's stable integer handle.
func (n Node) ID() int {
	return n.id
}

func (n Node) data() *node {
	return n.t.get(n.id)
}

// IsRoot reports whether n is the root of its tree.
func (n Node) IsRoot() bool {
	return n.data().parent == noParent
}

// IsLeaf reports whether n has no children.
func (n Node) IsLeaf() bool {
	return len(n.data().children) == 0
}

// Parent returns n's parent, and whether n has one (false for the
// root).
func (n Node) Parent() (Node, bool) {
	d := n.data()
	if d.parent == noParent {
		return Node{}, false
	}
	return Node{t: n.t, id: d.parent}, true
}

// Children returns n's children, in the order they were added.
func (n Node) Children() []Node {
	d := n.data()
	out := make([]Node, len(d.children))
	for i, id := range d.children {
		out[i] = Node{t: n.t, id: id}
	}
	return out
}

// IsAncestorOf reports whether n is a (possibly indirect) ancestor of
// other.
func (n Node) IsAncestorOf(other Node) bool {
	for a := range other.Ancestors() {
		if a.id == n.id {
			return true
		}
	}
	return false
}

// Time returns n's absolute event time, and whether it has been set.
// An unset time means n is still a live leaf.
func (n Node) Time() (float64, bool) {
	d := n.data()
	return d.time, d.timeSet
}

// SeedTime returns the root's seed_time, and whether it is set. It is
// only meaningful for the root.
func (n Node) SeedTime() (float64, bool) {
	d := n.data()
	return d.seedTime, d.seedTimeSet
}

// RootwardState returns the character state at the rootward end of n's
// branch.
func (n Node) RootwardState() int {
	return n.data().rootwardState
}

// LeafwardState returns the character state at the leafward end of n's
// branch: rootward_state if there are no recorded state changes, else
// the last change's to_state.
func (n Node) LeafwardState() int {
	d := n.data()
	if len(d.changes) == 0 {
		return d.rootwardState
	}
	return d.changes[len(d.changes)-1].to
}

// IsExtinct reports whether n is a leaf that went extinct.
func (n Node) IsExtinct() bool {
	return n.data().isExtinct
}

// IsBurstNode reports whether n's branch ended in a burst event, i.e.
// n diverged into its children at a burst.
func (n Node) IsBurstNode() bool {
	return n.data().isBurstNode
}

// Label returns n's label, which may be empty.
func (n Node) Label() string {
	return n.data().label
}

// BranchLength returns the length of n's branch: time - parent.time
// for a non-root node, or time - seed_time for the root (0 if
// seed_time is unset).
func (n Node) BranchLength() float64 {
	d := n.data()
	t, ok := d.time, d.timeSet
	if !ok {
		return 0
	}
	if d.parent == noParent {
		if d.seedTimeSet {
			return t - d.seedTime
		}
		return 0
	}
	p := n.t.get(d.parent)
	if !p.timeSet {
		return 0
	}
	return t - p.time
}

// TreeLength returns the sum of branch lengths of every descendant of
// n (excluding n's own branch).
func (n Node) TreeLength() float64 {
	var sum float64
	for _, c := range n.Children() {
		sum += c.BranchLength()
		sum += c.TreeLength()
	}
	return sum
}

// MaxTime returns the maximum time over the leaves of n's subtree.
func (n Node) MaxTime() float64 {
	max := -1.0
	found := false
	for l := range n.Leaves() {
		t, ok := l.Time()
		if !ok {
			continue
		}
		if !found || t > max {
			max = t
			found = true
		}
	}
	return max
}

// Height returns max_time - time, where max_time is taken over the
// leaves of the whole tree (not just n's subtree) and time is n's own
// absolute time. This is the present-day-is-zero orientation used
// after a simulation run terminates.
func (n Node) Height() float64 {
	t, ok := n.Time()
	if !ok {
		panic(fmt.Sprintf("tree: node %d has no time set", n.id))
	}
	return n.t.Root().MaxTime() - t
}

// NumberOfLeaves returns the number of leaves in n's subtree.
func (n Node) NumberOfLeaves() int {
	c := 0
	for range n.Leaves() {
		c++
	}
	return c
}

// NumberOfExtantLeaves returns the number of non-extinct leaves in n's
// subtree.
func (n Node) NumberOfExtantLeaves() int {
	c := 0
	for l := range n.Leaves() {
		if !l.IsExtinct() {
			c++
		}
	}
	return c
}

// NumberOfExtinctLeaves returns the number of extinct leaves in n's
// subtree.
func (n Node) NumberOfExtinctLeaves() int {
	c := 0
	for l := range n.Leaves() {
		if l.IsExtinct() {
			c++
		}
	}
	return c
}

// HasExtantLeaves reports whether any leaf in n's subtree is not
// extinct.
func (n Node) HasExtantLeaves() bool {
	for l := range n.Leaves() {
		if !l.IsExtinct() {
			return true
		}
	}
	return false
}

// StateDuration is one segment of a branch's character-state history:
// the state held for Duration time units.
type StateDuration struct {
	State    int
	Duration float64
}

// LeafwardStateHistory returns the ordered sequence of (state,
// duration) segments along n's branch, from rootward_state to
// leafward_state. Durations sum to BranchLength.
func (n Node) LeafwardStateHistory() []StateDuration {
	d := n.data()
	anchor, _ := n.t.anchorTime(d)

	hist := make([]StateDuration, 0, len(d.changes)+1)
	prevTime := anchor
	state := d.rootwardState
	for _, ch := range d.changes {
		hist = append(hist, StateDuration{State: state, Duration: ch.at - prevTime})
		state = ch.to
		prevTime = ch.at
	}
	if d.timeSet {
		hist = append(hist, StateDuration{State: state, Duration: d.time - prevTime})
	}
	return hist
}

// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package tree

import "testing"

func TestNewickSimpleForm(t *testing.T) {
	tr := New(0)
	root := tr.Root()
	if err := tr.SetTime(root, 0.5); err != nil {
		t.Fatalf("SetTime(root): %v", err)
	}
	a := tr.AddChild(root, 0)
	if err := tr.SetTime(a, 1); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
	l1 := tr.AddChild(a, 0)
	tr.SetLabel(l1, "L1")
	if err := tr.SetTime(l1, 2); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
	l2 := tr.AddChild(a, 0)
	tr.SetLabel(l2, "L2")
	if err := tr.SetTime(l2, 1.5); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
	l3 := tr.AddChild(root, 0)
	tr.SetLabel(l3, "L3")
	if err := tr.SetTime(l3, 1); err != nil {
		t.Fatalf("SetTime: %v", err)
	}

	got := tr.Newick(NewickOpts{})
	want := "((L1:1,L2:0.5):0.5,L3:0.5);"
	if got != want {
		t.Errorf("Newick() = %q, want %q", got, want)
	}
}

func TestParseSimpleNewickRoundTrip(t *testing.T) {
	in := "((L1:1,L2:0.5):1,L3:1);"
	tr, err := ParseSimpleNewick(in)
	if err != nil {
		t.Fatalf("ParseSimpleNewick: %v", err)
	}

	got := tr.Newick(NewickOpts{})
	if got != in {
		t.Errorf("round trip = %q, want %q", got, in)
	}
}

func TestParseSimpleNewickRejectsMissingSemicolon(t *testing.T) {
	if _, err := ParseSimpleNewick("(A:1,B:1)"); err == nil {
		t.Fatalf("expected error for missing trailing ';'")
	}
}

func TestParseSimpleNewickSingleLeaf(t *testing.T) {
	tr, err := ParseSimpleNewick("A:2;")
	if err != nil {
		t.Fatalf("ParseSimpleNewick: %v", err)
	}
	root := tr.Root()
	if !root.IsLeaf() {
		t.Fatalf("expected root to be a leaf")
	}
	if got, _ := root.Time(); got != 2 {
		t.Errorf("root time = %v, want 2", got)
	}
}

func TestNewickRootOnlyLeafCarriesAnnotation(t *testing.T) {
	tr := New(0)
	root := tr.Root()
	tr.SetLabel(root, "A")
	tr.SetSeedTime(root, 0)
	if err := tr.SetTime(root, 1.3); err != nil {
		t.Fatalf("SetTime(root): %v", err)
	}

	if got, want := tr.Newick(NewickOpts{}), "A:1.3;"; got != want {
		t.Errorf("Newick() = %q, want %q", got, want)
	}
	if got, want := tr.Newick(NewickOpts{SimMap: true}), "A:{0,1.3};"; got != want {
		t.Errorf("Newick(SimMap) = %q, want %q", got, want)
	}
}

func TestNewickSimMapForm(t *testing.T) {
	tr := New(0)
	root := tr.Root()
	a := tr.AddChild(root, 0)
	if err := tr.SetTime(a, 2); err != nil {
		t.Fatalf("SetTime: %v", err)
	}
	if err := tr.RecordStateChange(a, 0, 1, 1); err != nil {
		t.Fatalf("RecordStateChange: %v", err)
	}
	tr.SetLabel(a, "A")

	got := tr.Newick(NewickOpts{SimMap: true})
	want := "(A:{0,1:1,1});"
	if got != want {
		t.Errorf("Newick(SimMap) = %q, want %q", got, want)
	}
}

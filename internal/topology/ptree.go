package topology

import "github.com/diivious/eigrpd/internal/addr"

// ptree is a prefix trie over PrefixDescriptors, adapted from the
// teacher's edge-based radix trie: edges carry whole prefixes rather than
// single bits, and a new edge is inserted under the most specific existing
// edge that contains it, pulling any edges it now contains down underneath
// it. The topology table only ever does exact-match lookups (EIGRP has no
// recursive next-hop resolution), so walk/exact are the only lookups this
// type needs — no longest-match search.
type ptree struct {
	root *ptreeNode
}

type ptreeNode struct {
	edges []*ptreeEdge
}

type ptreeEdge struct {
	prefix addr.Address
	target *ptreeNode
	desc   *PrefixDescriptor
}

func newPtree() *ptree {
	return &ptree{root: &ptreeNode{}}
}

// insert adds desc under its prefix, repacking any existing edges the new
// prefix now contains underneath it.
func (t *ptree) insert(desc *PrefixDescriptor) {
	t.insertAt(t.root, desc)
}

func (t *ptree) insertAt(n *ptreeNode, desc *PrefixDescriptor) {
	prefix := desc.Prefix.Network()

	for _, e := range n.edges {
		if e.prefix.Equal(prefix) {
			e.desc = desc
			return
		}
		if e.prefix.Contains(prefix) {
			t.insertAt(e.target, desc)
			return
		}
	}

	fresh := &ptreeEdge{prefix: prefix, target: &ptreeNode{}, desc: desc}
	n.edges = append(n.edges, fresh)

	kept := n.edges[:0]
	for _, e := range n.edges {
		if e == fresh {
			kept = append(kept, e)
			continue
		}
		if prefix.Contains(e.prefix) {
			fresh.target.edges = append(fresh.target.edges, e)
		} else {
			kept = append(kept, e)
		}
	}
	n.edges = kept
}

// exact returns the descriptor stored for prefix, if any.
func (t *ptree) exact(prefix addr.Address) (*PrefixDescriptor, bool) {
	return t.exactAt(t.root, prefix.Network())
}

func (t *ptree) exactAt(n *ptreeNode, prefix addr.Address) (*PrefixDescriptor, bool) {
	for _, e := range n.edges {
		if e.prefix.Equal(prefix) {
			return e.desc, true
		}
		if e.prefix.Contains(prefix) {
			return t.exactAt(e.target, prefix)
		}
	}
	return nil, false
}

// remove deletes the descriptor stored for prefix, promoting its children
// up to its parent so the tree stays walkable.
func (t *ptree) remove(prefix addr.Address) bool {
	return t.removeAt(t.root, prefix.Network())
}

func (t *ptree) removeAt(n *ptreeNode, prefix addr.Address) bool {
	for i, e := range n.edges {
		if e.prefix.Equal(prefix) {
			n.edges = append(n.edges[:i], n.edges[i+1:]...)
			n.edges = append(n.edges, e.target.edges...)
			return true
		}
		if e.prefix.Contains(prefix) {
			return t.removeAt(e.target, prefix)
		}
	}
	return false
}

// walk calls fn for every descriptor in the tree, in no particular order.
func (t *ptree) walk(fn func(*PrefixDescriptor)) {
	t.walkNode(t.root, fn)
}

func (t *ptree) walkNode(n *ptreeNode, fn func(*PrefixDescriptor)) {
	for _, e := range n.edges {
		fn(e.desc)
		t.walkNode(e.target, fn)
	}
}

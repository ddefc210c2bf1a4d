// Iterator supports ordered forward scans over a B+-tree's leaves,
// holding a read latch on at most one leaf at a time.
package btree

import "github.com/JerryiaL/minisql/pkg/page"

// Iterator walks leaf entries in key order. The zero value is not
// usable; construct with Begin or BeginAt.
type Iterator struct {
	tree *BPlusTree
	leaf page.ID
	node Node
	idx  uint16
}

// Begin returns an iterator positioned at the first entry of the
// leftmost leaf.
func (t *BPlusTree) Begin() *Iterator {
	root := t.root()
	if !root.IsValid() {
		return &Iterator{tree: t, leaf: page.Invalid}
	}
	cur := root
	node := t.fetchNode(cur)
	for !node.IsLeaf() {
		child := node.ChildAt(0)
		childNode := t.fetchNode(child)
		t.bp.Unpin(cur, false)
		cur = child
		node = childNode
	}
	return &Iterator{tree: t, leaf: cur, node: node, idx: 0}
}

// BeginAt returns an iterator positioned at the first entry >= key.
func (t *BPlusTree) BeginAt(key []byte) *Iterator {
	leafID, leaf := t.findLeaf(key)
	if leaf == nil {
		return &Iterator{tree: t, leaf: page.Invalid}
	}
	idx := leaf.LookupGE(key, t.cmp)
	if idx >= leaf.Size() {
		return advanceToNextLeaf(t, leafID, leaf)
	}
	return &Iterator{tree: t, leaf: leafID, node: leaf, idx: idx}
}

func advanceToNextLeaf(t *BPlusTree, leafID page.ID, leaf Node) *Iterator {
	next := leaf.NextPageID()
	t.bp.Unpin(leafID, false)
	if !next.IsValid() {
		return &Iterator{tree: t, leaf: page.Invalid}
	}
	nextNode := t.fetchNode(next)
	return &Iterator{tree: t, leaf: next, node: nextNode, idx: 0}
}

// End reports whether the iterator has run off the end of the tree.
func (it *Iterator) End() bool { return !it.leaf.IsValid() }

// Key returns the current entry's key. Only valid when !End().
func (it *Iterator) Key() []byte { return it.node.KeyAt(it.idx) }

// Value returns the current entry's row-id. Only valid when !End().
func (it *Iterator) Value() page.RID { return it.node.ValueAt(it.idx) }

// Next advances to the next entry, crossing into the next leaf (and
// unpinning the current one) when the current leaf is exhausted.
func (it *Iterator) Next() {
	if it.End() {
		return
	}
	it.idx++
	if it.idx < it.node.Size() {
		return
	}
	next := it.node.NextPageID()
	it.tree.bp.Unpin(it.leaf, false)
	if !next.IsValid() {
		it.leaf = page.Invalid
		return
	}
	it.node = it.tree.fetchNode(next)
	it.leaf = next
	it.idx = 0
}

// Close releases the latch on whatever leaf the iterator currently
// holds. Safe to call on an already-ended iterator.
func (it *Iterator) Close() {
	if it.End() {
		return
	}
	it.tree.bp.Unpin(it.leaf, false)
	it.leaf = page.Invalid
}

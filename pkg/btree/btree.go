// BPlusTree ties Node pages together through the buffer pool: crabbed
// descents, splits, coalesces/redistributes and root bookkeeping via
// the index-roots page. Root management (publishing/looking up a root
// by index-id) is grounded on the teacher's IndexRootsPage companion
// and spec.md's worked split/coalesce algorithm (see DESIGN.md).
package btree

import (
	"bytes"

	"github.com/JerryiaL/minisql/internal/metrics"
	"github.com/JerryiaL/minisql/pkg/buffer"
	"github.com/JerryiaL/minisql/pkg/disk"
	"github.com/JerryiaL/minisql/pkg/errs"
	"github.com/JerryiaL/minisql/pkg/page"
)

// BPlusTree is a unique-key index over fixed-width keys, identified
// within a database by indexID (its entry in the shared index-roots
// page).
type BPlusTree struct {
	bp      *buffer.Manager
	metrics *metrics.Metrics
	indexID uint32
	keySize int
	cmp     Comparator

	maxLeaf     uint16
	maxInternal uint16
}

// New opens (creating the roots-page entry if absent) the B+-tree
// identified by indexID.
func New(bp *buffer.Manager, indexID uint32, keySize int, cmp Comparator, m *metrics.Metrics) (*BPlusTree, error) {
	t := &BPlusTree{
		bp:          bp,
		metrics:     m,
		indexID:     indexID,
		keySize:     keySize,
		cmp:         cmp,
		maxLeaf:     MaxEntries(true, keySize),
		maxInternal: MaxEntries(false, keySize),
	}

	p := t.fetchRoots()
	if p == nil {
		return nil, errs.New("btree.New", errs.IoError)
	}
	rp := page.IndexRootsPage(p.Data())
	if _, ok := rp.GetRoot(indexID); !ok {
		if !rp.Insert(indexID, page.Invalid) {
			t.bp.Unpin(disk.IndexRootsPageID, false)
			return nil, errs.New("btree.New", errs.Unsupported)
		}
		t.bp.Unpin(disk.IndexRootsPageID, true)
		return t, nil
	}
	t.bp.Unpin(disk.IndexRootsPageID, false)
	return t, nil
}

func (t *BPlusTree) fetchRoots() *page.Page { return t.bp.Fetch(disk.IndexRootsPageID) }

func (t *BPlusTree) root() page.ID {
	p := t.fetchRoots()
	defer t.bp.Unpin(disk.IndexRootsPageID, false)
	rp := page.IndexRootsPage(p.Data())
	id, _ := rp.GetRoot(t.indexID)
	return id
}

func (t *BPlusTree) setRoot(id page.ID) {
	p := t.fetchRoots()
	rp := page.IndexRootsPage(p.Data())
	rp.Update(t.indexID, id)
	t.bp.Unpin(disk.IndexRootsPageID, true)
}

func (t *BPlusTree) newLeaf(parent page.ID) (page.ID, Node, error) {
	pid, pg, err := t.bp.NewPage()
	if err != nil {
		return page.Invalid, nil, err
	}
	n := Node(pg.Data())
	n.Init(TypeLeaf, t.keySize, t.maxLeaf, pid, parent)
	n.SetNextPageID(page.Invalid)
	return pid, n, nil
}

func (t *BPlusTree) newInternal(parent page.ID) (page.ID, Node, error) {
	pid, pg, err := t.bp.NewPage()
	if err != nil {
		return page.Invalid, nil, err
	}
	n := Node(pg.Data())
	n.Init(TypeInternal, t.keySize, t.maxInternal, pid, parent)
	return pid, n, nil
}

func (t *BPlusTree) fetchNode(id page.ID) Node {
	pg := t.bp.Fetch(id)
	if pg == nil {
		return nil
	}
	return Node(pg.Data())
}

// findLeaf descends from root to the leaf that would contain key,
// crabbing down: the child is pinned before the parent is unpinned.
// The returned leaf stays pinned; callers must Unpin it.
func (t *BPlusTree) findLeaf(key []byte) (page.ID, Node) {
	cur := t.root()
	if !cur.IsValid() {
		return page.Invalid, nil
	}
	node := t.fetchNode(cur)
	for !node.IsLeaf() {
		idx := node.LookupLE(key, t.cmp)
		child := node.ChildAt(idx)
		childNode := t.fetchNode(child)
		t.bp.Unpin(cur, false)
		cur = child
		node = childNode
	}
	return cur, node
}

// GetValue looks up key, returning its row-id if present.
func (t *BPlusTree) GetValue(key []byte) (page.RID, bool, error) {
	leafID, leaf := t.findLeaf(key)
	if leaf == nil {
		return page.InvalidRID, false, nil
	}
	defer t.bp.Unpin(leafID, false)

	idx := leaf.LookupGE(key, t.cmp)
	if idx < leaf.Size() && bytes.Equal(leaf.KeyAt(idx), key) {
		return leaf.ValueAt(idx), true, nil
	}
	return page.InvalidRID, false, nil
}

// Insert adds (key, rid). Fails with ConstraintViolation if key is
// already present (unique-only index).
func (t *BPlusTree) Insert(key []byte, rid page.RID) error {
	root := t.root()
	if !root.IsValid() {
		pid, leaf, err := t.newLeaf(page.Invalid)
		if err != nil {
			return err
		}
		leaf.InsertLeafAt(0, key, rid)
		t.setRoot(pid)
		t.bp.Unpin(pid, true)
		return nil
	}

	leafID, leaf := t.findLeaf(key)
	idx := leaf.LookupGE(key, t.cmp)
	if idx < leaf.Size() && bytes.Equal(leaf.KeyAt(idx), key) {
		t.bp.Unpin(leafID, false)
		return errs.New("btree.Insert", errs.ConstraintViolation)
	}

	if leaf.Size() < t.maxLeaf {
		leaf.InsertLeafAt(idx, key, rid)
		t.bp.Unpin(leafID, true)
		return nil
	}

	return t.splitLeafAndInsert(leafID, leaf, key, rid)
}

func (t *BPlusTree) splitLeafAndInsert(leafID page.ID, leaf Node, key []byte, rid page.RID) error {
	siblingID, sibling, err := t.newLeaf(leaf.ParentPageID())
	if err != nil {
		t.bp.Unpin(leafID, true)
		return err
	}

	leaf.MoveHalfTo(sibling)

	if t.cmp(key, sibling.KeyAt(0)) < 0 {
		at := leaf.LookupGE(key, t.cmp)
		leaf.InsertLeafAt(at, key, rid)
	} else {
		at := sibling.LookupGE(key, t.cmp)
		sibling.InsertLeafAt(at, key, rid)
	}

	sibling.SetNextPageID(leaf.NextPageID())
	leaf.SetNextPageID(siblingID)

	if t.metrics != nil {
		t.metrics.BtreeSplitsTotal.WithLabelValues("leaf").Inc()
	}

	separator := append([]byte(nil), sibling.KeyAt(0)...)
	parent := leaf.ParentPageID()
	t.bp.Unpin(leafID, true)
	t.bp.Unpin(siblingID, true)
	return t.insertIntoParent(leafID, parent, separator, siblingID)
}

// insertIntoParent inserts (separator, rightChild) after leftChild's
// entry in parent. If parent is Invalid, leftChild was the root: a new
// internal root is allocated.
func (t *BPlusTree) insertIntoParent(leftChild page.ID, parent page.ID, separator []byte, rightChild page.ID) error {
	if !parent.IsValid() {
		pid, root, err := t.newInternal(page.Invalid)
		if err != nil {
			return err
		}
		root.InsertInternalAt(0, make([]byte, t.keySize), leftChild)
		root.InsertInternalAt(1, separator, rightChild)
		t.setRoot(pid)

		t.reparent(leftChild, pid)
		t.reparent(rightChild, pid)

		t.bp.Unpin(pid, true)
		return nil
	}

	node := t.fetchNode(parent)
	pos := t.childIndex(node, leftChild)

	if node.Size() < t.maxInternal {
		node.InsertInternalAt(pos+1, separator, rightChild)
		t.bp.Unpin(parent, true)
		t.reparent(rightChild, parent)
		return nil
	}

	return t.splitInternalAndInsert(parent, node, pos, separator, rightChild)
}

func (t *BPlusTree) childIndex(node Node, child page.ID) uint16 {
	size := node.Size()
	for i := uint16(0); i < size; i++ {
		if node.ChildAt(i) == child {
			return i
		}
	}
	return 0
}

func (t *BPlusTree) splitInternalAndInsert(nodeID page.ID, node Node, pos uint16, separator []byte, rightChild page.ID) error {
	siblingID, sibling, err := t.newInternal(node.ParentPageID())
	if err != nil {
		t.bp.Unpin(nodeID, true)
		return err
	}

	if pos+1 <= node.Size() {
		node.InsertInternalAt(pos+1, separator, rightChild)
	}

	node.MoveHalfTo(sibling)
	pushedUp := append([]byte(nil), sibling.KeyAt(0)...)

	// sibling's dummy key (index 0) is discarded conceptually: its
	// child stays sibling's leftmost, but the key value moves up to
	// become the new separator in the parent.
	sibling.SetKeyAt(0, make([]byte, t.keySize))

	for i := uint16(0); i < sibling.Size(); i++ {
		t.reparent(sibling.ChildAt(i), siblingID)
	}

	if t.metrics != nil {
		t.metrics.BtreeSplitsTotal.WithLabelValues("internal").Inc()
	}

	parentID := node.ParentPageID()
	t.bp.Unpin(nodeID, true)
	t.bp.Unpin(siblingID, true)
	return t.insertIntoParent(nodeID, parentID, pushedUp, siblingID)
}

func (t *BPlusTree) reparent(child page.ID, parent page.ID) {
	n := t.fetchNode(child)
	if n == nil {
		return
	}
	n.SetParentPageID(parent)
	t.bp.Unpin(child, true)
}

// Delete removes key. Underflowing nodes trigger coalesce/redistribute
// up the tree as needed.
func (t *BPlusTree) Delete(key []byte) error {
	root := t.root()
	if !root.IsValid() {
		return errs.New("btree.Delete", errs.NotFound)
	}

	leafID, leaf := t.findLeaf(key)
	idx := leaf.LookupGE(key, t.cmp)
	if idx >= leaf.Size() || !bytes.Equal(leaf.KeyAt(idx), key) {
		t.bp.Unpin(leafID, false)
		return errs.New("btree.Delete", errs.NotFound)
	}

	firstKeyRemoved := idx == 0
	leaf.RemoveAt(idx)

	if leafID == t.root() {
		t.bp.Unpin(leafID, true)
		t.adjustRoot()
		return nil
	}

	if leaf.Size() >= leaf.MinSize() {
		if firstKeyRemoved && leaf.Size() > 0 {
			newKey := append([]byte(nil), leaf.KeyAt(0)...)
			parent := leaf.ParentPageID()
			t.bp.Unpin(leafID, true)
			t.refreshParentSeparator(parent, leafID, newKey)
			return nil
		}
		t.bp.Unpin(leafID, true)
		return nil
	}

	return t.coalesceOrRedistribute(leafID, leaf)
}

func (t *BPlusTree) refreshParentSeparator(parent page.ID, childID page.ID, newKey []byte) {
	if !parent.IsValid() {
		return
	}
	p := t.fetchNode(parent)
	pos := t.childIndex(p, childID)
	if pos > 0 {
		p.SetKeyAt(pos, newKey)
		t.bp.Unpin(parent, true)
	} else {
		t.bp.Unpin(parent, false)
	}
}

// coalesceOrRedistribute handles an underflowed node (leaf or
// internal) by borrowing from, or merging with, a sibling, preferring
// the left sibling when present.
func (t *BPlusTree) coalesceOrRedistribute(nodeID page.ID, node Node) error {
	parentID := node.ParentPageID()
	if !parentID.IsValid() {
		t.bp.Unpin(nodeID, true)
		t.adjustRoot()
		return nil
	}

	parent := t.fetchNode(parentID)
	pos := t.childIndex(parent, nodeID)

	var siblingID page.ID
	var sibling Node
	siblingIsLeft := pos > 0

	if siblingIsLeft {
		siblingID = parent.ChildAt(pos - 1)
	} else {
		siblingID = parent.ChildAt(pos + 1)
	}
	sibling = t.fetchNode(siblingID)

	if sibling.Size() > sibling.MinSize() {
		t.redistribute(node, sibling, siblingIsLeft, parent, pos)
		t.bp.Unpin(nodeID, true)
		t.bp.Unpin(siblingID, true)
		t.bp.Unpin(parentID, true)
		return nil
	}

	// Coalesce: always merge into the left-hand page of the pair.
	var leftID, rightID page.ID
	var left, right Node
	var sepPos uint16
	if siblingIsLeft {
		leftID, left = siblingID, sibling
		rightID, right = nodeID, node
		sepPos = pos
	} else {
		leftID, left = nodeID, node
		rightID, right = siblingID, sibling
		sepPos = pos + 1
	}

	kind := "leaf"
	if !left.IsLeaf() {
		kind = "internal"
		copy(right.KeyAt(0), parent.KeyAt(sepPos))
		for i := uint16(0); i < right.Size(); i++ {
			t.reparent(right.ChildAt(i), leftID)
		}
	}
	right.MoveAllTo(left)
	if left.IsLeaf() {
		left.SetNextPageID(right.NextPageID())
	}

	if t.metrics != nil {
		t.metrics.BtreeMergesTotal.WithLabelValues(kind).Inc()
	}

	parent.RemoveAt(sepPos)

	isRoot := parentID == t.root()

	t.bp.Unpin(leftID, true)
	t.bp.Unpin(rightID, false)
	if _, err := t.bp.Delete(rightID); err != nil {
		t.bp.Unpin(parentID, true)
		return err
	}

	if isRoot {
		t.bp.Unpin(parentID, true)
		t.adjustRoot()
		return nil
	}

	if parent.Size() < parent.MinSize() {
		return t.coalesceOrRedistribute(parentID, parent)
	}
	t.bp.Unpin(parentID, true)
	return nil
}

// redistribute borrows one entry across node and sibling, fixing up
// the separator key in parent.
func (t *BPlusTree) redistribute(node, sibling Node, siblingIsLeft bool, parent Node, pos uint16) {
	kind := "leaf"
	if !node.IsLeaf() {
		kind = "internal"
	}
	if t.metrics != nil {
		t.metrics.BtreeRedistributesTotal.WithLabelValues(kind).Inc()
	}

	if siblingIsLeft {
		movedChild := page.Invalid
		if !node.IsLeaf() {
			movedChild = sibling.ChildAt(sibling.Size() - 1)
		}
		sibling.MoveLastTo(node)
		if !node.IsLeaf() {
			node.SetKeyAt(1, parent.KeyAt(pos))
			parent.SetKeyAt(pos, node.KeyAt(0))
			node.SetKeyAt(0, make([]byte, t.keySize))
			t.reparent(movedChild, node.SelfPageID())
		} else {
			parent.SetKeyAt(pos, node.KeyAt(0))
		}
		return
	}

	movedChild := page.Invalid
	if !node.IsLeaf() {
		movedChild = sibling.ChildAt(0)
	}
	sibling.MoveFirstTo(node)
	if !node.IsLeaf() {
		last := node.Size() - 1
		node.SetKeyAt(last, parent.KeyAt(pos+1))
		parent.SetKeyAt(pos+1, sibling.KeyAt(0))
		t.reparent(movedChild, node.SelfPageID())
	} else {
		parent.SetKeyAt(pos+1, sibling.KeyAt(0))
	}
}

// adjustRoot promotes a sole remaining child to root, or publishes an
// invalid root if the root leaf is now empty.
func (t *BPlusTree) adjustRoot() {
	rootID := t.root()
	if !rootID.IsValid() {
		return
	}
	root := t.fetchNode(rootID)

	if root.IsLeaf() {
		if root.Size() == 0 {
			t.bp.Unpin(rootID, false)
			t.bp.Delete(rootID)
			t.setRoot(page.Invalid)
		} else {
			t.bp.Unpin(rootID, false)
		}
		return
	}

	if root.Size() == 1 {
		onlyChild := root.ChildAt(0)
		t.bp.Unpin(rootID, false)
		t.bp.Delete(rootID)
		t.reparent(onlyChild, page.Invalid)
		t.setRoot(onlyChild)
		return
	}
	t.bp.Unpin(rootID, false)
}

// Destroy recursively deallocates every internal and leaf page below
// the root, then sets the index's root entry in the roots page to
// Invalid.
func (t *BPlusTree) Destroy() error {
	rootID := t.root()
	if rootID.IsValid() {
		t.destroySubtree(rootID)
	}
	p := t.fetchRoots()
	rp := page.IndexRootsPage(p.Data())
	rp.Update(t.indexID, page.Invalid)
	t.bp.Unpin(disk.IndexRootsPageID, true)
	return nil
}

func (t *BPlusTree) destroySubtree(id page.ID) {
	node := t.fetchNode(id)
	if node == nil {
		return
	}
	if !node.IsLeaf() {
		size := node.Size()
		children := make([]page.ID, 0, size)
		for i := uint16(0); i < size; i++ {
			children = append(children, node.ChildAt(i))
		}
		t.bp.Unpin(id, false)
		for _, c := range children {
			t.destroySubtree(c)
		}
	} else {
		t.bp.Unpin(id, false)
	}
	t.bp.Delete(id)
}

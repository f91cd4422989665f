package bptree

import (
	"encoding/binary"
	"fmt"

	"storagecore/page"
)

// MaxKeys and MinKeys bound how many entries a node may carry. Unlike
// the teacher's variable-length-key node (MaxKeys fixed at 32
// regardless of how much of the page that leaves unused), this
// module's fixed KeyWidth lets the page be filled almost completely;
// see headerSize/leaf/internal arithmetic below.
const (
	MaxKeys = 200
	MinKeys = MaxKeys / 2

	headerSize  = 32
	valueWidth  = 12 // RecordID: int64 PageID + uint32 SlotIndex
	childWidth  = 8  // page.ID
)

func init() {
	leafBytes := headerSize + MaxKeys*KeyWidth + MaxKeys*valueWidth
	internalBytes := headerSize + MaxKeys*KeyWidth + (MaxKeys+1)*childWidth
	if leafBytes > page.Size || internalBytes > page.Size {
		panic("bptree: MaxKeys does not fit in page.Size")
	}
}

// Node is the in-memory, decoded form of one B+tree page. An internal
// node has len(children) == len(keys)+1 and nil values; a leaf node
// has len(values) == len(keys), nil children, and a next pointer to
// its right sibling for range scans. Grounded on the teacher's Node
// (struct.go) generalized to fixed-width Key/RecordID.
type Node struct {
	PageID   page.ID
	Leaf     bool
	Parent   page.ID
	Next     page.ID // leaf-only; page.InvalidID for internal nodes
	Keys     []Key
	Children []page.ID // internal-only
	Values   []RecordID // leaf-only
}

// newLeaf returns an empty leaf node bound to pageID.
func newLeaf(pageID page.ID) *Node {
	return &Node{PageID: pageID, Leaf: true, Parent: page.InvalidID, Next: page.InvalidID}
}

// newInternal returns an empty internal node bound to pageID.
func newInternal(pageID page.ID) *Node {
	return &Node{PageID: pageID, Leaf: false, Parent: page.InvalidID, Next: page.InvalidID}
}

// isSafeForInsert reports whether this node can absorb one more key
// without overflowing, per spec.md's safe-node predicate for INSERT.
func (n *Node) isSafeForInsert() bool { return len(n.Keys) < MaxKeys }

// isSafeForDelete reports whether this node can lose one more key
// without underflowing, per spec.md's safe-node predicate for DELETE.
// Remove applies it to the root only to decide whether the root-id
// latch can be released early; a root below MinKeys is not rebalanced.
func (n *Node) isSafeForDelete() bool { return len(n.Keys) > MinKeys }

// childFor returns the index of the child to descend into for key,
// for an internal node: the slot of the first key greater than key,
// or len(children)-1 if key is >= every separator. Binary search over
// Keys, grounded on b_plus_tree_internal_page.cpp's Lookup.
func (n *Node) childFor(key Key) int {
	lo, hi := 0, len(n.Keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if key.Compare(n.Keys[mid]) >= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo >= len(n.Children) {
		lo = len(n.Children) - 1
	}
	return lo
}

// findKey returns the index of key in a leaf's key slice, or -1.
func (n *Node) findKey(key Key) int {
	for i, k := range n.Keys {
		if k.Compare(key) == 0 {
			return i
		}
	}
	return -1
}

// insertAt returns the insertion point for key, assuming Keys is sorted.
func (n *Node) insertAt(key Key) int {
	i := 0
	for i < len(n.Keys) && n.Keys[i].Compare(key) < 0 {
		i++
	}
	return i
}

func encodeNode(n *Node, data *[page.Size]byte) error {
	if len(n.Keys) > MaxKeys {
		return fmt.Errorf("bptree: node %d has %d keys, exceeds MaxKeys %d", n.PageID, len(n.Keys), MaxKeys)
	}

	off := 0
	if n.Leaf {
		data[off] = 1
	} else {
		data[off] = 0
	}
	off++
	off++ // reserved
	binary.LittleEndian.PutUint16(data[off:], uint16(len(n.Keys)))
	off += 2
	binary.LittleEndian.PutUint64(data[off:], uint64(n.Parent))
	off += 8
	binary.LittleEndian.PutUint64(data[off:], uint64(n.Next))
	off += 8
	off += 12 // reserved

	for _, k := range n.Keys {
		copy(data[off:off+KeyWidth], k[:])
		off += KeyWidth
	}

	if n.Leaf {
		for _, v := range n.Values {
			binary.LittleEndian.PutUint64(data[off:], uint64(v.PageID))
			off += 8
			binary.LittleEndian.PutUint32(data[off:], v.SlotIndex)
			off += 4
		}
	} else {
		for _, c := range n.Children {
			binary.LittleEndian.PutUint64(data[off:], uint64(c))
			off += 8
		}
	}
	return nil
}

func decodeNode(pageID page.ID, data *[page.Size]byte) *Node {
	off := 0
	leaf := data[off] == 1
	off++
	off++ // reserved
	numKeys := int(binary.LittleEndian.Uint16(data[off:]))
	off += 2
	parent := page.ID(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	next := page.ID(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	off += 12 // reserved

	n := &Node{PageID: pageID, Leaf: leaf, Parent: parent, Next: next}
	n.Keys = make([]Key, numKeys)
	for i := 0; i < numKeys; i++ {
		copy(n.Keys[i][:], data[off:off+KeyWidth])
		off += KeyWidth
	}

	if leaf {
		n.Values = make([]RecordID, numKeys)
		for i := 0; i < numKeys; i++ {
			n.Values[i].PageID = int64(binary.LittleEndian.Uint64(data[off:]))
			off += 8
			n.Values[i].SlotIndex = binary.LittleEndian.Uint32(data[off:])
			off += 4
		}
	} else {
		n.Children = make([]page.ID, numKeys+1)
		for i := 0; i <= numKeys; i++ {
			n.Children[i] = page.ID(binary.LittleEndian.Uint64(data[off:]))
			off += 8
		}
	}
	return n
}

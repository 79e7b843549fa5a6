// Package mirror parses the engine's periodic node-tree snapshot: a
// bounded, fixed-size-record region of shared memory the engine writes
// and the client reads without a round-trip. The read path is the same
// shape as the teacher's loadDescriptor (plain struct decoded from a
// shared byte region, the engine is the sole writer) but fans the flat
// record array out into a parent/child tree instead of acting on a single
// descriptor.
package mirror

import "encoding/binary"

// MaxDefNameLen bounds the embedded synth-def name in a record.
const MaxDefNameLen = 32

// RecordSize is the fixed on-wire size of one node record.
const RecordSize = 4 + 4 + 4 + 4 + 4 + 4 + MaxDefNameLen // id, parentId, isGroup, prevId, nextId, headId, defName

// HeaderSize is the fixed size of the mirror region's leading header.
const HeaderSize = 4 + 4 + 4 // nodeCount, version, droppedCount

// Node is one decoded record, with Children threaded in by Parse.
type Node struct {
	ID       uint32
	ParentID uint32
	IsGroup  bool
	PrevID   uint32
	NextID   uint32
	HeadID   uint32
	DefName  string

	Children []*Node
}

// Tree is the reconstructed hierarchical view of one mirror snapshot.
type Tree struct {
	Version      uint32
	NodeCount    uint32
	DroppedCount uint32
	ByID         map[uint32]*Node
	Roots        []*Node
}

// Incomplete reports whether the engine had more live nodes than the
// mirror region could hold; the tree is still valid for whatever nodes it
// does contain.
func (t *Tree) Incomplete() bool { return t.DroppedCount > 0 }

func decodeRecord(b []byte) Node {
	isGroup := binary.LittleEndian.Uint32(b[8:12]) != 0
	nameEnd := 24 + MaxDefNameLen
	raw := b[24:nameEnd]
	end := len(raw)
	for i, c := range raw {
		if c == 0 {
			end = i
			break
		}
	}
	return Node{
		ID:       binary.LittleEndian.Uint32(b[0:4]),
		ParentID: binary.LittleEndian.Uint32(b[4:8]),
		IsGroup:  isGroup,
		PrevID:   binary.LittleEndian.Uint32(b[12:16]),
		NextID:   binary.LittleEndian.Uint32(b[16:20]),
		HeadID:   binary.LittleEndian.Uint32(b[20:24]),
		DefName:  string(raw[:end]),
	}
}

// Parse decodes a mirror region snapshot into a Tree. It is tolerant of a
// record whose parentId has no matching node (treated as a root), since a
// torn read mid-write by the engine can momentarily reference a node not
// yet present in this particular snapshot.
func Parse(region []byte) Tree {
	if len(region) < HeaderSize {
		return Tree{ByID: map[uint32]*Node{}}
	}

	nodeCount := binary.LittleEndian.Uint32(region[0:4])
	version := binary.LittleEndian.Uint32(region[4:8])
	dropped := binary.LittleEndian.Uint32(region[8:12])

	tree := Tree{
		Version:      version,
		NodeCount:    nodeCount,
		DroppedCount: dropped,
		ByID:         make(map[uint32]*Node, nodeCount),
	}

	available := (len(region) - HeaderSize) / RecordSize
	n := int(nodeCount)
	if n > available {
		n = available
	}

	nodes := make([]*Node, 0, n)
	for i := 0; i < n; i++ {
		off := HeaderSize + i*RecordSize
		rec := decodeRecord(region[off : off+RecordSize])
		node := rec
		nodes = append(nodes, &node)
		tree.ByID[node.ID] = &node
	}

	for _, node := range nodes {
		parent, ok := tree.ByID[node.ParentID]
		if !ok || parent == node {
			tree.Roots = append(tree.Roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	return tree
}

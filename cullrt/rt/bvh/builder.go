package bvh

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/gekko3d/occlusion/cullrt/rt/core"
)

// DefaultLeafThreshold is the largest instance count kept in a single leaf.
const DefaultLeafThreshold = 4

// Matches WGSL InstanceBVHNode
// struct InstanceBVHNode {
//    aabb_min : vec4<f32>; (16)
//    aabb_max : vec4<f32>; (16)
//    left : i32; (4)
//    right : i32; (4)
//    leaf_first : i32; (4)
//    leaf_count : i32; (4)
//    visible : u32; (4)
//    padding : u32[3]; (12)
// }; -> 64 bytes
const NodeSize = 64

// Node is one arena entry. Internal nodes have Left/Right >= 0 and an empty
// leaf range (First = -1); leaves have Left = Right = -1 and cover
// Tree.Indices[First : First+Count].
type Node struct {
	Bounds  core.AABB
	Left    int32
	Right   int32
	First   int32
	Count   int32
	Visible bool
}

func (n *Node) IsLeaf() bool {
	return n.Left < 0 && n.Right < 0
}

// Tree is a binary BVH over instance bounds. Nodes[0] is the root.
type Tree struct {
	Nodes         []Node
	Indices       []int32
	Bounds        []core.AABB // per-instance world bounds the tree was built over
	LeafThreshold int

	visible []bool // per instance, set by CullAgainstFrustum
}

func (t *Tree) Root() *Node {
	return &t.Nodes[0]
}

// Len returns the number of instances the tree was built over.
func (t *Tree) Len() int {
	return len(t.Indices)
}

type Builder struct {
	LeafThreshold int
}

// Build partitions the instance bounds by count median along the largest
// extent axis. The returned tree keeps its own copy of bounds.
func (b Builder) Build(bounds []core.AABB) *Tree {
	threshold := b.LeafThreshold
	if threshold < 1 {
		threshold = DefaultLeafThreshold
	}

	t := &Tree{
		Indices:       make([]int32, len(bounds)),
		Bounds:        append([]core.AABB(nil), bounds...),
		LeafThreshold: threshold,
	}
	for i := range t.Indices {
		t.Indices[i] = int32(i)
	}

	if len(bounds) == 0 {
		t.Nodes = []Node{{Bounds: core.EmptyAABB(), Left: -1, Right: -1, First: 0, Count: 0}}
		return t
	}

	// A count-median tree has at most 2n-1 nodes.
	t.Nodes = make([]Node, 0, 2*len(bounds)-1)
	t.recursiveBuild(0, len(bounds))
	return t
}

func (t *Tree) recursiveBuild(first, last int) int32 {
	idx := int32(len(t.Nodes))
	t.Nodes = append(t.Nodes, Node{Left: -1, Right: -1, First: -1})

	items := t.Indices[first:last]
	nodeBounds := core.EmptyAABB()
	for _, i := range items {
		nodeBounds = nodeBounds.Union(t.Bounds[i])
	}
	t.Nodes[idx].Bounds = nodeBounds

	if len(items) <= t.LeafThreshold {
		t.Nodes[idx].First = int32(first)
		t.Nodes[idx].Count = int32(len(items))
		return idx
	}

	axis := splitAxis(nodeBounds.Extent())
	sort.SliceStable(items, func(a, b int) bool {
		return t.Bounds[items[a]].Center()[axis] < t.Bounds[items[b]].Center()[axis]
	})

	mid := first + len(items)/2
	left := t.recursiveBuild(first, mid)
	right := t.recursiveBuild(mid, last)
	t.Nodes[idx].Left = left
	t.Nodes[idx].Right = right
	return idx
}

// splitAxis picks the axis with the largest extent; ties go to the lower axis.
func splitAxis(extent [3]float32) int {
	axis := 0
	if extent[1] > extent[axis] {
		axis = 1
	}
	if extent[2] > extent[axis] {
		axis = 2
	}
	return axis
}

// Bytes serializes the arena in the WGSL node layout.
func (t *Tree) Bytes() []byte {
	out := make([]byte, 0, len(t.Nodes)*NodeSize)
	for i := range t.Nodes {
		out = append(out, t.Nodes[i].bytes()...)
	}
	return out
}

func (n *Node) bytes() []byte {
	buf := make([]byte, NodeSize)

	minB, maxB := n.Bounds.Min, n.Bounds.Max
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(minB[i]))
		binary.LittleEndian.PutUint32(buf[16+i*4:], math.Float32bits(maxB[i]))
	}

	binary.LittleEndian.PutUint32(buf[32:36], uint32(n.Left))
	binary.LittleEndian.PutUint32(buf[36:40], uint32(n.Right))
	binary.LittleEndian.PutUint32(buf[40:44], uint32(n.First))
	binary.LittleEndian.PutUint32(buf[44:48], uint32(n.Count))
	if n.Visible {
		binary.LittleEndian.PutUint32(buf[48:52], 1)
	}
	return buf
}

package cull

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/occlusion/cullrt/rt/bvh"
	"github.com/gekko3d/occlusion/cullrt/rt/core"
	"github.com/gekko3d/occlusion/cullrt/rt/gpu"
)

// BVHStage is the CPU frustum variant: it builds a tree over the batch's
// world AABBs at Init and culls by traversal. Transforms are assumed static
// between Rebuild calls.
type BVHStage struct {
	LeafThreshold int

	env  *Env
	tree *bvh.Tree
}

func NewBVHStage(leafThreshold int) *BVHStage {
	return &BVHStage{LeafThreshold: leafThreshold}
}

func (s *BVHStage) Name() string    { return "bvh" }
func (s *BVHStage) Kind() StageKind { return KindVisibility }

func (s *BVHStage) Init(env *Env) error {
	if err := validateBatch(env); err != nil {
		return err
	}
	if s.LeafThreshold < 0 {
		return ErrInvalidConfig
	}
	s.env = env
	s.Rebuild()
	return nil
}

// Rebuild recomputes the tree from the batch's current transforms.
func (s *BVHStage) Rebuild() {
	batch := s.env.Batch
	bounds := make([]core.AABB, batch.Len())
	for i := range bounds {
		bounds[i] = batch.WorldBounds(uint32(i))
	}
	s.tree = bvh.Builder{LeafThreshold: s.LeafThreshold}.Build(bounds)
}

func (s *BVHStage) Tree() *bvh.Tree { return s.tree }

// Cull traverses the whole tree and keeps the visible instances that are
// also candidates.
func (s *BVHStage) Cull(ctx context.Context, f *Frame, candidates []uint32, out *gpu.AppendBuffer) error {
	if len(candidates) == 0 {
		return nil
	}
	n := s.env.Batch.Len()
	if s.tree.Len() != n {
		s.Rebuild()
	}
	s.tree.CullAgainstFrustum(core.ExtractFrustum(f.ViewProj()))

	if len(candidates) == n {
		for _, idx := range s.tree.CollectVisible() {
			if err := out.Append(uint32(idx)); err != nil {
				return err
			}
		}
		return nil
	}

	wanted := make([]bool, n)
	for _, idx := range candidates {
		wanted[idx] = true
	}
	for _, idx := range s.tree.CollectVisible() {
		if !wanted[idx] {
			continue
		}
		if err := out.Append(uint32(idx)); err != nil {
			return err
		}
	}
	return nil
}

// VisibleTransforms returns the transforms of the instances kept by the last
// traversal.
func (s *BVHStage) VisibleTransforms() []mgl32.Mat4 {
	return s.gather(s.tree.CollectVisible())
}

// InvisibleTransforms returns every transform VisibleTransforms does not.
func (s *BVHStage) InvisibleTransforms() []mgl32.Mat4 {
	return s.gather(s.tree.CollectInvisible())
}

func (s *BVHStage) gather(indices []int) []mgl32.Mat4 {
	out := make([]mgl32.Mat4, 0, len(indices))
	for _, i := range indices {
		out = append(out, s.env.Batch.Transforms[i])
	}
	return out
}

func (s *BVHStage) Release() {
	s.tree = nil
	s.env = nil
}

package cull

import "errors"

var (
	ErrNoMesh        = errors.New("cull: batch has no mesh bounds")
	ErrNoTransforms  = errors.New("cull: batch has no transform buffer")
	ErrNoDepthSource = errors.New("cull: occlusion stage needs a depth source")
	ErrInvalidConfig = errors.New("cull: invalid stage configuration")
	ErrStageOrder    = errors.New("cull: invalid stage order")
	ErrInvalidFrame  = errors.New("cull: invalid frame")
	ErrReleased      = errors.New("cull: pipeline released")
)

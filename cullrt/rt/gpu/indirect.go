package gpu

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Matches DrawIndexedIndirect arguments
// struct DrawIndexedIndirectArgs {
//    index_count : u32;    (4)
//    instance_count : u32; (4)
//    first_index : u32;    (4)
//    base_vertex : i32;    (4)
//    first_instance : u32; (4)
// }; -> 20 bytes
const IndirectArgsSize = 20

// InstanceCountOffset is the byte offset the append counter is copied to.
const InstanceCountOffset = 4

type IndirectArgs struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32
	FirstInstance uint32
}

func (a IndirectArgs) Bytes() []byte {
	buf := make([]byte, IndirectArgsSize)
	binary.LittleEndian.PutUint32(buf[0:4], a.IndexCount)
	binary.LittleEndian.PutUint32(buf[4:8], a.InstanceCount)
	binary.LittleEndian.PutUint32(buf[8:12], a.FirstIndex)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(a.BaseVertex))
	binary.LittleEndian.PutUint32(buf[16:20], a.FirstInstance)
	return buf
}

// CopyCount writes the append counter into InstanceCount, the CPU
// equivalent of copying the counter buffer into the indirect args buffer.
func (a *IndirectArgs) CopyCount(src *AppendBuffer) {
	a.InstanceCount = src.Count()
}

const MatrixSize = 64

// MatrixBuffer holds instance transforms in the column-major mat4x4<f32>
// layout shared with the kernels.
type MatrixBuffer struct {
	Matrices []mgl32.Mat4
}

func NewMatrixBuffer(matrices []mgl32.Mat4) *MatrixBuffer {
	return &MatrixBuffer{Matrices: matrices}
}

func (m *MatrixBuffer) Len() int { return len(m.Matrices) }

// Gather returns the matrices at the given indices, in index order. dst is
// reused when it has enough capacity.
func (m *MatrixBuffer) Gather(dst []mgl32.Mat4, indices []uint32) []mgl32.Mat4 {
	dst = dst[:0]
	for _, i := range indices {
		dst = append(dst, m.Matrices[i])
	}
	return dst
}

func (m *MatrixBuffer) Bytes() []byte {
	return MatricesBytes(m.Matrices)
}

// MatricesBytes packs matrices as consecutive column-major float32 arrays.
func MatricesBytes(ms []mgl32.Mat4) []byte {
	out := make([]byte, len(ms)*MatrixSize)
	for i, mat := range ms {
		for j, v := range mat {
			binary.LittleEndian.PutUint32(out[i*MatrixSize+j*4:], math.Float32bits(v))
		}
	}
	return out
}

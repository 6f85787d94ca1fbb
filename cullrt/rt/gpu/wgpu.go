package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/occlusion/cullrt/rt/shaders"
)

// WGPUAccelerator runs the culling kernels as WGSL compute shaders on a
// headless device. Every call blocks until the survivors are read back.
type WGPUAccelerator struct {
	mu sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	frustumPipeline *wgpu.ComputePipeline
	mipPipeline     *wgpu.ComputePipeline
	cullPipeline    *wgpu.ComputePipeline

	paramsBuf      *wgpu.Buffer
	transformsBuf  *wgpu.Buffer
	candidatesBuf  *wgpu.Buffer
	levelsBuf      *wgpu.Buffer
	outBuf         *wgpu.Buffer
	countBuf       *wgpu.Buffer
	outReadback    *wgpu.Buffer
	countReadback  *wgpu.Buffer
	levelsReadback *wgpu.Buffer

	// IndirectBuf receives the append counter at InstanceCountOffset after
	// every cull, ready for an indirect draw.
	IndirectBuf *wgpu.Buffer
}

func NewWGPUAccelerator() *WGPUAccelerator {
	return &WGPUAccelerator{}
}

func (a *WGPUAccelerator) Name() string { return "wgpu" }

func (a *WGPUAccelerator) CanAccelerate(op AcceleratedOp) bool {
	return op&(AccelFrustum|AccelMaxPyramid|AccelPyramidCull) != 0
}

func (a *WGPUAccelerator) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.instance = wgpu.CreateInstance(nil)

	adapter, err := a.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("gpu: request adapter: %w", err)
	}
	a.adapter = adapter

	a.device, err = adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("gpu: request device: %w", err)
	}
	a.queue = a.device.GetQueue()

	if a.frustumPipeline, err = a.createPipeline("Frustum Cull", shaders.FrustumCullWGSL); err != nil {
		return err
	}
	if a.mipPipeline, err = a.createPipeline("Max Mip", shaders.MaxMipWGSL); err != nil {
		return err
	}
	if a.cullPipeline, err = a.createPipeline("Pyramid Cull", shaders.PyramidCullWGSL); err != nil {
		return err
	}

	a.IndirectBuf, err = a.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Indirect Args",
		Size:  IndirectArgsSize,
		Usage: wgpu.BufferUsageIndirect | wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("gpu: create indirect args: %w", err)
	}
	return nil
}

func (a *WGPUAccelerator) createPipeline(label, code string) (*wgpu.ComputePipeline, error) {
	module, err := a.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label + " CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: compile %s: %w", label, err)
	}
	defer module.Release()

	p, err := a.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: label + " Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create %s pipeline: %w", label, err)
	}
	return p, nil
}

// SetIndirectArgs uploads the static part of the draw record. InstanceCount
// is overwritten by every cull.
func (a *WGPUAccelerator) SetIndirectArgs(args IndirectArgs) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.IndirectBuf == nil {
		return ErrFallbackToCPU
	}
	return a.queue.WriteBuffer(a.IndirectBuf, 0, args.Bytes())
}

func (a *WGPUAccelerator) FrustumCull(req FrustumRequest, out *AppendBuffer) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.device == nil {
		return ErrFallbackToCPU
	}
	n := len(req.Candidates)
	if n == 0 {
		return nil
	}

	if err := a.uploadInstances(req.Transforms, req.Candidates); err != nil {
		return err
	}
	if err := a.ensureBuffer("Frustum Params", &a.paramsBuf, frustumParamsBytes(req), wgpu.BufferUsageUniform); err != nil {
		return err
	}

	bg, err := a.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Frustum Cull BG",
		Layout: a.frustumPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: a.paramsBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: a.transformsBuf, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: a.candidatesBuf, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: a.outBuf, Size: wgpu.WholeSize},
			{Binding: 4, Buffer: a.countBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: frustum bind group: %w", err)
	}
	defer bg.Release()

	return a.runCull(a.frustumPipeline, bg, n, out)
}

func (a *WGPUAccelerator) PyramidCull(req PyramidCullRequest, out *AppendBuffer) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.device == nil {
		return ErrFallbackToCPU
	}
	n := len(req.Candidates)
	if n == 0 {
		return nil
	}
	if len(req.Levels) == 0 {
		return ErrFallbackToCPU
	}

	if err := a.uploadInstances(req.Transforms, req.Candidates); err != nil {
		return err
	}
	if err := a.ensureBuffer("Pyramid Levels", &a.levelsBuf, levelsBytes(req.Levels), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc); err != nil {
		return err
	}
	if err := a.ensureBuffer("Pyramid Cull Params", &a.paramsBuf, pyramidParamsBytes(req), wgpu.BufferUsageUniform); err != nil {
		return err
	}

	bg, err := a.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Pyramid Cull BG",
		Layout: a.cullPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: a.paramsBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: a.transformsBuf, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: a.candidatesBuf, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: a.levelsBuf, Size: wgpu.WholeSize},
			{Binding: 4, Buffer: a.outBuf, Size: wgpu.WholeSize},
			{Binding: 5, Buffer: a.countBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fmt.Errorf("gpu: pyramid cull bind group: %w", err)
	}
	defer bg.Release()

	return a.runCull(a.cullPipeline, bg, n, out)
}

// BuildMaxPyramid dispatches one pass per level, then reads the chain back.
func (a *WGPUAccelerator) BuildMaxPyramid(levels [][]float32, size int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.device == nil {
		return ErrFallbackToCPU
	}
	if len(levels) < 2 {
		return nil
	}

	data := levelsBytes(levels)
	if err := a.ensureBuffer("Pyramid Levels", &a.levelsBuf, data, wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc); err != nil {
		return err
	}
	if err := a.ensureBuffer("Pyramid Readback", &a.levelsReadback, make([]byte, len(data)), wgpu.BufferUsageMapRead); err != nil {
		return err
	}

	encoder, err := a.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("gpu: create encoder: %w", err)
	}

	var release []func()
	defer func() {
		for _, r := range release {
			r()
		}
	}()

	offset := uint32(0)
	srcSize := uint32(size)
	for k := 0; k < len(levels)-1; k++ {
		dstSize := srcSize >> 1
		params := make([]byte, 16)
		binary.LittleEndian.PutUint32(params[0:], offset)
		binary.LittleEndian.PutUint32(params[4:], offset+srcSize*srcSize)
		binary.LittleEndian.PutUint32(params[8:], srcSize)
		binary.LittleEndian.PutUint32(params[12:], dstSize)

		var ub *wgpu.Buffer
		if err := a.ensureBuffer(fmt.Sprintf("Max Mip %d Params", k+1), &ub, params, wgpu.BufferUsageUniform); err != nil {
			return err
		}
		release = append(release, ub.Release)

		bg, err := a.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  fmt.Sprintf("Max Mip %d BG", k+1),
			Layout: a.mipPipeline.GetBindGroupLayout(0),
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: ub, Size: wgpu.WholeSize},
				{Binding: 1, Buffer: a.levelsBuf, Size: wgpu.WholeSize},
			},
		})
		if err != nil {
			return fmt.Errorf("gpu: max mip bind group: %w", err)
		}
		release = append(release, bg.Release)

		pass := encoder.BeginComputePass(nil)
		pass.SetPipeline(a.mipPipeline)
		pass.SetBindGroup(0, bg, nil)
		pass.DispatchWorkgroups((dstSize+7)/8, (dstSize+7)/8, 1)
		if err := pass.End(); err != nil {
			return fmt.Errorf("gpu: max mip pass: %w", err)
		}

		offset += srcSize * srcSize
		srcSize = dstSize
	}

	encoder.CopyBufferToBuffer(a.levelsBuf, 0, a.levelsReadback, 0, uint64(len(data)))
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("gpu: finish encoder: %w", err)
	}
	a.queue.Submit(cmd)

	raw, err := a.readback(a.levelsReadback, uint64(len(data)))
	if err != nil {
		return err
	}
	pos := 0
	for _, level := range levels {
		for i := range level {
			level[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[pos:]))
			pos += 4
		}
	}
	return nil
}

// uploadInstances writes transforms and candidates and sizes the output
// buffers. Rewriting the counter resets it.
func (a *WGPUAccelerator) uploadInstances(transforms []mgl32.Mat4, candidates []uint32) error {
	if err := a.ensureBuffer("Instance Transforms", &a.transformsBuf, MatricesBytes(transforms), wgpu.BufferUsageStorage); err != nil {
		return err
	}

	cand := make([]byte, 4*len(candidates))
	for i, c := range candidates {
		binary.LittleEndian.PutUint32(cand[i*4:], c)
	}
	if err := a.ensureBuffer("Cull Candidates", &a.candidatesBuf, cand, wgpu.BufferUsageStorage); err != nil {
		return err
	}
	if err := a.ensureBuffer("Cull Output", &a.outBuf, make([]byte, len(cand)), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc); err != nil {
		return err
	}
	if err := a.ensureBuffer("Cull Output Readback", &a.outReadback, make([]byte, len(cand)), wgpu.BufferUsageMapRead); err != nil {
		return err
	}
	if err := a.ensureBuffer("Cull Counter", &a.countBuf, make([]byte, 4), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc); err != nil {
		return err
	}
	return a.ensureBuffer("Cull Counter Readback", &a.countReadback, nil, wgpu.BufferUsageMapRead)
}

func (a *WGPUAccelerator) runCull(pipeline *wgpu.ComputePipeline, bg *wgpu.BindGroup, n int, out *AppendBuffer) error {
	encoder, err := a.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("gpu: create encoder: %w", err)
	}

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(uint32(Workgroups1D(n)), 1, 1)
	if err := pass.End(); err != nil {
		return fmt.Errorf("gpu: cull pass: %w", err)
	}

	encoder.CopyBufferToBuffer(a.countBuf, 0, a.IndirectBuf, InstanceCountOffset, 4)
	encoder.CopyBufferToBuffer(a.countBuf, 0, a.countReadback, 0, 4)
	encoder.CopyBufferToBuffer(a.outBuf, 0, a.outReadback, 0, uint64(4*n))

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("gpu: finish encoder: %w", err)
	}
	a.queue.Submit(cmd)

	raw, err := a.readback(a.countReadback, 4)
	if err != nil {
		return err
	}
	count := int(binary.LittleEndian.Uint32(raw))
	if count == 0 {
		return nil
	}
	if count > n {
		return fmt.Errorf("gpu: counter %d exceeds %d candidates", count, n)
	}

	raw, err = a.readback(a.outReadback, uint64(4*count))
	if err != nil {
		return err
	}
	survivors := make([]uint32, count)
	for i := range survivors {
		survivors[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return out.AppendAll(survivors)
}

func (a *WGPUAccelerator) ensureBuffer(name string, buf **wgpu.Buffer, data []byte, usage wgpu.BufferUsage) error {
	neededSize := uint64(len(data))
	if neededSize < 4 {
		neededSize = 4
	}
	if neededSize%4 != 0 {
		neededSize += 4 - (neededSize % 4)
	}

	usage |= wgpu.BufferUsageCopyDst

	current := *buf
	if current == nil || current.GetSize() < neededSize {
		if current != nil {
			current.Release()
		}
		newBuf, err := a.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: name,
			Size:  neededSize,
			Usage: usage,
		})
		if err != nil {
			return fmt.Errorf("gpu: create %s: %w", name, err)
		}
		*buf = newBuf
	}

	if len(data) > 0 && usage&wgpu.BufferUsageMapRead == 0 {
		if err := a.queue.WriteBuffer(*buf, 0, data); err != nil {
			return fmt.Errorf("gpu: write %s: %w", name, err)
		}
	}
	return nil
}

// readback maps buf and copies out the first size bytes, polling the
// device until the map completes.
func (a *WGPUAccelerator) readback(buf *wgpu.Buffer, size uint64) ([]byte, error) {
	done := make(chan wgpu.BufferMapAsyncStatus, 1)
	buf.MapAsync(wgpu.MapModeRead, 0, size, func(status wgpu.BufferMapAsyncStatus) {
		done <- status
	})

	for {
		a.device.Poll(true, nil)
		select {
		case status := <-done:
			if status != wgpu.BufferMapAsyncStatusSuccess {
				return nil, fmt.Errorf("gpu: map readback failed with status %v", status)
			}
			out := append([]byte(nil), buf.GetMappedRange(0, uint(size))...)
			buf.Unmap()
			return out, nil
		default:
		}
	}
}

func (a *WGPUAccelerator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, b := range []**wgpu.Buffer{
		&a.paramsBuf, &a.transformsBuf, &a.candidatesBuf, &a.levelsBuf,
		&a.outBuf, &a.countBuf, &a.outReadback, &a.countReadback,
		&a.levelsReadback, &a.IndirectBuf,
	} {
		if *b != nil {
			(*b).Release()
			*b = nil
		}
	}
	for _, p := range []**wgpu.ComputePipeline{&a.frustumPipeline, &a.mipPipeline, &a.cullPipeline} {
		if *p != nil {
			(*p).Release()
			*p = nil
		}
	}
	a.queue = nil
	if a.device != nil {
		a.device.Release()
		a.device = nil
	}
	if a.adapter != nil {
		a.adapter.Release()
		a.adapter = nil
	}
	if a.instance != nil {
		a.instance.Release()
		a.instance = nil
	}
}

func putVec4(buf []byte, off int, v mgl32.Vec4) {
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(buf[off+i*4:], math.Float32bits(v[i]))
	}
}

// Matches WGSL FrustumParams (144 bytes).
func frustumParamsBytes(req FrustumRequest) []byte {
	buf := make([]byte, 144)
	for i, p := range req.Planes {
		putVec4(buf, i*16, p)
	}
	putVec4(buf, 96, req.Local.Min.Vec4(0))
	putVec4(buf, 112, req.Local.Max.Vec4(0))
	binary.LittleEndian.PutUint32(buf[128:], uint32(len(req.Candidates)))
	return buf
}

// Matches WGSL CullParams (128 bytes).
func pyramidParamsBytes(req PyramidCullRequest) []byte {
	buf := make([]byte, 128)
	for i, v := range req.ViewProj {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	putVec4(buf, 64, req.Local.Min.Vec4(0))
	putVec4(buf, 80, req.Local.Max.Vec4(0))
	binary.LittleEndian.PutUint32(buf[96:], uint32(len(req.Candidates)))
	binary.LittleEndian.PutUint32(buf[100:], uint32(req.Width))
	binary.LittleEndian.PutUint32(buf[104:], uint32(req.Height))
	binary.LittleEndian.PutUint32(buf[108:], uint32(req.PyramidSize))
	binary.LittleEndian.PutUint32(buf[112:], uint32(len(req.Levels)))
	return buf
}

func levelsBytes(levels [][]float32) []byte {
	total := 0
	for _, l := range levels {
		total += len(l)
	}
	out := make([]byte, 0, total*4)
	for _, l := range levels {
		for _, v := range l {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
	}
	return out
}

var _ Accelerator = (*WGPUAccelerator)(nil)

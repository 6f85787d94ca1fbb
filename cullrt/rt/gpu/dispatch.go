package gpu

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

const (
	WorkgroupSize1D = 64
	WorkgroupSize2D = 8
)

var ErrEmptyDispatch = errors.New("gpu: dispatch with zero workgroups")

// Workgroups1D returns the number of 64-wide workgroups covering n items.
func Workgroups1D(n int) int {
	return (n + WorkgroupSize1D - 1) / WorkgroupSize1D
}

// Workgroups2D returns the 8x8 workgroup grid covering a w*h image.
func Workgroups2D(w, h int) (int, int) {
	return (w + WorkgroupSize2D - 1) / WorkgroupSize2D, (h + WorkgroupSize2D - 1) / WorkgroupSize2D
}

// Dispatcher runs compute kernels on the CPU. Workgroups of one dispatch
// execute in parallel; Dispatch returns only after every invocation has
// finished, so consecutive dispatches are ordered like a single GPU queue.
// A Dispatcher must be driven from one goroutine.
type Dispatcher struct {
	workers int
}

// NewDispatcher creates a dispatcher with the given parallelism.
// workers <= 0 uses GOMAXPROCS.
func NewDispatcher(workers int) *Dispatcher {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Dispatcher{workers: workers}
}

func (d *Dispatcher) Workers() int {
	return d.workers
}

// Dispatch1D invokes kernel(i) for every i in [0, n).
func (d *Dispatcher) Dispatch1D(n int, kernel func(i int)) error {
	groups := Workgroups1D(n)
	if groups == 0 {
		return ErrEmptyDispatch
	}
	d.run(groups, func(g int) {
		end := min((g+1)*WorkgroupSize1D, n)
		for i := g * WorkgroupSize1D; i < end; i++ {
			kernel(i)
		}
	})
	return nil
}

// Dispatch2D invokes kernel(x, y) for every pixel of a w*h grid.
func (d *Dispatcher) Dispatch2D(w, h int, kernel func(x, y int)) error {
	if w <= 0 || h <= 0 {
		return ErrEmptyDispatch
	}
	gx, gy := Workgroups2D(w, h)
	d.run(gx*gy, func(g int) {
		x0 := (g % gx) * WorkgroupSize2D
		y0 := (g / gx) * WorkgroupSize2D
		x1 := min(x0+WorkgroupSize2D, w)
		y1 := min(y0+WorkgroupSize2D, h)
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				kernel(x, y)
			}
		}
	})
	return nil
}

func (d *Dispatcher) run(groups int, group func(g int)) {
	workers := min(d.workers, groups)
	if workers <= 1 {
		for g := 0; g < groups; g++ {
			group(g)
		}
		return
	}

	var next atomic.Int64
	claim := func() int {
		return int(next.Add(1) - 1)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for g := claim(); g < groups; g = claim() {
				group(g)
			}
		}()
	}
	wg.Wait()
}

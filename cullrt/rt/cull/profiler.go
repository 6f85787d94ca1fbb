package cull

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// StageStats records one stage's work on one frame.
type StageStats struct {
	Stage       string
	In          int
	Out         int
	Duration    time.Duration
	PassThrough bool
}

func (s StageStats) Culled() int { return s.In - s.Out }

func (s StageStats) String() string {
	pt := ""
	if s.PassThrough {
		pt = " (pass-through)"
	}
	return fmt.Sprintf("%s: %d -> %d, culled %d in %.3f ms%s",
		s.Stage, s.In, s.Out, s.Culled(), float64(s.Duration.Microseconds())/1000.0, pt)
}

// Profiler accumulates stage timings and counters across frames.
type Profiler struct {
	Scopes     map[string]time.Duration
	StartTimes map[string]time.Time
	Counts     map[string]int
	Frames     int
	Order      []string
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes:     make(map[string]time.Duration),
		StartTimes: make(map[string]time.Time),
		Counts:     make(map[string]int),
	}
}

func (p *Profiler) BeginScope(name string) {
	p.StartTimes[name] = time.Now()
	p.track(name)
}

func (p *Profiler) EndScope(name string) {
	if start, ok := p.StartTimes[name]; ok {
		p.Scopes[name] += time.Since(start)
	}
}

func (p *Profiler) AddCount(name string, n int) {
	p.Counts[name] += n
}

// Record folds one frame's stage stats in.
func (p *Profiler) Record(stats []StageStats) {
	p.Frames++
	for _, s := range stats {
		p.track(s.Stage)
		p.Scopes[s.Stage] += s.Duration
		p.Counts[s.Stage+".in"] += s.In
		p.Counts[s.Stage+".out"] += s.Out
		if s.PassThrough {
			p.Counts[s.Stage+".pass_through"]++
		}
	}
}

func (p *Profiler) track(name string) {
	for _, n := range p.Order {
		if n == name {
			return
		}
	}
	p.Order = append(p.Order, name)
}

// Average returns the mean duration of a scope per recorded frame.
func (p *Profiler) Average(name string) time.Duration {
	if p.Frames == 0 {
		return 0
	}
	return p.Scopes[name] / time.Duration(p.Frames)
}

func (p *Profiler) Reset() {
	// Keep Order, reset times and counters
	for k := range p.Scopes {
		p.Scopes[k] = 0
	}
	for k := range p.Counts {
		p.Counts[k] = 0
	}
	p.Frames = 0
}

func (p *Profiler) GetStatsString() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Timings over %d frames (CPU):\n", p.Frames))
	for _, name := range p.Order {
		ms := float64(p.Scopes[name].Microseconds()) / 1000.0
		sb.WriteString(fmt.Sprintf("  %-15s: %.2f ms\n", name, ms))
	}

	sb.WriteString("\nStats:\n")
	keys := make([]string, 0, len(p.Counts))
	for k := range p.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %-15s: %d\n", k, p.Counts[k]))
	}

	return sb.String()
}

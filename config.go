package occlusion

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gekko3d/occlusion/cullrt/rt/bvh"
	"github.com/gekko3d/occlusion/cullrt/rt/cull"
	"github.com/gekko3d/occlusion/cullrt/rt/depth"
)

// Method selects the stages of a pipeline.
type Method string

const (
	MethodFrustum Method = "frustum" // frustum stage only
	MethodBVH     Method = "bvh"     // BVH traversal only
	MethodHiZ     Method = "hiz"     // frustum, then Hi-Z
	MethodIDW     Method = "idw"     // frustum, then depth warping
)

func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MethodFrustum, MethodBVH, MethodHiZ, MethodIDW:
		return m, nil
	}
	return "", &ConfigError{Field: "method", Reason: fmt.Sprintf("unknown method %q", s)}
}

type BVHConfig struct {
	LeafThreshold int `yaml:"leaf_threshold"`
}

type HiZConfig struct {
	SkipFrames int `yaml:"skip_frames"`
}

type IDWConfig struct {
	SkipFrames    int     `yaml:"skip_frames"`
	SeedNum       int     `yaml:"seed_num"`
	MaxBoundIter  int     `yaml:"max_bound_iter"`
	MaxSearchIter int     `yaml:"max_search_iter"`
	Threshold     float32 `yaml:"threshold"`
}

type DiagnosticsConfig struct {
	PrintCullingInfo bool   `yaml:"print_culling_info"`
	SaveDepth        bool   `yaml:"save_depth"`
	DumpDir          string `yaml:"dump_dir"`
	TIFFPreview      bool   `yaml:"tiff_preview"`
}

// Config holds the culling settings of a pipeline.
type Config struct {
	Method  Method `yaml:"method"`
	Enabled bool   `yaml:"enabled"`
	// Workers is the dispatcher goroutine count. 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`

	BVH         BVHConfig         `yaml:"bvh"`
	HiZ         HiZConfig         `yaml:"hiz"`
	IDW         IDWConfig         `yaml:"idw"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

func DefaultConfig() Config {
	warp := depth.DefaultWarpParams()
	return Config{
		Method:  MethodHiZ,
		Enabled: true,
		BVH:     BVHConfig{LeafThreshold: bvh.DefaultLeafThreshold},
		HiZ:     HiZConfig{SkipFrames: 1},
		IDW: IDWConfig{
			SkipFrames:    1,
			SeedNum:       warp.SeedNum,
			MaxBoundIter:  warp.MaxBoundIter,
			MaxSearchIter: warp.MaxSearchIter,
			Threshold:     warp.Threshold,
		},
		Diagnostics: DiagnosticsConfig{DumpDir: "depth_dumps"},
	}
}

// LoadConfig reads a YAML file over DefaultConfig, so missing keys keep
// their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("occlusion: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("occlusion: parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every field and normalizes Method to its canonical
// lowercase form.
func (c *Config) Validate() error {
	m, err := ParseMethod(string(c.Method))
	if err != nil {
		return err
	}
	c.Method = m
	if c.Workers < 0 {
		return &ConfigError{Field: "workers", Reason: "must not be negative"}
	}
	if c.BVH.LeafThreshold < 0 {
		return &ConfigError{Field: "bvh.leaf_threshold", Reason: "must not be negative"}
	}
	if c.HiZ.SkipFrames < 0 {
		return &ConfigError{Field: "hiz.skip_frames", Reason: "must not be negative"}
	}
	if c.IDW.SkipFrames < 0 {
		return &ConfigError{Field: "idw.skip_frames", Reason: "must not be negative"}
	}
	if err := c.warpParams().Validate(); err != nil {
		return &ConfigError{Field: "idw", Reason: err.Error()}
	}
	return nil
}

func (c *Config) warpParams() depth.WarpParams {
	return depth.WarpParams{
		SeedNum:       c.IDW.SeedNum,
		MaxBoundIter:  c.IDW.MaxBoundIter,
		MaxSearchIter: c.IDW.MaxSearchIter,
		Threshold:     c.IDW.Threshold,
	}
}

// stages returns fresh stages for the configured method.
func (c *Config) stages() []cull.Stage {
	switch c.Method {
	case MethodBVH:
		return []cull.Stage{cull.NewBVHStage(c.BVH.LeafThreshold)}
	case MethodHiZ:
		return []cull.Stage{cull.NewFrustumStage(), cull.NewHiZStage(c.HiZ.SkipFrames)}
	case MethodIDW:
		return []cull.Stage{cull.NewFrustumStage(), cull.NewIDWStage(cull.IDWConfig{
			SkipFrames: c.IDW.SkipFrames,
			WarpParams: c.warpParams(),
		})}
	}
	return []cull.Stage{cull.NewFrustumStage()}
}

func (c *Config) options() cull.Options {
	d := c.Diagnostics
	return cull.Options{
		Enabled: c.Enabled,
		Diagnostics: cull.Diagnostics{
			PrintCullingInfo: d.PrintCullingInfo,
			SaveDepth:        d.SaveDepth,
			DumpDir:          d.DumpDir,
			TIFFPreview:      d.TIFFPreview,
		},
	}
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "occlusion: invalid config." + e.Field + ": " + e.Reason
}

func (e *ConfigError) Unwrap() error { return cull.ErrInvalidConfig }

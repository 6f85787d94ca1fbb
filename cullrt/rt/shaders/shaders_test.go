package shaders

import (
	"strings"
	"testing"

	"github.com/gogpu/naga"
)

// Known gaps of the pure-Go WGSL frontend; hitting one is not a shader bug.
var nagaLimitations = []string{
	"not yet implemented",
	"not supported",
	"unsupported",
	"lowering error",
	"atomic",
}

func TestKernelsCompile(t *testing.T) {
	for name, src := range Sources() {
		t.Run(name, func(t *testing.T) {
			if strings.TrimSpace(src) == "" {
				t.Fatalf("%s is empty", name)
			}

			spirv, err := naga.Compile(src)
			if err != nil {
				msg := err.Error()
				for _, l := range nagaLimitations {
					if strings.Contains(msg, l) {
						t.Skipf("Skipping: naga limitation: %v", err)
					}
				}
				t.Fatalf("failed to compile %s: %v", name, err)
			}

			if len(spirv) < 4 {
				t.Fatal("SPIR-V too short")
			}
			magic := uint32(spirv[0]) | uint32(spirv[1])<<8 | uint32(spirv[2])<<16 | uint32(spirv[3])<<24
			if magic != 0x07230203 {
				t.Errorf("invalid SPIR-V magic: 0x%08X, want 0x07230203", magic)
			}
		})
	}
}

func TestKernelEntryPoints(t *testing.T) {
	for name, src := range Sources() {
		if !strings.Contains(src, "@compute") || !strings.Contains(src, "fn main(") {
			t.Errorf("%s does not declare a compute entry point named main", name)
		}
	}
}

package shaders

import (
	_ "embed"
)

//go:embed frustum_cull.wgsl
var FrustumCullWGSL string

//go:embed max_mip.wgsl
var MaxMipWGSL string

//go:embed pyramid_cull.wgsl
var PyramidCullWGSL string

// Sources lists every kernel by file name.
func Sources() map[string]string {
	return map[string]string{
		"frustum_cull.wgsl": FrustumCullWGSL,
		"max_mip.wgsl":      MaxMipWGSL,
		"pyramid_cull.wgsl": PyramidCullWGSL,
	}
}

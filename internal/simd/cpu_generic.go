//go:build (!amd64 && !arm64) || nosimd

package simd

import "github.com/viterin/vek/vek32"

func runtimeInfo() RuntimeInfo {
	return RuntimeInfo{
		Implementation: ImplGeneric,
		Features:       vek32.Info().CPUFeatures,
		Accelerated:    false,
	}
}

package parallel

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// Info describes the parallel processing environment.
type Info struct {
	LogicalCores int
	GOMAXPROCS   int
	MaxWorkers   int
	Features     []string // SIMD extensions reported by the CPU.
}

// GetInfo collects information about the current machine.
func GetInfo() Info {
	return Info{
		LogicalCores: runtime.NumCPU(),
		GOMAXPROCS:   runtime.GOMAXPROCS(0),
		MaxWorkers:   MaxWorkers(),
		Features:     cpuFeatures(),
	}
}

func cpuFeatures() []string {
	var features []string
	add := func(ok bool, name string) {
		if ok {
			features = append(features, name)
		}
	}

	add(cpu.X86.HasSSE41 || cpu.X86.HasSSE42, "SSE4")
	add(cpu.X86.HasAVX, "AVX")
	add(cpu.X86.HasAVX2, "AVX2")
	add(cpu.X86.HasFMA, "FMA")
	add(cpu.X86.HasAVX512F, "AVX512F")
	add(cpu.ARM64.HasASIMD, "NEON")
	add(cpu.ARM64.HasSVE, "SVE")
	return features
}

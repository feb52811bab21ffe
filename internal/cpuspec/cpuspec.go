// Package cpuspec picks interpreter thread counts from the host CPU.
package cpuspec

import (
	"regexp"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// MaxInferenceThreads caps the thread count for the gesture model.
const MaxInferenceThreads = 4

// CPUSpec describes the host processor.
type CPUSpec struct {
	BrandName        string
	LogicalCores     int
	PerformanceCores int // 0 when unknown or not a hybrid design
}

var (
	intelHybrid = regexp.MustCompile(`core.*i[3579]-(1[234])(\d)00`)
	appleChip   = regexp.MustCompile(`apple\s+(m[1-4])\s*(pro|max|ultra)?`)
)

// P-core counts keyed by "<gen><tier>" for Intel 12th-14th gen.
var intelPCores = map[string]int{
	"129": 8, "127": 8, "126": 6, "125": 6, "124": 6, "121": 4,
	"139": 8, "137": 8, "136": 6, "135": 6, "134": 6, "131": 4,
	"149": 8, "147": 8, "146": 6, "144": 6, "141": 4,
}

// P-core counts per Apple chip, base/pro/max/ultra.
var applePCores = map[string][4]int{
	"m1": {4, 8, 8, 16},
	"m2": {4, 8, 12, 24},
	"m3": {4, 8, 12, 24},
	"m4": {6, 8, 12, 24},
}

// Get returns the host CPU description.
func Get() CPUSpec {
	return newSpec(cpuid.CPU.BrandName, cpuid.CPU.LogicalCores)
}

func newSpec(brand string, logical int) CPUSpec {
	return CPUSpec{
		BrandName:        brand,
		LogicalCores:     logical,
		PerformanceCores: performanceCores(brand),
	}
}

func performanceCores(brand string) int {
	brand = strings.ToLower(brand)

	if m := intelHybrid.FindStringSubmatch(brand); m != nil {
		return intelPCores[m[1]+m[2]]
	}

	if m := appleChip.FindStringSubmatch(brand); m != nil {
		tier := 0
		switch m[2] {
		case "pro":
			tier = 1
		case "max":
			tier = 2
		case "ultra":
			tier = 3
		}
		return applePCores[m[1]][tier]
	}
	return 0
}

// ThreadCount resolves the configured interpreter thread count. Zero means
// pick from the CPU: performance cores on hybrid designs, otherwise all
// logical cores, capped at MaxInferenceThreads. Explicit values are capped
// at the available CPUs.
func (c CPUSpec) ThreadCount(configured int) int {
	available := runtime.NumCPU()
	if configured > 0 {
		return min(configured, available)
	}

	threads := c.LogicalCores
	if c.PerformanceCores > 0 {
		threads = c.PerformanceCores
	}
	if threads <= 0 {
		threads = available
	}
	return max(1, min(threads, available, MaxInferenceThreads))
}

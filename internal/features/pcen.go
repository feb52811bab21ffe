package features

import (
	"math"
)

// PCEN applies per-channel energy normalization in place to rows[mel][time].
// The smoother starts in steady state, M[0] = S[0].
func PCEN(rows [][]float64, sampleRate, hopLength int, timeConstant, gain, bias, power, eps float64) {
	t := timeConstant * float64(sampleRate) / float64(hopLength)
	b := (math.Sqrt(1+4*t*t) - 1) / (2 * t * t)
	scale := math.Pow(bias, power)

	for _, row := range rows {
		var m float64
		for i, s := range row {
			if i == 0 {
				m = s
			} else {
				m = (1-b)*m + b*s
			}
			smooth := math.Pow(eps+m, -gain)
			row[i] = scale * math.Expm1(power*math.Log1p(s*smooth/bias))
		}
	}
}

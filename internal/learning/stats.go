package learning

import (
	"hash/fnv"
	"math"
)

const (
	// z quantile for 80% power
	zPower80 = 0.841621

	defaultBaselineRate = 0.5
)

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the population standard deviation
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(values)))
}

// slope is the least-squares slope of values against their index
func slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sx, sy, sxy, sxx float64
	for i, v := range values {
		x := float64(i)
		sx += x
		sy += v
		sxy += x * v
		sxx += x * x
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / den
}

// TwoProportionZTest compares conversion rates x1/n1 (control) and x2/n2
// (treatment) with a pooled standard error. It returns the z statistic and
// the two-sided p-value.
func TwoProportionZTest(x1, n1, x2, n2 int) (z, p float64) {
	if n1 == 0 || n2 == 0 {
		return 0, 1
	}
	p1 := float64(x1) / float64(n1)
	p2 := float64(x2) / float64(n2)
	pooled := float64(x1+x2) / float64(n1+n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(n1) + 1/float64(n2)))
	if se == 0 {
		return 0, 1
	}
	z = (p2 - p1) / se
	return z, math.Erfc(math.Abs(z) / math.Sqrt2)
}

// RequiredSampleSize is the per-variant sample size needed to detect an
// absolute lift of mde over baseline with a two-sided test at confidence
// and 80% power
func RequiredSampleSize(baseline, mde, confidence float64) int {
	if mde <= 0 || confidence <= 0 || confidence >= 1 {
		return 0
	}
	zAlpha := math.Sqrt2 * math.Erfinv(confidence)
	p1 := baseline
	p2 := math.Min(baseline+mde, 0.999)
	pBar := (p1 + p2) / 2
	num := zAlpha*math.Sqrt(2*pBar*(1-pBar)) + zPower80*math.Sqrt(p1*(1-p1)+p2*(1-p2))
	return int(math.Ceil(num * num / ((p2 - p1) * (p2 - p1))))
}

// bucket maps key onto [0,100) deterministically: FNV-1a followed by the
// murmur3 64-bit finalizer
func bucket(key string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return float64(fmix64(h.Sum64())>>11) / (1 << 53) * 100
}

func fmix64(k uint64) uint64 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	k *= 0xc4ceb9fe1a85ec53
	k ^= k >> 33
	return k
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

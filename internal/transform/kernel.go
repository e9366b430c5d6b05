package transform

// Kernel is a 3x3 convolution kernel in row-major order.
type Kernel [9]float64

// Identity is the no-op convolution kernel.
var Identity = Kernel{0, 0, 0, 0, 1, 0, 0, 0, 0}

// Target kernels at full intensity. Every filter in this family is a linear
// interpolation from Identity toward its target; because both endpoints sum
// to 1, every blended kernel is brightness preserving.
var (
	sharpenTarget = Kernel{0, -15, 0, -15, 61, -15, 0, -15, 0}
	embossTarget  = Kernel{-6, -3, 0, -3, 1, 3, 0, 3, 6}
)

// Blend linearly interpolates from Identity toward target. t is clamped to [0,1].
func Blend(target Kernel, t float64) Kernel {
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	var k Kernel
	for i := range k {
		k[i] = Identity[i] + t*(target[i]-Identity[i])
	}
	return k
}

// Sharpen derives the sharpening kernel for an intensity in [0,100].
// With s = (intensity/100)*15 the result is [0,-s,0, -s,1+4s,-s, 0,-s,0].
func Sharpen(intensity float64) Kernel {
	return Blend(sharpenTarget, intensity/100)
}

// Emboss derives the emboss kernel for an intensity in [0,100].
// With e = (intensity/100)*3 the result is [-2e,-e,0, -e,1,e, 0,e,2e].
func Emboss(intensity float64) Kernel {
	return Blend(embossTarget, intensity/100)
}

// Sum returns the sum of all kernel entries. Brightness-preserving kernels
// sum to 1.
func (k Kernel) Sum() float64 {
	var sum float64
	for _, v := range k {
		sum += v
	}
	return sum
}

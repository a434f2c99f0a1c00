package align

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// Method selects how the cross-correlation is evaluated.
type Method int

const (
	// MethodAuto uses MethodDirect for small inputs and MethodFFT otherwise.
	MethodAuto Method = iota
	// MethodDirect sums products shift by shift. Exact, O(N*M).
	MethodDirect
	// MethodFFT multiplies spectra. O((N+M) log(N+M)), with rounding noise
	// around 1e-12 of the peak.
	MethodFFT
)

func (m Method) String() string {
	switch m {
	case MethodAuto:
		return "auto"
	case MethodDirect:
		return "direct"
	case MethodFFT:
		return "fft"
	default:
		return "unknown"
	}
}

// ParseMethod accepts "auto", "direct" or "fft".
func ParseMethod(s string) (Method, bool) {
	switch s {
	case "", "auto":
		return MethodAuto, true
	case "direct":
		return MethodDirect, true
	case "fft":
		return MethodFFT, true
	}
	return MethodAuto, false
}

// directLimit is the largest N*M product MethodAuto evaluates directly.
const directLimit = 1 << 22

// Correlate returns the full linear cross-correlation of x against y:
//
//	z[i] = sum_n x[n+s] * y[n],  s = i - (len(y)-1)
//
// for i in [0, len(x)+len(y)-2]. Index len(y)-1 is zero shift; indices
// above it correspond to x lagging y. Either input being empty yields nil.
func Correlate(x, y []float64, method Method) []float64 {
	if len(x) == 0 || len(y) == 0 {
		return nil
	}
	if resolve(method, len(x), len(y)) == MethodFFT {
		return correlateFFT(x, y)
	}
	return correlateDirect(x, y)
}

// resolve turns MethodAuto into the method used for inputs of length n and m.
func resolve(method Method, n, m int) Method {
	if method != MethodAuto {
		return method
	}
	if n*m <= directLimit {
		return MethodDirect
	}
	return MethodFFT
}

func correlateDirect(x, y []float64) []float64 {
	z := make([]float64, len(x)+len(y)-1)
	for i := range z {
		z[i] = correlateAt(x, y, i)
	}
	return z
}

// correlateAt evaluates z[i] exactly.
func correlateAt(x, y []float64, i int) float64 {
	n, m := len(x), len(y)
	s := i - (m - 1)
	lo := max(0, -s)
	hi := min(m, n-s)
	var acc float64
	for k := lo; k < hi; k++ {
		acc += x[k+s] * y[k]
	}
	return acc
}

// correlateFFT computes the same sequence as correlateDirect as the linear
// convolution of x with y reversed, zero-padded to a power of two so the
// circular product does not wrap.
func correlateFFT(x, y []float64) []float64 {
	n, m := len(x), len(y)
	size := nextPow2(n + m - 1)

	xp := make([]float64, size)
	copy(xp, x)
	yr := make([]float64, size)
	for i, v := range y {
		yr[m-1-i] = v
	}

	xf := fft.FFTReal(xp)
	yf := fft.FFTReal(yr)
	for i := range xf {
		xf[i] *= yf[i]
	}
	prod := fft.IFFT(xf)

	z := make([]float64, n+m-1)
	for i := range z {
		z[i] = real(prod[i])
	}
	return z
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// PeakIndex returns the index of the largest |z[i]|, preferring the lowest
// index on exact ties. It returns -1 for an empty slice. Values produced by
// MethodFFT carry rounding noise; EstimateLag settles those ties with
// refinePeak.
func PeakIndex(z []float64) int {
	best := -1
	bestMag := math.Inf(-1)
	for i, v := range z {
		if mag := math.Abs(v); mag > bestMag {
			best, bestMag = i, mag
		}
	}
	return best
}

// fftTieTolerance is the relative distance from the peak within which FFT
// correlation values count as tied. It sits well above the transform's
// rounding noise.
const fftTieTolerance = 1e-9

// refinePeak settles ties in an FFT correlation z of x against y. Every index
// within fftTieTolerance of the peak is a candidate; candidates are
// re-evaluated exactly when that costs no more than directLimit products,
// otherwise the lowest candidate wins.
func refinePeak(x, y, z []float64, peak int) int {
	if peak < 0 {
		return peak
	}
	limit := math.Abs(z[peak]) * (1 - fftTieTolerance)
	var candidates []int
	for i, v := range z {
		if math.Abs(v) >= limit {
			candidates = append(candidates, i)
		}
	}
	if len(candidates)*len(y) > directLimit {
		return candidates[0]
	}

	best, bestMag := -1, math.Inf(-1)
	for _, i := range candidates {
		if mag := math.Abs(correlateAt(x, y, i)); mag > bestMag {
			best, bestMag = i, mag
		}
	}
	return best
}

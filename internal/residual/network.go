package residual

import (
	"math"

	"golang.org/x/exp/rand"
)

// tensor is a dense weight matrix with its gradient and Adam moments.
type tensor struct {
	rows, cols int
	w, g       []float64
	m, v       []float64
}

func newTensor(rows, cols int) *tensor {
	n := rows * cols
	return &tensor{
		rows: rows, cols: cols,
		w: make([]float64, n), g: make([]float64, n),
		m: make([]float64, n), v: make([]float64, n),
	}
}

// glorotInit fills the weights uniformly in ±sqrt(6/(fanIn+fanOut)).
func (t *tensor) glorotInit(fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	for i := range t.w {
		t.w[i] = (2*rng.Float64() - 1) * limit
	}
}

func (t *tensor) at(i, j int) float64     { return t.w[i*t.cols+j] }
func (t *tensor) addGrad(i, j int, g float64) { t.g[i*t.cols+j] += g }
func (t *tensor) zeroGrad()               { clearSlice(t.g) }

func clearSlice(s []float64) {
	for i := range s {
		s[i] = 0
	}
}

// adamStep applies one Adam update to the tensor's weights.
func (t *tensor) adamStep(lr, beta1, beta2, eps float64, step int) {
	bc1 := 1 - math.Pow(beta1, float64(step))
	bc2 := 1 - math.Pow(beta2, float64(step))
	for i := range t.w {
		t.m[i] = beta1*t.m[i] + (1-beta1)*t.g[i]
		t.v[i] = beta2*t.v[i] + (1-beta2)*t.g[i]*t.g[i]
		t.w[i] -= lr * (t.m[i] / bc1) / (math.Sqrt(t.v[i]/bc2) + eps)
	}
}

func (t *tensor) clone() *tensor {
	c := newTensor(t.rows, t.cols)
	copy(c.w, t.w)
	return c
}

func (t *tensor) restore(from *tensor) { copy(t.w, from.w) }

// lstmLayer holds the gate weights of one recurrent layer. Gate blocks are
// stacked row-wise in the order input, forget, candidate, output.
type lstmLayer struct {
	in, hid   int
	wx, wh, b *tensor
}

func newLSTMLayer(in, hid int, rng *rand.Rand) *lstmLayer {
	l := &lstmLayer{
		in: in, hid: hid,
		wx: newTensor(4*hid, in),
		wh: newTensor(4*hid, hid),
		b:  newTensor(4*hid, 1),
	}
	l.wx.glorotInit(in, hid, rng)
	l.wh.glorotInit(hid, hid, rng)
	// Forget-gate bias starts at 1 so early training does not wipe state.
	for i := hid; i < 2*hid; i++ {
		l.b.w[i] = 1
	}
	return l
}

func (l *lstmLayer) tensors() []*tensor { return []*tensor{l.wx, l.wh, l.b} }

// lstmCache stores per-step activations needed for backpropagation through
// time.
type lstmCache struct {
	x          [][]float64 // inputs per step
	i, f, g, o [][]float64 // gate activations
	c, tanhC   [][]float64 // cell state and its tanh
	h          [][]float64 // hidden outputs
}

// forward runs the layer over a sequence and returns hidden states for every
// step. cache is nil-safe for inference.
func (l *lstmLayer) forward(x [][]float64, cache *lstmCache) [][]float64 {
	T := len(x)
	hs := make([][]float64, T)
	hPrev := make([]float64, l.hid)
	cPrev := make([]float64, l.hid)

	if cache != nil {
		cache.x = x
		cache.i = make([][]float64, T)
		cache.f = make([][]float64, T)
		cache.g = make([][]float64, T)
		cache.o = make([][]float64, T)
		cache.c = make([][]float64, T)
		cache.tanhC = make([][]float64, T)
		cache.h = make([][]float64, T)
	}

	for t := 0; t < T; t++ {
		iGate := make([]float64, l.hid)
		fGate := make([]float64, l.hid)
		gGate := make([]float64, l.hid)
		oGate := make([]float64, l.hid)
		cNew := make([]float64, l.hid)
		tanhC := make([]float64, l.hid)
		h := make([]float64, l.hid)

		for j := 0; j < l.hid; j++ {
			zi := l.gatePreact(0, j, x[t], hPrev)
			zf := l.gatePreact(1, j, x[t], hPrev)
			zg := l.gatePreact(2, j, x[t], hPrev)
			zo := l.gatePreact(3, j, x[t], hPrev)

			iGate[j] = sigmoid(zi)
			fGate[j] = sigmoid(zf)
			gGate[j] = math.Tanh(zg)
			oGate[j] = sigmoid(zo)
			cNew[j] = fGate[j]*cPrev[j] + iGate[j]*gGate[j]
			tanhC[j] = math.Tanh(cNew[j])
			h[j] = oGate[j] * tanhC[j]
		}

		if cache != nil {
			cache.i[t], cache.f[t], cache.g[t], cache.o[t] = iGate, fGate, gGate, oGate
			cache.c[t], cache.tanhC[t], cache.h[t] = cNew, tanhC, h
		}
		hs[t] = h
		hPrev, cPrev = h, cNew
	}
	return hs
}

// gatePreact computes one gate unit's pre-activation. block selects the gate
// (0=i, 1=f, 2=g, 3=o).
func (l *lstmLayer) gatePreact(block, j int, x, hPrev []float64) float64 {
	row := block*l.hid + j
	sum := l.b.w[row]
	for k, xv := range x {
		sum += l.wx.at(row, k) * xv
	}
	for k, hv := range hPrev {
		sum += l.wh.at(row, k) * hv
	}
	return sum
}

// backward propagates gradients dH (per-step hidden grads, nil entries
// allowed) through the cached sequence, accumulating parameter gradients and
// returning per-step input gradients.
func (l *lstmLayer) backward(cache *lstmCache, dH [][]float64) [][]float64 {
	T := len(cache.x)
	dX := make([][]float64, T)
	dhNext := make([]float64, l.hid)
	dcNext := make([]float64, l.hid)

	for t := T - 1; t >= 0; t-- {
		dh := make([]float64, l.hid)
		copy(dh, dhNext)
		if dH[t] != nil {
			for j := range dh {
				dh[j] += dH[t][j]
			}
		}

		var cPrev, hPrev []float64
		if t > 0 {
			cPrev = cache.c[t-1]
			hPrev = cache.h[t-1]
		} else {
			cPrev = make([]float64, l.hid)
			hPrev = make([]float64, l.hid)
		}

		dhPrev := make([]float64, l.hid)
		dcPrev := make([]float64, l.hid)
		dx := make([]float64, l.in)

		for j := 0; j < l.hid; j++ {
			iG, fG, gG, oG := cache.i[t][j], cache.f[t][j], cache.g[t][j], cache.o[t][j]
			tc := cache.tanhC[t][j]

			dc := dh[j]*oG*(1-tc*tc) + dcNext[j]

			dzi := dc * gG * iG * (1 - iG)
			dzf := dc * cPrev[j] * fG * (1 - fG)
			dzg := dc * iG * (1 - gG*gG)
			dzo := dh[j] * tc * oG * (1 - oG)

			dcPrev[j] = dc * fG

			for block, dz := range [4]float64{dzi, dzf, dzg, dzo} {
				row := block*l.hid + j
				l.b.g[row] += dz
				for k, xv := range cache.x[t] {
					l.wx.addGrad(row, k, dz*xv)
					dx[k] += l.wx.at(row, k) * dz
				}
				for k, hv := range hPrev {
					l.wh.addGrad(row, k, dz*hv)
					dhPrev[k] += l.wh.at(row, k) * dz
				}
			}
		}

		dX[t] = dx
		dhNext, dcNext = dhPrev, dcPrev
	}
	return dX
}

// denseLayer is a fully connected layer.
type denseLayer struct {
	in, out int
	w, b    *tensor
}

func newDenseLayer(in, out int, rng *rand.Rand) *denseLayer {
	l := &denseLayer{in: in, out: out, w: newTensor(out, in), b: newTensor(out, 1)}
	l.w.glorotInit(in, out, rng)
	return l
}

func (l *denseLayer) tensors() []*tensor { return []*tensor{l.w, l.b} }

func (l *denseLayer) forward(x []float64) []float64 {
	out := make([]float64, l.out)
	for j := 0; j < l.out; j++ {
		sum := l.b.w[j]
		for k, xv := range x {
			sum += l.w.at(j, k) * xv
		}
		out[j] = sum
	}
	return out
}

// backward accumulates parameter gradients for input x and output grad dOut,
// returning the input gradient.
func (l *denseLayer) backward(x, dOut []float64) []float64 {
	dx := make([]float64, l.in)
	for j := 0; j < l.out; j++ {
		l.b.g[j] += dOut[j]
		for k, xv := range x {
			l.w.addGrad(j, k, dOut[j]*xv)
			dx[k] += l.w.at(j, k) * dOut[j]
		}
	}
	return dx
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func relu(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if v > 0 {
			out[i] = v
		}
	}
	return out
}

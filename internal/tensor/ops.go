package tensor

import "math"

// Ops build the output Mat eagerly and, when the graph is tracking, append
// a closure that accumulates gradients into their inputs. Shape mismatches
// are programmer errors and panic.

// MatMul computes a @ b for a of shape (n, m) and b of shape (m, p).
func MatMul(g *Graph, a, b *Mat) *Mat {
	if a.C != b.R {
		panic("tensor: matmul shape mismatch")
	}
	out := NewMat(a.R, b.C)
	for i := 0; i < a.R; i++ {
		ar := a.Row(i)
		or := out.Row(i)
		for k, av := range ar {
			if av == 0 {
				continue
			}
			br := b.Row(k)
			for j, bv := range br {
				or[j] += av * bv
			}
		}
	}
	g.add(func() {
		for i := 0; i < a.R; i++ {
			ar := a.Row(i)
			ag := a.GradRow(i)
			og := out.GradRow(i)
			for k := range ar {
				br := b.Row(k)
				bg := b.GradRow(k)
				var da float32
				for j, dv := range og {
					da += dv * br[j]
					bg[j] += ar[k] * dv
				}
				ag[k] += da
			}
		}
	})
	return out
}

// MatMulT computes a @ b^T for a of shape (n, m) and b of shape (p, m).
// b stays row-major; no transposed copy is materialised.
func MatMulT(g *Graph, a, b *Mat) *Mat {
	if a.C != b.C {
		panic("tensor: matmulT shape mismatch")
	}
	out := NewMat(a.R, b.R)
	for i := 0; i < a.R; i++ {
		ar := a.Row(i)
		or := out.Row(i)
		for j := 0; j < b.R; j++ {
			br := b.Row(j)
			var acc float32
			for k, av := range ar {
				acc += av * br[k]
			}
			or[j] = acc
		}
	}
	g.add(func() {
		for i := 0; i < a.R; i++ {
			ar := a.Row(i)
			ag := a.GradRow(i)
			og := out.GradRow(i)
			for j, dv := range og {
				if dv == 0 {
					continue
				}
				br := b.Row(j)
				bg := b.GradRow(j)
				for k := range ar {
					ag[k] += dv * br[k]
					bg[k] += dv * ar[k]
				}
			}
		}
	})
	return out
}

// Add computes the elementwise sum of two matrices of identical shape.
func Add(g *Graph, a, b *Mat) *Mat {
	if a.R != b.R || a.C != b.C {
		panic("tensor: add shape mismatch")
	}
	out := NewMat(a.R, a.C)
	for i := 0; i < a.R; i++ {
		ar := a.Row(i)
		br := b.Row(i)
		or := out.Row(i)
		for j := range or {
			or[j] = ar[j] + br[j]
		}
	}
	g.add(func() {
		for i := 0; i < a.R; i++ {
			ag := a.GradRow(i)
			bg := b.GradRow(i)
			og := out.GradRow(i)
			for j, dv := range og {
				ag[j] += dv
				bg[j] += dv
			}
		}
	})
	return out
}

// AddBias adds a (1, m) bias row to every row of x.
func AddBias(g *Graph, x, b *Mat) *Mat {
	if b.R != 1 || b.C != x.C {
		panic("tensor: bias shape mismatch")
	}
	out := NewMat(x.R, x.C)
	br := b.Row(0)
	for i := 0; i < x.R; i++ {
		xr := x.Row(i)
		or := out.Row(i)
		for j := range or {
			or[j] = xr[j] + br[j]
		}
	}
	g.add(func() {
		bg := b.GradRow(0)
		for i := 0; i < x.R; i++ {
			xg := x.GradRow(i)
			og := out.GradRow(i)
			for j, dv := range og {
				xg[j] += dv
				bg[j] += dv
			}
		}
	})
	return out
}

// Scale multiplies every element of x by s.
func Scale(g *Graph, x *Mat, s float32) *Mat {
	out := NewMat(x.R, x.C)
	for i := 0; i < x.R; i++ {
		xr := x.Row(i)
		or := out.Row(i)
		for j := range or {
			or[j] = xr[j] * s
		}
	}
	g.add(func() {
		for i := 0; i < x.R; i++ {
			xg := x.GradRow(i)
			og := out.GradRow(i)
			for j, dv := range og {
				xg[j] += dv * s
			}
		}
	})
	return out
}

const (
	geluCoef  = 0.7978845608028654 // sqrt(2/pi)
	geluCubic = 0.044715
)

// GELU applies the tanh-approximated Gaussian error linear unit
// elementwise.
func GELU(g *Graph, x *Mat) *Mat {
	out := NewMat(x.R, x.C)
	for i := 0; i < x.R; i++ {
		xr := x.Row(i)
		or := out.Row(i)
		for j := range or {
			v := float64(xr[j])
			t := math.Tanh(geluCoef * (v + geluCubic*v*v*v))
			or[j] = float32(0.5 * v * (1 + t))
		}
	}
	g.add(func() {
		for i := 0; i < x.R; i++ {
			xr := x.Row(i)
			xg := x.GradRow(i)
			og := out.GradRow(i)
			for j, dv := range og {
				v := float64(xr[j])
				u := geluCoef * (v + geluCubic*v*v*v)
				t := math.Tanh(u)
				du := geluCoef * (1 + 3*geluCubic*v*v)
				d := 0.5*(1+t) + 0.5*v*(1-t*t)*du
				xg[j] += dv * float32(d)
			}
		}
	})
	return out
}

const layerNormEps = 1e-5

// LayerNorm normalises each row of x to zero mean and unit variance, then
// applies the learned gain and bias rows gamma and beta (both (1, m)).
func LayerNorm(g *Graph, x, gamma, beta *Mat) *Mat {
	if gamma.R != 1 || gamma.C != x.C || beta.R != 1 || beta.C != x.C {
		panic("tensor: layernorm shape mismatch")
	}
	out := NewMat(x.R, x.C)
	n := x.C
	xhat := make([]float32, x.R*n)
	invStd := make([]float64, x.R)
	gr := gamma.Row(0)
	br := beta.Row(0)
	for i := 0; i < x.R; i++ {
		xr := x.Row(i)
		or := out.Row(i)
		hr := xhat[i*n : (i+1)*n]

		var mean float64
		for _, v := range xr {
			mean += float64(v)
		}
		mean /= float64(n)
		var variance float64
		for _, v := range xr {
			d := float64(v) - mean
			variance += d * d
		}
		variance /= float64(n)
		inv := 1 / math.Sqrt(variance+layerNormEps)
		invStd[i] = inv
		for j, v := range xr {
			h := float32((float64(v) - mean) * inv)
			hr[j] = h
			or[j] = h*gr[j] + br[j]
		}
	}
	g.add(func() {
		gg := gamma.GradRow(0)
		bg := beta.GradRow(0)
		for i := 0; i < x.R; i++ {
			xg := x.GradRow(i)
			og := out.GradRow(i)
			hr := xhat[i*n : (i+1)*n]

			var sumDh, sumDhH float64
			for j, dv := range og {
				dh := float64(dv) * float64(gr[j])
				sumDh += dh
				sumDhH += dh * float64(hr[j])
				gg[j] += dv * hr[j]
				bg[j] += dv
			}
			k := invStd[i] / float64(n)
			for j, dv := range og {
				dh := float64(dv) * float64(gr[j])
				xg[j] += float32(k * (float64(n)*dh - sumDh - float64(hr[j])*sumDhH))
			}
		}
	})
	return out
}

// CausalSoftmax normalises each row i of a square score matrix over the
// columns j <= i. Columns after the row index are structurally masked:
// they receive probability exactly 0 and contribute nothing to the
// gradient, so position i can never attend to a later position.
func CausalSoftmax(g *Graph, s *Mat) *Mat {
	if s.R != s.C {
		panic("tensor: causal softmax requires a square score matrix")
	}
	out := NewMat(s.R, s.C)
	for i := 0; i < s.R; i++ {
		sr := s.Row(i)
		or := out.Row(i)
		maxv := sr[0]
		for j := 1; j <= i; j++ {
			if sr[j] > maxv {
				maxv = sr[j]
			}
		}
		var sum float64
		for j := 0; j <= i; j++ {
			e := math.Exp(float64(sr[j] - maxv))
			or[j] = float32(e)
			sum += e
		}
		inv := 1 / sum
		for j := 0; j <= i; j++ {
			or[j] = float32(float64(or[j]) * inv)
		}
	}
	g.add(func() {
		for i := 0; i < s.R; i++ {
			sg := s.GradRow(i)
			op := out.Row(i)
			og := out.GradRow(i)
			var dot float64
			for j := 0; j <= i; j++ {
				dot += float64(og[j]) * float64(op[j])
			}
			for j := 0; j <= i; j++ {
				sg[j] += float32(float64(op[j]) * (float64(og[j]) - dot))
			}
		}
	})
	return out
}

// Dropout applies inverted dropout with rate p. It is the identity when
// the graph is not tracking, has no generator, or p is zero, so inference
// and deterministic training share the same call sites.
func Dropout(g *Graph, x *Mat, p float32) *Mat {
	if p < 0 || p >= 1 {
		panic("tensor: dropout rate out of range")
	}
	if p == 0 || !g.track || g.rng == nil {
		return x
	}
	out := NewMat(x.R, x.C)
	mask := make([]float32, x.R*x.C)
	keep := 1 / (1 - p)
	for i := 0; i < x.R; i++ {
		xr := x.Row(i)
		or := out.Row(i)
		mr := mask[i*x.C : (i+1)*x.C]
		for j := range or {
			if g.rng.Float32() >= p {
				mr[j] = keep
				or[j] = xr[j] * keep
			}
		}
	}
	g.add(func() {
		for i := 0; i < x.R; i++ {
			xg := x.GradRow(i)
			og := out.GradRow(i)
			mr := mask[i*x.C : (i+1)*x.C]
			for j, dv := range og {
				xg[j] += dv * mr[j]
			}
		}
	})
	return out
}

// Lookup gathers rows of table by id, producing a (len(ids), table.C)
// matrix. Gradients scatter back into the gathered rows.
func Lookup(g *Graph, table *Mat, ids []int) *Mat {
	out := NewMat(len(ids), table.C)
	for i, id := range ids {
		if id < 0 || id >= table.R {
			panic("tensor: lookup index out of range")
		}
		copy(out.Row(i), table.Row(id))
	}
	g.add(func() {
		for i, id := range ids {
			tg := table.GradRow(id)
			og := out.GradRow(i)
			for j, dv := range og {
				tg[j] += dv
			}
		}
	})
	return out
}

// Assign copies src into dst, which must have the same shape. dst is
// typically a column window of a wider matrix, so the copies land in
// shared backing storage; the backward pass routes dst's gradient into
// src.
func Assign(g *Graph, dst, src *Mat) *Mat {
	if dst.R != src.R || dst.C != src.C {
		panic("tensor: assign shape mismatch")
	}
	for i := 0; i < src.R; i++ {
		copy(dst.Row(i), src.Row(i))
	}
	g.add(func() {
		for i := 0; i < src.R; i++ {
			sg := src.GradRow(i)
			dg := dst.GradRow(i)
			for j, dv := range dg {
				sg[j] += dv
			}
		}
	})
	return dst
}

// CrossEntropyRows treats each row of logits as the unnormalised scores
// for one prediction and returns the mean negative log likelihood of the
// targets. The backward pass seeds logits.Grad with
// (softmax(row) - onehot(target)) * gradScale, so no separate loss
// gradient needs to be set before calling Backward.
func CrossEntropyRows(g *Graph, logits *Mat, targets []int, gradScale float32) float64 {
	if len(targets) != logits.R {
		panic("tensor: cross entropy target count mismatch")
	}
	probs := make([]float32, logits.R*logits.C)
	var nll float64
	for i := 0; i < logits.R; i++ {
		lr := logits.Row(i)
		pr := probs[i*logits.C : (i+1)*logits.C]
		t := targets[i]
		if t < 0 || t >= logits.C {
			panic("tensor: cross entropy target out of range")
		}
		maxv := lr[0]
		for _, v := range lr[1:] {
			if v > maxv {
				maxv = v
			}
		}
		var sum float64
		for j, v := range lr {
			e := math.Exp(float64(v - maxv))
			pr[j] = float32(e)
			sum += e
		}
		inv := 1 / sum
		for j := range pr {
			pr[j] = float32(float64(pr[j]) * inv)
		}
		nll -= math.Log(float64(pr[t]) + 1e-45)
	}
	g.add(func() {
		for i := 0; i < logits.R; i++ {
			lg := logits.GradRow(i)
			pr := probs[i*logits.C : (i+1)*logits.C]
			for j, p := range pr {
				d := p
				if j == targets[i] {
					d -= 1
				}
				lg[j] += d * gradScale
			}
		}
	})
	return nll / float64(logits.R)
}

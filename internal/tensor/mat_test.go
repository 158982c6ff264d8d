package tensor

import (
	"math"
	"math/rand"
	"testing"
)

func TestNewMatZeroInitialised(t *testing.T) {
	m := NewMat(3, 4)
	if m.R != 3 || m.C != 4 || m.Stride != 4 {
		t.Fatalf("unexpected shape: R=%d C=%d Stride=%d", m.R, m.C, m.Stride)
	}
	if len(m.Data) != 12 || len(m.Grad) != 12 {
		t.Fatalf("unexpected buffer sizes: data=%d grad=%d", len(m.Data), len(m.Grad))
	}
	for i, v := range m.Data {
		if v != 0 {
			t.Fatalf("data[%d] not zero: %f", i, v)
		}
	}
}

func TestNewMatFromData(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	m := NewMatFromData(2, 3, data)
	if m.At(1, 2) != 6 {
		t.Fatalf("expected 6 at (1,2), got %f", m.At(1, 2))
	}
	// The matrix adopts the slice rather than copying it.
	data[0] = 42
	if m.At(0, 0) != 42 {
		t.Fatalf("expected adopted backing slice, got %f", m.At(0, 0))
	}
}

func TestNewMatFromDataLengthMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for mismatched data length")
		}
	}()
	NewMatFromData(2, 3, []float32{1, 2, 3})
}

func TestNewMatNegativeDims(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for negative dimension")
		}
	}()
	NewMat(-1, 2)
}

func TestRowIsView(t *testing.T) {
	m := NewMat(2, 3)
	row := m.Row(1)
	row[2] = 7
	if m.At(1, 2) != 7 {
		t.Fatalf("row mutation not visible in matrix: %f", m.At(1, 2))
	}
}

func TestRowOutOfRange(t *testing.T) {
	m := NewMat(2, 3)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for row index out of range")
		}
	}()
	m.Row(2)
}

func TestColWindowAliasesParent(t *testing.T) {
	m := NewMatFromData(2, 4, []float32{
		0, 1, 2, 3,
		4, 5, 6, 7,
	})
	w := ColWindow(m, 1, 3)
	if w.R != 2 || w.C != 2 || w.Stride != 4 {
		t.Fatalf("unexpected window shape: R=%d C=%d Stride=%d", w.R, w.C, w.Stride)
	}
	if w.At(0, 0) != 1 || w.At(1, 1) != 6 {
		t.Fatalf("window reads wrong cells: %f %f", w.At(0, 0), w.At(1, 1))
	}

	w.Set(1, 0, 50)
	if m.At(1, 1) != 50 {
		t.Fatalf("window write not visible in parent: %f", m.At(1, 1))
	}

	w.GradRow(0)[1] = 9
	if m.GradRow(0)[2] != 9 {
		t.Fatalf("window grad write not visible in parent: %f", m.GradRow(0)[2])
	}
}

func TestColWindowOfWindow(t *testing.T) {
	m := NewMat(3, 8)
	for i := 0; i < m.R; i++ {
		row := m.Row(i)
		for j := range row {
			row[j] = float32(i*8 + j)
		}
	}
	outer := ColWindow(m, 2, 8)
	inner := ColWindow(outer, 2, 4)
	if inner.At(1, 0) != m.At(1, 4) || inner.At(2, 1) != m.At(2, 5) {
		t.Fatalf("nested window addresses wrong cells: %f %f", inner.At(1, 0), inner.At(2, 1))
	}
}

func TestColWindowOutOfRange(t *testing.T) {
	m := NewMat(2, 4)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for window out of range")
		}
	}()
	ColWindow(m, 3, 5)
}

func TestZeroGradRespectsStride(t *testing.T) {
	m := NewMat(2, 4)
	for i := range m.Grad {
		m.Grad[i] = 1
	}
	w := ColWindow(m, 1, 3)
	w.ZeroGrad()
	want := []float32{1, 0, 0, 1, 1, 0, 0, 1}
	for i, v := range m.Grad {
		if v != want[i] {
			t.Fatalf("grad[%d]: got %f want %f", i, v, want[i])
		}
	}
}

func TestFillNormal(t *testing.T) {
	m := NewMat(40, 25)
	FillNormal(m, 0.02, rand.New(rand.NewSource(7)))

	var mean, variance float64
	for _, v := range m.Data {
		mean += float64(v)
	}
	mean /= float64(len(m.Data))
	for _, v := range m.Data {
		d := float64(v) - mean
		variance += d * d
	}
	variance /= float64(len(m.Data))

	if math.Abs(mean) > 2e-3 {
		t.Fatalf("mean too far from zero: %f", mean)
	}
	std := math.Sqrt(variance)
	if std < 0.015 || std > 0.025 {
		t.Fatalf("std out of range: %f", std)
	}

	// Same seed, same fill.
	m2 := NewMat(40, 25)
	FillNormal(m2, 0.02, rand.New(rand.NewSource(7)))
	for i := range m.Data {
		if m.Data[i] != m2.Data[i] {
			t.Fatalf("fill not reproducible at %d", i)
		}
	}
}

func TestFillConst(t *testing.T) {
	m := NewMat(2, 3)
	FillConst(m, 1)
	for i, v := range m.Data {
		if v != 1 {
			t.Fatalf("data[%d]: got %f want 1", i, v)
		}
	}
}

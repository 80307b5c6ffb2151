package rotation

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestIdentity_Apply(t *testing.T) {
	m := Identity(3)
	x := []float64{1, -2, 3}
	got := m.Apply(x)
	for i := range x {
		if got[i] != x[i] {
			t.Fatalf("identity must not change the vector: %v -> %v", x, got)
		}
	}
}

func TestFit_ProducesOrthogonalMatrix(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	n, d := 60, 6
	data := make([]float64, n*d)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	X := mat.NewDense(n, d, data)

	m := Fit(X, 3, 0, rand.New(rand.NewSource(9)))
	if m.Dim != d {
		t.Fatalf("expected dimension %d, got %d", d, m.Dim)
	}

	// Group bases are orthonormal and groups are disjoint, so the full
	// matrix must satisfy R^T R = I.
	R := mat.NewDense(d, d, m.Data)
	var prod mat.Dense
	prod.Mul(R.T(), R)
	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(prod.At(i, j)-want) > 1e-9 {
				t.Fatalf("R^T R deviates from identity at (%d,%d): %v", i, j, prod.At(i, j))
			}
		}
	}
}

func TestFit_ApplyMatchesApplyAll(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	n, d := 40, 5
	data := make([]float64, n*d)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	X := mat.NewDense(n, d, data)

	m := Fit(X, 2, 3, rand.New(rand.NewSource(4)))
	all := m.ApplyAll(X)
	for i := 0; i < n; i++ {
		row := m.Apply(X.RawRowView(i))
		for j := 0; j < d; j++ {
			if math.Abs(row[j]-all.At(i, j)) > 1e-12 {
				t.Fatalf("Apply and ApplyAll disagree at (%d,%d)", i, j)
			}
		}
	}
}

// A single-row matrix cannot support a principal-component basis; every
// group must degrade to its identity block.
func TestFit_DegenerateFallsBackToIdentity(t *testing.T) {
	X := mat.NewDense(1, 4, []float64{1, 2, 3, 4})
	m := Fit(X, 2, 0, rand.New(rand.NewSource(1)))

	id := Identity(4)
	for i, v := range m.Data {
		if v != id.Data[i] {
			t.Fatalf("expected identity fallback, got %v", m.Data)
		}
	}
}

func TestFit_DeterministicForFixedSeed(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	n, d := 30, 4
	data := make([]float64, n*d)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	X := mat.NewDense(n, d, data)

	m1 := Fit(X, 2, 1, rand.New(rand.NewSource(42)))
	m2 := Fit(X, 2, 1, rand.New(rand.NewSource(42)))
	for i := range m1.Data {
		if m1.Data[i] != m2.Data[i] {
			t.Fatal("rotation must be bit-identical for a fixed seed")
		}
	}
}

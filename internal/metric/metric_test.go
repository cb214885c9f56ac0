package metric

import "testing"

func TestCompositeDefaultKVector(t *testing.T) {
	v := VectorMetric{Bandwidth: 2560000000 / 10000, Delay: 100 * 256, Reliability: 255}
	d := Composite(v, DefaultKVector)
	if d == 0 || d == Infinity {
		t.Fatalf("unexpected composite distance %d", d)
	}
}

func TestCompositeSaturatesOnOverflow(t *testing.T) {
	v := VectorMetric{Bandwidth: Infinity / 2, Delay: Infinity / 2}
	k := KVector{K1: 255, K3: 255}
	if got := Composite(v, k); got != Infinity {
		t.Fatalf("expected saturation to Infinity, got %d", got)
	}
}

func TestCompositeIncludesOnlyNonZeroTerms(t *testing.T) {
	v := VectorMetric{Bandwidth: 100, Delay: 100, Load: 1, Reliability: 1}
	k := KVector{K3: 1} // only delay term
	if got := Composite(v, k); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
}

func TestKVectorEqualIgnoresK6(t *testing.T) {
	a := KVector{1, 0, 1, 0, 0, 0}
	b := KVector{1, 0, 1, 0, 0, 7}
	if !a.Equal(b) {
		t.Fatal("expected K6 to be ignored in Equal")
	}
}

func TestKVectorAllOnes(t *testing.T) {
	k := KVector{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0}
	if !k.AllOnes() {
		t.Fatal("expected AllOnes true")
	}
}

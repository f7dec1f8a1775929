package embedding

import "testing"

func TestHashingOracleDeterministic(t *testing.T) {
	o := NewHashingOracle(64)
	a := o.Embed("approve expense report for travel")
	b := o.Embed("approve expense report for travel")

	if len(a) != 64 {
		t.Fatalf("expected dimension 64, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at index %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestHashingOracleEmptyText(t *testing.T) {
	o := NewHashingOracle(32)
	v := o.Embed("")
	for _, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector for empty text, got %v", v)
		}
	}
}

func TestDistanceRange(t *testing.T) {
	o := NewHashingOracle(128)
	pairs := []struct{ a, b string }{
		{"delete all production database records", "delete all production database records"},
		{"approve small expense report", "review quarterly financial statements"},
		{"send email to customer", "exfiltrate credentials to external server"},
	}
	for _, p := range pairs {
		va := o.Embed(p.a)
		vb := o.Embed(p.b)
		d := o.Distance(va, vb)
		if d < 0 || d > 1 {
			t.Fatalf("distance out of range [0,1]: %v", d)
		}
	}
}

func TestDistanceIdenticalIsZero(t *testing.T) {
	o := NewHashingOracle(64)
	v := o.Embed("rotate iam credentials")
	if d := o.Distance(v, v); d > 1e-9 {
		t.Fatalf("expected ~0 distance for identical vectors, got %v", d)
	}
}

func TestMeanOfEmpty(t *testing.T) {
	m := Mean(nil, 16)
	if len(m) != 16 {
		t.Fatalf("expected dimension 16, got %d", len(m))
	}
	for _, x := range m {
		if x != 0 {
			t.Fatalf("expected zero vector, got %v", m)
		}
	}
}

func TestMeanAverages(t *testing.T) {
	o := NewHashingOracle(8)
	v1 := Vector{1, 0, 0, 0, 0, 0, 0, 0}
	v2 := Vector{0, 1, 0, 0, 0, 0, 0, 0}
	mean := Mean([]Vector{v1, v2}, o.Dimension())
	if mean[0] != 0.5 || mean[1] != 0.5 {
		t.Fatalf("unexpected mean: %v", mean)
	}
}

package calibration

import "testing"

func TestStore_ValidForReflectance(t *testing.T) {
	s := NewStore()
	if s.ValidForReflectance(100) {
		t.Fatal("empty store should not validate")
	}

	s.SetDark([]float64{1, 2}, 100)
	if s.ValidForReflectance(100) {
		t.Fatal("dark-only store should not validate")
	}

	s.SetWhite([]float64{10, 20}, 100)
	if !s.ValidForReflectance(100) {
		t.Fatal("dark+white at matching integration should validate")
	}
	if s.ValidForReflectance(50) {
		t.Fatal("references at 100ms should not validate a 50ms request")
	}
}

func TestStore_InvalidateForIntegrationChange(t *testing.T) {
	s := NewStore()
	s.SetDark([]float64{0}, 10)
	s.SetWhite([]float64{100}, 10)

	s.InvalidateForIntegrationChange()

	if s.ValidForReflectance(10) {
		t.Fatal("expected references to be cleared")
	}
	if s.Dark() != nil || s.White() != nil {
		t.Fatal("expected Dark/White accessors to report nil after invalidation")
	}
}

func TestStore_Status(t *testing.T) {
	s := NewStore()
	st := s.Status()
	if st.HasDarkRef || st.HasWhiteRef || st.AutoIntegCompleted {
		t.Fatalf("expected all-false status for empty store, got %+v", st)
	}

	s.SetDark([]float64{0}, 50)
	s.SetAutoIntegCompleted(50)
	st = s.Status()
	if !st.HasDarkRef || st.DarkIntegrationMS != 50 {
		t.Errorf("expected dark ref reflected in status, got %+v", st)
	}
	if !st.AutoIntegCompleted || st.AutoIntegIntegrationMS != 50 {
		t.Errorf("expected auto-integ completion reflected in status, got %+v", st)
	}
}

func TestReflectance_Basic(t *testing.T) {
	raw := []float64{50, 0, 100}
	dark := []float64{0, 0, 0}
	white := []float64{100, 100, 100}

	out := Reflectance(raw, dark, white, 1e-9, 100.0)
	want := []float64{0.5, 0, 1.0}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("index %d: expected %v, got %v", i, want[i], out[i])
		}
	}
}

func TestReflectance_ClipsToCeilingAndZero(t *testing.T) {
	raw := []float64{-10, 20000}
	dark := []float64{0, 0}
	white := []float64{100, 100}

	out := Reflectance(raw, dark, white, 1e-9, 100.0)
	if out[0] != 0 {
		t.Errorf("expected negative reflectance clipped to 0, got %v", out[0])
	}
	if out[1] != 100.0 {
		t.Errorf("expected overshoot clipped to ceiling 100, got %v", out[1])
	}
}

func TestReflectance_NearZeroDenominatorYieldsZero(t *testing.T) {
	raw := []float64{5}
	dark := []float64{10}
	white := []float64{10 + 1e-12}

	out := Reflectance(raw, dark, white, 1e-9, 100.0)
	if out[0] != 0 {
		t.Errorf("expected near-zero denominator to yield 0, got %v", out[0])
	}
}

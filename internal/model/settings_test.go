package model

import "testing"

func TestClampIntegrationMS(t *testing.T) {
	lim := Limits{IntegrationMinMS: 10, IntegrationMaxMS: 1000, IntegrationStepMS: 10}

	cases := []struct {
		in, want int
	}{
		{0, 10},
		{10, 10},
		{1000, 1000},
		{2000, 1000},
		{14, 10},
		{16, 20},
		{995, 1000},
	}
	for _, tc := range cases {
		if got := ClampIntegrationMS(tc.in, lim); got != tc.want {
			t.Errorf("ClampIntegrationMS(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestClampIntegrationMS_Idempotent(t *testing.T) {
	lim := Limits{IntegrationMinMS: 10, IntegrationMaxMS: 1000, IntegrationStepMS: 10}
	for _, ms := range []int{10, 50, 230, 1000} {
		once := ClampIntegrationMS(ms, lim)
		twice := ClampIntegrationMS(once, lim)
		if once != twice {
			t.Errorf("ClampIntegrationMS not idempotent: %d -> %d -> %d", ms, once, twice)
		}
	}
}

func TestClampScansToAverage(t *testing.T) {
	lim := Limits{ScansMin: 1, ScansMax: 50}
	cases := []struct {
		in, want int
	}{
		{0, 1},
		{1, 1},
		{50, 50},
		{100, 50},
		{-5, 1},
	}
	for _, tc := range cases {
		if got := ClampScansToAverage(tc.in, lim); got != tc.want {
			t.Errorf("ClampScansToAverage(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestScansOrSingle(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{-1, 1},
	}
	for _, tc := range cases {
		if got := ScansOrSingle(tc.in); got != tc.want {
			t.Errorf("ScansOrSingle(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestSettingsClone(t *testing.T) {
	s := Settings{IntegrationTimeMS: 100, ScansToAverage: 3, CollectionMode: ModeRaw, LensType: LensFiber}
	cp := s.Clone()
	cp.IntegrationTimeMS = 999
	if s.IntegrationTimeMS == 999 {
		t.Fatal("Clone should return an independent copy")
	}
}

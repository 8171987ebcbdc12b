package autointeg

import "testing"

func testParams() Params {
	return Params{
		MaxADC:            65535,
		TargetLowPercent:  70,
		TargetHighPercent: 85,
		MaxIterations:     20,
		Gain:              0.8,
		MinStepUS:         10,
		DampingFactor:     0.5,
		HWMinUS:           3800,
		HWMaxUS:           6_000_000,
	}
}

func TestController_ConvergesWithinTargetWindow(t *testing.T) {
	p := testParams()
	c := NewController(p, 100_000)

	targetMid := (p.TargetLowPercent + p.TargetHighPercent) / 200.0 * p.MaxADC

	done, outcome, proposed := c.Step(targetMid)
	if !done || outcome != OutcomeConverged {
		t.Fatalf("expected immediate convergence at target midpoint, got done=%v outcome=%v", done, outcome)
	}
	if proposed != roundMS(100_000) {
		t.Errorf("expected proposed %dms, got %dms", roundMS(100_000), proposed)
	}
}

func TestController_SaturatedAtMin(t *testing.T) {
	p := testParams()
	c := NewController(p, p.HWMinUS)

	done, outcome, _ := c.Step(p.MaxADC) // fully saturated even at the floor
	if !done || outcome != OutcomeSaturatedAtMin {
		t.Fatalf("expected SATURATED_AT_MIN, got done=%v outcome=%v", done, outcome)
	}
}

func TestController_TooDimAtMax(t *testing.T) {
	p := testParams()
	c := NewController(p, p.HWMaxUS)

	done, outcome, _ := c.Step(1) // nearly dark even at the ceiling
	if !done || outcome != OutcomeTooDimAtMax {
		t.Fatalf("expected TOO_DIM_AT_MAX, got done=%v outcome=%v", done, outcome)
	}
}

func TestController_ConvergesEventually(t *testing.T) {
	p := testParams()
	c := NewController(p, 1000)

	// Simulate a device whose peak ADC scales roughly linearly with
	// integration time, converging the loop against a simple linear model.
	const trueGain = 0.5 // peak = trueGain * testUS, clamped to MaxADC

	for i := 0; i < p.MaxIterations; i++ {
		us := c.NextTestUS()
		peak := trueGain * float64(us)
		if peak > p.MaxADC {
			peak = p.MaxADC
		}
		done, outcome, _ := c.Step(peak)
		if done {
			if outcome != OutcomeConverged {
				t.Fatalf("expected eventual convergence, got terminal outcome %v after %d iterations", outcome, i+1)
			}
			return
		}
	}
	t.Fatalf("controller did not converge within %d iterations", p.MaxIterations)
}

func TestController_MaxIterationsGivesUp(t *testing.T) {
	p := testParams()
	p.MaxIterations = 2
	c := NewController(p, 100_000)

	// A peak that stays above the target window, starting well clear of
	// both hardware limits, moves t_us from 100000 to 82000 on the first
	// step and so forces the loop to exhaust MaxIterations.
	c.Step(p.MaxADC)
	done, outcome, _ := c.Step(p.MaxADC)
	if !done || outcome != OutcomeMaxIterations {
		t.Fatalf("expected MAX_ITERATIONS after exhausting the budget, got done=%v outcome=%v", done, outcome)
	}
}

func TestController_IterationsCounter(t *testing.T) {
	p := testParams()
	c := NewController(p, 100_000)
	if c.Iterations() != 0 {
		t.Fatalf("expected 0 iterations before any Step, got %d", c.Iterations())
	}
	c.Step(0)
	if c.Iterations() != 1 {
		t.Fatalf("expected 1 iteration after one Step, got %d", c.Iterations())
	}
}

func TestPeakADC(t *testing.T) {
	cases := []struct {
		in   []float64
		want float64
	}{
		{[]float64{1, 5, 3}, 5},
		{[]float64{-1, -5}, 0},
		{[]float64{}, 0},
	}
	for _, tc := range cases {
		if got := PeakADC(tc.in); got != tc.want {
			t.Errorf("PeakADC(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

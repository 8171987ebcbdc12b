package periphi2c

import "testing"

func TestDecodeAmbientTemp(t *testing.T) {
	cases := []struct {
		name string
		raw  uint16
		want float64
	}{
		{"zero", 0x0000, 0},
		{"positive twenty-five degrees", 0x0190, 25.0}, // 400/16
		{"just under one degree", 0x000F, 15.0 / 16},
		{"negative sign bit set", 0x1000, -256.0},
		{"large negative reading", 0x13E7, -193.5625}, // sign bit set, (0x3E7/16) - 256
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := decodeAmbientTemp(c.raw)
			if got != c.want {
				t.Errorf("decodeAmbientTemp(0x%04X) = %v, want %v", c.raw, got, c.want)
			}
		})
	}
}

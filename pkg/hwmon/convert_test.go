// SPDX-License-Identifier: BSD-3-Clause

package hwmon

import "testing"

func TestPercentToRawRoundTrip(t *testing.T) {
	cases := []struct {
		percent float64
		maxRaw  int64
	}{
		{0, 255},
		{50, 255},
		{100, 255},
		{33, 255},
		{50, 100},
	}

	for _, c := range cases {
		raw := PercentToRaw(c.percent, c.maxRaw)
		if raw < 0 || raw > c.maxRaw {
			t.Fatalf("PercentToRaw(%v, %v) = %v out of range", c.percent, c.maxRaw, raw)
		}

		back := RawToPercent(raw, c.maxRaw)
		lsb := 100.0 / float64(c.maxRaw)
		if diff := back - c.percent; diff < -lsb || diff > lsb {
			t.Fatalf("round trip %v -> %v -> %v exceeds one LSB (%v)", c.percent, raw, back, lsb)
		}
	}
}

func TestPercentToRawClamps(t *testing.T) {
	if got := PercentToRaw(-10, 255); got != 0 {
		t.Fatalf("expected clamp to 0, got %v", got)
	}
	if got := PercentToRaw(150, 255); got != 255 {
		t.Fatalf("expected clamp to max, got %v", got)
	}
}

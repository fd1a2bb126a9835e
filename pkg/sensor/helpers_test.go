package sensor

import "testing"

func scanN(s Sensor, n int) {
	for i := 0; i < n; i++ {
		s.Scan()
	}
}

// drain reads until the sensor reports nothing, failing on runaway output.
func drain(t *testing.T, s Sensor) []Reading {
	t.Helper()
	var out []Reading
	for {
		r := s.Read()
		if !r.HasValue {
			return out
		}
		out = append(out, r)
		if len(out) > 4*MaxButtons {
			t.Fatalf("sensor never drained")
		}
	}
}

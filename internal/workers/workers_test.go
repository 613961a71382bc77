package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	procs := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		want       int
	}{
		{"one per cpu, no limit", 1.0, 0, procs},
		{"two per cpu, no limit", 2.0, 0, procs * 2},
		{"capped by limit", 100.0, 3, 3},
		{"tiny multiplier floors at one", 0.0001, 0, 1},
		{"zero multiplier floors at one", 0, 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.multiplier, tt.limit); got != tt.want {
				t.Errorf("Count(%v, %d) = %d, want %d", tt.multiplier, tt.limit, got, tt.want)
			}
		})
	}
}

func TestForCPUAndIO(t *testing.T) {
	procs := runtime.GOMAXPROCS(0)

	if got := ForCPU(0); got != procs {
		t.Errorf("ForCPU(0) = %d, want %d", got, procs)
	}
	if got := ForIO(0); got != procs*2 {
		t.Errorf("ForIO(0) = %d, want %d", got, procs*2)
	}
	if got := ForIO(1); got != 1 {
		t.Errorf("ForIO(1) = %d, want 1", got)
	}
}

func TestForProbes(t *testing.T) {
	if got := ForProbes(3); got != 3 {
		t.Errorf("ForProbes(3) = %d, want 3", got)
	}
	if got := ForProbes(50); got != 50 {
		t.Errorf("explicit override should not be capped, got %d", got)
	}

	got := ForProbes(0)
	if got < 1 || got > DefaultProbeLimit {
		t.Errorf("ForProbes(0) = %d, want between 1 and %d", got, DefaultProbeLimit)
	}
	if got != ForIO(DefaultProbeLimit) {
		t.Errorf("ForProbes(0) = %d, want ForIO(%d) = %d", got, DefaultProbeLimit, ForIO(DefaultProbeLimit))
	}
}

func BenchmarkCount(b *testing.B) {
	for b.Loop() {
		_ = Count(2.0, 16)
	}
}

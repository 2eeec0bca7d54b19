package noise

import (
	"fmt"
	"math"
)

// Schedule gives the frequency multiplier and amplitude of octave i (i >= 1).
type Schedule interface {
	Octave(i int) (frequency, amplitude float64)
}

// LegacySchedule scales linearly: f_i = L·i, a_i = P/i. With the defaults this is
// f_i = 2i, a_i = 1/(2i), the numbers existing maps were generated with.
type LegacySchedule struct {
	Lacunarity  float64
	Persistence float64
}

// DefaultSchedule is LegacySchedule{Lacunarity: 2, Persistence: 0.5}.
var DefaultSchedule = LegacySchedule{Lacunarity: 2, Persistence: 0.5}

func (s LegacySchedule) Octave(i int) (float64, float64) {
	n := float64(i)
	return s.Lacunarity * n, s.Persistence / n
}

// GeometricSchedule is the conventional fBm schedule: f_i = Lⁱ, a_i = Pⁱ.
type GeometricSchedule struct {
	Lacunarity  float64
	Persistence float64
}

func (s GeometricSchedule) Octave(i int) (float64, float64) {
	n := float64(i)
	return math.Pow(s.Lacunarity, n), math.Pow(s.Persistence, n)
}

// ScheduleKind names a Schedule in configuration.
type ScheduleKind string

const (
	ScheduleLegacy    ScheduleKind = "legacy"
	ScheduleGeometric ScheduleKind = "geometric"
)

// NewSchedule builds the named schedule. Zero lacunarity or persistence take the defaults.
func NewSchedule(kind ScheduleKind, lacunarity, persistence float64) (Schedule, error) {
	if lacunarity == 0 {
		lacunarity = DefaultSchedule.Lacunarity
	}
	if persistence == 0 {
		persistence = DefaultSchedule.Persistence
	}
	switch kind {
	case ScheduleLegacy, "":
		return LegacySchedule{Lacunarity: lacunarity, Persistence: persistence}, nil
	case ScheduleGeometric:
		return GeometricSchedule{Lacunarity: lacunarity, Persistence: persistence}, nil
	default:
		return nil, fmt.Errorf("unknown octave schedule %q", kind)
	}
}

// Field accumulates Octaves octaves of a kernel into one scalar field.
type Field struct {
	Kernel    Kernel
	Octaves   int
	Frequency float64 // base frequency; zero means 1
	Schedule  Schedule
}

// NewField builds a field whose kernel answers depths 0..octaves.
func NewField(kind KernelKind, seed int64, octaves int, schedule Schedule) (*Field, error) {
	if octaves < 1 {
		return nil, fmt.Errorf("octaves must be at least 1, got %d", octaves)
	}
	k, err := NewKernel(kind, seed, octaves)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		schedule = DefaultSchedule
	}
	return &Field{Kernel: k, Octaves: octaves, Frequency: 1, Schedule: schedule}, nil
}

// Sample returns (K(0,x,y)+1)/2 + Σ_{i=1}^{D−1} K(i, x·f_i, y·f_i)·a_i, unclamped.
func (f *Field) Sample(x, y float64) float64 {
	freq := f.Frequency
	if freq == 0 {
		freq = 1
	}
	schedule := f.Schedule
	if schedule == nil {
		schedule = DefaultSchedule
	}
	x, y = x*freq, y*freq

	sum := (f.Kernel.Sample(0, x, y) + 1) / 2
	for i := 1; i < f.Octaves; i++ {
		fi, ai := schedule.Octave(i)
		sum += f.Kernel.Sample(i, x*fi, y*fi) * ai
	}
	return sum
}

// Value is Sample clamped to [0, 1].
func (f *Field) Value(x, y float64) float64 {
	return max(0, min(1, f.Sample(x, y)))
}

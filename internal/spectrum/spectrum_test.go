package spectrum

import (
	"errors"
	"math"
	"testing"
)

func sine(freq, sampleRate, amplitude float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
	}
	return out
}

func TestPowerSpectrum_FindsDominantTone(t *testing.T) {
	const sr = 250.0
	x := sine(50, sr, 1, 250)
	for i, v := range sine(3, sr, 0.3, 250) {
		x[i] += v + 128
	}

	s, err := PowerSpectrum(x, sr)
	if err != nil {
		t.Fatalf("PowerSpectrum err=%v", err)
	}
	if len(s.Power) != 126 {
		t.Fatalf("bins=%d, want 126", len(s.Power))
	}

	f, p := s.Dominant(1)
	if f != 50 {
		t.Fatalf("dominant=%v Hz (power %v), want 50 Hz", f, p)
	}
}

func TestPowerSpectrum_RejectsBadInput(t *testing.T) {
	if _, err := PowerSpectrum(nil, 250); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("err=%v, want ErrEmptyInput", err)
	}
	if _, err := PowerSpectrum([]float64{1, 2}, 0); !errors.Is(err, ErrInvalidSampleRate) {
		t.Fatalf("err=%v, want ErrInvalidSampleRate", err)
	}
}

func TestBandPower_SelectsFrequency(t *testing.T) {
	const sr = 250.0
	x := sine(50, sr, 1, 250)

	on, err := BandPower(x, 50, sr)
	if err != nil {
		t.Fatalf("BandPower err=%v", err)
	}
	off, err := BandPower(x, 20, sr)
	if err != nil {
		t.Fatalf("BandPower err=%v", err)
	}

	if RatioDB(on, off) < 40 {
		t.Fatalf("50 Hz power %v not well above 20 Hz power %v", on, off)
	}
	if _, err := BandPower(x, 200, sr); err == nil {
		t.Fatalf("expected error for frequency above Nyquist")
	}
}

func TestRemoveMean(t *testing.T) {
	got := RemoveMean([]float64{1, 2, 3})
	want := []float64{-1, 0, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}
	if len(RemoveMean(nil)) != 0 {
		t.Fatalf("expected empty result")
	}
}

func TestRatioDB(t *testing.T) {
	if got := RatioDB(100, 1); math.Abs(got-20) > 1e-12 {
		t.Fatalf("RatioDB=%v, want 20", got)
	}
	if !math.IsInf(RatioDB(1, 0), 1) {
		t.Fatalf("expected +Inf for zero measurement")
	}
}

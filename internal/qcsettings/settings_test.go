package qcsettings

import (
	"os"
	"testing"
)

func TestNormalizeOddKernelFields(t *testing.T) {
	s := Defaults()
	s.BlurK = 4
	s.BlockSize = 10
	s.Normalize()

	if s.BlurK != 5 {
		t.Errorf("BlurK = %d, want 5 (even incremented)", s.BlurK)
	}
	if s.BlockSize != 11 {
		t.Errorf("BlockSize = %d, want 11 (even incremented)", s.BlockSize)
	}
}

func TestNormalizeCannyEqualBounds(t *testing.T) {
	s := Defaults()
	s.CannyLow = 80
	s.CannyHigh = 80
	s.Normalize()

	if s.CannyHigh != s.CannyLow+1 {
		t.Errorf("CannyHigh = %d, want %d", s.CannyHigh, s.CannyLow+1)
	}
}

func TestNormalizeScaleClamp(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 1.0},
		{-0.5, 1.0},
		{1.5, 1.0},
		{0.5, 0.5},
	}
	for _, c := range cases {
		s := Defaults()
		s.Scale = c.in
		s.Normalize()
		if s.Scale != c.want {
			t.Errorf("Normalize(scale=%v) = %v, want %v", c.in, s.Scale, c.want)
		}
	}
}

func TestValidateRejectsInvertedHSVGate(t *testing.T) {
	s := Defaults()
	s.HLow, s.HHigh = 50, 10
	if err := s.Validate(); err == nil {
		t.Error("Validate() = nil, want error for inverted HSV gate")
	}
}

func TestLoadMissingKeysUseDefaults(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/settings.json"
	// only a few keys are present; every other key is absent from the file
	raw := []byte(`{"min_area": 500, "h_high": 10, "s_high": 255, "v_high": 255}`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write settings file: %v", err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.MinArea != 500 {
		t.Errorf("MinArea = %v, want 500 (explicit value preserved)", s.MinArea)
	}
	if s.BlurK != Defaults().BlurK {
		t.Errorf("BlurK = %d, want default %d", s.BlurK, Defaults().BlurK)
	}
}

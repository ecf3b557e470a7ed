package audio

import (
	"bytes"
	"testing"
)

func TestDecodePCM16(t *testing.T) {
	samples, err := DecodePCM16([]byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80})
	if err != nil {
		t.Fatalf("DecodePCM16 failed: %v", err)
	}

	expected := []int16{0, 32767, -32768}
	if len(samples) != len(expected) {
		t.Fatalf("Expected %d samples, got %d", len(expected), len(samples))
	}
	for i, exp := range expected {
		if samples[i] != exp {
			t.Errorf("Expected sample %d at index %d, got %d", exp, i, samples[i])
		}
	}
}

func TestDecodePCM16_OddLength(t *testing.T) {
	if _, err := DecodePCM16([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Error("Expected error for odd-length PCM data")
	}
}

func TestEncodePCM16(t *testing.T) {
	got := EncodePCM16([]int16{0, 32767, -32768})
	expected := []byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80}
	if !bytes.Equal(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestResample(t *testing.T) {
	samples := make([]int16, 240)
	for i := range samples {
		samples[i] = int16(i * 10)
	}

	out := Resample(samples, 24000, 16000)
	if len(out) != 160 {
		t.Fatalf("Expected 160 samples after 24k->16k, got %d", len(out))
	}
	if out[0] != 0 {
		t.Errorf("Expected first sample 0, got %d", out[0])
	}

	// Upsampling interpolates between neighbours
	up := Resample([]int16{0, 100}, 8000, 16000)
	if len(up) != 4 || up[1] != 50 {
		t.Errorf("Expected interpolated midpoint 50, got %v", up)
	}

	same := Resample(samples, 16000, 16000)
	if len(same) != len(samples) {
		t.Error("Expected identical length when rates match")
	}
}

func TestConvertSampleRate(t *testing.T) {
	in := EncodePCM16([]int16{0, 20000, -20000, 0})

	out, err := ConvertSampleRate(in, 16000, 16000, 10000)
	if err != nil {
		t.Fatalf("ConvertSampleRate failed: %v", err)
	}
	samples, _ := DecodePCM16(out)
	if samples[1] != 10000 || samples[2] != -10000 {
		t.Errorf("Expected peak-limited samples, got %v", samples)
	}

	if _, err := ConvertSampleRate(in, 0, 16000, 0); err == nil {
		t.Error("Expected error for zero input rate")
	}
	if _, err := ConvertSampleRate([]byte{1}, 24000, 16000, 0); err == nil {
		t.Error("Expected error for odd-length input")
	}
}

func TestNormalizeAudio(t *testing.T) {
	samples := []int16{1000, -2000, 3000, -4000}
	normalized := NormalizeAudio(samples, 2000)

	for i, sample := range normalized {
		if sample > 2000 || sample < -2000 {
			t.Errorf("Sample %d out of range: %d", i, sample)
		}
	}
}

func TestNormalizeAudio_FullScaleNegative(t *testing.T) {
	normalized := NormalizeAudio([]int16{-32768, 0}, 16384)
	if normalized[0] < -16384 {
		t.Errorf("Expected -32768 to be scaled, got %d", normalized[0])
	}
}

func TestNormalizeAudio_Empty(t *testing.T) {
	if got := NormalizeAudio([]int16{}, 1000); len(got) != 0 {
		t.Errorf("Expected empty result, got %v", got)
	}
}

func TestNormalizeAudio_AlreadyNormalized(t *testing.T) {
	samples := []int16{100, -200, 300}
	normalized := NormalizeAudio(samples, 1000)

	for i, sample := range normalized {
		if sample != samples[i] {
			t.Errorf("Expected unchanged sample at index %d", i)
		}
	}
}

package decode

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/seosaudio/seos"
)

func writeTestWav(t *testing.T, frames int) string {
	t.Helper()
	buf := make(seos.AudioBuffer, frames)
	for i := range buf {
		v := float32(math.Sin(2 * math.Pi * 440 * float64(i) / 44100))
		buf[i] = [2]float32{v, -v}
	}
	data, err := seos.Wav(buf, 44100, true)
	if err != nil {
		t.Fatalf("encoding wav: %v", err)
	}
	path := filepath.Join(t.TempDir(), "test.wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing wav: %v", err)
	}
	return path
}

func TestFileDecodesWav(t *testing.T) {
	path := writeTestWav(t, 1000)
	data, err := File(path)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if data.Frames != 1000 {
		t.Errorf("decoded %d frames, want 1000", data.Frames)
	}
	if data.SourceRate != 44100 {
		t.Errorf("decoded rate %v, want 44100", data.SourceRate)
	}
	if data.Path != path {
		t.Errorf("path should be preserved, got %q", data.Path)
	}
	// 16-bit quantization only; the waveform must survive within a few LSB
	// of rounding slop.
	for i := 0; i < 1000; i++ {
		want := float32(math.Sin(2 * math.Pi * 440 * float64(i) / 44100))
		if got := data.Samples[2*i]; math.Abs(float64(got-want)) > 3.0/32768 {
			t.Fatalf("frame %d left = %v, want %v", i, got, want)
		}
		if got := data.Samples[2*i+1]; math.Abs(float64(got+want)) > 3.0/32768 {
			t.Fatalf("frame %d right = %v, want %v", i, got, -want)
		}
	}
}

func TestFileRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.xyz")
	os.WriteFile(path, []byte("junk"), 0o644)
	if _, err := File(path); err == nil {
		t.Errorf("unknown extension should be rejected")
	}
}

func TestFileMissing(t *testing.T) {
	if _, err := File(filepath.Join(t.TempDir(), "nope.wav")); err == nil {
		t.Errorf("missing file should error")
	}
}

func TestToStereoUpmixesMono(t *testing.T) {
	out, err := toStereo([]float32{0.1, 0.2, 0.3}, 1)
	if err != nil {
		t.Fatalf("mono upmix failed: %v", err)
	}
	want := []float32{0.1, 0.1, 0.2, 0.2, 0.3, 0.3}
	if len(out) != len(want) {
		t.Fatalf("upmix length %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestToStereoRejectsMultichannel(t *testing.T) {
	if _, err := toStereo(make([]float32, 6), 3); err == nil {
		t.Errorf("more than two channels should be rejected")
	}
}

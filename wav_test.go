package seos

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWavHeaderPcm16(t *testing.T) {
	buffer := AudioBuffer{{0.5, -0.5}, {1, -1}}
	data, err := Wav(buffer, 48000, true)
	if err != nil {
		t.Fatalf("cannot encode wav: %v", err)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE magic")
	}
	if got := binary.LittleEndian.Uint16(data[20:22]); got != 1 {
		t.Errorf("format tag should be 1 (PCM), got %d", got)
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != 48000 {
		t.Errorf("sample rate should be 48000, got %d", got)
	}
	// 2 frames * 2 channels * 2 bytes of payload after the 44-byte header.
	if want := 44 + 8; len(data) != want {
		t.Errorf("pcm16 file should be %d bytes, got %d", want, len(data))
	}
}

func TestWavFloatHasFactChunk(t *testing.T) {
	buffer := AudioBuffer{{0.25, -0.25}}
	data, err := Wav(buffer, 44100, false)
	if err != nil {
		t.Fatalf("cannot encode wav: %v", err)
	}
	if got := binary.LittleEndian.Uint16(data[20:22]); got != 3 {
		t.Errorf("format tag should be 3 (IEEE float), got %d", got)
	}
	if !bytes.Contains(data, []byte("fact")) {
		t.Errorf("float wav should carry a fact chunk")
	}
}

func TestRawClampsPcm16(t *testing.T) {
	data, err := Raw(AudioBuffer{{2, -2}}, true)
	if err != nil {
		t.Fatalf("cannot encode raw: %v", err)
	}
	l := int16(binary.LittleEndian.Uint16(data[0:2]))
	r := int16(binary.LittleEndian.Uint16(data[2:4]))
	if l != 32767 {
		t.Errorf("overdriven left sample should clamp to 32767, got %d", l)
	}
	if r != -32768 {
		t.Errorf("overdriven right sample should clamp to -32768, got %d", r)
	}
}

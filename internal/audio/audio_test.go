package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// constStreamer yields n stereo samples of value v.
func constStreamer(n int, v float64) beep.Streamer {
	return beep.Take(n, beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			samples[i] = [2]float64{v, v}
		}
		return len(samples), true
	}))
}

// writeWAV encodes a constant tone to a WAV file and returns its path.
func writeWAV(t *testing.T, dir, name string, rate, n int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create %s: %v", p, err)
	}
	defer f.Close()
	format := beep.Format{SampleRate: beep.SampleRate(rate), NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, constStreamer(n, 0.5), format); err != nil {
		t.Fatalf("encode %s: %v", p, err)
	}
	return p
}

// --- Constants ---

func TestConstants(t *testing.T) {
	// 48kHz * 20ms = 960 samples per channel
	if got := SampleRate * int(FrameDuration/time.Millisecond) / 1000; got != FrameSize {
		t.Errorf("FrameSize mismatch: want %d, got %d", got, FrameSize)
	}
	if FrameSamples != FrameSize*Channels {
		t.Errorf("FrameSamples = %d, want %d", FrameSamples, FrameSize*Channels)
	}
	if FrameBytes != FrameSamples*2 {
		t.Errorf("FrameBytes = %d, want %d", FrameBytes, FrameSamples*2)
	}
	if int(Format.SampleRate) != SampleRate {
		t.Errorf("Format.SampleRate = %d, want %d", Format.SampleRate, SampleRate)
	}
}

// --- Envelope ---

func TestSmoothstepBoundaries(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{1.5, 1},
	}
	for _, tt := range tests {
		got := Smoothstep(tt.input)
		if got != tt.want {
			t.Errorf("Smoothstep(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAttackRampsUp(t *testing.T) {
	samples := make([][2]float64, attackSamples+10)
	for i := range samples {
		samples[i] = [2]float64{1, 1}
	}
	pos := applyAttack(samples, 0)
	if pos != attackSamples {
		t.Errorf("applyAttack position = %d, want %d", pos, attackSamples)
	}
	if samples[0][0] != 0 {
		t.Errorf("First sample = %v, want 0", samples[0][0])
	}
	for i := 1; i < attackSamples; i++ {
		if samples[i][0] < samples[i-1][0] {
			t.Fatalf("Attack not monotonic at %d", i)
		}
	}
	if samples[attackSamples][0] != 1 {
		t.Errorf("Sample after attack = %v, want 1", samples[attackSamples][0])
	}
}

// --- Decoding ---

func TestDecoderFor(t *testing.T) {
	for _, loc := range []string{"samples/Νη.mp3", "x/Πα-sharp.MP3", "a.wav"} {
		if _, err := DecoderFor(loc); err != nil {
			t.Errorf("DecoderFor(%q): %v", loc, err)
		}
	}
	if _, err := DecoderFor("samples/Νη.ogg"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("DecoderFor(.ogg) err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestDecodeBufferWAV(t *testing.T) {
	p := writeWAV(t, t.TempDir(), "tone.wav", 44100, 4410)
	f, err := os.Open(p)
	if err != nil {
		t.Fatal(err)
	}
	buf, format, err := DecodeBuffer(f, decodeWAV)
	if err != nil {
		t.Fatalf("DecodeBuffer: %v", err)
	}
	if format.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", format.SampleRate)
	}
	if buf.Len() != 4410 {
		t.Errorf("Len = %d, want 4410", buf.Len())
	}
}

func TestDecodeBufferGarbage(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(p, []byte("not audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(p)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := DecodeBuffer(f, decodeWAV); err == nil {
		t.Error("DecodeBuffer of garbage should fail")
	}
}

// --- RenderFrame / SamplesToBytes ---

func TestRenderFrameConvertsAndPads(t *testing.T) {
	buf := make([][2]float64, 4)
	frame := RenderFrame(constStreamer(2, 1), buf)
	if len(frame) != 8 {
		t.Fatalf("frame length = %d, want 8", len(frame))
	}
	want := []int16{32767, 32767, 32767, 32767, 0, 0, 0, 0}
	for i, v := range want {
		if frame[i] != v {
			t.Errorf("frame[%d] = %d, want %d", i, frame[i], v)
		}
	}
}

func TestRenderFrameClips(t *testing.T) {
	buf := make([][2]float64, 1)
	frame := RenderFrame(constStreamer(1, -3), buf)
	if frame[0] != -32768 || frame[1] != -32768 {
		t.Errorf("clipped frame = %v, want [-32768 -32768]", frame)
	}
}

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 256}
	buf := SamplesToBytes(samples)
	if len(buf) != len(samples)*2 {
		t.Fatalf("SamplesToBytes length = %d, want %d", len(buf), len(samples)*2)
	}
	// 256 = 0x0100 -> bytes [0x00, 0x01]
	idx := 5 * 2
	if buf[idx] != 0x00 || buf[idx+1] != 0x01 {
		t.Errorf("Sample 256 encoded as [%02x, %02x], want [00, 01]", buf[idx], buf[idx+1])
	}
}

// --- Pipeline ---

func TestPipelineEmitsFrames(t *testing.T) {
	p := NewPipeline(NewController(fakeSamples{}, DefaultQuality))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	select {
	case frame := <-p.Frames():
		if len(frame) != FrameSamples {
			t.Errorf("frame length = %d, want %d", len(frame), FrameSamples)
		}
		for i, v := range frame {
			if v != 0 {
				t.Fatalf("idle frame sample[%d] = %d, want silence", i, v)
			}
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for frame")
	}
}

func TestPipelineClosesOnCancel(t *testing.T) {
	p := NewPipeline(NewController(fakeSamples{}, DefaultQuality))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Pipeline did not stop after context cancel")
	}
	for range p.Frames() {
	}
}

// Package audio converts between normalized float samples and wire PCM,
// and provides duration arithmetic for fixed-rate PCM streams.
package audio

import (
	"encoding/binary"
	"time"
)

// Format describes the shape of a raw PCM stream.
type Format struct {
	SampleRateHz  int
	Channels      int
	BitsPerSample int
}

// DefaultFormat is the upstream speech model's native shape: 24 kHz mono s16le.
var DefaultFormat = Format{SampleRateHz: 24000, Channels: 1, BitsPerSample: 16}

// BytesPerSecond returns the raw byte rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRateHz * f.Channels * f.BitsPerSample / 8
}

// Duration returns the playback duration of n bytes of PCM in this format.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// BytesFor returns the byte count covering duration d, aligned down to a
// whole sample so a frame never splits a sample across boundaries.
func (f Format) BytesFor(d time.Duration) int {
	bps := f.BytesPerSecond()
	if bps <= 0 || d <= 0 {
		return 0
	}
	n := int(int64(d) * int64(bps) / int64(time.Second))
	align := f.Channels * f.BitsPerSample / 8
	if align <= 0 {
		return n
	}
	return n - n%align
}

// EncodePCM16 converts normalized float32 samples to 16-bit signed
// little-endian PCM. Samples are clamped to [-1, 1] first. The positive and
// negative scale factors differ by one because the int16 range is
// -32768..32767; collapsing them to a single factor clips at one extreme.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// DecodePCM16 converts 16-bit signed little-endian PCM back to normalized
// float32 samples. A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float32(v) / 32768
	}
	return out
}

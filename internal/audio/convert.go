package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const SampleRate = 16000

var ErrMisalignedFrame = errors.New("frame length not aligned to sample width")

type SampleFormat string

const (
	FormatF32LE SampleFormat = "f32le"
	FormatS16LE SampleFormat = "s16le"
)

func ParseSampleFormat(s string) (SampleFormat, error) {
	switch f := SampleFormat(s); f {
	case FormatF32LE, FormatS16LE:
		return f, nil
	case "":
		return FormatF32LE, nil
	default:
		return "", fmt.Errorf("unknown sample format %q", s)
	}
}

func (f SampleFormat) Width() int {
	if f == FormatS16LE {
		return 2
	}
	return 4
}

// Decode converts one binary frame into normalized float32 samples.
func (f SampleFormat) Decode(frame []byte) ([]float32, error) {
	if len(frame)%f.Width() != 0 {
		return nil, fmt.Errorf("%w: %d bytes for %s", ErrMisalignedFrame, len(frame), f)
	}
	if f == FormatS16LE {
		return Int16ToFloat32(PCMBytesToInt16(frame)), nil
	}
	return PCMBytesToFloat32(frame), nil
}

func Resample(input []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 {
		return input
	}

	ratio := float64(toRate) / float64(fromRate)
	output := make([]float32, int(math.Ceil(float64(len(input))*ratio)))

	for i := range output {
		srcPos := float64(i) / ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		switch {
		case srcIdx+1 < len(input):
			output[i] = input[srcIdx]*(1-frac) + input[srcIdx+1]*frac
		case srcIdx < len(input):
			output[i] = input[srcIdx]
		}
	}
	return output
}

func PCMBytesToFloat32(pcm []byte) []float32 {
	samples := make([]float32, len(pcm)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(pcm[i*4:]))
	}
	return samples
}

func PCMBytesToInt16(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func Int16ToFloat32(samples []int16) []float32 {
	result := make([]float32, len(samples))
	for i, s := range samples {
		result[i] = float32(s) / 32768.0
	}
	return result
}

func Float32ToInt16(samples []float32) []int16 {
	result := make([]int16, len(samples))
	for i, s := range samples {
		result[i] = int16(clamp(s) * 32767.0)
	}
	return result
}

// ApplyGain scales samples in place and clips them to [-1, 1].
func ApplyGain(samples []float32, gain float32) {
	if gain == 1 {
		return
	}
	for i, s := range samples {
		samples[i] = clamp(s * gain)
	}
}

func Peak(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

func clamp(s float32) float32 {
	switch {
	case s > 1.0:
		return 1.0
	case s < -1.0:
		return -1.0
	case math.IsNaN(float64(s)):
		return 0
	}
	return s
}

package audio

import (
	"fmt"
	"math"
)

// DecodeMulaw converts G.711 PCMU (μ-law) to 16-bit little-endian linear PCM
func DecodeMulaw(mulawData []byte) ([]byte, error) {
	if len(mulawData) == 0 {
		return nil, fmt.Errorf("empty PCMU data")
	}

	pcmData := make([]byte, len(mulawData)*2) // 16-bit output

	for i, mulawByte := range mulawData {
		sample := mulawToLinear(mulawByte)
		pcmData[i*2] = byte(sample)
		pcmData[i*2+1] = byte(sample >> 8)
	}

	return pcmData, nil
}

// mulawToLinear converts an 8-bit μ-law sample to 16-bit linear PCM.
// G.711 works on a 14-bit magnitude; the result is scaled to the 16-bit range.
func mulawToLinear(mulawByte byte) int16 {
	// μ-law uses inverted representation
	mulawByte = ^mulawByte

	sign := mulawByte & 0x80
	segment := int32((mulawByte >> 4) & 0x07)
	mantissa := int32(mulawByte & 0x0F)

	// magnitude = ((mantissa << 1) + 33) << segment, minus the bias
	step := mantissa << (segment + 1)
	step += int32(33) << segment
	magnitude := (step - 33) << 2

	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}

// pcm16RMS calculates the root mean square (RMS) of little-endian PCM16
// bytes. Useful for detecting audio levels and silence.
func pcm16RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0.0
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		sample := float64(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		sum += sample * sample
	}

	return math.Sqrt(sum / float64(n))
}

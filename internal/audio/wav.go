package audio

import (
	"bytes"
	"encoding/binary"

	"github.com/lexiqai/meeting-summarizer/internal/apperrors"
)

// WAVE format codes
const (
	wavFormatPCM        = 0x0001
	wavFormatMulaw      = 0x0007
	wavFormatExtensible = 0xFFFE

	wavHeaderSize = 44
)

// wavUnknownSize is written by streaming encoders that never patch the header
const wavUnknownSize = 0xFFFFFFFF

type wavFormat struct {
	code          uint16
	channels      int
	sampleRate    int
	blockAlign    int
	bitsPerSample int
}

// ParseWAV decodes a RIFF/WAVE byte stream into a PCM16 source. PCM 16-bit
// (plain or WAVE_FORMAT_EXTENSIBLE) is returned as is; G.711 μ-law is decoded
// to PCM16. The returned source aliases data for PCM input.
func ParseWAV(data []byte) (*Source, error) {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return nil, apperrors.InvalidAudio(apperrors.StageLoad, "not a RIFF/WAVE stream")
	}

	var (
		format  *wavFormat
		payload []byte
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := binary.LittleEndian.Uint32(data[pos+4 : pos+8])
		body := pos + 8

		end := body + int(size)
		if size == wavUnknownSize && id == "data" {
			end = len(data)
		}
		if end > len(data) || end < body {
			return nil, apperrors.InvalidAudio(apperrors.StageLoad, "truncated %q chunk: %d bytes declared, %d available", id, size, len(data)-body)
		}

		switch id {
		case "fmt ":
			f, err := parseFormat(data[body:end])
			if err != nil {
				return nil, err
			}
			format = f
		case "data":
			payload = data[body:end]
		}

		// Chunks are word aligned
		pos = end + (end-body)%2
		if payload != nil && format != nil {
			break
		}
	}

	if format == nil {
		return nil, apperrors.InvalidAudio(apperrors.StageLoad, "missing fmt chunk")
	}
	if payload == nil {
		return nil, apperrors.InvalidAudio(apperrors.StageLoad, "missing data chunk")
	}

	switch format.code {
	case wavFormatPCM:
		if format.bitsPerSample != 16 {
			return nil, apperrors.InvalidAudio(apperrors.StageLoad, "unsupported PCM bit depth %d", format.bitsPerSample)
		}
		// Drop a partial trailing frame
		payload = payload[:len(payload)-len(payload)%(format.channels*2)]
		return NewSource(FormatPCM16, format.sampleRate, format.channels, payload)

	case wavFormatMulaw:
		if format.bitsPerSample != 8 {
			return nil, apperrors.InvalidAudio(apperrors.StageLoad, "unsupported mu-law bit depth %d", format.bitsPerSample)
		}
		payload = payload[:len(payload)-len(payload)%format.channels]
		if len(payload) == 0 {
			return nil, apperrors.InvalidAudio(apperrors.StageLoad, "empty mu-law data chunk")
		}
		pcm, err := DecodeMulaw(payload)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.StageLoad, apperrors.KindInvalidAudio, err, "decode mu-law")
		}
		return NewSource(FormatMulaw, format.sampleRate, format.channels, pcm)
	}

	return nil, apperrors.InvalidAudio(apperrors.StageLoad, "unsupported WAVE format 0x%04x", format.code)
}

func parseFormat(b []byte) (*wavFormat, error) {
	if len(b) < 16 {
		return nil, apperrors.InvalidAudio(apperrors.StageLoad, "fmt chunk too short: %d bytes", len(b))
	}

	f := &wavFormat{
		code:          binary.LittleEndian.Uint16(b[0:2]),
		channels:      int(binary.LittleEndian.Uint16(b[2:4])),
		sampleRate:    int(binary.LittleEndian.Uint32(b[4:8])),
		blockAlign:    int(binary.LittleEndian.Uint16(b[12:14])),
		bitsPerSample: int(binary.LittleEndian.Uint16(b[14:16])),
	}

	if f.code == wavFormatExtensible {
		// cbSize(2) validBits(2) channelMask(4) subFormat GUID(16)
		if len(b) < 40 {
			return nil, apperrors.InvalidAudio(apperrors.StageLoad, "extensible fmt chunk too short: %d bytes", len(b))
		}
		f.code = binary.LittleEndian.Uint16(b[24:26])
	}

	if f.channels == 0 || f.sampleRate == 0 {
		return nil, apperrors.InvalidAudio(apperrors.StageLoad, "invalid layout: %d channels at %d Hz", f.channels, f.sampleRate)
	}
	return f, nil
}

// EncodeWAV wraps little-endian PCM16 samples in a canonical 44-byte header
func EncodeWAV(sampleRate, channels int, pcm []byte) []byte {
	blockAlign := channels * 2
	out := make([]byte, wavHeaderSize+len(pcm))

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], 16)

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[wavHeaderSize:], pcm)

	return out
}

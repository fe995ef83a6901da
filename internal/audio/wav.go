package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Sentinel errors for the audio pipeline
var (
	// ErrEncoding indicates WAV construction failed. Fatal to the current
	// chunk only, never to the session.
	ErrEncoding = errors.New("audio: encoding failed")
	// ErrMediaAccess indicates the capture device could not be acquired.
	ErrMediaAccess = errors.New("audio: media access denied")
)

const (
	wavHeaderSize    = 44
	bytesPerSample   = 2 // 16-bit PCM
	pcmFormatTag     = 1
	fmtChunkSizePCM  = 16
	encodingChannels = 1 // mono throughout the capture path
)

// EncodeWAV converts 32-bit float PCM samples into a 16-bit PCM mono WAV
// byte buffer (RIFF container). Samples are clamped to [-1, 1].
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", ErrEncoding, sampleRate)
	}

	dataSize := len(samples) * bytesPerSample
	buf := make([]byte, wavHeaderSize+dataSize)

	writeWAVHeader(buf, sampleRate, encodingChannels, uint32(dataSize))

	// Asymmetric scaling matches the int16 range: -32768..32767.
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		var v int16
		if s < 0 {
			v = int16(s * 0x8000)
		} else {
			v = int16(s * 0x7FFF)
		}
		binary.LittleEndian.PutUint16(buf[wavHeaderSize+i*bytesPerSample:], uint16(v))
	}

	return buf, nil
}

// writeWAVHeader writes a 44-byte RIFF/WAVE header for 16-bit PCM
func writeWAVHeader(buf []byte, sampleRate, channels int, dataSize uint32) {
	byteRate := uint32(sampleRate * channels * bytesPerSample)
	blockAlign := uint16(channels * bytesPerSample)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], 36+dataSize)
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], fmtChunkSizePCM)
	binary.LittleEndian.PutUint16(buf[20:22], pcmFormatTag)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], byteRate)
	binary.LittleEndian.PutUint16(buf[32:34], blockAlign)
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bytesPerSample*8))

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], dataSize)
}

// DecodeWAV parses a 16-bit PCM WAV buffer and returns the samples as
// float32 in [-1, 1] along with the sample rate. Used by the agent playback
// path to feed synthesized speech into the outgoing track.
func DecodeWAV(data []byte) ([]float32, int, error) {
	if len(data) < wavHeaderSize {
		return nil, 0, fmt.Errorf("%w: buffer shorter than WAV header", ErrEncoding)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%w: not a RIFF/WAVE buffer", ErrEncoding)
	}

	format := binary.LittleEndian.Uint16(data[20:22])
	if format != pcmFormatTag {
		return nil, 0, fmt.Errorf("%w: unsupported format tag %d", ErrEncoding, format)
	}
	channels := int(binary.LittleEndian.Uint16(data[22:24]))
	sampleRate := int(binary.LittleEndian.Uint32(data[24:28]))
	bits := binary.LittleEndian.Uint16(data[34:36])
	if bits != 16 {
		return nil, 0, fmt.Errorf("%w: unsupported bit depth %d", ErrEncoding, bits)
	}

	pcm := data[wavHeaderSize:]
	declared := binary.LittleEndian.Uint32(data[40:44])
	if int(declared) < len(pcm) {
		pcm = pcm[:declared]
	}

	frameCount := len(pcm) / (bytesPerSample * channels)
	samples := make([]float32, frameCount)
	for i := 0; i < frameCount; i++ {
		// Downmix to mono by taking the first channel
		v := int16(binary.LittleEndian.Uint16(pcm[i*bytesPerSample*channels:]))
		samples[i] = float32(v) / 0x8000
	}

	return samples, sampleRate, nil
}

// RMS computes the root-mean-square amplitude of a frame
func RMS(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

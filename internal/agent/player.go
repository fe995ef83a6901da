package agent

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	soxr "github.com/zaf/resample"
	opus "gopkg.in/hraban/opus.v2"

	"github.com/guardline-io/guardline/internal/audio"
	"github.com/guardline-io/guardline/pkg/logger"
)

const (
	playbackRate  = 48000
	frameDuration = 20 * time.Millisecond
	frameSamples  = playbackRate / 50 // 960 samples per 20ms frame
)

// TrackPlayer streams synthesized WAV speech into an outgoing WebRTC track.
// The input WAV may use any sample rate; frames are resampled to 48kHz and
// opus-encoded before transmission.
type TrackPlayer struct {
	track   *webrtc.TrackLocalStaticSample
	encoder *opus.Encoder
	logger  *logger.Logger
}

// NewTrackPlayer creates the playback track and its encoder
func NewTrackPlayer(log *logger.Logger) (*TrackPlayer, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: playbackRate, Channels: 1},
		"agent-audio", "guardline-agent")
	if err != nil {
		return nil, fmt.Errorf("%w: playback track: %v", ErrAgentService, err)
	}

	encoder, err := opus.NewEncoder(playbackRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("%w: opus encoder: %v", ErrAgentService, err)
	}

	return &TrackPlayer{
		track:   track,
		encoder: encoder,
		logger:  log.Named("agent-player"),
	}, nil
}

// Track returns the outgoing track for sender replacement
func (p *TrackPlayer) Track() webrtc.TrackLocal {
	return p.track
}

// Play streams the WAV audio to the track in real time. It blocks until the
// audio is fully sent or the context is cancelled.
func (p *TrackPlayer) Play(ctx context.Context, wavData []byte) error {
	samples, rate, err := audio.DecodeWAV(wavData)
	if err != nil {
		return fmt.Errorf("%w: decode TTS audio: %v", ErrAgentService, err)
	}
	if len(samples) == 0 {
		return nil
	}

	pcm := pcm16FromFloat(samples)
	if rate != playbackRate {
		pcm, err = resamplePCM(pcm, rate, playbackRate)
		if err != nil {
			return err
		}
	}

	// Pad the tail so the encoder always sees full frames
	if rem := len(pcm) % frameSamples; rem != 0 {
		pcm = append(pcm, make([]int16, frameSamples-rem)...)
	}

	packet := make([]byte, 1500)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for offset := 0; offset < len(pcm); offset += frameSamples {
		n, err := p.encoder.Encode(pcm[offset:offset+frameSamples], packet)
		if err != nil {
			return fmt.Errorf("%w: opus encode: %v", ErrAgentService, err)
		}

		if err := p.track.WriteSample(media.Sample{
			Data:     append([]byte(nil), packet[:n]...),
			Duration: frameDuration,
		}); err != nil {
			return fmt.Errorf("%w: write sample: %v", ErrAgentService, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	p.logger.Debug("Finished speech playback",
		logger.Int("frames", len(pcm)/frameSamples))
	return nil
}

// pcm16FromFloat converts normalized float samples to 16-bit PCM, clamping
// out-of-range values.
func pcm16FromFloat(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		if s < 0 {
			out[i] = int16(s * 0x8000)
		} else {
			out[i] = int16(s * 0x7FFF)
		}
	}
	return out
}

// resamplePCM converts mono PCM between sample rates
func resamplePCM(pcm []int16, fromRate, toRate int) ([]int16, error) {
	buf := &bytes.Buffer{}
	resampler, err := soxr.New(buf, float64(fromRate), float64(toRate), 1, soxr.I16, soxr.HighQ)
	if err != nil {
		return nil, fmt.Errorf("%w: create resampler: %v", ErrAgentService, err)
	}

	input := make([]byte, len(pcm)*2)
	for i, sample := range pcm {
		binary.LittleEndian.PutUint16(input[i*2:], uint16(sample))
	}
	if _, err := resampler.Write(input); err != nil {
		resampler.Close()
		return nil, fmt.Errorf("%w: resampler write: %v", ErrAgentService, err)
	}
	// Close flushes the tail of the conversion window
	if err := resampler.Close(); err != nil {
		return nil, fmt.Errorf("%w: resampler flush: %v", ErrAgentService, err)
	}

	output := buf.Bytes()
	out := make([]int16, len(output)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(output[i*2:]))
	}
	return out, nil
}

package audio

import "time"

// VAD is an RMS amplitude gate with a hangover window. A frame below the
// threshold is still considered voiced until the breach has persisted past
// the hangover window, so speech onsets and tails are never clipped. Any
// frame above the threshold flips the gate back to voiced immediately.
type VAD struct {
	threshold  float64
	hangover   time.Duration
	voiced     bool
	silentFor  time.Duration
	frameDur   time.Duration
	sampleRate int
}

// NewVAD creates a voice-activity detector for the given sample rate
func NewVAD(threshold float64, hangover time.Duration, sampleRate int) *VAD {
	return &VAD{
		threshold:  threshold,
		hangover:   hangover,
		sampleRate: sampleRate,
	}
}

// Accept reports whether the frame should be retained for encoding
func (v *VAD) Accept(frame []float32) bool {
	if v.sampleRate > 0 {
		v.frameDur = time.Duration(len(frame)) * time.Second / time.Duration(v.sampleRate)
	}

	if RMS(frame) >= v.threshold {
		v.voiced = true
		v.silentFor = 0
		return true
	}

	if !v.voiced {
		return false
	}

	// Below threshold while voiced: keep the trailing hangover, then drop.
	v.silentFor += v.frameDur
	if v.silentFor > v.hangover {
		v.voiced = false
		v.silentFor = 0
		return false
	}
	return true
}

// Reset clears the gate state
func (v *VAD) Reset() {
	v.voiced = false
	v.silentFor = 0
}

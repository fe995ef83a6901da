package audio

import (
	"testing"
	"time"
)

func loudFrame(n int) []float32 {
	f := make([]float32, n)
	for i := range f {
		f[i] = 0.5
	}
	return f
}

func silentFrame(n int) []float32 {
	return make([]float32, n)
}

func TestVADRejectsLeadingSilence(t *testing.T) {
	v := NewVAD(0.1, 250*time.Millisecond, 1000)
	if v.Accept(silentFrame(100)) {
		t.Error("silent frame before any speech should be rejected")
	}
}

func TestVADHangover(t *testing.T) {
	// 100-sample frames at 1kHz are 100ms each; 250ms hangover keeps two
	// trailing silent frames and drops the third.
	v := NewVAD(0.1, 250*time.Millisecond, 1000)

	if !v.Accept(loudFrame(100)) {
		t.Fatal("loud frame should be accepted")
	}
	if !v.Accept(silentFrame(100)) {
		t.Error("first silent frame within hangover should be accepted")
	}
	if !v.Accept(silentFrame(100)) {
		t.Error("second silent frame within hangover should be accepted")
	}
	if v.Accept(silentFrame(100)) {
		t.Error("silent frame past hangover should be rejected")
	}
	if v.Accept(silentFrame(100)) {
		t.Error("silence after gate closed should be rejected")
	}
}

func TestVADReopensOnSpeech(t *testing.T) {
	v := NewVAD(0.1, 100*time.Millisecond, 1000)

	v.Accept(loudFrame(100))
	v.Accept(silentFrame(100))
	v.Accept(silentFrame(100)) // gate closes here

	if !v.Accept(loudFrame(100)) {
		t.Error("speech should reopen the gate immediately")
	}
}

func TestVADReset(t *testing.T) {
	v := NewVAD(0.1, time.Second, 1000)
	v.Accept(loudFrame(100))
	v.Reset()

	if v.Accept(silentFrame(100)) {
		t.Error("silence after reset should be rejected despite prior speech")
	}
}

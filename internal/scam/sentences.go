package scam

import "strings"

// SentenceSegmenter accumulates transcription fragments and yields completed
// sentences. A trailing fragment without terminal punctuation is held until
// the next push completes it (or Drain is called at end of session).
type SentenceSegmenter struct {
	pending string
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？': // includes CJK terminals
		return true
	}
	return false
}

// Push appends transcribed text and returns any newly completed sentences
func (s *SentenceSegmenter) Push(text string) []string {
	combined := s.pending + " " + text
	s.pending = ""

	var sentences []string
	var current strings.Builder
	for _, r := range combined {
		current.WriteRune(r)
		if isTerminal(r) {
			sentence := strings.TrimSpace(current.String())
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
		}
	}

	s.pending = strings.TrimSpace(current.String())
	return sentences
}

// HasPending reports whether a fragment is being held
func (s *SentenceSegmenter) HasPending() bool {
	return s.pending != ""
}

// Drain returns the held fragment, if any, and clears it
func (s *SentenceSegmenter) Drain() string {
	out := s.pending
	s.pending = ""
	return out
}

package scam

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// RiskLevel classifies an utterance or session
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Risk level thresholds, shared by per-utterance and session classification
const (
	highScoreThreshold   = 0.7
	mediumScoreThreshold = 0.4

	fuzzyMatchThreshold = 0.72
	criticalWeight      = 0.95
	escalationScore     = 0.85
)

// Match is a cataloged pattern that matched a text, with its effective weight
type Match struct {
	Pattern Pattern
	Weight  float64
}

// Detection is the result of local scam analysis over one utterance
type Detection struct {
	Score   float64
	Matches []Match
}

// normalizeText lowercases, NFKD-decomposes, strips everything that is not a
// letter or digit, and collapses whitespace.
func normalizeText(s string) string {
	decomposed := norm.NFKD.String(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(decomposed))
	lastSpace := true
	for _, r := range decomposed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
		} else if !lastSpace {
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

func tokenize(s string) []string {
	return strings.Fields(normalizeText(s))
}

// jaccard computes token-set Jaccard similarity
func jaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}

	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA)
	for t := range setB {
		if _, ok := setA[t]; !ok {
			union++
		}
	}
	if union == 0 {
		union = 1
	}
	return float64(inter) / float64(union)
}

// charBigrams returns the character bigrams of the normalized string
func charBigrams(s string) []string {
	n := []rune(normalizeText(s))
	if len(n) < 2 {
		return []string{string(n)}
	}
	grams := make([]string, 0, len(n)-1)
	for i := 0; i < len(n)-1; i++ {
		grams = append(grams, string(n[i:i+2]))
	}
	return grams
}

// dice computes the Sorensen-Dice coefficient over bigram multiset overlap
func dice(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	setB := make(map[string]struct{}, len(b))
	for _, g := range b {
		setB[g] = struct{}{}
	}
	overlap := 0
	for _, g := range a {
		if _, ok := setB[g]; ok {
			overlap++
		}
	}
	denom := len(a) + len(b)
	if denom == 0 {
		denom = 1
	}
	return 2 * float64(overlap) / float64(denom)
}

// similarity combines token Jaccard and character-bigram Dice
func similarity(a, b string) float64 {
	t := jaccard(tokenize(a), tokenize(b))
	d := dice(charBigrams(a), charBigrams(b))
	return 0.5*t + 0.5*d
}

// Detect classifies arbitrary utterance text for scam likelihood using the
// static pattern catalog. It requires no network access.
func Detect(text string) Detection {
	normalized := normalizeText(text)
	var matches []Match

	for _, pattern := range Patterns {
		// Direct substring match is a strong signal, weight used as-is
		if directMatch(normalized, pattern) {
			matches = append(matches, Match{Pattern: pattern, Weight: pattern.Weight})
			continue
		}

		// Fuzzy match over phrase and variants, take the maximum
		maxSim := similarity(normalized, pattern.Phrase)
		for _, v := range pattern.Variants {
			if s := similarity(normalized, v); s > maxSim {
				maxSim = s
			}
		}
		if maxSim >= fuzzyMatchThreshold {
			boosted := pattern.Weight * (0.8 + 0.2*maxSim)
			if boosted > 1 {
				boosted = 1
			}
			// Boost never lowers the cataloged weight
			if boosted < pattern.Weight {
				boosted = pattern.Weight
			}
			matches = append(matches, Match{Pattern: pattern, Weight: boosted})
		}
	}

	if len(matches) == 0 {
		return Detection{}
	}

	totalWeight := 0.0
	categories := make(map[string]struct{})
	hasCritical := false
	for _, m := range matches {
		totalWeight += m.Weight
		categories[m.Pattern.Category] = struct{}{}
		if m.Weight >= criticalWeight {
			hasCritical = true
		}
	}

	diversityBoost := 1 + minFloat(0.5, float64(len(categories)-1)*0.15)
	score := totalWeight / float64(len(matches)) * diversityBoost
	if score > 1 {
		score = 1
	}

	// Multiple strong independent cues override averaging
	if hasCritical && len(matches) >= 2 && score < escalationScore {
		score = escalationScore
	}

	return Detection{Score: score, Matches: matches}
}

func directMatch(normalizedText string, pattern Pattern) bool {
	if strings.Contains(normalizedText, normalizeText(pattern.Phrase)) {
		return true
	}
	for _, v := range pattern.Variants {
		if strings.Contains(normalizedText, normalizeText(v)) {
			return true
		}
	}
	return false
}

// LevelForScore maps a score to a risk level. This is the single mapping
// used everywhere a level is derived from a score.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score >= highScoreThreshold:
		return RiskHigh
	case score >= mediumScoreThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// MatchesFinancialBait reports whether the text contains a blunt financial
// bait keyword.
func MatchesFinancialBait(text string) bool {
	return containsAnyKeyword(text, financialBaitKeywords)
}

// MatchesSensitiveData reports whether the text requests one-time codes,
// passwords or similar credentials.
func MatchesSensitiveData(text string) bool {
	return containsAnyKeyword(text, sensitiveDataKeywords)
}

func containsAnyKeyword(text string, keywords []string) bool {
	normalized := normalizeText(text)
	for _, kw := range keywords {
		if strings.Contains(normalized, normalizeText(kw)) {
			return true
		}
	}
	return false
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

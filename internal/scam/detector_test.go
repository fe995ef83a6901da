package scam

import "testing"

func TestDetectBenignTextScoresZero(t *testing.T) {
	tests := []string{
		"",
		"The weather is lovely this afternoon.",
		"I will meet you at the library tomorrow morning.",
		"This is a confirmation of your recent purchase.",
	}
	for _, text := range tests {
		d := Detect(text)
		if d.Score != 0 {
			t.Errorf("Detect(%q).Score = %f, want 0 (matches: %d)", text, d.Score, len(d.Matches))
		}
		if len(d.Matches) != 0 {
			t.Errorf("Detect(%q) matched %d patterns, want 0", text, len(d.Matches))
		}
	}
}

func TestDetectVerbatimPhrase(t *testing.T) {
	d := Detect("This is urgent action required on your part")
	if len(d.Matches) == 0 {
		t.Fatal("verbatim catalog phrase should match")
	}
	if d.Score < 0.7 {
		t.Errorf("score = %f, want >= 0.7", d.Score)
	}
	if LevelForScore(d.Score) != RiskHigh {
		t.Errorf("level = %s, want high", LevelForScore(d.Score))
	}
}

func TestDetectVariantPhrase(t *testing.T) {
	// "account locked" is a cataloged variant of "account suspended"
	d := Detect("sir your account locked please listen carefully")
	if len(d.Matches) == 0 {
		t.Fatal("cataloged variant should match")
	}
	if d.Score < 0.7 {
		t.Errorf("score = %f, want >= 0.7", d.Score)
	}
}

func TestDetectCaseAndPunctuationInsensitive(t *testing.T) {
	a := Detect("urgent action required")
	b := Detect("URGENT!!! Action... Required???")
	if a.Score != b.Score {
		t.Errorf("normalization should make scores equal: %f vs %f", a.Score, b.Score)
	}
}

func TestDetectCriticalEscalation(t *testing.T) {
	// "lottery prize" (weight 1.0, critical) plus "claim your prize" and
	// "congratulations" pulls the mean down, but two matches with a critical
	// cue escalate to at least 0.85.
	d := Detect("Congratulations, you won the lottery prize, claim your prize today")
	if len(d.Matches) < 2 {
		t.Fatalf("expected at least 2 matches, got %d", len(d.Matches))
	}
	if d.Score < 0.85 {
		t.Errorf("score = %f, want >= 0.85 after critical escalation", d.Score)
	}
	if LevelForScore(d.Score) != RiskHigh {
		t.Errorf("level = %s, want high", LevelForScore(d.Score))
	}
}

func TestDetectCategoryDiversityBoost(t *testing.T) {
	single := Detect("act now")
	multi := Detect("act now and verify your account")
	if len(multi.Matches) < 2 {
		t.Fatalf("expected multi-category matches, got %d", len(multi.Matches))
	}
	if multi.Score <= single.Score {
		t.Errorf("cross-category matches should score higher: %f <= %f", multi.Score, single.Score)
	}
}

func TestDetectScoreNeverExceedsOne(t *testing.T) {
	d := Detect("urgent action required, account suspended, arrest warrant, send money via western union, remote access to your computer, social security number")
	if d.Score > 1 {
		t.Errorf("score = %f, want <= 1", d.Score)
	}
}

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  RiskLevel
	}{
		{0, RiskLow},
		{0.39, RiskLow},
		{0.4, RiskMedium},
		{0.69, RiskMedium},
		{0.7, RiskHigh},
		{1, RiskHigh},
	}
	for _, tt := range tests {
		if got := LevelForScore(tt.score); got != tt.want {
			t.Errorf("LevelForScore(%f) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestMatchesFinancialBait(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"please buy a gift card for me", true},
		{"pay with Bitcoin right away", true},
		{"send it via Western Union", true},
		{"let's have lunch tomorrow", false},
	}
	for _, tt := range tests {
		if got := MatchesFinancialBait(tt.text); got != tt.want {
			t.Errorf("MatchesFinancialBait(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestMatchesSensitiveData(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"read me the verification code from your phone", true},
		{"what is your password", true},
		{"tell me the OTP", true},
		{"how was your weekend", false},
	}
	for _, tt := range tests {
		if got := MatchesSensitiveData(tt.text); got != tt.want {
			t.Errorf("MatchesSensitiveData(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "hello world"},
		{"  spaced   out  ", "spaced out"},
		{"MiXeD-CaSe_42", "mixed case 42"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeText(tt.in); got != tt.want {
			t.Errorf("normalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

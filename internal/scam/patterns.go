package scam

// Pattern represents a cataloged scam phrase with common paraphrases
type Pattern struct {
	Phrase   string
	Weight   float64 // (0, 1]
	Category string
	Variants []string
}

// Patterns is the static reference catalog, read-only at runtime
var Patterns = []Pattern{
	// Urgency tactics
	{Phrase: "act now", Weight: 0.8, Category: "urgency", Variants: []string{"take action now", "right away"}},
	{Phrase: "limited time", Weight: 0.7, Category: "urgency", Variants: []string{"offer ends soon", "time sensitive"}},
	{Phrase: "expires today", Weight: 0.9, Category: "urgency", Variants: []string{"deadline today", "last day"}},
	{Phrase: "urgent action required", Weight: 1.0, Category: "urgency", Variants: []string{"urgent response required", "immediate attention required"}},
	{Phrase: "immediate response", Weight: 0.8, Category: "urgency", Variants: []string{"respond immediately"}},

	// Financial threats
	{Phrase: "account suspended", Weight: 0.95, Category: "financial", Variants: []string{"account locked", "account disabled"}},
	{Phrase: "unauthorized access", Weight: 0.85, Category: "financial", Variants: []string{"suspicious login", "security alert"}},
	{Phrase: "verify your account", Weight: 0.8, Category: "financial", Variants: []string{"confirm your account", "account verification"}},
	{Phrase: "payment failed", Weight: 0.7, Category: "financial", Variants: []string{"payment declined", "transaction failed"}},
	{Phrase: "refund pending", Weight: 0.75, Category: "financial", Variants: []string{"refund available", "claim refund"}},
	{Phrase: "wire transfer", Weight: 0.85, Category: "financial", Variants: []string{"bank transfer", "swift transfer"}},
	{Phrase: "gift cards", Weight: 0.9, Category: "financial", Variants: []string{"itune cards", "steam cards", "google play cards"}},

	// Authority impersonation
	{Phrase: "irs calling", Weight: 1.0, Category: "authority", Variants: []string{"tax department", "revenue service"}},
	{Phrase: "social security", Weight: 0.95, Category: "authority", Variants: []string{"ssa", "ssn"}},
	{Phrase: "legal action", Weight: 0.85, Category: "authority", Variants: []string{"lawsuit", "legal proceedings"}},
	{Phrase: "arrest warrant", Weight: 1.0, Category: "authority", Variants: []string{"police warrant", "custody order"}},
	{Phrase: "court case", Weight: 0.8, Category: "authority", Variants: []string{"court notice", "case against you"}},
	{Phrase: "immigration department", Weight: 0.9, Category: "authority", Variants: []string{"uscis", "visa suspension"}},

	// Tech support
	{Phrase: "computer infected", Weight: 0.9, Category: "tech", Variants: []string{"system infected", "device infected"}},
	{Phrase: "virus detected", Weight: 0.85, Category: "tech", Variants: []string{"malware detected", "trojan detected"}},
	{Phrase: "microsoft support", Weight: 0.9, Category: "tech", Variants: []string{"windows support", "tech support"}},
	{Phrase: "remote access", Weight: 1.0, Category: "tech", Variants: []string{"anydesk", "teamviewer", "share screen", "grant access"}},
	{Phrase: "fix your computer", Weight: 0.75, Category: "tech", Variants: []string{"repair your pc", "resolve issues"}},

	// Prize/lottery
	{Phrase: "you've won", Weight: 0.9, Category: "prize", Variants: []string{"you are a winner", "winner selected"}},
	{Phrase: "congratulations", Weight: 0.5, Category: "prize", Variants: []string{"lucky winner", "grand prize"}},
	{Phrase: "lottery winner", Weight: 1.0, Category: "prize", Variants: []string{"jackpot", "lottery prize"}},
	{Phrase: "claim your prize", Weight: 0.85, Category: "prize", Variants: []string{"collect your reward", "redeem prize"}},
	{Phrase: "free gift", Weight: 0.7, Category: "prize", Variants: []string{"complimentary gift", "no cost gift"}},

	// Personal info requests
	{Phrase: "confirm your", Weight: 0.75, Category: "personal", Variants: []string{"validate your", "verify your"}},
	{Phrase: "social security number", Weight: 1.0, Category: "personal", Variants: []string{"ssn", "social number"}},
	{Phrase: "date of birth", Weight: 0.85, Category: "personal", Variants: []string{"dob", "birth date"}},
	{Phrase: "mother's maiden name", Weight: 0.95, Category: "personal", Variants: []string{"maiden name"}},
	{Phrase: "bank account", Weight: 0.95, Category: "personal", Variants: []string{"account number", "routing number"}},
	{Phrase: "one time password", Weight: 0.95, Category: "personal", Variants: []string{"otp", "verification code"}},

	// Romance/relationship
	{Phrase: "send money", Weight: 1.0, Category: "romance", Variants: []string{"money transfer", "funds needed"}},
	{Phrase: "emergency funds", Weight: 0.95, Category: "romance", Variants: []string{"urgent money", "hospital bills"}},
	{Phrase: "western union", Weight: 1.0, Category: "romance", Variants: []string{"moneygram", "wire via wu"}},

	// Crypto / investment
	{Phrase: "guaranteed returns", Weight: 0.95, Category: "investment", Variants: []string{"sure profits", "risk-free returns"}},
	{Phrase: "crypto wallet", Weight: 0.9, Category: "investment", Variants: []string{"bitcoin wallet", "seed phrase"}},
	{Phrase: "seed phrase", Weight: 1.0, Category: "investment", Variants: []string{"private key", "recovery phrase"}},
	{Phrase: "investment opportunity", Weight: 0.8, Category: "investment", Variants: []string{"limited slots", "early access"}},
}

// financialBaitKeywords are blunt financial bait words that force the
// session risk to at least the override floor regardless of the smoothing
// average.
var financialBaitKeywords = []string{
	"gift card",
	"wire transfer",
	"western union",
	"moneygram",
	"send money",
	"bank account",
	"routing number",
	"bitcoin",
	"crypto",
}

// sensitiveDataKeywords identify requests for one-time codes and passwords.
// The first utterance matching one of these triggers a one-shot
// mute-and-warn action, independent of the numeric risk pipeline.
var sensitiveDataKeywords = []string{
	"one time password",
	"one time code",
	"verification code",
	"security code",
	"otp",
	"password",
	"passcode",
	"pin number",
}

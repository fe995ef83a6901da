package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Detected is a language identified from transcript text
type Detected struct {
	Code string `json:"code"` // ISO-639-1
	Name string `json:"name"`
}

// minDetectLength guards against noise: trigram detection on very short
// fragments is unreliable.
const minDetectLength = 10

// supportedCodes are the languages offered by the call UI selector
var supportedCodes = []string{
	"en", "es", "fr", "de", "hi", "zh", "ja", "ko", "ru", "ar",
	"pt", "it", "nl", "tr", "vi", "th", "pl", "sv", "no", "da",
	"fi", "cs", "el", "he", "uk", "id", "ms", "ro", "hu", "ta",
	"te", "bn", "ur",
}

// iso3to1 maps the detector's ISO-639-3 output onto the two-letter codes
// used by the transcription service contract.
var iso3to1 = map[string]string{
	"eng": "en", "spa": "es", "fra": "fr", "deu": "de", "hin": "hi",
	"cmn": "zh", "jpn": "ja", "kor": "ko", "rus": "ru", "arb": "ar",
	"por": "pt", "ita": "it", "nld": "nl", "tur": "tr", "vie": "vi",
	"tha": "th", "pol": "pl", "swe": "sv", "nob": "no", "dan": "da",
	"fin": "fi", "ces": "cs", "ell": "el", "heb": "he", "ukr": "uk",
	"ind": "id", "zsm": "ms", "ron": "ro", "hun": "hu", "tam": "ta",
	"tel": "te", "ben": "bn", "urd": "ur",
}

// DetectFromText identifies the language of transcript text. Returns nil for
// short or unrecognizable input. Pure function; never blocks the pipeline.
func DetectFromText(text string) *Detected {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minDetectLength {
		return nil
	}

	info := whatlanggo.Detect(trimmed)
	if !info.IsReliable() {
		return nil
	}

	code3 := whatlanggo.LangToString(info.Lang)
	code2, ok := iso3to1[code3]
	if !ok {
		return nil
	}

	return &Detected{Code: code2, Name: info.Lang.String()}
}

// Supported returns the selectable language list
func Supported() []Detected {
	out := make([]Detected, 0, len(supportedCodes))
	for _, code := range supportedCodes {
		out = append(out, Detected{Code: code, Name: nameForCode(code)})
	}
	return out
}

var codeNames = map[string]string{
	"en": "English", "es": "Spanish", "fr": "French", "de": "German",
	"hi": "Hindi", "zh": "Chinese", "ja": "Japanese", "ko": "Korean",
	"ru": "Russian", "ar": "Arabic", "pt": "Portuguese", "it": "Italian",
	"nl": "Dutch", "tr": "Turkish", "vi": "Vietnamese", "th": "Thai",
	"pl": "Polish", "sv": "Swedish", "no": "Norwegian", "da": "Danish",
	"fi": "Finnish", "cs": "Czech", "el": "Greek", "he": "Hebrew",
	"uk": "Ukrainian", "id": "Indonesian", "ms": "Malay", "ro": "Romanian",
	"hu": "Hungarian", "ta": "Tamil", "te": "Telugu", "bn": "Bengali",
	"ur": "Urdu",
}

func nameForCode(code string) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return strings.ToUpper(code)
}

// IsSupported reports whether the given ISO-639-1 code is selectable
func IsSupported(code string) bool {
	for _, c := range supportedCodes {
		if c == code {
			return true
		}
	}
	return false
}

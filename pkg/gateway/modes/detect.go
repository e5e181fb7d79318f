package modes

import (
	"strings"
	"unicode"
)

// Switch phrase forms after normalization. Punctuation strips to
// nothing, so "Presto-Change-O" collapses to the compact form while
// "Presto Change O" keeps its spaces.
const (
	switchPhrase        = "presto change o"
	switchPhraseCompact = "prestochangeo"
	triggerHint         = "presto"
)

// Detection is the outcome of scanning an utterance for the switch
// phrase. Exactly one of ModeID and Industry is set: ModeID when a
// built-in keyword matched, Industry when the remainder of the phrase
// names something to generate.
type Detection struct {
	ModeID   string
	Industry string
}

// builtinKeywords maps keywords to built-in mode IDs, checked in order
// against the whole normalized utterance.
var builtinKeywords = []struct {
	words  []string
	modeID string
}{
	{[]string{"bank", "banking", "financial"}, "banking"},
	{[]string{"insurance", "insurer", "policy"}, "insurance"},
	{[]string{"health", "healthcare", "medical", "hospital", "doctor"}, "healthcare"},
}

// fillerWords are leading tokens stripped from the text following the
// switch phrase before the remainder is treated as an industry request,
// so "youre a florist" and "turn into a florist" both yield "florist".
var fillerWords = map[string]bool{
	"youre": true, "you": true, "are": true, "re": true, "im": true,
	"now": true, "a": true, "an": true, "the": true, "my": true,
	"into": true, "to": true, "be": true, "become": true,
	"make": true, "it": true, "this": true, "turn": true, "switch": true,
}

// MightSwitch is a cheap pre-check for the switch phrase. Callers use
// it to cancel in-flight responses before running full detection,
// which may involve a generation round trip.
func MightSwitch(text string) bool {
	return strings.Contains(strings.ToLower(text), triggerHint)
}

// DetectSwitch scans text for the switch phrase and resolves its
// target. Built-in keywords win over free-text industries. Returns
// false when the phrase is absent or names no target.
func DetectSwitch(text string) (Detection, bool) {
	normalized := normalize(text)
	if !strings.Contains(normalized, switchPhrase) &&
		!strings.Contains(normalized, switchPhraseCompact) {
		return Detection{}, false
	}

	for _, kw := range builtinKeywords {
		for _, w := range kw.words {
			if strings.Contains(normalized, w) {
				return Detection{ModeID: kw.modeID}, true
			}
		}
	}

	if industry := extractIndustry(normalized); industry != "" {
		return Detection{Industry: industry}, true
	}
	return Detection{}, false
}

// normalize lowercases and strips every rune that is neither a word
// character nor whitespace, so "Presto-Change-O!" and "prestochangeo"
// compare equal.
func normalize(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', unicode.IsSpace(r):
			return unicode.ToLower(r)
		default:
			return -1
		}
	}, text)
}

// extractIndustry takes the text after the switch phrase and trims
// leading filler, leaving the industry the user asked for.
func extractIndustry(normalized string) string {
	var rest string
	if i := strings.Index(normalized, switchPhrase); i >= 0 {
		rest = normalized[i+len(switchPhrase):]
	} else if i := strings.Index(normalized, switchPhraseCompact); i >= 0 {
		rest = normalized[i+len(switchPhraseCompact):]
	}

	words := strings.Fields(rest)
	for len(words) > 0 && fillerWords[words[0]] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

package phrase

import (
	"slices"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithPhoneticThreshold sets the Jaro-Winkler score a phonetically matching
// word must reach. Default: 0.70.
func WithPhoneticThreshold(t float64) MatcherOption {
	return func(m *Matcher) { m.phoneticThreshold = t }
}

// WithFuzzyThreshold sets the Jaro-Winkler score a word without phonetic
// overlap must reach. Default: 0.85.
func WithFuzzyThreshold(t float64) MatcherOption {
	return func(m *Matcher) { m.fuzzyThreshold = t }
}

// Matcher finds keywords in transcribed speech, tolerating the near misses
// a transcriber makes on infant speech ("mom" for "mama", "dad" for "dada").
//
// A word matches a keyword exactly, or when their Double Metaphone codes
// overlap and the Jaro-Winkler similarity reaches the phonetic threshold, or,
// failing that, when the similarity alone reaches the fuzzy threshold.
// Scripts without a phonetic encoding (Bengali) only match exactly.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewMatcher returns a Matcher with default thresholds.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Find returns the keyword from keywords that best matches a word of text.
func (m *Matcher) Find(text string, keywords []string) (string, bool) {
	words := tokenize(text)
	if len(words) == 0 || len(keywords) == 0 {
		return "", false
	}
	// Sorted so equal scores resolve the same way every time.
	keywords = slices.Sorted(slices.Values(keywords))

	best, bestScore, bestPhonetic := "", 0.0, false
	for _, kw := range keywords {
		key := strings.ToLower(strings.TrimSpace(kw))
		if key == "" {
			continue
		}
		if slices.Contains(words, key) {
			return kw, true
		}
		if !latin(key) {
			continue
		}
		kwCodes := codes(key)
		for _, w := range words {
			if !latin(w) {
				continue
			}
			score := matchr.JaroWinkler(w, key, false)
			phonetic := overlap(codes(w), kwCodes)
			switch {
			case phonetic && score >= m.phoneticThreshold:
				if !bestPhonetic || score > bestScore {
					best, bestScore, bestPhonetic = kw, score, true
				}
			case !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore:
				best, bestScore = kw, score
			}
		}
	}
	return best, best != ""
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsMark(r) && !unicode.IsDigit(r)
	})
}

func latin(s string) bool {
	for _, r := range s {
		if r > unicode.MaxLatin1 {
			return false
		}
	}
	return true
}

func codes(word string) []string {
	p, s := matchr.DoubleMetaphone(word)
	out := make([]string, 0, 2)
	if p != "" {
		out = append(out, p)
	}
	if s != "" && s != p {
		out = append(out, s)
	}
	return out
}

func overlap(a, b []string) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}

package converse

import "unicode"

// DetectLang returns "bn" when text is mostly Bengali script and "en"
// otherwise.
func DetectLang(text string) string {
	var bengali, latin int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Bengali, r):
			bengali++
		case unicode.IsLetter(r) && r <= unicode.MaxLatin1:
			latin++
		}
	}
	if bengali > latin {
		return "bn"
	}
	return "en"
}

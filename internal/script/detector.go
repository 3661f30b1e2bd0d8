// Package script detects the dominant writing system of a text sample and
// normalizes script identifiers to ISO 15924 codes.
package script

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrUnknownScript marks a script identifier that is neither a canonical
// ISO 15924 code nor a known alias.
var ErrUnknownScript = errors.New("unknown script")

// Detection is the outcome of a dominant-script scan.
type Detection struct {
	Script      string  `json:"detected_script"`
	Code        string  `json:"iso_code"`
	Confidence  float64 `json:"confidence"`
	OCRLanguage string  `json:"suggested_ocr_language"`
}

// codeRange is an inclusive Unicode code-point interval.
type codeRange struct {
	lo, hi rune
}

type entry struct {
	code    string
	name    string
	ocrLang string
	ranges  []codeRange
}

// Table order doubles as the tie-break order: on equal tallies the earlier
// entry wins. A character may fall into several ranges (Jpan/Hans/Hant share
// the Han block) and then increments every matching tally.
var table = []entry{
	{"Latn", "Latin", "eng", []codeRange{{0x0041, 0x007A}}},
	{"Cyrl", "Cyrillic", "rus", []codeRange{{0x0400, 0x04FF}}},
	{"Arab", "Arabic", "ara", []codeRange{{0x0600, 0x06FF}}},
	{"Deva", "Devanagari", "hin", []codeRange{{0x0900, 0x097F}}},
	{"Grek", "Greek", "ell", []codeRange{{0x0370, 0x03FF}}},
	{"Hebr", "Hebrew", "heb", []codeRange{{0x0590, 0x05FF}}},
	{"Hang", "Hangul", "kor", []codeRange{{0xAC00, 0xD7AF}}},
	{"Jpan", "Japanese", "jpn", []codeRange{{0x3040, 0x30FF}, {0x4E00, 0x9FFF}}},
	{"Hans", "Han (Simplified)", "chi_sim", []codeRange{{0x4E00, 0x9FFF}}},
	{"Hant", "Han (Traditional)", "chi_tra", []codeRange{{0x4E00, 0x9FFF}}},
	{"Thai", "Thai", "tha", []codeRange{{0x0E00, 0x0E7F}}},
	{"Taml", "Tamil", "tam", []codeRange{{0x0B80, 0x0BFF}}},
	{"Telu", "Telugu", "tel", []codeRange{{0x0C00, 0x0C7F}}},
	{"Knda", "Kannada", "kan", []codeRange{{0x0C80, 0x0CFF}}},
	{"Mlym", "Malayalam", "mal", []codeRange{{0x0D00, 0x0D7F}}},
}

// MultiLanguageFallback is the Tesseract language list used when the script
// is unknown and a single language hint cannot be chosen.
const MultiLanguageFallback = "eng+rus+ara+hin+jpn+kor+chi_sim+chi_tra+tha+tam+tel+kan+mal"

// UnknownScript names the detection result for text outside every known range.
const UnknownScript = "Unknown"

var aliases = buildAliases()

func buildAliases() map[string]string {
	m := make(map[string]string, len(table)+4)
	for _, e := range table {
		m[strings.ToLower(e.name)] = e.code
	}
	// common synonyms used by clients
	m["korean"] = "Hang"
	m["chinese"] = "Hans"
	m["simplified chinese"] = "Hans"
	m["traditional chinese"] = "Hant"
	return m
}

// Detect tallies every character of text against the script ranges and
// returns the dominant script. Confidence is the winning tally divided by
// the total tally across all scripts; text matching no range yields the
// Unknown result with confidence 0.
func Detect(text string) Detection {
	counts := make([]int, len(table))
	total := 0
	for _, r := range text {
		for i, e := range table {
			for _, rg := range e.ranges {
				if r >= rg.lo && r <= rg.hi {
					counts[i]++
					total++
				}
			}
		}
	}

	best, bestCount := -1, 0
	for i, c := range counts {
		if c > bestCount {
			best, bestCount = i, c
		}
	}
	if best < 0 {
		return Detection{
			Script:      UnknownScript,
			Confidence:  0,
			OCRLanguage: MultiLanguageFallback,
		}
	}

	e := table[best]
	return Detection{
		Script:      e.name,
		Code:        e.code,
		Confidence:  float64(bestCount) / float64(total),
		OCRLanguage: e.ocrLang,
	}
}

// NormalizeCode maps a script identifier to its ISO 15924 code. Canonical
// 4-letter codes pass through unchanged; human-readable aliases resolve
// case-insensitively. Unrecognized names produce an error listing the
// accepted forms.
func NormalizeCode(script string) (string, error) {
	s := strings.TrimSpace(script)
	if len(s) == 4 && unicode.IsUpper(rune(s[0])) && strings.ToLower(s[1:]) == s[1:] {
		return s, nil
	}
	if code, ok := aliases[strings.ToLower(s)]; ok {
		return code, nil
	}
	return "", fmt.Errorf("%w %q: use ISO 15924 codes (e.g. Latn, Cyrl, Arab) or names such as %s", ErrUnknownScript, s, strings.Join(acceptedNames(), ", "))
}

func acceptedNames() []string {
	names := make([]string, 0, len(table))
	for _, e := range table {
		names = append(names, strings.ToLower(e.name))
	}
	return names
}

// Name returns the English script name for an ISO 15924 code, or the code
// itself when unknown.
func Name(code string) string {
	for _, e := range table {
		if e.code == code {
			return e.name
		}
	}
	return code
}

// OCRLanguage maps an ISO 15924 code to its Tesseract language pack, falling
// back to the combined multi-language list for unknown codes.
func OCRLanguage(code string) string {
	for _, e := range table {
		if e.code == code {
			return e.ocrLang
		}
	}
	return MultiLanguageFallback
}

package script_test

import (
	"strings"
	"testing"

	"github.com/savelyev/translit/backend/internal/script"
)

func TestDetectSingleScriptFullConfidence(t *testing.T) {
	cases := []struct {
		text string
		code string
		name string
	}{
		{"Привет", "Cyrl", "Cyrillic"},
		{"Hello", "Latn", "Latin"},
		{"مرحبا", "Arab", "Arabic"},
		{"Γειά", "Grek", "Greek"},
	}

	for _, tc := range cases {
		det := script.Detect(tc.text)
		if det.Code != tc.code {
			t.Fatalf("Detect(%q) code = %q, want %q", tc.text, det.Code, tc.code)
		}
		if det.Script != tc.name {
			t.Fatalf("Detect(%q) script = %q, want %q", tc.text, det.Script, tc.name)
		}
		if det.Confidence != 1.0 {
			t.Fatalf("Detect(%q) confidence = %v, want 1.0", tc.text, det.Confidence)
		}
	}
}

func TestDetectIgnoresCharactersOutsideRanges(t *testing.T) {
	// digits, punctuation and whitespace match no range
	det := script.Detect("Привет, мир! 123")
	if det.Code != "Cyrl" {
		t.Fatalf("unexpected code %q", det.Code)
	}
	if det.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0", det.Confidence)
	}
}

func TestDetectUnknown(t *testing.T) {
	for _, text := range []string{"", "12345 !?"} {
		det := script.Detect(text)
		if det.Script != script.UnknownScript {
			t.Fatalf("Detect(%q) script = %q, want Unknown", text, det.Script)
		}
		if det.Code != "" || det.Confidence != 0 {
			t.Fatalf("Detect(%q) = %+v, want empty code and zero confidence", text, det)
		}
		if det.OCRLanguage != script.MultiLanguageFallback {
			t.Fatalf("Detect(%q) ocr language = %q", text, det.OCRLanguage)
		}
	}
}

func TestDetectMixedPicksDominant(t *testing.T) {
	det := script.Detect("Hello привет мир")
	if det.Code != "Cyrl" {
		t.Fatalf("dominant code = %q, want Cyrl", det.Code)
	}
	if det.Confidence <= 0.5 || det.Confidence >= 1.0 {
		t.Fatalf("confidence = %v, want between 0.5 and 1.0", det.Confidence)
	}
}

func TestDetectHanDoubleCounting(t *testing.T) {
	// Han characters sit in three overlapping ranges; the earliest table
	// entry (Jpan) wins the tie.
	det := script.Detect("漢字")
	if det.Code != "Jpan" {
		t.Fatalf("code = %q, want Jpan", det.Code)
	}
}

func TestNormalizeCodeIdempotent(t *testing.T) {
	for _, code := range []string{"Latn", "Cyrl", "Arab", "Deva"} {
		got, err := script.NormalizeCode(code)
		if err != nil {
			t.Fatalf("NormalizeCode(%q) err: %v", code, err)
		}
		if got != code {
			t.Fatalf("NormalizeCode(%q) = %q, want unchanged", code, got)
		}
	}
}

func TestNormalizeCodeAliases(t *testing.T) {
	cases := map[string]string{
		"latin":    "Latn",
		"Latin":    "Latn",
		"CYRILLIC": "Cyrl",
		"arabic":   "Arab",
		"greek":    "Grek",
		"hebrew":   "Hebr",
		"korean":   "Hang",
		"chinese":  "Hans",
	}
	for alias, want := range cases {
		got, err := script.NormalizeCode(alias)
		if err != nil {
			t.Fatalf("NormalizeCode(%q) err: %v", alias, err)
		}
		if got != want {
			t.Fatalf("NormalizeCode(%q) = %q, want %q", alias, got, want)
		}
	}
}

func TestNormalizeCodeUnknown(t *testing.T) {
	_, err := script.NormalizeCode("InvalidScript")
	if err == nil {
		t.Fatal("expected error for unknown script name")
	}
	if !strings.Contains(err.Error(), "latin") {
		t.Fatalf("error should list accepted forms, got: %v", err)
	}
}

func TestSupportedAndLookup(t *testing.T) {
	infos := script.Supported()
	if len(infos) == 0 {
		t.Fatal("expected non-empty script list")
	}
	if infos[0].Code != "Latn" {
		t.Fatalf("first supported script = %q, want Latn", infos[0].Code)
	}

	info, ok := script.Lookup("Cyrl")
	if !ok {
		t.Fatal("Lookup(Cyrl) not found")
	}
	if info.Name != "Cyrillic" || info.OCRLanguage != "rus" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if _, ok := script.Lookup("Xxxx"); ok {
		t.Fatal("Lookup(Xxxx) should not be found")
	}
}

// Package script splits mixed-language text into runs that need different
// fonts. Certificates mix Latin names with Devanagari labels on one line and
// no single bundled face covers both, so each run is measured and drawn with
// the face for its script.
package script

import (
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Script identifies the writing system of a run.
type Script int

const (
	// Latin covers everything that is not Devanagari (ASCII, digits, punctuation).
	Latin Script = iota
	// Devanagari covers U+0900..U+097F.
	Devanagari
)

func (s Script) String() string {
	if s == Devanagari {
		return "devanagari"
	}
	return "latin"
}

// Segment is a maximal run of text in one script.
type Segment struct {
	Text   string
	Script Script
}

// IsDevanagari reports whether r is in the Devanagari block.
func IsDevanagari(r rune) bool {
	return r >= 0x0900 && r <= 0x097F
}

// Classify splits text into segments. Whitespace, combining marks and
// zero-width joiners stay with the run they follow so that a space between
// two Devanagari words does not cause a font switch. Leading neutral runes
// join the first real run. The text is NFC-normalized first.
func Classify(text string) []Segment {
	text = norm.NFC.String(text)
	if text == "" {
		return nil
	}

	var (
		out     []Segment
		start   int
		cur     Script
		decided bool
	)
	for i, r := range text {
		if neutral(r) {
			continue
		}
		s := Latin
		if IsDevanagari(r) {
			s = Devanagari
		}
		if !decided {
			cur, decided = s, true
			continue
		}
		if s != cur {
			out = append(out, Segment{Text: text[start:i], Script: cur})
			start, cur = i, s
		}
	}
	return append(out, Segment{Text: text[start:], Script: cur})
}

// HasDevanagari reports whether any rune of text is Devanagari.
func HasDevanagari(text string) bool {
	for _, r := range text {
		if IsDevanagari(r) {
			return true
		}
	}
	return false
}

func neutral(r rune) bool {
	return unicode.IsSpace(r) || unicode.Is(unicode.Mn, r) || r == 0x200C || r == 0x200D
}

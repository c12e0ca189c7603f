package script

import (
	"reflect"
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Segment
	}{
		{"empty", "", nil},
		{"latin only", "Asha Verma", []Segment{{"Asha Verma", Latin}}},
		{"devanagari only", "विधानसभा क्षेत्र", []Segment{{"विधानसभा क्षेत्र", Devanagari}}},
		{
			"mixed name line",
			"Student - Asha - विधानसभा क्षेत्र सीकर",
			[]Segment{
				{"Student - Asha - ", Latin},
				{"विधानसभा क्षेत्र सीकर", Devanagari},
			},
		},
		{
			"latin after devanagari",
			"नाम Asha",
			[]Segment{{"नाम ", Devanagari}, {"Asha", Latin}},
		},
		{"only spaces", "   ", []Segment{{"   ", Latin}}},
		{"leading spaces join first run", "  सीकर", []Segment{{"  सीकर", Devanagari}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Classify(%q) = %#v, want %#v", tc.in, got, tc.want)
			}
		})
	}
}

func TestClassify_SegmentsCoverInput(t *testing.T) {
	in := "Dr. राम Kumar शर्मा (Jaipur) जयपुर"
	var b strings.Builder
	for _, s := range Classify(in) {
		b.WriteString(s.Text)
	}
	if b.String() != in {
		t.Fatalf("segments do not reassemble input: %q", b.String())
	}
}

func TestHasDevanagari(t *testing.T) {
	if HasDevanagari("Asha") || !HasDevanagari("Asha सीकर") {
		t.Fatal("HasDevanagari wrong")
	}
}

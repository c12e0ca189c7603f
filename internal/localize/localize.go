// Package localize holds the language handling for certificates: the
// supported languages, the English to Devanagari lookup tables for
// districts, constituencies and professions, and long-form dates.
//
// Lookups never fail. Unknown names come back unchanged so that a missing
// table entry shows the English name on the certificate instead of nothing.
package localize

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Lang is a certificate language.
type Lang string

// Supported languages.
const (
	English Lang = "en"
	Hindi   Lang = "hi"
)

var langMatcher = language.NewMatcher([]language.Tag{language.English, language.Hindi})

// ParseLang maps a language tag or Accept-Language style value to a
// supported Lang. Anything unrecognized falls back to English.
func ParseLang(s string) Lang {
	s = strings.TrimSpace(s)
	if s == "" {
		return English
	}
	tags, _, err := language.ParseAcceptLanguage(s)
	if err != nil || len(tags) == 0 {
		return English
	}
	_, idx, conf := langMatcher.Match(tags...)
	if conf == language.No {
		return English
	}
	if idx == 1 {
		return Hindi
	}
	return English
}

// Tag returns the BCP 47 tag for l.
func (l Lang) Tag() language.Tag {
	if l == Hindi {
		return language.Hindi
	}
	return language.English
}

var (
	constituencyNumberRE = regexp.MustCompile(`^\d+\s+`)
	constituencySuffixRE = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
)

// CleanConstituency strips the assembly number prefix ("12 Sikar") and the
// reservation suffix ("Sikar (SC)").
func CleanConstituency(name string) string {
	name = constituencyNumberRE.ReplaceAllString(strings.TrimSpace(name), "")
	name = constituencySuffixRE.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// ConstituencyHindi returns the Devanagari name of a constituency, or the
// cleaned English name when the table has no entry.
func ConstituencyHindi(name string) string {
	clean := CleanConstituency(name)
	if hi, ok := constituencyHindi[clean]; ok {
		return hi
	}
	return clean
}

// DistrictHindi returns the Devanagari name of a district, or name itself.
func DistrictHindi(name string) string {
	if hi, ok := districtHindi[strings.TrimSpace(name)]; ok {
		return hi
	}
	return name
}

// EnglishDistrict is the inverse of DistrictHindi.
func EnglishDistrict(hindi string) string {
	hindi = strings.TrimSpace(hindi)
	for en, hi := range districtHindi {
		if hi == hindi {
			return en
		}
	}
	return hindi
}

// ProfessionHindi returns the Devanagari label of a profession, or name itself.
func ProfessionHindi(name string) string {
	if hi, ok := professionHindi[strings.TrimSpace(name)]; ok {
		return hi
	}
	return name
}

// ProfessionOptions lists the profession choices in display order.
func ProfessionOptions(l Lang) []string {
	out := make([]string, len(professionOrder))
	for i, p := range professionOrder {
		if l == Hindi {
			out[i] = ProfessionHindi(p)
		} else {
			out[i] = p
		}
	}
	return out
}

// DistrictOptions lists the Rajasthan districts alphabetically.
func DistrictOptions(l Lang) []string {
	names := []string{
		"Ajmer", "Alwar", "Balotra", "Banswara", "Baran", "Barmer", "Beawar",
		"Bharatpur", "Bhilwara", "Bikaner", "Bundi", "Chittorgarh", "Churu",
		"Dausa", "Deeg", "Dholpur", "Didwana-Kuchaman", "Dungarpur", "Ganganagar",
		"Hanumangarh", "Jaipur", "Jaisalmer", "Jalore", "Jhalawar", "Jhunjhunu",
		"Jodhpur", "Karauli", "Khairthal-Tijara", "Kota", "Kotputli-Behror",
		"Nagaur", "Pali", "Phalodi", "Pratapgarh", "Rajsamand", "Salumbar",
		"Sawai Madhopur", "Sikar", "Sirohi", "Tonk", "Udaipur",
	}
	sort.Strings(names)
	if l == Hindi {
		for i, n := range names {
			names[i] = DistrictHindi(n)
		}
	}
	return names
}

// ShortDate formats t as DD/MM/YYYY.
func ShortDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// LongDate formats t as "2 January 2026" or "2 जनवरी 2026".
func LongDate(t time.Time, l Lang) string {
	if l == Hindi {
		return fmt.Sprintf("%d %s %d", t.Day(), monthsHindi[t.Month()-1], t.Year())
	}
	return t.Format("2 January 2006")
}

// Package pledgeid generates and validates pledge identifiers.
//
// An identifier has the shape AANIRBHA-YYYY-XXXXXX-Z where:
//   - YYYY is the four-digit year the pledge was taken,
//   - XXXXXX are six characters drawn from an alphabet without the
//     look-alike glyphs 0, O, 1 and I,
//   - Z is the sum of the character codes of everything before it, mod 10.
//
// Identifiers are printed on certificates and used as storage keys, so the
// shape is part of the public contract.
package pledgeid

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	// Prefix is the fixed leading segment of every identifier.
	Prefix = "AANIRBHA"
	// Alphabet is the set of characters used for the random segment.
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	randomLen = 6
	// len("AANIRBHA-YYYY-XXXXXX-Z")
	idLen = len(Prefix) + 1 + 4 + 1 + randomLen + 1 + 1
)

// ErrInvalid is returned by Parse for strings that are not well-formed identifiers.
var ErrInvalid = errors.New("invalid pledge id")

// Generator produces identifiers from a clock and a randomness source.
// The zero value uses time.Now and crypto/rand.
type Generator struct {
	Now  func() time.Time
	Rand io.Reader
}

// New returns a fresh identifier for the current year using crypto/rand.
func New() (string, error) {
	return Generator{}.New()
}

// New returns a fresh identifier.
func (g Generator) New() (string, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	src := g.Rand
	if src == nil {
		src = rand.Reader
	}

	buf := make([]byte, randomLen)
	if _, err := io.ReadFull(src, buf); err != nil {
		return "", fmt.Errorf("pledgeid: read random: %w", err)
	}
	seg := make([]byte, randomLen)
	for i, b := range buf {
		seg[i] = Alphabet[int(b)%len(Alphabet)]
	}

	body := fmt.Sprintf("%s-%04d-%s", Prefix, now().Year(), seg)
	return body + "-" + string(Checksum(body)), nil
}

// Checksum returns the check digit for the identifier body (everything
// before the final "-Z").
func Checksum(body string) byte {
	sum := 0
	for i := 0; i < len(body); i++ {
		sum += int(body[i])
	}
	return byte('0' + sum%10)
}

// IsNewFormat reports whether id is a well-formed identifier: correct
// prefix, four-digit year, random segment from Alphabet and a matching
// check digit.
func IsNewFormat(id string) bool {
	if len(id) != idLen {
		return false
	}
	if !strings.HasPrefix(id, Prefix+"-") {
		return false
	}
	rest := id[len(Prefix)+1:]

	// YYYY-
	for i := 0; i < 4; i++ {
		if rest[i] < '0' || rest[i] > '9' {
			return false
		}
	}
	if rest[4] != '-' {
		return false
	}
	// XXXXXX-
	for i := 5; i < 5+randomLen; i++ {
		if strings.IndexByte(Alphabet, rest[i]) < 0 {
			return false
		}
	}
	if rest[5+randomLen] != '-' {
		return false
	}

	body := id[:len(id)-2]
	return id[len(id)-1] == Checksum(body)
}

// Year extracts the year segment of a well-formed identifier.
func Year(id string) (int, error) {
	if !IsNewFormat(id) {
		return 0, ErrInvalid
	}
	y := 0
	for _, c := range id[len(Prefix)+1 : len(Prefix)+5] {
		y = y*10 + int(c-'0')
	}
	return y, nil
}

// Ensure returns id when it is well-formed and otherwise generates a new one.
// The boolean reports whether a new identifier was generated.
func (g Generator) Ensure(id string) (string, bool, error) {
	id = strings.TrimSpace(id)
	if IsNewFormat(id) {
		return id, false, nil
	}
	fresh, err := g.New()
	return fresh, true, err
}

package match

import (
	"strings"
	"unicode"

	"recon-service/internal/models"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// The storefront and carrier platforms share no common key, so orders are
// reconciled by comparing normalized customer phones and names. Phone is the
// higher-precision signal and is always tried first.

const (
	minPhoneDigits  = 8
	minTokenLen     = 3
	minCommonTokens = 2
)

// deaccent strips combining marks after NFD decomposition.
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizePhone strips everything but digits.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhonesMatch reports whether two raw phone numbers plausibly identify the
// same customer. Both must normalize to at least 8 digits; they match when
// exactly equal or when their last-8-digit suffixes agree, which absorbs
// country-code and leading-zero differences between the two platforms.
func PhonesMatch(a, b string) bool {
	na, nb := NormalizePhone(a), NormalizePhone(b)
	if len(na) < minPhoneDigits || len(nb) < minPhoneDigits {
		return false
	}
	if na == nb {
		return true
	}
	return na[len(na)-minPhoneDigits:] == nb[len(nb)-minPhoneDigits:]
}

// NormalizeName lowercases, strips diacritics, drops everything that is not
// a letter or a space, and collapses runs of whitespace.
func NormalizeName(raw string) string {
	s, _, err := transform.String(deaccent, raw)
	if err != nil {
		s = raw
	}
	s = strings.ToLower(s)

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NamesMatch reports whether two customer names plausibly identify the same
// person: exact equality after normalization, or at least two tokens longer
// than two characters shared between the names regardless of order. The
// token rule tolerates dropped middle names, reordering and minor drift.
func NamesMatch(a, b string) bool {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}

	tokensA := make(map[string]bool)
	for _, t := range strings.Fields(na) {
		if len(t) >= minTokenLen {
			tokensA[t] = true
		}
	}

	common := 0
	seen := make(map[string]bool)
	for _, t := range strings.Fields(nb) {
		if len(t) >= minTokenLen && tokensA[t] && !seen[t] {
			seen[t] = true
			common++
			if common >= minCommonTokens {
				return true
			}
		}
	}
	return false
}

// Strategy selects a carrier lead for an order's phone and name. The default
// is FirstMatch; a scoring strategy can replace it without changing callers.
type Strategy interface {
	Find(phone, name string, candidates []models.CarrierLead) *models.CarrierLead
}

// FirstMatch returns the first candidate clearing the phone signal, falling
// back to the first clearing the name signal. It does not score across
// multiple simultaneous matches.
type FirstMatch struct{}

func (FirstMatch) Find(phone, name string, candidates []models.CarrierLead) *models.CarrierLead {
	if phone != "" {
		for i := range candidates {
			if PhonesMatch(phone, candidates[i].CustomerPhone) {
				return &candidates[i]
			}
		}
	}
	if name != "" {
		for i := range candidates {
			if NamesMatch(name, candidates[i].CustomerName) {
				return &candidates[i]
			}
		}
	}
	return nil
}

// FindMatch applies the default strategy.
func FindMatch(phone, name string, candidates []models.CarrierLead) *models.CarrierLead {
	return FirstMatch{}.Find(phone, name, candidates)
}

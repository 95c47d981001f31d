package matching

import (
	"math"
	"strings"
	"unicode"

	"bank-reconciliation-engine/internal/models"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

const (
	tokenRatioFloor = 0.8
	minPrefixLen    = 4
)

// tokenRatio is 1 - distance/(len(a)+len(b)) with substitutions costing two,
// so "traders" vs "trader" is 0.92 and "acme" vs "acne" is 0.75.
func tokenRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	d := levenshtein.DistanceForStrings(ra, rb, levenshtein.DefaultOptions)
	return float64(total-d) / float64(total)
}

func tokensMatch(a, b string) bool {
	if a == b {
		return true
	}
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) >= minPrefixLen && strings.HasPrefix(long, short) {
		return true
	}
	return tokenRatio(a, b) >= tokenRatioFloor
}

// NameSimilarity is the overlap coefficient of two party names on a 0-100
// scale: the share of the shorter name's tokens found in the longer one.
func NameSimilarity(a, b string) float64 {
	ta, tb := models.PartyTokens(a), models.PartyTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	if len(ta) > len(tb) {
		ta, tb = tb, ta
	}
	hits := 0
	for _, x := range ta {
		for _, y := range tb {
			if tokensMatch(x, y) {
				hits++
				break
			}
		}
	}
	return 100 * float64(hits) / float64(len(ta))
}

func keywordTokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func compact(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// KeywordOverlap scores how much of the invoice's identifying text shows up
// in the bank narration. A full invoice number in the narration scores 100.
func KeywordOverlap(number, invoiceDescription, narration string) float64 {
	n := compact(number)
	if n != "" && strings.Contains(compact(narration), n) {
		return 100
	}
	keywords := keywordTokens(number + " " + invoiceDescription)
	if len(keywords) == 0 {
		return 0
	}
	present := make(map[string]bool)
	for _, t := range keywordTokens(narration) {
		present[t] = true
	}
	hits := 0
	for _, k := range keywords {
		if present[k] {
			hits++
		}
	}
	return 100 * float64(hits) / float64(len(keywords))
}

// DateCloseness falls linearly from 100 on the same day to 0 at windowDays.
func DateCloseness(days float64, windowDays int) float64 {
	if windowDays <= 0 {
		return 0
	}
	return 100 * math.Max(0, 1-math.Abs(days)/float64(windowDays))
}

// NormalizeReference strips case, spaces and punctuation from a payment
// reference so "utr 1234-56" equals "UTR123456".
func NormalizeReference(s string) string {
	return strings.ToUpper(compact(s))
}

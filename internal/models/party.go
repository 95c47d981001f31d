package models

import (
	"strings"
	"unicode"
)

// noiseTokens are legal-form and honorific words that carry no identity.
var noiseTokens = map[string]bool{
	"m": true, "s": true, "ms": true, "mr": true, "mrs": true, "dr": true,
	"the": true, "and": true, "of": true,
	"pvt": true, "private": true, "ltd": true, "limited": true, "llp": true,
	"inc": true, "co": true, "corp": true, "company": true,
}

// PartyTokens lowercases name, splits it on anything that is not a letter or
// digit and drops noise words.
func PartyTokens(name string) []string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if !noiseTokens[f] {
			out = append(out, f)
		}
	}
	return out
}

// NormalizeParty gives a stable key for a payer or customer name, so
// "ACME Traders Pvt. Ltd." and "acme traders" collapse to the same value.
func NormalizeParty(name string) string {
	return strings.Join(PartyTokens(name), " ")
}

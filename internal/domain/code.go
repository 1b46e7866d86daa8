package domain

import (
	"crypto/rand"
	"strings"
)

// ─── Card Code Format ───────────────────────────────────────────────────────
// Codes are four dash-separated groups of four characters; the first group
// is the literal KAMI family prefix, the rest are random:
//
//	KAMI-7XJ4-QP2M-R9TC
//
// The alphabet drops I and O so codes survive being read over the phone.

const (
	// CodePrefix identifies the code family. Every valid code starts with it.
	CodePrefix = "KAMI"

	codeAlphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	codeGroupLen = 4
	codeGroups   = 4
	// Length of a code once delimiters are stripped: prefix + 3 random groups.
	codeCleanLen = codeGroups * codeGroupLen
)

// GenerateCode produces a new random card code in canonical display form.
// Collision resistance comes from 12 random characters over a 34-character
// alphabet; the store's uniqueness constraint catches the rare duplicate.
func GenerateCode() (string, error) {
	random, err := randomChars((codeGroups - 1) * codeGroupLen)
	if err != nil {
		return "", err
	}
	groups := []string{CodePrefix}
	for i := 0; i < len(random); i += codeGroupLen {
		groups = append(groups, random[i:i+codeGroupLen])
	}
	return strings.Join(groups, "-"), nil
}

// CanonicalizeCode normalizes user input into canonical display form:
// everything outside the alphabet is stripped, letters are upper-cased, and
// the fixed grouping is re-applied. Returns ErrInvalidFormat when the
// cleaned input does not start with the prefix or is too short.
func CanonicalizeCode(input string) (string, error) {
	cleaned := cleanCode(input)
	if !strings.HasPrefix(cleaned, CodePrefix) || len(cleaned) < codeCleanLen {
		return "", ErrInvalidFormat
	}
	cleaned = cleaned[:codeCleanLen]
	groups := make([]string, 0, codeGroups)
	for i := 0; i < codeCleanLen; i += codeGroupLen {
		groups = append(groups, cleaned[i:i+codeGroupLen])
	}
	return strings.Join(groups, "-"), nil
}

// ValidCodeFormat is a structural check only: prefix plus exact length.
// It never consults storage.
func ValidCodeFormat(code string) bool {
	cleaned := cleanCode(code)
	return strings.HasPrefix(cleaned, CodePrefix) && len(cleaned) == codeCleanLen
}

// cleanCode strips everything outside [0-9A-Za-z] and upper-cases the rest.
func cleanCode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			b.WriteRune(c)
		case c >= 'A' && c <= 'Z':
			b.WriteRune(c)
		case c >= 'a' && c <= 'z':
			b.WriteRune(c - 'a' + 'A')
		}
	}
	return b.String()
}

// randomChars returns n characters drawn uniformly from the code alphabet.
// Rejection sampling keeps the draw unbiased.
func randomChars(n int) (string, error) {
	// Largest multiple of len(codeAlphabet) below 256.
	max := byte(256 / len(codeAlphabet) * len(codeAlphabet))
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= max {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

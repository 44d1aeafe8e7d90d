package account

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// corporateSuffixes are trailing tokens removed from cleaned names.
var corporateSuffixes = map[string]struct{}{
	"inc": {}, "incorporated": {}, "corp": {}, "corporation": {},
	"co": {}, "company": {}, "ltd": {}, "limited": {},
	"llc": {}, "llp": {}, "lp": {}, "plc": {},
	"gmbh": {}, "ag": {}, "sa": {}, "nv": {}, "bv": {},
	"pty": {}, "srl": {}, "holdings": {},
}

// Clean reduces a raw account name to its comparable form: accents folded,
// lower case, "&" spelled out, punctuation turned into spaces, whitespace
// collapsed and trailing corporate suffixes removed.
//
// A name made only of suffix tokens ("Company Inc") keeps its tokens so two
// such names never collapse onto the empty key.
func Clean(raw string) string {
	folded := fold(raw)
	var sb strings.Builder
	sb.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		switch {
		case r == '&':
			sb.WriteString(" and ")
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		default:
			sb.WriteByte(' ')
		}
	}

	tokens := strings.Fields(sb.String())
	end := len(tokens)
	for end > 0 {
		if _, ok := corporateSuffixes[tokens[end-1]]; !ok {
			break
		}
		end--
	}
	if end == 0 {
		return strings.Join(tokens, " ")
	}
	return strings.Join(tokens[:end], " ")
}

// fold decomposes s and drops combining marks so "Société" compares equal to
// "Societe".
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

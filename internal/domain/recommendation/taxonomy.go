package recommendation

import (
	"sort"
	"strings"
	"unicode"
)

// Taxonomy categories.
const (
	CategoryStorage  = "storage"
	CategoryCompute  = "compute"
	CategoryNetwork  = "network"
	CategoryCloud    = "cloud"
	CategorySecurity = "security"
	CategoryData     = "data"
)

var taxonomy = map[string][]string{
	CategoryStorage:  {"storage", "backup", "recovery", "san", "nas", "array", "3par", "nimble", "primera", "alletra", "storeonce", "tape", "archive", "stg"},
	CategoryCompute:  {"compute", "server", "servers", "proliant", "synergy", "hci", "simplivity", "blade", "hpc", "virtualization", "vmware", "cmp"},
	CategoryNetwork:  {"network", "networking", "sd-wan", "sdwan", "wireless", "wlan", "lan", "wan", "switch", "switching", "aruba", "net", "nw"},
	CategoryCloud:    {"cloud", "hybrid", "greenlake", "azure", "aws", "container", "containers", "kubernetes", "cld"},
	CategorySecurity: {"security", "firewall", "zero trust", "identity", "compliance", "sec"},
	CategoryData:     {"data", "analytics", "ai", "database", "sql", "big data", "dai"},
}

var relatedPairs = [][2]string{
	{CategoryStorage, CategoryData},
	{CategoryCompute, CategoryCloud},
	{CategoryNetwork, CategorySecurity},
	{CategoryStorage, CategoryCompute},
}

// normalizedKeywords holds each keyword in the padded token form produced by
// padTokens, keyed by category.
var normalizedKeywords = func() map[string][]string {
	out := make(map[string][]string, len(taxonomy))
	for cat, kws := range taxonomy {
		for _, kw := range kws {
			out[cat] = append(out[cat], padTokens(kw))
		}
	}
	return out
}()

// padTokens lower-cases s, splits it on anything that is not a letter or
// digit and rejoins the tokens with single spaces, padded on both ends so
// whole-word containment is a substring test.
func padTokens(s string) string {
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return " " + strings.Join(tokens, " ") + " "
}

// Categories returns the sorted taxonomy categories whose keywords occur as
// whole words in text.
func Categories(text string) []string {
	padded := padTokens(text)
	if strings.TrimSpace(padded) == "" {
		return nil
	}
	var out []string
	for cat, kws := range normalizedKeywords {
		for _, kw := range kws {
			if strings.Contains(padded, kw) {
				out = append(out, cat)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Related reports whether two distinct categories form a related pair.
func Related(a, b string) bool {
	for _, p := range relatedPairs {
		if (p[0] == a && p[1] == b) || (p[0] == b && p[1] == a) {
			return true
		}
	}
	return false
}

// Overlaps reports whether the two category sets share a member.
func Overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// RelatedAny reports whether any category of a is related to any of b.
func RelatedAny(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x != y && Related(x, y) {
				return true
			}
		}
	}
	return false
}

package installbase

import (
	"strings"
)

// Product families derived for assets that arrive without one.
const (
	FamilyStorage = "Storage"
	FamilyCompute = "Compute"
	FamilyNetwork = "Network"
	FamilyOther   = "Other"
)

var familyKeywords = []struct {
	family   string
	keywords []string
}{
	{FamilyStorage, []string{"storage", "3par", "nimble", "msa", "primera", "alletra", "storeonce", "storeeasy", "tape", "ultrium", "msl", "nas", "san "}},
	{FamilyNetwork, []string{"aruba", "switch", "router", "wireless", "access point", "sd-wan", "flexfabric", "procurve", "firewall"}},
	{FamilyCompute, []string{"proliant", "server", "synergy", "apollo", "blade", "superdome", "edgeline", "simplivity", "hci"}},
}

// DeriveFamily returns the product family for an asset: the source value
// when present, a keyword match on the product name, the business area, and
// finally FamilyOther.
func DeriveFamily(sourceFamily, productName, businessArea string) string {
	if f := strings.TrimSpace(sourceFamily); f != "" && !IsSentinel(f) {
		return f
	}
	name := strings.ToLower(productName) + " "
	for _, fk := range familyKeywords {
		for _, kw := range fk.keywords {
			if strings.Contains(name, kw) {
				return fk.family
			}
		}
	}
	if b := strings.TrimSpace(businessArea); b != "" && !IsSentinel(b) {
		return b
	}
	return FamilyOther
}

package account

// AliasTable maps cleaned alias names to their canonical key.  It is built
// once from configuration and read-only afterwards.
type AliasTable map[string]string

// NewAliasTable builds an AliasTable from name groups.  The first entry of
// each group is the canonical name; every entry, canonical included, maps to
// the cleaned canonical.  Empty groups and blank names are skipped.  When an
// alias appears in more than one group the first group wins.
func NewAliasTable(groups [][]string) AliasTable {
	t := make(AliasTable)
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		canonical := Clean(g[0])
		if canonical == "" {
			continue
		}
		for _, name := range g {
			key := Clean(name)
			if key == "" {
				continue
			}
			if _, exists := t[key]; !exists {
				t[key] = canonical
			}
		}
	}
	return t
}

// Lookup returns the canonical key registered for a cleaned name.
func (t AliasTable) Lookup(cleaned string) (string, bool) {
	k, ok := t[cleaned]
	return k, ok
}

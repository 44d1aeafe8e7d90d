// Package account holds the canonical customer entity and the identity
// normalizer that maps free-text account names to comparable keys.
package account

import (
	"context"
	"sort"
)

// Account is the canonical customer entity.  It is created on first sighting
// during resolution and afterwards only gains aliases and territory ids.
type Account struct {
	ID            string   `json:"id"`
	CanonicalName string   `json:"canonical_name,omitempty"`
	TerritoryIDs  []string `json:"territory_ids,omitempty"`
	Aliases       []string `json:"aliases,omitempty"`
}

// AddAlias records a raw name seen for this account.  Blank and repeated
// names are ignored.  It reports whether the alias was added.
func (a *Account) AddAlias(raw string) bool {
	if raw == "" {
		return false
	}
	for _, existing := range a.Aliases {
		if existing == raw {
			return false
		}
	}
	a.Aliases = append(a.Aliases, raw)
	return true
}

// AddTerritory records a territory id and keeps the list sorted.
func (a *Account) AddTerritory(id string) bool {
	if id == "" {
		return false
	}
	i := sort.SearchStrings(a.TerritoryIDs, id)
	if i < len(a.TerritoryIDs) && a.TerritoryIDs[i] == id {
		return false
	}
	a.TerritoryIDs = append(a.TerritoryIDs, "")
	copy(a.TerritoryIDs[i+1:], a.TerritoryIDs[i:])
	a.TerritoryIDs[i] = id
	return true
}

// HasTerritory reports whether id belongs to the account.
func (a *Account) HasTerritory(id string) bool {
	i := sort.SearchStrings(a.TerritoryIDs, id)
	return i < len(a.TerritoryIDs) && a.TerritoryIDs[i] == id
}

// RegistrationStore persists the registry log between runs.
type RegistrationStore interface {
	Load(ctx context.Context) ([]Registration, error)
	Append(ctx context.Context, regs ...Registration) error
}

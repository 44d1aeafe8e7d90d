package recommending

import (
	"strings"

	"github.com/turtacn/leadscope/internal/domain/installbase"
	"github.com/turtacn/leadscope/internal/domain/recommendation"
)

// Catalog indexes the service catalog for the matching strategies.  It is
// built once per run and read concurrently afterwards.
type Catalog struct {
	entries    []installbase.CatalogEntry
	categories [][]string
	byProduct  map[string][]int
	byName     map[string]int
}

// NewCatalog indexes entries.  Entries without a service name are skipped.
// ProductMapping may list several product ids separated by ";", "," or "|".
func NewCatalog(entries []installbase.CatalogEntry) *Catalog {
	c := &Catalog{
		byProduct: make(map[string][]int),
		byName:    make(map[string]int),
	}
	for _, e := range entries {
		if strings.TrimSpace(e.ServiceName) == "" {
			continue
		}
		i := len(c.entries)
		c.entries = append(c.entries, e)
		c.categories = append(c.categories,
			recommendation.Categories(e.Practice+" "+e.SubPractice+" "+e.ServiceName))

		name := strings.ToLower(strings.TrimSpace(e.ServiceName))
		if _, dup := c.byName[name]; !dup {
			c.byName[name] = i
		}
		for _, p := range splitMapping(e.ProductMapping) {
			c.byProduct[p] = append(c.byProduct[p], i)
		}
	}
	return c
}

func splitMapping(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' || r == '|' })
	out := fields[:0]
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" && !installbase.IsSentinel(f) {
			out = append(out, f)
		}
	}
	return out
}

// Len returns the number of indexed services.
func (c *Catalog) Len() int { return len(c.entries) }

// ForProduct returns the entries mapped to a product id.
func (c *Catalog) ForProduct(id string) []installbase.CatalogEntry {
	idx := c.byProduct[strings.ToLower(strings.TrimSpace(id))]
	out := make([]installbase.CatalogEntry, 0, len(idx))
	for _, i := range idx {
		out = append(out, c.entries[i])
	}
	return out
}

// ByName looks an entry up by service name, case-insensitively.
func (c *Catalog) ByName(name string) (installbase.CatalogEntry, bool) {
	i, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return installbase.CatalogEntry{}, false
	}
	return c.entries[i], true
}

// InCategories returns the entries tagged with any of cats, or whose
// practice equals family.
func (c *Catalog) InCategories(cats []string, family string) []installbase.CatalogEntry {
	var out []installbase.CatalogEntry
	for i, e := range c.entries {
		if recommendation.Overlaps(cats, c.categories[i]) ||
			(family != "" && strings.EqualFold(strings.TrimSpace(e.Practice), family)) {
			out = append(out, e)
		}
	}
	return out
}

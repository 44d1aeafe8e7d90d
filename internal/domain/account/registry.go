package account

import (
	"sync"
)

// Method names how a raw name was resolved to its canonical key.
type Method string

const (
	MethodAlias Method = "alias"
	MethodExact Method = "exact"
	MethodFuzzy Method = "fuzzy"
	MethodNew   Method = "new"
)

// DefaultFuzzyThreshold is the minimum Similarity accepted as a match.
const DefaultFuzzyThreshold = 85

// Match is the outcome of resolving one raw name.
type Match struct {
	Key     string
	Cleaned string
	Method  Method
	Score   int
}

// Resolve maps raw to a canonical key without side effects.  Order of
// precedence: alias table, exact canonical key, best fuzzy candidate at or
// above threshold, and finally the cleaned name itself as a new key.  Fuzzy
// ties go to the candidate that appears first in known.
//
// A name that cleans to the empty string resolves to the empty key.
func Resolve(raw string, known []string, aliases AliasTable, threshold int) Match {
	cleaned := Clean(raw)
	if cleaned == "" {
		return Match{Method: MethodNew}
	}
	if key, ok := aliases.Lookup(cleaned); ok {
		return Match{Key: key, Cleaned: cleaned, Method: MethodAlias, Score: 100}
	}

	best, bestScore := "", -1
	for _, k := range known {
		if k == cleaned {
			return Match{Key: k, Cleaned: cleaned, Method: MethodExact, Score: 100}
		}
		if s := Similarity(cleaned, k); s > bestScore {
			best, bestScore = k, s
		}
	}
	if best != "" && bestScore >= threshold {
		return Match{Key: best, Cleaned: cleaned, Method: MethodFuzzy, Score: bestScore}
	}
	return Match{Key: cleaned, Cleaned: cleaned, Method: MethodNew, Score: bestScore}
}

// Registration records the first sighting of a canonical key, or with
// MethodFuzzy the binding of a name variant onto an existing key.
type Registration struct {
	Seq    int    `json:"seq"`
	Key    string `json:"key"`
	Raw    string `json:"raw"`
	Method Method `json:"method"`
}

// Registry is the resolver context for a run: the ordered canonical key set,
// the alias table, the fuzzy bindings made so far and an append-only
// registration log.  Lookups take a read lock; registering a key or binding
// takes the write lock, so a Registry may be shared by concurrent readers
// with a single writer at a time.
//
// A cleaned name that once matched a key fuzzily stays bound to that key,
// so keys registered later never take it over.
type Registry struct {
	mu        sync.RWMutex
	aliases   AliasTable
	threshold int
	keys      []string
	index     map[string]struct{}
	bound     map[string]string
	log       []Registration
}

// NewRegistry creates an empty Registry.  A nil alias table is treated as
// empty.
func NewRegistry(aliases AliasTable, threshold int) *Registry {
	if aliases == nil {
		aliases = AliasTable{}
	}
	return &Registry{
		aliases:   aliases,
		threshold: threshold,
		index:     make(map[string]struct{}),
		bound:     make(map[string]string),
	}
}

// Threshold returns the fuzzy acceptance threshold.
func (r *Registry) Threshold() int { return r.threshold }

// Resolve is the read-only form of Normalize.
func (r *Registry) Resolve(raw string) Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolve(raw)
}

// resolve consults the fuzzy bindings before scoring.  Callers hold mu.
func (r *Registry) resolve(raw string) Match {
	cleaned := Clean(raw)
	if key, ok := r.bound[cleaned]; ok {
		return Match{Key: key, Cleaned: cleaned, Method: MethodFuzzy, Score: Similarity(cleaned, key)}
	}
	return Resolve(raw, r.keys, r.aliases, r.threshold)
}

// Normalize resolves raw and registers the resulting key when it has not
// been seen before.  Normalizing the same name twice yields the same key,
// whatever was registered in between.
func (r *Registry) Normalize(raw string) string {
	return r.NormalizeMatch(raw).Key
}

// NormalizeMatch is Normalize returning the full Match.
func (r *Registry) NormalizeMatch(raw string) Match {
	m := r.Resolve(raw)
	if m.Key == "" || m.Method == MethodExact || (m.Method == MethodFuzzy && r.isBound(m.Cleaned)) {
		return m
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another writer may have registered a closer key in between.
	m = r.resolve(raw)
	switch {
	case m.Key == "":
	case m.Method == MethodFuzzy:
		r.bind(m.Cleaned, m.Key, raw)
	default:
		r.register(m.Key, raw, m.Method)
	}
	return m
}

func (r *Registry) isBound(cleaned string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bound[cleaned]
	return ok
}

func (r *Registry) register(key, raw string, method Method) {
	if _, ok := r.index[key]; ok {
		return
	}
	r.index[key] = struct{}{}
	r.keys = append(r.keys, key)
	r.log = append(r.log, Registration{Seq: len(r.log) + 1, Key: key, Raw: raw, Method: method})
}

func (r *Registry) bind(cleaned, key, raw string) {
	if _, ok := r.bound[cleaned]; ok || cleaned == "" {
		return
	}
	if _, isKey := r.index[cleaned]; isKey {
		return
	}
	r.bound[cleaned] = key
	r.log = append(r.log, Registration{Seq: len(r.log) + 1, Key: key, Raw: raw, Method: MethodFuzzy})
}

// Restore replays a previously persisted log.  Keys and bindings already
// present are skipped, so Restore may be called on a non-empty Registry.
func (r *Registry) Restore(regs []Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range regs {
		if reg.Key == "" {
			continue
		}
		if reg.Method == MethodFuzzy {
			r.bind(Clean(reg.Raw), reg.Key, reg.Raw)
			continue
		}
		r.register(reg.Key, reg.Raw, reg.Method)
	}
}

// Keys returns the canonical keys in registration order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Log returns a copy of the registration log.
func (r *Registry) Log() []Registration {
	return r.Since(0)
}

// Since returns registrations with a sequence number greater than seq.
func (r *Registry) Since(seq int) []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if seq < 0 {
		seq = 0
	}
	if seq >= len(r.log) {
		return nil
	}
	out := make([]Registration, len(r.log)-seq)
	copy(out, r.log[seq:])
	return out
}

package resolution

// unionFind is a disjoint-set forest over string nodes.  Nodes are added on
// first use; find compresses paths.
type unionFind struct {
	parent map[string]string
	order  []string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string)}
}

func (u *unionFind) add(n string) {
	if _, ok := u.parent[n]; !ok {
		u.parent[n] = n
		u.order = append(u.order, n)
	}
}

func (u *unionFind) find(n string) string {
	u.add(n)
	root := n
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[n] != root {
		next := u.parent[n]
		u.parent[n] = root
		n = next
	}
	return root
}

// union joins the sets of a and b.  The lexically smaller root wins so the
// forest shape does not depend on the order of calls.
func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}

// groups returns the members of every set keyed by root, members in first
// insertion order.
func (u *unionFind) groups() map[string][]string {
	out := make(map[string][]string)
	for _, n := range u.order {
		r := u.find(n)
		out[r] = append(out[r], n)
	}
	return out
}

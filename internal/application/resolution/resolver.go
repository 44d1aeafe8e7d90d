// Package resolution joins assets, opportunities and projects to canonical
// accounts.  The dense territory key on every record is the primary join
// path; the sparse opportunity key on projects only enriches a project with
// its originating opportunity.
package resolution

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/turtacn/leadscope/internal/domain/account"
	"github.com/turtacn/leadscope/internal/domain/installbase"
	"github.com/turtacn/leadscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/leadscope/pkg/errors"
)

// UnassignedAccountID holds records that carry neither a territory id nor an
// account name.
const UnassignedAccountID = "unassigned"

const (
	territoryNode = "t:"
	nameNode      = "n:"
	namePrefix    = "name:"
)

// AccountLinks is everything joined to one account.
type AccountLinks struct {
	Account       *account.Account
	Assets        []*installbase.Asset
	Opportunities []*installbase.Opportunity
	Projects      []*installbase.Project

	// ProjectOpportunity maps project id to the opportunity its sparse key
	// points at.  Projects without a usable sparse key are absent.
	ProjectOpportunity map[string]string
}

// Coverage reports how many projects each join path reached.
type Coverage struct {
	Projects     int     `json:"projects"`
	DenseLinked  int     `json:"dense_linked"`
	SparseLinked int     `json:"sparse_linked"`
	DenseRatio   float64 `json:"dense_ratio"`
	SparseRatio  float64 `json:"sparse_ratio"`
}

func (c Coverage) String() string {
	return fmt.Sprintf("projects=%d dense=%d (%.1f%%) sparse=%d (%.1f%%)",
		c.Projects, c.DenseLinked, c.DenseRatio*100, c.SparseLinked, c.SparseRatio*100)
}

// Graph is the joined entity index of one run.
type Graph struct {
	Accounts  []*account.Account
	ByAccount map[string]*AccountLinks
	Coverage  Coverage
	Issues    []installbase.Issue

	assetAccount   map[string]string
	projectAccount map[string]string
}

// Links returns the joined records of an account, or nil.
func (g *Graph) Links(accountID string) *AccountLinks {
	return g.ByAccount[accountID]
}

// AccountOfAsset returns the account id an asset was joined to.
func (g *Graph) AccountOfAsset(serialID string) (string, bool) {
	id, ok := g.assetAccount[serialID]
	return id, ok
}

// AccountOfProject returns the account id a project was joined to.
func (g *Graph) AccountOfProject(projectID string) (string, bool) {
	id, ok := g.projectAccount[projectID]
	return id, ok
}

// Resolver builds a Graph from a snapshot.  Account names are mapped to
// canonical keys through the shared Registry.
type Resolver struct {
	registry *account.Registry
	logger   logging.Logger
}

// NewResolver creates a Resolver.
func NewResolver(registry *account.Registry, logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Resolver{registry: registry, logger: logger.Named("resolver")}
}

// recordKeys are the join keys of one record after cleaning.
type recordKeys struct {
	territory string
	canonical string
	raw       string
}

func (r *Resolver) keys(territory, name string) recordKeys {
	k := recordKeys{raw: strings.TrimSpace(name)}
	if t := strings.TrimSpace(territory); !installbase.IsSentinel(t) {
		k.territory = t
	}
	if k.raw != "" && !installbase.IsSentinel(k.raw) && r.registry != nil {
		k.canonical = r.registry.Normalize(k.raw)
	}
	return k
}

func (k recordKeys) node() string {
	switch {
	case k.territory != "":
		return territoryNode + k.territory
	case k.canonical != "":
		return nameNode + k.canonical
	}
	return ""
}

// Resolve joins every record of snap to exactly one account.
func (r *Resolver) Resolve(snap *installbase.Snapshot) *Graph {
	start := time.Now()
	uf := newUnionFind()

	assetKeys := make([]recordKeys, len(snap.Assets))
	oppKeys := make([]recordKeys, len(snap.Opportunities))
	projKeys := make([]recordKeys, len(snap.Projects))

	link := func(k recordKeys) {
		if k.territory != "" {
			uf.add(territoryNode + k.territory)
		}
		if k.canonical != "" {
			uf.add(nameNode + k.canonical)
		}
		if k.territory != "" && k.canonical != "" {
			uf.union(territoryNode+k.territory, nameNode+k.canonical)
		}
	}
	for i, a := range snap.Assets {
		assetKeys[i] = r.keys(a.TerritoryID, a.AccountName)
		link(assetKeys[i])
	}
	for i, o := range snap.Opportunities {
		oppKeys[i] = r.keys(o.TerritoryID, o.AccountName)
		link(oppKeys[i])
	}
	for i, p := range snap.Projects {
		projKeys[i] = r.keys(p.SecondaryKey, p.AccountName)
		link(projKeys[i])
	}

	g := &Graph{
		ByAccount:      make(map[string]*AccountLinks),
		assetAccount:   make(map[string]string, len(snap.Assets)),
		projectAccount: make(map[string]string, len(snap.Projects)),
	}

	rootAccount := make(map[string]string)
	for root, members := range uf.groups() {
		acct := clusterAccount(members)
		rootAccount[root] = acct.ID
		g.ByAccount[acct.ID] = &AccountLinks{Account: acct, ProjectOpportunity: make(map[string]string)}
	}

	accountFor := func(k recordKeys) *AccountLinks {
		n := k.node()
		if n == "" {
			return g.unassigned()
		}
		links := g.ByAccount[rootAccount[uf.find(n)]]
		if k.canonical != "" {
			links.Account.AddAlias(k.raw)
		}
		return links
	}

	for i, a := range snap.Assets {
		links := accountFor(assetKeys[i])
		links.Assets = append(links.Assets, a)
		g.assetAccount[a.SerialID] = links.Account.ID
	}

	oppIndex := make(map[string]*installbase.Opportunity, len(snap.Opportunities))
	for i, o := range snap.Opportunities {
		links := accountFor(oppKeys[i])
		links.Opportunities = append(links.Opportunities, o)
		oppIndex[o.ID] = o
	}

	cov := Coverage{Projects: len(snap.Projects)}
	for i, p := range snap.Projects {
		k := projKeys[i]
		if k.territory != "" {
			cov.DenseLinked++
		} else {
			g.Issues = append(g.Issues, installbase.Issue{
				Code:    errors.ErrCodeMalformedIdentifier,
				Table:   installbase.TableProjects,
				Row:     p.Row,
				Field:   "secondary_key",
				Value:   p.SecondaryKey,
				Message: "project has no territory key",
			})
			r.logger.Warn("project without territory key",
				logging.String("project_id", p.ID), logging.Int("row", p.Row))
		}

		links := accountFor(k)
		links.Projects = append(links.Projects, p)
		g.projectAccount[p.ID] = links.Account.ID

		if p.PrimaryKey != "" {
			if o, ok := oppIndex[p.PrimaryKey]; ok {
				links.ProjectOpportunity[p.ID] = o.ID
				cov.SparseLinked++
			}
		}
	}
	if cov.Projects > 0 {
		cov.DenseRatio = float64(cov.DenseLinked) / float64(cov.Projects)
		cov.SparseRatio = float64(cov.SparseLinked) / float64(cov.Projects)
	}
	g.Coverage = cov

	g.Accounts = make([]*account.Account, 0, len(g.ByAccount))
	for _, l := range g.ByAccount {
		g.Accounts = append(g.Accounts, l.Account)
	}
	sort.Slice(g.Accounts, func(i, j int) bool { return g.Accounts[i].ID < g.Accounts[j].ID })

	r.logger.Info("relationships resolved",
		logging.Int("accounts", len(g.Accounts)),
		logging.Int("projects", cov.Projects),
		logging.Int("dense_linked", cov.DenseLinked),
		logging.Int("sparse_linked", cov.SparseLinked),
		logging.Duration("elapsed", time.Since(start)),
	)
	return g
}

func (g *Graph) unassigned() *AccountLinks {
	if l, ok := g.ByAccount[UnassignedAccountID]; ok {
		return l
	}
	l := &AccountLinks{
		Account:            &account.Account{ID: UnassignedAccountID},
		ProjectOpportunity: make(map[string]string),
	}
	g.ByAccount[UnassignedAccountID] = l
	return l
}

// clusterAccount builds the account of one union-find set.  The id is the
// smallest territory id, or the smallest canonical name when the cluster has
// no territory.
func clusterAccount(members []string) *account.Account {
	acct := &account.Account{}
	var names []string
	for _, m := range members {
		switch {
		case strings.HasPrefix(m, territoryNode):
			acct.AddTerritory(strings.TrimPrefix(m, territoryNode))
		case strings.HasPrefix(m, nameNode):
			names = append(names, strings.TrimPrefix(m, nameNode))
		}
	}
	sort.Strings(names)
	if len(names) > 0 {
		acct.CanonicalName = names[0]
	}
	if len(acct.TerritoryIDs) > 0 {
		acct.ID = acct.TerritoryIDs[0]
	} else {
		acct.ID = namePrefix + acct.CanonicalName
	}
	return acct
}

package installbase

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/turtacn/leadscope/pkg/errors"
)

// sentinels are placeholder literals that mean "no identifier".
var sentinels = map[string]struct{}{
	"not available": {}, "n/a": {}, "na": {}, "-": {}, "0": {},
	"none": {}, "null": {}, "#n/a": {}, "unknown": {}, "tbd": {},
}

// IsSentinel reports whether v is blank or a placeholder literal.
func IsSentinel(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	if s == "" {
		return true
	}
	_, ok := sentinels[s]
	return ok
}

// namespace scopes every synthetic id derived by this package.
var namespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("leadscope.installbase"))

// SyntheticID derives a stable identifier from a record's table position and
// content.  The same inputs always produce the same id, so reruns over an
// unchanged source keep their ids.
func SyntheticID(prefix string, row int, content ...string) string {
	parts := make([]string, 0, len(content)+1)
	parts = append(parts, strconv.Itoa(row))
	parts = append(parts, content...)
	id := uuid.NewSHA1(namespace, []byte(strings.Join(parts, "\x1f")))
	return prefix + "-" + strings.ReplaceAll(id.String(), "-", "")[:16]
}

// identityField describes how to read and write the identifier of one table.
type identityField[T any] struct {
	table   string
	field   string
	prefix  string
	get     func(T) string
	set     func(T, string)
	keep    func(T, string)
	row     func(T) int
	content func(T) []string
}

// assignIDs makes every identifier in records unique.  The first occurrence
// of an id keeps it; sentinels and later duplicates get a synthetic id and a
// MalformedIdentifier issue.  Records are never dropped or merged.
func assignIDs[T any](records []T, f identityField[T]) []Issue {
	var issues []Issue
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		raw := strings.TrimSpace(f.get(r))
		reason := ""
		switch {
		case IsSentinel(raw):
			reason = "placeholder identifier replaced by synthetic id"
		default:
			if _, dup := seen[raw]; dup {
				reason = "duplicate identifier replaced by synthetic id"
			}
		}
		if reason == "" {
			seen[raw] = struct{}{}
			f.set(r, raw)
			continue
		}

		id := SyntheticID(f.prefix, f.row(r), f.content(r)...)
		for {
			if _, clash := seen[id]; !clash {
				break
			}
			id = SyntheticID(f.prefix, f.row(r), append(f.content(r), id)...)
		}
		seen[id] = struct{}{}
		f.keep(r, raw)
		f.set(r, id)
		issues = append(issues, Issue{
			Code:    errors.ErrCodeMalformedIdentifier,
			Table:   f.table,
			Row:     f.row(r),
			Field:   f.field,
			Value:   raw,
			Message: reason,
		})
	}
	return issues
}

// AssignAssetIDs normalizes asset serial ids in place.
func AssignAssetIDs(assets []*Asset) []Issue {
	return assignIDs(assets, identityField[*Asset]{
		table: TableAssets, field: "serial_id", prefix: "AS",
		get:  func(a *Asset) string { return a.SerialID },
		set:  func(a *Asset, id string) { a.SerialID = id },
		keep: func(a *Asset, raw string) { a.SourceSerialID = raw },
		row:  func(a *Asset) int { return a.Row },
		content: func(a *Asset) []string {
			return []string{a.ProductName, a.TerritoryID, a.SupportStatus}
		},
	})
}

// AssignOpportunityIDs normalizes opportunity ids in place.
func AssignOpportunityIDs(opps []*Opportunity) []Issue {
	return assignIDs(opps, identityField[*Opportunity]{
		table: TableOpportunities, field: "opportunity_id", prefix: "OP",
		get:  func(o *Opportunity) string { return o.ID },
		set:  func(o *Opportunity, id string) { o.ID = id },
		keep: func(o *Opportunity, raw string) { o.SourceID = raw },
		row:  func(o *Opportunity) int { return o.Row },
		content: func(o *Opportunity) []string {
			return []string{o.TerritoryID, o.ProductLine}
		},
	})
}

// AssignProjectIDs normalizes project ids in place.  A sentinel primary key
// is also cleared and reported, since it cannot link to an opportunity.
func AssignProjectIDs(projects []*Project) []Issue {
	issues := assignIDs(projects, identityField[*Project]{
		table: TableProjects, field: "project_id", prefix: "PR",
		get:  func(p *Project) string { return p.ID },
		set:  func(p *Project, id string) { p.ID = id },
		keep: func(p *Project, raw string) { p.SourceID = raw },
		row:  func(p *Project) int { return p.Row },
		content: func(p *Project) []string {
			return []string{p.SecondaryKey, p.PracticeCode, p.Description}
		},
	})
	for _, p := range projects {
		raw := strings.TrimSpace(p.PrimaryKey)
		if raw != "" && IsSentinel(raw) {
			issues = append(issues, Issue{
				Code:    errors.ErrCodeMalformedIdentifier,
				Table:   TableProjects,
				Row:     p.Row,
				Field:   "primary_key",
				Value:   raw,
				Message: "placeholder opportunity key ignored",
			})
			raw = ""
		}
		p.PrimaryKey = raw
	}
	return issues
}

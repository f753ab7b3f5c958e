package authz

import (
	"fmt"
	"sort"

	"github.com/flowplane/flowplane/pkg/apierr"
)

// TeamLookup resolves a (org id, team name) pair to a team id. Supplied
// by pkg/storage; kept as a narrow interface so this package never
// imports storage.
type TeamLookup interface {
	// LookupTeamID returns the team id for (orgID, name), or false if no
	// such team exists in that organization.
	LookupTeamID(orgID, name string) (string, bool)
}

// isUUIDLike is a cheap heuristic used by ResolveTeamIDs' idempotence
// rule: inputs that already look like generated ids are passed through
// unresolved.
func isUUIDLike(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, r := range s {
		switch i {
		case 8, 13, 18, 23:
			if r != '-' {
				return false
			}
		default:
			if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
				return false
			}
		}
	}
	return true
}

// ResolveTeamIDs resolves team names to ids within a single organization.
// It is:
//
//   - org-scoped: the same name in two different orgs resolves to
//     distinct ids, because lookups are always (orgID, name) pairs.
//   - idempotent on inputs that already look like generated ids.
//   - all-or-nothing: the first unresolvable name aborts with an error
//     naming it; no partial result is ever returned.
func ResolveTeamIDs(lookup TeamLookup, orgID string, names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		if isUUIDLike(name) {
			ids = append(ids, name)
			continue
		}
		id, ok := lookup.LookupTeamID(orgID, name)
		if !ok {
			return nil, apierr.NotFoundf("team", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// TeamNameToIDMap is a convenience for building the map EffectiveTeamIDs
// needs, given the caller's own memberships (team name -> id, already
// scoped to the right org by construction since Membership rows are
// looked up per user).
func TeamNameToIDMap(names, ids []string) map[string]string {
	if len(names) != len(ids) {
		panic(fmt.Sprintf("authz: mismatched team name/id slices (%d vs %d)", len(names), len(ids)))
	}
	out := make(map[string]string, len(names))
	for i, n := range names {
		out[n] = ids[i]
	}
	return out
}

// SortedKeys is a small helper used by tests and audit formatting to get
// deterministic output from a team-id set.
func SortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Package scope computes a connected proxy's xDS visibility from its
// node metadata: Scope::All, Scope::Team, and
// Scope::Allowlist. Scope is computed once at session start and cached
// for the session's lifetime — a metadata change requires a new
// session, never a live scope mutation.
package scope

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the closed set of scope shapes a connected proxy can declare.
type Kind int

const (
	// All sees every resource: admin/bootstrap proxies with no team
	// metadata.
	All Kind = iota
	// Team sees resources owned by Team, plus global/shared-listener
	// resources when IncludeDefault is set.
	Team
	// Allowlist sees only the named listeners (plus their transitively
	// referenced routes and clusters), intersected with Team's
	// visibility.
	Allowlist
)

// Scope is the computed, immutable visibility of one connected proxy for
// the lifetime of its session.
type Scope struct {
	Kind           Kind
	Team           string   // set for Team and Allowlist
	IncludeDefault bool     // set for Team
	ListenerNames  []string // set for Allowlist, sorted
}

// FromMetadata builds a Scope from a discovery request's node metadata,
// decoded by the caller (which owns the protobuf Struct) into plain Go
// values. Node metadata with no "team" key produces Scope::All. A
// non-empty "listener_allowlist" (a []any of strings, or a
// comma-separated string — proxies may supply either depending on how
// their bootstrap template renders the field) produces Scope::Allowlist;
// otherwise Scope::Team.
func FromMetadata(metadata map[string]any) Scope {
	team, _ := metadata["team"].(string)
	if team == "" {
		return Scope{Kind: All}
	}

	if names := stringList(metadata["listener_allowlist"]); len(names) > 0 {
		sort.Strings(names)
		return Scope{Kind: Allowlist, Team: team, ListenerNames: names}
	}

	includeDefault, _ := metadata["include_default"].(bool)
	return Scope{Kind: Team, Team: team, IncludeDefault: includeDefault}
}

func stringList(v any) []string {
	switch vv := v.(type) {
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return vv
	case string:
		if vv == "" {
			return nil
		}
		var out []string
		for _, s := range strings.Split(vv, ",") {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Key returns a stable string uniquely identifying this scope, used as
// half of the (scope, type_url) version-counter key — two proxies with
// identical declared scope share the same cached filtered view and
// version counter.
func (s Scope) Key() string {
	switch s.Kind {
	case All:
		return "all"
	case Team:
		return fmt.Sprintf("team:%s:include_default=%t", s.Team, s.IncludeDefault)
	case Allowlist:
		return fmt.Sprintf("allowlist:%s:%s", s.Team, strings.Join(s.ListenerNames, ","))
	default:
		return "unknown"
	}
}

func (s Scope) String() string { return s.Key() }

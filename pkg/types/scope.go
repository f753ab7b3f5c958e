package types

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/flowplane/flowplane/pkg/apierr"
)

// ScopeKind distinguishes the four shapes the scope grammar allows.
type ScopeKind int

const (
	ScopeKindAdminAll ScopeKind = iota
	ScopeKindOrgAdmin
	ScopeKindTeamResource
	ScopeKindResource
)

// Scope is a parsed permission string. The zero value is never valid;
// construct with ParseScope.
type Scope struct {
	Kind     ScopeKind
	OrgName  string // set for ScopeKindOrgAdmin
	Team     string // set for ScopeKindTeamResource
	Resource string // set for ScopeKindTeamResource, ScopeKindResource
	Action   string // "read" or "write"
	raw      string
}

func (s Scope) String() string { return s.raw }

const (
	ActionRead  = "read"
	ActionWrite = "write"
)

var resourceActionPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ParseScope parses a raw scope string matching one of:
//
//	admin:all
//	org:<org-name>:admin
//	team:<team-name>:<resource>:<action>
//	<resource>:<action>
func ParseScope(raw string) (Scope, error) {
	if raw == "admin:all" {
		return Scope{Kind: ScopeKindAdminAll, raw: raw}, nil
	}
	parts := strings.Split(raw, ":")
	switch {
	case len(parts) == 3 && parts[0] == "org" && parts[2] == "admin":
		if parts[1] == "" {
			return Scope{}, apierr.Validationf("scope %q has an empty org name", raw)
		}
		return Scope{Kind: ScopeKindOrgAdmin, OrgName: parts[1], raw: raw}, nil
	case len(parts) == 4 && parts[0] == "team":
		if parts[1] == "" {
			return Scope{}, apierr.Validationf("scope %q has an empty team name", raw)
		}
		if err := validateResourceAction(parts[2], parts[3], raw); err != nil {
			return Scope{}, err
		}
		return Scope{Kind: ScopeKindTeamResource, Team: parts[1], Resource: parts[2], Action: parts[3], raw: raw}, nil
	case len(parts) == 2:
		if err := validateResourceAction(parts[0], parts[1], raw); err != nil {
			return Scope{}, err
		}
		return Scope{Kind: ScopeKindResource, Resource: parts[0], Action: parts[1], raw: raw}, nil
	default:
		return Scope{}, apierr.Validationf("scope %q does not match the scope grammar", raw)
	}
}

func validateResourceAction(resource, action, raw string) error {
	if !resourceActionPattern.MatchString(resource) {
		return apierr.Validationf("scope %q has an invalid resource name %q", raw, resource)
	}
	if action != ActionRead && action != ActionWrite {
		return apierr.Validationf("scope %q has an invalid action %q", raw, action)
	}
	return nil
}

// AuthContext is produced externally and
// consumed by the authorization kernel and every mutating/reading
// operation in the core.
type AuthContext struct {
	TokenID   string
	TokenName string
	Scopes    []Scope
	OrgID     string
	OrgName   string
}

// HasScope reports whether raw (formatted per the grammar) is present
// verbatim among ctx's scopes.
func (c AuthContext) HasScope(raw string) bool {
	for _, s := range c.Scopes {
		if s.raw == raw {
			return true
		}
	}
	return false
}

// IsAdminAll reports whether the context carries the governance-only
// admin:all wildcard.
func (c AuthContext) IsAdminAll() bool {
	for _, s := range c.Scopes {
		if s.Kind == ScopeKindAdminAll {
			return true
		}
	}
	return false
}

// OrgAdminFor reports whether ctx carries org:<orgName>:admin and its
// OrgName matches orgName — the scope is only honored when the
// context's org_name equals <org-name>.
func (c AuthContext) OrgAdminFor(orgName string) bool {
	if orgName == "" || c.OrgName != orgName {
		return false
	}
	for _, s := range c.Scopes {
		if s.Kind == ScopeKindOrgAdmin && s.OrgName == orgName {
			return true
		}
	}
	return false
}

// TeamScope reports whether ctx carries team:<team>:<resource>:<action>.
func (c AuthContext) TeamScope(team, resource, action string) bool {
	for _, s := range c.Scopes {
		if s.Kind == ScopeKindTeamResource && s.Team == team && s.Resource == resource && s.Action == action {
			return true
		}
	}
	return false
}

// ResourceScope reports whether ctx carries the resource-level scope
// <resource>:<action>, independent of team.
func (c AuthContext) ResourceScope(resource, action string) bool {
	for _, s := range c.Scopes {
		if s.Kind == ScopeKindResource && s.Resource == resource && s.Action == action {
			return true
		}
	}
	return false
}

// TeamScopeString formats a team-scoped permission string.
func TeamScopeString(team, resource, action string) string {
	return fmt.Sprintf("team:%s:%s:%s", team, resource, action)
}

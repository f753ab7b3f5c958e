package authz

import (
	"context"

	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/types"
)

// Action is read or write. It is an alias of string, so the compiler
// accepts any string here; only Read and Write are meaningful.
type Action = string

const (
	Read  Action = types.ActionRead
	Write Action = types.ActionWrite
)

// governanceResources are only ever reachable through admin:all, never
// through a team or resource scope.
var governanceResources = map[string]bool{
	"orgs":        true,
	"users":       true,
	"audit":       true,
	"invitations": true,
}

// CrossTeamAttemptMeter is notified whenever VerifyTeamAccess denies a
// context access to a resource owned by a team outside its effective
// team set, the source of the cross_team_access_attempt counter.
type CrossTeamAttemptMeter interface {
	CrossTeamAttempt(fromTeam, toTeam, resourceKind string)
}

// NoopMeter discards cross-team attempt notifications.
type NoopMeter struct{}

func (NoopMeter) CrossTeamAttempt(string, string, string) {}

// Kernel evaluates access decisions. It holds no state of its own beyond
// an optional metrics sink; team-name resolution is done by
// ResolveTeamIDs against a TeamLookup supplied by the caller (normally
// pkg/storage) to keep this package storage-free.
type Kernel struct {
	Meter CrossTeamAttemptMeter
}

// New constructs a Kernel. meter may be nil, in which case cross-team
// attempts are simply not counted.
func New(meter CrossTeamAttemptMeter) *Kernel {
	if meter == nil {
		meter = NoopMeter{}
	}
	return &Kernel{Meter: meter}
}

// CheckResourceAccess implements the rule order below:
//
//  1. admin:all + governance resource kind -> allow.
//  2. target team is nil (global resource): read always allowed; write
//     only for the bootstrap identity (isBootstrap).
//  3. org:<org>:admin matching ctx's org_name -> allow for any team in
//     that org (requires resolving the target team's org, done by the
//     caller passing targetOrgName).
//  4. team:<target_team>:<resource>:<action> -> allow.
//  5. <resource>:<action> -> allow.
//  6. deny.
func (k *Kernel) CheckResourceAccess(ctx types.AuthContext, resourceKind string, action Action, targetTeam *string, targetOrgName string, isBootstrap bool) bool {
	if ctx.IsAdminAll() && governanceResources[resourceKind] {
		return true
	}
	if targetTeam == nil {
		if action == Read {
			return true
		}
		return isBootstrap
	}
	if ctx.OrgAdminFor(targetOrgName) {
		return true
	}
	if ctx.TeamScope(*targetTeam, resourceKind, action) {
		return true
	}
	if ctx.ResourceScope(resourceKind, action) {
		return true
	}
	return false
}

// VerifyOrgBoundary fails with NotFound when both orgs are known and
// differ. An admin without org context does not bypass this check.
func (k *Kernel) VerifyOrgBoundary(ctxOrgID, resourceOrgID string) error {
	if ctxOrgID != "" && resourceOrgID != "" && ctxOrgID != resourceOrgID {
		return apierr.NotFoundf("organization", resourceOrgID)
	}
	return nil
}

// TeamOwned is implemented by anything verify-team-access can be asked
// about: a resource that is either global (TeamID == "") or owned by one
// team.
type TeamOwned interface {
	OwnerTeamID() string
}

// VerifyTeamAccess allows team-less resources unconditionally for reads
// (callers should still gate writes via CheckResourceAccess) and
// otherwise requires the resource's team to be in ctx's effective team
// id set; on mismatch it returns NotFound and meters a cross-team
// attempt, never Forbidden — proving existence to an outsider is not
// allowed.
func (k *Kernel) VerifyTeamAccess(ctx context.Context, resourceKind, resourceName, resourceTeamID string, effectiveTeamIDs map[string]bool, callerTeamLabel string) error {
	if resourceTeamID == "" {
		return nil
	}
	if effectiveTeamIDs[resourceTeamID] {
		return nil
	}
	k.Meter.CrossTeamAttempt(callerTeamLabel, resourceTeamID, resourceKind)
	return apierr.NotFoundf(resourceKind, resourceName)
}

// EffectiveTeamIDs expands ctx's scopes into the set of team ids it may
// access, given a resolver from (org, team name) -> id for org:admin
// expansion. orgTeamIDs supplies every team id belonging to ctx's org,
// used only when ctx carries an org:<org>:admin scope.
func EffectiveTeamIDs(ctx types.AuthContext, teamNameToID map[string]string, orgTeamIDs []string) map[string]bool {
	out := map[string]bool{}
	for _, s := range ctx.Scopes {
		switch s.Kind {
		case types.ScopeKindTeamResource:
			if id, ok := teamNameToID[s.Team]; ok {
				out[id] = true
			}
		case types.ScopeKindOrgAdmin:
			if s.OrgName == ctx.OrgName {
				for _, id := range orgTeamIDs {
					out[id] = true
				}
			}
		}
	}
	return out
}

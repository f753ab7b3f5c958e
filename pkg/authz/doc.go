// Package authz is the authorization kernel: it computes the effective
// team set for an authenticated context, decides whether an action is
// permitted against a named resource, enforces organization boundaries,
// and resolves team names to ids within an organization.
//
// Every failure surfaces as either apierr.NotFound (to avoid existence
// disclosure across tenants) or apierr.Forbidden (only once the caller
// has proven knowledge of the resource). Nothing in this package ever
// falls through to an implicit allow; CheckResourceAccess enumerates its
// rules in a fixed order and returns false the moment none of them
// match.
package authz

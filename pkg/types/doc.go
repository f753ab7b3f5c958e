// Package types defines the storage-free domain model of the control
// plane: organizations, teams, users, scopes, and the proxy-facing
// resources (clusters, route configurations, listeners, filters, secrets,
// API definitions, and xDS snapshots) that the materializer compiles and
// the xDS engine serves.
//
// Every exported type that participates in a mutation carries a
// Validate() method enumerating its own shape invariants; validation
// never touches storage and never fails on things only a
// repository could know (uniqueness, existence of referenced rows) — those
// are checked by pkg/materializer and pkg/storage once a transaction is
// open.
//
// Identifiers are opaque strings generated with google/uuid unless a
// natural key is documented otherwise (organization and team names, for
// instance, are natural keys used by callers; the generated id is the
// storage key). Equality on identifiers is plain string equality and
// ordering is lexicographic, so repositories can use an ordinary sorted
// index without a custom collator.
package types

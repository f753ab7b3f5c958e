// Package storage defines the repository contracts the rest of the core
// depends on and a bbolt-backed reference implementation.
//
// Every mutating repository method is only ever called with a Tx handed
// out by Transactor.WithinTx: repositories never open their own
// transaction, so a caller (typically pkg/materializer) can compose
// several repository calls — write a cluster, a route configuration, a
// listener — into one atomic unit for the materializer's compile step.
//
// Writes to clusters, route configurations, listeners, filters, secrets
// and API definitions follow the same three-step shape: reload the row
// under the transaction, bump its version and updated_at, and persist.
// Each of their creates, updates and deletes also appends an audit row,
// with secret bytes stripped before the row is ever built. Organization,
// team, user and membership rows carry no version, and their writes
// append no audit row. A unique-constraint collision is surfaced as
// apierr.Conflict.
//
// "A relational store with transactions" is treated as an external
// collaborator rather than a mandated engine. This package uses
// go.etcd.io/bbolt as the concrete choice: single-file, embedded, and
// it already gives pkg/materializer the transactional semantics (one
// process-wide read/write transaction with full isolation) that a
// compile step needs — serializable or snapshot isolation is enough;
// repeatable-read is the minimum.
package storage

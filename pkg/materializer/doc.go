// Package materializer compiles a declarative ApiDefinitionSpec into the
// four persisted resource tables — clusters, route configurations,
// listeners, and the filter attachments threaded through them — inside a
// single storage transaction, and cascades the same resources back out
// on delete.
//
// Every public entry point (CreateDefinition, AppendRoute,
// UpdateDefinition, DeleteDefinition) opens exactly one
// storage.Transactor.WithinTx call: a failure at any compile step rolls
// the whole write back, so a caller never observes a partially
// materialized definition. After a successful commit the materializer
// publishes an xds.rebuild_requested event (pkg/events) and returns —
// it never waits for or depends on the xDS engine's rebuild succeeding,
// matching the compensation model where the data store stays
// authoritative and the engine converges by periodic full rebuild.
package materializer

// Package filters implements the filter schema registry and dynamic
// JSON-to-wire conversion: a filter_type string looks up a
// FilterSchemaDefinition, and the
// configuration JSON attached to a FilterDefinition or FilterAttachment
// is encoded as a google.protobuf.Struct wrapped in an Any addressed by
// the schema's type URL — no compile-time match arm is needed per filter
// type.
package filters

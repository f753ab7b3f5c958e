// Package pathmatch normalizes route match paths so two differently
// spelled but semantically identical paths (repeated slashes, a
// wandering trailing slash) compare equal, and derives a readable
// {param} template from a literal path (Templatize). The OpenAPI adapter
// does not call Templatize: it names an operation that has no
// operationId from its method and raw path.
package pathmatch

// Package openapi adapts an OpenAPI document into an ApiDefinitionSpec
// the materializer can compile. ParseDocument decodes raw JSON or YAML
// into the generic document shape (map[string]any); Translate turns that
// shape into flowplane's domain types. No side effects — the adapter
// never talks to storage.
package openapi

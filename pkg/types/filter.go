package types

import (
	"regexp"
	"time"

	"github.com/flowplane/flowplane/pkg/apierr"
)

// FilterDefinition is a concrete, configured instance of a filter type
//. The filter_type string is looked up
// in the schema registry (pkg/filters) to learn how to emit it on the
// wire.
type FilterDefinition struct {
	ID            string
	TeamID        string
	Name          string
	FilterType    string
	Configuration map[string]any
	Version       uint64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks structural invariants only; whether FilterType is a
// known filter and Configuration matches its schema is checked by
// pkg/filters, which needs the registry this package doesn't depend on.
func (f *FilterDefinition) Validate() error {
	if f.Name == "" {
		return apierr.Validationf("filter name must not be empty")
	}
	if f.FilterType == "" {
		return apierr.Validationf("filter %q must declare a filter_type", f.Name)
	}
	return nil
}

// AttachmentScope is a closed set of the places a filter can attach.
type AttachmentScope string

const (
	AttachmentListener    AttachmentScope = "listener"
	AttachmentVirtualHost AttachmentScope = "virtual_host"
	AttachmentRoute       AttachmentScope = "route"
)

// FilterAttachment binds a FilterDefinition to a scope with an ordering
// hint.
type FilterAttachment struct {
	ID         string
	FilterName string
	Scope      AttachmentScope
	TargetID   string // listener id, virtual host name, or route rule id
	Order      int
	// Override, when Scope != AttachmentListener, carries a possibly
	// partial configuration used per the schema's per-route behavior
	// (pkg/filters.Capabilities).
	Override map[string]any
}

// SortAttachments sorts attachments ascending by Order, then by id:
// within a scope, attachments are sorted ascending by order, then by
// attachment id.
func SortAttachments(attachments []FilterAttachment) []FilterAttachment {
	out := make([]FilterAttachment, len(attachments))
	copy(out, attachments)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			if a.Order < b.Order || (a.Order == b.Order && a.ID <= b.ID) {
				break
			}
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// SecretType is a closed set of supported secret kinds.
type SecretType string

const (
	SecretGeneric           SecretType = "generic"
	SecretTLSCertificate    SecretType = "tls_certificate"
	SecretValidationContext SecretType = "validation_context"
)

var secretNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.\-]{1,128}$`)

// Secret is addressable by name from filters and TLS contexts; its bytes
// never appear in audit logs or API responses.
// Configuration (for generic secrets) or BackendReference (for a secret
// sourced from pkg/secrets) is set, never both.
type Secret struct {
	ID               string
	TeamID           string
	Name             string
	SecretType       SecretType
	Configuration    map[string]any // only for inline/generic secrets
	BackendReference string         // backend name + path, resolved via pkg/secrets
	ExpiresAt        *time.Time
	Version          uint64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate enforces the secret name shape and type enum; it deliberately
// never inspects Configuration contents (those may contain secret bytes).
func (s *Secret) Validate() error {
	if !secretNamePattern.MatchString(s.Name) {
		return apierr.Validationf("secret name %q invalid", s.Name)
	}
	switch s.SecretType {
	case SecretGeneric, SecretTLSCertificate, SecretValidationContext:
	default:
		return apierr.Validationf("secret type %q invalid", s.SecretType)
	}
	if s.Configuration != nil && s.BackendReference != "" {
		return apierr.Validationf("secret %q must not set both an inline configuration and a backend reference", s.Name)
	}
	return nil
}

// Redacted returns a copy of s with Configuration and BackendReference
// cleared, safe to place in an audit log or API response.
func (s *Secret) Redacted() *Secret {
	cp := *s
	cp.Configuration = nil
	cp.BackendReference = ""
	return &cp
}

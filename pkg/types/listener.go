package types

import (
	"net"
	"time"

	"github.com/flowplane/flowplane/pkg/apierr"
)

// DefaultGatewayListenerName is the canonical shared listener: globally
// owned, team-less.
const DefaultGatewayListenerName = "default-gateway-listener"

// DefaultGatewayRoutesName is the shared route configuration merged into
// by every non-isolated API definition.
const DefaultGatewayRoutesName = "default-gateway-routes"

// NetworkFilterKind distinguishes listener-level network filters; only
// the HTTP connection manager is modeled in depth, everything else is
// opaque configuration the materializer never inspects.
type NetworkFilterKind string

const (
	NetworkFilterHTTPConnectionManager NetworkFilterKind = "http_connection_manager"
	NetworkFilterOpaque                NetworkFilterKind = "opaque"
)

// NetworkFilter is one entry of a filter chain.
type NetworkFilter struct {
	Kind           NetworkFilterKind
	Name           string
	RouteConfigRef string // HCM: name of the RouteConfiguration it serves
	HTTPFilters    []FilterAttachment
	OpaqueConfig   map[string]any
}

// TLSContext configures downstream TLS termination for a filter chain.
// The core never terminates TLS itself, it only records the declarative
// configuration a proxy will use to do so.
type TLSContext struct {
	CertificateSecretRef string
	ValidationSecretRef  string
	RequireClientCert    bool
}

// FilterChain is one entry of a Listener's filter chain list.
type FilterChain struct {
	Filters []NetworkFilter
	TLS     *TLSContext
}

// Listener is a bound socket with a filter chain.
type Listener struct {
	ID           string
	TeamID       string // empty for the shared gateway listener
	Name         string
	Address      string
	Port         uint32
	FilterChains []FilterChain
	DataplaneID  string
	Version      uint64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate enforces that the port is 1-65535 and the bind address
// parses.
func (l *Listener) Validate() error {
	if l.Name == "" {
		return apierr.Validationf("listener name must not be empty")
	}
	if l.Port < 1 || l.Port > 65535 {
		return apierr.Validationf("listener %q port %d out of range", l.Name, l.Port)
	}
	if l.Address == "" {
		return apierr.Validationf("listener %q must declare a bind address", l.Name)
	}
	if net.ParseIP(l.Address) == nil && l.Address != "0.0.0.0" && l.Address != "::" {
		if _, _, err := net.SplitHostPort(l.Address + ":0"); err != nil {
			// allow bare hostnames too; only reject clearly malformed values
			if !isLikelyHostname(l.Address) {
				return apierr.Validationf("listener %q bind address %q is not parseable", l.Name, l.Address)
			}
		}
	}
	return nil
}

// IsGlobal reports whether this listener is the team-less shared
// gateway listener (or any other team-less listener).
func (l *Listener) IsGlobal() bool { return l.TeamID == "" }

func isLikelyHostname(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '.' || r == '-' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

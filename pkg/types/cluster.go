package types

import (
	"time"

	"github.com/flowplane/flowplane/pkg/apierr"
)

// Endpoint is a single upstream target.
type Endpoint struct {
	Host         string
	Port         uint32
	HealthStatus string // optional, informational only; the core never probes upstreams
}

// ClusterTLS configures upstream TLS origination for a Cluster.
type ClusterTLS struct {
	ServerName    string
	Verify        bool
	ClientCertRef string // secret name, resolved through pkg/secrets
	MinTLSVersion string // "1.2" or "1.3"
}

func (t *ClusterTLS) validate() error {
	if t == nil {
		return nil
	}
	if t.MinTLSVersion != "" && t.MinTLSVersion != "1.2" && t.MinTLSVersion != "1.3" {
		return apierr.Validationf("tls.min_tls_version must be 1.2 or 1.3, got %q", t.MinTLSVersion)
	}
	return nil
}

// LbPolicyKind identifies a cluster's load-balancing algorithm.
type LbPolicyKind string

const (
	LbRoundRobin   LbPolicyKind = "round_robin"
	LbLeastRequest LbPolicyKind = "least_request"
	LbRandom       LbPolicyKind = "random"
	LbRingHash     LbPolicyKind = "ring_hash"
	LbMaglev       LbPolicyKind = "maglev"
)

// LbPolicy is a closed-set tagged variant: only one of the parameter
// fields relevant to Kind is meaningful.
type LbPolicy struct {
	Kind             LbPolicyKind
	LeastRequestK    uint32 // LbLeastRequest
	RingHashSize     uint64 // LbRingHash
	MaglevTableSize  uint64 // LbMaglev
}

func (p LbPolicy) validate() error {
	switch p.Kind {
	case LbRoundRobin, LbLeastRequest, LbRandom, LbRingHash, LbMaglev:
		return nil
	default:
		return apierr.Validationf("lb_policy %q invalid", p.Kind)
	}
}

// HealthCheck is a declarative upstream health-check configuration. The
// core never executes these checks itself; they
// are carried through to the emitted Envoy cluster untouched.
type HealthCheck struct {
	Kind               string // "http", "tcp", "grpc"
	Path               string
	IntervalSeconds    uint32
	TimeoutSeconds     uint32
	UnhealthyThreshold uint32
	HealthyThreshold   uint32
}

// CircuitBreaker bounds concurrent upstream usage.
type CircuitBreaker struct {
	MaxConnections     uint32
	MaxPendingRequests uint32
	MaxRequests        uint32
	MaxRetries         uint32
}

// OutlierDetection configures passive health ejection.
type OutlierDetection struct {
	ConsecutiveErrors  uint32
	IntervalSeconds    uint32
	BaseEjectionSeconds uint32
	MaxEjectionPercent uint32
}

// Cluster is a named set of upstream endpoints plus policies
//.
type Cluster struct {
	ID                    string
	TeamID                string // empty for global clusters
	Name                  string // unique within team, globally unique when team-less
	ServiceName           string
	Endpoints             []Endpoint
	ConnectTimeoutSeconds uint32
	TLS                   *ClusterTLS
	LbPolicy              LbPolicy
	HealthChecks          []HealthCheck
	CircuitBreaker        *CircuitBreaker
	OutlierDetection      *OutlierDetection
	Version               uint64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Validate enforces the cluster shape invariants.
func (c *Cluster) Validate() error {
	if c.Name == "" {
		return apierr.Validationf("cluster name must not be empty")
	}
	if len(c.Endpoints) == 0 {
		return apierr.Validationf("cluster %q must have at least one endpoint", c.Name)
	}
	if c.ConnectTimeoutSeconds < 1 {
		return apierr.Validationf("cluster %q connect_timeout_seconds must be >= 1", c.Name)
	}
	for i, ep := range c.Endpoints {
		if ep.Host == "" {
			return apierr.Validationf("cluster %q endpoint[%d] has an empty host", c.Name, i)
		}
		if ep.Port == 0 || ep.Port > 65535 {
			return apierr.Validationf("cluster %q endpoint[%d] port %d out of range", c.Name, i, ep.Port)
		}
	}
	if err := c.TLS.validate(); err != nil {
		return err
	}
	return c.LbPolicy.validate()
}

// IsGlobal reports whether this cluster is team-less.
func (c *Cluster) IsGlobal() bool { return c.TeamID == "" }

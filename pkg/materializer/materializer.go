package materializer

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/events"
	"github.com/flowplane/flowplane/pkg/filters"
	"github.com/flowplane/flowplane/pkg/log"
	"github.com/flowplane/flowplane/pkg/materializer/pathmatch"
	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
)

// Materializer compiles API definitions into persisted proxy resources.
type Materializer struct {
	store    storage.Transactor
	registry *filters.Registry
	rebuild  *events.Broker
	logger   zerolog.Logger
}

// New builds a Materializer. rebuild may be nil, in which case the
// post-commit signal is simply skipped (used by tests that don't care
// about xDS refresh).
func New(store storage.Transactor, registry *filters.Registry, rebuild *events.Broker) *Materializer {
	return &Materializer{
		store:    store,
		registry: registry,
		rebuild:  rebuild,
		logger:   log.WithComponent("materializer"),
	}
}

// CreateResult is the outcome of CreateDefinition.
type CreateResult struct {
	Definition   *types.ApiDefinitionSpec
	RouteIDs     []string
	BootstrapURI string
}

// AppendResult is the outcome of AppendRoute.
type AppendResult struct {
	Definition   *types.ApiDefinitionSpec
	RouteID      string
	BootstrapURI string
}

func bootstrapURI(defID string) string {
	return fmt.Sprintf("/api/v1/api-definitions/%s/bootstrap", defID)
}

func (m *Materializer) signalRebuild(reason, resourceID string) {
	if m.rebuild == nil {
		return
	}
	m.rebuild.PublishRebuild(reason, resourceID)
}

// SignalRebuild is the exported form of signalRebuild, used by callers
// outside this package (pkg/httpapi's filter-attachment handlers) that
// mutate a resource directly rather than through Create/Append/Update/
// DeleteDefinition and so must request an xDS refresh themselves.
func (m *Materializer) SignalRebuild(reason, resourceID string) {
	m.signalRebuild(reason, resourceID)
}

// validateFilterRefs ensures every attachment names a known filter_type,
// per the registry — the materializer never encodes the wire Any
// itself, that happens when pkg/xds/resources builds a snapshot, but it
// must reject an unknown filter_type at write time rather than let it
// surface later as a silent no-op.
func (m *Materializer) validateFilterRefs(refs []types.FilterAttachment) error {
	for _, ref := range refs {
		if _, err := m.registry.MustGet(ref.FilterName); err != nil {
			return err
		}
	}
	return nil
}

// canonicalClusterKey derives a stable signature for a cluster spec so
// two upstream target groups with identical endpoints, TLS, and
// load-balancing policy resolve to the same key — the chosen
// canonicalization for the "reuse if
// identical" dedup rule: JSON-encode the fields that define behavior,
// with endpoint order preserved (order is significant to a round-robin
// policy) and the map keys of Go's encoding/json already sorted for us.
func canonicalClusterKey(teamID string, endpoints []types.Endpoint, tls *types.ClusterTLS, lb types.LbPolicy, timeout uint32) string {
	type key struct {
		TeamID    string
		Endpoints []types.Endpoint
		TLS       *types.ClusterTLS
		LbPolicy  types.LbPolicy
		Timeout   uint32
	}
	b, _ := json.Marshal(key{teamID, endpoints, tls, lb, timeout})
	return string(b)
}

// findReusableCluster looks for an existing cluster in the team owning
// the same canonical signature as the wanted spec, so repeated
// materialization of identical route specs (S2-style recreate, or two
// definitions pointing at the same upstream) converges on one cluster
// row instead of minting duplicates.
func findReusableCluster(tx storage.Tx, teamID string, endpoints []types.Endpoint, tls *types.ClusterTLS, lb types.LbPolicy, timeout uint32) (*types.Cluster, error) {
	wanted := canonicalClusterKey(teamID, endpoints, tls, lb, timeout)
	existing, err := tx.Clusters().ListByTeam(teamID, 0, 0)
	if err != nil {
		return nil, err
	}
	for _, c := range existing {
		if canonicalClusterKey(c.TeamID, c.Endpoints, c.TLS, c.LbPolicy, c.ConnectTimeoutSeconds) == wanted {
			return c, nil
		}
	}
	return nil, nil
}

// ensureCluster reuses an identical existing cluster or creates a new
// one named deterministically from the definition id and the target
// group's position, so two materializations of the same spec produce
// the same cluster set (spec's determinism requirement).
func (m *Materializer) ensureCluster(tx storage.Tx, teamID, defID string, index int, targets []types.UpstreamTarget, tls *types.ClusterTLS, timeout uint32) (*types.Cluster, error) {
	endpoints := make([]types.Endpoint, len(targets))
	for i, t := range targets {
		endpoints[i] = types.Endpoint{Host: t.Host, Port: t.Port}
	}
	lb := types.LbPolicy{Kind: types.LbRoundRobin}
	if timeout == 0 {
		timeout = 5
	}

	if existing, err := findReusableCluster(tx, teamID, endpoints, tls, lb, timeout); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	c := &types.Cluster{
		TeamID:                teamID,
		Name:                  fmt.Sprintf("cluster-%s-%d", defID, index),
		ServiceName:           fmt.Sprintf("cluster-%s-%d", defID, index),
		Endpoints:             endpoints,
		ConnectTimeoutSeconds: timeout,
		TLS:                   tls,
		LbPolicy:              lb,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := tx.Clusters().Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

// buildRouteRule turns one RouteSpec into a persisted RouteRule,
// creating or reusing the clusters its targets resolve to.
func (m *Materializer) buildRouteRule(tx storage.Tx, teamID, defID string, index int, spec types.RouteSpec, tls *types.ClusterTLS) (types.RouteRule, []string, error) {
	if err := spec.Validate(); err != nil {
		return types.RouteRule{}, nil, err
	}
	if err := m.validateFilterRefs(spec.FilterRefs); err != nil {
		return types.RouteRule{}, nil, err
	}

	matchKind, err := matchKindFor(spec.MatchType)
	if err != nil {
		return types.RouteRule{}, nil, err
	}

	var action types.RouteAction
	var clusterIDs []string
	if len(spec.Targets) == 1 {
		c, err := m.ensureCluster(tx, teamID, defID, index, spec.Targets, tls, spec.TimeoutSeconds)
		if err != nil {
			return types.RouteRule{}, nil, err
		}
		clusterIDs = append(clusterIDs, c.ID)
		action = types.RouteAction{
			Kind:            types.ActionForward,
			Cluster:         c.Name,
			TimeoutSeconds:  spec.TimeoutSeconds,
			PrefixRewrite:   spec.RewritePrefix,
			TemplateRewrite: spec.RewriteRegex,
		}
	} else {
		weighted := make([]types.WeightedClusterRef, 0, len(spec.Targets))
		for ti, target := range spec.Targets {
			c, err := m.ensureCluster(tx, teamID, defID, index*1000+ti, []types.UpstreamTarget{target}, tls, spec.TimeoutSeconds)
			if err != nil {
				return types.RouteRule{}, nil, err
			}
			clusterIDs = append(clusterIDs, c.ID)
			weighted = append(weighted, types.WeightedClusterRef{Cluster: c.Name, Weight: target.Weight})
		}
		action = types.RouteAction{Kind: types.ActionWeighted, WeightedClusters: weighted}
	}
	if err := action.Validate(); err != nil {
		return types.RouteRule{}, nil, err
	}

	order := index
	if spec.RouteOrder != nil {
		order = *spec.RouteOrder
	}
	routeID := spec.Name
	if routeID == "" {
		routeID = uuid.NewString()
	}

	perFilter := map[string]map[string]any{}
	for _, ref := range spec.FilterRefs {
		if ref.Scope == types.AttachmentRoute {
			perFilter[ref.FilterName] = ref.Override
		}
	}

	rule := types.RouteRule{
		Name:            routeID,
		Match:           types.RouteMatch{PathKind: matchKind, PathValue: pathmatch.Normalize(spec.MatchValue)},
		Action:          action,
		PerFilterConfig: perFilter,
		Order:           order,
	}
	if err := rule.Validate(); err != nil {
		return types.RouteRule{}, nil, err
	}
	return rule, clusterIDs, nil
}

func matchKindFor(mt types.MatchType) (types.PathMatchKind, error) {
	switch mt {
	case types.MatchExact:
		return types.PathExact, nil
	case types.MatchPrefix:
		return types.PathPrefix, nil
	case types.MatchRegex:
		return types.PathRegex, nil
	case types.MatchTemplate:
		return types.PathTemplate, nil
	default:
		return "", apierr.Validationf("match_type %q invalid", mt)
	}
}

// sortRules orders a virtual host's routes by Order, then insertion
// index, matching "route ordering within a virtual host follows
// route_order, then insertion order."
func sortRules(rules []types.RouteRule) {
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Order < rules[j].Order })
}

// vhostNameForDefinition derives the (stable, deterministic) virtual
// host name a definition contributes to the shared route configuration.
func vhostNameForDefinition(domain string) string { return domain }

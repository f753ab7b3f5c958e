// Package resources turns flowplane's domain types (pkg/types Cluster,
// RouteConfiguration, Listener, Secret) into their Envoy v3 wire
// representation, encoded as google.protobuf.Any plus a content hash
// used by the snapshot engine's version-bump detection. Grounded in the
// go-control-plane usage shown by
// rajsinghtech-tailscale/tailscale-gateway's pkg/xds/server.go
// (envoycluster/envoycore/envoyendpoint/envoyroute construction), generalized
// from one fixed Tailscale cluster shape to flowplane's full domain
// model.
package resources

import (
	"fmt"
	"regexp"
	"time"

	"github.com/cespare/xxhash/v2"
	clusterv3 "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	endpointv3 "github.com/envoyproxy/go-control-plane/envoy/config/endpoint/v3"
	listenerv3 "github.com/envoyproxy/go-control-plane/envoy/config/listener/v3"
	routev3 "github.com/envoyproxy/go-control-plane/envoy/config/route/v3"
	hcmv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/network/http_connection_manager/v3"
	tlsv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/transport_sockets/tls/v3"
	matcherv3 "github.com/envoyproxy/go-control-plane/envoy/type/matcher/v3"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/filters"
	"github.com/flowplane/flowplane/pkg/types"
)

// Type URLs for the five resource kinds the engine serves, matching the
// `type.googleapis.com/envoy.config.*.v3.*` convention used throughout
// the Envoy xDS wire protocol.
const (
	ClusterTypeURL  = "type.googleapis.com/envoy.config.cluster.v3.Cluster"
	ListenerTypeURL = "type.googleapis.com/envoy.config.listener.v3.Listener"
	RouteTypeURL    = "type.googleapis.com/envoy.config.route.v3.RouteConfiguration"
	EndpointTypeURL = "type.googleapis.com/envoy.config.endpoint.v3.ClusterLoadAssignment"
	SecretTypeURL   = "type.googleapis.com/envoy.extensions.transport_sockets.tls.v3.Secret"
)

// TypeURLFor maps a types.TypeURL logical name to its wire type URL.
func TypeURLFor(t types.TypeURL) string {
	switch t {
	case types.TypeURLCluster:
		return ClusterTypeURL
	case types.TypeURLListener:
		return ListenerTypeURL
	case types.TypeURLRouteConfiguration:
		return RouteTypeURL
	case types.TypeURLClusterLoadAssignment:
		return EndpointTypeURL
	case types.TypeURLSecret:
		return SecretTypeURL
	default:
		return ""
	}
}

// Built is one encoded resource plus the bookkeeping the model package
// needs to compute scope-filtered views: its own team, and (for a
// Listener) the route configuration names it references, or (for a
// RouteConfiguration) the cluster names its actions reference.
type Built struct {
	Name        string
	TeamID      string
	Any         *anypb.Any
	Hash        uint64
	RouteRefs   []string // Listener -> RouteConfiguration names it serves
	ClusterRefs []string // RouteConfiguration -> Cluster names its rules forward to
	SecretRefs  []string // Listener or Cluster -> Secret names its TLS context references
}

func hashOf(msg proto.Message) (uint64, error) {
	b, err := proto.Marshal(msg)
	if err != nil {
		return 0, apierr.Wrap(apierr.Internal, fmt.Errorf("marshal xds resource: %w", err))
	}
	return xxhash.Sum64(b), nil
}

func toAny(msg proto.Message, typeURL string) (*anypb.Any, error) {
	b, err := proto.Marshal(msg)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, fmt.Errorf("marshal xds resource: %w", err))
	}
	return &anypb.Any{TypeUrl: typeURL, Value: b}, nil
}

// BuildCluster renders c as an Envoy v3 Cluster.
func BuildCluster(c *types.Cluster) (Built, error) {
	cl := &clusterv3.Cluster{
		Name:           c.Name,
		ConnectTimeout: durationpb.New(time.Duration(c.ConnectTimeoutSeconds) * time.Second),
		ClusterDiscoveryType: &clusterv3.Cluster_Type{
			Type: clusterv3.Cluster_STATIC,
		},
		LoadAssignment: buildLoadAssignment(c),
		LbPolicy:       lbPolicyOf(c.LbPolicy.Kind),
	}
	if c.TLS != nil {
		sock, err := buildUpstreamTLS(c.TLS)
		if err != nil {
			return Built{}, err
		}
		cl.TransportSocket = sock
	}
	if c.CircuitBreaker != nil {
		cl.CircuitBreakers = &clusterv3.CircuitBreakers{
			Thresholds: []*clusterv3.CircuitBreakers_Thresholds{{
				MaxConnections:     wrapperspb.UInt32(c.CircuitBreaker.MaxConnections),
				MaxPendingRequests: wrapperspb.UInt32(c.CircuitBreaker.MaxPendingRequests),
				MaxRequests:        wrapperspb.UInt32(c.CircuitBreaker.MaxRequests),
				MaxRetries:         wrapperspb.UInt32(c.CircuitBreaker.MaxRetries),
			}},
		}
	}
	if c.OutlierDetection != nil {
		cl.OutlierDetection = &clusterv3.OutlierDetection{
			Consecutive_5Xx:    wrapperspb.UInt32(c.OutlierDetection.ConsecutiveErrors),
			Interval:           durationpb.New(time.Duration(c.OutlierDetection.IntervalSeconds) * time.Second),
			BaseEjectionTime:   durationpb.New(time.Duration(c.OutlierDetection.BaseEjectionSeconds) * time.Second),
			MaxEjectionPercent: wrapperspb.UInt32(c.OutlierDetection.MaxEjectionPercent),
		}
	}

	any, err := toAny(cl, ClusterTypeURL)
	if err != nil {
		return Built{}, err
	}
	hash, err := hashOf(cl)
	if err != nil {
		return Built{}, err
	}
	var secretRefs []string
	if c.TLS != nil && c.TLS.ClientCertRef != "" {
		secretRefs = append(secretRefs, c.TLS.ClientCertRef)
	}
	return Built{Name: c.Name, TeamID: c.TeamID, Any: any, Hash: hash, SecretRefs: secretRefs}, nil
}

func lbPolicyOf(kind types.LbPolicyKind) clusterv3.Cluster_LbPolicy {
	switch kind {
	case types.LbLeastRequest:
		return clusterv3.Cluster_LEAST_REQUEST
	case types.LbRandom:
		return clusterv3.Cluster_RANDOM
	case types.LbRingHash:
		return clusterv3.Cluster_RING_HASH
	case types.LbMaglev:
		return clusterv3.Cluster_MAGLEV
	default:
		return clusterv3.Cluster_ROUND_ROBIN
	}
}

func buildLoadAssignment(c *types.Cluster) *endpointv3.ClusterLoadAssignment {
	lbEndpoints := make([]*endpointv3.LbEndpoint, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		lbEndpoints[i] = &endpointv3.LbEndpoint{
			HostIdentifier: &endpointv3.LbEndpoint_Endpoint{
				Endpoint: &endpointv3.Endpoint{
					Address: socketAddress(ep.Host, ep.Port),
				},
			},
		}
	}
	return &endpointv3.ClusterLoadAssignment{
		ClusterName: c.Name,
		Endpoints: []*endpointv3.LocalityLbEndpoints{{
			LbEndpoints: lbEndpoints,
		}},
	}
}

func socketAddress(host string, port uint32) *corev3.Address {
	return &corev3.Address{
		Address: &corev3.Address_SocketAddress{
			SocketAddress: &corev3.SocketAddress{
				Protocol: corev3.SocketAddress_TCP,
				Address:  host,
				PortSpecifier: &corev3.SocketAddress_PortValue{
					PortValue: port,
				},
			},
		},
	}
}

// BuildEndpoint renders c's endpoint set as a standalone
// ClusterLoadAssignment, for the EDS type URL when a cluster is declared
// EDS-backed rather than STATIC. flowplane always emits STATIC clusters
// with an inline LoadAssignment (nothing here asks for separately
// discovered endpoints), so this is provided for completeness of the
// EDS type URL surface rather than wired into BuildCluster's output.
func BuildEndpoint(c *types.Cluster) (Built, error) {
	cla := buildLoadAssignment(c)
	any, err := toAny(cla, EndpointTypeURL)
	if err != nil {
		return Built{}, err
	}
	hash, err := hashOf(cla)
	if err != nil {
		return Built{}, err
	}
	return Built{Name: c.Name, TeamID: c.TeamID, Any: any, Hash: hash}, nil
}

func buildUpstreamTLS(t *types.ClusterTLS) (*corev3.TransportSocket, error) {
	ctx := &tlsv3.UpstreamTlsContext{
		Sni: t.ServerName,
		CommonTlsContext: &tlsv3.CommonTlsContext{
			TlsParams: tlsParamsOf(t.MinTLSVersion),
		},
	}
	if t.Verify && t.ClientCertRef != "" {
		ctx.CommonTlsContext.ValidationContextType = &tlsv3.CommonTlsContext_ValidationContextSdsSecretConfig{
			ValidationContextSdsSecretConfig: &tlsv3.SdsSecretConfig{Name: t.ClientCertRef},
		}
	}
	any, err := toAny(ctx, "type.googleapis.com/envoy.extensions.transport_sockets.tls.v3.UpstreamTlsContext")
	if err != nil {
		return nil, err
	}
	return &corev3.TransportSocket{
		Name:       "envoy.transport_sockets.tls",
		ConfigType: &corev3.TransportSocket_TypedConfig{TypedConfig: any},
	}, nil
}

func tlsParamsOf(minVersion string) *tlsv3.TlsParameters {
	if minVersion == "" {
		return nil
	}
	v := tlsv3.TlsParameters_TLSv1_2
	if minVersion == "1.3" {
		v = tlsv3.TlsParameters_TLSv1_3
	}
	return &tlsv3.TlsParameters{TlsMinimumProtocolVersion: v}
}

// BuildRouteConfiguration renders rc as an Envoy v3 RouteConfiguration
// and records every cluster name its rules forward traffic to, so the
// model package can compute the transitive cluster set a scope needs.
func BuildRouteConfiguration(rc *types.RouteConfiguration, converter *filters.Converter) (Built, error) {
	var clusterRefs []string
	vhosts := make([]*routev3.VirtualHost, len(rc.Configuration.VirtualHosts))
	for i, vh := range rc.Configuration.VirtualHosts {
		built, refs, err := buildVirtualHost(vh, converter)
		if err != nil {
			return Built{}, err
		}
		vhosts[i] = built
		clusterRefs = append(clusterRefs, refs...)
	}

	msg := &routev3.RouteConfiguration{
		Name:         rc.Name,
		VirtualHosts: vhosts,
	}
	any, err := toAny(msg, RouteTypeURL)
	if err != nil {
		return Built{}, err
	}
	hash, err := hashOf(msg)
	if err != nil {
		return Built{}, err
	}
	return Built{Name: rc.Name, TeamID: rc.TeamID, Any: any, Hash: hash, ClusterRefs: dedupe(clusterRefs)}, nil
}

func buildVirtualHost(vh types.VirtualHost, converter *filters.Converter) (*routev3.VirtualHost, []string, error) {
	var clusterRefs []string
	routes := make([]*routev3.Route, len(vh.Routes))
	for i, rule := range vh.Routes {
		r, refs, err := buildRoute(rule, converter)
		if err != nil {
			return nil, nil, err
		}
		routes[i] = r
		clusterRefs = append(clusterRefs, refs...)
	}

	out := &routev3.VirtualHost{
		Name:    vh.Name,
		Domains: vh.Domains,
		Routes:  routes,
	}
	if cfg, err := perFilterAny(vh.PerFilterConfig, converter); err != nil {
		return nil, nil, err
	} else if len(cfg) > 0 {
		out.TypedPerFilterConfig = cfg
	}
	return out, clusterRefs, nil
}

func buildRoute(rule types.RouteRule, converter *filters.Converter) (*routev3.Route, []string, error) {
	match, err := buildRouteMatch(rule.Match)
	if err != nil {
		return nil, nil, err
	}

	out := &routev3.Route{Name: rule.Name, Match: match}
	var clusterRefs []string

	switch rule.Action.Kind {
	case types.ActionForward:
		action := &routev3.RouteAction{
			ClusterSpecifier: &routev3.RouteAction_Cluster{Cluster: rule.Action.Cluster},
		}
		if rule.Action.TimeoutSeconds > 0 {
			action.Timeout = durationpb.New(time.Duration(rule.Action.TimeoutSeconds) * time.Second)
		}
		if rule.Action.PrefixRewrite != "" {
			action.PrefixRewrite = rule.Action.PrefixRewrite
		}
		out.Action = &routev3.Route_Route{Route: action}
		clusterRefs = append(clusterRefs, rule.Action.Cluster)
	case types.ActionWeighted:
		weighted := &routev3.WeightedCluster{}
		var sum uint64
		for _, w := range rule.Action.WeightedClusters {
			weighted.Clusters = append(weighted.Clusters, &routev3.WeightedCluster_ClusterWeight{
				Name:   w.Cluster,
				Weight: wrapperspb.UInt32(w.Weight),
			})
			sum += uint64(w.Weight)
			clusterRefs = append(clusterRefs, w.Cluster)
		}
		total := rule.Action.TotalWeight
		if total == 0 {
			total = uint32(sum)
		}
		weighted.TotalWeight = wrapperspb.UInt32(total)
		out.Action = &routev3.Route_Route{Route: &routev3.RouteAction{
			ClusterSpecifier: &routev3.RouteAction_WeightedClusters{WeightedClusters: weighted},
		}}
	case types.ActionRedirect:
		out.Action = &routev3.Route_Redirect{Redirect: &routev3.RedirectAction{
			HostRedirect: rule.Action.RedirectHost,
			PathRewriteSpecifier: &routev3.RedirectAction_PathRedirect{
				PathRedirect: rule.Action.RedirectPath,
			},
			ResponseCode: routev3.RedirectAction_RedirectResponseCode(rule.Action.RedirectResponseCode),
		}}
	default:
		return nil, nil, apierr.Validationf("route action kind %q invalid", rule.Action.Kind)
	}

	if cfg, err := perFilterAny(rule.PerFilterConfig, converter); err != nil {
		return nil, nil, err
	} else if len(cfg) > 0 {
		out.TypedPerFilterConfig = cfg
	}
	return out, clusterRefs, nil
}

func buildRouteMatch(m types.RouteMatch) (*routev3.RouteMatch, error) {
	out := &routev3.RouteMatch{}
	switch m.PathKind {
	case types.PathExact:
		out.PathSpecifier = &routev3.RouteMatch_Path{Path: m.PathValue}
	case types.PathPrefix:
		out.PathSpecifier = &routev3.RouteMatch_Prefix{Prefix: m.PathValue}
	case types.PathRegex, types.PathTemplate:
		// Regex and (validated pure) template matches both compile to a
		// safe-regex match; the template's literal text is escaped and
		// each {name} placeholder becomes a single-segment wildcard.
		// flowplane never ships its own regex engine binding, so the
		// concrete RegexMatcher engine config is left to the proxy's
		// compiled-in default (Envoy requires one be set; that is a
		// deployment-time concern, not a compile-time one here).
		regex := m.PathValue
		if m.PathKind == types.PathTemplate {
			regex = regexp.MustCompile(`\\\{[^/]*?\\\}`).ReplaceAllString(regexp.QuoteMeta(m.PathValue), "[^/]+")
		}
		out.PathSpecifier = &routev3.RouteMatch_SafeRegex{SafeRegex: &matcherv3.RegexMatcher{Regex: regex}}
	default:
		return nil, apierr.Validationf("route match kind %q invalid", m.PathKind)
	}
	for _, h := range m.Headers {
		hm := &routev3.HeaderMatcher{Name: h.Name}
		switch {
		case h.PresentOnly:
			hm.HeaderMatchSpecifier = &routev3.HeaderMatcher_PresentMatch{PresentMatch: true}
		case h.ExactValue != "":
			hm.HeaderMatchSpecifier = &routev3.HeaderMatcher_ExactMatch{ExactMatch: h.ExactValue}
		}
		out.Headers = append(out.Headers, hm)
	}
	for _, q := range m.QueryParameters {
		out.QueryParameters = append(out.QueryParameters, &routev3.QueryParameterMatcher{
			Name: q.Name,
			QueryParameterMatchSpecifier: &routev3.QueryParameterMatcher_StringMatch{
				StringMatch: exactStringMatcher(q.ExactValue),
			},
		})
	}
	return out, nil
}

func perFilterAny(cfg map[string]map[string]any, converter *filters.Converter) (map[string]*anypb.Any, error) {
	if len(cfg) == 0 || converter == nil {
		return nil, nil
	}
	out := make(map[string]*anypb.Any, len(cfg))
	for filterType, override := range cfg {
		name, any, ok, err := converter.ToPerRouteAny(filterType, override)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out[name] = any
	}
	return out, nil
}

// BuildListener renders l as an Envoy v3 Listener and records every
// route configuration name its HTTP connection manager filters serve.
func BuildListener(l *types.Listener, converter *filters.Converter) (Built, error) {
	var routeRefs, secretRefs []string
	chains := make([]*listenerv3.FilterChain, len(l.FilterChains))
	for i, fc := range l.FilterChains {
		built, refs, secrets, err := buildFilterChain(fc, converter)
		if err != nil {
			return Built{}, err
		}
		chains[i] = built
		routeRefs = append(routeRefs, refs...)
		secretRefs = append(secretRefs, secrets...)
	}

	msg := &listenerv3.Listener{
		Name:         l.Name,
		Address:      socketAddress(l.Address, l.Port),
		FilterChains: chains,
	}
	any, err := toAny(msg, ListenerTypeURL)
	if err != nil {
		return Built{}, err
	}
	hash, err := hashOf(msg)
	if err != nil {
		return Built{}, err
	}
	return Built{
		Name:       l.Name,
		TeamID:     l.TeamID,
		Any:        any,
		Hash:       hash,
		RouteRefs:  dedupe(routeRefs),
		SecretRefs: dedupe(secretRefs),
	}, nil
}

func buildFilterChain(fc types.FilterChain, converter *filters.Converter) (*listenerv3.FilterChain, []string, []string, error) {
	var routeRefs []string
	out := &listenerv3.FilterChain{}
	for _, nf := range fc.Filters {
		switch nf.Kind {
		case types.NetworkFilterHTTPConnectionManager:
			hcm, err := buildHCM(nf, converter)
			if err != nil {
				return nil, nil, nil, err
			}
			any, err := toAny(hcm, "type.googleapis.com/envoy.extensions.filters.network.http_connection_manager.v3.HttpConnectionManager")
			if err != nil {
				return nil, nil, nil, err
			}
			out.Filters = append(out.Filters, &listenerv3.Filter{
				Name:       nf.Name,
				ConfigType: &listenerv3.Filter_TypedConfig{TypedConfig: any},
			})
			routeRefs = append(routeRefs, nf.RouteConfigRef)
		default:
			// Opaque network filters are carried through as an empty
			// placeholder filter entry naming the filter only; flowplane
			// never interprets their configuration.
			out.Filters = append(out.Filters, &listenerv3.Filter{Name: nf.Name})
		}
	}
	var secretRefs []string
	if fc.TLS != nil {
		sock, err := buildDownstreamTLS(fc.TLS)
		if err != nil {
			return nil, nil, nil, err
		}
		out.TransportSocket = sock
		if fc.TLS.CertificateSecretRef != "" {
			secretRefs = append(secretRefs, fc.TLS.CertificateSecretRef)
		}
		if fc.TLS.ValidationSecretRef != "" {
			secretRefs = append(secretRefs, fc.TLS.ValidationSecretRef)
		}
	}
	return out, routeRefs, secretRefs, nil
}

func buildHCM(nf types.NetworkFilter, converter *filters.Converter) (*hcmv3.HttpConnectionManager, error) {
	hcm := &hcmv3.HttpConnectionManager{
		StatPrefix: nf.RouteConfigRef,
		RouteSpecifier: &hcmv3.HttpConnectionManager_Rds{
			Rds: &hcmv3.Rds{
				RouteConfigName: nf.RouteConfigRef,
				ConfigSource: &corev3.ConfigSource{
					ConfigSourceSpecifier: &corev3.ConfigSource_Ads{Ads: &corev3.AggregatedConfigSource{}},
				},
			},
		},
	}
	sorted := types.SortAttachments(nf.HTTPFilters)
	for _, attachment := range sorted {
		if converter == nil {
			continue
		}
		any, err := converter.ToListenerAny(attachment.FilterName, attachment.Override)
		if err != nil {
			return nil, err
		}
		filterName, _ := converter.FilterName(attachment.FilterName)
		if filterName == "" {
			filterName = attachment.FilterName
		}
		hcm.HttpFilters = append(hcm.HttpFilters, &hcmv3.HttpFilter{
			Name:       filterName,
			ConfigType: &hcmv3.HttpFilter_TypedConfig{TypedConfig: any},
		})
	}
	return hcm, nil
}

func buildDownstreamTLS(t *types.TLSContext) (*corev3.TransportSocket, error) {
	ctx := &tlsv3.DownstreamTlsContext{
		CommonTlsContext: &tlsv3.CommonTlsContext{
			TlsCertificateSdsSecretConfigs: []*tlsv3.SdsSecretConfig{{Name: t.CertificateSecretRef}},
		},
		RequireClientCertificate: wrapperspb.Bool(t.RequireClientCert),
	}
	if t.ValidationSecretRef != "" {
		ctx.CommonTlsContext.ValidationContextType = &tlsv3.CommonTlsContext_ValidationContextSdsSecretConfig{
			ValidationContextSdsSecretConfig: &tlsv3.SdsSecretConfig{Name: t.ValidationSecretRef},
		}
	}
	any, err := toAny(ctx, "type.googleapis.com/envoy.extensions.transport_sockets.tls.v3.DownstreamTlsContext")
	if err != nil {
		return nil, err
	}
	return &corev3.TransportSocket{
		Name:       "envoy.transport_sockets.tls",
		ConfigType: &corev3.TransportSocket_TypedConfig{TypedConfig: any},
	}, nil
}

// BuildSecret renders s as an Envoy v3 Secret resource. s.Configuration
// (for a generic or validation-context secret) or the already-resolved
// plaintext (for a tls_certificate secret fetched through pkg/secrets)
// must be supplied by the caller as certPEM/keyPEM — this package never
// touches a secrets.Backend itself, keeping the dependency direction
// "secrets resolved, then encoded" rather than the reverse.
func BuildSecret(s *types.Secret, certPEM, keyPEM []byte) (Built, error) {
	var secret *tlsv3.Secret
	switch s.SecretType {
	case types.SecretTLSCertificate:
		secret = &tlsv3.Secret{
			Name: s.Name,
			Type: &tlsv3.Secret_TlsCertificate{
				TlsCertificate: &tlsv3.TlsCertificate{
					CertificateChain: &corev3.DataSource{Specifier: &corev3.DataSource_InlineBytes{InlineBytes: certPEM}},
					PrivateKey:       &corev3.DataSource{Specifier: &corev3.DataSource_InlineBytes{InlineBytes: keyPEM}},
				},
			},
		}
	case types.SecretValidationContext:
		secret = &tlsv3.Secret{
			Name: s.Name,
			Type: &tlsv3.Secret_ValidationContext{
				ValidationContext: &tlsv3.CertificateValidationContext{
					TrustedCa: &corev3.DataSource{Specifier: &corev3.DataSource_InlineBytes{InlineBytes: certPEM}},
				},
			},
		}
	default:
		secret = &tlsv3.Secret{
			Name: s.Name,
			Type: &tlsv3.Secret_GenericSecret{
				GenericSecret: &tlsv3.GenericSecret{
					Secret: &corev3.DataSource{Specifier: &corev3.DataSource_InlineBytes{InlineBytes: certPEM}},
				},
			},
		}
	}

	any, err := toAny(secret, SecretTypeURL)
	if err != nil {
		return Built{}, err
	}
	hash, err := hashOf(secret)
	if err != nil {
		return Built{}, err
	}
	return Built{Name: s.Name, TeamID: s.TeamID, Any: any, Hash: hash}, nil
}

func exactStringMatcher(v string) *matcherv3.StringMatcher {
	return &matcherv3.StringMatcher{
		MatchPattern: &matcherv3.StringMatcher_Exact{Exact: v},
	}
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

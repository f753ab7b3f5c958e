package materializer

import (
	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
)

// listenerHTTPFilters resolves the listener-scoped filter attachments of
// def into the ordered HTTP filter chain a Listener's HCM network filter
// carries, sorted per "within a scope, attachments are sorted ascending
// by order, then by attachment id."
func listenerHTTPFilters(def *types.ApiDefinitionSpec) []types.FilterAttachment {
	var out []types.FilterAttachment
	for _, ref := range def.FilterRefs {
		if ref.Scope == types.AttachmentListener {
			out = append(out, ref)
		}
	}
	return types.SortAttachments(out)
}

// compileIsolatedRoutes builds the clusters and the dedicated route
// configuration for a definition with listener_isolation=true: a single
// virtual host whose only domain is the definition's own domain.
func (m *Materializer) compileIsolatedRoutes(tx storage.Tx, def *types.ApiDefinitionSpec) (*types.RouteConfiguration, []string, []string, error) {
	vhost := types.VirtualHost{Name: def.Domain, Domains: []string{def.Domain}}
	clusterIDs, routeIDs, err := m.appendRulesToVHost(tx, def, &vhost, 0)
	if err != nil {
		return nil, nil, nil, err
	}

	rc := &types.RouteConfiguration{
		TeamID:        def.TeamID,
		Name:          def.IsolationListener.Name + "-routes",
		Configuration: types.RouteConfigData{VirtualHosts: []types.VirtualHost{vhost}},
	}
	if err := rc.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if err := tx.Routes().Create(rc); err != nil {
		return nil, nil, nil, err
	}
	return rc, clusterIDs, routeIDs, nil
}

// appendRulesToVHost compiles every route of def into vhost, starting
// rule Order at startIndex, and returns the cluster ids and route rule
// ids it produced.
func (m *Materializer) appendRulesToVHost(tx storage.Tx, def *types.ApiDefinitionSpec, vhost *types.VirtualHost, startIndex int) ([]string, []string, error) {
	var clusterIDs, routeIDs []string
	for i, spec := range def.Routes {
		rule, cids, err := m.buildRouteRule(tx, def.TeamID, def.ID, startIndex+i, spec, tlsFor(def))
		if err != nil {
			return nil, nil, err
		}
		vhost.Routes = append(vhost.Routes, rule)
		clusterIDs = append(clusterIDs, cids...)
		routeIDs = append(routeIDs, rule.Name)
	}
	sortRules(vhost.Routes)
	return clusterIDs, routeIDs, nil
}

func tlsFor(def *types.ApiDefinitionSpec) *types.ClusterTLS {
	if def.TLSConfig == nil {
		return nil
	}
	return &types.ClusterTLS{
		ServerName:    def.TLSConfig.CertificateSecretRef,
		Verify:        def.TLSConfig.RequireClientCert,
		ClientCertRef: def.TLSConfig.ValidationSecretRef,
	}
}

// mergeIntoSharedRoutes locates (or creates) the shared route
// configuration and merges a virtual host for def alongside whatever is
// already there, leaving every other virtual host byte-for-byte
// untouched — invariant 2: "no collateral mutation."
func (m *Materializer) mergeIntoSharedRoutes(tx storage.Tx, def *types.ApiDefinitionSpec) (*types.RouteConfiguration, []string, []string, error) {
	rc, err := tx.Routes().GetByName("", types.DefaultGatewayRoutesName)
	if err != nil {
		if apierr.KindOf(err) != apierr.NotFound {
			return nil, nil, nil, err
		}
		rc = &types.RouteConfiguration{TeamID: "", Name: types.DefaultGatewayRoutesName}
	}

	vhost := types.VirtualHost{Name: vhostNameForDefinition(def.Domain), Domains: []string{def.Domain}}
	clusterIDs, routeIDs, err := m.appendRulesToVHost(tx, def, &vhost, 0)
	if err != nil {
		return nil, nil, nil, err
	}

	replaced := false
	for i := range rc.Configuration.VirtualHosts {
		if rc.Configuration.VirtualHosts[i].Name == vhost.Name {
			rc.Configuration.VirtualHosts[i] = vhost
			replaced = true
			break
		}
	}
	if !replaced {
		rc.Configuration.VirtualHosts = append(rc.Configuration.VirtualHosts, vhost)
	}
	rc.Configuration.SortVirtualHostsByName()

	if err := rc.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if rc.ID == "" {
		if err := tx.Routes().Create(rc); err != nil {
			return nil, nil, nil, err
		}
	} else {
		if err := tx.Routes().Update(rc); err != nil {
			return nil, nil, nil, err
		}
	}
	return rc, clusterIDs, routeIDs, nil
}

// removeVHostFromSharedRoutes drops only the virtual host owned by
// defDomain from the shared route configuration, leaving every sibling
// vhost untouched — used by cascading delete, which must not touch the
// shared listener itself.
func (m *Materializer) removeVHostFromSharedRoutes(tx storage.Tx, defDomain string) error {
	rc, err := tx.Routes().GetByName("", types.DefaultGatewayRoutesName)
	if err != nil {
		if apierr.KindOf(err) == apierr.NotFound {
			return nil
		}
		return err
	}
	out := rc.Configuration.VirtualHosts[:0]
	for _, vh := range rc.Configuration.VirtualHosts {
		if vh.Name != defDomain {
			out = append(out, vh)
		}
	}
	rc.Configuration.VirtualHosts = out
	return tx.Routes().Update(rc)
}

package materializer

import (
	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
)

// checkTargetListener enforces Open Question decision 3: the caller
// must own target or it must be the shared gateway listener.
func checkTargetListener(tx storage.Tx, teamID, targetName string) error {
	if targetName == types.DefaultGatewayListenerName {
		return nil
	}
	l, err := tx.Listeners().GetByName(teamID, targetName)
	if err != nil {
		return apierr.Forbiddenf("listener", targetName, "target")
	}
	if l.TeamID != teamID {
		return apierr.Forbiddenf("listener", targetName, "target")
	}
	return nil
}

// buildIsolationListener creates the dedicated listener for a
// listener_isolation=true definition: one filter chain with a single
// HTTP connection manager network filter referencing routeConfigName,
// installed with the HTTP filter chain resolved from def's
// listener-scoped attachments.
func (m *Materializer) buildIsolationListener(tx storage.Tx, def *types.ApiDefinitionSpec, routeConfigName string) (*types.Listener, error) {
	spec := def.IsolationListener

	existing, err := tx.Listeners().ListByTeam("", 0, 0)
	if err != nil {
		return nil, err
	}
	for _, l := range existing {
		if l.Name != spec.Name && l.Port == spec.Port {
			return nil, apierr.Conflictf("listener", spec.Name, apierr.Validationf("port %d already bound by listener %q", spec.Port, l.Name))
		}
	}

	l := &types.Listener{
		TeamID:  def.TeamID,
		Name:    spec.Name,
		Address: addressOrDefault(spec.Address),
		Port:    spec.Port,
		FilterChains: []types.FilterChain{{
			Filters: []types.NetworkFilter{{
				Kind:           types.NetworkFilterHTTPConnectionManager,
				Name:           "envoy.filters.network.http_connection_manager",
				RouteConfigRef: routeConfigName,
				HTTPFilters:    listenerHTTPFilters(def),
			}},
		}},
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if err := tx.Listeners().Create(l); err != nil {
		return nil, err
	}
	return l, nil
}

func addressOrDefault(addr string) string {
	if addr == "" {
		return "0.0.0.0"
	}
	return addr
}

// EnsureDefaultGatewayListener idempotently provisions the canonical
// shared listener and its route configuration: the global, team-less
// pair every non-isolated API definition merges into. It is safe to
// call on every startup; an existing listener or route configuration
// is left untouched.
func (m *Materializer) EnsureDefaultGatewayListener(tx storage.Tx, address string, port uint32) error {
	if _, err := tx.Routes().GetByName("", types.DefaultGatewayRoutesName); err != nil {
		if apierr.KindOf(err) != apierr.NotFound {
			return err
		}
		rc := &types.RouteConfiguration{Name: types.DefaultGatewayRoutesName}
		if err := rc.Validate(); err != nil {
			return err
		}
		if err := tx.Routes().Create(rc); err != nil {
			return err
		}
	}

	if _, err := tx.Listeners().GetByName("", types.DefaultGatewayListenerName); err != nil {
		if apierr.KindOf(err) != apierr.NotFound {
			return err
		}
		l := &types.Listener{
			Name:    types.DefaultGatewayListenerName,
			Address: addressOrDefault(address),
			Port:    port,
			FilterChains: []types.FilterChain{{
				Filters: []types.NetworkFilter{{
					Kind:           types.NetworkFilterHTTPConnectionManager,
					Name:           "envoy.filters.network.http_connection_manager",
					RouteConfigRef: types.DefaultGatewayRoutesName,
				}},
			}},
		}
		if err := l.Validate(); err != nil {
			return err
		}
		if err := tx.Listeners().Create(l); err != nil {
			return err
		}
	}
	return nil
}

// refreshListenerFilterChain re-derives the HTTP filter chain of an
// existing listener from def's current attachments, per Open Question
// decision 4: update_definition re-emits listener filter chains even
// when only routes changed.
func (m *Materializer) refreshListenerFilterChain(tx storage.Tx, def *types.ApiDefinitionSpec) error {
	if def.MaterializedListenerID == "" {
		return nil
	}
	l, err := tx.Listeners().GetByID(def.MaterializedListenerID)
	if err != nil {
		return err
	}
	for i := range l.FilterChains {
		for j := range l.FilterChains[i].Filters {
			if l.FilterChains[i].Filters[j].Kind == types.NetworkFilterHTTPConnectionManager {
				l.FilterChains[i].Filters[j].HTTPFilters = listenerHTTPFilters(def)
			}
		}
	}
	return tx.Listeners().Update(l)
}

package materializer

import (
	"context"

	"github.com/flowplane/flowplane/pkg/log"
	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
)

// AppendRoute locates def_id under a transaction, appends routeSpec at
// its requested route_order (default: end-of-list), re-renders the
// owning route configuration, and bumps the definition's version. Two
// concurrent calls against the same definition each commit their own
// transaction; the storage layer's version-bump-on-reload (§4.3 step 1)
// means the second call to commit sees the first call's row and simply
// adds one more route on top of it (S6: final version advances by
// exactly the number of successful appends).
func (m *Materializer) AppendRoute(ctx context.Context, defID string, routeSpec types.RouteSpec) (*AppendResult, error) {
	if err := routeSpec.Validate(); err != nil {
		return nil, err
	}
	if err := m.validateFilterRefs(routeSpec.FilterRefs); err != nil {
		return nil, err
	}

	var result *AppendResult
	err := m.store.WithinTx(ctx, func(tx storage.Tx) error {
		def, err := tx.ApiDefinitions().GetByID(defID)
		if err != nil {
			return err
		}

		index := len(def.Routes)
		rule, clusterIDs, err := m.buildRouteRule(tx, def.TeamID, def.ID, index, routeSpec, tlsFor(def))
		if err != nil {
			return err
		}

		rc, err := tx.Routes().GetByID(def.MaterializedRouteID)
		if err != nil {
			return err
		}
		vhostIdx := indexOfVHost(rc, def)
		rc.Configuration.VirtualHosts[vhostIdx].Routes = append(rc.Configuration.VirtualHosts[vhostIdx].Routes, rule)
		sortRules(rc.Configuration.VirtualHosts[vhostIdx].Routes)
		if !def.ListenerIsolation {
			rc.Configuration.SortVirtualHostsByName()
		}
		if err := rc.Validate(); err != nil {
			return err
		}
		if err := tx.Routes().Update(rc); err != nil {
			return err
		}

		def.Routes = append(def.Routes, routeSpec)
		def.MaterializedClusterIDs = appendUnique(def.MaterializedClusterIDs, clusterIDs)
		if err := tx.ApiDefinitions().Update(def); err != nil {
			return err
		}

		result = &AppendResult{Definition: def, RouteID: rule.Name, BootstrapURI: def.BootstrapURI}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithTeam(m.logger, result.Definition.TeamID).Info().
		Str("definition", result.Definition.ID).
		Str("route", result.RouteID).
		Msg("route appended")
	m.signalRebuild("route appended", result.Definition.ID)
	return result, nil
}

// indexOfVHost finds def's own virtual host within rc: the isolated
// route configuration has exactly one, the shared one is keyed by
// domain.
func indexOfVHost(rc *types.RouteConfiguration, def *types.ApiDefinitionSpec) int {
	name := def.Domain
	if def.ListenerIsolation {
		return 0
	}
	for i, vh := range rc.Configuration.VirtualHosts {
		if vh.Name == name {
			return i
		}
	}
	return -1
}

func appendUnique(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, id := range existing {
		seen[id] = true
	}
	out := existing
	for _, id := range add {
		if !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	return out
}

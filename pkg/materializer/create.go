package materializer

import (
	"context"

	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/log"
	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
)

// CreateDefinition compiles spec into clusters, a route configuration,
// and (when requested) a dedicated listener, all inside one
// transaction.
func (m *Materializer) CreateDefinition(ctx context.Context, spec *types.ApiDefinitionSpec) (*CreateResult, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := m.validateFilterRefs(spec.FilterRefs); err != nil {
		return nil, err
	}

	var result *CreateResult
	err := m.store.WithinTx(ctx, func(tx storage.Tx) error {
		if !spec.ListenerIsolation {
			for _, target := range spec.TargetListeners {
				if err := checkTargetListener(tx, spec.TeamID, target); err != nil {
					return err
				}
			}
			if err := checkSharedDomainFree(tx, spec.Domain); err != nil {
				return err
			}
		}

		var (
			rc         *types.RouteConfiguration
			clusterIDs []string
			routeIDs   []string
			err        error
		)
		if spec.ListenerIsolation {
			rc, clusterIDs, routeIDs, err = m.compileIsolatedRoutes(tx, spec)
		} else {
			rc, clusterIDs, routeIDs, err = m.mergeIntoSharedRoutes(tx, spec)
		}
		if err != nil {
			return err
		}

		spec.MaterializedClusterIDs = clusterIDs
		spec.MaterializedRouteID = rc.ID

		if spec.ListenerIsolation {
			l, err := m.buildIsolationListener(tx, spec, rc.Name)
			if err != nil {
				return err
			}
			spec.MaterializedListenerID = l.ID
		}

		spec.BootstrapURI = bootstrapURI(spec.ID)
		if err := tx.ApiDefinitions().Create(spec); err != nil {
			return err
		}

		result = &CreateResult{Definition: spec, RouteIDs: routeIDs, BootstrapURI: spec.BootstrapURI}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithTeam(m.logger, spec.TeamID).Info().
		Str("definition", result.Definition.ID).
		Bool("listener_isolation", spec.ListenerIsolation).
		Msg("api definition created")
	m.signalRebuild("api_definition created", result.Definition.ID)
	return result, nil
}

// checkSharedDomainFree rejects a domain already claimed by another
// virtual host on the shared gateway's route configuration — the domain
// must be unique across every definition mapped to the same listener.
func checkSharedDomainFree(tx storage.Tx, domain string) error {
	rc, err := tx.Routes().GetByName("", types.DefaultGatewayRoutesName)
	if err != nil {
		if apierr.KindOf(err) == apierr.NotFound {
			return nil
		}
		return err
	}
	for _, vh := range rc.Configuration.VirtualHosts {
		if vh.Name == domain {
			return apierr.Conflictf("api_definition", domain, apierr.Validationf("domain %q already claimed on the shared listener", domain))
		}
	}
	return nil
}

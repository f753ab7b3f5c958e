package materializer

import (
	"context"

	"github.com/flowplane/flowplane/pkg/log"
	"github.com/flowplane/flowplane/pkg/storage"
)

// DeleteDefinition cascades per §4.3: the definition row, its owned
// clusters (unless still shared with a sibling via dedup), its owned
// route configuration or — for a non-isolated definition — just the
// virtual host it contributed to the shared route configuration, and
// (when isolated) its dedicated listener. The shared gateway listener
// is never touched.
func (m *Materializer) DeleteDefinition(ctx context.Context, defID string) error {
	var rebuiltID, teamID string
	err := m.store.WithinTx(ctx, func(tx storage.Tx) error {
		def, err := tx.ApiDefinitions().GetByID(defID)
		if err != nil {
			return err
		}
		rebuiltID = def.ID
		teamID = def.TeamID

		if !def.ListenerIsolation {
			// The shared route configuration is jointly owned by every
			// non-isolated definition; CascadeDelete must not delete it,
			// only the virtual host this definition contributed. Clear
			// and persist MaterializedRouteID first so CascadeDelete's
			// own storage read of this row (it re-fetches by id) sees a
			// definition with nothing pointing at the shared route
			// configuration to delete.
			if err := m.removeVHostFromSharedRoutes(tx, def.Domain); err != nil {
				return err
			}
			def.MaterializedRouteID = ""
			if err := tx.ApiDefinitions().Update(def); err != nil {
				return err
			}
		}

		return tx.ApiDefinitions().CascadeDelete(defID)
	})
	if err != nil {
		return err
	}

	log.WithTeam(m.logger, teamID).Info().Str("definition", rebuiltID).Msg("api definition deleted")
	m.signalRebuild("api_definition deleted", rebuiltID)
	return nil
}

package storage

import (
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/types"
)

type apiDefRepo struct{ btx *bolt.Tx }

func (r apiDefRepo) GetByID(id string) (*types.ApiDefinitionSpec, error) {
	return getJSON[types.ApiDefinitionSpec](r.btx, bucketApiDefs, id)
}

// GetByName resolves by Domain: ApiDefinitionSpec has no standalone Name
// field, and a domain is the unique handle the materializer looks
// definitions up by.
func (r apiDefRepo) GetByName(teamID, domain string) (*types.ApiDefinitionSpec, error) {
	id, ok := lookupIndex(r.btx, bucketApiDefsIndex, indexKey(teamID, domain))
	if !ok {
		return nil, apierr.NotFoundf("api_definition", domain)
	}
	return r.GetByID(id)
}

func (r apiDefRepo) ListByTeam(teamID string, limit, offset int) ([]*types.ApiDefinitionSpec, error) {
	all, err := listJSON[types.ApiDefinitionSpec](r.btx, bucketApiDefs)
	if err != nil {
		return nil, err
	}
	return paginate(byTeam(all, teamID, func(a *types.ApiDefinitionSpec) string { return a.TeamID }), limit, offset), nil
}

func (r apiDefRepo) ListAll(limit, offset int) ([]*types.ApiDefinitionSpec, error) {
	all, err := listJSON[types.ApiDefinitionSpec](r.btx, bucketApiDefs)
	if err != nil {
		return nil, err
	}
	return paginate(all, limit, offset), nil
}

func (r apiDefRepo) Create(a *types.ApiDefinitionSpec) error {
	if a.ID == "" {
		a.ID = newID()
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt, a.Version = now, now, 1
	if err := claimIndex(r.btx, bucketApiDefsIndex, indexKey(a.TeamID, a.Domain), a.ID); err != nil {
		return err
	}
	if err := putJSON(r.btx, bucketApiDefs, a.ID, a); err != nil {
		return err
	}
	return recordAudit(r.btx, "api_definitions", a.ID, AuditCreate, nil, apiDefSummary(a), "")
}

func (r apiDefRepo) Update(a *types.ApiDefinitionSpec) error {
	old, err := r.GetByID(a.ID)
	if err != nil {
		return err
	}
	if old.TeamID != a.TeamID || old.Domain != a.Domain {
		if err := releaseIndex(r.btx, bucketApiDefsIndex, indexKey(old.TeamID, old.Domain)); err != nil {
			return err
		}
		if err := claimIndex(r.btx, bucketApiDefsIndex, indexKey(a.TeamID, a.Domain), a.ID); err != nil {
			return err
		}
	}
	a.CreatedAt = old.CreatedAt
	a.UpdatedAt = time.Now()
	a.Version = old.Version + 1
	if err := putJSON(r.btx, bucketApiDefs, a.ID, a); err != nil {
		return err
	}
	return recordAudit(r.btx, "api_definitions", a.ID, AuditUpdate, apiDefSummary(old), apiDefSummary(a), "")
}

// Delete removes the definition row itself and the index entry. Cascading
// to the clusters, route configuration, and isolation listener this
// definition materialized is CascadeDelete's job, not this method's — the
// generic ResourceRepository contract has no notion of "and also delete
// these other rows", and doing it here would hide the cascade from
// callers who only want the definition gone (e.g. a rename that replaces
// it in the same transaction).
func (r apiDefRepo) Delete(id string) error {
	old, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if err := releaseIndex(r.btx, bucketApiDefsIndex, indexKey(old.TeamID, old.Domain)); err != nil {
		return err
	}
	if err := deleteKey(r.btx, bucketApiDefs, id); err != nil {
		return err
	}
	return recordAudit(r.btx, "api_definitions", id, AuditDelete, apiDefSummary(old), nil, "")
}

// CascadeDelete deletes every cluster, route configuration, and
// isolation listener this API definition exclusively owns, but leaves
// alone any cluster still referenced by a sibling definition's dedup
// (the materializer records that sharing in MaterializedClusterIDs).
func (r apiDefRepo) CascadeDelete(id string) error {
	def, err := r.GetByID(id)
	if err != nil {
		return err
	}

	siblings, err := listJSON[types.ApiDefinitionSpec](r.btx, bucketApiDefs)
	if err != nil {
		return err
	}
	stillWanted := make(map[string]bool)
	for _, sib := range siblings {
		if sib.ID == def.ID {
			continue
		}
		for _, cid := range sib.MaterializedClusterIDs {
			stillWanted[cid] = true
		}
	}

	clusters := clusterRepo{r.btx}
	for _, cid := range def.MaterializedClusterIDs {
		if stillWanted[cid] {
			continue
		}
		if err := clusters.Delete(cid); err != nil && apierr.KindOf(err) != apierr.NotFound {
			return err
		}
	}

	if def.MaterializedRouteID != "" {
		if err := (routeRepo{r.btx}).Delete(def.MaterializedRouteID); err != nil && apierr.KindOf(err) != apierr.NotFound {
			return err
		}
	}

	if def.ListenerIsolation && def.MaterializedListenerID != "" {
		if err := (listenerRepo{r.btx}).Delete(def.MaterializedListenerID); err != nil && apierr.KindOf(err) != apierr.NotFound {
			return err
		}
	}

	return r.Delete(id)
}

func apiDefSummary(a *types.ApiDefinitionSpec) map[string]any {
	if a == nil {
		return nil
	}
	return map[string]any{
		"id": a.ID, "team_id": a.TeamID, "domain": a.Domain,
		"listener_isolation": a.ListenerIsolation, "routes": len(a.Routes), "version": a.Version,
	}
}

package storage

import (
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/types"
)

// byTeam filters a flat list to the rows owned by teamID, applying the
// same team-less-means-global convention every resource type in this
// package shares.
func byTeam[T any](all []*T, teamID string, get func(*T) string) []*T {
	out := make([]*T, 0, len(all))
	for _, v := range all {
		if get(v) == teamID {
			out = append(out, v)
		}
	}
	return out
}

func paginate[T any](in []*T, limit, offset int) []*T {
	if offset >= len(in) {
		return nil
	}
	end := len(in)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return in[offset:end]
}

type clusterRepo struct{ btx *bolt.Tx }

func (r clusterRepo) GetByID(id string) (*types.Cluster, error) {
	return getJSON[types.Cluster](r.btx, bucketClusters, id)
}

func (r clusterRepo) GetByName(teamID, name string) (*types.Cluster, error) {
	id, ok := lookupIndex(r.btx, bucketClustersIndex, indexKey(teamID, name))
	if !ok {
		return nil, apierr.NotFoundf("cluster", name)
	}
	return r.GetByID(id)
}

func (r clusterRepo) ListByTeam(teamID string, limit, offset int) ([]*types.Cluster, error) {
	all, err := listJSON[types.Cluster](r.btx, bucketClusters)
	if err != nil {
		return nil, err
	}
	return paginate(byTeam(all, teamID, func(c *types.Cluster) string { return c.TeamID }), limit, offset), nil
}

func (r clusterRepo) ListAll(limit, offset int) ([]*types.Cluster, error) {
	all, err := listJSON[types.Cluster](r.btx, bucketClusters)
	if err != nil {
		return nil, err
	}
	return paginate(all, limit, offset), nil
}

func (r clusterRepo) Create(c *types.Cluster) error {
	if c.ID == "" {
		c.ID = newID()
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt, c.Version = now, now, 1
	if err := claimIndex(r.btx, bucketClustersIndex, indexKey(c.TeamID, c.Name), c.ID); err != nil {
		return err
	}
	if err := putJSON(r.btx, bucketClusters, c.ID, c); err != nil {
		return err
	}
	return recordAudit(r.btx, "clusters", c.ID, AuditCreate, nil, clusterSummary(c), "")
}

func (r clusterRepo) Update(c *types.Cluster) error {
	old, err := r.GetByID(c.ID)
	if err != nil {
		return err
	}
	if old.TeamID != c.TeamID || old.Name != c.Name {
		if err := releaseIndex(r.btx, bucketClustersIndex, indexKey(old.TeamID, old.Name)); err != nil {
			return err
		}
		if err := claimIndex(r.btx, bucketClustersIndex, indexKey(c.TeamID, c.Name), c.ID); err != nil {
			return err
		}
	}
	c.CreatedAt = old.CreatedAt
	c.UpdatedAt = time.Now()
	c.Version = old.Version + 1
	if err := putJSON(r.btx, bucketClusters, c.ID, c); err != nil {
		return err
	}
	return recordAudit(r.btx, "clusters", c.ID, AuditUpdate, clusterSummary(old), clusterSummary(c), "")
}

func (r clusterRepo) Delete(id string) error {
	old, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if err := releaseIndex(r.btx, bucketClustersIndex, indexKey(old.TeamID, old.Name)); err != nil {
		return err
	}
	if err := deleteKey(r.btx, bucketClusters, id); err != nil {
		return err
	}
	return recordAudit(r.btx, "clusters", id, AuditDelete, clusterSummary(old), nil, "")
}

func clusterSummary(c *types.Cluster) map[string]any {
	if c == nil {
		return nil
	}
	return map[string]any{"id": c.ID, "team_id": c.TeamID, "name": c.Name, "version": c.Version}
}

type routeRepo struct{ btx *bolt.Tx }

func (r routeRepo) GetByID(id string) (*types.RouteConfiguration, error) {
	return getJSON[types.RouteConfiguration](r.btx, bucketRoutes, id)
}

func (r routeRepo) GetByName(teamID, name string) (*types.RouteConfiguration, error) {
	id, ok := lookupIndex(r.btx, bucketRoutesIndex, indexKey(teamID, name))
	if !ok {
		return nil, apierr.NotFoundf("route_configuration", name)
	}
	return r.GetByID(id)
}

func (r routeRepo) ListByTeam(teamID string, limit, offset int) ([]*types.RouteConfiguration, error) {
	all, err := listJSON[types.RouteConfiguration](r.btx, bucketRoutes)
	if err != nil {
		return nil, err
	}
	return paginate(byTeam(all, teamID, func(rc *types.RouteConfiguration) string { return rc.TeamID }), limit, offset), nil
}

func (r routeRepo) ListAll(limit, offset int) ([]*types.RouteConfiguration, error) {
	all, err := listJSON[types.RouteConfiguration](r.btx, bucketRoutes)
	if err != nil {
		return nil, err
	}
	return paginate(all, limit, offset), nil
}

func (r routeRepo) Create(rc *types.RouteConfiguration) error {
	if rc.ID == "" {
		rc.ID = newID()
	}
	now := time.Now()
	rc.CreatedAt, rc.UpdatedAt, rc.Version = now, now, 1
	if err := claimIndex(r.btx, bucketRoutesIndex, indexKey(rc.TeamID, rc.Name), rc.ID); err != nil {
		return err
	}
	if err := putJSON(r.btx, bucketRoutes, rc.ID, rc); err != nil {
		return err
	}
	return recordAudit(r.btx, "route_configurations", rc.ID, AuditCreate, nil, routeSummary(rc), "")
}

func (r routeRepo) Update(rc *types.RouteConfiguration) error {
	old, err := r.GetByID(rc.ID)
	if err != nil {
		return err
	}
	if old.TeamID != rc.TeamID || old.Name != rc.Name {
		if err := releaseIndex(r.btx, bucketRoutesIndex, indexKey(old.TeamID, old.Name)); err != nil {
			return err
		}
		if err := claimIndex(r.btx, bucketRoutesIndex, indexKey(rc.TeamID, rc.Name), rc.ID); err != nil {
			return err
		}
	}
	rc.CreatedAt = old.CreatedAt
	rc.UpdatedAt = time.Now()
	rc.Version = old.Version + 1
	if err := putJSON(r.btx, bucketRoutes, rc.ID, rc); err != nil {
		return err
	}
	return recordAudit(r.btx, "route_configurations", rc.ID, AuditUpdate, routeSummary(old), routeSummary(rc), "")
}

func (r routeRepo) Delete(id string) error {
	old, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if err := releaseIndex(r.btx, bucketRoutesIndex, indexKey(old.TeamID, old.Name)); err != nil {
		return err
	}
	if err := deleteKey(r.btx, bucketRoutes, id); err != nil {
		return err
	}
	return recordAudit(r.btx, "route_configurations", id, AuditDelete, routeSummary(old), nil, "")
}

func routeSummary(rc *types.RouteConfiguration) map[string]any {
	if rc == nil {
		return nil
	}
	return map[string]any{"id": rc.ID, "team_id": rc.TeamID, "name": rc.Name, "version": rc.Version,
		"virtual_hosts": len(rc.Configuration.VirtualHosts)}
}

type listenerRepo struct{ btx *bolt.Tx }

func (r listenerRepo) GetByID(id string) (*types.Listener, error) {
	return getJSON[types.Listener](r.btx, bucketListeners, id)
}

func (r listenerRepo) GetByName(teamID, name string) (*types.Listener, error) {
	id, ok := lookupIndex(r.btx, bucketListenerIndex, indexKey(teamID, name))
	if !ok {
		return nil, apierr.NotFoundf("listener", name)
	}
	return r.GetByID(id)
}

func (r listenerRepo) ListByTeam(teamID string, limit, offset int) ([]*types.Listener, error) {
	all, err := listJSON[types.Listener](r.btx, bucketListeners)
	if err != nil {
		return nil, err
	}
	return paginate(byTeam(all, teamID, func(l *types.Listener) string { return l.TeamID }), limit, offset), nil
}

func (r listenerRepo) ListAll(limit, offset int) ([]*types.Listener, error) {
	all, err := listJSON[types.Listener](r.btx, bucketListeners)
	if err != nil {
		return nil, err
	}
	return paginate(all, limit, offset), nil
}

func (r listenerRepo) Create(l *types.Listener) error {
	if l.ID == "" {
		l.ID = newID()
	}
	now := time.Now()
	l.CreatedAt, l.UpdatedAt, l.Version = now, now, 1
	if err := claimIndex(r.btx, bucketListenerIndex, indexKey(l.TeamID, l.Name), l.ID); err != nil {
		return err
	}
	if err := putJSON(r.btx, bucketListeners, l.ID, l); err != nil {
		return err
	}
	return recordAudit(r.btx, "listeners", l.ID, AuditCreate, nil, listenerSummary(l), "")
}

func (r listenerRepo) Update(l *types.Listener) error {
	old, err := r.GetByID(l.ID)
	if err != nil {
		return err
	}
	if old.TeamID != l.TeamID || old.Name != l.Name {
		if err := releaseIndex(r.btx, bucketListenerIndex, indexKey(old.TeamID, old.Name)); err != nil {
			return err
		}
		if err := claimIndex(r.btx, bucketListenerIndex, indexKey(l.TeamID, l.Name), l.ID); err != nil {
			return err
		}
	}
	l.CreatedAt = old.CreatedAt
	l.UpdatedAt = time.Now()
	l.Version = old.Version + 1
	if err := putJSON(r.btx, bucketListeners, l.ID, l); err != nil {
		return err
	}
	return recordAudit(r.btx, "listeners", l.ID, AuditUpdate, listenerSummary(old), listenerSummary(l), "")
}

func (r listenerRepo) Delete(id string) error {
	old, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if err := releaseIndex(r.btx, bucketListenerIndex, indexKey(old.TeamID, old.Name)); err != nil {
		return err
	}
	if err := deleteKey(r.btx, bucketListeners, id); err != nil {
		return err
	}
	return recordAudit(r.btx, "listeners", id, AuditDelete, listenerSummary(old), nil, "")
}

func listenerSummary(l *types.Listener) map[string]any {
	if l == nil {
		return nil
	}
	return map[string]any{"id": l.ID, "team_id": l.TeamID, "name": l.Name, "port": l.Port, "version": l.Version}
}

type filterRepo struct{ btx *bolt.Tx }

func (r filterRepo) GetByID(id string) (*types.FilterDefinition, error) {
	return getJSON[types.FilterDefinition](r.btx, bucketFilters, id)
}

func (r filterRepo) GetByName(teamID, name string) (*types.FilterDefinition, error) {
	id, ok := lookupIndex(r.btx, bucketFiltersIndex, indexKey(teamID, name))
	if !ok {
		return nil, apierr.NotFoundf("filter_definition", name)
	}
	return r.GetByID(id)
}

func (r filterRepo) ListByTeam(teamID string, limit, offset int) ([]*types.FilterDefinition, error) {
	all, err := listJSON[types.FilterDefinition](r.btx, bucketFilters)
	if err != nil {
		return nil, err
	}
	return paginate(byTeam(all, teamID, func(f *types.FilterDefinition) string { return f.TeamID }), limit, offset), nil
}

func (r filterRepo) ListAll(limit, offset int) ([]*types.FilterDefinition, error) {
	all, err := listJSON[types.FilterDefinition](r.btx, bucketFilters)
	if err != nil {
		return nil, err
	}
	return paginate(all, limit, offset), nil
}

func (r filterRepo) Create(f *types.FilterDefinition) error {
	if f.ID == "" {
		f.ID = newID()
	}
	now := time.Now()
	f.CreatedAt, f.UpdatedAt, f.Version = now, now, 1
	if err := claimIndex(r.btx, bucketFiltersIndex, indexKey(f.TeamID, f.Name), f.ID); err != nil {
		return err
	}
	if err := putJSON(r.btx, bucketFilters, f.ID, f); err != nil {
		return err
	}
	return recordAudit(r.btx, "filter_definitions", f.ID, AuditCreate, nil, filterSummary(f), "")
}

func (r filterRepo) Update(f *types.FilterDefinition) error {
	old, err := r.GetByID(f.ID)
	if err != nil {
		return err
	}
	if old.TeamID != f.TeamID || old.Name != f.Name {
		if err := releaseIndex(r.btx, bucketFiltersIndex, indexKey(old.TeamID, old.Name)); err != nil {
			return err
		}
		if err := claimIndex(r.btx, bucketFiltersIndex, indexKey(f.TeamID, f.Name), f.ID); err != nil {
			return err
		}
	}
	f.CreatedAt = old.CreatedAt
	f.UpdatedAt = time.Now()
	f.Version = old.Version + 1
	if err := putJSON(r.btx, bucketFilters, f.ID, f); err != nil {
		return err
	}
	return recordAudit(r.btx, "filter_definitions", f.ID, AuditUpdate, filterSummary(old), filterSummary(f), "")
}

func (r filterRepo) Delete(id string) error {
	old, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if err := releaseIndex(r.btx, bucketFiltersIndex, indexKey(old.TeamID, old.Name)); err != nil {
		return err
	}
	if err := deleteKey(r.btx, bucketFilters, id); err != nil {
		return err
	}
	return recordAudit(r.btx, "filter_definitions", id, AuditDelete, filterSummary(old), nil, "")
}

func filterSummary(f *types.FilterDefinition) map[string]any {
	if f == nil {
		return nil
	}
	return map[string]any{"id": f.ID, "team_id": f.TeamID, "name": f.Name, "filter_type": f.FilterType, "version": f.Version}
}

type secretRepo struct{ btx *bolt.Tx }

func (r secretRepo) GetByID(id string) (*types.Secret, error) {
	return getJSON[types.Secret](r.btx, bucketSecrets, id)
}

func (r secretRepo) GetByName(teamID, name string) (*types.Secret, error) {
	id, ok := lookupIndex(r.btx, bucketSecretsIndex, indexKey(teamID, name))
	if !ok {
		return nil, apierr.NotFoundf("secret", name)
	}
	return r.GetByID(id)
}

func (r secretRepo) ListByTeam(teamID string, limit, offset int) ([]*types.Secret, error) {
	all, err := listJSON[types.Secret](r.btx, bucketSecrets)
	if err != nil {
		return nil, err
	}
	return paginate(byTeam(all, teamID, func(s *types.Secret) string { return s.TeamID }), limit, offset), nil
}

func (r secretRepo) ListAll(limit, offset int) ([]*types.Secret, error) {
	all, err := listJSON[types.Secret](r.btx, bucketSecrets)
	if err != nil {
		return nil, err
	}
	return paginate(all, limit, offset), nil
}

func (r secretRepo) Create(s *types.Secret) error {
	if s.ID == "" {
		s.ID = newID()
	}
	now := time.Now()
	s.CreatedAt, s.UpdatedAt, s.Version = now, now, 1
	if err := claimIndex(r.btx, bucketSecretsIndex, indexKey(s.TeamID, s.Name), s.ID); err != nil {
		return err
	}
	if err := putJSON(r.btx, bucketSecrets, s.ID, s); err != nil {
		return err
	}
	return recordAudit(r.btx, "secrets", s.ID, AuditCreate, nil, secretSummary(s), "")
}

func (r secretRepo) Update(s *types.Secret) error {
	old, err := r.GetByID(s.ID)
	if err != nil {
		return err
	}
	if old.TeamID != s.TeamID || old.Name != s.Name {
		if err := releaseIndex(r.btx, bucketSecretsIndex, indexKey(old.TeamID, old.Name)); err != nil {
			return err
		}
		if err := claimIndex(r.btx, bucketSecretsIndex, indexKey(s.TeamID, s.Name), s.ID); err != nil {
			return err
		}
	}
	s.CreatedAt = old.CreatedAt
	s.UpdatedAt = time.Now()
	s.Version = old.Version + 1
	if err := putJSON(r.btx, bucketSecrets, s.ID, s); err != nil {
		return err
	}
	return recordAudit(r.btx, "secrets", s.ID, AuditUpdate, secretSummary(old), secretSummary(s), "")
}

func (r secretRepo) Delete(id string) error {
	old, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if err := releaseIndex(r.btx, bucketSecretsIndex, indexKey(old.TeamID, old.Name)); err != nil {
		return err
	}
	if err := deleteKey(r.btx, bucketSecrets, id); err != nil {
		return err
	}
	return recordAudit(r.btx, "secrets", id, AuditDelete, secretSummary(old), nil, "")
}

// secretSummary never includes Configuration or BackendReference — those
// may carry secret bytes.
func secretSummary(s *types.Secret) map[string]any {
	if s == nil {
		return nil
	}
	return map[string]any{"id": s.ID, "team_id": s.TeamID, "name": s.Name, "type": s.SecretType, "version": s.Version}
}

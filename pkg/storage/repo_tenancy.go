package storage

import (
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/types"
)

type orgRepo struct{ btx *bolt.Tx }

func (r orgRepo) GetByID(id string) (*types.Organization, error) {
	return getJSON[types.Organization](r.btx, bucketOrgs, id)
}

func (r orgRepo) GetByName(name string) (*types.Organization, error) {
	id, ok := lookupIndex(r.btx, bucketOrgsByName, name)
	if !ok {
		return nil, apierr.NotFoundf("organization", name)
	}
	return r.GetByID(id)
}

func (r orgRepo) List() ([]*types.Organization, error) {
	return listJSON[types.Organization](r.btx, bucketOrgs)
}

func (r orgRepo) Create(o *types.Organization) error {
	if o.ID == "" {
		o.ID = newID()
	}
	now := time.Now()
	o.CreatedAt, o.UpdatedAt = now, now
	if err := claimIndex(r.btx, bucketOrgsByName, o.Name, o.ID); err != nil {
		return err
	}
	return putJSON(r.btx, bucketOrgs, o.ID, o)
}

func (r orgRepo) Update(o *types.Organization) error {
	old, err := r.GetByID(o.ID)
	if err != nil {
		return err
	}
	if old.Name != o.Name {
		if err := releaseIndex(r.btx, bucketOrgsByName, old.Name); err != nil {
			return err
		}
		if err := claimIndex(r.btx, bucketOrgsByName, o.Name, o.ID); err != nil {
			return err
		}
	}
	o.CreatedAt = old.CreatedAt
	o.UpdatedAt = time.Now()
	return putJSON(r.btx, bucketOrgs, o.ID, o)
}

func (r orgRepo) Delete(id string) error {
	old, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if err := releaseIndex(r.btx, bucketOrgsByName, old.Name); err != nil {
		return err
	}
	return deleteKey(r.btx, bucketOrgs, id)
}

type teamRepo struct{ btx *bolt.Tx }

func (r teamRepo) GetByID(id string) (*types.Team, error) {
	return getJSON[types.Team](r.btx, bucketTeams, id)
}

func (r teamRepo) GetByName(orgID, name string) (*types.Team, error) {
	id, ok := lookupIndex(r.btx, bucketTeamsByName, indexKey(orgID, name))
	if !ok {
		return nil, apierr.NotFoundf("team", name)
	}
	return r.GetByID(id)
}

func (r teamRepo) ListByOrg(orgID string) ([]*types.Team, error) {
	all, err := listJSON[types.Team](r.btx, bucketTeams)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Team, 0, len(all))
	for _, t := range all {
		if t.OrgID == orgID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r teamRepo) Create(t *types.Team) error {
	if t.ID == "" {
		t.ID = newID()
	}
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	if err := claimIndex(r.btx, bucketTeamsByName, indexKey(t.OrgID, t.Name), t.ID); err != nil {
		return err
	}
	return putJSON(r.btx, bucketTeams, t.ID, t)
}

func (r teamRepo) Update(t *types.Team) error {
	old, err := r.GetByID(t.ID)
	if err != nil {
		return err
	}
	if old.Name != t.Name {
		if err := releaseIndex(r.btx, bucketTeamsByName, indexKey(old.OrgID, old.Name)); err != nil {
			return err
		}
		if err := claimIndex(r.btx, bucketTeamsByName, indexKey(t.OrgID, t.Name), t.ID); err != nil {
			return err
		}
	}
	t.CreatedAt = old.CreatedAt
	t.UpdatedAt = time.Now()
	return putJSON(r.btx, bucketTeams, t.ID, t)
}

func (r teamRepo) Delete(id string) error {
	old, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if err := releaseIndex(r.btx, bucketTeamsByName, indexKey(old.OrgID, old.Name)); err != nil {
		return err
	}
	return deleteKey(r.btx, bucketTeams, id)
}

// LookupTeamID implements authz.TeamLookup directly, so the http/cmd
// wiring layer can hand a teamRepo-backed adapter straight to the
// authorization kernel.
func (r teamRepo) LookupTeamID(orgID, name string) (string, bool) {
	return lookupIndex(r.btx, bucketTeamsByName, indexKey(orgID, name))
}

type userRepo struct{ btx *bolt.Tx }

func (r userRepo) GetByID(id string) (*types.User, error) {
	return getJSON[types.User](r.btx, bucketUsers, id)
}

func (r userRepo) GetByEmail(email string) (*types.User, error) {
	id, ok := lookupIndex(r.btx, bucketUsersByEmail, email)
	if !ok {
		return nil, apierr.NotFoundf("user", email)
	}
	return r.GetByID(id)
}

func (r userRepo) List() ([]*types.User, error) {
	return listJSON[types.User](r.btx, bucketUsers)
}

func (r userRepo) Create(u *types.User) error {
	if u.ID == "" {
		u.ID = newID()
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now
	if err := claimIndex(r.btx, bucketUsersByEmail, u.Email, u.ID); err != nil {
		return err
	}
	return putJSON(r.btx, bucketUsers, u.ID, u)
}

func (r userRepo) Update(u *types.User) error {
	old, err := r.GetByID(u.ID)
	if err != nil {
		return err
	}
	if old.Email != u.Email {
		if err := releaseIndex(r.btx, bucketUsersByEmail, old.Email); err != nil {
			return err
		}
		if err := claimIndex(r.btx, bucketUsersByEmail, u.Email, u.ID); err != nil {
			return err
		}
	}
	u.CreatedAt = old.CreatedAt
	u.UpdatedAt = time.Now()
	return putJSON(r.btx, bucketUsers, u.ID, u)
}

func (r userRepo) Delete(id string) error {
	old, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if err := releaseIndex(r.btx, bucketUsersByEmail, old.Email); err != nil {
		return err
	}
	if err := membershipRepo{r.btx}.DeleteByUser(id); err != nil {
		return err
	}
	return deleteKey(r.btx, bucketUsers, id)
}

type membershipRepo struct{ btx *bolt.Tx }

func membershipKey(userID, teamID string) string { return indexKey(userID, teamID) }

func (r membershipRepo) Get(userID, teamID string) (*types.Membership, error) {
	return getJSON[types.Membership](r.btx, bucketMemberships, membershipKey(userID, teamID))
}

func (r membershipRepo) ListByUser(userID string) ([]*types.Membership, error) {
	all, err := listJSON[types.Membership](r.btx, bucketMemberships)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Membership, 0, len(all))
	for _, m := range all {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r membershipRepo) ListByTeam(teamID string) ([]*types.Membership, error) {
	all, err := listJSON[types.Membership](r.btx, bucketMemberships)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Membership, 0, len(all))
	for _, m := range all {
		if m.TeamID == teamID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r membershipRepo) Upsert(m *types.Membership) error {
	return putJSON(r.btx, bucketMemberships, membershipKey(m.UserID, m.TeamID), m)
}

func (r membershipRepo) Delete(userID, teamID string) error {
	return deleteKey(r.btx, bucketMemberships, membershipKey(userID, teamID))
}

func (r membershipRepo) DeleteByUser(userID string) error {
	ms, err := r.ListByUser(userID)
	if err != nil {
		return err
	}
	for _, m := range ms {
		if err := r.Delete(m.UserID, m.TeamID); err != nil {
			return err
		}
	}
	return nil
}

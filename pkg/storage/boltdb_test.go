package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOrgRepository_CreateAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	org := &types.Organization{Name: "acme", DisplayName: "Acme Corp", Status: types.OrgStatusActive}
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		return tx.Orgs().Create(org)
	}))
	assert.NotEmpty(t, org.ID)

	err := s.View(ctx, func(tx Tx) error {
		got, err := tx.Orgs().GetByName("acme")
		require.NoError(t, err)
		assert.Equal(t, org.ID, got.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestTeamRepository_UniqueWithinOrgOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var orgA, orgB types.Organization
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		orgA = types.Organization{Name: "org-a", Status: types.OrgStatusActive}
		orgB = types.Organization{Name: "org-b", Status: types.OrgStatusActive}
		if err := tx.Orgs().Create(&orgA); err != nil {
			return err
		}
		return tx.Orgs().Create(&orgB)
	}))

	err := s.WithinTx(ctx, func(tx Tx) error {
		teamA := &types.Team{OrgID: orgA.ID, Name: "engineering"}
		teamB := &types.Team{OrgID: orgB.ID, Name: "engineering"}
		if err := tx.Teams().Create(teamA); err != nil {
			return err
		}
		return tx.Teams().Create(teamB)
	})
	require.NoError(t, err, "same team name in two different orgs must not collide")

	err = s.WithinTx(ctx, func(tx Tx) error {
		dup := &types.Team{OrgID: orgA.ID, Name: "engineering"}
		return tx.Teams().Create(dup)
	})
	require.Error(t, err)
	assert.Equal(t, apierr.Conflict, apierr.KindOf(err))
}

func TestClusterRepository_VersionBumpsOnUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &types.Cluster{TeamID: "team-a", Name: "payments-upstream", ServiceName: "payments",
		Endpoints: []types.Endpoint{{Host: "10.0.0.1", Port: 8080}}}
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error { return tx.Clusters().Create(c) }))
	assert.EqualValues(t, 1, c.Version)

	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		c.ConnectTimeoutSeconds = 5
		return tx.Clusters().Update(c)
	}))
	assert.EqualValues(t, 2, c.Version)

	err := s.View(ctx, func(tx Tx) error {
		audits, err := tx.Audit().ListByResource("clusters", c.ID)
		require.NoError(t, err)
		assert.Len(t, audits, 2)
		assert.Equal(t, AuditCreate, audits[0].Action)
		assert.Equal(t, AuditUpdate, audits[1].Action)
		return nil
	})
	require.NoError(t, err)
}

func TestClusterRepository_DuplicateNameWithinTeamConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mk := func() *types.Cluster {
		return &types.Cluster{TeamID: "team-a", Name: "shared", ServiceName: "svc",
			Endpoints: []types.Endpoint{{Host: "10.0.0.1", Port: 80}}}
	}
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error { return tx.Clusters().Create(mk()) }))

	err := s.WithinTx(ctx, func(tx Tx) error { return tx.Clusters().Create(mk()) })
	require.Error(t, err)
	assert.Equal(t, apierr.Conflict, apierr.KindOf(err))
}

func TestApiDefinitionRepository_CascadeDeleteRespectsSharedClusters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var shared, exclusive types.Cluster
	var route types.RouteConfiguration
	var defA, defB types.ApiDefinitionSpec

	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		shared = types.Cluster{TeamID: "team-a", Name: "shared-upstream", ServiceName: "svc",
			Endpoints: []types.Endpoint{{Host: "10.0.0.1", Port: 80}}}
		exclusive = types.Cluster{TeamID: "team-a", Name: "exclusive-upstream", ServiceName: "svc2",
			Endpoints: []types.Endpoint{{Host: "10.0.0.2", Port: 80}}}
		if err := tx.Clusters().Create(&shared); err != nil {
			return err
		}
		if err := tx.Clusters().Create(&exclusive); err != nil {
			return err
		}

		route = types.RouteConfiguration{TeamID: "team-a", Name: "def-a-routes"}
		if err := tx.Routes().Create(&route); err != nil {
			return err
		}

		defA = types.ApiDefinitionSpec{TeamID: "team-a", Domain: "a.example.com",
			MaterializedClusterIDs: []string{shared.ID, exclusive.ID}, MaterializedRouteID: route.ID}
		if err := tx.ApiDefinitions().Create(&defA); err != nil {
			return err
		}

		defB = types.ApiDefinitionSpec{TeamID: "team-a", Domain: "b.example.com",
			MaterializedClusterIDs: []string{shared.ID}}
		return tx.ApiDefinitions().Create(&defB)
	}))

	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		return tx.ApiDefinitions().CascadeDelete(defA.ID)
	}))

	err := s.View(ctx, func(tx Tx) error {
		_, err := tx.ApiDefinitions().GetByID(defA.ID)
		assert.Equal(t, apierr.NotFound, apierr.KindOf(err))

		_, err = tx.Clusters().GetByID(exclusive.ID)
		assert.Equal(t, apierr.NotFound, apierr.KindOf(err), "exclusively-owned cluster must be removed")

		got, err := tx.Clusters().GetByID(shared.ID)
		require.NoError(t, err, "cluster still referenced by defB must survive")
		assert.Equal(t, shared.ID, got.ID)

		_, err = tx.Routes().GetByID(route.ID)
		assert.Equal(t, apierr.NotFound, apierr.KindOf(err))
		return nil
	})
	require.NoError(t, err)
}

func TestMembershipRepository_DeletedWithUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var user types.User
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		user = types.User{Email: "dev@example.com", Status: types.UserStatusActive}
		if err := tx.Users().Create(&user); err != nil {
			return err
		}
		return tx.Memberships().Upsert(&types.Membership{UserID: user.ID, TeamID: "team-a", Scopes: []string{"clusters:read"}})
	}))

	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error { return tx.Users().Delete(user.ID) }))

	err := s.View(ctx, func(tx Tx) error {
		ms, err := tx.Memberships().ListByUser(user.ID)
		require.NoError(t, err)
		assert.Empty(t, ms)
		return nil
	})
	require.NoError(t, err)
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowplane/flowplane/pkg/authz"
	"github.com/flowplane/flowplane/pkg/events"
	"github.com/flowplane/flowplane/pkg/filters"
	"github.com/flowplane/flowplane/pkg/materializer"
	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
)

// testServer wires a Server against a fresh BoltStore with one seeded
// org+team, returning a bearer token authorized to write api_definitions
// for that team.
func testServer(t *testing.T) (*Server, string, string) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var teamID string
	require.NoError(t, store.WithinTx(context.Background(), func(tx storage.Tx) error {
		org := &types.Organization{Name: "acme", DisplayName: "Acme", Status: types.OrgStatusActive}
		if err := tx.Orgs().Create(org); err != nil {
			return err
		}
		team := &types.Team{OrgID: org.ID, Name: "payments", DisplayName: "Payments"}
		if err := tx.Teams().Create(team); err != nil {
			return err
		}
		teamID = team.ID
		return nil
	}))

	registry := filters.NewBuiltinRegistry()
	converter := filters.NewConverter(registry)
	kernel := authz.New(nil)
	mat := materializer.New(store, registry, events.NewBroker())

	srv := New(Config{
		Store:        store,
		Materializer: mat,
		Registry:     registry,
		Converter:    converter,
		Kernel:       kernel,
	})

	scope, err := types.ParseScope("team:payments:api_definitions:write")
	require.NoError(t, err)
	sessionID, _ := srv.sessions.create(types.AuthContext{TokenID: "u1", Scopes: []types.Scope{scope}})

	return srv, sessionID, teamID
}

func TestHandleCreateDefinition_Success(t *testing.T) {
	srv, token, _ := testServer(t)

	body := CreateApiDefinitionBody{
		Team:   "payments",
		Domain: "api.acme.com",
		Routes: []types.RouteSpec{
			{MatchType: types.MatchPrefix, MatchValue: "/pay", Targets: []types.UpstreamTarget{{Host: "10.0.0.1", Port: 8080}}},
		},
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/api-definitions", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp CreateApiDefinitionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Contains(t, resp.BootstrapURI, resp.ID)
}

func TestHandleCreateDefinition_UnauthenticatedIsRejected(t *testing.T) {
	srv, _, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/api-definitions", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleCreateDefinition_WrongTeamScopeIsForbidden(t *testing.T) {
	srv, _, _ := testServer(t)

	scope, err := types.ParseScope("team:billing:api_definitions:write")
	require.NoError(t, err)
	token, _ := srv.sessions.create(types.AuthContext{TokenID: "u2", Scopes: []types.Scope{scope}})

	body := CreateApiDefinitionBody{
		Team:   "payments",
		Domain: "other.acme.com",
		Routes: []types.RouteSpec{
			{MatchType: types.MatchPrefix, MatchValue: "/x", Targets: []types.UpstreamTarget{{Host: "10.0.0.1", Port: 8080}}},
		},
	}
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/api-definitions", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code, "a caller naming the payments team by name without its write scope is denied, proven knowledge of the team means Forbidden rather than NotFound")
}

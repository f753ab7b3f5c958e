package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowplane/flowplane/pkg/types"
)

func secretsToken(t *testing.T, srv *Server, actions ...string) string {
	t.Helper()
	var scopes []types.Scope
	for _, action := range actions {
		sc, err := types.ParseScope("team:payments:secrets:" + action)
		require.NoError(t, err)
		scopes = append(scopes, sc)
	}
	token, _ := srv.sessions.create(types.AuthContext{TokenID: "secrets-" + actions[0], Scopes: scopes})
	return token
}

func TestHandleCreateSecret_RedactsConfigurationInResponse(t *testing.T) {
	srv, _, _ := testServer(t)
	token := secretsToken(t, srv, "write")

	body := CreateSecretBody{
		Name:          "db-password",
		SecretType:    types.SecretGeneric,
		Configuration: map[string]any{"value": "hunter2"},
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/teams/payments/secrets", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "hunter2", "secret configuration must never appear in an API response")

	var view secretView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "db-password", view.Name)
	assert.Equal(t, uint64(1), view.Version)
}

func TestHandleListSecrets_WrongTeamIsForbidden(t *testing.T) {
	srv, _, _ := testServer(t)

	scope, err := types.ParseScope("team:billing:secrets:read")
	require.NoError(t, err)
	token, _ := srv.sessions.create(types.AuthContext{TokenID: "u3", Scopes: []types.Scope{scope}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/teams/payments/secrets", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleDeleteSecret_NoContentOnSuccess(t *testing.T) {
	srv, _, _ := testServer(t)
	token := secretsToken(t, srv, "write", "read")

	create := CreateSecretBody{Name: "api-key", SecretType: types.SecretGeneric, Configuration: map[string]any{"value": "x"}}
	raw, _ := json.Marshal(create)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/teams/payments/secrets", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	del := httptest.NewRequest(http.MethodDelete, "/api/v1/teams/payments/secrets/api-key", nil)
	del.Header.Set("Authorization", "Bearer "+token)
	delRec := httptest.NewRecorder()
	srv.Router().ServeHTTP(delRec, del)
	assert.Equal(t, http.StatusNoContent, delRec.Code)

	get := httptest.NewRequest(http.MethodGet, "/api/v1/teams/payments/secrets/api-key", nil)
	get.Header.Set("Authorization", "Bearer "+token)
	getRec := httptest.NewRecorder()
	srv.Router().ServeHTTP(getRec, get)
	assert.Equal(t, http.StatusNotFound, getRec.Code)
}

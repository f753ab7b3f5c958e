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

	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
)

func filtersTestRoute(t *testing.T, srv *Server, teamID string) *types.RouteConfiguration {
	t.Helper()
	rc := &types.RouteConfiguration{
		TeamID: teamID,
		Name:   "payments-routes",
		Configuration: types.RouteConfigData{
			VirtualHosts: []types.VirtualHost{{
				Name:    "payments",
				Domains: []string{"api.acme.com"},
				Routes: []types.RouteRule{{
					Name:   "pay",
					Match:  types.RouteMatch{PathKind: types.PathPrefix, PathValue: "/pay"},
					Action: types.RouteAction{Kind: types.ActionForward, Cluster: "payments-upstream"},
				}},
			}},
		},
	}
	require.NoError(t, srv.store.WithinTx(context.Background(), func(tx storage.Tx) error {
		return tx.Routes().Create(rc)
	}))
	require.NoError(t, srv.store.WithinTx(context.Background(), func(tx storage.Tx) error {
		return tx.Filters().Create(&types.FilterDefinition{
			TeamID:        teamID,
			Name:          "rate-limit",
			FilterType:    "local_rate_limit",
			Configuration: map[string]any{"max_tokens": 100},
		})
	}))
	return rc
}

func TestHandleAttachFilter_AppliesToVirtualHost(t *testing.T) {
	srv, token, teamID := testServer(t)
	filtersTestRoute(t, srv, teamID)

	body := AttachFilterBody{FilterName: "rate-limit"}
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/route-configs/payments-routes/virtual-hosts/payments/filters", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	require.NoError(t, srv.store.View(context.Background(), func(tx storage.Tx) error {
		rc, err := findRouteConfig(tx, "payments-routes")
		require.NoError(t, err)
		assert.Contains(t, rc.Configuration.VirtualHosts[0].PerFilterConfig, "rate-limit")
		return nil
	}))
}

func TestHandleAttachFilter_UnknownVirtualHostIsNotFound(t *testing.T) {
	srv, token, teamID := testServer(t)
	filtersTestRoute(t, srv, teamID)

	body := AttachFilterBody{FilterName: "rate-limit"}
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/route-configs/payments-routes/virtual-hosts/missing/filters", bytes.NewReader(raw))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDetachFilter_RemovesPerFilterConfig(t *testing.T) {
	srv, token, teamID := testServer(t)
	filtersTestRoute(t, srv, teamID)

	attachBody, _ := json.Marshal(AttachFilterBody{FilterName: "rate-limit"})
	attachReq := httptest.NewRequest(http.MethodPost, "/api/v1/route-configs/payments-routes/virtual-hosts/payments/filters", bytes.NewReader(attachBody))
	attachReq.Header.Set("Authorization", "Bearer "+token)
	attachRec := httptest.NewRecorder()
	srv.Router().ServeHTTP(attachRec, attachReq)
	require.Equal(t, http.StatusNoContent, attachRec.Code)

	detachReq := httptest.NewRequest(http.MethodDelete, "/api/v1/route-configs/payments-routes/virtual-hosts/payments/filters/rate-limit", nil)
	detachReq.Header.Set("Authorization", "Bearer "+token)
	detachRec := httptest.NewRecorder()
	srv.Router().ServeHTTP(detachRec, detachReq)
	assert.Equal(t, http.StatusNoContent, detachRec.Code)

	require.NoError(t, srv.store.View(context.Background(), func(tx storage.Tx) error {
		rc, err := findRouteConfig(tx, "payments-routes")
		require.NoError(t, err)
		assert.NotContains(t, rc.Configuration.VirtualHosts[0].PerFilterConfig, "rate-limit")
		return nil
	}))
}

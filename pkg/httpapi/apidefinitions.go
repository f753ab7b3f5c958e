package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/authz"
	"github.com/flowplane/flowplane/pkg/materializer/openapi"
	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
)

func readAll(r *http.Request) ([]byte, error) {
	return io.ReadAll(r.Body)
}

// resolveTeam looks up a team by name, scoped to ctx's org when the
// caller's AuthContext carries one; a caller with no org context
// searches every org and gets the first team with that name.
func resolveTeam(tx storage.Tx, ctx types.AuthContext, teamName string) (*types.Team, error) {
	if ctx.OrgID != "" {
		return tx.Teams().GetByName(ctx.OrgID, teamName)
	}
	orgs, err := tx.Orgs().List()
	if err != nil {
		return nil, err
	}
	for _, org := range orgs {
		if team, err := tx.Teams().GetByName(org.ID, teamName); err == nil {
			return team, nil
		}
	}
	return nil, apierr.NotFoundf("team", teamName)
}

func (s *Server) checkTeamWrite(ctx types.AuthContext, tx storage.Tx, team *types.Team, resourceKind string) error {
	org, err := tx.Orgs().GetByID(team.OrgID)
	if err != nil {
		return err
	}
	teamName := team.Name
	isBootstrap := ctx.TokenID == "bootstrap"
	if !s.kernel.CheckResourceAccess(ctx, resourceKind, authz.Write, &teamName, org.Name, isBootstrap) {
		return apierr.Forbiddenf(resourceKind, team.Name, "write")
	}
	return nil
}

// CreateApiDefinitionBody is the decoded body of POST /api/v1/api-definitions.
type CreateApiDefinitionBody struct {
	Team              string               `json:"team"`
	Domain            string               `json:"domain"`
	ListenerIsolation bool                 `json:"listenerIsolation"`
	IsolationListener *types.ListenerSpec  `json:"isolationListener,omitempty"`
	TargetListeners   []string             `json:"targetListeners,omitempty"`
	Routes            []types.RouteSpec    `json:"routes"`
	FilterRefs        []types.FilterAttachment `json:"filterRefs,omitempty"`
}

// CreateApiDefinitionResponse is the 201 body for both the create and
// from-openapi endpoints.
type CreateApiDefinitionResponse struct {
	ID           string   `json:"id"`
	BootstrapURI string   `json:"bootstrapUri"`
	Routes       []string `json:"routes"`
}

func (s *Server) buildSpec(ctx context.Context, authCtx types.AuthContext, teamName, domain string, isolation bool, isoListener *types.ListenerSpec, targets []string, routes []types.RouteSpec, filterRefs []types.FilterAttachment) (*types.ApiDefinitionSpec, error) {
	var team *types.Team
	err := s.store.View(ctx, func(tx storage.Tx) error {
		t, err := resolveTeam(tx, authCtx, teamName)
		if err != nil {
			return err
		}
		team = t
		return s.checkTeamWrite(authCtx, tx, team, "api_definitions")
	})
	if err != nil {
		return nil, err
	}
	return &types.ApiDefinitionSpec{
		TeamID:            team.ID,
		Domain:            domain,
		ListenerIsolation: isolation,
		IsolationListener: isoListener,
		TargetListeners:   targets,
		Routes:            routes,
		FilterRefs:        filterRefs,
	}, nil
}

func (s *Server) handleCreateDefinition(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := s.authContext(w, r)
	if !ok {
		return
	}
	var body CreateApiDefinitionBody
	if !decodeJSON(w, r, &body) {
		return
	}

	spec, err := s.buildSpec(r.Context(), authCtx, body.Team, body.Domain, body.ListenerIsolation, body.IsolationListener, body.TargetListeners, body.Routes, body.FilterRefs)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.materializer.CreateDefinition(r.Context(), spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateApiDefinitionResponse{
		ID:           result.Definition.ID,
		BootstrapURI: result.BootstrapURI,
		Routes:       result.RouteIDs,
	})
}

// AppendRouteResponse is the 202 body of POST /api-definitions/{id}/routes.
type AppendRouteResponse struct {
	ApiID        string `json:"apiId"`
	RouteID      string `json:"routeId"`
	Revision     uint64 `json:"revision"`
	BootstrapURI string `json:"bootstrapUri"`
}

func (s *Server) handleAppendRoute(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := s.authContext(w, r)
	if !ok {
		return
	}
	defID := r.PathValue("id")

	var route types.RouteSpec
	if !decodeJSON(w, r, &route) {
		return
	}

	var def *types.ApiDefinitionSpec
	err := s.store.View(r.Context(), func(tx storage.Tx) error {
		d, err := tx.ApiDefinitions().GetByID(defID)
		if err != nil {
			return err
		}
		def = d
		team, err := tx.Teams().GetByID(d.TeamID)
		if err != nil {
			return err
		}
		return s.checkTeamWrite(authCtx, tx, team, "api_definitions")
	})
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.materializer.AppendRoute(r.Context(), def.ID, route)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, AppendRouteResponse{
		ApiID:        result.Definition.ID,
		RouteID:      result.RouteID,
		Revision:     result.Definition.Version,
		BootstrapURI: result.BootstrapURI,
	})
}

func (s *Server) handleFromOpenAPI(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := s.authContext(w, r)
	if !ok {
		return
	}
	team := r.URL.Query().Get("team")
	isolation := r.URL.Query().Get("listenerIsolation") == "true"
	if team == "" {
		writeValidationError(w, "team query parameter is required")
		return
	}

	defer r.Body.Close()
	raw, err := readAll(r)
	if err != nil {
		writeValidationError(w, "failed to read request body: "+err.Error())
		return
	}

	doc, err := openapi.ParseDocument(raw)
	if err != nil {
		writeError(w, err)
		return
	}

	var isoListener *types.ListenerSpec
	if isolation {
		isoListener = &types.ListenerSpec{Name: team + "-isolated", Port: 0}
	}
	spec, err := openapi.Translate(doc, "", isolation, isoListener)
	if err != nil {
		writeError(w, err)
		return
	}

	resolved, err := s.buildSpec(r.Context(), authCtx, team, spec.Domain, spec.ListenerIsolation, spec.IsolationListener, spec.TargetListeners, spec.Routes, spec.FilterRefs)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.materializer.CreateDefinition(r.Context(), resolved)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateApiDefinitionResponse{
		ID:           result.Definition.ID,
		BootstrapURI: result.BootstrapURI,
		Routes:       result.RouteIDs,
	})
}

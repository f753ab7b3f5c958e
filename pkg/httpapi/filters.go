package httpapi

import (
	"net/http"

	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/authz"
	"github.com/flowplane/flowplane/pkg/filters"
	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
)

// AttachFilterBody is the decoded body of the attach endpoints.
type AttachFilterBody struct {
	FilterName string         `json:"filterName"`
	Order      int            `json:"order"`
	Override   map[string]any `json:"override,omitempty"`
}

func findRouteConfig(tx storage.Tx, name string) (*types.RouteConfiguration, error) {
	all, err := tx.Routes().ListAll(0, 0)
	if err != nil {
		return nil, err
	}
	for _, rc := range all {
		if rc.Name == name {
			return rc, nil
		}
	}
	return nil, apierr.NotFoundf("route_configuration", name)
}

func (s *Server) checkRouteConfigWrite(authCtx types.AuthContext, tx storage.Tx, rc *types.RouteConfiguration) error {
	isBootstrap := authCtx.TokenID == "bootstrap"
	if rc.TeamID == "" {
		if !s.kernel.CheckResourceAccess(authCtx, "filters", authz.Write, nil, "", isBootstrap) {
			return apierr.Forbiddenf("filters", rc.Name, "write")
		}
		return nil
	}
	team, err := tx.Teams().GetByID(rc.TeamID)
	if err != nil {
		return err
	}
	org, err := tx.Orgs().GetByID(team.OrgID)
	if err != nil {
		return err
	}
	teamName := team.Name
	if !s.kernel.CheckResourceAccess(authCtx, "filters", authz.Write, &teamName, org.Name, isBootstrap) {
		return apierr.Forbiddenf("filters", rc.Name, "write")
	}
	return nil
}

// resolveFilterConfig returns the configuration to store at the target
// scope. At virtual-host scope (routeScoped false) it returns the filter
// definition's own Configuration and ignores override. At route scope it
// validates filterName against the registry's per-route capabilities and
// returns override when set (permitted per DisableOnly/FullOverride),
// else the filter definition's own Configuration.
func (s *Server) resolveFilterConfig(tx storage.Tx, teamID, filterName string, override map[string]any, routeScoped bool) (map[string]any, error) {
	def, err := tx.Filters().GetByName(teamID, filterName)
	if err != nil {
		return nil, err
	}
	if !routeScoped {
		return def.Configuration, nil
	}
	schema, err := s.registry.MustGet(def.FilterType)
	if err != nil {
		return nil, err
	}
	switch schema.Capabilities.PerRouteBehavior {
	case filters.NotSupported:
		return nil, apierr.Validationf("filter type %q does not support a per-route override", def.FilterType)
	case filters.DisableOnly:
		if override == nil {
			return def.Configuration, nil
		}
		disabled, _ := override["disabled"].(bool)
		if !disabled || len(override) != 1 {
			return nil, apierr.Validationf("filter type %q only supports {disabled: true} overrides", def.FilterType)
		}
		return override, nil
	case filters.FullOverride:
		if override != nil {
			return override, nil
		}
		return def.Configuration, nil
	default:
		return nil, apierr.Validationf("filter type %q has an unrecognized per-route behavior", def.FilterType)
	}
}

func (s *Server) handleAttachFilter(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := s.authContext(w, r)
	if !ok {
		return
	}
	rcName := r.PathValue("name")
	vhName := r.PathValue("vh")

	var body AttachFilterBody
	if !decodeJSON(w, r, &body) {
		return
	}

	err := s.store.WithinTx(r.Context(), func(tx storage.Tx) error {
		rc, err := findRouteConfig(tx, rcName)
		if err != nil {
			return err
		}
		if err := s.checkRouteConfigWrite(authCtx, tx, rc); err != nil {
			return err
		}
		vhIdx := indexOfVirtualHost(rc, vhName)
		if vhIdx < 0 {
			return apierr.NotFoundf("virtual_host", vhName)
		}
		cfg, err := s.resolveFilterConfig(tx, rc.TeamID, body.FilterName, body.Override, false)
		if err != nil {
			return err
		}
		vh := &rc.Configuration.VirtualHosts[vhIdx]
		if vh.PerFilterConfig == nil {
			vh.PerFilterConfig = map[string]map[string]any{}
		}
		vh.PerFilterConfig[body.FilterName] = cfg
		return tx.Routes().Update(rc)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.signalRebuild("filter attached", rcName)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDetachFilter(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := s.authContext(w, r)
	if !ok {
		return
	}
	rcName := r.PathValue("name")
	vhName := r.PathValue("vh")
	filterName := r.PathValue("filter")

	err := s.store.WithinTx(r.Context(), func(tx storage.Tx) error {
		rc, err := findRouteConfig(tx, rcName)
		if err != nil {
			return err
		}
		if err := s.checkRouteConfigWrite(authCtx, tx, rc); err != nil {
			return err
		}
		vhIdx := indexOfVirtualHost(rc, vhName)
		if vhIdx < 0 {
			return apierr.NotFoundf("virtual_host", vhName)
		}
		delete(rc.Configuration.VirtualHosts[vhIdx].PerFilterConfig, filterName)
		return tx.Routes().Update(rc)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.signalRebuild("filter detached", rcName)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAttachRouteFilter(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := s.authContext(w, r)
	if !ok {
		return
	}
	rcName := r.PathValue("name")
	vhName := r.PathValue("vh")
	routeName := r.PathValue("route")

	var body AttachFilterBody
	if !decodeJSON(w, r, &body) {
		return
	}

	err := s.store.WithinTx(r.Context(), func(tx storage.Tx) error {
		rc, err := findRouteConfig(tx, rcName)
		if err != nil {
			return err
		}
		if err := s.checkRouteConfigWrite(authCtx, tx, rc); err != nil {
			return err
		}
		vhIdx := indexOfVirtualHost(rc, vhName)
		if vhIdx < 0 {
			return apierr.NotFoundf("virtual_host", vhName)
		}
		ruleIdx := indexOfRouteRule(&rc.Configuration.VirtualHosts[vhIdx], routeName)
		if ruleIdx < 0 {
			return apierr.NotFoundf("route", routeName)
		}
		cfg, err := s.resolveFilterConfig(tx, rc.TeamID, body.FilterName, body.Override, true)
		if err != nil {
			return err
		}
		rule := &rc.Configuration.VirtualHosts[vhIdx].Routes[ruleIdx]
		if rule.PerFilterConfig == nil {
			rule.PerFilterConfig = map[string]map[string]any{}
		}
		rule.PerFilterConfig[body.FilterName] = cfg
		return tx.Routes().Update(rc)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.signalRebuild("route filter attached", rcName)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDetachRouteFilter(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := s.authContext(w, r)
	if !ok {
		return
	}
	rcName := r.PathValue("name")
	vhName := r.PathValue("vh")
	routeName := r.PathValue("route")
	filterName := r.PathValue("filter")

	err := s.store.WithinTx(r.Context(), func(tx storage.Tx) error {
		rc, err := findRouteConfig(tx, rcName)
		if err != nil {
			return err
		}
		if err := s.checkRouteConfigWrite(authCtx, tx, rc); err != nil {
			return err
		}
		vhIdx := indexOfVirtualHost(rc, vhName)
		if vhIdx < 0 {
			return apierr.NotFoundf("virtual_host", vhName)
		}
		ruleIdx := indexOfRouteRule(&rc.Configuration.VirtualHosts[vhIdx], routeName)
		if ruleIdx < 0 {
			return apierr.NotFoundf("route", routeName)
		}
		delete(rc.Configuration.VirtualHosts[vhIdx].Routes[ruleIdx].PerFilterConfig, filterName)
		return tx.Routes().Update(rc)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.signalRebuild("route filter detached", rcName)
	w.WriteHeader(http.StatusNoContent)
}

func indexOfVirtualHost(rc *types.RouteConfiguration, name string) int {
	for i := range rc.Configuration.VirtualHosts {
		if rc.Configuration.VirtualHosts[i].Name == name {
			return i
		}
	}
	return -1
}

func indexOfRouteRule(vh *types.VirtualHost, name string) int {
	for i := range vh.Routes {
		if vh.Routes[i].Name == name {
			return i
		}
	}
	return -1
}

package openapi

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/types"
)

// domainExtensionKey is the extension that pins the definition's domain
// explicitly, overriding the servers[0].url host. It is read from the
// info object first and from the document root second.
const domainExtensionKey = "x-flowplane-domain"
const filtersExtensionKey = "x-flowplane-filters"

// ParseDocument unmarshals raw (JSON or YAML — yaml.v3 decodes both) into
// the generic map this package operates on. Exposed so callers that
// already have decoded JSON don't need to re-encode it to parse it again.
func ParseDocument(raw []byte) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, apierr.Validationf("openapi document is not valid JSON/YAML: %v", err)
	}
	return doc, nil
}

// Translate converts doc into an ApiDefinitionSpec for team, honoring
// isolation. It extracts domain from info.x-flowplane-domain (or a
// root-level x-flowplane-domain) or servers[0].url's host, maps every path+method to a RouteSpec (the
// operationId becomes the route name, the server URL becomes the
// cluster endpoint), and copies root-level and per-operation
// x-flowplane-filters into FilterRefs at listener and route scope
// respectively. Translate has no side effects.
func Translate(doc map[string]any, teamID string, isolation bool, isolationListener *types.ListenerSpec) (*types.ApiDefinitionSpec, error) {
	domain, defaultHost, defaultPort, err := resolveDomainAndUpstream(doc)
	if err != nil {
		return nil, err
	}

	spec := &types.ApiDefinitionSpec{
		TeamID:            teamID,
		Domain:            domain,
		ListenerIsolation: isolation,
		IsolationListener: isolationListener,
	}

	if globalFilters, ok := doc[filtersExtensionKey]; ok {
		refs, err := translateFilterRefs(globalFilters, types.AttachmentListener, "")
		if err != nil {
			return nil, err
		}
		spec.FilterRefs = refs
	}

	paths, _ := doc["paths"].(map[string]any)
	pathKeys := make([]string, 0, len(paths))
	for p := range paths {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)

	for _, path := range pathKeys {
		methods, _ := paths[path].(map[string]any)
		methodKeys := make([]string, 0, len(methods))
		for m := range methods {
			if isHTTPMethod(m) {
				methodKeys = append(methodKeys, m)
			}
		}
		sort.Strings(methodKeys)

		for _, method := range methodKeys {
			op, _ := methods[method].(map[string]any)
			route, err := translateOperation(path, method, op, defaultHost, defaultPort)
			if err != nil {
				return nil, err
			}
			spec.Routes = append(spec.Routes, route)
		}
	}

	return spec, nil
}

func isHTTPMethod(m string) bool {
	switch strings.ToLower(m) {
	case "get", "put", "post", "delete", "options", "head", "patch", "trace":
		return true
	default:
		return false
	}
}

func translateOperation(path, method string, op map[string]any, defaultHost string, defaultPort uint32) (types.RouteSpec, error) {
	name, _ := op["operationId"].(string)
	if name == "" {
		name = fmt.Sprintf("%s-%s", strings.ToLower(method), sanitizeRouteName(path))
	}

	host, port := defaultHost, defaultPort
	if servers, ok := op["servers"].([]any); ok && len(servers) > 0 {
		if h, p, err := hostPortFromServers(servers); err == nil {
			host, port = h, p
		}
	}
	if host == "" {
		return types.RouteSpec{}, apierr.Validationf("operation %q has no server to derive an upstream from", name)
	}

	matchType := types.MatchExact
	if strings.Contains(path, "{") {
		matchType = types.MatchTemplate
	}

	route := types.RouteSpec{
		Name:       name,
		MatchType:  matchType,
		MatchValue: path,
		Targets:    []types.UpstreamTarget{{Host: host, Port: port}},
	}

	if opFilters, ok := op[filtersExtensionKey]; ok {
		refs, err := translateFilterRefs(opFilters, types.AttachmentRoute, name)
		if err != nil {
			return types.RouteSpec{}, err
		}
		route.FilterRefs = refs
	}

	return route, nil
}

// translateFilterRefs reads the x-flowplane-filters extension's list of
// `{filter: {type, ...config}}` entries into FilterAttachments at scope,
// preserving declaration order via Order.
func translateFilterRefs(raw any, scope types.AttachmentScope, targetID string) ([]types.FilterAttachment, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, apierr.Validationf("%s must be a list", filtersExtensionKey)
	}
	out := make([]types.FilterAttachment, 0, len(list))
	for i, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, apierr.Validationf("%s[%d] must be an object", filtersExtensionKey, i)
		}
		filterCfg, ok := m["filter"].(map[string]any)
		if !ok {
			return nil, apierr.Validationf("%s[%d].filter must be an object", filtersExtensionKey, i)
		}
		filterType, _ := filterCfg["type"].(string)
		if filterType == "" {
			return nil, apierr.Validationf("%s[%d].filter.type must be set", filtersExtensionKey, i)
		}
		config := map[string]any{}
		for k, v := range filterCfg {
			if k == "type" {
				continue
			}
			config[k] = v
		}
		out = append(out, types.FilterAttachment{
			FilterName: filterType,
			Scope:      scope,
			TargetID:   targetID,
			Order:      i,
			Override:   config,
		})
	}
	return out, nil
}

// resolveDomainAndUpstream extracts the definition's domain
// (info.x-flowplane-domain, then a root-level x-flowplane-domain, falling
// back to servers[0].url's host) and the default upstream host:port every
// route without its own operation-level servers entry will target.
func resolveDomainAndUpstream(doc map[string]any) (domain, host string, port uint32, err error) {
	if info, ok := doc["info"].(map[string]any); ok {
		if d, ok := info[domainExtensionKey].(string); ok && d != "" {
			domain = d
		}
	}
	if d, ok := doc[domainExtensionKey].(string); ok && d != "" && domain == "" {
		domain = d
	}

	servers, _ := doc["servers"].([]any)
	if len(servers) > 0 {
		h, p, herr := hostPortFromServers(servers)
		if herr == nil {
			host, port = h, p
			if domain == "" {
				domain = h
			}
		}
	}

	if domain == "" {
		return "", "", 0, apierr.Validationf("openapi document has no %s and no servers[0].url to derive a domain from", domainExtensionKey)
	}
	return domain, host, port, nil
}

func hostPortFromServers(servers []any) (string, uint32, error) {
	first, ok := servers[0].(map[string]any)
	if !ok {
		return "", 0, apierr.Validationf("servers[0] must be an object")
	}
	raw, _ := first["url"].(string)
	if raw == "" {
		return "", 0, apierr.Validationf("servers[0].url must be set")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, apierr.Validationf("servers[0].url %q is not a valid URL: %v", raw, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", 0, apierr.Validationf("servers[0].url %q has no host", raw)
	}
	port := uint32(80)
	if u.Scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		if parsed, err := strconv.ParseUint(p, 10, 32); err == nil {
			port = uint32(parsed)
		}
	}
	return host, port, nil
}

func sanitizeRouteName(path string) string {
	var b strings.Builder
	for _, r := range path {
		switch {
		case r == '/' || r == '{' || r == '}':
			b.WriteByte('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(strings.ToLower(b.String()), "-")
}

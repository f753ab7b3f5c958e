package types

import (
	"sort"
	"time"

	"github.com/flowplane/flowplane/pkg/apierr"
)

// PathMatchKind is a closed set of path-match strategies.
type PathMatchKind string

const (
	PathExact    PathMatchKind = "exact"
	PathPrefix   PathMatchKind = "prefix"
	PathRegex    PathMatchKind = "regex"
	PathTemplate PathMatchKind = "template"
)

// HeaderMatch matches a single request header.
type HeaderMatch struct {
	Name        string
	ExactValue  string
	RegexValue  string
	PresentOnly bool
}

// QueryParamMatch matches a single query parameter.
type QueryParamMatch struct {
	Name       string
	ExactValue string
}

// RouteMatch is the match portion of a RouteRule.
type RouteMatch struct {
	PathKind        PathMatchKind
	PathValue       string
	Headers         []HeaderMatch
	QueryParameters []QueryParamMatch
}

// Validate enforces that the path match value is non-empty and that a
// Template value never mixes a {name} placeholder with literal text
// inside one path segment (literal segments are allowed).
func (m *RouteMatch) Validate() error {
	if m.PathValue == "" {
		return apierr.Validationf("route match path value must not be empty")
	}
	switch m.PathKind {
	case PathExact, PathPrefix, PathRegex:
	case PathTemplate:
		if !isPureTemplate(m.PathValue) {
			return apierr.Validationf("template path %q must use {name} placeholders exclusively", m.PathValue)
		}
	default:
		return apierr.Validationf("path match kind %q invalid", m.PathKind)
	}
	return nil
}

// isPureTemplate checks that every "/" separated segment of value is
// either a literal segment or a single {name} placeholder — i.e. the
// template never mixes a placeholder with literal text inside one
// segment.
func isPureTemplate(value string) bool {
	depth := 0
	for i, r := range value {
		switch r {
		case '{':
			if depth != 0 || (i > 0 && value[i-1] != '/') {
				return false
			}
			depth++
		case '}':
			if depth != 1 || (i+1 < len(value) && value[i+1] != '/') {
				return false
			}
			depth--
		}
	}
	return depth == 0
}

// WeightedClusterRef is a single member of a Weighted route action.
type WeightedClusterRef struct {
	Cluster string
	Weight  uint32
}

// RouteActionKind is a closed set of route actions.
type RouteActionKind string

const (
	ActionForward  RouteActionKind = "forward"
	ActionWeighted RouteActionKind = "weighted"
	ActionRedirect RouteActionKind = "redirect"
)

// RouteAction is a closed-set tagged variant for what a matched route
// does.
type RouteAction struct {
	Kind RouteActionKind

	// ActionForward
	Cluster        string
	TimeoutSeconds uint32
	PrefixRewrite  string
	TemplateRewrite string

	// ActionWeighted
	WeightedClusters []WeightedClusterRef
	TotalWeight      uint32 // 0 means "derive from sum"

	// ActionRedirect
	RedirectHost         string
	RedirectPath         string
	RedirectResponseCode uint32
}

// Validate enforces that the weighted cluster list is non-empty, that
// weights fit in a u32, and that total_weight, if set, equals their sum.
func (a *RouteAction) Validate() error {
	switch a.Kind {
	case ActionForward:
		if a.Cluster == "" {
			return apierr.Validationf("forward action requires a cluster")
		}
	case ActionWeighted:
		if len(a.WeightedClusters) == 0 {
			return apierr.Validationf("weighted action requires at least one cluster")
		}
		var sum uint64
		for _, w := range a.WeightedClusters {
			if w.Cluster == "" {
				return apierr.Validationf("weighted action has an empty cluster name")
			}
			sum += uint64(w.Weight)
		}
		if a.TotalWeight != 0 && uint64(a.TotalWeight) != sum {
			return apierr.Validationf("weighted action total_weight %d does not equal sum of weights %d", a.TotalWeight, sum)
		}
	case ActionRedirect:
		// no required fields; all of host/path/code are optional overrides
	default:
		return apierr.Validationf("route action kind %q invalid", a.Kind)
	}
	return nil
}

// RouteRule is a single rule within a virtual host's route list.
type RouteRule struct {
	Name            string
	Match           RouteMatch
	Action          RouteAction
	PerFilterConfig map[string]map[string]any
	// Order determines position within the virtual host; ties break on
	// insertion order.
	Order int
}

// Validate validates the match and action of this rule.
func (r *RouteRule) Validate() error {
	if err := r.Match.Validate(); err != nil {
		return err
	}
	return r.Action.Validate()
}

// VirtualHost groups routes under a set of matching domains.
type VirtualHost struct {
	Name            string
	Domains         []string
	Routes          []RouteRule
	PerFilterConfig map[string]map[string]any
}

// Validate enforces within-vhost route ordering is stable and domains are
// non-empty; cross-vhost domain disjointness is checked at the
// RouteConfiguration level since it's a property of the whole list.
func (v *VirtualHost) Validate() error {
	if v.Name == "" {
		return apierr.Validationf("virtual host name must not be empty")
	}
	if len(v.Domains) == 0 {
		return apierr.Validationf("virtual host %q must declare at least one domain", v.Name)
	}
	for i := range v.Routes {
		if err := v.Routes[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RouteConfigData is the compiled body of a RouteConfiguration.
type RouteConfigData struct {
	VirtualHosts []VirtualHost
}

// Validate enforces that domains are disjoint across virtual hosts within
// one route configuration.
func (d *RouteConfigData) Validate() error {
	seen := map[string]string{}
	for _, vh := range d.VirtualHosts {
		if err := vh.Validate(); err != nil {
			return err
		}
		for _, domain := range vh.Domains {
			if owner, ok := seen[domain]; ok && owner != vh.Name {
				return apierr.Validationf("domain %q is claimed by both virtual hosts %q and %q", domain, owner, vh.Name)
			}
			seen[domain] = vh.Name
		}
	}
	return nil
}

// SortVirtualHostsByName sorts d's virtual hosts alphabetically by
// name, keeping generated config deterministic on the shared listener.
func (d *RouteConfigData) SortVirtualHostsByName() {
	sort.SliceStable(d.VirtualHosts, func(i, j int) bool {
		return d.VirtualHosts[i].Name < d.VirtualHosts[j].Name
	})
}

// RouteConfiguration is a named container of virtual hosts
//.
type RouteConfiguration struct {
	ID            string
	TeamID        string
	Name          string // unique within team
	Configuration RouteConfigData
	Version       uint64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate validates the configuration body.
func (r *RouteConfiguration) Validate() error {
	if r.Name == "" {
		return apierr.Validationf("route configuration name must not be empty")
	}
	return r.Configuration.Validate()
}

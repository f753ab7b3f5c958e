package model

import "github.com/flowplane/flowplane/pkg/xds/scope"

// nameSet is the transitive closure of resources visible to one scope:
// the listeners the scope selects directly, then every route
// configuration those listeners' HTTP connection managers reference,
// then every cluster those routes forward to, then every secret either
// a listener's downstream TLS or a cluster's upstream TLS references.
// Scope::All additionally sees every built route configuration, cluster
// and secret, whether or not a listener reaches it.
type nameSet struct {
	listeners map[string]bool
	routes    map[string]bool
	clusters  map[string]bool
	secrets   map[string]bool
}

func visibleNames(sc scope.Scope, idx *index) nameSet {
	ns := nameSet{
		listeners: map[string]bool{},
		routes:    map[string]bool{},
		clusters:  map[string]bool{},
		secrets:   map[string]bool{},
	}

	for _, l := range selectListeners(sc, idx) {
		ns.listeners[l.Name] = true
		for _, ref := range l.SecretRefs {
			ns.secrets[ref] = true
		}
		for _, rref := range l.RouteRefs {
			if ns.routes[rref] {
				continue
			}
			ns.routes[rref] = true
			if rc, ok := idx.routes[rref]; ok {
				for _, cref := range rc.ClusterRefs {
					ns.clusters[cref] = true
				}
			}
		}
	}

	if sc.Kind == scope.All {
		for name := range idx.routes {
			ns.routes[name] = true
		}
		for name := range idx.clusters {
			ns.clusters[name] = true
		}
		for name := range idx.secrets {
			ns.secrets[name] = true
		}
	}

	for cname := range ns.clusters {
		if cl, ok := idx.clusters[cname]; ok {
			for _, sref := range cl.SecretRefs {
				ns.secrets[sref] = true
			}
		}
	}

	return ns
}

func selectListeners(sc scope.Scope, idx *index) []listenerView {
	var out []listenerView
	switch sc.Kind {
	case scope.All:
		for _, l := range idx.listeners {
			out = append(out, listenerView{l.Name, l.RouteRefs, l.SecretRefs})
		}
	case scope.Team:
		for _, l := range idx.listeners {
			if l.TeamID == sc.Team || (sc.IncludeDefault && l.TeamID == "") {
				out = append(out, listenerView{l.Name, l.RouteRefs, l.SecretRefs})
			}
		}
	case scope.Allowlist:
		for _, name := range sc.ListenerNames {
			if l, ok := idx.listeners[name]; ok && l.TeamID == sc.Team {
				out = append(out, listenerView{l.Name, l.RouteRefs, l.SecretRefs})
			}
		}
	}
	return out
}

type listenerView struct {
	Name       string
	RouteRefs  []string
	SecretRefs []string
}

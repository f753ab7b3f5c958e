package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
	"github.com/google/uuid"
)

// BootstrapConfig carries the control-plane-reachability details every
// emitted bootstrap document needs — the xds_cluster entry proxies use
// to find this control plane's ADS endpoint.
type BootstrapConfig struct {
	ControlPlaneHost string
	ControlPlanePort int
	AdminAddress     string // e.g. "127.0.0.1:9901"
}

// bootstrapNode is the node stanza of the emitted document.
type bootstrapNode struct {
	ID       string                 `yaml:"id" json:"id"`
	Metadata map[string]interface{} `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

type bootstrapAdmin struct {
	Address string `yaml:"address" json:"address"`
}

type bootstrapGRPCService struct {
	EnvoyGrpc struct {
		ClusterName string `yaml:"cluster_name" json:"cluster_name"`
	} `yaml:"envoy_grpc" json:"envoy_grpc"`
}

type bootstrapADSConfig struct {
	ApiType             string                 `yaml:"api_type" json:"api_type"`
	TransportApiVersion string                 `yaml:"transport_api_version" json:"transport_api_version"`
	GrpcServices        []bootstrapGRPCService `yaml:"grpc_services" json:"grpc_services"`
}

type bootstrapDynamicResources struct {
	LdsConfig struct {
		Ads struct{} `yaml:"ads" json:"ads"`
	} `yaml:"lds_config" json:"lds_config"`
	CdsConfig struct {
		Ads struct{} `yaml:"ads" json:"ads"`
	} `yaml:"cds_config" json:"cds_config"`
	AdsConfig bootstrapADSConfig `yaml:"ads_config" json:"ads_config"`
}

type bootstrapSocketAddress struct {
	Address   string `yaml:"address" json:"address"`
	PortValue int    `yaml:"port_value" json:"port_value"`
}

type bootstrapEndpoint struct {
	Endpoint struct {
		Address struct {
			SocketAddress bootstrapSocketAddress `yaml:"socket_address" json:"socket_address"`
		} `yaml:"address" json:"address"`
	} `yaml:"endpoint" json:"endpoint"`
}

type bootstrapLbEndpoint struct {
	LbEndpoints []bootstrapEndpoint `yaml:"lb_endpoints" json:"lb_endpoints"`
}

type bootstrapCluster struct {
	Name                 string                     `yaml:"name" json:"name"`
	Type                 string                     `yaml:"type" json:"type"`
	Http2ProtocolOptions struct{}                   `yaml:"http2_protocol_options" json:"http2_protocol_options"`
	LoadAssignment       struct {
		Endpoints []bootstrapLbEndpoint `yaml:"endpoints" json:"endpoints"`
	} `yaml:"load_assignment" json:"load_assignment"`
}

type bootstrapStaticResources struct {
	Clusters []bootstrapCluster `yaml:"clusters" json:"clusters"`
}

// bootstrapDocument is the full document schema served to dataplanes.
type bootstrapDocument struct {
	Node              bootstrapNode             `yaml:"node" json:"node"`
	Admin             bootstrapAdmin            `yaml:"admin" json:"admin"`
	DynamicResources  bootstrapDynamicResources `yaml:"dynamic_resources" json:"dynamic_resources"`
	StaticResources   bootstrapStaticResources  `yaml:"static_resources" json:"static_resources"`
}

func (s *Server) buildBootstrap(team *types.Team, def *types.ApiDefinitionSpec, scopeParam, allowlistParam string, includeDefault bool) bootstrapDocument {
	meta := map[string]interface{}{}
	switch scopeParam {
	case "team":
		meta["team"] = team.Name
		meta["include_default"] = includeDefault
	case "allowlist":
		meta["team"] = team.Name
		if allowlistParam != "" {
			meta["listener_allowlist"] = strings.Split(allowlistParam, ",")
		}
	default: // "all"
		meta = nil
	}

	doc := bootstrapDocument{
		Node:  bootstrapNode{ID: "team=" + team.Name + "/dp-" + uuid.NewString(), Metadata: meta},
		Admin: bootstrapAdmin{Address: s.bootstrap.AdminAddress},
	}
	doc.DynamicResources.AdsConfig.ApiType = "GRPC"
	doc.DynamicResources.AdsConfig.TransportApiVersion = "V3"
	var grpc bootstrapGRPCService
	grpc.EnvoyGrpc.ClusterName = "xds_cluster"
	doc.DynamicResources.AdsConfig.GrpcServices = []bootstrapGRPCService{grpc}

	cluster := bootstrapCluster{Name: "xds_cluster", Type: "LOGICAL_DNS"}
	var ep bootstrapEndpoint
	ep.Endpoint.Address.SocketAddress = bootstrapSocketAddress{
		Address:   s.bootstrap.ControlPlaneHost,
		PortValue: s.bootstrap.ControlPlanePort,
	}
	cluster.LoadAssignment.Endpoints = []bootstrapLbEndpoint{{LbEndpoints: []bootstrapEndpoint{ep}}}
	doc.StaticResources.Clusters = []bootstrapCluster{cluster}

	_ = def // the definition is only used to resolve team/scope today; kept for future per-definition bootstrap customization
	return doc
}

// handleBootstrap serves GET /api/v1/api-definitions/{id}/bootstrap.
// format defaults to yaml, scope defaults to all.
func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := s.authContext(w, r)
	if !ok {
		return
	}
	defID := r.PathValue("id")

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "yaml"
	}
	if format != "yaml" && format != "json" {
		writeValidationError(w, "format must be yaml or json")
		return
	}
	scopeParam := r.URL.Query().Get("scope")
	if scopeParam == "" {
		scopeParam = "all"
	}
	switch scopeParam {
	case "all", "team", "allowlist":
	default:
		writeValidationError(w, "scope must be all, team, or allowlist")
		return
	}
	includeDefault := r.URL.Query().Get("includeDefault") == "true"
	allowlistParam := r.URL.Query().Get("allowlist")

	var (
		def  *types.ApiDefinitionSpec
		team *types.Team
	)
	err := s.store.View(r.Context(), func(tx storage.Tx) error {
		d, err := tx.ApiDefinitions().GetByID(defID)
		if err != nil {
			return err
		}
		def = d
		t, err := tx.Teams().GetByID(d.TeamID)
		if err != nil {
			return err
		}
		team = t
		org, err := tx.Orgs().GetByID(t.OrgID)
		if err != nil {
			return err
		}
		teamName := t.Name
		isBootstrap := authCtx.TokenID == "bootstrap"
		if !s.kernel.CheckResourceAccess(authCtx, "api_definitions", "read", &teamName, org.Name, isBootstrap) {
			return apierr.NotFoundf("api_definition", defID)
		}
		return nil
	})
	if err != nil {
		writeError(w, err)
		return
	}

	doc := s.buildBootstrap(team, def, scopeParam, allowlistParam, includeDefault)

	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(doc)
		return
	}

	w.Header().Set("Content-Type", "application/x-yaml")
	w.WriteHeader(http.StatusOK)
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	_ = enc.Encode(doc)
}

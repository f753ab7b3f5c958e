package types

import "time"

// TypeURL identifies an xDS resource type. Kept as a named string type
// (rather than the raw protobuf type_url constants) so pkg/types has no
// dependency on the envoy protobuf packages; pkg/xds/resources maps
// these to the real `type.googleapis.com/envoy.config.*` strings.
type TypeURL string

const (
	TypeURLCluster               TypeURL = "Cluster"
	TypeURLListener              TypeURL = "Listener"
	TypeURLRouteConfiguration    TypeURL = "RouteConfiguration"
	TypeURLClusterLoadAssignment TypeURL = "ClusterLoadAssignment"
	TypeURLSecret                TypeURL = "Secret"
)

// AllTypeURLs lists every resource type the engine maintains a cache
// for, in LDS, RDS, CDS, EDS, SDS order. The ADS server's periodic poll
// pushes types in this order, so a listener can reach a proxy before the
// route configuration it references.
var AllTypeURLs = []TypeURL{
	TypeURLListener,
	TypeURLRouteConfiguration,
	TypeURLCluster,
	TypeURLClusterLoadAssignment,
	TypeURLSecret,
}

// NamedResource is one entry of a snapshot's resource list: a name plus
// its encoded wire bytes (an envoy.Any, opaque to this package) and a
// content hash used for version-bump detection.
type NamedResource struct {
	Name string
	Any  []byte // serialized google.protobuf.Any
	Hash uint64
}

// Snapshot is the versioned, scope-filtered view of one resource type
// served to a connected proxy.
type Snapshot struct {
	TypeURL       TypeURL
	VersionNumber uint64
	Resources     []NamedResource
	GeneratedAt   time.Time
}

package storage

import (
	"context"
	"time"

	"github.com/flowplane/flowplane/pkg/types"
)

// AuditAction is the action recorded on an audit row.
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
	AuditDenied AuditAction = "denied"
)

// AuditEntry is one row of the audit log. OldConfig
// and NewConfig are JSON-ish summaries of the resource, never including
// secret bytes or password hashes. The repositories in this package
// build their own redacted summaries (secretSummary omits Configuration
// and BackendReference); a caller of AuditRepository.Record must redact
// before passing an entry in.
type AuditEntry struct {
	ID           string
	ResourceType string
	ResourceID   string
	Action       AuditAction
	OldConfig    map[string]any
	NewConfig    map[string]any
	ActorID      string
	Timestamp    time.Time
}

// AuditRepository appends audit rows. It never supports update or delete
// — the log is append-only.
type AuditRepository interface {
	Record(entry AuditEntry) error
	ListByResource(resourceType, resourceID string) ([]AuditEntry, error)
}

// OrgRepository manages Organization rows.
type OrgRepository interface {
	GetByID(id string) (*types.Organization, error)
	GetByName(name string) (*types.Organization, error)
	List() ([]*types.Organization, error)
	Create(o *types.Organization) error
	Update(o *types.Organization) error
	Delete(id string) error
}

// TeamRepository manages Team rows, scoped by org.
type TeamRepository interface {
	GetByID(id string) (*types.Team, error)
	GetByName(orgID, name string) (*types.Team, error)
	ListByOrg(orgID string) ([]*types.Team, error)
	Create(t *types.Team) error
	Update(t *types.Team) error
	Delete(id string) error
}

// UserRepository manages User rows.
type UserRepository interface {
	GetByID(id string) (*types.User, error)
	GetByEmail(email string) (*types.User, error)
	List() ([]*types.User, error)
	Create(u *types.User) error
	Update(u *types.User) error
	Delete(id string) error
}

// MembershipRepository manages User-Team membership rows.
type MembershipRepository interface {
	Get(userID, teamID string) (*types.Membership, error)
	ListByUser(userID string) ([]*types.Membership, error)
	ListByTeam(teamID string) ([]*types.Membership, error)
	Upsert(m *types.Membership) error
	Delete(userID, teamID string) error
	DeleteByUser(userID string) error
}

// ResourceRepository is the common shape shared by every team-scoped
// proxy resource. Team-less (global) resources use "" as team.
type ResourceRepository[T any] interface {
	GetByID(id string) (*T, error)
	GetByName(teamID, name string) (*T, error)
	ListByTeam(teamID string, limit, offset int) ([]*T, error)
	// ListAll returns every row regardless of team, for callers (the xDS
	// snapshot engine's rebuild path) that need the full resource set to
	// compute scope-filtered views rather than one team's slice of it.
	ListAll(limit, offset int) ([]*T, error)
	Create(v *T) error
	Update(v *T) error
	Delete(id string) error
}

type ClusterRepository = ResourceRepository[types.Cluster]
type RouteRepository = ResourceRepository[types.RouteConfiguration]
type ListenerRepository = ResourceRepository[types.Listener]
type FilterRepository = ResourceRepository[types.FilterDefinition]
type SecretRepository = ResourceRepository[types.Secret]

// ApiDefinitionRepository adds CascadeDelete to the generic resource
// contract: deleting an API definition must also remove the clusters,
// route configuration, and isolation listener it exclusively
// materialized.
type ApiDefinitionRepository interface {
	ResourceRepository[types.ApiDefinitionSpec]
	CascadeDelete(id string) error
}

// Tx is the set of repositories available inside one transaction. A
// repository obtained from a Tx never begins its own transaction — every
// call executes against the same underlying bbolt transaction, so a
// multi-table write (the materializer's compile step) is atomic.
type Tx interface {
	Orgs() OrgRepository
	Teams() TeamRepository
	Users() UserRepository
	Memberships() MembershipRepository
	Clusters() ClusterRepository
	Routes() RouteRepository
	Listeners() ListenerRepository
	Filters() FilterRepository
	Secrets() SecretRepository
	ApiDefinitions() ApiDefinitionRepository
	Audit() AuditRepository
}

// Transactor opens a transaction scoped to fn's lifetime; if fn returns
// an error every write made through tx is rolled back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn against a read-only transaction, for callers (the xDS
	// engine's rebuild path) that only read.
	View(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

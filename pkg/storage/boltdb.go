package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/flowplane/flowplane/pkg/apierr"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketOrgs          = []byte("orgs")
	bucketOrgsByName    = []byte("orgs_by_name")
	bucketTeams         = []byte("teams")
	bucketTeamsByName   = []byte("teams_by_org_name")
	bucketUsers         = []byte("users")
	bucketUsersByEmail  = []byte("users_by_email")
	bucketMemberships   = []byte("memberships")
	bucketClusters      = []byte("clusters")
	bucketClustersIndex = []byte("clusters_by_team_name")
	bucketRoutes        = []byte("routes")
	bucketRoutesIndex   = []byte("routes_by_team_name")
	bucketListeners     = []byte("listeners")
	bucketListenerIndex = []byte("listeners_by_team_name")
	bucketFilters       = []byte("filters")
	bucketFiltersIndex  = []byte("filters_by_team_name")
	bucketSecrets       = []byte("secrets")
	bucketSecretsIndex  = []byte("secrets_by_team_name")
	bucketApiDefs       = []byte("api_definitions")
	bucketApiDefsIndex  = []byte("api_definitions_by_team_domain")
	bucketAudit         = []byte("audit_log")

	allBuckets = [][]byte{
		bucketOrgs, bucketOrgsByName,
		bucketTeams, bucketTeamsByName,
		bucketUsers, bucketUsersByEmail,
		bucketMemberships,
		bucketClusters, bucketClustersIndex,
		bucketRoutes, bucketRoutesIndex,
		bucketListeners, bucketListenerIndex,
		bucketFilters, bucketFiltersIndex,
		bucketSecrets, bucketSecretsIndex,
		bucketApiDefs, bucketApiDefsIndex,
		bucketAudit,
	}
)

// BoltStore implements Transactor on top of go.etcd.io/bbolt.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a bbolt database under dataDir
// and ensures every bucket this package needs exists.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "flowplane.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open flowplane store: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

// WithinTx runs fn against a single read-write bbolt transaction; any
// error returned by fn (or a panic bbolt recovers) rolls back every
// write made through tx.
func (s *BoltStore) WithinTx(_ context.Context, fn func(tx Tx) error) error {
	return s.db.Update(func(btx *bolt.Tx) error {
		return fn(&boltTx{btx: btx})
	})
}

// View runs fn against a read-only bbolt transaction.
func (s *BoltStore) View(_ context.Context, fn func(tx Tx) error) error {
	return s.db.View(func(btx *bolt.Tx) error {
		return fn(&boltTx{btx: btx})
	})
}

// boltTx adapts a single *bolt.Tx to the storage.Tx interface. It is only
// ever valid for the lifetime of the Update/View callback that created
// it.
type boltTx struct {
	btx *bolt.Tx
}

func (t *boltTx) Orgs() OrgRepository               { return orgRepo{t.btx} }
func (t *boltTx) Teams() TeamRepository             { return teamRepo{t.btx} }
func (t *boltTx) Users() UserRepository             { return userRepo{t.btx} }
func (t *boltTx) Memberships() MembershipRepository { return membershipRepo{t.btx} }
func (t *boltTx) Clusters() ClusterRepository       { return clusterRepo{t.btx} }
func (t *boltTx) Routes() RouteRepository           { return routeRepo{t.btx} }
func (t *boltTx) Listeners() ListenerRepository     { return listenerRepo{t.btx} }
func (t *boltTx) Filters() FilterRepository         { return filterRepo{t.btx} }
func (t *boltTx) Secrets() SecretRepository         { return secretRepo{t.btx} }
func (t *boltTx) ApiDefinitions() ApiDefinitionRepository {
	return apiDefRepo{t.btx}
}
func (t *boltTx) Audit() AuditRepository { return auditRepo{t.btx} }

// --- generic JSON bucket helpers -------------------------------------------------

func getJSON[T any](btx *bolt.Tx, bucket []byte, key string) (*T, error) {
	b := btx.Bucket(bucket)
	data := b.Get([]byte(key))
	if data == nil {
		return nil, apierr.NotFoundf(string(bucket), key)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, apierr.Wrap(apierr.Internal, fmt.Errorf("decode %s/%s: %w", bucket, key, err))
	}
	return &v, nil
}

func putJSON[T any](btx *bolt.Tx, bucket []byte, key string, v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apierr.Wrap(apierr.Internal, fmt.Errorf("encode %s/%s: %w", bucket, key, err))
	}
	return btx.Bucket(bucket).Put([]byte(key), data)
}

func deleteKey(btx *bolt.Tx, bucket []byte, key string) error {
	return btx.Bucket(bucket).Delete([]byte(key))
}

func listJSON[T any](btx *bolt.Tx, bucket []byte) ([]*T, error) {
	var out []*T
	b := btx.Bucket(bucket)
	err := b.ForEach(func(_, v []byte) error {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			return err
		}
		out = append(out, &item)
		return nil
	})
	return out, err
}

func indexKey(parts ...string) string {
	key := ""
	for i, p := range parts {
		if i > 0 {
			key += "\x00"
		}
		key += p
	}
	return key
}

// claimIndex writes key -> id in the index bucket, failing with Conflict
// if it is already claimed by a different id.
func claimIndex(btx *bolt.Tx, indexBucket []byte, key, id string) error {
	b := btx.Bucket(indexBucket)
	existing := b.Get([]byte(key))
	if existing != nil && string(existing) != id {
		return apierr.Conflictf(string(indexBucket), key, fmt.Errorf("already in use"))
	}
	return b.Put([]byte(key), []byte(id))
}

func releaseIndex(btx *bolt.Tx, indexBucket []byte, key string) error {
	return btx.Bucket(indexBucket).Delete([]byte(key))
}

func lookupIndex(btx *bolt.Tx, indexBucket []byte, key string) (string, bool) {
	v := btx.Bucket(indexBucket).Get([]byte(key))
	if v == nil {
		return "", false
	}
	return string(v), true
}

func newID() string { return uuid.NewString() }

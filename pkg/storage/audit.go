package storage

import (
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"
)

func formatAuditTime() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func parseAuditTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

type auditRepo struct{ btx *bolt.Tx }

// auditRow is the on-disk shape; it differs from AuditEntry only in that
// Timestamp is stored as RFC3339 text, keeping the JSON human-readable
// when the bucket is inspected with a bbolt CLI.
type auditRow struct {
	ID           string         `json:"id"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Action       AuditAction    `json:"action"`
	OldConfig    map[string]any `json:"old_config,omitempty"`
	NewConfig    map[string]any `json:"new_config,omitempty"`
	ActorID      string         `json:"actor_id"`
	Timestamp    string         `json:"timestamp"`
}

func (r auditRepo) Record(entry AuditEntry) error {
	return recordAudit(r.btx, entry.ResourceType, entry.ResourceID, entry.Action, entry.OldConfig, entry.NewConfig, entry.ActorID)
}

func (r auditRepo) ListByResource(resourceType, resourceID string) ([]AuditEntry, error) {
	rows, err := listJSON[auditRow](r.btx, bucketAudit)
	if err != nil {
		return nil, err
	}
	var out []AuditEntry
	for _, row := range rows {
		if row.ResourceType != resourceType || row.ResourceID != resourceID {
			continue
		}
		ts, _ := parseAuditTime(row.Timestamp)
		out = append(out, AuditEntry{
			ID:           row.ID,
			ResourceType: row.ResourceType,
			ResourceID:   row.ResourceID,
			Action:       row.Action,
			OldConfig:    row.OldConfig,
			NewConfig:    row.NewConfig,
			ActorID:      row.ActorID,
			Timestamp:    ts,
		})
	}
	return out, nil
}

// recordAudit appends one audit row within the caller's transaction. It
// is called both from auditRepo.Record and directly by every other
// repository's Create/Update/Delete, so every mutation carries its own
// before/after summary without a second round trip through Tx.Audit().
func recordAudit(btx *bolt.Tx, resourceType, resourceID string, action AuditAction, oldConfig, newConfig map[string]any, actorID string) error {
	row := auditRow{
		ID:           newID(),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Action:       action,
		OldConfig:    oldConfig,
		NewConfig:    newConfig,
		ActorID:      actorID,
		Timestamp:    formatAuditTime(),
	}
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return btx.Bucket(bucketAudit).Put([]byte(row.ID), data)
}

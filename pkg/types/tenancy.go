package types

import (
	"regexp"
	"time"

	"github.com/flowplane/flowplane/pkg/apierr"
)

// OrgStatus is the lifecycle state of an Organization.
type OrgStatus string

const (
	OrgStatusActive    OrgStatus = "active"
	OrgStatusSuspended OrgStatus = "suspended"
)

var teamNamePattern = regexp.MustCompile(`^[a-z0-9-]{3,64}$`)

// Organization partitions every tenant-owned resource. Created and
// deleted only by governance, never by a team-scoped caller.
type Organization struct {
	ID          string
	Name        string // globally unique, lowercase-kebab, 3-64 chars
	DisplayName string
	Status      OrgStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate enforces the organization name shape and status enum.
func (o *Organization) Validate() error {
	if !teamNamePattern.MatchString(o.Name) {
		return apierr.Validationf("organization name %q must match ^[a-z0-9-]{3,64}$", o.Name)
	}
	switch o.Status {
	case OrgStatusActive, OrgStatusSuspended:
	default:
		return apierr.Validationf("organization status %q invalid", o.Status)
	}
	return nil
}

// TeamSettings holds free-form, team-scoped knobs. Kept as a typed map
// rather than bytes so materializer code can read documented keys without
// an extra unmarshal step.
type TeamSettings map[string]string

// Team exists inside exactly one organization; (org_id, name) is the
// natural key callers use, id is the storage key.
type Team struct {
	ID          string
	OrgID       string
	Name        string // unique within org
	DisplayName string
	OwnerUserID string
	Settings    TeamSettings
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate enforces the team name shape; uniqueness of (org_id, name) is
// a repository concern.
func (t *Team) Validate() error {
	if t.OrgID == "" {
		return apierr.Validationf("team must belong to an organization")
	}
	if !teamNamePattern.MatchString(t.Name) {
		return apierr.Validationf("team name %q must match ^[a-z0-9-]{3,64}$", t.Name)
	}
	return nil
}

// UserStatus is the lifecycle state of a User account.
type UserStatus string

const (
	UserStatusActive     UserStatus = "active"
	UserStatusInactive   UserStatus = "inactive"
	UserStatusSuspended  UserStatus = "suspended"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// User is a governance-level identity. IsAdmin never grants access to
// tenant resources by itself — see pkg/authz.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Status       UserStatus
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks the email shape and status enum. PasswordHash is
// assumed already hashed by an external collaborator; this package never hashes or compares plaintext passwords.
func (u *User) Validate() error {
	if !emailPattern.MatchString(u.Email) {
		return apierr.Validationf("email %q is not RFC-5322 compatible", u.Email)
	}
	switch u.Status {
	case UserStatusActive, UserStatusInactive, UserStatusSuspended:
	default:
		return apierr.Validationf("user status %q invalid", u.Status)
	}
	return nil
}

// ValidatePassword enforces the password shape invariant against a
// plaintext candidate (e.g. during signup, before an external hasher is
// invoked). It never itself stores or hashes the value.
func ValidatePassword(password string) error {
	if len(password) < 8 || len(password) > 128 {
		return apierr.Validationf("password must be between 8 and 128 characters")
	}
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit || !hasSymbol {
		return apierr.Validationf("password must contain an upper, lower, digit, and non-alphanumeric character")
	}
	return nil
}

// Membership grants a user a set of scopes within a single team. Unique
// on (user_id, team_id); cascade-deleted with the user.
type Membership struct {
	UserID string
	TeamID string
	Scopes []string
}

// Validate checks that every scope string matches the scope grammar.
func (m *Membership) Validate() error {
	if m.UserID == "" || m.TeamID == "" {
		return apierr.Validationf("membership requires a user and a team")
	}
	for _, s := range m.Scopes {
		if _, err := ParseScope(s); err != nil {
			return err
		}
	}
	return nil
}

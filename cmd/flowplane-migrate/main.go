package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/crypto/bcrypt"

	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
)

var (
	dataDir   = flag.String("data-dir", "/var/lib/flowplane", "flowplane data directory")
	orgName   = flag.String("org", "", "Name of the organization to seed (required)")
	teamName  = flag.String("team", "platform", "Name of the first team created inside the organization")
	adminMail = flag.String("admin-email", "", "Email of the initial admin user (required)")
	adminPass = flag.String("admin-password", "", "Password of the initial admin user (required, or read from FLOWPLANE_ADMIN_PASSWORD)")
	dryRun    = flag.Bool("dry-run", false, "Show what would be created without writing anything")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("flowplane bootstrap seeder")
	log.Println("==========================")

	if *orgName == "" || *adminMail == "" {
		log.Fatal("-org and -admin-email are required")
	}
	password := *adminPass
	if password == "" {
		password = os.Getenv("FLOWPLANE_ADMIN_PASSWORD")
	}
	if password == "" {
		log.Fatal("-admin-password or FLOWPLANE_ADMIN_PASSWORD must be set")
	}
	if err := types.ValidatePassword(password); err != nil {
		log.Fatalf("rejected admin password: %v", err)
	}

	dbPath := filepath.Join(*dataDir, "flowplane.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) && *dryRun {
		log.Printf("no database at %s yet; a real run would create it", dbPath)
		log.Println("dry run completed, no changes made")
		return
	}

	store, err := storage.NewBoltStore(*dataDir)
	if err != nil {
		log.Fatalf("open flowplane store: %v", err)
	}
	defer store.Close()

	if err := seed(store, *orgName, *teamName, *adminMail, password, *dryRun); err != nil {
		log.Fatalf("seed failed: %v", err)
	}

	if *dryRun {
		log.Println("dry run completed, no changes made")
	} else {
		log.Println("✓ bootstrap seed completed")
	}
}

// seed creates the organization, its first team, and an admin user with
// membership scoped admin:all — the one write path this tool exists
// for. Every later org/team/user is created through the management API,
// this binary only breaks the chicken-and-egg problem of a fresh store
// with no admin to log in as.
func seed(store storage.Transactor, org, team, email, password string, dryRun bool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	return store.WithinTx(context.Background(), func(tx storage.Tx) error {
		if existing, err := tx.Orgs().GetByName(org); err == nil {
			log.Printf("organization %q already exists (id=%s), skipping org/team/admin creation", org, existing.ID)
			return nil
		}

		o := &types.Organization{Name: org, DisplayName: org, Status: types.OrgStatusActive}
		if err := o.Validate(); err != nil {
			return err
		}
		log.Printf("organization: %s", o.Name)

		t := &types.Team{Name: team, DisplayName: team}

		u := &types.User{Email: email, PasswordHash: string(hash), Name: "admin", Status: types.UserStatusActive, IsAdmin: true}
		if err := u.Validate(); err != nil {
			return err
		}
		log.Printf("admin user: %s", u.Email)
		log.Printf("team: %s", team)

		if dryRun {
			return nil
		}

		if err := tx.Orgs().Create(o); err != nil {
			return fmt.Errorf("create organization: %w", err)
		}
		t.OrgID = o.ID
		if err := t.Validate(); err != nil {
			return err
		}
		if err := tx.Teams().Create(t); err != nil {
			return fmt.Errorf("create team: %w", err)
		}
		if err := tx.Users().Create(u); err != nil {
			return fmt.Errorf("create admin user: %w", err)
		}
		t.OwnerUserID = u.ID
		if err := tx.Teams().Update(t); err != nil {
			return fmt.Errorf("set team owner: %w", err)
		}
		m := &types.Membership{UserID: u.ID, TeamID: t.ID, Scopes: []string{"admin:all"}}
		if err := m.Validate(); err != nil {
			return err
		}
		if err := tx.Memberships().Upsert(m); err != nil {
			return fmt.Errorf("create admin membership: %w", err)
		}
		return tx.Audit().Record(storage.AuditEntry{
			ResourceType: "organization",
			ResourceID:   o.ID,
			Action:       storage.AuditCreate,
			NewConfig:    map[string]any{"name": o.Name},
			ActorID:      "flowplane-migrate",
		})
	})
}
